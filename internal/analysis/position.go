package analysis

import (
	"math"
	"time"

	"MarketPulse/internal/model"
	"MarketPulse/internal/sheet"
)

// BuildMarketPosition reads the breakdown panels from the last swing row.
// It returns nil when there are no rows.
func BuildMarketPosition(records []sheet.Record, now time.Time) *model.MarketPosition {
	if len(records) == 0 {
		return nil
	}
	last := records[len(records)-1]

	p := &model.MarketPosition{}
	above, below := last.Number(ColMLAbove), last.Number(ColMLBelow)
	p.Model = model.Split{Bullish: above, Bearish: below, Neutral: remainder(above, below)}

	p.Balance.Above = last.Number(ColFGAbove)
	p.Balance.Below = last.Number(ColFGBelow)

	rsiAbove := last.Number(ColSwingRSI)
	p.Momentum.Bullish = 100 - rsiAbove
	p.Momentum.Bearish = rsiAbove

	p.SR.AtSupport = last.Number(ColTotalSupport)
	p.SR.AtResistance = last.Number(colTotalResistanceTy)
	if p.SR.AtResistance == 0 {
		p.SR.AtResistance = last.Number(ColTotalResistance)
	}

	up, down := last.Number(ColReversalUp), last.Number(ColReversalDown)
	p.Reversal.Up = up
	p.Reversal.Down = down
	p.Reversal.Neutral = remainder(up, down)

	p.LastUpdate = now.Format("15:04:05")
	return p
}

// remainder is the share left over by two percentages, never negative.
func remainder(a, b float64) float64 {
	return math.Max(0, 100-(a+b))
}
