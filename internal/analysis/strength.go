package analysis

import (
	"sort"
	"time"

	"MarketPulse/internal/model"
	"MarketPulse/internal/sheet"
)

// Swing DATA tab headers.
const (
	ColSwingRSI          = "NIFTY100_DAILY_RSI_ABOVE50"
	ColMLAbove           = "ML_ABOVE"
	ColMLBelow           = "ML_BELOW"
	ColFGAbove           = "FG_ABOVE"
	ColFGBelow           = "FG_BELOW"
	ColFGNet             = "FG_NET"
	ColNifty50Close      = "NIFTY50_CLOSE"
	ColTotalScore        = "TOTAL_SCORE"
	ColMLThreshold       = "ML_THRESHOLD"
	ColTotalSupport      = "TOTAL_SUPPORT"
	ColTotalResistance   = "TOTAL_RESISTANCE"
	colTotalResistanceTy = "TOTAL_RESITANCE"
	ColReversalUp        = "REVERSAL_UP"
	ColReversalDown      = "REVERSAL_DOWN"
)

// DefaultStrengthPoints is how many trailing days the strength chart shows.
const DefaultStrengthPoints = 130

const neutralRSI = 50

// BuildStrengthSeries turns swing rows into the market strength chart, oldest
// first, keeping the last limit points. Rows with an unreadable date are
// dropped.
func BuildStrengthSeries(records []sheet.Record, limit int) []model.StrengthPoint {
	if limit <= 0 {
		limit = DefaultStrengthPoints
	}

	type dated struct {
		at    time.Time
		point model.StrengthPoint
	}
	rows := make([]dated, 0, len(records))
	for _, rec := range records {
		at, ok := sheet.ParseSwingDate(rec.String(ColDate))
		if !ok {
			continue
		}
		rsi := rec.Number(ColSwingRSI)
		if rsi == 0 {
			rsi = neutralRSI
		}
		rows = append(rows, dated{at: at, point: model.StrengthPoint{
			Date:               sheet.FormatDisplayDate(at),
			RSI:                rsi,
			MLHigher:           rec.Number(ColMLAbove),
			MLLower:            rec.Number(ColMLBelow),
			FGAbove:            rec.Number(ColFGAbove),
			FGBelow:            rec.Number(ColFGBelow),
			FGNet:              rec.Number(ColFGNet),
			Nifty50Close:       rec.Number(ColNifty50Close),
			TotalScore:         rec.Number(ColTotalScore),
			MLThreshold:        rec.Number(ColMLThreshold),
			MomentumOscillator: rec.Number(ColSwingRSI),
		}})
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].at.Before(rows[j].at) })
	if len(rows) > limit {
		rows = rows[len(rows)-limit:]
	}

	out := make([]model.StrengthPoint, len(rows))
	for i, r := range rows {
		out[i] = r.point
	}
	return out
}
