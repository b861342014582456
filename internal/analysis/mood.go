package analysis

import (
	"errors"
	"math"

	"github.com/shopspring/decimal"

	"MarketPulse/internal/model"
	"MarketPulse/internal/sheet"
)

// ErrEmptyUniverse is returned when a classification has nothing to count.
var ErrEmptyUniverse = errors.New("no data: empty universe")

// Band thresholds on the 0–100 padded position scale.
const (
	BullishAbove = 66.66
	BearishBelow = 33.33
	bandPadding  = 0.1
)

// DefaultMoodUniverse is how many leading rows of the current tab count
// toward the market mood.
const DefaultMoodUniverse = 470

// PricePosition places price on a 0–100 scale spanning support and
// resistance, widened by 10% on both sides. The range stretches to include
// price when it sits outside the band. A zero-width range yields 50.
func PricePosition(price, support, resistance float64) float64 {
	lo := math.Min(price, support)
	hi := math.Max(price, resistance)
	pad := (hi - lo) * bandPadding
	displayLo, displayHi := lo-pad, hi+pad
	span := displayHi - displayLo
	if span <= 0 {
		return 50
	}
	return (price - displayLo) / span * 100
}

// Classify buckets a stock by where its price sits in the padded band.
func Classify(price, support, resistance float64) model.Status {
	pos := PricePosition(price, support, resistance)
	switch {
	case pos > BullishAbove:
		return model.StatusBullish
	case pos < BearishBelow:
		return model.StatusBearish
	default:
		return model.StatusNeutral
	}
}

// ClassifyRecord classifies a record from its CLOSE_PRICE, SUPPORT and
// RESISTANCE cells.
func ClassifyRecord(rec sheet.Record) model.Status {
	return Classify(rec.Number(ColClosePrice), rec.Number(ColSupport), rec.Number(ColResistance))
}

// MoodOptions controls AggregateMood.
type MoodOptions struct {
	// Universe caps how many leading records are considered; 0 means all.
	Universe int
	Groups   []string
	Date     string
}

// AggregateMood classifies the eligible records and returns the bucket
// split. It fails with ErrEmptyUniverse when no record is eligible.
func AggregateMood(records []sheet.Record, opts MoodOptions) (model.MoodSnapshot, error) {
	if opts.Universe > 0 && len(records) > opts.Universe {
		records = records[:opts.Universe]
	}
	groups := opts.Groups
	if len(groups) == 0 {
		groups = DefaultMoodGroups
	}
	allowed := newGroupSet(groups)

	var counts [3]int
	for _, rec := range records {
		if !allowed.contains(rec) {
			continue
		}
		switch ClassifyRecord(rec) {
		case model.StatusBullish:
			counts[0]++
		case model.StatusBearish:
			counts[1]++
		default:
			counts[2]++
		}
	}

	total := counts[0] + counts[1] + counts[2]
	if total == 0 {
		return model.MoodSnapshot{}, ErrEmptyUniverse
	}

	pct := SplitPercent(counts, total)
	return model.MoodSnapshot{
		Bullish:      pct[0],
		Bearish:      pct[1],
		Neutral:      pct[2],
		BullishCount: counts[0],
		BearishCount: counts[1],
		NeutralCount: counts[2],
		Total:        total,
		Date:         opts.Date,
	}, nil
}

// SplitPercent converts bucket counts to whole percentages that sum to
// exactly 100 using the largest-remainder method. Equal remainders go to the
// earlier bucket.
func SplitPercent(counts [3]int, total int) [3]int {
	var out [3]int
	if total <= 0 {
		return out
	}
	hundred := decimal.NewFromInt(100)
	denom := decimal.NewFromInt(int64(total))

	var rem [3]decimal.Decimal
	sum := 0
	for i, c := range counts {
		exact := decimal.NewFromInt(int64(c)).Mul(hundred).Div(denom)
		floor := exact.Floor()
		out[i] = int(floor.IntPart())
		rem[i] = exact.Sub(floor)
		sum += out[i]
	}
	for sum < 100 {
		best := 0
		for i := 1; i < len(rem); i++ {
			if rem[i].GreaterThan(rem[best]) {
				best = i
			}
		}
		out[best]++
		rem[best] = decimal.NewFromInt(-1)
		sum++
	}
	return out
}
