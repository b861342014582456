package analysis

import (
	"math"
	"sort"

	"MarketPulse/internal/model"
	"MarketPulse/internal/sheet"
)

// IndexColumn names an index and the column that flags its members.
type IndexColumn struct {
	Name   string `yaml:"name" validate:"required"`
	Column string `yaml:"column" validate:"required"`
}

// DefaultIndexColumns is the index set shown on the dashboard, in display
// order for equal strength scores.
var DefaultIndexColumns = []IndexColumn{
	{Name: "NIFTY 50", Column: "NIFTY50"},
	{Name: "NIFTY BANK", Column: "NIFTYBANK"},
	{Name: "NIFTY IT", Column: "NIFTYIT"},
	{Name: "NIFTY AUTO", Column: "NIFTYAUTO"},
	{Name: "NIFTY PHARMA", Column: "NIFTYPHARMA"},
	{Name: "NIFTY METAL", Column: "NIFTYMETAL"},
	{Name: "NIFTY FMCG", Column: "NIFTYFMCG"},
	{Name: "NIFTY INFRA", Column: "NIFTYINFRA"},
	{Name: "NIFTY PSU BANK", Column: "NIFTYPSUBANK"},
	{Name: "NIFTY PVT BANK", Column: "NIFTYPVTBANK"},
	{Name: "NIFTY CPSE", Column: "NIFTYCPSE"},
	{Name: "NIFTY 500", Column: "NIFTY500"},
}

// IsMember reports whether a membership cell flags the stock as part of an
// index: anything non-blank except FALSE and numeric zero.
func IsMember(c any) bool {
	if sheet.IsBlank(c) {
		return false
	}
	switch v := c.(type) {
	case bool:
		return v
	case float64:
		return v != 0
	case int:
		return v != 0
	}
	return sheet.ToUpper(c) != "FALSE"
}

// BuildIndexAggregates counts bullish and bearish members per index and
// returns the non-empty indices ordered by strength, strongest first.
func BuildIndexAggregates(records []sheet.Record, indices []IndexColumn) []model.IndexAggregate {
	aggs := make([]model.IndexAggregate, len(indices))
	for i, idx := range indices {
		aggs[i] = model.IndexAggregate{Name: idx.Name, Stocks: []model.IndexMember{}}
	}

	for _, rec := range records {
		name := rec.String(ColStockName)
		if name == "" {
			continue
		}
		price := rec.Number(ColClosePrice)
		upper := rec.Number(ColResistance)
		lower := rec.Number(ColSupport)
		status := Classify(price, lower, upper)
		member := model.IndexMember{
			ID:         textOr(rec, ColID, name),
			StockName:  name,
			Price:      price,
			Status:     status,
			UpperRange: upper,
			LowerRange: lower,
		}

		for i, idx := range indices {
			if !IsMember(rec.Get(idx.Column)) {
				continue
			}
			aggs[i].Stocks = append(aggs[i].Stocks, member)
			switch status {
			case model.StatusBullish:
				aggs[i].BullishCount++
			case model.StatusBearish:
				aggs[i].BearishCount++
			}
		}
	}

	out := make([]model.IndexAggregate, 0, len(aggs))
	for _, a := range aggs {
		a.StocksCount = len(a.Stocks)
		a.StrengthScore = StrengthScore(a.BullishCount, a.StocksCount)
		if a.StocksCount == 0 {
			continue
		}
		out = append(out, a)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].StrengthScore > out[j].StrengthScore })
	return out
}

// StrengthScore is the rounded bullish share of an index, 50 when empty.
func StrengthScore(bullish, total int) int {
	if total == 0 {
		return 50
	}
	return int(math.Round(float64(bullish) / float64(total) * 100))
}
