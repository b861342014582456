package analysis

import (
	"sort"

	"MarketPulse/internal/model"
	"MarketPulse/internal/sheet"
)

// DefaultMoversLimit is the length of each top-movers list.
const DefaultMoversLimit = 10

// BuildTopMovers ranks the day's gainers and losers among records in groups
// that carry a CHANGE_PERCENT. Losers are listed biggest drop first.
func BuildTopMovers(records []sheet.Record, groups []string, limit int) model.TopMovers {
	if limit <= 0 {
		limit = DefaultMoversLimit
	}
	if len(groups) == 0 {
		groups = DefaultMoodGroups
	}
	allowed := newGroupSet(groups)

	movers := make([]model.TopMover, 0)
	for _, rec := range records {
		name := rec.String(ColStockName)
		if name == "" || rec.Blank(ColChangePercent) || !allowed.contains(rec) {
			continue
		}
		movers = append(movers, model.TopMover{
			ID:            textOr(rec, ColID, name),
			StockName:     name,
			ChangePercent: rec.Number(ColChangePercent),
			ClosePrice:    rec.Number(ColClosePrice),
		})
	}

	gainers := make([]model.TopMover, 0, limit)
	losers := make([]model.TopMover, 0, limit)
	for _, m := range movers {
		switch {
		case m.ChangePercent > 0:
			gainers = append(gainers, m)
		case m.ChangePercent < 0:
			losers = append(losers, m)
		}
	}
	sort.SliceStable(gainers, func(i, j int) bool { return gainers[i].ChangePercent > gainers[j].ChangePercent })
	sort.SliceStable(losers, func(i, j int) bool { return losers[i].ChangePercent < losers[j].ChangePercent })
	if len(gainers) > limit {
		gainers = gainers[:limit]
	}
	if len(losers) > limit {
		losers = losers[:limit]
	}
	return model.TopMovers{TopGainers: gainers, TopLosers: losers}
}
