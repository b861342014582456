package analysis

import (
	"sort"
	"time"

	"MarketPulse/internal/model"
	"MarketPulse/internal/sheet"
)

// DefaultHistoryDays is the lookback window for per-symbol history.
const DefaultHistoryDays = 180

// HistoryOptions controls BuildHistory.
type HistoryOptions struct {
	AsOf       time.Time
	WindowDays int
	Groups     []string
}

// HistoryResult is the output of one BuildHistory pass.
type HistoryResult struct {
	Histories map[string]model.StockHistory
	// ResistanceSlopeDown holds the flag from each symbol's row on the
	// latest date of the whole input. It is latest state, not a series.
	ResistanceSlopeDown map[string]bool
	LatestDate          time.Time
	Cutoff              time.Time
	// Parsed counts rows placed in the window; Skipped counts rows dropped
	// for an unparseable or out-of-window date.
	Parsed  int
	Skipped int
}

// WindowStart returns the first day included in a window ending at asOf.
func WindowStart(asOf time.Time, windowDays int) time.Time {
	d := asOf.UTC()
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, -windowDays)
}

// LatestDate returns the newest parseable DATE among records.
func LatestDate(records []sheet.Record) (time.Time, bool) {
	var latest time.Time
	found := false
	for _, rec := range records {
		t, ok := sheet.ParseDate(rec.Get(ColDate))
		if !ok {
			continue
		}
		if !found || t.After(latest) {
			latest, found = t, true
		}
	}
	return latest, found
}

// RowsOn returns the records whose DATE resolves to day.
func RowsOn(records []sheet.Record, day time.Time) []sheet.Record {
	var out []sheet.Record
	for _, rec := range records {
		if t, ok := sheet.ParseDate(rec.Get(ColDate)); ok && t.Equal(day) {
			out = append(out, rec)
		}
	}
	return out
}

// BuildHistory groups records by symbol inside the lookback window and the
// allowed groups, sorted ascending by date. The window start is inclusive.
func BuildHistory(records []sheet.Record, opts HistoryOptions) HistoryResult {
	window := opts.WindowDays
	if window <= 0 {
		window = DefaultHistoryDays
	}
	groups := opts.Groups
	if len(groups) == 0 {
		groups = DefaultHistoryGroups
	}
	allowed := newGroupSet(groups)

	res := HistoryResult{
		Histories:           make(map[string]model.StockHistory),
		ResistanceSlopeDown: make(map[string]bool),
		Cutoff:              WindowStart(opts.AsOf, window),
	}
	latest, hasLatest := LatestDate(records)
	res.LatestDate = latest

	points := make(map[string][]model.StockDayPoint)
	for _, rec := range records {
		if rec.Blank(ColDate) || !allowed.contains(rec) {
			continue
		}
		date, ok := sheet.ParseDate(rec.Get(ColDate))
		if !ok || date.Before(res.Cutoff) {
			res.Skipped++
			continue
		}
		res.Parsed++

		symbol := rec.String(ColStockName)
		if symbol == "" {
			continue
		}
		if hasLatest && date.Equal(latest) {
			res.ResistanceSlopeDown[symbol] = rec.Bool(ColResistanceSlopeDownward)
		}
		points[symbol] = append(points[symbol], dayPoint(rec, date))
	}

	for symbol, pts := range points {
		sort.SliceStable(pts, func(i, j int) bool { return pts[i].Date.Before(pts[j].Date) })
		res.Histories[symbol] = model.StockHistory{Symbol: symbol, Points: pts}
	}
	return res
}

func dayPoint(rec sheet.Record, date time.Time) model.StockDayPoint {
	return model.StockDayPoint{
		Date:          date,
		DateDisplay:   sheet.FormatDisplayDate(date),
		Price:         rec.Number(ColClosePrice),
		RSI:           rec.Number(ColRSI),
		Trend:         rec.String(ColDailyTrend),
		Support:       rec.Number(ColSupport),
		Resistance:    rec.Number(ColResistance),
		MLFutPrice20D: rec.Number(ColMLFutPrice20D),
		WolfeD:        rec.Number(ColWolfeD),
		ProjFVG:       rec.Number(ColProjFVG),
		Sector:        rec.String(ColSector),
	}
}

// Summaries returns one StockSummary per symbol, ordered by symbol.
func (r HistoryResult) Summaries() []model.StockSummary {
	symbols := make([]string, 0, len(r.Histories))
	for s := range r.Histories {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)

	out := make([]model.StockSummary, 0, len(symbols))
	for _, s := range symbols {
		h := r.Histories[s]
		latest, ok := h.Latest()
		if !ok {
			continue
		}
		out = append(out, model.StockSummary{
			Symbol:                  s,
			Name:                    s,
			Sector:                  latest.Sector,
			Price:                   latest.Price,
			RSI:                     latest.RSI,
			Trend:                   latest.Trend,
			ResistanceSlopeDownward: r.ResistanceSlopeDown[s],
			History:                 h.Points,
		})
	}
	return out
}
