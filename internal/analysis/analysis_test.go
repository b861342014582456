package analysis

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MarketPulse/internal/model"
	"MarketPulse/internal/sheet"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func stock(name, group string, price, support, resistance float64) sheet.Record {
	return sheet.Record{
		ColStockName:  name,
		ColGroup:      group,
		ColClosePrice: price,
		ColSupport:    support,
		ColResistance: resistance,
	}
}

func TestClassify(t *testing.T) {
	assert.Equal(t, model.StatusNeutral, Classify(100, 90, 110))
	assert.Equal(t, model.StatusBullish, Classify(109, 90, 110))
	assert.Equal(t, model.StatusBearish, Classify(91, 90, 110))
	assert.Equal(t, model.StatusNeutral, Classify(100, 100, 100), "zero-width band")
	assert.Equal(t, model.StatusBullish, Classify(130, 90, 110), "above resistance")
	assert.Equal(t, model.StatusBearish, Classify(70, 90, 110), "below support")
}

func TestPricePosition(t *testing.T) {
	assert.InDelta(t, 87.5, PricePosition(109, 90, 110), 1e-9)
	assert.InDelta(t, 50.0, PricePosition(100, 90, 110), 1e-9)
	assert.Equal(t, 50.0, PricePosition(0, 0, 0))
}

func TestAggregateMood_TenRecords(t *testing.T) {
	var recs []sheet.Record
	for i := 0; i < 5; i++ {
		recs = append(recs, stock("B", "LARGECAP", 109, 90, 110))
	}
	for i := 0; i < 3; i++ {
		recs = append(recs, stock("S", "midcap", 91, 90, 110))
	}
	for i := 0; i < 2; i++ {
		recs = append(recs, stock("N", "LARGECAP", 100, 90, 110))
	}
	recs = append(recs, stock("X", "SMALLCAP", 109, 90, 110))

	snap, err := AggregateMood(recs, MoodOptions{Universe: DefaultMoodUniverse, Date: "5th Mar"})
	require.NoError(t, err)
	assert.Equal(t, 50, snap.Bullish)
	assert.Equal(t, 30, snap.Bearish)
	assert.Equal(t, 20, snap.Neutral)
	assert.Equal(t, 10, snap.Total)
	assert.Equal(t, 100, snap.Bullish+snap.Bearish+snap.Neutral)
	assert.Equal(t, "5th Mar", snap.Date)

	dom, pct := snap.Dominant()
	assert.Equal(t, model.StatusBullish, dom)
	assert.Equal(t, 50, pct)
}

func TestAggregateMood_UniverseCap(t *testing.T) {
	recs := []sheet.Record{
		stock("A", "LARGECAP", 91, 90, 110),
		stock("B", "LARGECAP", 109, 90, 110),
	}
	snap, err := AggregateMood(recs, MoodOptions{Universe: 1})
	require.NoError(t, err)
	assert.Equal(t, 1, snap.Total)
	assert.Equal(t, 100, snap.Bearish)
}

func TestAggregateMood_EmptyUniverse(t *testing.T) {
	_, err := AggregateMood(nil, MoodOptions{})
	assert.ErrorIs(t, err, ErrEmptyUniverse)

	_, err = AggregateMood([]sheet.Record{stock("X", "SMALLCAP", 1, 1, 1)}, MoodOptions{})
	assert.ErrorIs(t, err, ErrEmptyUniverse)
}

func TestSplitPercent(t *testing.T) {
	tests := []struct {
		counts [3]int
		want   [3]int
	}{
		{[3]int{1, 1, 1}, [3]int{34, 33, 33}},
		{[3]int{2, 2, 3}, [3]int{29, 28, 43}},
		{[3]int{1, 0, 0}, [3]int{100, 0, 0}},
		{[3]int{1, 1, 0}, [3]int{50, 50, 0}},
		{[3]int{155, 201, 114}, [3]int{33, 43, 24}},
	}
	for _, tt := range tests {
		total := tt.counts[0] + tt.counts[1] + tt.counts[2]
		got := SplitPercent(tt.counts, total)
		assert.Equal(t, tt.want, got, "counts %v", tt.counts)
		assert.Equal(t, 100, got[0]+got[1]+got[2])
	}
	assert.Equal(t, [3]int{}, SplitPercent([3]int{}, 0))
}

func TestBuildHistory_WindowBoundary(t *testing.T) {
	asOf := time.Date(2024, time.June, 30, 15, 30, 0, 0, time.UTC)
	boundary := day(2024, time.June, 30).AddDate(0, 0, -180)

	recs := []sheet.Record{
		{ColDate: boundary.Format("2006-01-02"), ColStockName: "IN", ColGroup: "LARGECAP"},
		{ColDate: boundary.AddDate(0, 0, -1).Format("2006-01-02"), ColStockName: "OUT", ColGroup: "LARGECAP"},
		{ColDate: "garbage", ColStockName: "BAD", ColGroup: "LARGECAP"},
		{ColDate: "2024-06-01", ColStockName: "SMALL", ColGroup: "SMALLCAP"},
		{ColDate: "", ColStockName: "NODATE", ColGroup: "LARGECAP"},
	}
	res := BuildHistory(recs, HistoryOptions{AsOf: asOf, WindowDays: 180})

	assert.Equal(t, boundary, res.Cutoff)
	assert.Contains(t, res.Histories, "IN", "boundary day is inclusive")
	assert.NotContains(t, res.Histories, "OUT")
	assert.NotContains(t, res.Histories, "BAD")
	assert.NotContains(t, res.Histories, "SMALL")
	assert.NotContains(t, res.Histories, "NODATE")
	assert.Equal(t, 1, res.Parsed)
	assert.Equal(t, 2, res.Skipped)
}

func TestBuildHistory_SlopeFromLatestDate(t *testing.T) {
	recs := []sheet.Record{
		{ColDate: "2024-03-04", ColStockName: "ABC", ColGroup: "LARGECAP", ColResistanceSlopeDownward: "N"},
		{ColDate: "2024-03-05", ColStockName: "ABC", ColGroup: "LARGECAP", ColResistanceSlopeDownward: "Y"},
		{ColDate: "2024-03-04", ColStockName: "XYZ", ColGroup: "MIDCAP", ColResistanceSlopeDownward: "Y"},
	}
	res := BuildHistory(recs, HistoryOptions{AsOf: day(2024, time.March, 6)})
	assert.Equal(t, day(2024, time.March, 5), res.LatestDate)
	assert.True(t, res.ResistanceSlopeDown["ABC"])
	_, ok := res.ResistanceSlopeDown["XYZ"]
	assert.False(t, ok, "XYZ has no row on the latest date")

	sums := res.Summaries()
	require.Len(t, sums, 2)
	assert.Equal(t, "ABC", sums[0].Symbol)
	assert.True(t, sums[0].ResistanceSlopeDownward)
	assert.Equal(t, "XYZ", sums[1].Symbol)
	assert.False(t, sums[1].ResistanceSlopeDownward)
}

func TestEndToEnd_HistoryAndMood(t *testing.T) {
	tbl := sheet.Table{
		Header: []any{"DATE", "STOCK_NAME", "GROUP", "CLOSE_PRICE", "SUPPORT", "RESISTANCE"},
		Rows: [][]any{
			{"2024-03-05", "ABC", "LARGECAP", "105", "90", "110"},
			{"2024-02-24", "ABC", "LARGECAP", "95", "90", "110"},
		},
	}
	recs := sheet.Normalize(tbl)

	res := BuildHistory(recs, HistoryOptions{AsOf: day(2024, time.March, 10)})
	require.Len(t, res.Histories, 1)
	h := res.Histories["ABC"]
	require.Len(t, h.Points, 2)
	assert.Equal(t, day(2024, time.February, 24), h.Points[0].Date)
	assert.Equal(t, day(2024, time.March, 5), h.Points[1].Date)
	assert.Equal(t, "5th Mar", h.Points[1].DateDisplay)
	assert.Equal(t, 105.0, h.Points[1].Price)

	snap, err := AggregateMood(recs, MoodOptions{})
	require.NoError(t, err)
	assert.Equal(t, 100, snap.Bullish+snap.Bearish+snap.Neutral)
	assert.Equal(t, 50, snap.Bullish)
	assert.Equal(t, 50, snap.Bearish)
}

func TestBuildIndexAggregates(t *testing.T) {
	with := func(r sheet.Record, kv ...any) sheet.Record {
		for i := 0; i+1 < len(kv); i += 2 {
			r[kv[i].(string)] = kv[i+1]
		}
		return r
	}
	recs := []sheet.Record{
		with(stock("A", "LARGECAP", 109, 90, 110), "NIFTY50", "Y", "NIFTYBANK", "Y"),
		with(stock("B", "LARGECAP", 109, 90, 110), "NIFTY50", true, "NIFTYBANK", "FALSE"),
		with(stock("C", "LARGECAP", 91, 90, 110), "NIFTY50", 1.0, "NIFTYBANK", 0.0),
		with(stock("D", "LARGECAP", 109, 90, 110), "NIFTYIT", "Y"),
		with(sheet.Record{ColStockName: ""}, "NIFTYIT", "Y"),
	}
	recs[0][ColID] = "A-ID"

	aggs := BuildIndexAggregates(recs, DefaultIndexColumns)
	require.Len(t, aggs, 3)

	assert.Equal(t, "NIFTY BANK", aggs[0].Name)
	assert.Equal(t, 100, aggs[0].StrengthScore)
	assert.Equal(t, "NIFTY IT", aggs[1].Name, "equal strength keeps configuration order")
	assert.Equal(t, 1, aggs[1].StocksCount)

	nifty := aggs[2]
	assert.Equal(t, "NIFTY 50", nifty.Name)
	assert.Equal(t, 3, nifty.StocksCount)
	assert.Equal(t, 2, nifty.BullishCount)
	assert.Equal(t, 1, nifty.BearishCount)
	assert.Equal(t, 67, nifty.StrengthScore)
	assert.Equal(t, "A-ID", nifty.Stocks[0].ID)
	assert.Equal(t, "B", nifty.Stocks[1].ID)
	assert.Equal(t, model.StatusBearish, nifty.Stocks[2].Status)
}

func TestStrengthScore(t *testing.T) {
	assert.Equal(t, 50, StrengthScore(0, 0))
	assert.Equal(t, 0, StrengthScore(0, 4))
	assert.Equal(t, 33, StrengthScore(1, 3))
}

var testFields = CandidateFields{
	Sector:        "SECTOR",
	ID:            "ID",
	CMP:           "CMP",
	RSI:           "RSI",
	MBScore:       "MB",
	PERatio:       "PE",
	DEMA200Status: "EMA_STATUS",
	Signal:        "SIGNAL",
}

func candidateRecord(id string, rsi, mb float64, status, signal string) sheet.Record {
	return sheet.Record{
		"SECTOR":     "IT",
		"ID":         id,
		"CMP":        "1,000",
		"RSI":        rsi,
		"MB":         mb,
		"PE":         "",
		"EMA_STATUS": status,
		"SIGNAL":     signal,
	}
}

func TestScreen_MomentumRule(t *testing.T) {
	rule, err := FindRule(DefaultRules, "momentum-above-200ema")
	require.NoError(t, err)

	recs := []sheet.Record{
		candidateRecord("HIGHRSI", 65, 3, "ABOVE", "Y"),
		candidateRecord("LOWMB", 40, 1, "ABOVE", "Y"),
		candidateRecord("BELOW", 40, 3, "BELOW", "Y"),
		candidateRecord("NOSIG", 40, 3, "ABOVE", ""),
		candidateRecord("KEEP2", 50, 2, "above", "Y"),
		candidateRecord("KEEP1", 30, 4, "ABOVE", "TRUE"),
	}
	got := Screen(recs, rule, testFields)
	require.Len(t, got, 2)
	assert.Equal(t, "KEEP1", got[0].ID)
	assert.Equal(t, "KEEP2", got[1].ID)
	assert.Equal(t, "KEEP1", got[0].StockName)
	assert.Equal(t, 1000.0, got[0].CMP)
	assert.Nil(t, got[0].PERatio)
	assert.Equal(t, "N/A", got[0].AlgoB)
}

func TestScreen_StableOnEqualRSI(t *testing.T) {
	rule, err := FindRule(DefaultRules, "rsi-strength")
	require.NoError(t, err)

	recs := []sheet.Record{
		candidateRecord("FIRST", 45, 0, "", "Y"),
		candidateRecord("LOW", 20, 0, "", "Y"),
		candidateRecord("SECOND", 45, 0, "", "Y"),
	}
	got := Screen(recs, rule, testFields)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"LOW", "FIRST", "SECOND"}, []string{got[0].ID, got[1].ID, got[2].ID})
}

func TestFindRule_Unknown(t *testing.T) {
	_, err := FindRule(DefaultRules, "nope")
	assert.ErrorIs(t, err, ErrUnknownRule)
}

func TestCandidateFields_ResolveLetters(t *testing.T) {
	header := make([]any, 166)
	header[sheet.ColumnIndex("C")] = "ID"
	header[sheet.ColumnIndex("K")] = "D_RSI"
	header[sheet.ColumnIndex("EL")] = "PE"
	header[sheet.ColumnIndex("FI")] = "RSI_ABOVE_78"

	f := DefaultCandidateFields().Resolve(header)
	assert.Equal(t, "ID", f.ID)
	assert.Equal(t, "D_RSI", f.RSI)
	assert.Equal(t, "PE", f.PERatio)
	assert.Equal(t, "RSI_ABOVE_78", f.Signal)
	assert.Equal(t, "", f.Sector, "blank header resolves to nothing")

	c := ToCandidate(sheet.Record{"ID": "TCS", "D_RSI": "41.5", "PE": "28.1", "RSI_ABOVE_78": "Y"}, f)
	assert.Equal(t, "N/A", c.Sector)
	assert.Equal(t, 41.5, c.RSI)
	require.NotNil(t, c.PERatio)
	assert.Equal(t, 28.1, *c.PERatio)
	assert.True(t, c.Signal)
}

func TestBuildStrengthSeries(t *testing.T) {
	recs := []sheet.Record{
		{ColDate: "14 Jan 2024", ColSwingRSI: "", ColNifty50Close: "21,500.5", ColMLAbove: "40"},
		{ColDate: "12 Jan 2024", ColSwingRSI: "62"},
		{ColDate: "not a date", ColSwingRSI: "70"},
		{ColDate: "Jan 13 2024", ColSwingRSI: "55"},
	}
	got := BuildStrengthSeries(recs, 2)
	require.Len(t, got, 2)
	assert.Equal(t, "13th Jan", got[0].Date)
	assert.Equal(t, 55.0, got[0].RSI)
	assert.Equal(t, "14th Jan", got[1].Date)
	assert.Equal(t, 50.0, got[1].RSI, "missing RSI reads as neutral")
	assert.Equal(t, 0.0, got[1].MomentumOscillator)
	assert.Equal(t, 21500.5, got[1].Nifty50Close)
	assert.Equal(t, 40.0, got[1].MLHigher)

	assert.Len(t, BuildStrengthSeries(recs, 0), 3)
}

func TestBuildMarketPosition(t *testing.T) {
	assert.Nil(t, BuildMarketPosition(nil, time.Now()))

	recs := []sheet.Record{
		{ColMLAbove: "1"},
		{
			ColMLAbove:         "60",
			ColMLBelow:         "55",
			ColFGAbove:         "30",
			ColSwingRSI:        "40",
			ColTotalSupport:    "12",
			ColTotalResistance: "8",
			ColReversalUp:      "20",
			ColReversalDown:    "10",
		},
	}
	p := BuildMarketPosition(recs, time.Date(2024, 3, 5, 9, 15, 0, 0, time.UTC))
	require.NotNil(t, p)
	assert.Equal(t, 60.0, p.Model.Bullish)
	assert.Equal(t, 0.0, p.Model.Neutral, "neutral share never goes negative")
	assert.Equal(t, 30.0, p.Balance.Above)
	assert.Equal(t, 60.0, p.Momentum.Bullish)
	assert.Equal(t, 40.0, p.Momentum.Bearish)
	assert.Equal(t, 8.0, p.SR.AtResistance)
	assert.Equal(t, 70.0, p.Reversal.Neutral)
	assert.Equal(t, "09:15:00", p.LastUpdate)

	recs[1][colTotalResistanceTy] = "9"
	p = BuildMarketPosition(recs, time.Now())
	assert.Equal(t, 9.0, p.SR.AtResistance)
}

func TestBuildTopMovers(t *testing.T) {
	mover := func(name, group string, change any) sheet.Record {
		return sheet.Record{ColStockName: name, ColGroup: group, ColChangePercent: change, ColClosePrice: "1,000"}
	}
	recs := []sheet.Record{
		mover("UP1", "LARGECAP", "2.5%"),
		mover("UP2", "MIDCAP", 4.0),
		mover("DOWN1", "LARGECAP", "-1.2"),
		mover("DOWN2", "MIDCAP", "-3"),
		mover("FLAT", "LARGECAP", "0"),
		mover("SMALL", "SMALLCAP", "9"),
		mover("BLANK", "LARGECAP", ""),
	}
	got := BuildTopMovers(recs, nil, 1)
	require.Len(t, got.TopGainers, 1)
	require.Len(t, got.TopLosers, 1)
	assert.Equal(t, "UP2", got.TopGainers[0].StockName)
	assert.Equal(t, "DOWN2", got.TopLosers[0].StockName)
	assert.Equal(t, 1000.0, got.TopLosers[0].ClosePrice)

	all := BuildTopMovers(recs, nil, 0)
	assert.Len(t, all.TopGainers, 2)
	assert.Equal(t, "DOWN1", all.TopLosers[1].StockName)
}
