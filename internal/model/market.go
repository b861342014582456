package model

import "time"

// StockDayPoint is one day of indicator data for one symbol. Numeric fields
// default to 0 when the sheet cell is blank or unparseable.
type StockDayPoint struct {
	Date          time.Time `json:"-"`
	DateDisplay   string    `json:"date"`
	Price         float64   `json:"price"`
	RSI           float64   `json:"rsi"`
	Trend         string    `json:"trend"`
	Support       float64   `json:"support"`
	Resistance    float64   `json:"resistance"`
	MLFutPrice20D float64   `json:"mlFutPrice20d"`
	WolfeD        float64   `json:"wolfeD"`
	ProjFVG       float64   `json:"projFvg"`
	Sector        string    `json:"-"`
}

// StockHistory is a symbol's points in ascending date order. The last point
// is the latest known snapshot.
type StockHistory struct {
	Symbol string
	Points []StockDayPoint
}

// Latest returns the newest point, or false for an empty history.
func (h StockHistory) Latest() (StockDayPoint, bool) {
	if len(h.Points) == 0 {
		return StockDayPoint{}, false
	}
	return h.Points[len(h.Points)-1], true
}

// StockSummary is the per-symbol view the dashboard renders.
type StockSummary struct {
	Symbol                  string          `json:"symbol"`
	Name                    string          `json:"name"`
	Sector                  string          `json:"sector"`
	Price                   float64         `json:"price"`
	RSI                     float64         `json:"rsi"`
	Trend                   string          `json:"trend"`
	ResistanceSlopeDownward bool            `json:"resistanceSlopeDownward"`
	History                 []StockDayPoint `json:"history"`
}

// TopMover is one row of the gainers/losers tables.
type TopMover struct {
	ID            string  `json:"id"`
	StockName     string  `json:"stockName"`
	ChangePercent float64 `json:"changePercent"`
	ClosePrice    float64 `json:"closePrice"`
}

// TopMovers holds the day's biggest gainers and losers.
type TopMovers struct {
	TopGainers []TopMover `json:"topGainers"`
	TopLosers  []TopMover `json:"topLosers"`
}
