package model

import "strings"

// StrengthPoint is one day of the market strength series from the swing sheet.
type StrengthPoint struct {
	Date               string  `json:"date"`
	RSI                float64 `json:"rsi"`
	MLHigher           float64 `json:"ml_higher"`
	MLLower            float64 `json:"ml_lower"`
	FGAbove            float64 `json:"fg_above"`
	FGBelow            float64 `json:"fg_below"`
	FGNet              float64 `json:"fg_net"`
	Nifty50Close       float64 `json:"nifty50_close"`
	TotalScore         float64 `json:"total_score"`
	MLThreshold        float64 `json:"ml_threshold"`
	MomentumOscillator float64 `json:"momentum_oscillator"`
}

// Split is a three-way percentage split.
type Split struct {
	Bullish float64 `json:"bullish"`
	Bearish float64 `json:"bearish"`
	Neutral float64 `json:"neutral"`
}

// MarketPosition is the latest swing-sheet breakdown shown beside the mood.
type MarketPosition struct {
	Model   Split `json:"model"`
	Balance struct {
		Above float64 `json:"above"`
		Below float64 `json:"below"`
	} `json:"balance"`
	Momentum struct {
		Bullish float64 `json:"bullish"`
		Bearish float64 `json:"bearish"`
	} `json:"momentum"`
	SR struct {
		AtSupport    float64 `json:"atSupport"`
		AtResistance float64 `json:"atResistance"`
		Neutral      float64 `json:"neutral"`
	} `json:"sr"`
	Reversal struct {
		Up      float64 `json:"up"`
		Down    float64 `json:"down"`
		Neutral float64 `json:"neutral"`
	} `json:"reversal"`
	LastUpdate string `json:"lastUpdate"`
}

// Dashboard is the payload of one full pipeline pass.
type Dashboard struct {
	MarketMood       *MoodSnapshot    `json:"marketMood"`
	MarketStrength   []StrengthPoint  `json:"marketStrength"`
	MarketPosition   *MarketPosition  `json:"marketPosition"`
	StockData        []StockSummary   `json:"stockData"`
	TopMovers        TopMovers        `json:"topMovers"`
	IndexPerformance []IndexAggregate `json:"indexPerformance"`
	LastUpdated      string           `json:"lastUpdated"`
	Warnings         []string         `json:"warnings,omitempty"`
}

// Stock looks up a symbol in StockData, ignoring case.
func (d *Dashboard) Stock(symbol string) (StockSummary, bool) {
	for _, s := range d.StockData {
		if strings.EqualFold(s.Symbol, symbol) {
			return s, true
		}
	}
	return StockSummary{}, false
}
