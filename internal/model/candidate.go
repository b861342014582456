package model

// Candidate is one screened stock. Text fields default to "N/A" and numeric
// fields to 0 when the sheet cell is missing; PERatio is nil when unknown.
type Candidate struct {
	Sector        string   `json:"sector"`
	ID            string   `json:"id"`
	StockName     string   `json:"stockName"`
	CMP           float64  `json:"cmp"`
	RSI           float64  `json:"rsi"`
	DRSIDiff      float64  `json:"dRsiDiff"`
	WRSI          float64  `json:"wRsi"`
	DEMA200       float64  `json:"dEma200"`
	DEMA63        float64  `json:"dEma63"`
	PERatio       *float64 `json:"peRatio"`
	FiveYHigh     float64  `json:"fiveYHigh"`
	DEMA200Status string   `json:"dEma200Status"`
	AlgoB         string   `json:"algoB"`
	MBScore       float64  `json:"mbScore"`
	Signal        bool     `json:"signal"`
}
