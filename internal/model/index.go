package model

// IndexMember is one constituent of an index with its classification.
type IndexMember struct {
	ID         string  `json:"id"`
	StockName  string  `json:"stockName"`
	Price      float64 `json:"price"`
	Status     Status  `json:"status"`
	UpperRange float64 `json:"upperRange"`
	LowerRange float64 `json:"lowerRange"`
}

// IndexAggregate summarises how many members of an index are bullish.
type IndexAggregate struct {
	Name          string        `json:"name"`
	StocksCount   int           `json:"stocksCount"`
	BullishCount  int           `json:"bullishCount"`
	BearishCount  int           `json:"bearishCount"`
	StrengthScore int           `json:"strengthScore"`
	Stocks        []IndexMember `json:"stocks"`
}
