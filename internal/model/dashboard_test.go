package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDashboardStock(t *testing.T) {
	d := &Dashboard{StockData: []StockSummary{{Symbol: "Bajaj-Auto", Price: 9000}}}

	s, ok := d.Stock("BAJAJ-AUTO")
	assert.True(t, ok)
	assert.Equal(t, 9000.0, s.Price)

	_, ok = d.Stock("BAJAJ")
	assert.False(t, ok)
}
