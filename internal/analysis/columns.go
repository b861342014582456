// Package analysis derives per-stock and market-wide views from normalized
// sheet records. Every function takes a record snapshot and returns freshly
// allocated values; nothing here performs I/O or keeps state between calls.
package analysis

import (
	"strings"

	"MarketPulse/internal/sheet"
)

// Header names shared by the lasa-master and current tabs.
const (
	ColDate                    = "DATE"
	ColStockName               = "STOCK_NAME"
	ColID                      = "ID"
	ColGroup                   = "GROUP"
	ColSector                  = "SECTOR"
	ColClosePrice              = "CLOSE_PRICE"
	ColSupport                 = "SUPPORT"
	ColResistance              = "RESISTANCE"
	ColRSI                     = "RSI"
	ColDailyTrend              = "DAILY_TREND"
	ColMLFutPrice20D           = "ML_FUT_PRICE_20D"
	ColWolfeD                  = "WOLFE_D"
	ColProjFVG                 = "PROJ_FVG"
	ColResistanceSlopeDownward = "RESISTANCE_SLOPE_DOWNWARD"
	ColChangePercent           = "CHANGE_PERCENT"
)

// Membership groups.
const (
	GroupLargeCap = "LARGECAP"
	GroupMidCap   = "MIDCAP"
	GroupIndex    = "INDEX"
)

var (
	// DefaultHistoryGroups are the groups kept in per-symbol history.
	DefaultHistoryGroups = []string{GroupLargeCap, GroupMidCap, GroupIndex}
	// DefaultMoodGroups are the groups counted in the market mood.
	DefaultMoodGroups = []string{GroupLargeCap, GroupMidCap}
)

type groupSet map[string]bool

func newGroupSet(groups []string) groupSet {
	s := make(groupSet, len(groups))
	for _, g := range groups {
		s[strings.ToUpper(strings.TrimSpace(g))] = true
	}
	return s
}

func (s groupSet) contains(rec sheet.Record) bool {
	return s[rec.Upper(ColGroup)]
}

// textOr returns the trimmed cell text, or def for a blank cell.
func textOr(rec sheet.Record, key, def string) string {
	if key == "" || rec.Blank(key) {
		return def
	}
	return rec.String(key)
}
