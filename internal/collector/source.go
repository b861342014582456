package collector

import (
	"context"
	"errors"
	"fmt"

	"MarketPulse/internal/sheet"
)

var (
	// ErrUpstream is returned when a row source cannot be read.
	ErrUpstream = errors.New("upstream unavailable")
	// ErrUpstreamTimeout is a retryable ErrUpstream caused by the fetch deadline.
	ErrUpstreamTimeout = fmt.Errorf("%w: timeout", ErrUpstream)
	// ErrNoData means the range held fewer than a header and one data row.
	ErrNoData = errors.New("no data")
)

// Tab addresses one range of one spreadsheet.
type Tab struct {
	SpreadsheetID string `yaml:"spreadsheet_id" validate:"required"`
	Range         string `yaml:"range" validate:"required"`
}

func (t Tab) String() string { return t.SpreadsheetID + "/" + t.Range }

// RowSource reads a tab as a header row plus data rows.
type RowSource interface {
	Name() string
	FetchTable(ctx context.Context, tab Tab) (sheet.Table, error)
}

// tableFromRows splits raw rows into header and data. Anything shorter than
// two rows is ErrNoData.
func tableFromRows(rows [][]any) (sheet.Table, error) {
	if len(rows) < 2 {
		return sheet.Table{}, ErrNoData
	}
	return sheet.Table{Header: rows[0], Rows: rows[1:]}, nil
}
