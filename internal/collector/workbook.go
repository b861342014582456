package collector

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"MarketPulse/internal/sheet"
)

// ErrWorkbookMissing is returned when the local workbook file does not exist.
var ErrWorkbookMissing = errors.New("workbook not found")

// WorkbookSource reads a local xlsx export. The sheet at SheetIndex is used
// when the workbook has one, otherwise the sheet named SheetName. The tab
// passed to FetchTable is ignored: a workbook holds a single tab of interest.
type WorkbookSource struct {
	Path       string
	SheetIndex int
	SheetName  string
}

// NewWorkbookSource returns a source reading the third sheet, or "current".
func NewWorkbookSource(path string) *WorkbookSource {
	return &WorkbookSource{Path: path, SheetIndex: 2, SheetName: "current"}
}

func (w *WorkbookSource) Name() string { return "workbook" }

func (w *WorkbookSource) FetchTable(ctx context.Context, _ Tab) (sheet.Table, error) {
	if err := ctx.Err(); err != nil {
		return sheet.Table{}, err
	}
	if _, err := os.Stat(w.Path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return sheet.Table{}, fmt.Errorf("%w: %s", ErrWorkbookMissing, w.Path)
		}
		return sheet.Table{}, fmt.Errorf("%w: stat workbook: %w", ErrUpstream, err)
	}

	f, err := excelize.OpenFile(w.Path)
	if err != nil {
		return sheet.Table{}, fmt.Errorf("%w: open workbook: %w", ErrUpstream, err)
	}
	defer f.Close()

	name := w.SheetName
	if list := f.GetSheetList(); w.SheetIndex >= 0 && w.SheetIndex < len(list) {
		name = list[w.SheetIndex]
	}
	rows, err := f.GetRows(name)
	if err != nil {
		return sheet.Table{}, fmt.Errorf("%w: read sheet %q: %w", ErrUpstream, name, err)
	}

	raw := make([][]any, len(rows))
	for i, row := range rows {
		cells := make([]any, len(row))
		for j, c := range row {
			if c != "" {
				cells[j] = c
			}
		}
		raw[i] = cells
	}
	return tableFromRows(raw)
}

// ChainSource tries each source in order and returns the first table read
// successfully. ErrNoData from a source is final.
type ChainSource struct {
	Sources []RowSource
	Log     *zap.Logger
}

func (c *ChainSource) Name() string { return "chain" }

func (c *ChainSource) FetchTable(ctx context.Context, tab Tab) (sheet.Table, error) {
	log := c.Log
	if log == nil {
		log = zap.NewNop()
	}
	var lastErr error
	for _, src := range c.Sources {
		t, err := src.FetchTable(ctx, tab)
		if err == nil || errors.Is(err, ErrNoData) {
			return t, err
		}
		log.Debug("row source unavailable, trying next",
			zap.String("source", src.Name()),
			zap.String("tab", tab.String()),
			zap.Error(err))
		lastErr = err
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("%w: no sources configured", ErrUpstream)
	}
	return sheet.Table{}, lastErr
}
