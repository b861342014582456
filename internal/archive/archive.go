// Package archive exports pipeline results as Parquet files for offline
// analysis.
package archive

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/parquet-go/parquet-go"

	"MarketPulse/internal/model"
	"MarketPulse/internal/recorder"
)

// HistoryRecord is one symbol-day of the price history.
type HistoryRecord struct {
	Symbol        string  `parquet:"symbol"`
	Date          int64   `parquet:"date,timestamp(millisecond)"` // Unix ms, midnight UTC
	Sector        string  `parquet:"sector"`
	Price         float64 `parquet:"price"`
	RSI           float64 `parquet:"rsi"`
	Trend         string  `parquet:"trend"`
	Support       float64 `parquet:"support"`
	Resistance    float64 `parquet:"resistance"`
	MLFutPrice20D float64 `parquet:"ml_fut_price_20d"`
	WolfeD        float64 `parquet:"wolfe_d"`
	ProjFVG       float64 `parquet:"proj_fvg"`
}

// MoodRecord is one stored mood evaluation.
type MoodRecord struct {
	RecordedAt   int64  `parquet:"recorded_at,timestamp(millisecond)"`
	Source       string `parquet:"source"`
	DataDate     string `parquet:"data_date"`
	Bullish      int32  `parquet:"bullish"`
	Bearish      int32  `parquet:"bearish"`
	Neutral      int32  `parquet:"neutral"`
	BullishCount int32  `parquet:"bullish_count"`
	BearishCount int32  `parquet:"bearish_count"`
	NeutralCount int32  `parquet:"neutral_count"`
	Total        int32  `parquet:"total"`
}

// HistoryPath returns <dir>/history/<YYYY-MM-DD>.parquet.
func HistoryPath(dir string, asOf time.Time) string {
	return filepath.Join(dir, "history", asOf.UTC().Format("2006-01-02")+".parquet")
}

// MoodPath returns <dir>/mood/<YYYY-MM-DD>.parquet.
func MoodPath(dir string, asOf time.Time) string {
	return filepath.Join(dir, "mood", asOf.UTC().Format("2006-01-02")+".parquet")
}

// HistoryRecords flattens per-symbol histories into rows sorted by symbol,
// then date.
func HistoryRecords(stocks []model.StockSummary) []HistoryRecord {
	var out []HistoryRecord
	for _, s := range stocks {
		for _, p := range s.History {
			out = append(out, HistoryRecord{
				Symbol:        s.Symbol,
				Date:          p.Date.UnixMilli(),
				Sector:        s.Sector,
				Price:         p.Price,
				RSI:           p.RSI,
				Trend:         p.Trend,
				Support:       p.Support,
				Resistance:    p.Resistance,
				MLFutPrice20D: p.MLFutPrice20D,
				WolfeD:        p.WolfeD,
				ProjFVG:       p.ProjFVG,
			})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Symbol != out[j].Symbol {
			return out[i].Symbol < out[j].Symbol
		}
		return out[i].Date < out[j].Date
	})
	return out
}

// MoodRecords converts stored mood snapshots to rows.
func MoodRecords(moods []recorder.MoodRecord) []MoodRecord {
	out := make([]MoodRecord, 0, len(moods))
	for _, m := range moods {
		s := m.Snapshot
		out = append(out, MoodRecord{
			RecordedAt:   m.RecordedAt.UnixMilli(),
			Source:       m.Source,
			DataDate:     s.Date,
			Bullish:      int32(s.Bullish),
			Bearish:      int32(s.Bearish),
			Neutral:      int32(s.Neutral),
			BullishCount: int32(s.BullishCount),
			BearishCount: int32(s.BearishCount),
			NeutralCount: int32(s.NeutralCount),
			Total:        int32(s.Total),
		})
	}
	return out
}

// WriteHistory writes the dashboard's stock histories to path.
func WriteHistory(path string, stocks []model.StockSummary) (int, error) {
	records := HistoryRecords(stocks)
	if err := writeParquetFile(path, records); err != nil {
		return 0, fmt.Errorf("write history archive: %w", err)
	}
	return len(records), nil
}

// WriteMoods writes stored mood snapshots to path.
func WriteMoods(path string, moods []recorder.MoodRecord) (int, error) {
	records := MoodRecords(moods)
	if err := writeParquetFile(path, records); err != nil {
		return 0, fmt.Errorf("write mood archive: %w", err)
	}
	return len(records), nil
}

// ReadHistory reads a history archive back.
func ReadHistory(path string) ([]HistoryRecord, error) {
	return parquet.ReadFile[HistoryRecord](path)
}

// ReadMoods reads a mood archive back.
func ReadMoods(path string) ([]MoodRecord, error) {
	return parquet.ReadFile[MoodRecord](path)
}

func writeParquetFile[T any](path string, records []T) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return parquet.WriteFile(path, records)
}
