package sheet

import (
	"strings"
)

// Table is one fetched range: a header row plus the data rows below it.
type Table struct {
	Header []any
	Rows   [][]any
}

// Len returns the number of data rows.
func (t Table) Len() int { return len(t.Rows) }

// Record is a data row keyed by trimmed header name. A key whose row ended
// early maps to nil; blank headers never produce a key.
type Record map[string]any

// Get returns the raw cell for key, or nil.
func (r Record) Get(key string) any { return r[key] }

// Has reports whether the header row defined key.
func (r Record) Has(key string) bool {
	_, ok := r[key]
	return ok
}

func (r Record) Blank(key string) bool     { return IsBlank(r[key]) }
func (r Record) String(key string) string  { return ToString(r[key]) }
func (r Record) Upper(key string) string   { return ToUpper(r[key]) }
func (r Record) Number(key string) float64 { return ToNumber(r[key]) }
func (r Record) Bool(key string) bool      { return ToBool(r[key]) }

// PositionalFallback fills Key from a fixed column index when the header
// for that column was renamed or removed upstream.
type PositionalFallback struct {
	Key   string `yaml:"key"`
	Index int    `yaml:"index"`
}

// LegacyFallbacks are the historical STATUS (BG) and GROUP (S) positions.
// This is a compatibility shim: NormalizeStats counts every use so it can be
// removed once the sheets carry both headers again.
var LegacyFallbacks = []PositionalFallback{
	{Key: "STATUS", Index: 58},
	{Key: "GROUP", Index: 18},
}

// NormalizeStats describes one Normalize pass.
type NormalizeStats struct {
	Rows         int
	FallbackHits map[string]int
}

// Normalizer zips header names onto rows.
type Normalizer struct {
	Fallbacks []PositionalFallback
}

// NewNormalizer returns a Normalizer with the legacy fallbacks enabled.
func NewNormalizer() *Normalizer {
	return &Normalizer{Fallbacks: LegacyFallbacks}
}

// Normalize maps every data row of t to a Record.
func (n *Normalizer) Normalize(t Table) ([]Record, NormalizeStats) {
	stats := NormalizeStats{Rows: len(t.Rows), FallbackHits: make(map[string]int)}

	headers := make([]string, len(t.Header))
	for i, h := range t.Header {
		headers[i] = ToString(h)
	}

	records := make([]Record, 0, len(t.Rows))
	for _, row := range t.Rows {
		rec := make(Record, len(headers))
		for i, h := range headers {
			if h == "" {
				continue
			}
			if i < len(row) {
				rec[h] = row[i]
			} else {
				rec[h] = nil
			}
		}
		for _, fb := range n.Fallbacks {
			if fb.Index < 0 || fb.Index >= len(row) || row[fb.Index] == nil {
				continue
			}
			if !rec.Blank(fb.Key) {
				continue
			}
			rec[fb.Key] = row[fb.Index]
			stats.FallbackHits[fb.Key]++
		}
		records = append(records, rec)
	}
	return records, stats
}

// Normalize uses the default legacy fallbacks.
func Normalize(t Table) []Record {
	recs, _ := NewNormalizer().Normalize(t)
	return recs
}

// ColumnIndex converts a column letter ("A", "BS", "FJ") to a zero-based
// index. It returns -1 for anything that is not a letter reference.
func ColumnIndex(col string) int {
	col = strings.ToUpper(strings.TrimSpace(col))
	if col == "" {
		return -1
	}
	idx := 0
	for _, ch := range col {
		if ch < 'A' || ch > 'Z' {
			return -1
		}
		idx = idx*26 + int(ch-'A'+1)
	}
	return idx - 1
}

// ColumnName is the inverse of ColumnIndex.
func ColumnName(idx int) string {
	if idx < 0 {
		return ""
	}
	var b []byte
	for idx >= 0 {
		b = append([]byte{byte('A' + idx%26)}, b...)
		idx = idx/26 - 1
	}
	return string(b)
}

// ColumnRefPrefix marks a reference to a column by letter instead of name.
const ColumnRefPrefix = "col:"

// ResolveColumn turns a field reference into a header name. Plain names are
// returned unchanged; "col:EL" becomes the trimmed header text at column EL,
// or "" when that header is blank or out of range.
func ResolveColumn(header []any, ref string) string {
	if !strings.HasPrefix(ref, ColumnRefPrefix) {
		return ref
	}
	idx := ColumnIndex(strings.TrimPrefix(ref, ColumnRefPrefix))
	if idx < 0 || idx >= len(header) {
		return ""
	}
	return ToString(header[idx])
}
