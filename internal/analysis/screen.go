package analysis

import (
	"errors"
	"fmt"
	"sort"

	"MarketPulse/internal/model"
	"MarketPulse/internal/sheet"
)

const notAvailable = "N/A"

// ErrUnknownRule is returned by FindRule for a name no rule carries.
var ErrUnknownRule = errors.New("unknown screening rule")

// CandidateFields maps candidate attributes to record keys. A value may be a
// header name or a "col:<letter>" reference resolved against the header row.
type CandidateFields struct {
	Sector        string `yaml:"sector"`
	ID            string `yaml:"id"`
	CMP           string `yaml:"cmp"`
	DRSIDiff      string `yaml:"d_rsi_diff"`
	RSI           string `yaml:"rsi"`
	WRSI          string `yaml:"w_rsi"`
	MBScore       string `yaml:"mb_score"`
	PERatio       string `yaml:"pe_ratio"`
	AlgoB         string `yaml:"algo_b"`
	DEMA200       string `yaml:"d_ema200"`
	DEMA200Status string `yaml:"d_ema200_status"`
	FiveYHigh     string `yaml:"five_y_high"`
	DEMA63        string `yaml:"d_ema63"`
	Signal        string `yaml:"signal"`
}

// DefaultCandidateFields addresses the screening columns of the current tab
// by letter.
func DefaultCandidateFields() CandidateFields {
	return CandidateFields{
		Sector:        "col:B",
		ID:            "col:C",
		CMP:           "col:E",
		DRSIDiff:      "col:J",
		RSI:           "col:K",
		WRSI:          "col:Q",
		MBScore:       "col:BS",
		PERatio:       "col:EL",
		AlgoB:         "col:EM",
		DEMA200:       "col:EO",
		DEMA200Status: "col:EP",
		FiveYHigh:     "col:ER",
		DEMA63:        "col:ES",
		Signal:        "col:FI",
	}
}

// Resolve returns a copy with every column reference replaced by the header
// name it points at.
func (f CandidateFields) Resolve(header []any) CandidateFields {
	r := func(ref string) string { return sheet.ResolveColumn(header, ref) }
	return CandidateFields{
		Sector:        r(f.Sector),
		ID:            r(f.ID),
		CMP:           r(f.CMP),
		DRSIDiff:      r(f.DRSIDiff),
		RSI:           r(f.RSI),
		WRSI:          r(f.WRSI),
		MBScore:       r(f.MBScore),
		PERatio:       r(f.PERatio),
		AlgoB:         r(f.AlgoB),
		DEMA200:       r(f.DEMA200),
		DEMA200Status: r(f.DEMA200Status),
		FiveYHigh:     r(f.FiveYHigh),
		DEMA63:        r(f.DEMA63),
		Signal:        r(f.Signal),
	}
}

// WithDefaults returns a copy with every empty field taken from def.
func (f CandidateFields) WithDefaults(def CandidateFields) CandidateFields {
	or := func(v, d string) string {
		if v == "" {
			return d
		}
		return v
	}
	return CandidateFields{
		Sector:        or(f.Sector, def.Sector),
		ID:            or(f.ID, def.ID),
		CMP:           or(f.CMP, def.CMP),
		DRSIDiff:      or(f.DRSIDiff, def.DRSIDiff),
		RSI:           or(f.RSI, def.RSI),
		WRSI:          or(f.WRSI, def.WRSI),
		MBScore:       or(f.MBScore, def.MBScore),
		PERatio:       or(f.PERatio, def.PERatio),
		AlgoB:         or(f.AlgoB, def.AlgoB),
		DEMA200:       or(f.DEMA200, def.DEMA200),
		DEMA200Status: or(f.DEMA200Status, def.DEMA200Status),
		FiveYHigh:     or(f.FiveYHigh, def.FiveYHigh),
		DEMA63:        or(f.DEMA63, def.DEMA63),
		Signal:        or(f.Signal, def.Signal),
	}
}

// ToCandidate coerces one record. Unresolved fields read as missing.
func ToCandidate(rec sheet.Record, f CandidateFields) model.Candidate {
	num := func(key string) float64 {
		if key == "" {
			return 0
		}
		return rec.Number(key)
	}
	id := textOr(rec, f.ID, notAvailable)
	c := model.Candidate{
		Sector:        textOr(rec, f.Sector, notAvailable),
		ID:            id,
		StockName:     id,
		CMP:           num(f.CMP),
		RSI:           num(f.RSI),
		DRSIDiff:      num(f.DRSIDiff),
		WRSI:          num(f.WRSI),
		DEMA200:       num(f.DEMA200),
		DEMA63:        num(f.DEMA63),
		FiveYHigh:     num(f.FiveYHigh),
		DEMA200Status: textOr(rec, f.DEMA200Status, notAvailable),
		AlgoB:         textOr(rec, f.AlgoB, notAvailable),
		MBScore:       num(f.MBScore),
	}
	if f.PERatio != "" {
		c.PERatio = sheet.ToOptionalNumber(rec.Get(f.PERatio))
	}
	if f.Signal != "" {
		c.Signal = rec.Bool(f.Signal)
	}
	return c
}

// Rule is a named candidate predicate.
type Rule struct {
	Name  string
	Match func(model.Candidate) bool
}

// RuleSpec is the configurable form of a Rule. Zero-valued conditions are
// not checked.
type RuleSpec struct {
	Name          string   `yaml:"name" validate:"required"`
	MinMBScore    *float64 `yaml:"min_mb_score"`
	RequireSignal bool     `yaml:"require_signal"`
	EMAStatus     string   `yaml:"ema_status"`
	MaxRSI        *float64 `yaml:"max_rsi"`
}

// Rule compiles the settings into a predicate. MaxRSI is exclusive.
func (s RuleSpec) Rule() Rule {
	rs := s
	return Rule{
		Name: s.Name,
		Match: func(c model.Candidate) bool {
			if rs.MinMBScore != nil && c.MBScore < *rs.MinMBScore {
				return false
			}
			if rs.RequireSignal && !c.Signal {
				return false
			}
			if rs.EMAStatus != "" && sheet.ToUpper(c.DEMA200Status) != sheet.ToUpper(rs.EMAStatus) {
				return false
			}
			if rs.MaxRSI != nil && c.RSI >= *rs.MaxRSI {
				return false
			}
			return true
		},
	}
}

func ptr(v float64) *float64 { return &v }

// DefaultRules are the two screens offered by the multibagger view.
var DefaultRules = []RuleSpec{
	{Name: "rsi-strength", RequireSignal: true},
	{Name: "momentum-above-200ema", MinMBScore: ptr(2), RequireSignal: true, EMAStatus: "ABOVE", MaxRSI: ptr(60)},
}

// DefaultRuleName is used when a request names no rule.
const DefaultRuleName = "momentum-above-200ema"

// FindRule looks a rule up by name.
func FindRule(specs []RuleSpec, name string) (Rule, error) {
	for _, s := range specs {
		if s.Name == name {
			return s.Rule(), nil
		}
	}
	return Rule{}, fmt.Errorf("%w %q", ErrUnknownRule, name)
}

// Screen coerces every record, keeps those matching rule and orders them by
// RSI ascending. Equal RSI keeps input order.
func Screen(records []sheet.Record, rule Rule, fields CandidateFields) []model.Candidate {
	out := make([]model.Candidate, 0)
	for _, rec := range records {
		c := ToCandidate(rec, fields)
		if rule.Match != nil && !rule.Match(c) {
			continue
		}
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].RSI < out[j].RSI })
	return out
}
