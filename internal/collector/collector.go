package collector

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"MarketPulse/internal/analysis"
	"MarketPulse/internal/model"
	"MarketPulse/internal/sheet"
)

// MockSource serves fixed tables keyed by range, for development and tests.
type MockSource struct {
	mu     sync.Mutex
	Tables map[string]sheet.Table
	Errors map[string]error
	// Calls counts FetchTable invocations per range.
	Calls map[string]int
}

func (m *MockSource) Name() string { return "mock" }

func (m *MockSource) FetchTable(ctx context.Context, tab Tab) (sheet.Table, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Calls == nil {
		m.Calls = make(map[string]int)
	}
	m.Calls[tab.Range]++
	if err := ctx.Err(); err != nil {
		return sheet.Table{}, err
	}
	if err, ok := m.Errors[tab.Range]; ok {
		return sheet.Table{}, err
	}
	t, ok := m.Tables[tab.Range]
	if !ok || len(t.Rows) == 0 {
		return sheet.Table{}, ErrNoData
	}
	return t, nil
}

// Tabs names the three ranges one pipeline pass reads.
type Tabs struct {
	Master  Tab
	Current Tab
	Swing   Tab
}

// Options carries the tunables of one pipeline pass.
type Options struct {
	Tabs           Tabs
	Universe       int
	MoodGroups     []string
	HistoryGroups  []string
	HistoryDays    int
	StrengthPoints int
	MoversLimit    int
	Indices        []analysis.IndexColumn
	Rules          []analysis.RuleSpec
	Fields         analysis.CandidateFields
	Fallbacks      []sheet.PositionalFallback
}

// DefaultOptions returns the standard tabs of spreadsheet ids and the
// default analysis settings.
func DefaultOptions(masterID, swingID string) Options {
	return Options{
		Tabs: Tabs{
			Master:  Tab{SpreadsheetID: masterID, Range: "lasa-master!A:FJ"},
			Current: Tab{SpreadsheetID: masterID, Range: "'current'!A1:FJ"},
			Swing:   Tab{SpreadsheetID: swingID, Range: "DATA"},
		},
		Universe:       analysis.DefaultMoodUniverse,
		MoodGroups:     analysis.DefaultMoodGroups,
		HistoryGroups:  analysis.DefaultHistoryGroups,
		HistoryDays:    analysis.DefaultHistoryDays,
		StrengthPoints: analysis.DefaultStrengthPoints,
		MoversLimit:    analysis.DefaultMoversLimit,
		Indices:        analysis.DefaultIndexColumns,
		Rules:          analysis.DefaultRules,
		Fields:         analysis.DefaultCandidateFields(),
		Fallbacks:      sheet.LegacyFallbacks,
	}
}

// Collector runs the fetch-normalize-aggregate pipeline. It holds no state
// between calls; caching is the caller's concern.
type Collector struct {
	source RowSource
	screen RowSource
	opts   Options
	norm   *sheet.Normalizer
	log    *zap.Logger
	now    func() time.Time
}

// NewCollector creates a Collector. screen reads the current tab for the
// screener and defaults to source.
func NewCollector(source, screen RowSource, opts Options, log *zap.Logger) *Collector {
	if screen == nil {
		screen = source
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Collector{
		source: source,
		screen: screen,
		opts:   opts,
		norm:   &sheet.Normalizer{Fallbacks: opts.Fallbacks},
		log:    log,
		now:    time.Now,
	}
}

// SetClock overrides the time source.
func (c *Collector) SetClock(now func() time.Time) { c.now = now }

// Rules returns the configured screening rules.
func (c *Collector) Rules() []analysis.RuleSpec { return c.opts.Rules }

func (c *Collector) fetch(ctx context.Context, src RowSource, tab Tab) ([]sheet.Record, []any, error) {
	t, err := src.FetchTable(ctx, tab)
	if err != nil {
		return nil, nil, err
	}
	recs, stats := c.norm.Normalize(t)
	for key, hits := range stats.FallbackHits {
		if hits > 0 {
			c.log.Info("legacy positional column used",
				zap.String("tab", tab.String()),
				zap.String("key", key),
				zap.Int("rows", hits))
		}
	}
	return recs, t.Header, nil
}

// Dashboard runs a full pass over the master, swing and current tabs. Only a
// master tab failure is fatal; the others degrade into Warnings.
func (c *Collector) Dashboard(ctx context.Context) (*model.Dashboard, error) {
	now := c.now().UTC()
	d := &model.Dashboard{
		MarketStrength:   []model.StrengthPoint{},
		StockData:        []model.StockSummary{},
		TopMovers:        model.TopMovers{TopGainers: []model.TopMover{}, TopLosers: []model.TopMover{}},
		IndexPerformance: []model.IndexAggregate{},
	}
	warn := func(format string, args ...any) {
		msg := fmt.Sprintf(format, args...)
		d.Warnings = append(d.Warnings, msg)
		c.log.Warn("dashboard degraded", zap.String("reason", msg))
	}

	master, _, err := c.fetch(ctx, c.source, c.opts.Tabs.Master)
	if err != nil && !errors.Is(err, ErrNoData) {
		return nil, fmt.Errorf("fetch master tab: %w", err)
	}

	history := analysis.BuildHistory(master, analysis.HistoryOptions{
		AsOf:       now,
		WindowDays: c.opts.HistoryDays,
		Groups:     c.opts.HistoryGroups,
	})
	d.StockData = history.Summaries()
	c.log.Info("history built",
		zap.Int("rows", len(master)),
		zap.Int("parsed", history.Parsed),
		zap.Int("skipped", history.Skipped),
		zap.Int("symbols", len(d.StockData)))

	swing, _, err := c.fetch(ctx, c.source, c.opts.Tabs.Swing)
	switch {
	case err == nil:
		d.MarketStrength = analysis.BuildStrengthSeries(swing, c.opts.StrengthPoints)
		d.MarketPosition = analysis.BuildMarketPosition(swing, now)
	case errors.Is(err, ErrNoData):
	default:
		warn("swing tab unavailable: %v", err)
	}

	current, _, err := c.fetch(ctx, c.source, c.opts.Tabs.Current)
	if err != nil && !errors.Is(err, ErrNoData) {
		warn("current tab unavailable: %v", err)
	}

	var moodDate string
	if !history.LatestDate.IsZero() {
		moodDate = sheet.FormatDisplayDate(history.LatestDate)
	}
	mood, err := analysis.AggregateMood(current, analysis.MoodOptions{
		Universe: c.opts.Universe,
		Groups:   c.opts.MoodGroups,
		Date:     moodDate,
	})
	if err != nil {
		warn("market mood: %v", err)
	} else {
		d.MarketMood = &mood
	}

	d.TopMovers = analysis.BuildTopMovers(current, c.opts.MoodGroups, c.opts.MoversLimit)

	indexSource := current
	if len(indexSource) == 0 && !history.LatestDate.IsZero() {
		indexSource = analysis.RowsOn(master, history.LatestDate)
	}
	d.IndexPerformance = analysis.BuildIndexAggregates(indexSource, c.opts.Indices)

	d.LastUpdated = now.Format(time.RFC3339)
	return d, nil
}

// Mood classifies the current tab.
func (c *Collector) Mood(ctx context.Context) (model.MoodSnapshot, error) {
	current, _, err := c.fetch(ctx, c.source, c.opts.Tabs.Current)
	if err != nil {
		return model.MoodSnapshot{}, fmt.Errorf("fetch current tab: %w", err)
	}
	return analysis.AggregateMood(current, analysis.MoodOptions{
		Universe: c.opts.Universe,
		Groups:   c.opts.MoodGroups,
		Date:     sheet.FormatDisplayDate(c.now().UTC()),
	})
}

// Candidates screens the current tab with the named rule. An empty tab
// yields an empty list.
func (c *Collector) Candidates(ctx context.Context, ruleName string) ([]model.Candidate, error) {
	if ruleName == "" {
		ruleName = analysis.DefaultRuleName
	}
	rule, err := analysis.FindRule(c.opts.Rules, ruleName)
	if err != nil {
		return nil, err
	}

	recs, header, err := c.fetch(ctx, c.screen, c.opts.Tabs.Current)
	if errors.Is(err, ErrNoData) {
		return []model.Candidate{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetch current tab: %w", err)
	}
	out := analysis.Screen(recs, rule, c.opts.Fields.Resolve(header))
	c.log.Info("candidates screened",
		zap.String("rule", rule.Name),
		zap.Int("rows", len(recs)),
		zap.Int("matched", len(out)))
	return out, nil
}
