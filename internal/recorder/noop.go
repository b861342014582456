package recorder

import "MarketPulse/internal/model"

// NoopRecorder is a no-op implementation used when SQLite is not configured.
type NoopRecorder struct{}

func NewNoopRecorder() *NoopRecorder { return &NoopRecorder{} }

func (n *NoopRecorder) RecordMood(_ model.MoodSnapshot, _ string) error { return nil }
func (n *NoopRecorder) RecordBroadcast(_ *model.MoodBroadcast) error    { return nil }
func (n *NoopRecorder) ListMoods(_ int) ([]MoodRecord, error)           { return []MoodRecord{}, nil }
func (n *NoopRecorder) Close() error                                    { return nil }
