package recorder

import (
	"time"

	"MarketPulse/internal/model"
)

// MoodRecord is one stored mood evaluation.
type MoodRecord struct {
	ID         int64              `json:"id"`
	RecordedAt time.Time          `json:"recordedAt"`
	Source     string             `json:"source"`
	Snapshot   model.MoodSnapshot `json:"snapshot"`
}

// Recorder persists mood history and notification runs.
type Recorder interface {
	// RecordMood stores a snapshot. source names the trigger, e.g. "cron"
	// or "api".
	RecordMood(snap model.MoodSnapshot, source string) error
	RecordBroadcast(b *model.MoodBroadcast) error
	// ListMoods returns up to limit snapshots, newest first.
	ListMoods(limit int) ([]MoodRecord, error)
	Close() error
}
