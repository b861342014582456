package recorder

import (
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"MarketPulse/internal/model"
)

// DefaultListLimit caps ListMoods when the caller passes no limit.
const DefaultListLimit = 30

// SQLiteRecorder persists history to a SQLite database.
type SQLiteRecorder struct {
	db  *sql.DB
	mu  sync.Mutex
	log *zap.Logger
	now func() time.Time
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string, log *zap.Logger) (*SQLiteRecorder, error) {
	if log == nil {
		log = zap.NewNop()
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL lets the HTTP history endpoint read while the scheduler writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db, log: log, now: time.Now}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Info("sqlite recorder opened", zap.String("path", dbPath))
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS mood_snapshots (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp     INTEGER NOT NULL,
			source        TEXT NOT NULL,
			data_date     TEXT,
			bullish       INTEGER,
			bearish       INTEGER,
			neutral       INTEGER,
			bullish_count INTEGER,
			bearish_count INTEGER,
			neutral_count INTEGER,
			total         INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_mood_ts ON mood_snapshots(timestamp)`,

		`CREATE TABLE IF NOT EXISTS broadcast_runs (
			run_id         TEXT PRIMARY KEY,
			timestamp      INTEGER NOT NULL,
			success        INTEGER NOT NULL,
			dominant       TEXT,
			percent        INTEGER,
			title          TEXT,
			body           TEXT,
			sent_to        INTEGER,
			success_count  INTEGER,
			failed_count   INTEGER,
			cleaned_tokens INTEGER,
			errors         TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_broadcast_ts ON broadcast_runs(timestamp)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

func (r *SQLiteRecorder) RecordMood(snap model.MoodSnapshot, source string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`INSERT INTO mood_snapshots
		(timestamp, source, data_date, bullish, bearish, neutral,
		 bullish_count, bearish_count, neutral_count, total)
		VALUES (?,?,?,?,?,?,?,?,?,?)`,
		r.now().UnixMilli(), source, snap.Date,
		snap.Bullish, snap.Bearish, snap.Neutral,
		snap.BullishCount, snap.BearishCount, snap.NeutralCount, snap.Total,
	)
	if err != nil {
		return fmt.Errorf("insert mood snapshot: %w", err)
	}
	return nil
}

// RecordBroadcast stores a notification run. A run without an ID gets one.
func (r *SQLiteRecorder) RecordBroadcast(b *model.MoodBroadcast) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	n := b.Notification
	_, err := r.db.Exec(`INSERT INTO broadcast_runs
		(run_id, timestamp, success, dominant, percent, title, body,
		 sent_to, success_count, failed_count, cleaned_tokens, errors)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
		b.ID, r.now().UnixMilli(), b.Success, string(b.Mood.Dominant), b.Mood.Percent,
		n.Title, n.Body, n.SentTo, n.SuccessCount, n.FailedCount, n.CleanedTokens,
		strings.Join(n.Errors, "\n"),
	)
	if err != nil {
		return fmt.Errorf("insert broadcast run: %w", err)
	}
	return nil
}

func (r *SQLiteRecorder) ListMoods(limit int) ([]MoodRecord, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	rows, err := r.db.Query(`SELECT id, timestamp, source, data_date,
		bullish, bearish, neutral, bullish_count, bearish_count, neutral_count, total
		FROM mood_snapshots ORDER BY timestamp DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query mood snapshots: %w", err)
	}
	defer rows.Close()

	out := make([]MoodRecord, 0, limit)
	for rows.Next() {
		var (
			rec  MoodRecord
			ts   int64
			date sql.NullString
			s    = &rec.Snapshot
		)
		if err := rows.Scan(&rec.ID, &ts, &rec.Source, &date,
			&s.Bullish, &s.Bearish, &s.Neutral,
			&s.BullishCount, &s.BearishCount, &s.NeutralCount, &s.Total); err != nil {
			return nil, fmt.Errorf("scan mood snapshot: %w", err)
		}
		rec.RecordedAt = time.UnixMilli(ts).UTC()
		s.Date = date.String
		out = append(out, rec)
	}
	return out, rows.Err()
}

// CountBroadcasts returns how many notification runs are stored.
func (r *SQLiteRecorder) CountBroadcasts() (int, error) {
	var n int
	if err := r.db.QueryRow(`SELECT COUNT(*) FROM broadcast_runs`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count broadcast runs: %w", err)
	}
	return n, nil
}

func (r *SQLiteRecorder) Close() error {
	r.log.Info("closing sqlite recorder")
	return r.db.Close()
}
