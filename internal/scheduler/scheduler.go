package scheduler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"MarketPulse/internal/model"
	"MarketPulse/internal/notifier"
	"MarketPulse/internal/recorder"
)

// DefaultMoodCron runs the mood broadcast every five hours.
const DefaultMoodCron = "0 0 */5 * * *"

// Source computes the data the jobs and commands report on.
type Source interface {
	Mood(ctx context.Context) (model.MoodSnapshot, error)
	Dashboard(ctx context.Context) (*model.Dashboard, error)
}

// Channel is a chat channel that receives the mood report.
type Channel interface {
	SendWithRetry(ctx context.Context, text string, maxRetries int) error
}

// Fanout pushes a message to every registered device.
type Fanout interface {
	Broadcast(ctx context.Context, msg notifier.Message) notifier.DeliveryReport
}

// Scheduler manages the cron jobs and the shared mood broadcast.
type Scheduler struct {
	Cron     *cron.Cron
	Source   Source
	Fanout   Fanout
	Channel  Channel
	Recorder recorder.Recorder
	// Warm refreshes the result cache. Optional.
	Warm func(ctx context.Context) error
	Ctx  context.Context

	now func() time.Time
	log *zap.Logger
}

// NewScheduler creates a new Scheduler. fan and channel may be nil when push
// or chat delivery is not configured.
func NewScheduler(ctx context.Context, src Source, fan Fanout, channel Channel, rec recorder.Recorder, log *zap.Logger) *Scheduler {
	if log == nil {
		log = zap.NewNop()
	}
	if rec == nil {
		rec = recorder.NewNoopRecorder()
	}
	return &Scheduler{
		Cron:     cron.New(cron.WithSeconds()),
		Source:   src,
		Fanout:   fan,
		Channel:  channel,
		Recorder: rec,
		Ctx:      ctx,
		now:      time.Now,
		log:      log,
	}
}

// SetClock overrides the time source.
func (s *Scheduler) SetClock(now func() time.Time) { s.now = now }

// RegisterAll registers the mood broadcast and, when warmCron is set, the
// cache warm-up.
func (s *Scheduler) RegisterAll(moodCron, warmCron string) error {
	if moodCron == "" {
		moodCron = DefaultMoodCron
	}
	if _, err := s.Cron.AddFunc(moodCron, s.moodTask); err != nil {
		return fmt.Errorf("register mood task: %w", err)
	}
	if warmCron != "" && s.Warm != nil {
		if _, err := s.Cron.AddFunc(warmCron, s.warmTask); err != nil {
			return fmt.Errorf("register warm-up task: %w", err)
		}
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	s.log.Info("scheduler started", zap.Int("jobs", len(s.Cron.Entries())))
}

// Stop stops the cron scheduler gracefully.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	s.log.Info("scheduler stopped")
}

func (s *Scheduler) moodTask() {
	if _, err := s.BroadcastMood(s.Ctx, "cron"); err != nil {
		s.log.Error("scheduled mood broadcast", zap.Error(err))
		s.trySend(fmt.Sprintf("❌ Market mood broadcast failed: %v", err))
	}
}

func (s *Scheduler) warmTask() {
	start := s.now()
	if err := s.Warm(s.Ctx); err != nil {
		s.log.Warn("cache warm-up failed", zap.Error(err))
		return
	}
	s.log.Info("cache warmed", zap.Duration("elapsed", s.now().Sub(start)))
}

// BroadcastMood computes the current mood, pushes it to every registered
// device, records the run and posts the report to the chat channel. trigger
// names what started the run in the mood history.
func (s *Scheduler) BroadcastMood(ctx context.Context, trigger string) (*model.MoodBroadcast, error) {
	snap, err := s.Source.Mood(ctx)
	if err != nil {
		return nil, fmt.Errorf("compute mood: %w", err)
	}

	msg := notifier.FormatMoodNotification(snap)
	report := notifier.DeliveryReport{Errors: []string{"push notifications are not configured"}}
	if s.Fanout != nil {
		report = s.Fanout.Broadcast(ctx, msg)
	}

	dominant, pct := snap.Dominant()
	now := s.now()
	b := &model.MoodBroadcast{
		ID:      uuid.NewString(),
		Success: true,
		Mood: model.MoodSummary{
			Bullish:  snap.Bullish,
			Bearish:  snap.Bearish,
			Neutral:  snap.Neutral,
			Dominant: dominant,
			Percent:  pct,
		},
		Notification: model.NotificationSummary{
			Title:         msg.Title,
			Body:          msg.Body,
			SentTo:        report.SentTo,
			SuccessCount:  report.Success,
			FailedCount:   report.Failed,
			CleanedTokens: report.Cleaned,
			Errors:        report.Errors,
		},
		Timestamp: now.UTC().Format(time.RFC3339),
	}

	if err := s.Recorder.RecordMood(snap, trigger); err != nil {
		s.log.Error("record mood", zap.Error(err))
	}
	if err := s.Recorder.RecordBroadcast(b); err != nil {
		s.log.Error("record broadcast", zap.Error(err))
	}
	s.trySend(notifier.FormatMoodReport(b, now))

	s.log.Info("market mood broadcast",
		zap.String("run", b.ID),
		zap.String("trigger", trigger),
		zap.String("dominant", string(dominant)),
		zap.Int("percent", pct),
		zap.Int("sent_to", report.SentTo),
		zap.Int("failed", report.Failed))
	return b, nil
}

// HandleCommand processes a chat command and returns a reply.
func (s *Scheduler) HandleCommand(ctx context.Context, command string) string {
	cmd, _, _ := strings.Cut(strings.TrimSpace(command), " ")
	// Group chats address commands as /mood@botname.
	cmd, _, _ = strings.Cut(cmd, "@")

	switch strings.ToLower(cmd) {
	case "/mood":
		snap, err := s.Source.Mood(ctx)
		if err != nil {
			return fmt.Sprintf("❌ Could not compute market mood: %v", err)
		}
		dominant, pct := snap.Dominant()
		return notifier.FormatMoodReport(&model.MoodBroadcast{Mood: model.MoodSummary{
			Bullish: snap.Bullish, Bearish: snap.Bearish, Neutral: snap.Neutral,
			Dominant: dominant, Percent: pct,
		}}, s.now())
	case "/indices":
		d, err := s.Source.Dashboard(ctx)
		if err != nil {
			return fmt.Sprintf("❌ Could not load indices: %v", err)
		}
		return notifier.FormatIndexReport(d.IndexPerformance, 10)
	case "/broadcast":
		if _, err := s.BroadcastMood(ctx, "telegram"); err != nil {
			return fmt.Sprintf("❌ Broadcast failed: %v", err)
		}
		return ""
	default:
		return notifier.FormatHelp()
	}
}

func (s *Scheduler) trySend(text string) {
	if s.Channel == nil {
		return
	}
	if err := s.Channel.SendWithRetry(s.Ctx, text, 3); err != nil {
		s.log.Error("send chat message", zap.Error(err))
	}
}
