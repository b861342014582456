package scheduler

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MarketPulse/internal/model"
	"MarketPulse/internal/notifier"
	"MarketPulse/internal/recorder"
)

type stubSource struct {
	mood    model.MoodSnapshot
	moodErr error
	dash    *model.Dashboard
}

func (s *stubSource) Mood(context.Context) (model.MoodSnapshot, error) { return s.mood, s.moodErr }
func (s *stubSource) Dashboard(context.Context) (*model.Dashboard, error) {
	if s.dash == nil {
		return nil, errors.New("no dashboard")
	}
	return s.dash, nil
}

type stubFanout struct {
	msgs   []notifier.Message
	report notifier.DeliveryReport
}

func (f *stubFanout) Broadcast(_ context.Context, msg notifier.Message) notifier.DeliveryReport {
	f.msgs = append(f.msgs, msg)
	return f.report
}

type stubChannel struct {
	mu   sync.Mutex
	sent []string
}

func (c *stubChannel) SendWithRetry(_ context.Context, text string, _ int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, text)
	return nil
}

var testNow = time.Date(2024, 3, 5, 9, 30, 0, 0, time.UTC)

func newTest(t *testing.T, src Source, fan Fanout, ch Channel) (*Scheduler, *recorder.SQLiteRecorder) {
	t.Helper()
	rec, err := recorder.NewSQLiteRecorder(filepath.Join(t.TempDir(), "pulse.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { rec.Close() })
	s := NewScheduler(context.Background(), src, fan, ch, rec, nil)
	s.SetClock(func() time.Time { return testNow })
	return s, rec
}

func TestBroadcastMood(t *testing.T) {
	src := &stubSource{mood: model.MoodSnapshot{Bullish: 50, Bearish: 30, Neutral: 20, Total: 10}}
	fan := &stubFanout{report: notifier.DeliveryReport{SentTo: 3, Success: 2, Failed: 1, Cleaned: 1, Errors: []string{"Token x: gone"}}}
	ch := &stubChannel{}
	s, rec := newTest(t, src, fan, ch)

	b, err := s.BroadcastMood(context.Background(), "api")
	require.NoError(t, err)
	assert.NotEmpty(t, b.ID)
	assert.True(t, b.Success)
	assert.Equal(t, model.StatusBullish, b.Mood.Dominant)
	assert.Equal(t, 50, b.Mood.Percent)
	assert.Equal(t, "Today's market is 50% BULLISH", b.Notification.Body)
	assert.Equal(t, 3, b.Notification.SentTo)
	assert.Equal(t, 1, b.Notification.CleanedTokens)
	assert.Equal(t, "2024-03-05T09:30:00Z", b.Timestamp)

	require.Len(t, fan.msgs, 1)
	assert.Equal(t, notifier.MoodTitle, fan.msgs[0].Title)

	moods, err := rec.ListMoods(10)
	require.NoError(t, err)
	require.Len(t, moods, 1)
	assert.Equal(t, "api", moods[0].Source)
	n, err := rec.CountBroadcasts()
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.Len(t, ch.sent, 1)
	assert.Contains(t, ch.sent[0], "Push: 2/3 delivered")
}

func TestBroadcastMood_SourceError(t *testing.T) {
	fan := &stubFanout{}
	s, rec := newTest(t, &stubSource{moodErr: errors.New("sheet down")}, fan, nil)

	_, err := s.BroadcastMood(context.Background(), "cron")
	require.Error(t, err)
	assert.Empty(t, fan.msgs, "nothing is pushed without a mood")
	n, err := rec.CountBroadcasts()
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestHandleCommand(t *testing.T) {
	src := &stubSource{
		mood: model.MoodSnapshot{Bullish: 20, Bearish: 60, Neutral: 20},
		dash: &model.Dashboard{IndexPerformance: []model.IndexAggregate{
			{Name: "BANK", StocksCount: 2, BullishCount: 2, StrengthScore: 100},
		}},
	}
	fan := &stubFanout{}
	s, _ := newTest(t, src, fan, &stubChannel{})
	ctx := context.Background()

	assert.Contains(t, s.HandleCommand(ctx, "/mood"), "<b>BEARISH</b> (60%)")
	assert.Contains(t, s.HandleCommand(ctx, "/mood@pulse_bot"), "BEARISH")
	assert.Contains(t, s.HandleCommand(ctx, "/indices"), "BANK: 100")
	assert.Equal(t, notifier.FormatHelp(), s.HandleCommand(ctx, "hello"))

	assert.Empty(t, s.HandleCommand(ctx, "/broadcast"))
	assert.Len(t, fan.msgs, 1)
}

func TestRegisterAll(t *testing.T) {
	s, _ := newTest(t, &stubSource{}, &stubFanout{}, nil)
	s.Warm = func(context.Context) error { return nil }
	require.NoError(t, s.RegisterAll("", "0 */1 * * * *"))
	assert.Len(t, s.Cron.Entries(), 2)

	s2, _ := newTest(t, &stubSource{}, &stubFanout{}, nil)
	assert.Error(t, s2.RegisterAll("not a cron", ""))
}

func TestBroadcastMood_WithoutFanout(t *testing.T) {
	ch := &stubChannel{}
	s, _ := newTest(t, &stubSource{mood: model.MoodSnapshot{Neutral: 100}}, nil, ch)

	b, err := s.BroadcastMood(context.Background(), "api")
	require.NoError(t, err)
	assert.Zero(t, b.Notification.SentTo)
	assert.Equal(t, []string{"push notifications are not configured"}, b.Notification.Errors)
	assert.Len(t, ch.sent, 1, "chat still gets the report")
}
