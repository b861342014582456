package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"MarketPulse/internal/model"
)

func TestFormatMoodNotification(t *testing.T) {
	msg := FormatMoodNotification(model.MoodSnapshot{Bullish: 33, Bearish: 43, Neutral: 24})
	assert.Equal(t, MoodTitle, msg.Title)
	assert.Equal(t, "Today's market is 43% BEARISH", msg.Body)
	assert.Equal(t, "BEARISH", msg.Data["dominant"])
	assert.Equal(t, "/complogo.png", msg.Icon)
	assert.Equal(t, "/", msg.Link)
}

func TestMessageDefaults(t *testing.T) {
	msg := Message{}.WithDefaults()
	assert.Equal(t, DefaultTitle, msg.Title)
	assert.Equal(t, DefaultBody, msg.Body)
	assert.Equal(t, "/testingnoti.png", msg.Image)
}

func TestFormatReports(t *testing.T) {
	b := &model.MoodBroadcast{
		Mood: model.MoodSummary{Bullish: 50, Bearish: 30, Neutral: 20, Dominant: model.StatusBullish, Percent: 50},
		Notification: model.NotificationSummary{
			SentTo: 3, SuccessCount: 2, FailedCount: 1, CleanedTokens: 1,
		},
	}
	text := FormatMoodReport(b, time.Date(2024, 3, 5, 9, 0, 0, 0, time.UTC))
	assert.Contains(t, text, "2024-03-05 09:00")
	assert.Contains(t, text, "<b>BULLISH</b> (50%)")
	assert.Contains(t, text, "Push: 2/3 delivered, 1 stale tokens removed")

	aggs := []model.IndexAggregate{
		{Name: "BANK", StocksCount: 2, BullishCount: 2, StrengthScore: 100},
		{Name: "IT", StocksCount: 1, BearishCount: 1, StrengthScore: 0},
	}
	text = FormatIndexReport(aggs, 1)
	assert.Contains(t, text, "BANK: 100")
	assert.NotContains(t, text, "IT:")
	assert.Equal(t, "No index data available.", FormatIndexReport(nil, 5))
}

func TestFCMSender_Send(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/projects/demo/messages:send", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"name":"projects/demo/messages/1"}`))
	}))
	defer srv.Close()

	s, err := NewFCMSender(FCMOptions{BaseURL: srv.URL, ProjectID: "demo"}, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, s.Send(context.Background(), "tok-1", FormatMoodNotification(model.MoodSnapshot{Bullish: 100})))

	message := got["message"].(map[string]any)
	assert.Equal(t, "tok-1", message["token"])
	webpush := message["webpush"].(map[string]any)
	n := webpush["notification"].(map[string]any)
	assert.Equal(t, true, n["requireInteraction"])
	assert.Equal(t, "/complogo.png", n["badge"])
	assert.Equal(t, "/", webpush["fcm_options"].(map[string]any)["link"])
}

func TestFCMSender_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Message struct {
				Token string `json:"token"`
			} `json:"message"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Content-Type", "application/json")
		switch body.Message.Token {
		case "gone":
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":{"code":404,"message":"Requested entity was not found.","status":"NOT_FOUND",` +
				`"details":[{"@type":"type.googleapis.com/google.firebase.fcm.v1.FcmError","errorCode":"UNREGISTERED"}]}}`))
		case "garbled":
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":{"code":400,"message":"The registration token is not a valid FCM registration token","status":"INVALID_ARGUMENT"}}`))
		default:
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"error":{"code":500,"message":"internal","status":"INTERNAL"}}`))
		}
	}))
	defer srv.Close()

	s, err := NewFCMSender(FCMOptions{BaseURL: srv.URL, ProjectID: "demo"}, nil)
	require.NoError(t, err)

	err = s.Send(context.Background(), "gone", Message{})
	assert.ErrorIs(t, err, ErrTokenInvalid)
	err = s.Send(context.Background(), "garbled", Message{})
	assert.ErrorIs(t, err, ErrSend, "a bare INVALID_ARGUMENT may be a payload error")
	assert.NotErrorIs(t, err, ErrTokenInvalid)
	err = s.Send(context.Background(), "other", Message{})
	assert.ErrorIs(t, err, ErrSend)
	assert.NotErrorIs(t, err, ErrTokenInvalid)
	assert.Contains(t, err.Error(), "status 500")
}

func TestNewFCMSender_RequiresProject(t *testing.T) {
	_, err := NewFCMSender(FCMOptions{}, nil)
	assert.Error(t, err)
	_, err = NewFCMSender(FCMOptions{ProjectID: "p", Credentials: []byte("{")}, nil)
	assert.Error(t, err)
}

type fakeSender struct {
	mu   sync.Mutex
	errs map[string]error
	sent []string
}

func (f *fakeSender) Send(_ context.Context, token string, _ Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, token)
	return f.errs[token]
}

type memoryTokens struct {
	mu     sync.Mutex
	tokens []string
}

func (m *memoryTokens) Tokens() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.tokens...)
}

func (m *memoryTokens) Remove(tokens ...string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, drop := range tokens {
		for i, t := range m.tokens {
			if t == drop {
				m.tokens = append(m.tokens[:i], m.tokens[i+1:]...)
				n++
				break
			}
		}
	}
	return n, nil
}

func TestDispatcher_Broadcast(t *testing.T) {
	sender := &fakeSender{errs: map[string]error{
		"unregistered-token-abcdefghijklmnop": fmt.Errorf("%w: gone", ErrTokenInvalid),
		"flaky":                               fmt.Errorf("%w: status 500: internal", ErrSend),
	}}
	store := &memoryTokens{tokens: []string{"ok-1", "unregistered-token-abcdefghijklmnop", "flaky", "ok-2"}}
	d := NewDispatcher(sender, store, DispatchOptions{SendsPerSecond: 1000}, nil)

	report := d.Broadcast(context.Background(), FormatMoodNotification(model.MoodSnapshot{Bullish: 100}))
	assert.Equal(t, 4, report.SentTo)
	assert.Equal(t, 2, report.Success)
	assert.Equal(t, 2, report.Failed)
	assert.Equal(t, 1, report.Cleaned)
	assert.Equal(t, []string{"unregistered-token-abcdefghijklmnop"}, report.Invalid)
	require.Len(t, report.Errors, 2)
	assert.True(t, strings.HasPrefix(report.Errors[0], "Token unregistered-token-a...: "), report.Errors[0])
	assert.True(t, strings.HasPrefix(report.Errors[1], "Token flaky: "), report.Errors[1])

	assert.ElementsMatch(t, []string{"ok-1", "flaky", "ok-2"}, store.Tokens(), "transient failures keep their token")
	assert.Len(t, sender.sent, 4, "every token was attempted")
}

func TestDispatcher_PayloadRejectedKeepsTokens(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":400,"message":"Invalid value at 'message.webpush.fcm_options.link'","status":"INVALID_ARGUMENT"}}`))
	}))
	defer srv.Close()

	sender, err := NewFCMSender(FCMOptions{BaseURL: srv.URL, ProjectID: "demo"}, nil)
	require.NoError(t, err)
	store := &memoryTokens{tokens: []string{"tok-a", "tok-b", "tok-c"}}
	d := NewDispatcher(sender, store, DispatchOptions{SendsPerSecond: 1000}, nil)

	report := d.Broadcast(context.Background(), Message{Link: "not a url"})
	assert.Equal(t, 3, report.Failed)
	assert.Zero(t, report.Cleaned)
	assert.Empty(t, report.Invalid)
	assert.Equal(t, []string{"tok-a", "tok-b", "tok-c"}, store.Tokens())
}

func TestDispatcher_NoTokens(t *testing.T) {
	d := NewDispatcher(&fakeSender{}, &memoryTokens{}, DispatchOptions{}, nil)
	report := d.Broadcast(context.Background(), Message{})
	assert.Zero(t, report.SentTo)
	assert.Equal(t, []string{"No tokens to send to"}, report.Errors)
}

func TestTelegram_SendAndPoll(t *testing.T) {
	var mu sync.Mutex
	var sent []map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/botsecret/sendMessage":
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			mu.Lock()
			sent = append(sent, body)
			mu.Unlock()
			_, _ = w.Write([]byte(`{"ok":true}`))
		case "/botsecret/getUpdates":
			assert.Equal(t, "7", r.URL.Query().Get("offset"))
			_, _ = w.Write([]byte(`{"ok":true,"result":[` +
				`{"update_id":7,"message":{"text":" /mood ","chat":{"id":42}}},` +
				`{"update_id":8}]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	tg := NewTelegramNotifier("secret", "42", "", srv.URL, nil)
	require.NoError(t, tg.Send(context.Background(), "hello"))

	next, err := tg.pollOnce(context.Background(), 7, 0, func(_ context.Context, cmd string) string {
		return "reply to " + cmd
	})
	require.NoError(t, err)
	assert.Equal(t, 9, next)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, sent, 2)
	assert.Equal(t, map[string]string{"chat_id": "42", "text": "hello", "parse_mode": "HTML"}, sent[0])
	assert.Equal(t, "42", sent[1]["chat_id"])
	assert.Equal(t, "reply to /mood", sent[1]["text"])
}

func TestTelegram_PollIgnoresOtherChats(t *testing.T) {
	var mu sync.Mutex
	var replies int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/botsecret/sendMessage":
			mu.Lock()
			replies++
			mu.Unlock()
			_, _ = w.Write([]byte(`{"ok":true}`))
		case "/botsecret/getUpdates":
			_, _ = w.Write([]byte(`{"ok":true,"result":[` +
				`{"update_id":3,"message":{"text":"/broadcast","chat":{"id":99}}},` +
				`{"update_id":4,"message":{"text":"/broadcast","chat":{"id":-42}}}]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	tg := NewTelegramNotifier("secret", "42", "", srv.URL, nil)
	var handled []string
	next, err := tg.pollOnce(context.Background(), 3, 0, func(_ context.Context, cmd string) string {
		handled = append(handled, cmd)
		return "done"
	})
	require.NoError(t, err)
	assert.Equal(t, 5, next, "foreign updates are still acknowledged")
	assert.Empty(t, handled)
	mu.Lock()
	defer mu.Unlock()
	assert.Zero(t, replies)
}

func TestTelegram_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"ok":false}`))
	}))
	defer srv.Close()

	tg := NewTelegramNotifier("bad", "1", "", srv.URL, nil)
	err := tg.Send(context.Background(), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 401")
}

func TestWithRetry(t *testing.T) {
	calls := 0
	err := withRetry(context.Background(), zap.NewNop(), "op", 3, time.Millisecond, func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)

	fail := errors.New("permanent")
	err = withRetry(context.Background(), zap.NewNop(), "op", 1, time.Millisecond, func() error { return fail })
	assert.ErrorIs(t, err, fail)
	assert.Contains(t, err.Error(), "all 2 attempts exhausted")
}
