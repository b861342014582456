package notifier

import (
	"context"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// CommandHandler is called when a user command is received.
type CommandHandler func(ctx context.Context, command string) string

// telegramUpdate represents a Telegram update from long polling.
type telegramUpdate struct {
	UpdateID int `json:"update_id"`
	Message  *struct {
		Text string `json:"text"`
		Chat struct {
			ID int64 `json:"id"`
		} `json:"chat"`
	} `json:"message"`
}

type updatesResponse struct {
	OK     bool             `json:"ok"`
	Result []telegramUpdate `json:"result"`
}

// pollOnce fetches one batch of updates starting at offset and answers each
// command. It returns the next offset.
func (t *TelegramNotifier) pollOnce(ctx context.Context, offset int, wait time.Duration, handler CommandHandler) (int, error) {
	var result updatesResponse
	_, err := t.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"offset":  strconv.Itoa(offset),
			"timeout": strconv.Itoa(int(wait.Seconds())),
		}).
		SetResult(&result).
		Get("/bot{token}/getUpdates")
	if err != nil {
		return offset, err
	}

	for _, update := range result.Result {
		offset = update.UpdateID + 1
		if update.Message == nil || update.Message.Text == "" {
			continue
		}
		text := strings.TrimSpace(update.Message.Text)
		from := strconv.FormatInt(update.Message.Chat.ID, 10)
		// Commands can trigger a broadcast, so only the configured chat
		// may issue them.
		if from != t.ChatID {
			t.log.Warn("ignoring command from unknown chat",
				zap.String("chat_id", from),
				zap.String("command", text))
			continue
		}
		t.log.Info("received command", zap.String("command", text))
		reply := handler(ctx, text)
		if reply == "" {
			continue
		}
		if err := t.sendTo(ctx, t.ChatID, reply); err != nil {
			t.log.Error("send reply", zap.Error(err))
		}
	}
	return offset, nil
}

// StartPolling begins long-polling for Telegram commands. Blocks until ctx is cancelled.
func (t *TelegramNotifier) StartPolling(ctx context.Context, handler CommandHandler) {
	offset := 0
	for {
		select {
		case <-ctx.Done():
			t.log.Info("telegram polling stopped")
			return
		default:
		}

		next, err := t.pollOnce(ctx, offset, 25*time.Second, handler)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			t.log.Warn("polling request failed", zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(5 * time.Second):
			}
			continue
		}
		offset = next
	}
}
