package notifier

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// Sender delivers one message to one device token.
type Sender interface {
	Send(ctx context.Context, token string, msg Message) error
}

// TokenStore is the device registry as seen by the dispatcher.
type TokenStore interface {
	Tokens() []string
	Remove(tokens ...string) (int, error)
}

// DeliveryReport summarises one fan-out.
type DeliveryReport struct {
	SentTo  int      `json:"sentTo"`
	Success int      `json:"successCount"`
	Failed  int      `json:"failedCount"`
	Cleaned int      `json:"cleanedTokens"`
	Errors  []string `json:"errors,omitempty"`
	// Invalid lists the tokens FCM rejected permanently, in send order.
	Invalid []string `json:"-"`
}

// DispatchOptions configures a Dispatcher.
type DispatchOptions struct {
	SendsPerSecond float64
	Workers        int
}

// Dispatcher fans a message out to every registered token. One token's
// failure never stops delivery to the others.
type Dispatcher struct {
	sender  Sender
	store   TokenStore
	limiter *rate.Limiter
	workers int
	log     *zap.Logger
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(sender Sender, store TokenStore, opts DispatchOptions, log *zap.Logger) *Dispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	perSecond := opts.SendsPerSecond
	if perSecond <= 0 {
		perSecond = 20
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = 4
	}
	return &Dispatcher{
		sender:  sender,
		store:   store,
		limiter: rate.NewLimiter(rate.Limit(perSecond), workers),
		workers: workers,
		log:     log,
	}
}

func shortToken(token string) string {
	if len(token) <= 20 {
		return token
	}
	return token[:20] + "..."
}

// SendOne delivers msg to a single token without touching the registry.
func (d *Dispatcher) SendOne(ctx context.Context, token string, msg Message) error {
	if err := d.limiter.Wait(ctx); err != nil {
		return err
	}
	return d.sender.Send(ctx, token, msg)
}

// Broadcast sends msg to every registered token, then removes the tokens FCM
// rejected.
func (d *Dispatcher) Broadcast(ctx context.Context, msg Message) DeliveryReport {
	tokens := d.store.Tokens()
	report := DeliveryReport{SentTo: len(tokens)}
	if len(tokens) == 0 {
		report.Errors = []string{"No tokens to send to"}
		return report
	}

	results := make([]error, len(tokens))
	g := new(errgroup.Group)
	g.SetLimit(d.workers)
	for i, token := range tokens {
		g.Go(func() error {
			results[i] = d.SendOne(ctx, token, msg)
			return nil
		})
	}
	_ = g.Wait()

	for i, err := range results {
		if err == nil {
			report.Success++
			continue
		}
		report.Failed++
		report.Errors = append(report.Errors, fmt.Sprintf("Token %s: %v", shortToken(tokens[i]), err))
		if errors.Is(err, ErrTokenInvalid) {
			report.Invalid = append(report.Invalid, tokens[i])
		}
	}

	if len(report.Invalid) > 0 {
		n, err := d.store.Remove(report.Invalid...)
		if err != nil {
			d.log.Error("remove invalid tokens", zap.Int("count", len(report.Invalid)), zap.Error(err))
		}
		report.Cleaned = n
	}

	d.log.Info("notification fan-out complete",
		zap.Int("sent_to", report.SentTo),
		zap.Int("success", report.Success),
		zap.Int("failed", report.Failed),
		zap.Int("cleaned", report.Cleaned))
	return report
}
