// Package notifier wraps the chat transport with a shared send-rate limit
// and bounded retry. It is synchronous on purpose: the dispatcher needs the
// final send outcome to decide whether a reminder advances or stays pending.
package notifier

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"remindbot/internal/remind"
	"remindbot/pkg/logx"
)

// Sender performs one delivery attempt over the transport.
type Sender interface {
	Send(ctx context.Context, n remind.Notification) error
}

type Config struct {
	RatePerSec int           // shared outbound cap, default 20
	RetryMax   int           // extra attempts after the first, default 2
	RetryBase  time.Duration // backoff doubles from here, default 500ms
}

type Notifier struct {
	sender    Sender
	limiter   *rate.Limiter
	retryMax  int
	retryBase time.Duration
	log       logx.Logger
}

func New(sender Sender, cfg Config, log logx.Logger) *Notifier {
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 20
	}
	if cfg.RetryMax < 0 {
		cfg.RetryMax = 0
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = 500 * time.Millisecond
	}
	return &Notifier{
		sender:    sender,
		limiter:   rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec),
		retryMax:  cfg.RetryMax,
		retryBase: cfg.RetryBase,
		log:       log,
	}
}

// Notify delivers one notification, retrying transient failures with
// exponential backoff. Every attempt takes a token from the shared limiter.
func (n *Notifier) Notify(ctx context.Context, msg remind.Notification) error {
	var last error
	for attempt := 0; attempt <= n.retryMax; attempt++ {
		if attempt > 0 {
			backoff := n.retryBase << (attempt - 1)
			n.log.Warn("send failed, retrying",
				logx.String("room", msg.RoomID),
				logx.Int("attempt", attempt),
				logx.Duration("backoff", backoff),
				logx.Err(last),
			)
			t := time.NewTimer(backoff)
			select {
			case <-ctx.Done():
				t.Stop()
				return ctx.Err()
			case <-t.C:
			}
		}
		if err := n.limiter.Wait(ctx); err != nil {
			return err
		}
		if last = n.sender.Send(ctx, msg); last == nil {
			return nil
		}
	}
	return fmt.Errorf("send to room %s failed after %d attempts: %w", msg.RoomID, n.retryMax+1, last)
}
