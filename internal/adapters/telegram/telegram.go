// Package telegram adapts the reminder engine to Telegram: it serves the
// command surface over long polling and implements the outbound Sender used
// by the notifier.
package telegram

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	tele "gopkg.in/telebot.v4"

	"remindbot/internal/remind"
	"remindbot/pkg/logx"
)

type Config struct {
	Token       string
	PollTimeout time.Duration
}

// Poker requests an immediate dispatch pass, so a freshly created reminder
// that is already due does not wait a full tick.
type Poker interface {
	Poke()
}

type Adapter struct {
	cfg Config
	log logx.Logger
	bot *tele.Bot

	svc   *remind.Service
	poker Poker

	runMu     sync.Mutex
	running   bool
	runCancel context.CancelFunc
	runWG     sync.WaitGroup
}

func New(cfg Config, log logx.Logger) (*Adapter, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	timeout := cfg.PollTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	b, err := tele.NewBot(tele.Settings{
		Token:  cfg.Token,
		Poller: &tele.LongPoller{Timeout: timeout},
		OnError: func(err error, _ tele.Context) {
			log.Error("telegram handler error", logx.Err(err))
		},
	})
	if err != nil {
		return nil, err
	}
	return &Adapter{cfg: cfg, log: log, bot: b}, nil
}

// Bind attaches the engine. Must be called before Start; the adapter is
// created first because the notifier chain needs it as Sender.
func (a *Adapter) Bind(svc *remind.Service, poker Poker) {
	a.svc = svc
	a.poker = poker
}

// Start registers the command handlers and begins long polling.
func (a *Adapter) Start(ctx context.Context) error {
	a.runMu.Lock()
	defer a.runMu.Unlock()
	if a.running {
		return nil
	}
	if a.svc == nil {
		return errors.New("telegram adapter started before Bind")
	}
	a.running = true

	rctx, cancel := context.WithCancel(ctx)
	a.runCancel = cancel
	a.registerHandlers(rctx)

	a.runWG.Add(1)
	go func() {
		defer a.runWG.Done()
		go func() {
			<-rctx.Done()
			a.bot.Stop()
		}()
		a.log.Info("polling started")
		a.bot.Start() // blocks until Stop
	}()
	return nil
}

// Stop halts polling. Never blocks shutdown on a pending long poll for more
// than a short grace window.
func (a *Adapter) Stop(ctx context.Context) error {
	a.runMu.Lock()
	cancel := a.runCancel
	a.runCancel = nil
	wasRunning := a.running
	a.running = false
	a.runMu.Unlock()

	if !wasRunning {
		return nil
	}
	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		a.runWG.Wait()
		close(done)
	}()

	grace := 2 * time.Second
	if dl, ok := ctx.Deadline(); ok {
		if rem := time.Until(dl); rem > 0 && rem < grace {
			grace = rem
		}
	}
	t := time.NewTimer(grace)
	defer t.Stop()

	select {
	case <-done:
		a.log.Info("polling stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		a.log.Warn("telegram stop grace elapsed, continuing shutdown")
		return nil
	}
}

// Send delivers one notification. Implements the notifier's Sender.
func (a *Adapter) Send(ctx context.Context, n remind.Notification) error {
	chatID, err := strconv.ParseInt(n.RoomID, 10, 64)
	if err != nil {
		return errors.New("room id is not a telegram chat id: " + n.RoomID)
	}
	opts := &tele.SendOptions{ParseMode: tele.ModeHTML}
	if id, err := strconv.Atoi(n.ReplyTo); err == nil && id > 0 {
		opts.ReplyTo = &tele.Message{ID: id, Chat: &tele.Chat{ID: chatID}}
	}
	_, err = a.bot.Send(&tele.Chat{ID: chatID}, renderNotification(n), opts)
	return err
}
