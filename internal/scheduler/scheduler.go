// Package scheduler runs the dispatch loop: a fixed-cadence ticker with an
// optional poke channel for immediate passes. The tick interval is a
// deployment knob; correctness only needs ticks to keep coming.
package scheduler

import (
	"context"
	"time"

	"remindbot/pkg/logx"
)

// Dispatcher fires everything that is due. Implemented by the remind
// service.
type Dispatcher interface {
	DispatchDue(ctx context.Context) error
}

type Scheduler struct {
	dispatcher Dispatcher
	interval   time.Duration
	log        logx.Logger

	poke    chan struct{}
	setIntv chan time.Duration
}

func New(d Dispatcher, interval time.Duration, log logx.Logger) *Scheduler {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Scheduler{
		dispatcher: d,
		interval:   interval,
		log:        log,
		poke:       make(chan struct{}, 1),
		setIntv:    make(chan time.Duration, 1),
	}
}

// Poke requests an immediate dispatch pass. Non-blocking; concurrent pokes
// coalesce into one pass.
func (s *Scheduler) Poke() {
	select {
	case s.poke <- struct{}{}:
	default:
	}
}

// SetInterval changes the tick cadence of a running loop. Non-blocking;
// the latest value wins.
func (s *Scheduler) SetInterval(d time.Duration) {
	if d <= 0 {
		return
	}
	for {
		select {
		case s.setIntv <- d:
			return
		case <-s.setIntv:
		}
	}
}

// Run blocks until ctx is cancelled. A pass runs immediately on start so
// reminders that came due while the process was down fire without waiting a
// full interval.
func (s *Scheduler) Run(ctx context.Context) error {
	s.log.Info("scheduler started", logx.Duration("interval", s.interval))
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.dispatch(ctx)
	for {
		select {
		case <-ctx.Done():
			s.log.Info("scheduler stopped")
			return ctx.Err()
		case d := <-s.setIntv:
			if d != s.interval {
				s.interval = d
				ticker.Reset(d)
				s.log.Info("tick interval changed", logx.Duration("interval", d))
			}
		case <-ticker.C:
			s.dispatch(ctx)
		case <-s.poke:
			s.dispatch(ctx)
		}
	}
}

func (s *Scheduler) dispatch(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if err := s.dispatcher.DispatchDue(ctx); err != nil && ctx.Err() == nil {
		s.log.Error("dispatch pass failed", logx.Err(err))
	}
}
