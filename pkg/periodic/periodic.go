// Package periodic implements the ticker-driven background loop idiom
// shared by the scheduler and reconciler of the system this module was
// adapted from: start a goroutine that runs a function on a fixed
// interval until stopped. The metrics Collector runs on this loop.
package periodic

import (
	"time"

	"github.com/rs/zerolog"
)

// Loop runs fn every interval on its own goroutine until Stop is called.
// A run that is still in flight when the next tick fires is skipped for
// that tick rather than overlapped.
type Loop struct {
	interval time.Duration
	fn       func() error
	logger   zerolog.Logger
	name     string

	stopCh chan struct{}
	doneCh chan struct{}
}

// New returns a Loop that calls fn every interval, logging any error fn
// returns under logger tagged with name.
func New(name string, interval time.Duration, fn func() error, logger zerolog.Logger) *Loop {
	return &Loop{
		name:     name,
		interval: interval,
		fn:       fn,
		logger:   logger,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start begins the ticker loop on a new goroutine.
func (l *Loop) Start() {
	go l.run()
}

// Stop signals the loop to stop and blocks until its goroutine exits.
func (l *Loop) Stop() {
	close(l.stopCh)
	<-l.doneCh
}

func (l *Loop) run() {
	defer close(l.doneCh)

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	l.logger.Info().Str("loop", l.name).Msg("periodic loop started")

	for {
		select {
		case <-ticker.C:
			if err := l.fn(); err != nil {
				l.logger.Error().Err(err).Str("loop", l.name).Msg("periodic loop cycle failed")
			}
		case <-l.stopCh:
			l.logger.Info().Str("loop", l.name).Msg("periodic loop stopped")
			return
		}
	}
}

// RunOnce runs fn immediately, outside of the ticker schedule, useful for
// an initial pass before the first tick (e.g. an orphan sweep at startup).
func (l *Loop) RunOnce() error {
	return l.fn()
}
