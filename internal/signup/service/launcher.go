package service

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

const defaultLaunchDelay = 5 * time.Second

// Launcher fans out signup workers. Launches within a batch are paced by a
// fixed delay so the mailbox and auth provider don't see a burst; the delay
// is a courtesy, not a correctness requirement. Workers run on the
// launcher's base context, which spans the process lifetime, so a control
// client going away never cancels an in-flight signup.
type Launcher struct {
	newWorker   func() *Worker
	baseCtx     context.Context
	launchDelay time.Duration
	logger      *slog.Logger

	wg       sync.WaitGroup
	inFlight atomic.Int64
}

// NewLauncher creates a launcher. newWorker must return a fresh worker per
// call; workers are single-use. A non-positive launchDelay falls back to the
// default.
func NewLauncher(baseCtx context.Context, newWorker func() *Worker, launchDelay time.Duration, logger *slog.Logger) *Launcher {
	if launchDelay <= 0 {
		launchDelay = defaultLaunchDelay
	}
	return &Launcher{
		newWorker:   newWorker,
		baseCtx:     baseCtx,
		launchDelay: launchDelay,
		logger:      logger,
	}
}

// Start schedules count signup attempts and returns immediately. Each
// attempt runs in its own goroutine; attempts after the first wait out the
// inter-launch delay before starting.
func (l *Launcher) Start(count int) {
	if count <= 0 {
		return
	}
	l.logger.Info("launching signup batch", slog.Int("count", count))

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		for i := 0; i < count; i++ {
			if i > 0 {
				if err := sleep(l.baseCtx, l.launchDelay); err != nil {
					l.logger.Warn("signup batch launch interrupted",
						slog.Int("launched", i), slog.Int("requested", count))
					return
				}
			}
			l.launchOne()
		}
	}()
}

func (l *Launcher) launchOne() {
	l.wg.Add(1)
	l.inFlight.Add(1)
	go func() {
		defer l.wg.Done()
		defer l.inFlight.Add(-1)

		worker := l.newWorker()
		if _, err := worker.Run(l.baseCtx); err != nil {
			// The worker already persisted and emitted the failure.
			return
		}
	}()
}

// InFlight returns how many workers are currently running.
func (l *Launcher) InFlight() int64 {
	return l.inFlight.Load()
}

// Wait blocks until every scheduled worker has reached a terminal state.
func (l *Launcher) Wait() {
	l.wg.Wait()
}
