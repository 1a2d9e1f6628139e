package engine

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/amornj/medsim-sub000/internal/platform/metrics"
)

// DefaultTickRate is the authoritative update period. One consolidated tick
// replaces the separate drift/device/jitter cadences; each phase still reads
// only the previously committed state.
const DefaultTickRate = 2 * time.Second

// Clock drives one session's tick pipeline in real time. It does NOT know
// about vitals or equipment - only scheduling and cancellation.
type Clock struct {
	session  *Session
	logger   *zap.Logger
	period   time.Duration
	stopChan chan struct{}
	stopOnce sync.Once
}

// NewClock creates a clock for a session. A non-positive period falls back
// to DefaultTickRate.
func NewClock(session *Session, period time.Duration, logger *zap.Logger) *Clock {
	if period <= 0 {
		period = DefaultTickRate
	}
	return &Clock{
		session:  session,
		logger:   logger,
		period:   period,
		stopChan: make(chan struct{}),
	}
}

// Start begins the tick loop. Call in a goroutine. Stopping the context or
// calling Stop halts scheduling; a tick already in flight lands on a
// terminated session as a no-op, never a mutation.
func (c *Clock) Start(ctx context.Context) {
	c.logger.Debug("simulation clock started",
		zap.String("session_id", c.session.ID()),
		zap.Duration("period", c.period),
	)

	ticker := time.NewTicker(c.period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.logger.Debug("simulation clock stopped by context",
				zap.String("session_id", c.session.ID()))
			return
		case <-c.stopChan:
			c.logger.Debug("simulation clock stopped",
				zap.String("session_id", c.session.ID()))
			return
		case now := <-ticker.C:
			c.session.Advance(now)
			metrics.Get().RecordTick(time.Since(now))
			if c.session.State() != StateRunning {
				return
			}
		}
	}
}

// Stop halts the clock. Safe to call more than once.
func (c *Clock) Stop() {
	c.stopOnce.Do(func() { close(c.stopChan) })
}
