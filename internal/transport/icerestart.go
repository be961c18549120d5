package transport

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

const (
	initialRestartDelay = 2 * time.Second
	maxRestartDelay      = 30 * time.Second
)

// restartFunc performs one restartIce attempt: ask the SFU for new ICE
// parameters and hand them to the underlying ICE transport. It reports
// whether the attempt succeeded.
type restartFunc func(ctx context.Context) error

// iceRestartController implements the exact algorithm of spec §4.2
// "restartIce": at most one restart in flight per transport, exponential
// backoff starting at 2s and doubling on failure, capped at 30s (the cap
// spec §5 explicitly permits an implementer to add).
type iceRestartController struct {
	mu         sync.Mutex
	timer      *time.Timer
	restarting atomic.Bool
	delay      time.Duration
	logger     *slog.Logger
	do         restartFunc
}

func newICERestartController(logger *slog.Logger, do restartFunc) *iceRestartController {
	if logger == nil {
		logger = slog.Default()
	}
	return &iceRestartController{delay: initialRestartDelay, logger: logger, do: do}
}

// Schedule arms a restart attempt after the current delay, clearing any
// previously pending timer first (spec: "clear any pending timer").
func (c *iceRestartController) Schedule() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.timer != nil {
		c.timer.Stop()
	}
	delay := c.delay
	c.timer = time.AfterFunc(delay, c.fire)
}

// Cancel clears any pending restart timer. Called on any
// connectionstatechange other than disconnected/failed.
func (c *iceRestartController) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

func (c *iceRestartController) fire() {
	if !c.restarting.CompareAndSwap(false, true) {
		return // a restart is already in flight; re-entry suppressed
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := c.do(ctx)

	c.restarting.Store(false)

	c.mu.Lock()
	defer c.mu.Unlock()

	if err != nil {
		c.logger.Warn("ice restart failed, backing off", "error", err, "nextDelay", c.delay*2)
		c.delay = minDuration(c.delay*2, maxRestartDelay)
		c.timer = time.AfterFunc(c.delay, c.fire)
		return
	}

	c.logger.Debug("ice restart succeeded")
	c.delay = initialRestartDelay
}

func minDuration(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}
