package cleanup

import (
	"context"
	"log/slog"
	"time"

	"github.com/skillbridge/review-engine/internal/engine"
)

// Cleaner periodically releases review claims whose pending request
// outlived the document type's claim TTL
type Cleaner struct {
	engine   engine.Engine
	interval time.Duration
}

// NewCleaner creates a new claim expiry worker
func NewCleaner(eng engine.Engine, interval time.Duration) *Cleaner {
	if interval <= 0 {
		interval = time.Hour
	}

	return &Cleaner{
		engine:   eng,
		interval: interval,
	}
}

// Start begins the expiry worker in a goroutine
func (c *Cleaner) Start(ctx context.Context) {
	go c.run(ctx)
}

// run is the main loop for the expiry worker
func (c *Cleaner) run(ctx context.Context) {
	slog.Info("claim expiry worker started", "interval", c.interval)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	// Run immediately on start
	c.expire(ctx)

	for {
		select {
		case <-ctx.Done():
			slog.Info("claim expiry worker stopped")
			return
		case <-ticker.C:
			c.expire(ctx)
		}
	}
}

// expire runs one expiry pass
func (c *Cleaner) expire(ctx context.Context) {
	slog.Debug("running claim expiry cycle")

	released, err := c.engine.ExpireStaleClaims(ctx)
	if err != nil {
		slog.Error("claim expiry cycle failed", "error", err, "released_before_failure", released)
		return
	}

	if released > 0 {
		slog.Info("stale claims released", "count", released)
	} else {
		slog.Debug("no stale claims found")
	}
}
