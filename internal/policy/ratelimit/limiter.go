// Package ratelimit paces calls to APIs that punish bursts.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Config holds pacing configuration.
type Config struct {
	// MinInterval is the floor between consecutive requests.
	MinInterval time.Duration
	// BatchSize and BatchPause add a longer pause after every BatchSize items.
	BatchSize  int
	BatchPause time.Duration
	// OnDelay observes every non-trivial wait.
	OnDelay func(time.Duration)
}

// Limiter enforces a minimum spacing between requests plus periodic pauses.
type Limiter struct {
	mu      sync.Mutex
	limiter *rate.Limiter
	cfg     Config
	items   int
	sleep   func(context.Context, time.Duration) error
}

// New creates a Limiter. A non-positive MinInterval disables the floor.
func New(cfg Config) *Limiter {
	limit := rate.Inf
	if cfg.MinInterval > 0 {
		limit = rate.Every(cfg.MinInterval)
	}
	return &Limiter{
		limiter: rate.NewLimiter(limit, 1),
		cfg:     cfg,
		sleep:   sleepCtx,
	}
}

// Wait blocks until the next request may be sent.
func (l *Limiter) Wait(ctx context.Context) error {
	start := time.Now()
	if err := l.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	l.observe(time.Since(start))
	return nil
}

// ItemDone counts a finished item and pauses for BatchPause after every
// BatchSize items.
func (l *Limiter) ItemDone(ctx context.Context) error {
	l.mu.Lock()
	l.items++
	pause := l.cfg.BatchSize > 0 && l.cfg.BatchPause > 0 && l.items%l.cfg.BatchSize == 0
	l.mu.Unlock()
	if !pause {
		return nil
	}
	if err := l.sleep(ctx, l.cfg.BatchPause); err != nil {
		return err
	}
	l.observe(l.cfg.BatchPause)
	return nil
}

func (l *Limiter) observe(d time.Duration) {
	if l.cfg.OnDelay != nil && d > time.Millisecond {
		l.cfg.OnDelay(d)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("batch pause: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}
