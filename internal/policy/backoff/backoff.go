// Package backoff retries transient failures with jittered exponential delays.
package backoff

import (
	"context"
	"crypto/rand"
	"fmt"
	"math"
	"math/big"
	"time"
)

// Policy decides how often and how long to wait between attempts.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	// Retryable decides whether an error is worth another attempt.
	Retryable func(error) bool
	sleep     func(context.Context, time.Duration) error
}

// NewExponential builds a policy with the default limits.
func NewExponential(retryable func(error) bool) *Policy {
	return &Policy{
		MaxAttempts: 3,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    10 * time.Second,
		Retryable:   retryable,
		sleep:       sleepCtx,
	}
}

// ShouldRetry reports whether attempt (1-based) may be followed by another.
func (p *Policy) ShouldRetry(err error, attempt int) bool {
	if err == nil || attempt >= p.MaxAttempts {
		return false
	}
	if p.Retryable == nil {
		return true
	}
	return p.Retryable(err)
}

// Backoff returns the wait before the attempt after attempt: half the
// exponential delay plus up to the other half as jitter.
func (p *Policy) Backoff(attempt int) time.Duration {
	delay := float64(p.BaseDelay) * math.Pow(2, float64(attempt-1))
	if delay > float64(p.MaxDelay) {
		delay = float64(p.MaxDelay)
	}
	return time.Duration(delay/2) + randomJitter(time.Duration(delay)/2)
}

// Do runs op until it succeeds, fails permanently, or attempts run out.
func (p *Policy) Do(ctx context.Context, op func(ctx context.Context) error) error {
	sleep := p.sleep
	if sleep == nil {
		sleep = sleepCtx
	}
	for attempt := 1; ; attempt++ {
		err := op(ctx)
		if !p.ShouldRetry(err, attempt) {
			return err
		}
		if sleepErr := sleep(ctx, p.Backoff(attempt)); sleepErr != nil {
			return fmt.Errorf("%w (retry aborted: %v)", err, sleepErr)
		}
	}
}

func randomJitter(limit time.Duration) time.Duration {
	if limit <= 0 {
		return 0
	}
	n, err := rand.Int(rand.Reader, big.NewInt(int64(limit)))
	if err != nil {
		return limit / 2
	}
	return time.Duration(n.Int64())
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
