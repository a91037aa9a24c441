package backoff

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errTransient = errors.New("transient")

func noSleep(p *Policy) *Policy {
	p.sleep = func(context.Context, time.Duration) error { return nil }
	return p
}

func TestBackoffBounds(t *testing.T) {
	t.Parallel()

	p := NewExponential(nil)
	for attempt := 1; attempt <= 8; attempt++ {
		full := p.BaseDelay << (attempt - 1)
		if full > p.MaxDelay {
			full = p.MaxDelay
		}
		got := p.Backoff(attempt)
		assert.GreaterOrEqual(t, got, full/2)
		assert.LessOrEqual(t, got, full)
	}
}

func TestDoRetriesUntilSuccess(t *testing.T) {
	t.Parallel()

	calls := 0
	err := noSleep(NewExponential(nil)).Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return errTransient
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoStopsOnPermanent(t *testing.T) {
	t.Parallel()

	permanent := errors.New("permanent")
	calls := 0
	p := noSleep(NewExponential(func(err error) bool { return errors.Is(err, errTransient) }))
	err := p.Do(context.Background(), func(context.Context) error {
		calls++
		return permanent
	})
	assert.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, calls)
}

func TestDoGivesUpAfterMaxAttempts(t *testing.T) {
	t.Parallel()

	calls := 0
	err := noSleep(NewExponential(nil)).Do(context.Background(), func(context.Context) error {
		calls++
		return errTransient
	})
	assert.ErrorIs(t, err, errTransient)
	assert.Equal(t, 3, calls)
}

func TestDoAbortsOnCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := NewExponential(nil)
	err := p.Do(ctx, func(context.Context) error { return errTransient })
	assert.ErrorIs(t, err, errTransient)
	assert.Contains(t, err.Error(), "retry aborted")
}
