package fetcher

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/atlas-archive/atlas/internal/errhandler"
)

// Attempt statuses.
const (
	AttemptSuccess   = "success"
	AttemptTruncated = "truncated"
	AttemptFailed    = "failed"
)

// TruncationChecker decides whether fetched HTML is usable.
type TruncationChecker interface {
	IsTruncated(html string) bool
}

// Attempt records one strategy invocation.
type Attempt struct {
	Strategy string
	Status   string
	Error    string
}

// Outcome is the orchestrator's answer: the chosen result plus the attempt log.
type Outcome struct {
	Result           Result
	Attempts         []Attempt
	SuccessfulMethod string
	// IsTruncated is false for a clean success; otherwise it is true when any
	// attempt returned truncated content.
	IsTruncated bool
	// Permanent is true when every attempt failed with a non-retryable error
	// or an archive miss.
	Permanent bool
	Duration  time.Duration
}

// Clean reports a non-truncated success.
func (o Outcome) Clean() bool {
	return o.Result.Success && !o.Result.IsTruncated
}

// TotalAttempts is the number of strategies actually invoked.
func (o Outcome) TotalAttempts() int { return len(o.Attempts) }

// AttemptObserver is notified after each attempt.
type AttemptObserver func(strategy, status string)

// Orchestrator walks strategies in order until one yields clean content.
type Orchestrator struct {
	strategies []Strategy
	checker    TruncationChecker
	logger     *zap.Logger
	observe    AttemptObserver
	now        func() time.Time
}

// NewOrchestrator builds an Orchestrator. A nil observer is ignored.
func NewOrchestrator(strategies []Strategy, checker TruncationChecker, logger *zap.Logger, observe AttemptObserver) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		strategies: strategies,
		checker:    checker,
		logger:     logger,
		observe:    observe,
		now:        time.Now,
	}
}

// Strategies returns the configured cascade names.
func (o *Orchestrator) Strategies() []string {
	names := make([]string, 0, len(o.strategies))
	for _, s := range o.strategies {
		names = append(names, s.Name())
	}
	return names
}

// Fetch runs the cascade. The first non-truncated success wins; otherwise
// the last attempted result is returned.
func (o *Orchestrator) Fetch(ctx context.Context, rawURL string) Outcome {
	start := o.now()
	var (
		out       Outcome
		last      Result
		attempted bool
		permanent = true
	)

	for _, strategy := range o.strategies {
		if err := ctx.Err(); err != nil {
			if !attempted {
				last = failure(strategy.Name(), err, nil)
				attempted = true
			}
			permanent = false
			break
		}
		if opt, ok := strategy.(Optional); ok && !opt.Available() {
			o.logger.Debug("strategy unavailable, skipping", zap.String("strategy", strategy.Name()))
			continue
		}

		r := strategy.Fetch(ctx, rawURL)
		if r.Method == "" {
			r.Method = strategy.Name()
		}
		attempted = true

		attempt := Attempt{Strategy: r.Method}
		switch {
		case r.Success && o.checker != nil && o.checker.IsTruncated(r.Content):
			r.IsTruncated = true
			attempt.Status = AttemptTruncated
			out.IsTruncated = true
			permanent = false
		case r.Success:
			attempt.Status = AttemptSuccess
		default:
			attempt.Status = AttemptFailed
			attempt.Error = r.Error
			if errhandler.ShouldRetry(r.Err) && !errors.Is(r.Err, ErrNoSnapshot) {
				permanent = false
			}
		}
		out.Attempts = append(out.Attempts, attempt)
		o.record(rawURL, attempt)

		if attempt.Status == AttemptSuccess {
			out.Result = r
			out.SuccessfulMethod = r.Method
			out.IsTruncated = false
			out.Duration = o.now().Sub(start)
			return out
		}
		last = r
	}

	if !attempted {
		last = failure("", errhandler.Content("fetch", "no fetch strategy available"), nil)
	}
	if last.Success && last.IsTruncated && last.Err == nil {
		last.Err = errhandler.Content(last.Method, "content truncated")
		last.Error = last.Err.Error()
	}
	out.Result = last
	out.Permanent = attempted && permanent && !out.IsTruncated
	out.Duration = o.now().Sub(start)
	return out
}

func (o *Orchestrator) record(rawURL string, attempt Attempt) {
	fields := []zap.Field{
		zap.String("strategy", attempt.Strategy),
		zap.String("status", attempt.Status),
		zap.String("source", rawURL),
	}
	switch attempt.Status {
	case AttemptFailed:
		o.logger.Warn("fetch attempt failed", append(fields, zap.String("error", attempt.Error))...)
	case AttemptTruncated:
		o.logger.Warn("fetch attempt truncated", fields...)
	default:
		o.logger.Info("fetch attempt succeeded", fields...)
	}
	if o.observe != nil {
		o.observe(attempt.Strategy, attempt.Status)
	}
}
