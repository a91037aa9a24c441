package errhandler

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

// RetryEntry describes an item handed to the retry queue.
type RetryEntry struct {
	Type   string
	Source string
	UID    string
	Error  string
}

// Enqueuer accepts retry entries.
type Enqueuer interface {
	Enqueue(ctx context.Context, entry RetryEntry) error
}

// Handler logs failures and forwards retry-worthy ones to the queue.
type Handler struct {
	queue  Enqueuer
	logger *zap.Logger
}

// NewHandler builds a Handler. queue may be nil, in which case nothing is enqueued.
func NewHandler(queue Enqueuer, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{queue: queue, logger: logger}
}

// HandleError logs err against entry and enqueues a retry when shouldRetry is
// set, or, when shouldRetry is nil, when Classify deems it retryable. It
// returns whether the entry was enqueued.
func (h *Handler) HandleError(ctx context.Context, entry RetryEntry, err error, shouldRetry *bool) bool {
	if err == nil {
		err = errors.New(entry.Error)
	}
	class := Classify(err)
	if entry.Error == "" {
		entry.Error = err.Error()
	}
	retry := class.Retryable
	if shouldRetry != nil {
		retry = *shouldRetry
	}

	fields := []zap.Field{
		zap.String("source", entry.Source),
		zap.String("uid", entry.UID),
		zap.String("category", string(class.Category)),
		zap.String("severity", string(class.Severity)),
		zap.Bool("retry", retry),
		zap.Error(err),
	}
	if class.Severity == SeverityLow {
		h.logger.Warn("ingest failed", fields...)
	} else {
		h.logger.Error("ingest failed", fields...)
	}

	if !retry || h.queue == nil {
		return false
	}
	if qErr := h.queue.Enqueue(ctx, entry); qErr != nil {
		h.logger.Error("enqueue retry failed", zap.String("source", entry.Source), zap.Error(qErr))
		return false
	}
	return true
}
