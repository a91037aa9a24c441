// Package errhandler classifies ingestion failures and decides whether they
// are worth retrying.
package errhandler

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/http"
)

// Category groups failures by where they originate.
type Category string

// Error categories.
const (
	CategoryNetwork      Category = "network"
	CategoryContent      Category = "content"
	CategoryAuth         Category = "auth"
	CategoryFilesystem   Category = "filesystem"
	CategoryParse        Category = "parse"
	CategoryExternalTool Category = "external_tool"
	CategoryUnknown      Category = "unknown"
)

// Severity ranks how much operator attention a failure needs.
type Severity string

// Severity levels.
const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Error attaches a category to an underlying failure.
type Error struct {
	Category Category
	Op       string
	Err      error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s: %v", e.Category, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Category, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Wrap tags err with category. A nil err stays nil.
func Wrap(category Category, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Category: category, Op: op, Err: err}
}

// Content builds a content-category error from a message.
func Content(op, msg string) error {
	return &Error{Category: CategoryContent, Op: op, Err: errors.New(msg)}
}

// HTTPError reports a non-2xx response.
type HTTPError struct {
	StatusCode int
	URL        string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("http %d %s for %s", e.StatusCode, http.StatusText(e.StatusCode), e.URL)
}

// Classification is the outcome of Classify.
type Classification struct {
	Category  Category
	Severity  Severity
	Retryable bool
}

// Classify maps err onto the taxonomy.
//
// HTTP 429 is low severity and retryable, other 4xx are medium and final,
// 5xx are high and retryable. Permission errors are high and final, missing
// files medium and final, other filesystem errors retryable. Cancellation is
// never retried.
func Classify(err error) Classification {
	if err == nil {
		return Classification{Category: CategoryUnknown, Severity: SeverityLow}
	}
	if errors.Is(err, context.Canceled) {
		return Classification{Category: CategoryUnknown, Severity: SeverityLow}
	}

	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		switch {
		case httpErr.StatusCode == http.StatusTooManyRequests:
			return Classification{Category: CategoryNetwork, Severity: SeverityLow, Retryable: true}
		case httpErr.StatusCode == http.StatusUnauthorized || httpErr.StatusCode == http.StatusForbidden:
			var tagged *Error
			if errors.As(err, &tagged) && tagged.Category == CategoryAuth {
				return Classification{Category: CategoryAuth, Severity: SeverityHigh}
			}
			return Classification{Category: CategoryNetwork, Severity: SeverityMedium}
		case httpErr.StatusCode >= 500:
			return Classification{Category: CategoryNetwork, Severity: SeverityHigh, Retryable: true}
		case httpErr.StatusCode >= 400:
			return Classification{Category: CategoryNetwork, Severity: SeverityMedium}
		}
	}

	if errors.Is(err, fs.ErrPermission) {
		return Classification{Category: CategoryFilesystem, Severity: SeverityHigh}
	}
	if errors.Is(err, fs.ErrNotExist) {
		return Classification{Category: CategoryFilesystem, Severity: SeverityMedium}
	}
	var pathErr *fs.PathError
	if errors.As(err, &pathErr) {
		return Classification{Category: CategoryFilesystem, Severity: SeverityMedium, Retryable: true}
	}

	var tagged *Error
	if errors.As(err, &tagged) {
		switch tagged.Category {
		case CategoryNetwork:
			return Classification{Category: CategoryNetwork, Severity: SeverityMedium, Retryable: true}
		case CategoryContent:
			return Classification{Category: CategoryContent, Severity: SeverityLow, Retryable: true}
		case CategoryAuth:
			return Classification{Category: CategoryAuth, Severity: SeverityHigh}
		case CategoryFilesystem:
			return Classification{Category: CategoryFilesystem, Severity: SeverityMedium, Retryable: true}
		case CategoryParse:
			return Classification{Category: CategoryParse, Severity: SeverityMedium}
		case CategoryExternalTool:
			return Classification{Category: CategoryExternalTool, Severity: SeverityMedium}
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return Classification{Category: CategoryNetwork, Severity: SeverityMedium, Retryable: true}
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return Classification{Category: CategoryNetwork, Severity: SeverityMedium, Retryable: true}
	}
	return Classification{Category: CategoryUnknown, Severity: SeverityMedium, Retryable: true}
}

// ShouldRetry reports whether err warrants a retry-queue entry.
func ShouldRetry(err error) bool {
	return Classify(err).Retryable
}
