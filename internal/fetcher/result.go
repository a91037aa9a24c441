// Package fetcher retrieves article HTML through a cascade of strategies and
// keeps the first response that is not truncated.
package fetcher

import (
	"context"
	"errors"
	"net/url"
)

// ErrNoSnapshot marks an archive strategy that found nothing to serve. It
// does not make a failed fetch worth retrying.
var ErrNoSnapshot = errors.New("no snapshot available")

// Strategy method names as recorded in metadata.
const (
	MethodDirect       = "direct"
	MethodTwelveFt     = "12ft_bypass"
	MethodArchiveToday = "archive_today"
	MethodGooglebot    = "googlebot"
	MethodHeadless     = "headless_browser"
	MethodWayback      = "wayback_machine"
)

// DefaultOrder is the cascade from least invasive to most fallible.
var DefaultOrder = []string{
	MethodDirect,
	MethodTwelveFt,
	MethodArchiveToday,
	MethodGooglebot,
	MethodHeadless,
	MethodWayback,
}

// User agents sent by the HTTP strategies.
const (
	DesktopUserAgent   = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"
	GooglebotUserAgent = "Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)"
)

// Result is the uniform outcome of one strategy.
type Result struct {
	Success     bool
	Content     string
	Method      string
	Error       string
	IsTruncated bool
	Metadata    map[string]any
	Title       string
	// Err keeps the typed failure for retry classification.
	Err error
}

// Strategy fetches a URL one particular way. Implementations never panic on
// remote failures; they report them in Result.
type Strategy interface {
	Name() string
	Fetch(ctx context.Context, rawURL string) Result
}

// Optional is implemented by strategies that may be unusable at runtime.
type Optional interface {
	Available() bool
}

func failure(method string, err error, meta map[string]any) Result {
	return Result{Method: method, Error: err.Error(), Err: err, Metadata: meta}
}

// redact strips userinfo so provenance never carries credentials.
func redact(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	u.User = nil
	return u.String()
}
