package fetcher

import (
	"context"
	"time"

	"github.com/atlas-archive/atlas/internal/content"
	"github.com/atlas-archive/atlas/internal/errhandler"
	collyfetcher "github.com/atlas-archive/atlas/internal/fetcher/colly"
)

// Strategy timeouts.
const (
	DirectTimeout       = 30 * time.Second
	GooglebotTimeout    = 15 * time.Second
	TwelveFtTimeout     = 20 * time.Second
	WaybackTimeout      = 20 * time.Second
	ArchiveTodayTimeout = 30 * time.Second
	ArchiveTodayWait    = 5 * time.Second
)

// HTTPClient is the transport used by the HTTP strategies.
type HTTPClient interface {
	Fetch(ctx context.Context, request collyfetcher.Request) (collyfetcher.Response, error)
}

// httpStrategy GETs a (possibly rewritten) URL with a fixed user agent.
type httpStrategy struct {
	name      string
	client    HTTPClient
	userAgent string
	timeout   time.Duration
	rewrite   func(string) string
}

// NewDirect fetches the URL as a desktop browser.
func NewDirect(client HTTPClient) Strategy {
	return &httpStrategy{name: MethodDirect, client: client, userAgent: DesktopUserAgent, timeout: DirectTimeout}
}

// NewGooglebot fetches the URL announcing itself as Googlebot.
func NewGooglebot(client HTTPClient) Strategy {
	return &httpStrategy{name: MethodGooglebot, client: client, userAgent: GooglebotUserAgent, timeout: GooglebotTimeout}
}

// NewTwelveFt fetches the URL through a 12ft-style proxy prefix such as
// "https://12ft.io/".
func NewTwelveFt(client HTTPClient, prefix string) Strategy {
	if prefix == "" {
		prefix = "https://12ft.io/"
	}
	return &httpStrategy{
		name:      MethodTwelveFt,
		client:    client,
		userAgent: DesktopUserAgent,
		timeout:   TwelveFtTimeout,
		rewrite:   func(u string) string { return prefix + u },
	}
}

func (s *httpStrategy) Name() string { return s.name }

func (s *httpStrategy) Fetch(ctx context.Context, rawURL string) Result {
	target := rawURL
	if s.rewrite != nil {
		target = s.rewrite(rawURL)
	}
	return getPage(ctx, s.client, s.name, target, s.userAgent, s.timeout)
}

func getPage(ctx context.Context, client HTTPClient, method, target, userAgent string, timeout time.Duration) Result {
	resp, err := client.Fetch(ctx, collyfetcher.Request{
		URL:       target,
		UserAgent: userAgent,
		Timeout:   timeout,
	})
	if err != nil {
		return failure(method, errhandler.Wrap(errhandler.CategoryNetwork, method, err), map[string]any{
			"url": redact(target),
		})
	}
	return pageResult(method, target, resp)
}

func pageResult(method, target string, resp collyfetcher.Response) Result {
	meta := map[string]any{
		"url":         redact(target),
		"status_code": resp.StatusCode,
		"final_url":   redact(resp.FinalURL),
	}
	if !resp.OK() {
		return failure(method, &errhandler.HTTPError{StatusCode: resp.StatusCode, URL: redact(target)}, meta)
	}
	html := string(resp.Body)
	if html == "" {
		return failure(method, errhandler.Content(method, "empty response body"), meta)
	}
	return Result{
		Success:  true,
		Content:  html,
		Method:   method,
		Metadata: meta,
		Title:    content.ExtractTitle(html),
	}
}
