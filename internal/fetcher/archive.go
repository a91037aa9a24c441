package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/atlas-archive/atlas/internal/errhandler"
	collyfetcher "github.com/atlas-archive/atlas/internal/fetcher/colly"
)

// ArchiveToday reads the newest archive.today snapshot, submitting the URL
// for archiving when none exists yet.
type ArchiveToday struct {
	client HTTPClient
	base   string
	wait   time.Duration
	sleep  func(context.Context, time.Duration) error
}

// NewArchiveToday builds the strategy. base defaults to https://archive.today
// and wait to ArchiveTodayWait; a negative wait disables the pause.
func NewArchiveToday(client HTTPClient, base string, wait time.Duration) *ArchiveToday {
	if base == "" {
		base = "https://archive.today"
	}
	if wait == 0 {
		wait = ArchiveTodayWait
	}
	if wait < 0 {
		wait = 0
	}
	return &ArchiveToday{client: client, base: strings.TrimRight(base, "/"), wait: wait, sleep: sleepCtx}
}

// Name implements Strategy.
func (a *ArchiveToday) Name() string { return MethodArchiveToday }

// Fetch implements Strategy.
func (a *ArchiveToday) Fetch(ctx context.Context, rawURL string) Result {
	newest := a.base + "/newest/" + rawURL
	if res, ok := a.snapshot(ctx, newest); ok {
		return res
	}

	submit := a.base + "/submit/"
	resp, err := a.client.Fetch(ctx, collyfetcher.Request{
		URL:       submit,
		Method:    http.MethodPost,
		Form:      map[string]string{"url": rawURL},
		UserAgent: DesktopUserAgent,
		Timeout:   ArchiveTodayTimeout,
	})
	if err != nil {
		return failure(MethodArchiveToday, errhandler.Wrap(errhandler.CategoryNetwork, "archive submit", err), nil)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return failure(MethodArchiveToday, &errhandler.HTTPError{StatusCode: resp.StatusCode, URL: submit},
			map[string]any{"status_code": resp.StatusCode})
	}
	if a.inArchive(resp) {
		res := pageResult(MethodArchiveToday, submit, resp)
		res.Metadata["submitted"] = true
		return res
	}

	if err := a.sleep(ctx, a.wait); err != nil {
		return failure(MethodArchiveToday, err, nil)
	}
	if res, ok := a.snapshot(ctx, newest); ok {
		res.Metadata["submitted"] = true
		return res
	}
	return failure(MethodArchiveToday, errhandler.Wrap(errhandler.CategoryContent, MethodArchiveToday, ErrNoSnapshot),
		map[string]any{"submitted": true})
}

func (a *ArchiveToday) snapshot(ctx context.Context, newest string) (Result, bool) {
	resp, err := a.client.Fetch(ctx, collyfetcher.Request{
		URL:       newest,
		UserAgent: DesktopUserAgent,
		Timeout:   ArchiveTodayTimeout,
	})
	if err != nil || !resp.OK() || !a.inArchive(resp) {
		return Result{}, false
	}
	res := pageResult(MethodArchiveToday, newest, resp)
	if res.Success {
		res.Metadata["snapshot_url"] = resp.FinalURL
	}
	return res, res.Success
}

// inArchive reports a redirect that landed on a snapshot page.
func (a *ArchiveToday) inArchive(resp collyfetcher.Response) bool {
	if !resp.Redirected() {
		return false
	}
	final, err := url.Parse(resp.FinalURL)
	if err != nil {
		return false
	}
	base, err := url.Parse(a.base)
	if err != nil {
		return false
	}
	return strings.EqualFold(final.Host, base.Host) &&
		!strings.HasPrefix(final.Path, "/newest/") &&
		!strings.HasPrefix(final.Path, "/submit")
}

// Wayback asks the Internet Archive availability API for the closest
// snapshot and fetches it.
type Wayback struct {
	client HTTPClient
	api    string
}

// NewWayback builds the strategy. api defaults to the public availability endpoint.
func NewWayback(client HTTPClient, api string) *Wayback {
	if api == "" {
		api = "https://archive.org/wayback/available"
	}
	return &Wayback{client: client, api: api}
}

// Name implements Strategy.
func (w *Wayback) Name() string { return MethodWayback }

type availability struct {
	ArchivedSnapshots struct {
		Closest *struct {
			Available bool   `json:"available"`
			URL       string `json:"url"`
			Timestamp string `json:"timestamp"`
			Status    string `json:"status"`
		} `json:"closest"`
	} `json:"archived_snapshots"`
}

// Fetch implements Strategy.
func (w *Wayback) Fetch(ctx context.Context, rawURL string) Result {
	query := w.api + "?url=" + url.QueryEscape(rawURL)
	resp, err := w.client.Fetch(ctx, collyfetcher.Request{
		URL:       query,
		UserAgent: DesktopUserAgent,
		Timeout:   WaybackTimeout,
		Headers:   http.Header{"Accept": {"application/json"}},
	})
	if err != nil {
		return failure(MethodWayback, errhandler.Wrap(errhandler.CategoryNetwork, "wayback availability", err), nil)
	}
	if !resp.OK() {
		return failure(MethodWayback, &errhandler.HTTPError{StatusCode: resp.StatusCode, URL: w.api},
			map[string]any{"status_code": resp.StatusCode})
	}

	var avail availability
	if err := json.Unmarshal(resp.Body, &avail); err != nil {
		return failure(MethodWayback, errhandler.Wrap(errhandler.CategoryParse, "wayback availability", err), nil)
	}
	closest := avail.ArchivedSnapshots.Closest
	if closest == nil || !closest.Available || closest.URL == "" {
		return failure(MethodWayback, errhandler.Wrap(errhandler.CategoryContent, MethodWayback, ErrNoSnapshot), nil)
	}

	res := getPage(ctx, w.client, MethodWayback, closest.URL, DesktopUserAgent, WaybackTimeout)
	if res.Metadata == nil {
		res.Metadata = map[string]any{}
	}
	res.Metadata["snapshot_url"] = closest.URL
	res.Metadata["snapshot_timestamp"] = closest.Timestamp
	return res
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("wait canceled: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}
