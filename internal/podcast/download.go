package podcast

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/atlas-archive/atlas/internal/errhandler"
)

// DefaultDownloadTimeout bounds one enclosure transfer.
const DefaultDownloadTimeout = 30 * time.Minute

// StreamWriter atomically writes a stream to path.
type StreamWriter interface {
	WriteStream(ctx context.Context, path string, r io.Reader) (int64, error)
}

// Downloader streams enclosures to disk without buffering them in memory.
type Downloader struct {
	client    *http.Client
	userAgent string
}

// NewDownloader builds a Downloader. A nil client gets DefaultDownloadTimeout.
func NewDownloader(client *http.Client, userAgent string) *Downloader {
	if client == nil {
		client = &http.Client{Timeout: DefaultDownloadTimeout}
	}
	return &Downloader{client: client, userAgent: userAgent}
}

// Download fetches rawURL into path through w and returns the byte count.
func (d *Downloader) Download(ctx context.Context, rawURL, path string, w StreamWriter) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return 0, errhandler.Wrap(errhandler.CategoryParse, "enclosure url", err)
	}
	if d.userAgent != "" {
		req.Header.Set("User-Agent", d.userAgent)
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return 0, errhandler.Wrap(errhandler.CategoryNetwork, "download enclosure", err)
	}
	defer resp.Body.Close() //nolint:errcheck // body fully consumed or abandoned
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, &errhandler.HTTPError{StatusCode: resp.StatusCode, URL: rawURL}
	}
	n, err := w.WriteStream(ctx, path, resp.Body)
	if err != nil {
		return 0, fmt.Errorf("store enclosure: %w", err)
	}
	return n, nil
}
