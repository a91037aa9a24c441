package headless

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewChromedpDefaults(t *testing.T) {
	t.Parallel()

	f := NewChromedp(Config{ExecPath: "definitely-not-a-browser-binary"})
	defer f.Close()

	assert.Equal(t, DefaultNavigationTimeout, f.cfg.NavigationTimeout)
	assert.Equal(t, DefaultSettle, f.cfg.Settle)
	assert.False(t, f.Available())

	_, err := f.Fetch(context.Background(), "http://example.com")
	require.Error(t, err)
}

func TestNewChromedpNegativeSettleDisablesWait(t *testing.T) {
	t.Parallel()

	f := NewChromedp(Config{ExecPath: "definitely-not-a-browser-binary", Settle: -time.Second})
	defer f.Close()
	assert.Zero(t, f.cfg.Settle)
}

func TestNilFetcherUnavailable(t *testing.T) {
	t.Parallel()

	var f *Fetcher
	assert.False(t, f.Available())
}

func TestNoop(t *testing.T) {
	t.Parallel()

	var n Noop
	assert.False(t, n.Available())
	_, err := n.Fetch(context.Background(), "http://example.com")
	assert.ErrorIs(t, err, ErrDisabled)
}

func TestResponseMetaKeepsFirstDocument(t *testing.T) {
	t.Parallel()

	meta := newResponseMeta()
	meta.captureEvent(&network.EventResponseReceived{
		Type: network.ResourceTypeDocument,
		Response: &network.Response{
			URL:     "https://example.com/a",
			Status:  203,
			Headers: network.Headers{"X-One": "1", "X-Many": []any{"a", "b"}},
		},
	})
	meta.captureEvent(&network.EventResponseReceived{
		Type:     network.ResourceTypeDocument,
		Response: &network.Response{URL: "https://example.com/frame", Status: 500},
	})
	meta.captureEvent(&network.EventResponseReceived{
		Type:     network.ResourceTypeScript,
		Response: &network.Response{URL: "https://example.com/app.js", Status: 404},
	})

	status, headers, url := meta.snapshotWithFallbacks("https://example.com/req", "")
	assert.Equal(t, 203, status)
	assert.Equal(t, "1", headers.Get("X-One"))
	assert.Equal(t, []string{"a", "b"}, headers.Values("X-Many"))
	assert.Equal(t, "https://example.com/a", url)
}

func TestSnapshotFallbacks(t *testing.T) {
	t.Parallel()

	meta := newResponseMeta()
	status, headers, url := meta.snapshotWithFallbacks("https://example.com/req", "")
	assert.Equal(t, http.StatusOK, status)
	assert.NotNil(t, headers)
	assert.Equal(t, "https://example.com/req", url)

	_, _, url = meta.snapshotWithFallbacks("https://example.com/req", "https://example.com/final")
	assert.Equal(t, "https://example.com/final", url)
}
