package collyfetcher

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchFollowsRedirectsAndSetsUserAgent(t *testing.T) {
	t.Parallel()

	var seenUA string
	mux := http.NewServeMux()
	mux.HandleFunc("/start", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/final", http.StatusFound)
	})
	mux.HandleFunc("/final", func(w http.ResponseWriter, r *http.Request) {
		seenUA = r.UserAgent()
		w.Header().Set("X-Served", "yes")
		_, _ = w.Write([]byte("<html>ok</html>"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	f := New(Config{UserAgent: "default-agent"})
	resp, err := f.Fetch(context.Background(), Request{URL: srv.URL + "/start", UserAgent: "request-agent"})
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, resp.OK())
	assert.True(t, resp.Redirected())
	assert.Equal(t, srv.URL+"/final", resp.FinalURL)
	assert.Equal(t, "<html>ok</html>", string(resp.Body))
	assert.Equal(t, "yes", resp.Headers.Get("X-Served"))
	assert.Equal(t, "request-agent", seenUA)
}

func TestFetchReturnsErrorStatuses(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	f := New(Config{})
	resp, err := f.Fetch(context.Background(), Request{URL: srv.URL})
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.False(t, resp.OK())
}

func TestFetchSameURLTwice(t *testing.T) {
	t.Parallel()

	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits++
		_, _ = w.Write([]byte("again"))
	}))
	defer srv.Close()

	f := New(Config{})
	for i := 0; i < 2; i++ {
		_, err := f.Fetch(context.Background(), Request{URL: srv.URL})
		require.NoError(t, err)
	}
	assert.Equal(t, 2, hits)
}

func TestFetchPostsForm(t *testing.T) {
	t.Parallel()

	var got url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.NoError(t, r.ParseForm())
		got = r.PostForm
		_, _ = w.Write([]byte("submitted"))
	}))
	defer srv.Close()

	f := New(Config{})
	resp, err := f.Fetch(context.Background(), Request{
		URL:    srv.URL + "/submit/",
		Method: http.MethodPost,
		Form:   map[string]string{"url": "http://example.com/x"},
	})
	require.NoError(t, err)
	assert.Equal(t, "submitted", string(resp.Body))
	assert.Equal(t, "http://example.com/x", got.Get("url"))
}

func TestFetchTimeout(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	f := New(Config{})
	_, err := f.Fetch(context.Background(), Request{URL: srv.URL, Timeout: 50 * time.Millisecond})
	require.Error(t, err)
}

func TestFetchCanceledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := New(Config{})
	_, err := f.Fetch(ctx, Request{URL: "http://127.0.0.1:1/"})
	require.Error(t, err)
}

func TestTimeoutPrecedence(t *testing.T) {
	t.Parallel()

	assert.Equal(t, DefaultTimeout, New(Config{}).timeout(Request{}))
	assert.Equal(t, 5*time.Second, New(Config{Timeout: 5 * time.Second}).timeout(Request{}))
	assert.Equal(t, time.Second, New(Config{Timeout: 5 * time.Second}).timeout(Request{Timeout: time.Second}))
}

func TestConfigureCollectorHooks(t *testing.T) {
	t.Parallel()

	f := New(Config{})
	req := Request{
		URL:     "https://example.com",
		Headers: http.Header{"X-Trace": {"yes"}},
	}
	var result Response
	var fetchErr error

	hooks := &stubHooks{}
	f.configureCollectorHooks(hooks, req, time.Unix(0, 0), &result, &fetchErr)
	require.NotNil(t, hooks.onRequest)
	require.NotNil(t, hooks.onResponse)
	require.NotNil(t, hooks.onError)

	collyReq := &colly.Request{Headers: &http.Header{}}
	hooks.onRequest(collyReq)
	assert.Equal(t, "yes", collyReq.Headers.Get("X-Trace"))

	final, err := url.Parse("https://example.com/moved")
	require.NoError(t, err)
	hooks.onResponse(&colly.Response{
		StatusCode: http.StatusCreated,
		Body:       []byte("body"),
		Headers:    &http.Header{"X-Resp": {"ok"}},
		Request:    &colly.Request{URL: final},
	})
	assert.Equal(t, http.StatusCreated, result.StatusCode)
	assert.Equal(t, "body", string(result.Body))
	assert.Equal(t, "ok", result.Headers.Get("X-Resp"))
	assert.Equal(t, "https://example.com/moved", result.FinalURL)

	hooks.onError(nil, errors.New("boom"))
	assert.EqualError(t, fetchErr, "boom")
}

type stubHooks struct {
	onRequest  colly.RequestCallback
	onResponse colly.ResponseCallback
	onError    colly.ErrorCallback
}

func (s *stubHooks) OnRequest(cb colly.RequestCallback)   { s.onRequest = cb }
func (s *stubHooks) OnResponse(cb colly.ResponseCallback) { s.onResponse = cb }
func (s *stubHooks) OnError(cb colly.ErrorCallback)       { s.onError = cb }
