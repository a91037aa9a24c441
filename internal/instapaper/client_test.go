package instapaper

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlas-archive/atlas/internal/errhandler"
	collyfetcher "github.com/atlas-archive/atlas/internal/fetcher/colly"
	"github.com/atlas-archive/atlas/internal/instapaper/instapapertest"
	"github.com/atlas-archive/atlas/internal/policy/backoff"
)

func fastRetry() *backoff.Policy {
	return &backoff.Policy{
		MaxAttempts: 3,
		BaseDelay:   time.Millisecond,
		MaxDelay:    2 * time.Millisecond,
		Retryable:   errhandler.ShouldRetry,
	}
}

func newTestClient(t *testing.T, server *instapapertest.Server, password string) *Client {
	t.Helper()
	client, err := NewClient(Config{
		BaseURL:        server.URL,
		ConsumerKey:    "ck",
		ConsumerSecret: "cs",
		Username:       instapapertest.Username,
		Password:       password,
	}, collyfetcher.New(collyfetcher.Config{}), nil, fastRetry(), nil)
	require.NoError(t, err)
	return client
}

func TestConfigValidate(t *testing.T) {
	err := Config{ConsumerKey: "ck", Username: "u"}.Validate()
	require.ErrorIs(t, err, ErrMissingCredentials)
	assert.Contains(t, err.Error(), "consumer secret, password")

	_, err = NewClient(Config{}, nil, nil, nil, nil)
	assert.ErrorIs(t, err, ErrMissingCredentials)
}

func TestAuthenticate(t *testing.T) {
	server := instapapertest.New()
	defer server.Close()

	client := newTestClient(t, server, instapapertest.Password)
	require.NoError(t, client.Authenticate(context.Background()))
	assert.True(t, client.Authenticated())

	bad := newTestClient(t, server, "wrong")
	err := bad.Authenticate(context.Background())
	require.Error(t, err)
	assert.False(t, bad.Authenticated())
	assert.Equal(t, errhandler.CategoryAuth, errhandler.Classify(err).Category)
}

func TestCallsRequireToken(t *testing.T) {
	server := instapapertest.New()
	defer server.Close()

	client := newTestClient(t, server, instapapertest.Password)
	_, err := client.ListBookmarks(context.Background(), FolderUnread, nil, 10)
	require.Error(t, err)
	assert.False(t, errhandler.ShouldRetry(err))
	assert.Equal(t, 1, server.Calls("bookmarks/list"))
}

func TestListBookmarksHonoursHave(t *testing.T) {
	server := instapapertest.New()
	defer server.Close()
	for i := int64(1); i <= 5; i++ {
		server.Add(FolderUnread, instapapertest.Bookmark{ID: i, URL: fmt.Sprintf("https://example.com/%d", i), Title: "t", Starred: i == 2})
	}
	client := newTestClient(t, server, instapapertest.Password)
	require.NoError(t, client.Authenticate(context.Background()))

	page, err := client.ListBookmarks(context.Background(), FolderUnread, []int64{1, 3}, 10)
	require.NoError(t, err)
	require.Len(t, page, 3)
	assert.Equal(t, int64(2), page[0].ID)
	assert.True(t, bool(page[0].Starred))
	assert.Equal(t, "h2", page[0].Hash)
	assert.InDelta(t, 0.5, page[0].Progress, 0.001)
}

func TestGetText(t *testing.T) {
	server := instapapertest.New()
	defer server.Close()
	server.Add(FolderUnread, instapapertest.Bookmark{ID: 9, URL: "https://example.com/9", Text: "<p>hello</p>"})
	client := newTestClient(t, server, instapapertest.Password)
	require.NoError(t, client.Authenticate(context.Background()))

	text, err := client.GetText(context.Background(), 9)
	require.NoError(t, err)
	assert.Equal(t, "<p>hello</p>", text)

	_, err = client.GetText(context.Background(), 404)
	require.Error(t, err)
	assert.False(t, errhandler.ShouldRetry(err))
}

func TestRetriesRateLimitedCalls(t *testing.T) {
	server := instapapertest.New()
	defer server.Close()
	server.AddCustomFolder("77", "Research")
	client := newTestClient(t, server, instapapertest.Password)
	require.NoError(t, client.Authenticate(context.Background()))

	server.FailNext("folders/list", 2)
	folders, err := client.ListFolders(context.Background())
	require.NoError(t, err)
	require.Len(t, folders, 1)
	assert.Equal(t, "Research", folders[0].Title)
	assert.Equal(t, 3, server.Calls("folders/list"))
}

type countingPacer struct{ n int }

func (p *countingPacer) Wait(context.Context) error {
	p.n++
	return nil
}

func TestCallsArePaced(t *testing.T) {
	server := instapapertest.New()
	defer server.Close()
	pacer := &countingPacer{}
	client, err := NewClient(Config{
		BaseURL:        server.URL,
		ConsumerKey:    "ck",
		ConsumerSecret: "cs",
		Username:       instapapertest.Username,
		Password:       instapapertest.Password,
	}, collyfetcher.New(collyfetcher.Config{}), pacer, fastRetry(), nil)
	require.NoError(t, err)

	require.NoError(t, client.Authenticate(context.Background()))
	_, err = client.ListFolders(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, pacer.n)
}
