package metadata

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlas-archive/atlas/internal/id/uuid"
	"github.com/atlas-archive/atlas/internal/paths"
	"github.com/atlas-archive/atlas/internal/storage/local"
)

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func TestNewValidatesTypeSpecific(t *testing.T) {
	t.Parallel()

	r, err := New("0123456789abcdef", paths.YouTube, "https://www.youtube.com/watch?v=abc", "Video",
		map[string]any{"video_id": "abc"}, t0)
	require.NoError(t, err)
	assert.Equal(t, StatusStarted, r.Status)
	assert.Equal(t, t0, r.CreatedAt)
	assert.Empty(t, r.Tags)

	_, err = New("0123456789abcdef", paths.Article, "http://x", "t", map[string]any{"video_id": "abc"}, t0)
	assert.ErrorIs(t, err, ErrUnknownTypeSpecificKey)

	_, err = New("", paths.Article, "http://x", "t", nil, t0)
	assert.Error(t, err)

	assert.ErrorIs(t, r.Set("bookmark_id", 1), ErrUnknownTypeSpecificKey)
	require.NoError(t, r.Set("ytdlp_fallback", true))
	assert.Equal(t, true, r.TypeSpecific["ytdlp_fallback"])
}

func TestLifecycle(t *testing.T) {
	t.Parallel()

	r, err := New("0123456789abcdef", paths.Article, "http://x", "t", nil, t0)
	require.NoError(t, err)

	assert.ErrorIs(t, r.SetSuccess(t0), ErrNoContent)
	r.ContentPath = Ptr("/data/article/markdown/0123456789abcdef.md")
	require.NoError(t, r.SetSuccess(t0.Add(time.Minute)))
	assert.Equal(t, StatusSuccess, r.Status)
	assert.Equal(t, t0.Add(time.Minute), r.UpdatedAt)
	assert.ErrorIs(t, r.SetSuccess(t0), ErrNotStarted)

	failed, err := New("0123456789abcdef", paths.Article, "http://x", "t", nil, t0)
	require.NoError(t, err)
	failed.SetError("all strategies truncated", t0)
	assert.Equal(t, StatusError, failed.Status)
	assert.Equal(t, "all strategies truncated", Value(failed.Error))
	assert.True(t, failed.Status.Terminal())
	assert.False(t, StatusStarted.Terminal())
}

func TestTagsAndNotes(t *testing.T) {
	t.Parallel()

	r, err := New("0123456789abcdef", paths.Article, "http://x", "t", nil, t0)
	require.NoError(t, err)
	r.AddTags("go", " ", "ai", "go")
	r.AddNote("  first ")
	r.AddNote("")
	assert.Equal(t, []string{"go", "ai"}, r.Tags)
	assert.Equal(t, []string{"first"}, r.Notes)
}

func TestJSONShape(t *testing.T) {
	t.Parallel()

	r, err := New("0123456789abcdef", paths.Article, "http://example.com/post", "Post", nil, t0)
	require.NoError(t, err)
	r.FetchMethod = Ptr("direct")
	r.FetchDetails = &FetchDetails{
		Attempts:         []FetchAttempt{{Strategy: "direct", Status: "success"}},
		SuccessfulMethod: Ptr("direct"),
		TotalAttempts:    1,
		FetchTime:        0.25,
	}

	data, err := json.Marshal(r)
	require.NoError(t, err)
	var generic map[string]any
	require.NoError(t, json.Unmarshal(data, &generic))

	for _, key := range []string{
		"uid", "content_type", "source", "title", "status", "date", "created_at", "updated_at",
		"content_path", "html_path", "audio_path", "transcript_path", "tags", "notes",
		"fetch_method", "fetch_details", "category_version", "last_tagged_at", "source_hash",
		"type_specific", "error",
	} {
		assert.Contains(t, generic, key)
	}
	assert.Nil(t, generic["html_path"])
	details := generic["fetch_details"].(map[string]any)
	assert.Equal(t, false, details["is_truncated"])
	assert.Equal(t, "direct", details["successful_method"])
}

func TestTypeSpecificKeysSorted(t *testing.T) {
	t.Parallel()

	keys := TypeSpecificKeys(paths.Instapaper)
	assert.Contains(t, keys, "is_private_content")
	assert.IsIncreasing(t, keys)
	assert.Error(t, ValidateTypeSpecific("video-game", nil))
}

func TestStoreRoundTrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	files, err := local.New(local.Config{BaseDir: dir, Suffixer: uuid.NewUUIDGenerator()})
	require.NoError(t, err)
	store := NewStore(files)
	path := filepath.Join(dir, "instapaper", "metadata", "0123456789abcdef.json")

	r, err := New("0123456789abcdef", paths.Instapaper, "instapaper-private://email/abc", "Letter",
		map[string]any{"bookmark_id": 42, "is_private_content": true}, t0)
	require.NoError(t, err)
	r.ContentPath = Ptr("instapaper/markdown/0123456789abcdef.md")
	require.NoError(t, r.SetSuccess(t0))

	assert.False(t, store.Exists(path))
	require.NoError(t, store.Save(context.Background(), path, r))
	assert.True(t, store.Exists(path))

	loaded, err := store.Load(path)
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, loaded.Status)
	assert.Equal(t, true, loaded.TypeSpecific["is_private_content"])
	assert.EqualValues(t, 42, loaded.TypeSpecific["bookmark_id"])
	assert.True(t, loaded.CreatedAt.Equal(t0))

	raw, err := os.ReadFile(path) // #nosec G304 -- test temp dir
	require.NoError(t, err)
	assert.Contains(t, string(raw), "\n  \"uid\": \"0123456789abcdef\"")

	r.TypeSpecific["bogus"] = 1
	assert.ErrorIs(t, store.Save(context.Background(), path, r), ErrUnknownTypeSpecificKey)
}
