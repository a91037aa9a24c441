// Package app_test contains unit tests for the app package.
package app_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlas-archive/atlas/internal/app"
	"github.com/atlas-archive/atlas/internal/config"
	"github.com/atlas-archive/atlas/internal/paths"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	dir := t.TempDir()
	return config.Config{
		DataDirectory:         dir,
		RetryQueuePath:        filepath.Join(dir, config.RetryQueueFile),
		InstapaperBatchSize:   5,
		FetchStrategies:       []string{"direct", "headless_browser", "wayback_machine"},
		YtDLPPath:             "yt-dlp",
		MetricsTextfile:       filepath.Join(dir, "atlas.prom"),
		InstapaperMinInterval: 0,
	}
}

func TestNewAppBuildsIngestors(t *testing.T) {
	cfg := testConfig(t)
	a, err := app.NewApp(cfg, nil)
	require.NoError(t, err)
	defer a.Close()

	assert.Equal(t, cfg.DataDirectory, a.GetConfig().DataDirectory)
	assert.NotNil(t, a.GetLogger())

	articles, err := a.Articles(false)
	require.NoError(t, err)
	assert.Equal(t, paths.Article, articles.ContentType())

	yt, err := a.YouTube(false)
	require.NoError(t, err)
	assert.True(t, yt.CanIngest("dQw4w9WgXcQ"))

	pods, err := a.Podcasts(false, nil)
	require.NoError(t, err)
	assert.Equal(t, paths.Podcast, pods.ContentType())

	logPath, err := a.GetPaths().LogPath(paths.Article)
	require.NoError(t, err)
	_, err = os.Stat(logPath)
	assert.NoError(t, err)
}

func TestNewAppRejectsUnknownEvaluator(t *testing.T) {
	cfg := testConfig(t)
	cfg.Evaluator = map[string]any{"provider": "oracle"}
	_, err := app.NewApp(cfg, nil)
	assert.Error(t, err)
}

func TestInstapaperRequiresCredentials(t *testing.T) {
	a, err := app.NewApp(testConfig(t), nil)
	require.NoError(t, err)
	defer a.Close()

	_, err = a.Instapaper(false, nil)
	assert.ErrorIs(t, err, config.ErrInvalid)

	cfg := testConfig(t)
	cfg.InstapaperConsumerKey = "ck"
	cfg.InstapaperConsumerSecret = "cs"
	cfg.InstapaperUsername = "reader@example.com"
	cfg.InstapaperPassword = "pw"
	b, err := app.NewApp(cfg, nil)
	require.NoError(t, err)
	defer b.Close()
	in, err := b.Instapaper(false, nil)
	require.NoError(t, err)
	assert.True(t, in.CanIngest("12345"))
}

func TestFlushMetricsWritesTextfile(t *testing.T) {
	cfg := testConfig(t)
	a, err := app.NewApp(cfg, nil)
	require.NoError(t, err)
	defer a.Close()

	require.NoError(t, a.FlushMetrics(context.Background()))
	_, err = os.Stat(cfg.MetricsTextfile)
	require.NoError(t, err)

	cfg.MetricsTextfile = ""
	quiet, err := app.NewApp(cfg, nil)
	require.NoError(t, err)
	defer quiet.Close()
	assert.NoError(t, quiet.FlushMetrics(context.Background()))
}
