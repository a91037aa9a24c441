package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/atlas-archive/atlas/internal/config"
	"github.com/atlas-archive/atlas/internal/ingest"
)

// setup writes a config file into a fresh working directory and silences
// the console logger.
func setup(t *testing.T) (cfgPath, dataDir string) {
	t.Helper()
	for _, key := range []string{"CONSUMER_KEY", "CONSUMER_SECRET", "USERNAME", "PASSWORD"} {
		t.Setenv("INSTAPAPER_"+key, "")
		t.Setenv("ATLAS_INSTAPAPER_"+key, "")
	}
	orig := newLogger
	newLogger = func(bool) (*zap.Logger, error) { return zap.NewNop(), nil }
	t.Cleanup(func() { newLogger = orig })

	dir := t.TempDir()
	t.Chdir(dir)
	dataDir = filepath.Join(dir, "data")
	cfgPath = filepath.Join(dir, "config.yaml")
	yaml := fmt.Sprintf("data_directory: %s\nheadless_enabled: false\nfetch_strategies: [direct]\n", dataDir)
	require.NoError(t, os.WriteFile(cfgPath, []byte(yaml), 0o600))
	return cfgPath, dataDir
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := run(context.Background(), args, &out, &out)
	return out.String(), err
}

func TestArticlesCommandReportsEveryItem(t *testing.T) {
	cfgPath, _ := setup(t)

	out, err := execute(t, "articles", "--config", cfgPath, "not a url", "ftp://example.com/file")
	require.NoError(t, err)
	assert.Contains(t, out, "[1/2]")
	assert.Contains(t, out, "[2/2]")
	assert.Contains(t, out, "summary: processed=2 succeeded=0 skipped=0 failed=2")
}

func TestArticlesCommandReadsInputFile(t *testing.T) {
	cfgPath, _ := setup(t)
	require.NoError(t, os.WriteFile("urls.txt", []byte("# comment\n\nnot a url\n"), 0o600))

	out, err := execute(t, "articles", "--config", cfgPath, "-i", "urls.txt")
	require.NoError(t, err)
	assert.Contains(t, out, "summary: processed=1")
}

func TestArticlesCommandRequiresSources(t *testing.T) {
	cfgPath, _ := setup(t)

	_, err := execute(t, "articles", "--config", cfgPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no sources given")
}

func TestMissingConfigFileFails(t *testing.T) {
	setup(t)

	_, err := execute(t, "articles", "--config", "does-not-exist.yaml", "https://example.com")
	require.Error(t, err)
}

func TestDataDirFlagOverridesConfig(t *testing.T) {
	cfgPath, _ := setup(t)
	override := filepath.Join(t.TempDir(), "elsewhere")

	_, err := execute(t, "articles", "--config", cfgPath, "--data-dir", override, "not a url")
	require.NoError(t, err)
	_, err = os.Stat(override)
	assert.NoError(t, err)
}

func TestPodcastsCommandIngestsFeed(t *testing.T) {
	cfgPath, dataDir := setup(t)

	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/feed.xml":
			w.Header().Set("Content-Type", "application/rss+xml")
			_, _ = fmt.Fprintf(w, `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
<title>Test Show</title>
<link>%[1]s</link>
<description>A show.</description>
<item>
<title>Episode Two</title>
<guid>ep-2</guid>
<pubDate>Tue, 02 Jan 2024 10:00:00 GMT</pubDate>
<description>Second notes.</description>
<enclosure url="%[1]s/ep2.mp3" length="5" type="audio/mpeg"/>
</item>
<item>
<title>Episode One</title>
<guid>ep-1</guid>
<pubDate>Mon, 01 Jan 2024 10:00:00 GMT</pubDate>
<description>First notes.</description>
<enclosure url="%[1]s/ep1.mp3" length="5" type="audio/mpeg"/>
</item>
</channel>
</rss>`, srv.URL)
		case "/ep1.mp3", "/ep2.mp3":
			_, _ = w.Write([]byte("AUDIO"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	out, err := execute(t, "podcasts", "--config", cfgPath, "--limit", "1", srv.URL+"/feed.xml")
	require.NoError(t, err)
	assert.Contains(t, out, "summary: processed=1 succeeded=1 skipped=0 failed=0")
	assert.Contains(t, out, "|ep-2")
	assert.NotContains(t, out, "|ep-1")

	var audio int
	require.NoError(t, filepath.WalkDir(dataDir, func(path string, d os.DirEntry, err error) error {
		if err == nil && !d.IsDir() && filepath.Ext(path) == ".mp3" {
			audio++
		}
		return err
	}))
	assert.Equal(t, 1, audio)

	out, err = execute(t, "podcasts", "--config", cfgPath, "--limit", "1", srv.URL+"/feed.xml")
	require.NoError(t, err)
	assert.Contains(t, out, "summary: processed=1 succeeded=0 skipped=1 failed=0")
}

func TestInstapaperCommandRequiresCredentials(t *testing.T) {
	cfgPath, _ := setup(t)

	_, err := execute(t, "instapaper", "--config", cfgPath)
	require.Error(t, err)
	assert.True(t, errors.Is(err, config.ErrInvalid))
}

func TestInstapaperCommandRejectsMissingExplicitExport(t *testing.T) {
	cfgPath, _ := setup(t)

	_, err := execute(t, "instapaper", "--config", cfgPath, "--export", "missing.csv")
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestReadExport(t *testing.T) {
	dir := t.TempDir()

	rows, err := readExport(filepath.Join(dir, "absent.csv"), false)
	require.NoError(t, err)
	assert.Nil(t, rows)

	path := filepath.Join(dir, "export.csv")
	require.NoError(t, os.WriteFile(path, []byte("URL,Title,Selection,Folder,Timestamp,Tags\nhttps://example.com/a,A,,Unread,1700000000,\n"), 0o600))
	rows, err = readExport(path, true)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "https://example.com/a", rows[0].URL)
}

func TestMergeSummaries(t *testing.T) {
	got := merge(ingest.Summary{Processed: 2, Succeeded: 1, Failed: 1}, ingest.Summary{Processed: 3, Skipped: 3})
	assert.Equal(t, ingest.Summary{Processed: 5, Succeeded: 1, Skipped: 3, Failed: 1}, got)
}
