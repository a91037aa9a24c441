package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitDefaultsWithoutFile(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())

	v := viper.New()
	used, err := Init(v, "")
	require.NoError(t, err)
	assert.Empty(t, used)
	assert.Equal(t, time.Second, v.GetDuration("instapaper_min_interval"))
	assert.Equal(t, 5, v.GetInt("instapaper_batch_size"))
	assert.Equal(t, "yt-dlp", v.GetString("ytdlp_path"))
	assert.Len(t, v.GetStringSlice("fetch_strategies"), 6)
}

func TestInitReadsFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(file, []byte("data_directory: /srv/atlas\nheadless_enabled: false\n"), 0o600))
	t.Setenv("ATLAS_YTDLP_PATH", "/opt/yt-dlp")
	t.Setenv("INSTAPAPER_USERNAME", "reader@example.com")

	v := viper.New()
	used, err := Init(v, file)
	require.NoError(t, err)
	assert.Equal(t, file, used)
	assert.Equal(t, "/srv/atlas", v.GetString("data_directory"))
	assert.False(t, v.GetBool("headless_enabled"))
	assert.Equal(t, "/opt/yt-dlp", v.GetString("ytdlp_path"))
	assert.Equal(t, "reader@example.com", v.GetString("instapaper_username"))
}

func TestInitExplicitFileMustExist(t *testing.T) {
	_, err := Init(viper.New(), filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
