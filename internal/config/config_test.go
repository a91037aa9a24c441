package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"

	"github.com/atlas-archive/atlas/internal/paths"
	bootstrap "github.com/atlas-archive/atlas/pkg/config"
)

func load(t *testing.T, yaml string) (Config, error) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	v := viper.New()
	if _, err := bootstrap.Init(v, path); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	return Load(v)
}

func TestLoadWithFileOverrides(t *testing.T) {
	cfg, err := load(t, `
data_directory: /srv/atlas/
article_output_path: web
retry_queue_path: /var/lib/atlas/retry.jsonl
instapaper_min_interval: 2s
instapaper_batch_size: 10
instapaper_batch_pause: 30s
fetch_strategies: [direct, Wayback_Machine]
headless_enabled: false
log_development: false
metrics_textfile: /var/lib/node_exporter/atlas.prom
evaluator:
  provider: none
`)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.DataDirectory != "/srv/atlas" {
		t.Fatalf("DataDirectory = %q", cfg.DataDirectory)
	}
	if cfg.RetryQueuePath != "/var/lib/atlas/retry.jsonl" {
		t.Fatalf("RetryQueuePath = %q", cfg.RetryQueuePath)
	}
	if cfg.InstapaperMinInterval != 2*time.Second || cfg.InstapaperBatchPause != 30*time.Second {
		t.Fatalf("unexpected pacing: %v / %v", cfg.InstapaperMinInterval, cfg.InstapaperBatchPause)
	}
	if cfg.InstapaperBatchSize != 10 {
		t.Fatalf("InstapaperBatchSize = %d", cfg.InstapaperBatchSize)
	}
	if got := strings.Join(cfg.FetchStrategies, ","); got != "direct,wayback_machine" {
		t.Fatalf("FetchStrategies = %s", got)
	}
	if cfg.HeadlessEnabled || cfg.LogDevelopment {
		t.Fatalf("expected booleans to be overridden: %+v", cfg)
	}
	if cfg.Evaluator["provider"] != "none" {
		t.Fatalf("Evaluator = %#v", cfg.Evaluator)
	}
	pc, err := cfg.PathConfig()
	if err != nil {
		t.Fatalf("PathConfig() error = %v", err)
	}
	if pc.BaseDirs[paths.Article] != "web" {
		t.Fatalf("article base = %q", pc.BaseDirs[paths.Article])
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := load(t, "data_directory: /data\n")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.RetryQueuePath != filepath.Join("/data", RetryQueueFile) {
		t.Fatalf("RetryQueuePath = %q", cfg.RetryQueuePath)
	}
	if len(cfg.FetchStrategies) != 6 || !cfg.HeadlessEnabled || !cfg.LogDevelopment {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.InstapaperMinInterval != time.Second || cfg.InstapaperBatchSize != 5 {
		t.Fatalf("unexpected instapaper defaults: %+v", cfg)
	}
}

func TestLoadRejects(t *testing.T) {
	cases := map[string]string{
		"missing data directory": "headless_enabled: true\n",
		"unknown key":            "data_directory: /data\nfetch_timeout: 3s\n",
		"unknown strategy":       "data_directory: /data\nfetch_strategies: [direct, telepathy]\n",
		"bad batch size":         "data_directory: /data\ninstapaper_batch_size: 0\n",
		"negative interval":      "data_directory: /data\ninstapaper_min_interval: -1s\n",
		"escaping output path":   "data_directory: /data\npodcast_output_path: /elsewhere/podcasts\n",
	}
	for name, yaml := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := load(t, yaml)
			if !errors.Is(err, ErrInvalid) {
				t.Fatalf("Load() error = %v, want ErrInvalid", err)
			}
		})
	}
}

func TestInstapaperCredentials(t *testing.T) {
	cfg := Config{InstapaperConsumerKey: "ck", InstapaperUsername: "u"}
	if _, err := cfg.Instapaper(); !errors.Is(err, ErrInvalid) {
		t.Fatalf("Instapaper() error = %v, want ErrInvalid", err)
	}
	cfg.InstapaperConsumerSecret = "cs"
	cfg.InstapaperPassword = "pw"
	ic, err := cfg.Instapaper()
	if err != nil {
		t.Fatalf("Instapaper() error = %v", err)
	}
	if ic.Username != "u" {
		t.Fatalf("Username = %q", ic.Username)
	}
}
