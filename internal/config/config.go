// Package config loads and validates atlas configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/atlas-archive/atlas/internal/fetcher"
	"github.com/atlas-archive/atlas/internal/instapaper"
	"github.com/atlas-archive/atlas/internal/paths"
)

// RetryQueueFile is the queue name inside the data directory.
const RetryQueueFile = "retry_queue.jsonl"

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Config captures every setting. Unknown keys are rejected at load time.
type Config struct {
	DataDirectory            string         `mapstructure:"data_directory"`
	ArticleOutputPath        string         `mapstructure:"article_output_path"`
	InstapaperOutputPath     string         `mapstructure:"instapaper_output_path"`
	PodcastOutputPath        string         `mapstructure:"podcast_output_path"`
	YouTubeOutputPath        string         `mapstructure:"youtube_output_path"`
	RetryQueuePath           string         `mapstructure:"retry_queue_path"`
	InstapaperConsumerKey    string         `mapstructure:"instapaper_consumer_key"`
	InstapaperConsumerSecret string         `mapstructure:"instapaper_consumer_secret"`
	InstapaperUsername       string         `mapstructure:"instapaper_username"`
	InstapaperPassword       string         `mapstructure:"instapaper_password"`
	InstapaperAPIBase        string         `mapstructure:"instapaper_api_base"`
	InstapaperMinInterval    time.Duration  `mapstructure:"instapaper_min_interval"`
	InstapaperBatchSize      int            `mapstructure:"instapaper_batch_size"`
	InstapaperBatchPause     time.Duration  `mapstructure:"instapaper_batch_pause"`
	FetchStrategies          []string       `mapstructure:"fetch_strategies"`
	HeadlessEnabled          bool           `mapstructure:"headless_enabled"`
	YtDLPPath                string         `mapstructure:"ytdlp_path"`
	LogDevelopment           bool           `mapstructure:"log_development"`
	MetricsTextfile          string         `mapstructure:"metrics_textfile"`
	Evaluator                map[string]any `mapstructure:"evaluator"`
}

// Load unmarshals v strictly and validates the result.
func Load(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.UnmarshalExact(&cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) normalize() {
	c.DataDirectory = strings.TrimSpace(c.DataDirectory)
	if c.DataDirectory != "" {
		c.DataDirectory = filepath.Clean(c.DataDirectory)
	}
	if strings.TrimSpace(c.RetryQueuePath) == "" && c.DataDirectory != "" {
		c.RetryQueuePath = filepath.Join(c.DataDirectory, RetryQueueFile)
	}
	strategies := make([]string, 0, len(c.FetchStrategies))
	for _, s := range c.FetchStrategies {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			strategies = append(strategies, s)
		}
	}
	c.FetchStrategies = strategies
}

// Validate enforces required values and sane limits.
func (c Config) Validate() error {
	if c.DataDirectory == "" {
		return fmt.Errorf("%w: data_directory is required", ErrInvalid)
	}
	if len(c.FetchStrategies) == 0 {
		return fmt.Errorf("%w: fetch_strategies must name at least one strategy", ErrInvalid)
	}
	if err := fetcher.ValidNames(c.FetchStrategies); err != nil {
		return fmt.Errorf("%w: fetch_strategies: %v", ErrInvalid, err)
	}
	if c.InstapaperMinInterval < 0 {
		return fmt.Errorf("%w: instapaper_min_interval must be >= 0", ErrInvalid)
	}
	if c.InstapaperBatchSize <= 0 {
		return fmt.Errorf("%w: instapaper_batch_size must be > 0", ErrInvalid)
	}
	if c.InstapaperBatchPause < 0 {
		return fmt.Errorf("%w: instapaper_batch_pause must be >= 0", ErrInvalid)
	}
	if _, err := c.PathConfig(); err != nil {
		return err
	}
	return nil
}

// PathConfig returns the path-manager settings.
func (c Config) PathConfig() (paths.Config, error) {
	bases := map[paths.ContentType]string{}
	for ct, dir := range map[paths.ContentType]string{
		paths.Article:    c.ArticleOutputPath,
		paths.Instapaper: c.InstapaperOutputPath,
		paths.Podcast:    c.PodcastOutputPath,
		paths.YouTube:    c.YouTubeOutputPath,
	} {
		dir = strings.TrimSpace(dir)
		if dir == "" {
			continue
		}
		if filepath.IsAbs(dir) && !within(c.DataDirectory, dir) {
			return paths.Config{}, fmt.Errorf("%w: %s_output_path %q is outside data_directory", ErrInvalid, ct, dir)
		}
		bases[ct] = dir
	}
	return paths.Config{DataDir: c.DataDirectory, BaseDirs: bases}, nil
}

// Instapaper returns the API client settings, validating the credentials.
func (c Config) Instapaper() (instapaper.Config, error) {
	cfg := instapaper.Config{
		BaseURL:        c.InstapaperAPIBase,
		ConsumerKey:    c.InstapaperConsumerKey,
		ConsumerSecret: c.InstapaperConsumerSecret,
		Username:       c.InstapaperUsername,
		Password:       c.InstapaperPassword,
	}
	if err := cfg.Validate(); err != nil {
		return instapaper.Config{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return cfg, nil
}

func within(root, p string) bool {
	rel, err := filepath.Rel(filepath.Clean(root), filepath.Clean(p))
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
