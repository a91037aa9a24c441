// Package config bootstraps Viper for the atlas CLI. It sets up search paths,
// defaults and environment variables so that internal/config can unmarshal a
// complete settings snapshot.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix namespaces environment overrides, e.g. ATLAS_DATA_DIRECTORY.
const EnvPrefix = "ATLAS"

// Keys enumerates every recognised setting.
var Keys = []string{
	"data_directory",
	"article_output_path",
	"instapaper_output_path",
	"podcast_output_path",
	"youtube_output_path",
	"retry_queue_path",
	"instapaper_consumer_key",
	"instapaper_consumer_secret",
	"instapaper_username",
	"instapaper_password",
	"instapaper_api_base",
	"instapaper_min_interval",
	"instapaper_batch_size",
	"instapaper_batch_pause",
	"fetch_strategies",
	"headless_enabled",
	"ytdlp_path",
	"log_development",
	"metrics_textfile",
	"evaluator",
}

// Init configures v. An explicit file must exist; otherwise config.yaml is
// searched in ".", /etc/atlas and $HOME/.atlas and may be absent. It returns
// the config file used, if any.
func Init(v *viper.Viper, file string) (string, error) {
	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/atlas/")
		v.AddConfigPath("$HOME/.atlas")
	}

	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range Keys {
		if err := v.BindEnv(key); err != nil {
			return "", fmt.Errorf("bind env %s: %w", key, err)
		}
	}
	// Instapaper credentials are also read from their conventional names.
	for _, key := range []string{"consumer_key", "consumer_secret", "username", "password"} {
		full := "instapaper_" + key
		if err := v.BindEnv(full, EnvPrefix+"_"+strings.ToUpper(full), strings.ToUpper(full)); err != nil {
			return "", fmt.Errorf("bind env %s: %w", full, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file == "" && errors.As(err, &notFound) {
			return "", nil
		}
		return "", fmt.Errorf("read config: %w", err)
	}
	return v.ConfigFileUsed(), nil
}

// SetDefaults installs the shipped defaults.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("instapaper_api_base", "https://www.instapaper.com/api/1")
	v.SetDefault("instapaper_min_interval", time.Second)
	v.SetDefault("instapaper_batch_size", 5)
	v.SetDefault("instapaper_batch_pause", 5*time.Second)
	v.SetDefault("fetch_strategies", []string{
		"direct",
		"12ft_bypass",
		"archive_today",
		"googlebot",
		"headless_browser",
		"wayback_machine",
	})
	v.SetDefault("headless_enabled", true)
	v.SetDefault("ytdlp_path", "yt-dlp")
	v.SetDefault("log_development", true)
}
