// Package config is responsible for initializing the application's
// configuration. It uses the Viper library to read settings from a config
// file and environment variables, providing a unified configuration system.
package config

import (
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/pkgfeed/catalog-mirror/internal/logging"
)

// InitConfig initializes the application's configuration using Viper.
// It sets up default values, defines configuration search paths, and enables
// reading from environment variables. This function is designed to be called
// once at application startup.
func InitConfig() {
	// --- Set Search Paths ---
	viper.SetConfigName("config")
	viper.AddConfigPath(".")                     // Current working directory
	viper.AddConfigPath("/etc/catalog-mirror/")  // System-wide configuration
	viper.AddConfigPath("$HOME/.catalog-mirror") // User-specific configuration

	// --- Set Defaults ---
	// Sensible defaults for every knob so the service can start against the
	// public feed with no config file at all.
	viper.SetDefault("catalog.index_url", "https://api.nuget.org/v3/catalog0/index.json")
	viper.SetDefault("registration.base_url", "https://api.nuget.org/v3/registration5-gz-semver2")

	viper.SetDefault("mirror.queue_capacity", 128)
	viper.SetDefault("mirror.page_fanout", 8)
	viper.SetDefault("mirror.metadata_workers", 16)
	viper.SetDefault("mirror.poll_interval", "30s")
	viper.SetDefault("mirror.retry_delay", "5s")

	viper.SetDefault("http.timeout", "30s")
	viper.SetDefault("http.max_idle_conns_per_host", 16)

	viper.SetDefault("server.listen_addr", ":8080")

	viper.SetDefault("publisher.provider", "noop")
	viper.SetDefault("publisher.topic", "")
	viper.SetDefault("publisher.gcp.project_id", "")

	viper.SetDefault("log.development", false)

	// --- Environment Variables ---
	viper.SetEnvPrefix("MIRROR") // e.g., MIRROR_MIRROR_POLL_INTERVAL=10s
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// --- Read Config File ---
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found; proceed with defaults and
			// environment variables.
			logging.L.Warn("Config file not found; using defaults and environment variables.")
		} else {
			logging.L.Error("Error reading config file", zap.Error(err))
		}
	} else {
		logging.L.Info("Using config file", zap.String("path", viper.ConfigFileUsed()))
	}
}
