// Package config loads the typed service configuration from Viper.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds every setting the mirror service reads at startup. It is
// decoupled from Viper so the pipeline components stay testable without
// global state.
type Config struct {
	CatalogIndexURL     string
	RegistrationBaseURL string

	QueueCapacity   int
	PageFanout      int
	MetadataWorkers int
	PollInterval    time.Duration
	RetryDelay      time.Duration

	HTTPTimeout         time.Duration
	MaxIdleConnsPerHost int

	ListenAddr string

	PublisherProvider  string
	PublisherTopic     string
	PublisherProjectID string

	Development bool
}

// Load reads the typed configuration from v and validates it, failing fast
// on anything the pipeline cannot run with.
func Load(v *viper.Viper) (Config, error) {
	cfg := Config{
		CatalogIndexURL:     v.GetString("catalog.index_url"),
		RegistrationBaseURL: v.GetString("registration.base_url"),

		QueueCapacity:   v.GetInt("mirror.queue_capacity"),
		PageFanout:      v.GetInt("mirror.page_fanout"),
		MetadataWorkers: v.GetInt("mirror.metadata_workers"),
		PollInterval:    v.GetDuration("mirror.poll_interval"),
		RetryDelay:      v.GetDuration("mirror.retry_delay"),

		HTTPTimeout:         v.GetDuration("http.timeout"),
		MaxIdleConnsPerHost: v.GetInt("http.max_idle_conns_per_host"),

		ListenAddr: v.GetString("server.listen_addr"),

		PublisherProvider:  v.GetString("publisher.provider"),
		PublisherTopic:     v.GetString("publisher.topic"),
		PublisherProjectID: v.GetString("publisher.gcp.project_id"),

		Development: v.GetBool("log.development"),
	}

	if cfg.CatalogIndexURL == "" {
		return Config{}, fmt.Errorf("catalog.index_url must be set")
	}
	if cfg.RegistrationBaseURL == "" {
		return Config{}, fmt.Errorf("registration.base_url must be set")
	}
	if cfg.QueueCapacity <= 0 {
		return Config{}, fmt.Errorf("mirror.queue_capacity must be positive, got %d", cfg.QueueCapacity)
	}
	if cfg.PageFanout <= 0 {
		return Config{}, fmt.Errorf("mirror.page_fanout must be positive, got %d", cfg.PageFanout)
	}
	if cfg.MetadataWorkers <= 0 {
		return Config{}, fmt.Errorf("mirror.metadata_workers must be positive, got %d", cfg.MetadataWorkers)
	}
	if cfg.PollInterval <= 0 {
		return Config{}, fmt.Errorf("mirror.poll_interval must be positive, got %s", cfg.PollInterval)
	}
	if cfg.RetryDelay <= 0 {
		return Config{}, fmt.Errorf("mirror.retry_delay must be positive, got %s", cfg.RetryDelay)
	}
	switch cfg.PublisherProvider {
	case "noop", "memory":
	case "pubsub":
		if cfg.PublisherProjectID == "" || cfg.PublisherTopic == "" {
			return Config{}, fmt.Errorf("publisher.provider is 'pubsub' but project_id or topic is not set")
		}
	default:
		return Config{}, fmt.Errorf("unknown publisher provider: %s", cfg.PublisherProvider)
	}

	return cfg, nil
}
