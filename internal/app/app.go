// Package app initializes and holds long-lived application services, acting
// as a dependency injection container.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/pkgfeed/catalog-mirror/internal/api"
	"github.com/pkgfeed/catalog-mirror/internal/catalog"
	"github.com/pkgfeed/catalog-mirror/internal/config"
	"github.com/pkgfeed/catalog-mirror/internal/crawler"
	"github.com/pkgfeed/catalog-mirror/internal/logging"
	"github.com/pkgfeed/catalog-mirror/internal/metrics"
	pubmemory "github.com/pkgfeed/catalog-mirror/internal/publisher/memory"
	"github.com/pkgfeed/catalog-mirror/internal/publisher/noop"
	"github.com/pkgfeed/catalog-mirror/internal/publisher/pubsub"
	"github.com/pkgfeed/catalog-mirror/internal/registration"
)

// App holds all the shared, long-lived services for the application: the
// logger, the feed clients, the event publisher, and the ops HTTP server.
// It is initialized once at startup and passed to the command that needs it.
type App struct {
	logger       *zap.Logger
	cfg          config.Config
	catalog      catalog.Client
	registration registration.Client
	publisher    crawler.Publisher
	opsServer    *api.Server
	pubsubClient *gcppubsub.Client
}

// GetLogger returns the shared zap logger instance.
func (a *App) GetLogger() *zap.Logger {
	return a.logger
}

// GetConfig returns the loaded service configuration.
func (a *App) GetConfig() config.Config {
	return a.cfg
}

// GetCatalog returns the catalog feed client.
func (a *App) GetCatalog() catalog.Client {
	return a.catalog
}

// GetRegistration returns the registration metadata client.
func (a *App) GetRegistration() registration.Client {
	return a.registration
}

// GetPublisher returns the change-event publisher.
func (a *App) GetPublisher() crawler.Publisher {
	return a.publisher
}

// NewApp creates and initializes a new App from the application's
// configuration. It is the central point for service initialization and is
// designed to fail fast if any critical service cannot be built.
func NewApp(ctx context.Context) (*App, error) {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if err := logging.Init(cfg.Development); err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	l := logging.L
	l.Info("Initializing application services...")

	metrics.Init()

	// One pooled HTTP client shared by both feed clients.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
		Transport: &http.Transport{
			MaxIdleConns:        cfg.MaxIdleConnsPerHost * 2,
			MaxIdleConnsPerHost: cfg.MaxIdleConnsPerHost,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	a := &App{
		logger:       l,
		cfg:          cfg,
		catalog:      catalog.NewHTTPClient(cfg.CatalogIndexURL, httpClient),
		registration: registration.NewHTTPClient(cfg.RegistrationBaseURL, httpClient),
	}

	switch cfg.PublisherProvider {
	case "pubsub":
		l.Info("Connecting to GCP Pub/Sub",
			zap.String("project", cfg.PublisherProjectID),
			zap.String("topic", cfg.PublisherTopic))
		client, err := gcppubsub.NewClient(ctx, cfg.PublisherProjectID)
		if err != nil {
			return nil, fmt.Errorf("init pubsub client: %w", err)
		}
		a.pubsubClient = client
		a.publisher = pubsub.New(client.Publisher(cfg.PublisherTopic))
	case "memory":
		l.Info("Using in-memory publisher. Events are retained in process only.")
		a.publisher = pubmemory.New()
	case "noop":
		l.Info("Using No-Op publisher. Change events will be discarded.")
		a.publisher = noop.New()
	default:
		return nil, fmt.Errorf("unknown publisher provider: %s", cfg.PublisherProvider)
	}

	a.opsServer = api.NewServer(cfg.ListenAddr, l)
	go a.opsServer.Start()

	l.Info("Application services initialized successfully.")
	return a, nil
}

// Close gracefully shuts down all services in the App container.
func (a *App) Close() {
	a.logger.Info("Shutting down application services...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.opsServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Warn("Error shutting down ops server", zap.Error(err))
	}

	if a.pubsubClient != nil {
		if err := a.pubsubClient.Close(); err != nil {
			a.logger.Warn("Error closing pubsub client", zap.Error(err))
		}
	}

	// Flush the logger buffer so all logs are written before exit.
	if err := a.logger.Sync(); err != nil {
		// Best-effort: logging itself may be failing.
		a.logger.Warn("Error syncing logger on shutdown", zap.Error(err))
	}
}
