package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pkgfeed/catalog-mirror/internal/clock/system"
	"github.com/pkgfeed/catalog-mirror/internal/id/uuid"
	"github.com/pkgfeed/catalog-mirror/internal/mirror"
	"github.com/pkgfeed/catalog-mirror/internal/producer"
	"github.com/pkgfeed/catalog-mirror/internal/worker"
)

// newCrawlCmd creates and configures the 'crawl' subcommand, which runs the
// mirror as a long-lived service until terminated.
func newCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Runs the catalog mirror until terminated",
		Long: `Starts the crawl loop: poll the catalog feed, discover changed package
identifiers, and refresh their registration metadata. Runs until SIGINT or
SIGTERM.`,

		RunE: runCrawlCommand,
	}
	return cmd
}

func runCrawlCommand(cmd *cobra.Command, _ []string) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := appInstance.GetConfig()
	logger := appInstance.GetLogger()
	clock := system.New()

	prod := producer.New(
		appInstance.GetCatalog(),
		producer.Config{
			FanoutCap:  cfg.PageFanout,
			RetryDelay: cfg.RetryDelay,
		},
		logger,
	)
	pool := worker.New(
		appInstance.GetRegistration(),
		appInstance.GetPublisher(),
		clock,
		worker.Config{
			Workers: cfg.MetadataWorkers,
			Topic:   cfg.PublisherTopic,
		},
		logger,
	)
	m := mirror.New(
		prod,
		pool,
		uuid.NewGenerator(),
		clock,
		mirror.Config{
			QueueCapacity: cfg.QueueCapacity,
			PollInterval:  cfg.PollInterval,
		},
		logger,
	)

	if err := m.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("run mirror: %w", err)
	}

	logger.Info("Mirror stopped.")
	return nil
}
