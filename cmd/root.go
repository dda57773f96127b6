// Package cmd defines and implements the CLI commands for the catalog-mirror
// executable.
package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pkgfeed/catalog-mirror/internal/app"
	"github.com/pkgfeed/catalog-mirror/internal/catalog"
	appconfig "github.com/pkgfeed/catalog-mirror/internal/config"
	"github.com/pkgfeed/catalog-mirror/internal/crawler"
	"github.com/pkgfeed/catalog-mirror/internal/logging"
	"github.com/pkgfeed/catalog-mirror/internal/registration"
	"github.com/pkgfeed/catalog-mirror/pkg/config"
)

var cfgFile string

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// App defines the application interface that commands use. This allows a
// mock app to be injected during tests.
type App interface {
	Close()
	GetLogger() *zap.Logger
	GetConfig() appconfig.Config
	GetCatalog() catalog.Client
	GetRegistration() registration.Client
	GetPublisher() crawler.Publisher
}

// newApp is the application factory. It's a variable so tests can replace it
// with a mock factory.
var newApp func(ctx context.Context) (App, error) = func(ctx context.Context) (App, error) {
	return app.NewApp(ctx)
}

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog-mirror",
		Short: "Continuously mirrors a package catalog's change feed.",
		Long: `catalog-mirror polls the incremental change feed of a remote package
catalog, discovers which package identifiers changed in each cursor window,
and refreshes their registration metadata with a bounded worker pipeline.`,

		// Runs AFTER config is loaded but BEFORE the subcommand's RunE:
		// the place to build and inject the application services.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := newApp(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}

			ctx := context.WithValue(cmd.Context(), appKey, appInstance)
			cmd.SetContext(ctx)
			return nil
		},

		// Ensures services are shut down gracefully.
		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if appInstance, ok := cmd.Context().Value(appKey).(App); ok && appInstance != nil {
				appInstance.Close()
			}
		},
	}

	cobra.OnInitialize(config.InitConfig)

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default searches ., /etc/catalog-mirror, $HOME/.catalog-mirror)")

	cmd.AddCommand(newCrawlCmd())

	return cmd
}

func resolveApp(ctx context.Context) (App, error) {
	appInstance, ok := ctx.Value(appKey).(App)
	if !ok || appInstance == nil {
		return nil, fmt.Errorf("application services not initialized")
	}
	return appInstance, nil
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		logging.L.Fatal("Command execution failed", zap.Error(err))
	}
}
