package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/vjranagit/groundmotion/internal/config"
	"github.com/vjranagit/groundmotion/pkg/storage"
)

const (
	version = "0.3.0"
)

var (
	configPath string

	cfg    *config.Config
	logger *slog.Logger
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:     "groundmotion",
		Short:   "Store and query earthquake ground motion records",
		Version: version,
		Long: `groundmotion keeps acceleration, velocity and displacement histories
of earthquake records and answers point and peak queries against them.
Missing velocity and displacement are derived by numerical integration.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load(configPath)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			logger = cfg.NewLogger()
			slog.SetDefault(logger)
			return nil
		},
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")

	root.AddCommand(
		newImportCmd(),
		newListCmd(),
		newQueryCmd(),
		newPeaksCmd(),
		newDeleteCmd(),
		newServeCmd(),
	)

	return root
}

// openStore opens the configured store wrapped in the record cache
func openStore() (*storage.CachedStore, error) {
	store, err := storage.NewStorage(cfg.ToStorageConfig(logger))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	return storage.NewCachedStore(store, cfg.Storage.CacheCapacity), nil
}
