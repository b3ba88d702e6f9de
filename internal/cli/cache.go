package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ppiankov/discussed/internal/cache"
	"github.com/ppiankov/discussed/internal/model"
)

// cacheCmd represents the cache command
var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Maintain the response cache",
	Long: `Maintain the response cache configured under cache.backend.

Entries are served without an expiry check until a sweep deletes them;
"serve" sweeps every cache.sweep_interval, other commands rely on these.`,
}

var cacheSweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Delete entries older than their cache duration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, store, err := openCache(cmd)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		n, err := cache.NewSweeper(store, cfg.Cache.SweepInterval).Sweep(cmd.Context())
		if err != nil {
			return fmt.Errorf("sweep: %w", err)
		}
		fmt.Printf("✓ Deleted %d expired entries (%s cache)\n", n, cfg.Cache.Backend)
		return nil
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every cached entry",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, store, err := openCache(cmd)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		if err := store.Clear(cmd.Context()); err != nil {
			return fmt.Errorf("clear: %w", err)
		}
		fmt.Printf("✓ Cleared %s cache\n", cfg.Cache.Backend)
		return nil
	},
}

func openCache(cmd *cobra.Command) (*model.Config, cache.Store, error) {
	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		return nil, nil, err
	}
	if cfg.Cache.Backend == "memory" {
		return nil, nil, fmt.Errorf("the memory cache lives only inside a running process; configure cache.backend as disk, sqlite or postgres")
	}
	store, err := cache.Open(cmd.Context(), cfg.Cache.Backend, cfg.Cache.Dir, cfg.Cache.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("open cache: %w", err)
	}
	return cfg, store, nil
}

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheSweepCmd)
	cacheCmd.AddCommand(cacheClearCmd)
}
