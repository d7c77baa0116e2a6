package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"kotoba/internal/cache"
)

func newCacheCommand(ctx *commandContext) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and manage the translation cache",
	}

	cacheCmd.AddCommand(newCacheStatsCommand(ctx))
	cacheCmd.AddCommand(newCacheClearCommand(ctx))

	return cacheCmd
}

func newCacheStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show translation cache usage",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, warn, err := openCache(cmd, ctx)
			if warn != "" {
				fmt.Fprintln(cmd.OutOrStdout(), warn)
			}
			if err != nil || store == nil {
				return err
			}
			defer store.Close()

			stats, err := store.Stats(cmd.Context())
			if err != nil {
				return err
			}
			rows := [][]string{
				{"Path", stats.Path},
				{"Size", humanBytes(stats.SizeBytes)},
				{"Entries", fmt.Sprintf("%d", stats.Entries)},
				{"Hits", fmt.Sprintf("%d", stats.Hits)},
				{"Oldest", formatStamp(stats.Oldest)},
				{"Newest", formatStamp(stats.Newest)},
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Translation cache", ""}, rows, nil))
			return nil
		},
	}
}

func newCacheClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove every cached translation",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, warn, err := openCache(cmd, ctx)
			if warn != "" {
				fmt.Fprintln(cmd.OutOrStdout(), warn)
			}
			if err != nil || store == nil {
				return err
			}
			defer store.Close()

			removed, err := store.Clear(cmd.Context())
			if err != nil {
				return err
			}
			if removed == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Translation cache already empty")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d cached translations\n", removed)
			return nil
		},
	}
}

func openCache(cmd *cobra.Command, ctx *commandContext) (*cache.Store, string, error) {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return nil, "", err
	}
	if !cfg.Cache.Enabled {
		return nil, "Translation cache is disabled (set cache.enabled = true in config.toml)", nil
	}
	store, err := cache.Open(cmd.Context(), cfg.Cache.Path)
	if err != nil {
		return nil, "", fmt.Errorf("open translation cache: %w", err)
	}
	return store, "", nil
}
