package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/use-agent/firescrape/cache"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Maintain the local result cache",
}

var cachePruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete expired cache entries",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.Cache.Backend != "sqlite" {
			fmt.Fprintf(cmd.OutOrStdout(), "cache backend %q keeps nothing on disk\n", cfg.Cache.Backend)
			return nil
		}

		ctx := cmd.Context()
		store, err := cache.NewSQLite(ctx, cfg.Cache.Path)
		if err != nil {
			return err
		}
		defer store.Close()

		removed, err := store.Prune(ctx)
		if err != nil {
			return err
		}
		left, err := store.Count(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "pruned %d expired entries, %d left in %s\n", removed, left, cfg.Cache.Path)
		return nil
	},
}

func init() {
	cacheCmd.AddCommand(cachePruneCmd)
	rootCmd.AddCommand(cacheCmd)
}
