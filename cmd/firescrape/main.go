package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/use-agent/firescrape/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "firescrape URL",
	Short: "Local web scraper with browser actions and AI extraction",
	Long: `Renders a page in headless Chrome, optionally runs click/type/scroll/wait
actions, and prints the cleaned main content. Results are cached locally.`,
	Args:          cobra.ExactArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		slog.SetDefault(cfg.Log.NewLogger(os.Stderr))
		return nil
	},
	RunE: runScrape,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
