package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/mark3labs/mcp-go/server"

	"github.com/use-agent/firescrape/config"
	"github.com/use-agent/firescrape/mcpserver"
	"github.com/use-agent/firescrape/scraper"
)

const version = "0.1.0"

func main() {
	remote := flag.String("remote", os.Getenv("FIRESCRAPE_API"), "forward tool calls to the firescrape API at this URL instead of scraping in-process")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	// stdout carries the protocol, so logs go to stderr.
	slog.SetDefault(cfg.Log.NewLogger(os.Stderr))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sc, closeFn, err := newScraper(ctx, cfg, *remote, os.Getenv("FIRESCRAPE_API_KEY"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "init scraper: %v\n", err)
		os.Exit(1)
	}

	err = server.ServeStdio(mcpserver.New(sc, version))
	if cerr := closeFn(); cerr != nil {
		slog.Warn("close scraper", "error", cerr)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

// newScraper picks the remote API client when apiURL is set and the
// in-process pipeline otherwise.
func newScraper(ctx context.Context, cfg *config.Config, apiURL, apiKey string) (mcpserver.Scraper, func() error, error) {
	if apiURL != "" {
		slog.Info("firescrape mcp server ready", "mode", "remote", "api", apiURL)
		return mcpserver.NewRemote(apiURL, apiKey), func() error { return nil }, nil
	}

	svc, err := scraper.NewService(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	slog.Info("firescrape mcp server ready", "mode", "local", "engine", svc.Engine(), "cache", svc.CacheBackend())
	return svc, svc.Close, nil
}
