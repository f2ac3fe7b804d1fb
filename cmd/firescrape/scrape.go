package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/use-agent/firescrape/models"
	"github.com/use-agent/firescrape/scraper"
)

type scrapeFlags struct {
	format  string
	actions string
	prompt  string
	noCache bool
	full    bool
	waitFor string
	timeout int
}

var scrapeOpts scrapeFlags

func init() {
	f := rootCmd.Flags()
	f.StringVarP(&scrapeOpts.format, "format", "f", "markdown", "output format: markdown, text, html or json")
	f.StringVarP(&scrapeOpts.actions, "actions", "a", "", `JSON array of actions, e.g. '[{"type":"click","selector":"#btn"}]'`)
	f.StringVarP(&scrapeOpts.prompt, "prompt", "p", "", "AI extraction prompt")
	f.BoolVar(&scrapeOpts.noCache, "no-cache", false, "skip the cache")
	f.BoolVar(&scrapeOpts.full, "full", false, "convert the full page instead of the main content")
	f.StringVar(&scrapeOpts.waitFor, "wait-for", "", "CSS selector to wait for after navigation")
	f.IntVar(&scrapeOpts.timeout, "timeout", 0, "session timeout in seconds (default from config)")
}

func runScrape(cmd *cobra.Command, args []string) error {
	req, err := scrapeOpts.request(args[0])
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	svc, err := scraper.NewService(ctx, cfg)
	if err != nil {
		return err
	}
	defer svc.Close()

	start := time.Now()
	res, err := svc.Scrape(ctx, req)
	if err != nil {
		return err
	}

	if err := writeResult(cmd.OutOrStdout(), res, req.Format); err != nil {
		return err
	}
	writeFooter(os.Stderr, res, time.Since(start))
	return nil
}

// request builds the scrape request for url. A prompt without an explicit
// json format still prints the structured data.
func (o scrapeFlags) request(url string) (models.ScrapeRequest, error) {
	actions, err := models.ParseActions([]byte(o.actions))
	if err != nil {
		return models.ScrapeRequest{}, err
	}

	req := models.ScrapeRequest{
		URL:         url,
		Format:      models.Format(o.format),
		Actions:     actions,
		Prompt:      o.prompt,
		NoCache:     o.noCache,
		ExtractMode: models.ExtractReadability,
		WaitFor:     o.waitFor,
		Timeout:     o.timeout,
	}
	if o.full {
		req.ExtractMode = models.ExtractRaw
	}
	if req.Prompt != "" && (req.Format == "" || req.Format == models.FormatMarkdown) {
		req.Format = models.FormatJSON
	}
	if err := req.Validate(); err != nil {
		return models.ScrapeRequest{}, err
	}
	return req, nil
}

// writeResult prints structured data when present, the selected content
// otherwise.
func writeResult(w io.Writer, res *models.ExtractionResult, format models.Format) error {
	if res.Structured != nil {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		return enc.Encode(res.Structured)
	}
	_, err := fmt.Fprintln(w, res.Content(format))
	return err
}

func writeFooter(w io.Writer, res *models.ExtractionResult, elapsed time.Duration) {
	source := "LIVE"
	if res.FromCache {
		source = "CACHE"
	}
	title := res.Title
	if title == "" {
		title = "?"
	}
	fmt.Fprintf(w, "\n--- [%s] %.1fs | %s ---\n", source, elapsed.Seconds(), title)
	for _, warn := range res.Warnings {
		fmt.Fprintf(w, "warning: [%s] %s\n", warn.Code, warn.Message)
	}
}
