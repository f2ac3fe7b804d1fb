package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/use-agent/firescrape/models"
	"github.com/use-agent/firescrape/scraper"
	"github.com/use-agent/firescrape/webhook"
)

var (
	batchConcurrency int
	batchWebhook     string
	batchSecret      string
	batchFormat      string
	batchFull        bool
	batchJSON        bool
)

var batchCmd = &cobra.Command{
	Use:   "batch URL...",
	Short: "Scrape several URLs in parallel",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		svc, err := scraper.NewService(ctx, cfg)
		if err != nil {
			return err
		}
		defer svc.Close()

		start := time.Now()
		res := svc.Batch(ctx, batchJob(args))

		if batchWebhook != "" {
			if err := webhook.Deliver(ctx, batchWebhook, batchSecret, webhook.BatchCompleted(res)); err != nil {
				slog.Warn("webhook delivery failed", "url", batchWebhook, "error", err)
			}
		}

		if batchJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(models.NewBatchResponse(res)); err != nil {
				return err
			}
		} else {
			writeBatch(cmd.OutOrStdout(), res, models.Format(batchFormat))
		}

		fmt.Fprintf(os.Stderr, "\n--- %d/%d succeeded in %.1fs ---\n",
			res.Succeeded(), len(res.Items), time.Since(start).Seconds())
		if res.Succeeded() == 0 {
			return fmt.Errorf("all %d urls failed", len(res.Items))
		}
		return nil
	},
}

func init() {
	f := batchCmd.Flags()
	f.IntVar(&batchConcurrency, "concurrency", 0, "parallel sessions (default from config)")
	f.StringVar(&batchWebhook, "webhook", "", "URL that receives a batch.completed event")
	f.StringVar(&batchSecret, "webhook-secret", "", "HMAC secret for the webhook signature")
	f.StringVarP(&batchFormat, "format", "f", "markdown", "output format: markdown, text or html")
	f.BoolVar(&batchFull, "full", false, "convert the full page instead of the main content")
	f.BoolVar(&batchJSON, "json", false, "print the batch result as JSON")
	rootCmd.AddCommand(batchCmd)
}

func batchJob(urls []string) models.BatchJob {
	mode := models.ExtractReadability
	if batchFull {
		mode = models.ExtractRaw
	}
	reqs := make([]models.ScrapeRequest, 0, len(urls))
	for _, u := range urls {
		reqs = append(reqs, models.ScrapeRequest{URL: u, Format: models.Format(batchFormat), ExtractMode: mode})
	}
	return models.BatchJob{
		ID:             "batch-" + uuid.NewString(),
		Requests:       reqs,
		MaxConcurrency: batchConcurrency,
	}
}

// writeBatch prints one section per slot, in submission order.
func writeBatch(w io.Writer, res *models.BatchResult, format models.Format) {
	for i, item := range res.Items {
		if i > 0 {
			fmt.Fprintln(w, "\n---")
		}
		if item.Failed() {
			d := models.DetailOf(item.Err)
			fmt.Fprintf(w, "FAILED: %s [%s] %s\n", item.URL, d.Code, d.Message)
			continue
		}
		fmt.Fprintf(w, "# %s\n\n%s\n", item.URL, item.Result.Content(format))
	}
}
