// Package mcpserver exposes the scrape pipeline as MCP tools.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/use-agent/firescrape/models"
)

// Output limits, in characters.
const (
	MaxScrapeChars       = 50000
	MaxBatchSectionChars = 10000
)

const batchSeparator = "\n---\n"

// Scraper is the pipeline the tools drive.
type Scraper interface {
	Scrape(ctx context.Context, req models.ScrapeRequest) (*models.ExtractionResult, error)
	Batch(ctx context.Context, job models.BatchJob) *models.BatchResult
}

// New builds an MCP server with the firescrape_scrape, firescrape_batch
// and firescrape_extract tools registered.
func New(sc Scraper, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"firescrape",
		version,
		server.WithToolCapabilities(false),
	)

	s.AddTool(scrapeTool(), HandleScrape(sc))
	s.AddTool(batchTool(), HandleBatch(sc))
	s.AddTool(extractTool(), HandleExtract(sc))

	return s
}

func scrapeTool() mcp.Tool {
	return mcp.NewTool("firescrape_scrape",
		mcp.WithDescription("Scrape a web page with a headless browser and return clean content. Optional actions (click, type, scroll, wait) run before extraction; an optional prompt adds AI structured extraction."),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("The URL of the web page to scrape"),
		),
		mcp.WithString("format",
			mcp.Description("Output format: 'markdown' (default), 'text', 'html' or 'json' (requires prompt)"),
			mcp.Enum("markdown", "text", "html", "json"),
		),
		mcp.WithBoolean("onlyMainContent",
			mcp.Description("Extract only the main article content (default: true). false converts the whole page."),
		),
		mcp.WithString("prompt",
			mcp.Description("Describe the data to extract with AI; the result is returned as JSON"),
		),
		mcp.WithArray("actions",
			mcp.Description(`Browser actions run in order after the page loads, e.g. [{"type":"click","selector":"#more"},{"type":"wait","milliseconds":500}]`),
		),
		mcp.WithString("waitFor",
			mcp.Description("CSS selector to wait for after navigation"),
		),
		mcp.WithBoolean("noCache",
			mcp.Description("Bypass the local cache (default: false)"),
		),
	)
}

func batchTool() mcp.Tool {
	return mcp.NewTool("firescrape_batch",
		mcp.WithDescription("Scrape several URLs in parallel. One failing URL does not affect the others."),
		mcp.WithArray("urls",
			mcp.Required(),
			mcp.Description("List of URLs to scrape"),
		),
		mcp.WithString("format",
			mcp.Description("Output format: 'markdown' (default), 'text' or 'html'"),
			mcp.Enum("markdown", "text", "html"),
		),
		mcp.WithBoolean("onlyMainContent",
			mcp.Description("Extract only the main article content (default: true)"),
		),
	)
}

func extractTool() mcp.Tool {
	return mcp.NewTool("firescrape_extract",
		mcp.WithDescription("Scrape a web page and extract structured data with the configured LLM provider."),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("The URL of the web page to scrape"),
		),
		mcp.WithString("prompt",
			mcp.Required(),
			mcp.Description("Describe the data to extract"),
		),
	)
}

// HandleScrape serves firescrape_scrape.
func HandleScrape(sc Scraper) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		url, err := request.RequireString("url")
		if err != nil {
			return mcp.NewToolResultError("url is required"), nil
		}

		actions, err := parseActionsArg(request.GetArguments()["actions"])
		if err != nil {
			return mcp.NewToolResultError(errorText(err)), nil
		}

		req := models.ScrapeRequest{
			URL:         url,
			Format:      models.Format(request.GetString("format", "")),
			ExtractMode: extractMode(request.GetBool("onlyMainContent", true)),
			Prompt:      request.GetString("prompt", ""),
			Actions:     actions,
			WaitFor:     request.GetString("waitFor", ""),
			NoCache:     request.GetBool("noCache", false),
		}
		if req.Format == models.FormatJSON && req.Prompt == "" {
			return mcp.NewToolResultError("format 'json' requires a prompt"), nil
		}

		res, err := sc.Scrape(ctx, req)
		if err != nil {
			slog.Warn("mcp scrape failed", "url", url, "code", models.CodeOf(err), "error", err)
			return mcp.NewToolResultError(errorText(err)), nil
		}

		var sb strings.Builder
		if res.Title != "" {
			fmt.Fprintf(&sb, "Title: %s\n", res.Title)
		}
		fmt.Fprintf(&sb, "Source: %s\n\n", res.SourceURL)

		if req.Prompt != "" && res.Structured != nil {
			sb.WriteString(prettyJSON(res.Structured))
			if req.Format != models.FormatJSON {
				sb.WriteString("\n\n")
			}
		}
		if req.Format != models.FormatJSON {
			sb.WriteString(res.Content(req.Format))
		}
		writeWarnings(&sb, res.Warnings)

		return mcp.NewToolResultText(Truncate(sb.String(), MaxScrapeChars)), nil
	}
}

// HandleBatch serves firescrape_batch.
func HandleBatch(sc Scraper) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		urls, err := request.RequireStringSlice("urls")
		if err != nil || len(urls) == 0 {
			return mcp.NewToolResultError("urls is required and must be a non-empty array of strings"), nil
		}

		format := models.Format(request.GetString("format", ""))
		mode := extractMode(request.GetBool("onlyMainContent", true))

		reqs := make([]models.ScrapeRequest, 0, len(urls))
		for _, u := range urls {
			reqs = append(reqs, models.ScrapeRequest{URL: u, Format: format, ExtractMode: mode})
		}

		res := sc.Batch(ctx, models.BatchJob{Requests: reqs})

		sections := make([]string, 0, len(res.Items))
		for _, item := range res.Items {
			if item.Failed() {
				slog.Debug("mcp batch slot failed", "url", item.URL, "code", models.CodeOf(item.Err))
				sections = append(sections, "FAILED: "+item.URL)
				continue
			}
			content := fmt.Sprintf("# %s\n\n%s", item.URL, item.Result.Content(format))
			sections = append(sections, Truncate(content, MaxBatchSectionChars))
		}

		return mcp.NewToolResultText(strings.Join(sections, batchSeparator)), nil
	}
}

// HandleExtract serves firescrape_extract.
func HandleExtract(sc Scraper) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		url, err := request.RequireString("url")
		if err != nil {
			return mcp.NewToolResultError("url is required"), nil
		}
		prompt, err := request.RequireString("prompt")
		if err != nil {
			return mcp.NewToolResultError("prompt is required"), nil
		}

		extract := models.ExtractRequest{URL: url, Prompt: prompt}
		res, err := sc.Scrape(ctx, extract.ToScrapeRequest())
		if err != nil {
			return mcp.NewToolResultError(errorText(err)), nil
		}
		if res.Structured == nil {
			msg := "AI extraction produced no data"
			for _, w := range res.Warnings {
				if w.Code == models.ErrCodeAIExtraction {
					msg = fmt.Sprintf("[%s] %s", w.Code, w.Message)
				}
			}
			return mcp.NewToolResultError(msg), nil
		}

		return mcp.NewToolResultText(Truncate(prettyJSON(res.Structured), MaxScrapeChars)), nil
	}
}

// Truncate cuts s to at most limit runes, marking the cut.
func Truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit]) + "\n\n[truncated]"
}

// parseActionsArg accepts the actions argument either as a JSON array or
// as a string holding one.
func parseActionsArg(v any) ([]models.Action, error) {
	switch a := v.(type) {
	case nil:
		return nil, nil
	case string:
		return models.ParseActions([]byte(a))
	default:
		data, err := json.Marshal(a)
		if err != nil {
			return nil, models.NewScrapeError(models.ErrCodeInvalidInput, "invalid actions payload", err)
		}
		return models.ParseActions(data)
	}
}

func extractMode(onlyMain bool) string {
	if onlyMain {
		return models.ExtractReadability
	}
	return models.ExtractRaw
}

func errorText(err error) string {
	d := models.DetailOf(err)
	return fmt.Sprintf("[%s] %s", d.Code, d.Message)
}

func prettyJSON(v any) string {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}

func writeWarnings(sb *strings.Builder, warnings []models.ErrorDetail) {
	if len(warnings) == 0 {
		return
	}
	sb.WriteString("\n\n---\nWarnings:\n")
	for _, w := range warnings {
		fmt.Fprintf(sb, "- [%s] %s\n", w.Code, w.Message)
	}
}
