// Package llm turns page text plus a natural-language prompt into structured
// data. Backends are selected by configuration; a nil Extractor means AI
// extraction is disabled.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/use-agent/firescrape/config"
	"github.com/use-agent/firescrape/models"
)

// DefaultMaxInputChars is how much page text is sent when unconfigured.
const DefaultMaxInputChars = 8000

// Input is one extraction request.
type Input struct {
	URL     string
	Title   string
	Content string
	Prompt  string
}

// Extractor produces structured data from page content.
type Extractor interface {
	Extract(ctx context.Context, in Input) (map[string]any, error)
}

// ExtractorFunc adapts a function to the Extractor interface.
type ExtractorFunc func(ctx context.Context, in Input) (map[string]any, error)

func (f ExtractorFunc) Extract(ctx context.Context, in Input) (map[string]any, error) {
	return f(ctx, in)
}

// New builds the extractor named by cfg.Provider. It returns nil, nil
// when no provider is configured.
func New(cfg config.LLMConfig) (Extractor, error) {
	switch cfg.Provider {
	case "", "none":
		return nil, nil
	case "openai":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("llm: openai provider requires an api key")
		}
		return NewOpenAI(cfg, nil), nil
	case "anthropic":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("llm: anthropic provider requires an api key")
		}
		return NewAnthropic(cfg), nil
	default:
		return nil, fmt.Errorf("llm: unknown provider %q", cfg.Provider)
	}
}

const systemPrompt = `You are a structured data extraction assistant. Extract the requested information from the page content and return it as a single JSON object.

Rules:
- Return ONLY valid JSON, no markdown fences or explanation.
- If a requested field cannot be found in the content, use null.`

// buildPrompt renders the user message, truncating the page text to
// maxChars runes.
func buildPrompt(in Input, maxChars int) string {
	if maxChars <= 0 {
		maxChars = DefaultMaxInputChars
	}
	content := in.Content
	if r := []rune(content); len(r) > maxChars {
		content = string(r[:maxChars])
	}

	var b strings.Builder
	b.WriteString(strings.TrimSpace(in.Prompt))
	b.WriteString("\n\nRespond ONLY with valid JSON, no markdown formatting.\n\n")
	if in.Title != "" {
		b.WriteString("Page title: " + in.Title + "\n")
	}
	if in.URL != "" {
		b.WriteString("Page URL: " + in.URL + "\n")
	}
	b.WriteString("Page content:\n")
	b.WriteString(content)
	return b.String()
}

// parseStructured decodes a model reply into an object. Code fences are
// stripped and a top-level array is returned under "items".
func parseStructured(reply string) (map[string]any, error) {
	raw := strings.TrimSpace(reply)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```")
		if nl := strings.IndexByte(raw, '\n'); nl >= 0 {
			raw = raw[nl+1:]
		}
		raw = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(raw), "```"))
	}

	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return nil, models.NewScrapeError(models.ErrCodeAIExtraction, "model returned invalid JSON", err)
	}
	switch t := v.(type) {
	case map[string]any:
		return t, nil
	case []any:
		return map[string]any{"items": t}, nil
	default:
		return nil, models.NewScrapeError(models.ErrCodeAIExtraction, "model returned a JSON scalar, want an object", nil)
	}
}
