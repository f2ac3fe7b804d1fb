package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/use-agent/firescrape/config"
	"github.com/use-agent/firescrape/models"
)

const defaultAnthropicModel = "claude-haiku-4-5"

// Anthropic extracts structured data through the Messages API.
type Anthropic struct {
	client sdk.Client
	cfg    config.LLMConfig
}

// NewAnthropic creates a client. cfg.BaseURL overrides the API endpoint.
func NewAnthropic(cfg config.LLMConfig, opts ...option.RequestOption) *Anthropic {
	if cfg.Model == "" {
		cfg.Model = defaultAnthropicModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 4096
	}

	base := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		base = append(base, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Timeout > 0 {
		base = append(base, option.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}))
	}
	return &Anthropic{
		client: sdk.NewClient(append(base, opts...)...),
		cfg:    cfg,
	}
}

func (a *Anthropic) Extract(ctx context.Context, in Input) (map[string]any, error) {
	msg, err := a.client.Messages.New(ctx, sdk.MessageNewParams{
		Model:     sdk.Model(a.cfg.Model),
		MaxTokens: int64(a.cfg.MaxTokens),
		System:    []sdk.TextBlockParam{{Text: systemPrompt}},
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(sdk.NewTextBlock(buildPrompt(in, a.cfg.MaxInputChars))),
		},
	})
	if err != nil {
		var apiErr *sdk.Error
		if errors.As(err, &apiErr) {
			return nil, models.NewScrapeError(models.ErrCodeAIExtraction,
				fmt.Sprintf("LLM API returned %d", apiErr.StatusCode), err)
		}
		return nil, models.NewScrapeError(models.ErrCodeAIExtraction, "LLM request failed", err)
	}

	var b strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	if b.Len() == 0 {
		return nil, models.NewScrapeError(models.ErrCodeAIExtraction, "LLM returned no text", nil)
	}
	return parseStructured(b.String())
}
