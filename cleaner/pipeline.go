package cleaner

import (
	"log/slog"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/PuerkitoBio/goquery"

	"github.com/use-agent/firescrape/models"
	"github.com/use-agent/firescrape/simhash"
)

// Default isolation thresholds, in runes of Markdown.
const (
	DefaultMinReadabilityLength = 500
	DefaultMinFragmentLength    = 50
)

// Extraction stages, reported in Extraction.Stage.
const (
	StageReadability = "readability"
	StageBoilerplate = "boilerplate"
	StageFull        = "full"
	StageText        = "text"
)

// Options tunes the isolation heuristics.
type Options struct {
	// MinReadabilityLength is the Markdown length readability output must
	// reach to be used.
	MinReadabilityLength int

	// MinFragmentLength is the Markdown length the boilerplate-stripped
	// document must reach before falling back to the full HTML.
	MinFragmentLength int
}

// ExtractOptions are the per-request knobs of Extract.
type ExtractOptions struct {
	// Mode is models.ExtractReadability (default) or models.ExtractRaw.
	Mode string

	// IncludeSelector narrows the document to matching elements first.
	IncludeSelector string
}

// Extraction is the content extracted from one HTML document.
type Extraction struct {
	Title       string
	Markdown    string
	Text        string
	Metadata    models.Metadata
	Links       []models.Link
	Tokens      models.TokenInfo
	ContentHash uint64
	Stage       string
}

// Cleaner runs the extraction pipeline:
//
//	Stage 1 (isolation): readability, then boilerplate stripping, then the full document
//	Stage 2 (markdown):  convert the chosen fragment to Markdown
//	Stage 3 (text):      strip Markdown syntax
//
// The converter is created once and reused across all requests (goroutine-safe).
type Cleaner struct {
	mdConverter *converter.Converter
	opts        Options
}

// NewCleaner initialises the Cleaner with a pre-configured Markdown converter.
// Zero option values take the package defaults.
func NewCleaner(opts Options) *Cleaner {
	if opts.MinReadabilityLength <= 0 {
		opts.MinReadabilityLength = DefaultMinReadabilityLength
	}
	if opts.MinFragmentLength <= 0 {
		opts.MinFragmentLength = DefaultMinFragmentLength
	}
	return &Cleaner{
		mdConverter: newMarkdownConverter(),
		opts:        opts,
	}
}

// Extract isolates the main content of rawHTML and converts it to Markdown
// and plain text. It is deterministic and never returns empty Markdown for a
// document with visible text; a document without any yields EXTRACTION_EMPTY.
func (c *Cleaner) Extract(rawHTML string, sourceURL string, opts ExtractOptions) (*Extraction, error) {
	if strings.TrimSpace(rawHTML) == "" {
		return nil, models.NewScrapeError(models.ErrCodeExtractionEmpty, "page content is empty", nil)
	}

	source := rawHTML
	if opts.IncludeSelector != "" {
		narrowed, ok, err := narrowToSelector(rawHTML, opts.IncludeSelector)
		switch {
		case err != nil:
			slog.Warn("cleaner: invalid include selector, using full document",
				"selector", opts.IncludeSelector, "error", err,
			)
		case ok:
			source = narrowed
		default:
			slog.Debug("cleaner: include selector matched nothing", "selector", opts.IncludeSelector)
		}
	}

	title, meta := ExtractMetadata(rawHTML)
	var (
		markdown string
		stage    string
	)

	if opts.Mode != models.ExtractRaw {
		article, ok := readArticle(source, sourceURL, c.opts.MinFragmentLength)
		if article.Title != "" {
			title = article.Title
		}
		mergeArticleMetadata(&meta, article.Excerpt, article.SiteName, article.Byline, article.Language)

		if ok {
			if md := c.toMarkdown(article.Content, sourceURL); runeLen(md) >= c.opts.MinReadabilityLength {
				markdown, stage = md, StageReadability
			}
		}

		if markdown == "" {
			if md := c.toMarkdown(StripBoilerplate(source), sourceURL); runeLen(md) >= c.opts.MinFragmentLength {
				markdown, stage = md, StageBoilerplate
			}
		}
	}

	if markdown == "" {
		markdown, stage = c.toMarkdown(source, sourceURL), StageFull
	}

	markdown = withTitle(normalizeMarkdown(markdown), title)
	text := PlainText(markdown)

	if text == "" {
		visible := visibleText(source)
		if visible == "" {
			return nil, models.NewScrapeError(models.ErrCodeExtractionEmpty, "no visible content after fallback", nil)
		}
		markdown, text, stage = visible, visible, StageText
	}

	return &Extraction{
		Title:       title,
		Markdown:    markdown,
		Text:        text,
		Metadata:    meta,
		Links:       ExtractLinks(rawHTML, sourceURL),
		Tokens:      tokenInfo(rawHTML, markdown),
		ContentHash: simhash.Fingerprint(text),
		Stage:       stage,
	}, nil
}

func (c *Cleaner) toMarkdown(fragment, sourceURL string) string {
	if strings.TrimSpace(fragment) == "" {
		return ""
	}
	md, err := ToMarkdown(c.mdConverter, fragment, sourceURL)
	if err != nil {
		slog.Warn("cleaner: markdown conversion failed", "url", sourceURL, "error", err)
		return ""
	}
	return strings.TrimSpace(md)
}

func tokenInfo(rawHTML, markdown string) models.TokenInfo {
	originalTokens := EstimateTokens(rawHTML)
	cleanedTokens := EstimateTokens(markdown)

	savingsPercent := 0.0
	if originalTokens > 0 {
		savingsPercent = float64(originalTokens-cleanedTokens) / float64(originalTokens) * 100
		// Round to 2 decimal places.
		savingsPercent = math.Round(savingsPercent*100) / 100
	}
	return models.TokenInfo{
		OriginalEstimate: originalTokens,
		CleanedEstimate:  cleanedTokens,
		SavingsPercent:   savingsPercent,
	}
}

func mergeArticleMetadata(meta *models.Metadata, excerpt, siteName, byline, lang string) {
	if meta.Description == "" {
		meta.Description = excerpt
	}
	if meta.SiteName == "" {
		meta.SiteName = siteName
	}
	if meta.Author == "" {
		meta.Author = byline
	}
	if meta.Language == "" {
		meta.Language = lang
	}
}

// visibleText extracts the text a reader would see, ignoring script and
// style contents. Returns trimmed plain text.
func visibleText(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return strings.TrimSpace(html)
	}
	doc.Find("script, style, noscript, template").Remove()
	return collapseWhitespace(doc.Text())
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
