package cleaner

import (
	"regexp"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
)

// newMarkdownConverter creates a reusable, goroutine-safe Converter:
//
//   - base plugin: strips script, style, iframe, noscript, head, meta, link,
//     input, textarea and HTML comments.
//   - commonmark plugin: ATX headings, lists, links, fenced code blocks,
//     emphasis and blockquotes.
//   - table plugin: keeps table structure with minimal cell padding.
func newMarkdownConverter() *converter.Converter {
	return converter.NewConverter(
		converter.WithPlugins(
			base.NewBasePlugin(),
			commonmark.NewCommonmarkPlugin(),
			table.NewTablePlugin(
				table.WithCellPaddingBehavior(table.CellPaddingBehaviorMinimal),
			),
		),
	)
}

// ToMarkdown converts clean HTML to Markdown using html-to-markdown v2.
//
// The domain parameter is used to resolve relative URLs in <a> and <img> tags
// into absolute URLs, so the Markdown output is self-contained.
func ToMarkdown(conv *converter.Converter, htmlContent string, domain string) (string, error) {
	return conv.ConvertString(htmlContent, converter.WithDomain(domain))
}

var (
	blankLinesRe    = regexp.MustCompile(`\n[ \t]*\n(?:[ \t]*\n)+`)
	trailingSpaceRe = regexp.MustCompile(`[ \t]+\n`)
)

// normalizeMarkdown collapses runs of blank lines and trailing spaces.
func normalizeMarkdown(md string) string {
	md = strings.ReplaceAll(md, "\r\n", "\n")
	md = trailingSpaceRe.ReplaceAllString(md, "\n")
	md = blankLinesRe.ReplaceAllString(md, "\n\n")
	return strings.TrimSpace(md)
}

// withTitle prepends "# title" unless the document already opens with it.
func withTitle(md, title string) string {
	title = collapseWhitespace(title)
	if title == "" {
		return md
	}
	heading := "# " + title
	if strings.HasPrefix(md, heading) {
		return md
	}
	if md == "" {
		return heading
	}
	return heading + "\n\n" + md
}
