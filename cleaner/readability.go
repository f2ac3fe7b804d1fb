package cleaner

import (
	"log/slog"
	nurl "net/url"
	"strings"

	readability "github.com/go-shiori/go-readability"
)

// readArticle runs Mozilla Readability over doc. ok is false when the
// article text has fewer than minText runes or readability gives up; the
// article is still returned in the short case so its title and byline can
// be kept.
func readArticle(doc, sourceURL string, minText int) (article readability.Article, ok bool) {
	var base *nurl.URL
	if u, err := nurl.Parse(sourceURL); err == nil && u.IsAbs() {
		base = u
	} else {
		slog.Debug("readability: relative links left unresolved", "url", sourceURL)
		base = &nurl.URL{}
	}

	article, err := readability.FromReader(strings.NewReader(doc), base)
	if err != nil {
		slog.Debug("readability: no article", "url", sourceURL, "error", err)
		return readability.Article{}, false
	}

	if n := runeLen(strings.TrimSpace(article.TextContent)); n < minText {
		slog.Debug("readability: article too short", "url", sourceURL, "runes", n, "min", minText)
		return article, false
	}
	return article, true
}
