package cleaner

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/use-agent/firescrape/models"
)

// ExtractLinks parses the raw HTML and returns every distinct absolute
// http(s) link in document order.
func ExtractLinks(rawHTML string, sourceURL string) []models.Link {
	base, err := url.Parse(sourceURL)
	if err != nil {
		return nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return nil
	}

	var links []models.Link
	seen := make(map[string]struct{})
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, exists := s.Attr("href")
		if !exists || href == "" {
			return
		}

		// Resolve relative URLs against the base.
		resolved, err := base.Parse(href)
		if err != nil {
			return
		}

		// Skip fragments, javascript:, mailto:, tel: etc.
		if resolved.Scheme != "http" && resolved.Scheme != "https" {
			return
		}

		absURL := resolved.String()
		if _, ok := seen[absURL]; ok {
			return
		}
		seen[absURL] = struct{}{}

		links = append(links, models.Link{Href: absURL, Text: collapseWhitespace(s.Text())})
	})

	return links
}

// ExtractMetadata reads the document title and meta tags from the raw HTML.
// The title falls back to the first h1 when <title> is missing.
func ExtractMetadata(rawHTML string) (string, models.Metadata) {
	var meta models.Metadata

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return "", meta
	}

	title := collapseWhitespace(doc.Find("title").First().Text())
	if title == "" {
		title = collapseWhitespace(doc.Find("h1").First().Text())
	}

	meta.Language, _ = doc.Find("html").First().Attr("lang")

	doc.Find("meta").Each(func(_ int, s *goquery.Selection) {
		content, _ := s.Attr("content")
		content = strings.TrimSpace(content)
		if content == "" {
			return
		}
		name, _ := s.Attr("name")
		prop, _ := s.Attr("property")

		switch strings.ToLower(name) {
		case "description":
			meta.Description = content
		case "author":
			meta.Author = content
		}
		switch prop {
		case "og:title":
			meta.OGTitle = content
		case "og:description":
			if meta.Description == "" {
				meta.Description = content
			}
		case "og:image":
			meta.OGImage = content
		case "og:site_name":
			meta.SiteName = content
		}
	})

	return title, meta
}
