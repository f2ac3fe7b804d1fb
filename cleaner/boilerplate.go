package cleaner

import (
	"math"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// pruneScoreThreshold is the minimum weighted score a block element must reach
// to be retained as main content. Blocks scoring at or below this value are
// discarded as boilerplate (navigation, sidebars, footers, ads, etc.).
const pruneScoreThreshold = 0.0

// Signal weights for the pruning scorer.
const (
	wTextDensity   = 3.0
	wLinkDensity   = -2.0
	wTagWeight     = 1.5
	wClassIDWeight = 1.0
	wTextLength    = 0.5
)

// positiveClassIDPatterns are substrings in class/id attributes that indicate
// main content areas.
var positiveClassIDPatterns = []string{
	"content", "article", "post", "entry", "body", "main", "text",
}

// negativeClassIDPatterns are substrings in class/id attributes that indicate
// non-content areas (boilerplate).
var negativeClassIDPatterns = []string{
	"sidebar", "ad", "widget", "nav", "menu", "comment", "footer",
	"header", "banner", "popup", "modal", "cookie", "social", "share",
	"related", "recommend", "promo",
}

// boilerplateTags are removed outright before any scoring.
const boilerplateTags = "nav, footer, header, aside, noscript, script, style, iframe, template"

// boilerplateClassIDPatterns remove any element whose class or id contains
// one of them.
var boilerplateClassIDPatterns = []string{
	"nav", "footer", "sidebar", "cookie", "banner", "menu", "popup", "modal",
	"ad-", "advert",
}

// mainContainers are tried in order; the first with enough text wins.
var mainContainers = []string{"main", "[role=main]", "article", "#content", ".content"}

// mainContainerMinText is the text length (in runes) a main container needs.
const mainContainerMinText = 200

// StripBoilerplate removes navigation, chrome and ad markup from rawHTML and
// returns the remaining main content fragment:
//
//  1. Drop boilerplate tags and elements with boilerplate class/id names.
//  2. Prefer the first main container whose text exceeds 200 runes.
//  3. Otherwise keep the body blocks that pass the pruning scorer.
//  4. Otherwise return the stripped body.
func StripBoilerplate(rawHTML string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return rawHTML
	}

	doc.Find(boilerplateTags).Remove()
	doc.Find("[class], [id]").Each(func(_ int, el *goquery.Selection) {
		switch goquery.NodeName(el) {
		case "html", "body", "main", "article":
			return
		}
		if matchesBoilerplate(el) {
			el.Remove()
		}
	})

	for _, sel := range mainContainers {
		container := doc.Find(sel).First()
		if container.Length() == 0 {
			continue
		}
		if runeLen(strings.TrimSpace(container.Text())) > mainContainerMinText {
			if html, err := goquery.OuterHtml(container); err == nil {
				return html
			}
		}
	}

	body := doc.Find("body")
	if body.Length() == 0 {
		html, _ := doc.Html()
		return html
	}

	if pruned := pruneBlocks(body); pruned != "" {
		return pruned
	}

	html, err := body.Html()
	if err != nil {
		return ""
	}
	return html
}

func matchesBoilerplate(el *goquery.Selection) bool {
	class, _ := el.Attr("class")
	id, _ := el.Attr("id")
	combined := strings.ToLower(class + " " + id)
	for _, pat := range boilerplateClassIDPatterns {
		if strings.Contains(combined, pat) {
			return true
		}
	}
	return false
}

// pruneBlocks scores each top-level block element in body based on text
// density, link density, semantic tag weight, class/id signals, and text
// length. Only blocks exceeding the threshold are retained.
func pruneBlocks(body *goquery.Selection) string {
	var retained []string
	body.Children().Each(func(_ int, el *goquery.Selection) {
		score := scoreElement(el)
		if score > pruneScoreThreshold {
			if html, err := goquery.OuterHtml(el); err == nil {
				retained = append(retained, html)
			}
		}
	})
	return strings.Join(retained, "\n")
}

// scoreElement computes a weighted score for a DOM element based on multiple
// content signals.
func scoreElement(el *goquery.Selection) float64 {
	fullHTML, err := goquery.OuterHtml(el)
	if err != nil {
		return 0
	}

	text := strings.TrimSpace(el.Text())
	textLen := len(text)
	totalLen := len(fullHTML)

	// --- text_density: ratio of visible text to total element size ---
	textDensity := 0.0
	if totalLen > 0 {
		textDensity = float64(textLen) / float64(totalLen)
	}

	// --- link_density: ratio of anchor text to total text ---
	linkTextLen := 0
	el.Find("a").Each(func(_ int, a *goquery.Selection) {
		linkTextLen += len(strings.TrimSpace(a.Text()))
	})
	linkDensity := 0.0
	if textLen > 0 {
		linkDensity = float64(linkTextLen) / float64(textLen)
	}

	// --- tag_weight: semantic tag bonus/penalty ---
	tagW := tagWeight(el)

	// --- class_id_weight: class/id attribute bonus/penalty ---
	classIDW := classIDWeight(el)

	// --- text_length: log-scale bonus for longer text blocks ---
	textLenScore := math.Log10(float64(textLen) + 1)

	score := textDensity*wTextDensity +
		linkDensity*wLinkDensity +
		tagW*wTagWeight +
		classIDW*wClassIDWeight +
		textLenScore*wTextLength

	return score
}

// tagWeight returns a score bonus/penalty based on the element's tag name.
// Semantic content tags get a positive boost; known boilerplate tags get a
// negative penalty.
func tagWeight(el *goquery.Selection) float64 {
	tag := goquery.NodeName(el)
	switch tag {
	case "article", "main", "section":
		return 5.0
	case "nav", "footer", "aside", "header":
		return -5.0
	default:
		return 0.0
	}
}

// classIDWeight scans the element's class and id attributes for substrings
// that indicate content vs. boilerplate.
func classIDWeight(el *goquery.Selection) float64 {
	class, _ := el.Attr("class")
	id, _ := el.Attr("id")
	combined := strings.ToLower(class + " " + id)

	score := 0.0
	for _, pat := range positiveClassIDPatterns {
		if strings.Contains(combined, pat) {
			score += 3.0
			break // count at most once per direction
		}
	}
	for _, pat := range negativeClassIDPatterns {
		if strings.Contains(combined, pat) {
			score -= 3.0
			break
		}
	}
	return score
}
