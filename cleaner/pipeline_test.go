package cleaner

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/use-agent/firescrape/models"
)

func readFixture(t *testing.T, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	return string(data)
}

func TestExtract_ExampleDomain(t *testing.T) {
	c := NewCleaner(Options{})

	got, err := c.Extract(readFixture(t, "example.html"), "https://example.com/", ExtractOptions{})
	require.NoError(t, err)

	assert.Equal(t, "Example Domain", got.Title)
	assert.True(t, strings.HasPrefix(got.Markdown, "# Example Domain"), got.Markdown)
	assert.Contains(t, got.Markdown, "illustrative examples")
	assert.Contains(t, got.Text, "Example Domain")
	assert.NotContains(t, got.Text, "#")
	assert.NotContains(t, got.Markdown, "background-color")
	assert.Equal(t, "en", got.Metadata.Language)
	require.Len(t, got.Links, 1)
	assert.Equal(t, "https://www.iana.org/domains/example", got.Links[0].Href)
	assert.NotZero(t, got.ContentHash)
}

func TestExtract_ReadabilityArticle(t *testing.T) {
	c := NewCleaner(Options{})

	got, err := c.Extract(readFixture(t, "article.html"), "https://acme.test/blog/pools", ExtractOptions{})
	require.NoError(t, err)

	assert.Equal(t, StageReadability, got.Stage)
	assert.Contains(t, got.Title, "Understanding Bounded Worker Pools")
	assert.Contains(t, got.Markdown, "Why limits matter")
	assert.Contains(t, got.Markdown, "Predictable memory usage")
	assert.Contains(t, got.Markdown, "g.SetLimit(3)")
	assert.NotContains(t, got.Markdown, "Copyright ACME")
	assert.Equal(t, "Understanding Bounded Worker Pools", got.Metadata.OGTitle)
	assert.Equal(t, "https://acme.test/pool.png", got.Metadata.OGImage)
	assert.Equal(t, "How bounded worker pools keep scrapers polite.", got.Metadata.Description)
	assert.Greater(t, got.Tokens.SavingsPercent, 0.0)
}

func TestExtract_RawModeKeepsChrome(t *testing.T) {
	c := NewCleaner(Options{})

	got, err := c.Extract(readFixture(t, "article.html"), "https://acme.test/blog/pools", ExtractOptions{Mode: models.ExtractRaw})
	require.NoError(t, err)

	assert.Equal(t, StageFull, got.Stage)
	assert.Contains(t, got.Markdown, "Copyright ACME")
	assert.Contains(t, got.Markdown, "Sign in")
}

func TestExtract_FallsBackToFullHTML(t *testing.T) {
	c := NewCleaner(Options{})
	page := `<html><head><title>Links only</title></head><body>
		<nav><a href="/a">Home</a> <a href="/b">About us</a></nav>
	</body></html>`

	got, err := c.Extract(page, "https://site.test/", ExtractOptions{})
	require.NoError(t, err)

	assert.Equal(t, StageFull, got.Stage)
	assert.Contains(t, got.Markdown, "# Links only")
	assert.Contains(t, got.Markdown, "About us")
	assert.Contains(t, got.Text, "About us")
}

func TestExtract_IncludeSelector(t *testing.T) {
	c := NewCleaner(Options{})
	page := `<html><head><title>Shop</title></head><body>
		<div class="price">42 EUR</div><div class="promo">Buy now!</div>
	</body></html>`

	got, err := c.Extract(page, "https://shop.test/", ExtractOptions{Mode: models.ExtractRaw, IncludeSelector: ".price"})
	require.NoError(t, err)
	assert.Contains(t, got.Text, "42 EUR")
	assert.NotContains(t, got.Text, "Buy now!")
	assert.Equal(t, "Shop", got.Title)
}

func TestExtract_Empty(t *testing.T) {
	c := NewCleaner(Options{})

	for _, page := range []string{"", "   \n\t", "<div></div>", "<html><body><script>var x = 1;</script></body></html>"} {
		_, err := c.Extract(page, "https://site.test/", ExtractOptions{})
		require.Error(t, err, "input %q", page)
		assert.Equal(t, models.ErrCodeExtractionEmpty, models.CodeOf(err))
	}
}

var words = []string{
	"alpha", "bravo", "charlie", "delta", "echo", "foxtrot", "golf", "hotel",
	"india", "juliet", "kilo", "lima", "mike", "november", "oscar", "papa",
}

func randomWords(r *rand.Rand, n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = words[r.Intn(len(words))]
	}
	return strings.Join(parts, " ")
}

// randomDocument builds an HTML page with at least one visible text node.
func randomDocument(r *rand.Rand) string {
	blocks := []func() string{
		func() string { return "<p>" + randomWords(r, 1+r.Intn(40)) + "</p>" },
		func() string { return "<h2>" + randomWords(r, 1+r.Intn(5)) + "</h2>" },
		func() string {
			return "<ul><li>" + randomWords(r, 1+r.Intn(4)) + "</li><li>" + randomWords(r, 1+r.Intn(4)) + "</li></ul>"
		},
		func() string { return "<nav><a href=\"/x\">" + randomWords(r, 1+r.Intn(3)) + "</a></nav>" },
		func() string { return "<div class=\"sidebar\">" + randomWords(r, 1+r.Intn(10)) + "</div>" },
		func() string { return "<pre><code>" + randomWords(r, 1+r.Intn(6)) + "</code></pre>" },
		func() string {
			return "<table><tr><th>" + randomWords(r, 1) + "</th></tr><tr><td>" + randomWords(r, 2) + "</td></tr></table>"
		},
		func() string { return "<footer>" + randomWords(r, 1+r.Intn(8)) + "</footer>" },
		func() string { return "<script>var " + words[r.Intn(len(words))] + " = 1;</script>" },
	}

	var b strings.Builder
	b.WriteString("<html><head>")
	if r.Intn(2) == 0 {
		b.WriteString("<title>" + randomWords(r, 1+r.Intn(4)) + "</title>")
	}
	b.WriteString("</head><body>")
	n := 1 + r.Intn(8)
	for i := 0; i < n; i++ {
		b.WriteString(blocks[r.Intn(len(blocks))]())
	}
	// Guarantee one visible text node.
	b.WriteString("<span>" + randomWords(r, 1+r.Intn(3)) + "</span>")
	b.WriteString("</body></html>")
	return b.String()
}

func TestExtract_NeverEmptyForVisibleText(t *testing.T) {
	c := NewCleaner(Options{})
	r := rand.New(rand.NewSource(42))

	for i := 0; i < 300; i++ {
		page := randomDocument(r)
		for _, mode := range []string{models.ExtractReadability, models.ExtractRaw} {
			got, err := c.Extract(page, "https://prop.test/", ExtractOptions{Mode: mode})
			require.NoError(t, err, "document %d (%s): %s", i, mode, page)
			assert.NotEmpty(t, strings.TrimSpace(got.Markdown), fmt.Sprintf("document %d (%s)", i, mode))
			assert.NotEmpty(t, strings.TrimSpace(got.Text), fmt.Sprintf("document %d (%s)", i, mode))
		}
	}
}

func TestExtract_Deterministic(t *testing.T) {
	c := NewCleaner(Options{})
	page := readFixture(t, "article.html")

	first, err := c.Extract(page, "https://acme.test/blog/pools", ExtractOptions{})
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := c.Extract(page, "https://acme.test/blog/pools", ExtractOptions{})
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestWithTitle(t *testing.T) {
	assert.Equal(t, "# T\n\nbody", withTitle("body", "T"))
	assert.Equal(t, "# T\n\nbody", withTitle("# T\n\nbody", "T"))
	assert.Equal(t, "# T", withTitle("", " T "))
	assert.Equal(t, "body", withTitle("body", ""))
}

func TestNormalizeMarkdown(t *testing.T) {
	in := "# A  \r\n\r\n\r\n\n  \nparagraph\n\n\n\n- item\n"
	assert.Equal(t, "# A\n\nparagraph\n\n- item", normalizeMarkdown(in))
}

func TestNarrowToSelector(t *testing.T) {
	page := `<html><head><title>T</title></head><body>
		<div class="box">outer <div class="box">inner</div></div>
		<p>skip</p><div class="box">second</div>
	</body></html>`

	got, ok, err := narrowToSelector(page, ".box")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Contains(t, got, "<title>T</title>")
	assert.Equal(t, 1, strings.Count(got, "inner"))
	assert.Contains(t, got, "second")
	assert.NotContains(t, got, "skip")

	_, ok, err = narrowToSelector(page, ".missing")
	require.NoError(t, err)
	assert.False(t, ok)

	_, _, err = narrowToSelector(page, "[[")
	assert.Error(t, err)
}
