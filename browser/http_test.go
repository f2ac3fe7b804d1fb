package browser

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/use-agent/firescrape/config"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/page", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(`<html><head><title>Hi</title></head><body><div id="main">` + r.Header.Get("X-Token") + `</div></body></html>`))
	})
	mux.HandleFunc("/missing", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`<html><body><h1>Not here</h1></body></html>`))
	})
	mux.HandleFunc("/latin1", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=iso-8859-1")
		_, _ = w.Write([]byte("<html><body><p>caf\xe9</p></body></html>"))
	})
	mux.HandleFunc("/image", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte{0x89, 'P', 'N', 'G'})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestHTTP_NavigateAndContent(t *testing.T) {
	srv := newTestServer(t)
	b := NewHTTP(config.BrowserConfig{MaxPages: 2})
	ctx := context.Background()

	page, err := b.NewPage(ctx, PageOptions{Headers: map[string]string{"X-Token": "secret-42"}})
	require.NoError(t, err)
	defer page.Close()

	require.NoError(t, page.Navigate(ctx, srv.URL+"/page"))
	html, err := page.Content(ctx)
	require.NoError(t, err)
	assert.Contains(t, html, "secret-42")
	assert.Equal(t, http.StatusOK, page.StatusCode())

	assert.NoError(t, page.WaitFor(ctx, "#main"))
	assert.ErrorIs(t, page.WaitFor(ctx, "#absent"), ErrElementNotFound)
	assert.ErrorIs(t, page.Click(ctx, "#main"), ErrUnsupported)
	assert.ErrorIs(t, page.Type(ctx, "#main", "x"), ErrUnsupported)
	assert.NoError(t, page.Scroll(ctx, ScrollTarget{Pixels: 500}))
}

func TestHTTP_ErrorStatusIsRecorded(t *testing.T) {
	srv := newTestServer(t)
	b := NewHTTP(config.BrowserConfig{MaxPages: 1})
	ctx := context.Background()

	page, err := b.NewPage(ctx, PageOptions{})
	require.NoError(t, err)
	defer page.Close()

	require.NoError(t, page.Navigate(ctx, srv.URL+"/missing"))
	assert.Equal(t, http.StatusNotFound, page.StatusCode())
	html, err := page.Content(ctx)
	require.NoError(t, err)
	assert.Contains(t, html, "Not here")
}

func TestHTTP_DecodesCharset(t *testing.T) {
	srv := newTestServer(t)
	b := NewHTTP(config.BrowserConfig{MaxPages: 1})
	ctx := context.Background()

	page, err := b.NewPage(ctx, PageOptions{})
	require.NoError(t, err)
	defer page.Close()

	require.NoError(t, page.Navigate(ctx, srv.URL+"/latin1"))
	html, err := page.Content(ctx)
	require.NoError(t, err)
	assert.Contains(t, html, "café")
}

func TestHTTP_RejectsNonHTML(t *testing.T) {
	srv := newTestServer(t)
	b := NewHTTP(config.BrowserConfig{MaxPages: 1})
	ctx := context.Background()

	page, err := b.NewPage(ctx, PageOptions{})
	require.NoError(t, err)
	defer page.Close()

	assert.Error(t, page.Navigate(ctx, srv.URL+"/image"))
	_, err = page.Content(ctx)
	assert.Error(t, err)
}

func TestHTTP_TransportError(t *testing.T) {
	srv := newTestServer(t)
	addr := srv.URL
	srv.Close()

	b := NewHTTP(config.BrowserConfig{MaxPages: 1})
	ctx := context.Background()
	page, err := b.NewPage(ctx, PageOptions{})
	require.NoError(t, err)
	defer page.Close()

	assert.Error(t, page.Navigate(ctx, addr+"/page"))
}

func TestHTTP_PageLimit(t *testing.T) {
	b := NewHTTP(config.BrowserConfig{MaxPages: 1})

	first, err := b.NewPage(context.Background(), PageOptions{})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = b.NewPage(ctx, PageOptions{})
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	require.NoError(t, first.Close())
	require.NoError(t, first.Close())

	second, err := b.NewPage(context.Background(), PageOptions{})
	require.NoError(t, err)
	require.NoError(t, second.Close())
}

func TestIsHTMLContentType(t *testing.T) {
	assert.True(t, isHTMLContentType("text/html; charset=utf-8"))
	assert.True(t, isHTMLContentType("application/xhtml+xml"))
	assert.True(t, isHTMLContentType("text/plain"))
	assert.True(t, isHTMLContentType(""))
	assert.False(t, isHTMLContentType("application/pdf"))
	assert.False(t, isHTMLContentType("image/png"))
}
