package browser

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	tls "github.com/refraction-networking/utls"
	"golang.org/x/net/html/charset"
	"golang.org/x/sync/semaphore"

	"github.com/use-agent/firescrape/config"
)

const (
	chromeUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

	// maxBody caps how much of a response is read.
	maxBody = 10 << 20
)

// chromeH1Spec is a Chrome-like TLS ClientHello with ALPN forced to
// http/1.1, since http.Transport cannot speak h2 over a utls connection.
var chromeH1Spec = func() *tls.ClientHelloSpec {
	spec, err := tls.UTLSIdToSpec(tls.HelloChrome_Auto)
	if err != nil {
		return nil
	}
	for i, ext := range spec.Extensions {
		if alpn, ok := ext.(*tls.ALPNExtension); ok {
			alpn.AlpnProtocols = []string{"http/1.1"}
			spec.Extensions[i] = alpn
			break
		}
	}
	return &spec
}()

// HTTP fetches pages with a plain GET and a Chrome TLS fingerprint. It runs
// no JavaScript: clicks and typing are unsupported, scrolling is a no-op
// and waits only check the static document.
type HTTP struct {
	client *http.Client
	sem    *semaphore.Weighted
}

// NewHTTP returns a static backend allowing cfg.MaxPages pages at once.
func NewHTTP(cfg config.BrowserConfig) *HTTP {
	transport := &http.Transport{
		DialTLSContext:    dialTLSChrome,
		ForceAttemptHTTP2: false,
	}
	if cfg.DefaultProxy != "" {
		if proxyURL, err := url.Parse(cfg.DefaultProxy); err == nil {
			transport.Proxy = http.ProxyURL(proxyURL)
		}
	}

	maxPages := cfg.MaxPages
	if maxPages < 1 {
		maxPages = 1
	}
	return &HTTP{
		client: &http.Client{
			Transport: transport,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return errors.New("too many redirects")
				}
				return nil
			},
		},
		sem: semaphore.NewWeighted(int64(maxPages)),
	}
}

func dialTLSChrome(ctx context.Context, network, addr string) (net.Conn, error) {
	dialer := &net.Dialer{Timeout: 10 * time.Second}
	conn, err := dialer.DialContext(ctx, network, addr)
	if err != nil {
		return nil, err
	}
	host, _, _ := net.SplitHostPort(addr)

	var tlsConn *tls.UConn
	if chromeH1Spec != nil {
		tlsConn = tls.UClient(conn, &tls.Config{ServerName: host}, tls.HelloCustom)
		if err := tlsConn.ApplyPreset(chromeH1Spec); err != nil {
			conn.Close()
			return nil, fmt.Errorf("browser: apply tls spec: %w", err)
		}
	} else {
		tlsConn = tls.UClient(conn, &tls.Config{ServerName: host, NextProtos: []string{"http/1.1"}}, tls.HelloGolang)
	}
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	return tlsConn, nil
}

func (h *HTTP) Name() string { return "http" }

func (h *HTTP) NewPage(ctx context.Context, opts PageOptions) (Page, error) {
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	return &httpPage{browser: h, headers: opts.Headers}, nil
}

func (h *HTTP) Close() error {
	h.client.CloseIdleConnections()
	return nil
}

type httpPage struct {
	browser *HTTP
	headers map[string]string
	body    string
	loaded  bool
	status  int
	once    sync.Once
}

func (p *httpPage) Navigate(ctx context.Context, target string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("browser: build request: %w", err)
	}
	req.Header.Set("User-Agent", chromeUA)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Accept-Encoding", "identity")
	for k, v := range p.headers {
		req.Header.Set(k, v)
	}

	resp, err := p.browser.client.Do(req)
	if err != nil {
		return fmt.Errorf("browser: fetch %s: %w", target, err)
	}
	defer resp.Body.Close()

	ct := resp.Header.Get("Content-Type")
	if !isHTMLContentType(ct) {
		return fmt.Errorf("browser: %s returned non-html content type %q", target, ct)
	}

	r, err := charset.NewReader(io.LimitReader(resp.Body, maxBody), ct)
	if err != nil {
		return fmt.Errorf("browser: decode body: %w", err)
	}
	body, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("browser: read body: %w", err)
	}

	p.body = string(body)
	p.status = resp.StatusCode
	p.loaded = true
	return nil
}

func (p *httpPage) Click(context.Context, string) error { return ErrUnsupported }

func (p *httpPage) Type(context.Context, string, string) error { return ErrUnsupported }

func (p *httpPage) Scroll(ctx context.Context, _ ScrollTarget) error { return ctx.Err() }

// WaitFor succeeds when the selector matches the fetched document. The
// document never changes, so a miss is final.
func (p *httpPage) WaitFor(ctx context.Context, selector string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(p.body))
	if err != nil {
		return err
	}
	if doc.Find(selector).Length() == 0 {
		return fmt.Errorf("%w: %s", ErrElementNotFound, selector)
	}
	return nil
}

func (p *httpPage) Content(ctx context.Context) (string, error) {
	if !p.loaded {
		return "", errors.New("browser: page has not been navigated")
	}
	return p.body, ctx.Err()
}

func (p *httpPage) StatusCode() int { return p.status }

func (p *httpPage) Close() error {
	p.once.Do(func() { p.browser.sem.Release(1) })
	return nil
}

// isHTMLContentType accepts HTML, XHTML and other text responses. An empty
// header is treated as HTML.
func isHTMLContentType(ct string) bool {
	ct = strings.ToLower(strings.TrimSpace(ct))
	return ct == "" || strings.HasPrefix(ct, "text/") || strings.Contains(ct, "application/xhtml+xml")
}
