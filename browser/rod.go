package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/ysmood/gson"

	"github.com/use-agent/firescrape/config"
)

// cleanupTimeout bounds the about:blank navigation run when a page is
// returned to the pool.
const cleanupTimeout = 5 * time.Second

// Rod drives a headless Chrome through the DevTools protocol. Chrome is
// launched on the first NewPage call and its tabs are recycled through a
// bounded pool, so at most MaxPages pages exist at once.
type Rod struct {
	cfg config.BrowserConfig

	mu      sync.Mutex
	browser *rod.Browser
	pool    rod.Pool[rod.Page]
	closed  bool
}

// NewRod returns a Rod backend. No process is started until a page is
// requested.
func NewRod(cfg config.BrowserConfig) *Rod {
	if cfg.MaxPages < 1 {
		cfg.MaxPages = 1
	}
	return &Rod{
		cfg:  cfg,
		pool: rod.NewPagePool(cfg.MaxPages),
	}
}

func (r *Rod) Name() string { return "rod" }

// connect launches and connects to Chrome once.
func (r *Rod) connect() (*rod.Browser, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, errors.New("browser: closed")
	}
	if r.browser != nil {
		return r.browser, nil
	}

	l := launcher.New().
		Headless(r.cfg.Headless).
		NoSandbox(r.cfg.NoSandbox)

	if r.cfg.BrowserBin != "" {
		l = l.Bin(r.cfg.BrowserBin)
	}
	if r.cfg.DefaultProxy != "" {
		l = l.Proxy(r.cfg.DefaultProxy)
	}

	// ── Stealth flags ────────────────────────────────────────────────
	l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	l.Delete(flags.Flag("enable-automation"))
	l.Set(flags.Flag("disable-features"), "AudioServiceOutOfProcess,TranslateUI")
	l.Set(flags.Flag("disable-popup-blocking"))
	l.Set(flags.Flag("disable-renderer-backgrounding"))
	l.Set(flags.Flag("disable-background-timer-throttling"))
	l.Set(flags.Flag("disable-backgrounding-occluded-windows"))
	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("disable-extensions"))
	l.Set(flags.Flag("no-first-run"))

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("browser: launch chrome: %w", err)
	}
	slog.Info("browser launched", "controlURL", controlURL, "maxPages", r.cfg.MaxPages)

	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		return nil, fmt.Errorf("browser: connect: %w", err)
	}
	r.browser = b
	return b, nil
}

// NewPage borrows a tab from the pool, waiting while all tabs are in use.
// The wait honours ctx.
func (r *Rod) NewPage(ctx context.Context, opts PageOptions) (Page, error) {
	b, err := r.connect()
	if err != nil {
		return nil, err
	}

	var page *rod.Page
	select {
	case page = <-r.pool:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if page == nil {
		page, err = r.createPage(b)
		if err != nil {
			r.pool.Put(nil)
			return nil, err
		}
	}

	p := &rodPage{
		page:           page,
		pool:           r.pool,
		headers:        opts.Headers,
		removeOverlays: r.cfg.RemoveOverlays,
	}
	p.router = setupHijack(page, r.cfg.BlockedResourceTypes, r.cfg.BlockAds)
	return p, nil
}

func (r *Rod) createPage(b *rod.Browser) (*rod.Page, error) {
	page, err := b.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, fmt.Errorf("browser: create page: %w", err)
	}
	if r.cfg.Stealth {
		if _, err := page.EvalOnNewDocument(stealth.JS); err != nil {
			slog.Warn("stealth injection failed, proceeding without stealth", "error", err)
		}
	}
	return page, nil
}

// Close drains the page pool and kills the browser process. Pages still
// held by sessions are closed with the browser.
func (r *Rod) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true
	if r.browser == nil {
		return nil
	}

	slog.Info("browser shutting down: draining page pool")
	r.pool.Cleanup(func(p *rod.Page) {
		_ = p.Close()
	})
	err := r.browser.Close()
	r.browser = nil
	slog.Info("browser shutdown complete")
	return err
}

// rodPage is one pooled tab bound to a single session.
type rodPage struct {
	page           *rod.Page
	pool           rod.Pool[rod.Page]
	router         *rod.HijackRouter
	headers        map[string]string
	removeOverlays bool
	status         int
	once           sync.Once
}

func (p *rodPage) Navigate(ctx context.Context, target string) error {
	// Extra headers plus a search-engine Referer unless the caller set one.
	extra := make(map[string]string, len(p.headers)+1)
	if _, ok := p.headers["Referer"]; !ok {
		if u, err := url.Parse(target); err == nil {
			extra["Referer"] = "https://www.google.com/search?q=" + url.QueryEscape(u.Hostname())
		}
	}
	for k, v := range p.headers {
		extra[k] = v
	}
	_ = proto.NetworkSetExtraHTTPHeaders{Headers: toHeadersMap(extra)}.Call(p.page)

	pg := p.page.Context(ctx)
	if err := pg.Navigate(target); err != nil {
		return err
	}

	// WaitRequestIdle conflicts with the hijack router's Fetch domain, so
	// settle on DOM stability instead.
	if err := pg.WaitDOMStable(300*time.Millisecond, 0.1); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		slog.Debug("WaitDOMStable did not converge, proceeding with current DOM", "error", err)
	}

	if res, err := pg.Eval(`() => {
		try {
			const entries = performance.getEntriesByType("navigation");
			if (entries.length > 0) return entries[0].responseStatus || 0;
		} catch(e) {}
		return 0;
	}`); err == nil {
		p.status = res.Value.Int()
	}

	if p.removeOverlays {
		removeOverlays(pg)
	}
	return nil
}

func (p *rodPage) Click(ctx context.Context, selector string) error {
	el, err := p.page.Context(ctx).Element(selector)
	if err != nil {
		return elementErr(selector, err)
	}
	return el.Click(proto.InputMouseButtonLeft, 1)
}

func (p *rodPage) Type(ctx context.Context, selector, text string) error {
	if selector == "" {
		return p.page.Context(ctx).InsertText(text)
	}
	el, err := p.page.Context(ctx).Element(selector)
	if err != nil {
		return elementErr(selector, err)
	}
	return el.Input(text)
}

func (p *rodPage) Scroll(ctx context.Context, target ScrollTarget) error {
	pg := p.page.Context(ctx)
	if target.Selector != "" {
		el, err := pg.Element(target.Selector)
		if err != nil {
			return elementErr(target.Selector, err)
		}
		if err := el.ScrollIntoView(); err != nil {
			return err
		}
	} else if err := pg.Mouse.Scroll(0, float64(target.Pixels), 0); err != nil {
		return err
	}

	// Brief pause so lazy-loaded content can trigger.
	select {
	case <-time.After(100 * time.Millisecond):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *rodPage) WaitFor(ctx context.Context, selector string) error {
	if err := p.page.Context(ctx).WaitElementsMoreThan(selector, 0); err != nil {
		return elementErr(selector, err)
	}
	return nil
}

func (p *rodPage) Content(ctx context.Context) (string, error) {
	return p.page.Context(ctx).HTML()
}

func (p *rodPage) StatusCode() int { return p.status }

// Close resets the tab to about:blank and returns it to the pool. A tab
// that cannot be reset is discarded and its pool slot freed.
func (p *rodPage) Close() error {
	var err error
	p.once.Do(func() {
		if p.router != nil {
			_ = p.router.Stop()
		}
		if navErr := p.page.Timeout(cleanupTimeout).Navigate("about:blank"); navErr != nil {
			slog.Warn("cleanup: failed to navigate to about:blank, discarding page", "error", navErr)
			err = p.page.Close()
			p.pool.Put(nil)
			return
		}
		p.pool.Put(p.page)
	})
	return err
}

// elementErr reports selector misses as ErrElementNotFound. Rod's element
// queries retry until their context expires, so a deadline means the
// selector never matched.
func elementErr(selector string, err error) error {
	var notFound *rod.ElementNotFoundError
	if errors.Is(err, context.DeadlineExceeded) || errors.As(err, &notFound) {
		return fmt.Errorf("%w: %s", ErrElementNotFound, selector)
	}
	return err
}

// toHeadersMap converts a plain string map to the proto.NetworkHeaders type
// (map[string]gson.JSON) required by NetworkSetExtraHTTPHeaders.
func toHeadersMap(headers map[string]string) proto.NetworkHeaders {
	m := make(proto.NetworkHeaders, len(headers))
	for k, v := range headers {
		m[k] = gson.New(v)
	}
	return m
}

// removeOverlays strips fixed or sticky elements with a high z-index and
// common consent banner patterns.
func removeOverlays(p *rod.Page) {
	const js = `() => {
		for (const el of document.querySelectorAll('*')) {
			const style = window.getComputedStyle(el);
			if (style.position === 'fixed' || style.position === 'sticky') {
				const z = parseInt(style.zIndex, 10);
				if (z >= 900) el.remove();
			}
		}
		const selectors = [
			'[class*="cookie"]', '[class*="consent"]', '[id*="cookie"]',
			'[id*="consent"]', '[class*="gdpr"]', '[id*="gdpr"]',
		];
		for (const sel of selectors) {
			document.querySelectorAll(sel).forEach(el => {
				const pos = window.getComputedStyle(el).position;
				if (pos === 'fixed' || pos === 'sticky' || pos === 'absolute') el.remove();
			});
		}
		document.documentElement.style.overflow = '';
		document.body.style.overflow = '';
	}`
	_, _ = p.Eval(js)
}
