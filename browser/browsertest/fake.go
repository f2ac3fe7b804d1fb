// Package browsertest provides an in-memory browser for tests. Pages are
// static HTML documents held in a goquery DOM; clicks can reveal extra
// markup so action sequences have observable effects.
package browsertest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/use-agent/firescrape/browser"
)

// Browser is a scripted browser.Browser. Configure the exported fields
// before use; they must not change while pages are open.
type Browser struct {
	// Pages maps a URL to the HTML served for it.
	Pages map[string]string

	// Status maps a URL to its HTTP status. Missing entries report 200.
	Status map[string]int

	// NavErr maps a URL to the error Navigate returns for it.
	NavErr map[string]error

	// NavDelay is how long Navigate takes.
	NavDelay time.Duration

	// Reveal maps a selector to markup appended to <body> when an element
	// matching it is clicked.
	Reveal map[string]string

	// Fail maps a selector to the error Click or Type returns for it.
	Fail map[string]error

	// NewPageErr makes NewPage fail.
	NewPageErr error

	mu       sync.Mutex
	opened   int
	closed   int
	inUse    int
	maxInUse int
	calls    []string
}

// New returns an empty fake browser.
func New() *Browser {
	return &Browser{
		Pages:  make(map[string]string),
		Status: make(map[string]int),
		NavErr: make(map[string]error),
		Reveal: make(map[string]string),
		Fail:   make(map[string]error),
	}
}

func (b *Browser) Name() string { return "fake" }

func (b *Browser) Close() error { return nil }

func (b *Browser) NewPage(ctx context.Context, opts browser.PageOptions) (browser.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if b.NewPageErr != nil {
		return nil, b.NewPageErr
	}
	b.mu.Lock()
	b.opened++
	b.inUse++
	if b.inUse > b.maxInUse {
		b.maxInUse = b.inUse
	}
	b.mu.Unlock()
	return &Page{browser: b, Headers: opts.Headers}, nil
}

// Opened is the number of pages handed out.
func (b *Browser) Opened() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.opened
}

// Closed is the number of pages released.
func (b *Browser) Closed() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

// MaxInUse is the highest number of pages open at the same time.
func (b *Browser) MaxInUse() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.maxInUse
}

// Calls returns the log of page operations, for example "click #more".
func (b *Browser) Calls() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.calls...)
}

// Count returns how many logged calls start with prefix.
func (b *Browser) Count(prefix string) int {
	n := 0
	for _, c := range b.Calls() {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

func (b *Browser) record(format string, args ...any) {
	b.mu.Lock()
	b.calls = append(b.calls, fmt.Sprintf(format, args...))
	b.mu.Unlock()
}

// Page is a fake tab.
type Page struct {
	browser *Browser
	Headers map[string]string

	doc     *goquery.Document
	status  int
	focused string
	once   sync.Once
}

func (p *Page) Navigate(ctx context.Context, url string) error {
	b := p.browser
	b.record("navigate %s", url)

	if b.NavDelay > 0 {
		select {
		case <-time.After(b.NavDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if err := b.NavErr[url]; err != nil {
		return err
	}
	html, ok := b.Pages[url]
	if !ok {
		return fmt.Errorf("net::ERR_NAME_NOT_RESOLVED at %s", url)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return err
	}
	p.doc = doc
	p.status = 200
	if s, ok := b.Status[url]; ok {
		p.status = s
	}
	return nil
}

// find returns the selection for selector, blocking until ctx ends when
// nothing matches. The fake DOM only changes through clicks, which cannot
// happen while a wait is in progress.
func (p *Page) find(ctx context.Context, selector string) (*goquery.Selection, error) {
	if p.doc == nil {
		return nil, errors.New("page has not been navigated")
	}
	if sel := p.doc.Find(selector); sel.Length() > 0 {
		return sel, nil
	}
	<-ctx.Done()
	return nil, fmt.Errorf("%w: %s: %v", browser.ErrElementNotFound, selector, ctx.Err())
}

func (p *Page) Click(ctx context.Context, selector string) error {
	p.browser.record("click %s", selector)
	if err := p.browser.Fail[selector]; err != nil {
		return err
	}
	if _, err := p.find(ctx, selector); err != nil {
		return err
	}
	if fragment, ok := p.browser.Reveal[selector]; ok {
		p.doc.Find("body").AppendHtml(fragment)
	}
	p.focused = selector
	return nil
}

func (p *Page) Type(ctx context.Context, selector, text string) error {
	p.browser.record("type %s %s", selector, text)
	if err := p.browser.Fail[selector]; err != nil {
		return err
	}
	if selector == "" {
		// typing into the last clicked element; nothing focused is a no-op
		if p.focused == "" {
			return ctx.Err()
		}
		selector = p.focused
	}
	sel, err := p.find(ctx, selector)
	if err != nil {
		return err
	}
	sel.First().SetAttr("value", text)
	return nil
}

func (p *Page) Scroll(ctx context.Context, target browser.ScrollTarget) error {
	if target.Selector != "" {
		p.browser.record("scroll %s", target.Selector)
		_, err := p.find(ctx, target.Selector)
		return err
	}
	p.browser.record("scroll %d", target.Pixels)
	return ctx.Err()
}

func (p *Page) WaitFor(ctx context.Context, selector string) error {
	p.browser.record("waitfor %s", selector)
	_, err := p.find(ctx, selector)
	return err
}

func (p *Page) Content(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if p.doc == nil {
		return "", errors.New("page has not been navigated")
	}
	return p.doc.Html()
}

func (p *Page) StatusCode() int { return p.status }

func (p *Page) Close() error {
	p.once.Do(func() {
		b := p.browser
		b.mu.Lock()
		b.closed++
		b.inUse--
		b.mu.Unlock()
	})
	return nil
}
