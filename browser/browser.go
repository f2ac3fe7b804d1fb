// Package browser defines the page automation surface the scraper drives and
// its implementations: a headless Chrome backend on go-rod and a static HTTP
// backend for pages that need no JavaScript.
package browser

import (
	"context"
	"errors"
)

var (
	// ErrElementNotFound is returned when a selector matches nothing within
	// the caller's deadline.
	ErrElementNotFound = errors.New("element not found")

	// ErrUnsupported is returned by backends that cannot perform an action.
	ErrUnsupported = errors.New("action not supported by this browser engine")
)

// ScrollTarget is either an element to bring into view or a pixel offset.
type ScrollTarget struct {
	Selector string
	Pixels   int
}

// PageOptions configure a page before its first navigation.
type PageOptions struct {
	Headers map[string]string
}

// Page is one browser tab owned by a single scrape session. Implementations
// need not be safe for concurrent use.
type Page interface {
	Navigate(ctx context.Context, url string) error
	Click(ctx context.Context, selector string) error
	// Type enters text into selector, or into the focused element when
	// selector is empty.
	Type(ctx context.Context, selector, text string) error
	Scroll(ctx context.Context, target ScrollTarget) error
	WaitFor(ctx context.Context, selector string) error
	Content(ctx context.Context) (string, error)

	// StatusCode is the HTTP status of the last navigation, 0 if unknown.
	StatusCode() int

	// Close releases the page. It is safe to call more than once.
	Close() error
}

// Browser hands out pages. Implementations are safe for concurrent use.
type Browser interface {
	NewPage(ctx context.Context, opts PageOptions) (Page, error)
	Name() string
	Close() error
}
