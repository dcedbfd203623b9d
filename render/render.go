// Package render fetches pages for the search indexers. A plain HTTP engine
// with a browser-like TLS fingerprint is tried first; a headless browser takes
// over when the page needs JavaScript to produce the content being indexed.
package render

import (
	"context"
	"time"
)

// Engine is implemented by every page renderer.
type Engine interface {
	// Name returns the engine identifier ("http" or "browser").
	Name() string

	// Render retrieves the page described by req.
	Render(ctx context.Context, req *Request) (*Result, error)
}

// Request describes one page to render.
type Request struct {
	URL string

	// WaitSelector, when set, must match an element of the rendered page.
	// The HTTP engine fails if it does not; the browser waits for it.
	WaitSelector string

	Timeout time.Duration
}

// Result is the output of a successful render.
type Result struct {
	HTML       string
	Title      string
	StatusCode int
	FinalURL   string
	EngineName string
}
