package main

import (
	"context"
	"sync"

	"github.com/redpanda-data/docs-edge/config"
	"github.com/redpanda-data/docs-edge/render"
)

// lazyBrowser launches Chrome on the first render that escalates to it, so
// sources that never need a browser never start one.
type lazyBrowser struct {
	cfg config.BrowserConfig

	mu      sync.Mutex
	browser *render.Browser
}

func newLazyBrowser(cfg config.BrowserConfig) *lazyBrowser {
	return &lazyBrowser{cfg: cfg}
}

func (l *lazyBrowser) Name() string { return "browser" }

func (l *lazyBrowser) Render(ctx context.Context, req *render.Request) (*render.Result, error) {
	b, err := l.get()
	if err != nil {
		return nil, err
	}
	return b.Render(ctx, req)
}

// get launches the browser once. A failed launch is retried on the next call.
func (l *lazyBrowser) get() (*render.Browser, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.browser != nil {
		return l.browser, nil
	}
	b, err := render.NewBrowser(l.cfg)
	if err != nil {
		return nil, err
	}
	l.browser = b
	return b, nil
}

// Close shuts the browser down if it was started.
func (l *lazyBrowser) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.browser != nil {
		l.browser.Close()
		l.browser = nil
	}
}
