package render

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/redpanda-data/docs-edge/config"
	"github.com/redpanda-data/docs-edge/models"
	"github.com/ysmood/gson"
)

// configToProto maps human-readable config strings to Rod protocol resource types.
var configToProto = map[string]proto.NetworkResourceType{
	"Image":      proto.NetworkResourceTypeImage,
	"Stylesheet": proto.NetworkResourceTypeStylesheet,
	"Font":       proto.NetworkResourceTypeFont,
	"Media":      proto.NetworkResourceTypeMedia,
}

// Browser owns a headless Chrome process and a pool of reusable tabs.
// It is safe for concurrent use.
type Browser struct {
	browser  *rod.Browser
	pagePool rod.Pool[rod.Page]
	cfg      config.BrowserConfig
	blocked  map[proto.NetworkResourceType]struct{}

	mu     sync.Mutex
	health map[*rod.Page]*tabHealth
}

// NewBrowser launches a headless browser and initialises the page pool.
func NewBrowser(cfg config.BrowserConfig) (*Browser, error) {
	l := launcher.New().
		Headless(cfg.Headless).
		NoSandbox(cfg.NoSandbox)
	if cfg.BrowserBin != "" {
		l = l.Bin(cfg.BrowserBin)
	}

	l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	l.Delete(flags.Flag("enable-automation"))
	l.Set(flags.Flag("disable-features"), "AudioServiceOutOfProcess,TranslateUI")
	l.Set(flags.Flag("disable-background-timer-throttling"))
	l.Set(flags.Flag("disable-renderer-backgrounding"))
	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("disable-extensions"))
	l.Set(flags.Flag("no-first-run"))

	controlURL, err := l.Launch()
	if err != nil {
		return nil, models.NewError(models.ErrCodeBrowserCrash, "failed to launch browser", err)
	}
	slog.Info("browser launched", "controlURL", controlURL)

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, models.NewError(models.ErrCodeBrowserCrash, "failed to connect to browser", err)
	}

	blocked := make(map[proto.NetworkResourceType]struct{}, len(cfg.BlockedResourceTypes))
	for _, name := range cfg.BlockedResourceTypes {
		if rt, ok := configToProto[name]; ok {
			blocked[rt] = struct{}{}
		}
	}

	return &Browser{
		browser:  browser,
		pagePool: rod.NewPagePool(cfg.MaxPages),
		cfg:      cfg,
		blocked:  blocked,
		health:   make(map[*rod.Page]*tabHealth),
	}, nil
}

func (b *Browser) Name() string { return "browser" }

// Render loads req.URL in a pooled tab and returns the rendered DOM.
//
//  1. Timeout guard   – hard deadline on the whole render
//  2. Acquire page    – borrow a tab from the pool
//  3. DEFER: cleanup  – about:blank + return to pool, or retire the tab
//  4. Stealth + hijack, both before navigation
//  5. Navigate and wait for the network to settle
//  6. Wait for req.WaitSelector, if any
//  7. Extract HTML, title and final URL
func (b *Browser) Render(ctx context.Context, req *Request) (res *Result, err error) {
	// ── 1. Timeout guard ──────────────────────────────────────────────
	timeout := req.Timeout
	if timeout <= 0 || (b.cfg.NavigationTimeout > 0 && timeout > b.cfg.NavigationTimeout) {
		timeout = b.cfg.NavigationTimeout
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	// ── 2. Acquire page from pool ─────────────────────────────────────
	page, err := b.pagePool.Get(func() (*rod.Page, error) {
		return b.browser.Page(proto.TargetCreateTarget{})
	})
	if err != nil {
		b.pagePool.Put(nil)
		return nil, models.NewError(models.ErrCodeBrowserCrash, "failed to acquire page from pool", err)
	}

	// ── 3. Cleanup uses the page without the request context ─────────
	defer func() {
		if b.recordTab(page, err == nil) {
			slog.Debug("retiring browser tab", "url", req.URL)
			_ = page.Close()
			b.pagePool.Put(nil)
			return
		}
		if navErr := page.Navigate("about:blank"); navErr != nil {
			slog.Warn("cleanup: failed to navigate to about:blank", "error", navErr)
		}
		b.pagePool.Put(page)
	}()

	// ── 4. Stealth, headers and resource blocking ────────────────────
	if b.cfg.Stealth {
		if _, evalErr := page.EvalOnNewDocument(stealth.JS); evalErr != nil {
			slog.Warn("stealth injection failed, proceeding without stealth", "error", evalErr)
		}
	}
	_ = proto.NetworkSetExtraHTTPHeaders{
		Headers: proto.NetworkHeaders{"Accept-Language": gson.New("en-US,en;q=0.9")},
	}.Call(page)

	var router *rod.HijackRouter
	if len(b.blocked) > 0 {
		router = b.setupHijack(page)
		defer func() { _ = router.Stop() }()
	}

	p := page.Context(ctx)

	// ── 5. Navigate ───────────────────────────────────────────────────
	// WaitRequestIdle conflicts with the hijack router, so pages with
	// blocked resources settle on DOM stability instead.
	var waitIdle func()
	if router == nil {
		waitIdle = p.WaitRequestIdle(500*time.Millisecond, nil, nil, nil)
	}
	if err := p.Navigate(req.URL); err != nil {
		return nil, categorizeError(err, "navigation to target URL failed")
	}
	if waitIdle != nil {
		waitIdle()
	} else if stableErr := p.WaitDOMStable(300*time.Millisecond, 0.1); stableErr != nil {
		slog.Debug("WaitDOMStable did not converge, proceeding with current DOM", "error", stableErr)
	}

	// ── 6. Wait for the content the caller needs ─────────────────────
	if req.WaitSelector != "" {
		if _, err := p.Element(req.WaitSelector); err != nil {
			return nil, categorizeError(err, "waiting for "+req.WaitSelector)
		}
	}

	// ── 7. Extract ────────────────────────────────────────────────────
	rawHTML, err := p.HTML()
	if err != nil {
		return nil, categorizeError(err, "failed to extract page HTML")
	}
	finalURL := evalStringOrEmpty(p, `() => window.location.href`)
	if finalURL == "" {
		finalURL = req.URL
	}

	return &Result{
		HTML:       rawHTML,
		Title:      evalStringOrEmpty(p, `() => document.title`),
		StatusCode: evalIntOrZero(p, `() => {
			try {
				const entries = performance.getEntriesByType("navigation");
				if (entries.length > 0) return entries[0].responseStatus || 0;
			} catch(e) {}
			return 0;
		}`),
		FinalURL:   finalURL,
		EngineName: b.Name(),
	}, nil
}

// recordTab scores one render on page and reports whether the tab should be
// retired instead of returned to the pool.
func (b *Browser) recordTab(page *rod.Page, success bool) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	h, ok := b.health[page]
	if !ok {
		h = newTabHealth(now)
		b.health[page] = h
	}
	h.record(success)
	if !h.retire(now) {
		return false
	}
	delete(b.health, page)
	return true
}

// setupHijack fails every request for a blocked resource type.
func (b *Browser) setupHijack(page *rod.Page) *rod.HijackRouter {
	router := page.HijackRequests()
	_ = router.Add("*", "", func(h *rod.Hijack) {
		if _, ok := b.blocked[h.Request.Type()]; ok {
			h.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
			return
		}
		h.ContinueRequest(&proto.FetchContinueRequest{})
	})
	go router.Run()
	return router
}

// Close drains the page pool and kills the browser process.
func (b *Browser) Close() {
	b.pagePool.Cleanup(func(p *rod.Page) {
		_ = p.Close()
	})
	if err := b.browser.Close(); err != nil {
		slog.Warn("browser close failed", "error", err)
	}
	slog.Info("browser closed")
}

func evalStringOrEmpty(page *rod.Page, js string) string {
	res, err := page.Eval(js)
	if err != nil {
		return ""
	}
	return res.Value.Str()
}

func evalIntOrZero(page *rod.Page, js string) int {
	res, err := page.Eval(js)
	if err != nil {
		return 0
	}
	return res.Value.Int()
}

// categorizeError tags browser failures with an error code.
func categorizeError(err error, msg string) *models.Error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return models.NewError(models.ErrCodeTimeout, msg, err)
	case errors.Is(err, context.Canceled):
		return models.NewError(models.ErrCodeTimeout, "render canceled", err)
	default:
		return models.NewError(models.ErrCodeNavigation, msg, err)
	}
}
