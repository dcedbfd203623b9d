// Package indexer builds search records for API endpoints, blog posts,
// videos and labs and writes them to the hosted search index.
package indexer

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/redpanda-data/docs-edge/config"
	"github.com/redpanda-data/docs-edge/metrics"
	"github.com/redpanda-data/docs-edge/render"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// Runner holds what every source needs: a page renderer, an HTTP client for
// JSON APIs, the target index and pacing.
type Runner struct {
	renderer render.Engine
	client   *http.Client
	index    Index
	metrics  *metrics.Collector

	cfg         config.IndexerConfig
	youtube     config.YouTubeConfig
	instruqt    config.InstruqtConfig
	navTimeout  time.Duration
	limiter     *rate.Limiter
	backoff     Backoff
	concurrency int

	// out receives printed records (labs without --upload).
	out io.Writer
}

// NewRunner creates a Runner. index may be nil for sources that only print.
func NewRunner(cfg *config.Config, renderer render.Engine, client *http.Client, index Index, m *metrics.Collector) *Runner {
	concurrency := max(cfg.Indexer.Concurrency, 1)
	limit := rate.Inf
	if cfg.Indexer.RatePerSec > 0 {
		limit = rate.Limit(cfg.Indexer.RatePerSec)
	}
	return &Runner{
		renderer:    renderer,
		client:      client,
		index:       index,
		metrics:     m,
		cfg:         cfg.Indexer,
		youtube:     cfg.YouTube,
		instruqt:    cfg.Instruqt,
		navTimeout:  cfg.Browser.NavigationTimeout,
		limiter:     rate.NewLimiter(limit, concurrency),
		concurrency: concurrency,
		backoff: Backoff{
			Retries:  cfg.Indexer.Retries,
			MinDelay: cfg.Indexer.RetryMinDelay,
			Factor:   cfg.Indexer.RetryFactor,
		},
		out: os.Stdout,
	}
}

// SetOutput redirects printed records.
func (r *Runner) SetOutput(w io.Writer) { r.out = w }

// collect runs fn for every input with bounded concurrency and request
// pacing. Inputs whose fn fails are logged and skipped; results keep input
// order. The returned error is non-nil only when ctx ends the run.
func collect[In, Out any](ctx context.Context, r *Runner, inputs []In, fn func(context.Context, In) ([]Out, error)) ([]Out, error) {
	results := make([][]Out, len(inputs))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i, in := range inputs {
		g.Go(func() error {
			if err := r.limiter.Wait(gctx); err != nil {
				return err
			}
			out, err := fn(gctx, in)
			if err != nil {
				slog.Warn("indexer: input skipped", "input", in, "error", err)
				return nil
			}
			mu.Lock()
			results[i] = out
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []Out
	for _, out := range results {
		all = append(all, out...)
	}
	return all, nil
}

// renderPage renders url, retrying per the configured backoff.
func (r *Runner) renderPage(ctx context.Context, url, waitSelector string) (*render.Result, error) {
	var res *render.Result
	err := Retry(ctx, r.backoff, url, func(ctx context.Context) error {
		var err error
		res, err = r.renderer.Render(ctx, &render.Request{
			URL:          url,
			WaitSelector: waitSelector,
			Timeout:      r.navTimeout,
		})
		return err
	})
	return res, err
}

// save writes objects and records the count.
func (r *Runner) save(ctx context.Context, source string, objects []Object) (int, error) {
	if len(objects) == 0 {
		slog.Warn("indexer: no records to index", "source", source)
		return 0, nil
	}
	n, err := r.index.Save(ctx, objects)
	if err != nil {
		return 0, err
	}
	r.metrics.RecordIndexed(source, "save", n)
	slog.Info("indexer: records saved", "source", source, "count", n)
	return n, nil
}
