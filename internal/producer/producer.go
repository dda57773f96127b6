// Package producer implements the discovery stage of the crawl pipeline: it
// walks the catalog pages that overlap one cursor window and writes each
// changed package identifier to the work queue exactly once.
package producer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pkgfeed/catalog-mirror/internal/catalog"
	"github.com/pkgfeed/catalog-mirror/internal/crawler"
	"github.com/pkgfeed/catalog-mirror/internal/dedupe"
	"github.com/pkgfeed/catalog-mirror/internal/metrics"
)

// Config controls Producer behavior.
type Config struct {
	// FanoutCap is the maximum number of concurrent page fetchers. The
	// actual worker count per cycle is min(FanoutCap, pages in window).
	FanoutCap int
	// RetryDelay is the fixed wait between attempts on a failed page.
	RetryDelay time.Duration
}

// Producer discovers changed package identifiers for one cursor window.
type Producer struct {
	catalog catalog.Client
	cfg     Config
	logger  *zap.Logger
}

// New constructs a Producer.
func New(client catalog.Client, cfg Config, logger *zap.Logger) *Producer {
	if cfg.FanoutCap <= 0 {
		cfg.FanoutCap = 1
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Producer{
		catalog: client,
		cfg:     cfg,
		logger:  logger,
	}
}

// Produce walks every catalog page whose interval overlaps (since, maxCursor],
// where maxCursor is the feed's commit timestamp at the start of the cycle, and
// enqueues each in-window package identifier at most once. The queue is
// closed once discovery ends, whatever the outcome, so the consumer never
// blocks forever. Produce returns maxCursor as the cursor for the next cycle.
func (p *Producer) Produce(ctx context.Context, since time.Time, q crawler.Queue) (time.Time, error) {
	index, err := p.catalog.GetIndex(ctx)
	if err != nil {
		q.Close()
		return time.Time{}, fmt.Errorf("get catalog index: %w", err)
	}
	maxCursor := index.CommitTimestamp

	refs := overlapping(index.Pages, since, maxCursor)
	if len(refs) == 0 || !maxCursor.After(since) {
		q.Close()
		p.logger.Debug("no catalog pages in window",
			zap.Time("since", since),
			zap.Time("max", maxCursor))
		return maxCursor, nil
	}

	pool := &pagePool{refs: refs}
	seen := dedupe.New()

	g, gctx := errgroup.WithContext(ctx)
	workers := min(p.cfg.FanoutCap, len(refs))
	for i := 0; i < workers; i++ {
		g.Go(func() error {
			for {
				ref, ok := pool.take()
				if !ok {
					return nil
				}
				if err := p.processPage(gctx, ref, since, maxCursor, seen, q); err != nil {
					return err
				}
			}
		})
	}
	err = g.Wait()
	q.Close()
	if err != nil {
		return time.Time{}, fmt.Errorf("walk window (%s, %s]: %w",
			since.Format(time.RFC3339), maxCursor.Format(time.RFC3339), err)
	}

	p.logger.Info("window discovered",
		zap.Time("since", since),
		zap.Time("max", maxCursor),
		zap.Int("pages", len(refs)),
		zap.Int("packages", seen.Len()))
	return maxCursor, nil
}

func (p *Producer) processPage(
	ctx context.Context,
	ref catalog.PageRef,
	since, maxCursor time.Time,
	seen *dedupe.Set,
	q crawler.Queue,
) error {
	page, err := p.fetchPage(ctx, ref)
	if err != nil {
		return err
	}

	for _, leaf := range page.Items {
		if !leaf.CommitTimestamp.After(since) || leaf.CommitTimestamp.After(maxCursor) {
			metrics.ObserveLeaf(metrics.LeafOutOfWindow)
			continue
		}
		if !seen.CheckAndInsert(leaf.ID) {
			metrics.ObserveLeaf(metrics.LeafDuplicate)
			continue
		}
		if err := q.Enqueue(ctx, leaf.ID); err != nil {
			return err
		}
		metrics.ObserveLeaf(metrics.LeafEnqueued)
		metrics.SetQueueDepth(q.Depth())
	}
	return nil
}

// fetchPage retries a failed page after a fixed delay until it succeeds or
// the cycle is cancelled. A page that keeps failing stalls its worker;
// cancellation is the only way out.
func (p *Producer) fetchPage(ctx context.Context, ref catalog.PageRef) (catalog.Page, error) {
	attempt := 0
	page, err := backoff.Retry(ctx, func() (catalog.Page, error) {
		attempt++
		pg, err := p.catalog.GetPage(ctx, ref.URL)
		if err != nil {
			metrics.ObservePageRetry()
			p.logger.Warn("catalog page fetch failed",
				zap.String("url", ref.URL),
				zap.Int("attempt", attempt),
				zap.Error(err))
			return catalog.Page{}, err
		}
		return pg, nil
	}, backoff.WithBackOff(backoff.NewConstantBackOff(p.cfg.RetryDelay)),
		// Retry has a 15 minute elapsed-time cap by default; zero lifts it
		// so a failing page is retried until it recovers or the cycle is
		// cancelled.
		backoff.WithMaxElapsedTime(0))
	if err != nil {
		return catalog.Page{}, fmt.Errorf("get catalog page %s: %w", ref.URL, err)
	}
	metrics.ObserveCatalogPage()
	return page, nil
}

// overlapping selects page refs whose covered interval (Lo, Hi] intersects
// the cursor window (since, maxCursor].
func overlapping(pages []catalog.PageRef, since, maxCursor time.Time) []catalog.PageRef {
	var refs []catalog.PageRef
	for _, ref := range pages {
		if ref.Hi.After(since) && ref.Lo.Before(maxCursor) {
			refs = append(refs, ref)
		}
	}
	return refs
}

// pagePool hands out page references to fetch workers, each exactly once.
type pagePool struct {
	mu   sync.Mutex
	refs []catalog.PageRef
}

func (p *pagePool) take() (catalog.PageRef, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.refs) == 0 {
		return catalog.PageRef{}, false
	}
	ref := p.refs[len(p.refs)-1]
	p.refs = p.refs[:len(p.refs)-1]
	return ref, true
}
