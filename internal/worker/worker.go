// Package worker implements the metadata refresh stage of the crawl
// pipeline: a fixed pool of workers drains the queue and refreshes each
// package's registration metadata.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pkgfeed/catalog-mirror/internal/clock/system"
	"github.com/pkgfeed/catalog-mirror/internal/crawler"
	"github.com/pkgfeed/catalog-mirror/internal/metrics"
	"github.com/pkgfeed/catalog-mirror/internal/registration"
)

// Config controls Pool behavior.
type Config struct {
	// Workers is the pool size, fixed for a cycle regardless of backlog.
	Workers int
	// Topic receives change events after each successful refresh. Empty
	// disables publishing.
	Topic string
}

// Pool drains the work queue and fetches registration metadata.
type Pool struct {
	registration registration.Client
	publisher    crawler.Publisher
	clock        crawler.Clock
	cfg          Config
	logger       *zap.Logger
}

// New constructs a Pool.
func New(
	reg registration.Client,
	publisher crawler.Publisher,
	clock crawler.Clock,
	cfg Config,
	logger *zap.Logger,
) *Pool {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if clock == nil {
		clock = system.New()
	}
	return &Pool{
		registration: reg,
		publisher:    publisher,
		clock:        clock,
		cfg:          cfg,
		logger:       logger,
	}
}

// Consume blocks until the queue is closed and drained or the context ends.
// A worker that hits a fetch error logs it and stops, shrinking the pool's
// parallelism for the remainder of the cycle; the other workers keep
// draining.
func (p *Pool) Consume(ctx context.Context, q crawler.Queue, cycleID string) {
	var wg sync.WaitGroup
	for i := 0; i < p.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.run(ctx, q, cycleID)
		}()
	}
	wg.Wait()
}

func (p *Pool) run(ctx context.Context, q crawler.Queue, cycleID string) {
	for {
		id, err := q.Dequeue(ctx)
		if err != nil {
			if !errors.Is(err, crawler.ErrQueueClosed) && ctx.Err() == nil {
				p.logger.Error("dequeue failed", zap.Error(err))
			}
			return
		}
		metrics.SetQueueDepth(q.Depth())

		if err := p.refresh(ctx, cycleID, id); err != nil {
			if ctx.Err() != nil {
				return
			}
			metrics.ObserveMetadataLookup(metrics.LookupFailed)
			p.logger.Error("metadata refresh failed, worker stopping",
				zap.String("cycle_id", cycleID),
				zap.String("package_id", id),
				zap.Error(err))
			return
		}
	}
}

func (p *Pool) refresh(ctx context.Context, cycleID, id string) error {
	index, err := p.registration.GetIndex(ctx, id)
	if err != nil {
		return fmt.Errorf("get registration index for %s: %w", id, err)
	}
	if index == nil {
		// The package was deleted upstream after the catalog announced
		// it. Expected terminal outcome, not an error.
		metrics.ObserveMetadataLookup(metrics.LookupMissing)
		p.logger.Info("package missing upstream",
			zap.String("cycle_id", cycleID),
			zap.String("package_id", id))
		return nil
	}

	for _, page := range index.Pages {
		if page.Inlined {
			continue
		}
		// Fetching the page warms the remote cache; the content itself
		// is not retained.
		if err := p.registration.GetPage(ctx, page.URL); err != nil {
			return fmt.Errorf("get registration page %s: %w", page.URL, err)
		}
		metrics.ObserveRegistrationPage()
	}

	metrics.ObserveMetadataLookup(metrics.LookupRefreshed)
	p.publish(ctx, cycleID, id)
	return nil
}

// publish emits a change event after a successful refresh. Publish failures
// are logged and never fail the refresh.
func (p *Pool) publish(ctx context.Context, cycleID, id string) {
	if p.cfg.Topic == "" || p.publisher == nil {
		return
	}
	payload := map[string]any{
		"cycle_id":     cycleID,
		"package_id":   id,
		"refreshed_at": p.clock.Now().Format(time.RFC3339),
	}
	if _, err := p.publisher.Publish(ctx, p.cfg.Topic, payload); err != nil {
		p.logger.Warn("publish change event failed",
			zap.String("package_id", id),
			zap.Error(err))
	}
}
