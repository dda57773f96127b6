// Package mirror drives the crawl loop: each cycle it discovers changed
// package identifiers and drains them through a fresh bounded queue, then
// advances the cursor and sleeps until the next poll.
package mirror

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pkgfeed/catalog-mirror/internal/crawler"
	"github.com/pkgfeed/catalog-mirror/internal/metrics"
	"github.com/pkgfeed/catalog-mirror/internal/queue/memory"
)

// Producer is the discovery stage of one cycle. It must close the queue once
// discovery ends and return the new high-water cursor.
type Producer interface {
	Produce(ctx context.Context, since time.Time, q crawler.Queue) (time.Time, error)
}

// Consumer is the drain stage of one cycle. It returns once the queue is
// closed and drained or the context ends.
type Consumer interface {
	Consume(ctx context.Context, q crawler.Queue, cycleID string)
}

// Config controls the crawl loop.
type Config struct {
	QueueCapacity int
	PollInterval  time.Duration
}

// Mirror owns the cursor and runs crawl cycles until cancelled. The cursor
// lives only in process memory: every start re-crawls from the epoch.
type Mirror struct {
	producer Producer
	consumer Consumer
	idGen    crawler.IDGenerator
	clock    crawler.Clock
	cfg      Config
	logger   *zap.Logger

	cursor time.Time
}

// New constructs a Mirror.
func New(
	producer Producer,
	consumer Consumer,
	idGen crawler.IDGenerator,
	clock crawler.Clock,
	cfg Config,
	logger *zap.Logger,
) *Mirror {
	if cfg.QueueCapacity <= 0 {
		cfg.QueueCapacity = 1
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Mirror{
		producer: producer,
		consumer: consumer,
		idGen:    idGen,
		clock:    clock,
		cfg:      cfg,
		logger:   logger,
	}
}

// Run executes crawl cycles until the context is cancelled. Cancellation is
// a clean exit; any stage failure is fatal and returned.
func (m *Mirror) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return nil
		}
		if err := m.cycle(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(m.cfg.PollInterval):
		}
	}
}

// cycle runs producer and consumer concurrently over a fresh queue, then
// advances the cursor to the producer's high-water mark. The cursor never
// regresses.
func (m *Mirror) cycle(ctx context.Context) error {
	cycleID, err := m.idGen.NewID()
	if err != nil {
		return fmt.Errorf("new cycle id: %w", err)
	}
	started := m.clock.Now()
	q := memory.NewQueue(m.cfg.QueueCapacity)

	var next time.Time
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		highWater, err := m.producer.Produce(gctx, m.cursor, q)
		if err != nil {
			return err
		}
		next = highWater
		return nil
	})
	g.Go(func() error {
		m.consumer.Consume(gctx, q, cycleID)
		return nil
	})
	if err := g.Wait(); err != nil {
		return fmt.Errorf("cycle %s: %w", cycleID, err)
	}

	if next.After(m.cursor) {
		m.cursor = next
	}
	duration := m.clock.Now().Sub(started)
	metrics.ObserveCycle(duration)
	metrics.SetCursor(m.cursor)
	m.logger.Info("cycle complete",
		zap.String("cycle_id", cycleID),
		zap.Time("cursor", m.cursor),
		zap.Duration("duration", duration))
	return nil
}

// Cursor returns the high-water mark reached so far.
func (m *Mirror) Cursor() time.Time {
	return m.cursor
}
