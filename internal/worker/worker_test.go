package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pkgfeed/catalog-mirror/internal/metrics"
	pubmemory "github.com/pkgfeed/catalog-mirror/internal/publisher/memory"
	"github.com/pkgfeed/catalog-mirror/internal/queue/memory"
	"github.com/pkgfeed/catalog-mirror/internal/registration"
)

func TestMain(m *testing.M) {
	metrics.Init()
	m.Run()
}

type fakeRegistration struct {
	mu         sync.Mutex
	indexes    map[string]*registration.Index
	indexErrs  map[string]error
	pageErrs   map[string]error
	pageGets   []string
	indexCalls []string
}

func (f *fakeRegistration) GetIndex(_ context.Context, id string) (*registration.Index, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.indexCalls = append(f.indexCalls, id)
	if err := f.indexErrs[id]; err != nil {
		return nil, err
	}
	return f.indexes[id], nil
}

func (f *fakeRegistration) GetPage(_ context.Context, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pageGets = append(f.pageGets, url)
	return f.pageErrs[url]
}

func (f *fakeRegistration) pages() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.pageGets))
	copy(out, f.pageGets)
	return out
}

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func TestConsumeDrainsQueueAndWarmsNonInlinePages(t *testing.T) {
	t.Parallel()

	reg := &fakeRegistration{
		indexes: map[string]*registration.Index{
			"Newtonsoft.Json": {Pages: []registration.PageRef{
				{URL: "page-inline", Inlined: true},
				{URL: "page-remote", Inlined: false},
			}},
			"Serilog": {Pages: []registration.PageRef{
				{URL: "serilog-remote", Inlined: false},
			}},
		},
	}
	pub := pubmemory.New()
	clock := &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}

	q := memory.NewQueue(4)
	require.NoError(t, q.Enqueue(context.Background(), "Newtonsoft.Json"))
	require.NoError(t, q.Enqueue(context.Background(), "Serilog"))
	q.Close()

	pool := New(reg, pub, clock, Config{Workers: 2, Topic: "package-changes"}, nil)
	pool.Consume(context.Background(), q, "cycle-1")

	require.ElementsMatch(t, []string{"page-remote", "serilog-remote"}, reg.pages())

	msgs := pub.Messages()
	require.Len(t, msgs, 2)
	for _, msg := range msgs {
		require.Equal(t, "package-changes", msg.Topic)
		payload, ok := msg.Payload.(map[string]any)
		require.True(t, ok)
		require.Equal(t, "cycle-1", payload["cycle_id"])
		require.Equal(t, "2024-03-01T12:00:00Z", payload["refreshed_at"])
	}
}

func TestNewDefaultsClockForPublishing(t *testing.T) {
	t.Parallel()

	reg := &fakeRegistration{
		indexes: map[string]*registration.Index{
			"Some.Package": {},
		},
	}
	pub := pubmemory.New()

	q := memory.NewQueue(2)
	require.NoError(t, q.Enqueue(context.Background(), "Some.Package"))
	q.Close()

	// No clock supplied: New falls back to the system clock and publish
	// still stamps a valid refreshed_at.
	pool := New(reg, pub, nil, Config{Workers: 1, Topic: "package-changes"}, nil)
	require.NotNil(t, pool.clock)

	before := time.Now().UTC().Truncate(time.Second)
	pool.Consume(context.Background(), q, "cycle-5")

	msgs := pub.Messages()
	require.Len(t, msgs, 1)
	payload, ok := msgs[0].Payload.(map[string]any)
	require.True(t, ok)
	refreshedAt, err := time.Parse(time.RFC3339, payload["refreshed_at"].(string))
	require.NoError(t, err)
	require.False(t, refreshedAt.Before(before))
}

func TestConsumeMissingPackageIsNotAnError(t *testing.T) {
	t.Parallel()

	reg := &fakeRegistration{indexes: map[string]*registration.Index{}}

	q := memory.NewQueue(4)
	require.NoError(t, q.Enqueue(context.Background(), "Gone.Package"))
	require.NoError(t, q.Enqueue(context.Background(), "Also.Gone"))
	q.Close()

	pool := New(reg, nil, nil, Config{Workers: 1}, nil)
	pool.Consume(context.Background(), q, "cycle-2")

	// Both items drained, no page fetches attempted.
	require.ElementsMatch(t, []string{"Gone.Package", "Also.Gone"}, reg.indexCalls)
	require.Empty(t, reg.pages())
}

func TestConsumeFetchErrorStopsOneWorkerOthersDrain(t *testing.T) {
	t.Parallel()

	reg := &fakeRegistration{
		indexes: map[string]*registration.Index{
			"Ok.One":   {},
			"Ok.Two":   {},
			"Ok.Three": {},
		},
		indexErrs: map[string]error{
			"Broken.Package": errors.New("registration service down"),
		},
	}

	q := memory.NewQueue(8)
	for _, id := range []string{"Broken.Package", "Ok.One", "Ok.Two", "Ok.Three"} {
		require.NoError(t, q.Enqueue(context.Background(), id))
	}
	q.Close()

	pool := New(reg, nil, nil, Config{Workers: 2}, nil)

	done := make(chan struct{})
	go func() {
		pool.Consume(context.Background(), q, "cycle-3")
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("pool did not drain after one worker stopped")
	}
	require.Len(t, reg.indexCalls, 4)
}

func TestConsumeStopsOnCancellation(t *testing.T) {
	t.Parallel()

	reg := &fakeRegistration{indexes: map[string]*registration.Index{}}
	q := memory.NewQueue(1) // never closed: cancellation must unblock

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		pool := New(reg, nil, nil, Config{Workers: 3}, nil)
		pool.Consume(ctx, q, "cycle-4")
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("pool did not stop after context cancel")
	}
}
