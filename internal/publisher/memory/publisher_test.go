package memory

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPublisherRecordsMessages(t *testing.T) {
	t.Parallel()

	p := New()
	id, err := p.Publish(context.Background(), "package-changes", map[string]any{"package_id": "Serilog"})
	require.NoError(t, err)
	require.Equal(t, "memory-1", id)

	msgs := p.Messages()
	require.Len(t, msgs, 1)
	require.Equal(t, "package-changes", msgs[0].Topic)
}

func TestPublisherConcurrentPublishes(t *testing.T) {
	t.Parallel()

	p := New()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := p.Publish(context.Background(), "t", nil)
			require.NoError(t, err)
		}()
	}
	wg.Wait()
	require.Len(t, p.Messages(), 20)
}
