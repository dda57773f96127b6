package dedupe

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetCheckAndInsertCaseInsensitive(t *testing.T) {
	t.Parallel()

	s := New()
	require.True(t, s.CheckAndInsert("Newtonsoft.Json"))
	require.False(t, s.CheckAndInsert("newtonsoft.json"))
	require.False(t, s.CheckAndInsert("NEWTONSOFT.JSON"))
	require.True(t, s.CheckAndInsert("Serilog"))
	require.Equal(t, 2, s.Len())
}

// TestSetConcurrentCheckAndInsert hammers the set with racing callers and
// verifies exactly one winner per distinct identifier.
func TestSetConcurrentCheckAndInsert(t *testing.T) {
	t.Parallel()

	const ids = 50
	const callersPerID = 8

	s := New()
	wins := make([]atomic.Int32, ids)
	var wg sync.WaitGroup
	for i := 0; i < ids; i++ {
		id := fmt.Sprintf("Package.%d", i)
		for c := 0; c < callersPerID; c++ {
			wg.Add(1)
			go func(i int, id string) {
				defer wg.Done()
				if s.CheckAndInsert(id) {
					wins[i].Add(1)
				}
			}(i, id)
		}
	}
	wg.Wait()

	for i := range wins {
		require.Equal(t, int32(1), wins[i].Load(), "identifier %d", i)
	}
	require.Equal(t, ids, s.Len())
}
