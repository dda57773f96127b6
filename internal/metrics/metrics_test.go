package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestInitIsIdempotentAndCollectorsRecord(t *testing.T) {
	Init()
	Init() // second call must not re-register collectors

	ObserveCycle(2 * time.Second)
	SetCursor(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	ObserveCatalogPage()
	ObservePageRetry()
	ObserveLeaf(LeafEnqueued)
	ObserveLeaf(LeafDuplicate)
	ObserveLeaf(LeafOutOfWindow)
	SetQueueDepth(7)
	ObserveMetadataLookup(LookupRefreshed)
	ObserveMetadataLookup(LookupMissing)
	ObserveRegistrationPage()

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)

	body := rec.Body.String()
	for _, name := range []string{
		"mirror_cycles_total",
		"mirror_cursor_timestamp_seconds",
		"mirror_catalog_leaves_total",
		"mirror_queue_depth",
		"mirror_metadata_lookups_total",
	} {
		require.True(t, strings.Contains(body, name), "missing %s in exposition", name)
	}
}
