package catalog

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	pkgerrors "github.com/angelmondragon/productfeed/pkg/errors"
	"github.com/angelmondragon/productfeed/pkg/metrics"
	"github.com/angelmondragon/productfeed/pkg/productsapi"
)

const sortFetchFailedMessage = "Failed to fetch products for sorting"

// fullLoader memoizes the whole collection for one session generation.
// Concurrent callers share a single upstream request. A loader created by a
// reset skips shared caches in front of the transport.
type fullLoader struct {
	transport Transport
	timeout   time.Duration
	metrics   *metrics.CatalogMetrics
	refresh   bool

	group singleflight.Group

	mu    sync.Mutex
	items []Item
}

func newFullLoader(transport Transport, timeout time.Duration, m *metrics.CatalogMetrics, refresh bool) *fullLoader {
	return &fullLoader{transport: transport, timeout: timeout, metrics: m, refresh: refresh}
}

func (f *fullLoader) cached() ([]Item, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.items, len(f.items) > 0
}

// EnsureLoaded returns the cached collection, fetching it once if needed.
// A collection without a single valid item is a failure and is not memoized.
func (f *fullLoader) EnsureLoaded(ctx context.Context) ([]Item, int, error) {
	if items, ok := f.cached(); ok {
		f.metrics.IncCacheHit("session")
		return items, 0, nil
	}

	type result struct {
		items   []Item
		dropped int
	}
	v, err, _ := f.group.Do("all", func() (any, error) {
		if items, ok := f.cached(); ok {
			return result{items: items}, nil
		}
		fetchCtx := context.WithoutCancel(ctx)
		if f.refresh {
			fetchCtx = productsapi.WithoutSharedCache(fetchCtx)
		}
		payload, err := f.transport.FetchAll(fetchCtx, f.timeout)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeSortFetchFailed, err, sortFetchFailedMessage)
		}
		items, dropped := ParseItems(payload.Products)
		if len(items) == 0 {
			cause := pkgerrors.New(pkgerrors.CodeNoValidProducts, noValidProductsMsg).
				WithDetails(map[string]any{"dropped": dropped})
			return nil, pkgerrors.Wrap(pkgerrors.CodeSortFetchFailed, cause, sortFetchFailedMessage)
		}
		f.mu.Lock()
		f.items = items
		f.mu.Unlock()
		return result{items: items, dropped: dropped}, nil
	})
	if err != nil {
		return nil, 0, err
	}
	res := v.(result)
	return res.items, res.dropped, nil
}
