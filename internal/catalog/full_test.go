package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/productfeed/pkg/errors"
	"github.com/angelmondragon/productfeed/pkg/metrics"
	"github.com/angelmondragon/productfeed/pkg/productsapi"
)

func TestFullLoaderSharesInFlightFetch(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 4)
	transport := &fakeTransport{allFn: func(int) (*productsapi.Payload, error) {
		started <- struct{}{}
		<-release
		return payloadFor(fixtureProducts(12), 12), nil
	}}
	loader := newFullLoader(transport, time.Second, nil, false)

	var wg sync.WaitGroup
	results := make([][]Item, 3)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			items, _, err := loader.EnsureLoaded(context.Background())
			assert.NoError(t, err)
			results[i] = items
		}(i)
	}

	<-started
	// Give the other callers time to join the in-flight call.
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, 1, transport.allCallCount())
	for _, items := range results {
		assert.Len(t, items, 12)
	}
}

func TestFullLoaderMemoizesAndCountsHits(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewCatalogMetrics(reg)
	transport := &fakeTransport{allFn: func(int) (*productsapi.Payload, error) {
		return payloadFor(fixtureProducts(3), 3), nil
	}}
	loader := newFullLoader(transport, time.Second, m, false)

	for i := 0; i < 3; i++ {
		items, _, err := loader.EnsureLoaded(context.Background())
		require.NoError(t, err)
		assert.Len(t, items, 3)
	}
	assert.Equal(t, 1, transport.allCallCount())

	mfs, err := reg.Gather()
	require.NoError(t, err)
	var hits float64
	for _, mf := range mfs {
		if mf.GetName() == "full_collection_cache_hits_total" {
			for _, metric := range mf.GetMetric() {
				hits += metric.GetCounter().GetValue()
			}
		}
	}
	assert.Equal(t, float64(2), hits)
}

func TestFullLoaderRejectsCollectionWithoutValidItems(t *testing.T) {
	transport := &fakeTransport{allFn: func(call int) (*productsapi.Payload, error) {
		if call == 1 {
			return payloadFor([]json.RawMessage{json.RawMessage(`{"id":1}`)}, 1), nil
		}
		return payloadFor(fixtureProducts(2), 2), nil
	}}
	loader := newFullLoader(transport, time.Second, nil, false)

	items, _, err := loader.EnsureLoaded(context.Background())
	require.Error(t, err)
	assert.Nil(t, items)
	assert.Equal(t, pkgerrors.CodeSortFetchFailed, pkgerrors.CodeOf(err))
	assert.Equal(t, pkgerrors.CodeNoValidProducts, pkgerrors.CodeOf(errors.Unwrap(err)))
	_, ok := loader.cached()
	assert.False(t, ok)

	items, _, err = loader.EnsureLoaded(context.Background())
	require.NoError(t, err)
	assert.Len(t, items, 2)
	assert.Equal(t, 2, transport.allCallCount())
}

func TestFullLoaderWrapsFailure(t *testing.T) {
	cause := pkgerrors.New(pkgerrors.CodeHTTPStatus, "Products not found")
	transport := &fakeTransport{allFn: func(int) (*productsapi.Payload, error) {
		return nil, cause
	}}
	loader := newFullLoader(transport, time.Second, nil, false)

	_, _, err := loader.EnsureLoaded(context.Background())
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeSortFetchFailed, pkgerrors.CodeOf(err))
	assert.ErrorIs(t, err, cause)
}

func TestFullLoaderRefreshBypassesSharedCache(t *testing.T) {
	transport := &fakeTransport{allFn: func(int) (*productsapi.Payload, error) {
		return payloadFor(fixtureProducts(3), 3), nil
	}}

	_, _, err := newFullLoader(transport, time.Second, nil, false).EnsureLoaded(context.Background())
	require.NoError(t, err)
	_, _, err = newFullLoader(transport, time.Second, nil, true).EnsureLoaded(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []bool{false, true}, transport.bypassed())
}
