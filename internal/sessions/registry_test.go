package sessions

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/productfeed/internal/catalog"
	pkgerrors "github.com/angelmondragon/productfeed/pkg/errors"
	"github.com/angelmondragon/productfeed/pkg/logger"
	"github.com/angelmondragon/productfeed/pkg/metrics"
	"github.com/angelmondragon/productfeed/pkg/productsapi"
)

type idleTransport struct{}

func (idleTransport) FetchPage(context.Context, int, int, time.Duration) (*productsapi.Payload, error) {
	return nil, pkgerrors.New(pkgerrors.CodeHTTPStatus, "Products not found")
}

func (idleTransport) FetchAll(context.Context, time.Duration) (*productsapi.Payload, error) {
	return nil, pkgerrors.New(pkgerrors.CodeHTTPStatus, "Products not found")
}

func newTestRegistry(t *testing.T, params Params) *Registry {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "sessions-test", Output: io.Discard})
	params.Logger = logg
	if params.Factory == nil {
		params.Factory = func() (*catalog.Controller, error) {
			return catalog.NewController(catalog.ControllerParams{Transport: idleTransport{}, Logger: logg})
		}
	}
	registry, err := NewRegistry(params)
	require.NoError(t, err)
	return registry
}

func TestCreateGetDelete(t *testing.T) {
	registry := newTestRegistry(t, Params{})
	ctx := context.Background()

	session, err := registry.Create(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, session.ID)
	require.NotNil(t, session.Controller)
	assert.Equal(t, 1, registry.Len())

	got, err := registry.Get(session.ID)
	require.NoError(t, err)
	assert.Same(t, session, got)

	require.NoError(t, registry.Delete(ctx, session.ID))
	assert.Zero(t, registry.Len())

	_, err = registry.Get(session.ID)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.CodeOf(err))
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.CodeOf(registry.Delete(ctx, session.ID)))
}

func TestCreateRespectsLimit(t *testing.T) {
	registry := newTestRegistry(t, Params{MaxSessions: 2})
	ctx := context.Background()

	_, err := registry.Create(ctx)
	require.NoError(t, err)
	_, err = registry.Create(ctx)
	require.NoError(t, err)

	_, err = registry.Create(ctx)
	assert.Equal(t, pkgerrors.CodeRateLimit, pkgerrors.CodeOf(err))
	assert.Equal(t, 2, registry.Len())
}

func TestCreateFactoryFailure(t *testing.T) {
	registry := newTestRegistry(t, Params{Factory: func() (*catalog.Controller, error) {
		return nil, errors.New("boom")
	}})
	_, err := registry.Create(context.Background())
	assert.Equal(t, pkgerrors.CodeInternal, pkgerrors.CodeOf(err))
}

func TestSweepEvictsIdleSessions(t *testing.T) {
	reg := prometheus.NewRegistry()
	registry := newTestRegistry(t, Params{IdleTTL: 10 * time.Minute, Metrics: metrics.NewCatalogMetrics(reg)})
	clock := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	registry.now = func() time.Time { return clock }
	ctx := context.Background()

	stale, err := registry.Create(ctx)
	require.NoError(t, err)
	clock = clock.Add(8 * time.Minute)
	fresh, err := registry.Create(ctx)
	require.NoError(t, err)

	clock = clock.Add(5 * time.Minute)
	assert.Equal(t, 1, registry.Sweep(ctx))

	_, err = registry.Get(stale.ID)
	assert.Error(t, err)
	_, err = registry.Get(fresh.ID)
	assert.NoError(t, err)

	assert.False(t, stale.Controller.Start(ctx), "evicted controllers are closed")

	mfs, err := reg.Gather()
	require.NoError(t, err)
	var active float64
	for _, mf := range mfs {
		if mf.GetName() == "browse_sessions_active" {
			active = mf.GetMetric()[0].GetGauge().GetValue()
		}
	}
	assert.Equal(t, float64(1), active)
}

func TestGetRefreshesIdleClock(t *testing.T) {
	registry := newTestRegistry(t, Params{IdleTTL: 10 * time.Minute})
	clock := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	registry.now = func() time.Time { return clock }
	ctx := context.Background()

	session, err := registry.Create(ctx)
	require.NoError(t, err)

	clock = clock.Add(9 * time.Minute)
	_, err = registry.Get(session.ID)
	require.NoError(t, err)

	clock = clock.Add(9 * time.Minute)
	assert.Zero(t, registry.Sweep(ctx))
}

func TestRunStopsOnCancel(t *testing.T) {
	registry := newTestRegistry(t, Params{SweepInterval: 5 * time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- registry.Run(ctx) }()
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("janitor did not stop")
	}
}

func TestCloseAll(t *testing.T) {
	registry := newTestRegistry(t, Params{})
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := registry.Create(ctx)
		require.NoError(t, err)
	}
	registry.CloseAll()
	assert.Zero(t, registry.Len())
}
