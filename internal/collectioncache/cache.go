package collectioncache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/angelmondragon/productfeed/pkg/logger"
	"github.com/angelmondragon/productfeed/pkg/metrics"
	"github.com/angelmondragon/productfeed/pkg/productsapi"
	"github.com/angelmondragon/productfeed/pkg/redis"
)

// Upstream is the products API being decorated.
type Upstream interface {
	FetchPage(ctx context.Context, offset, limit int, timeout time.Duration) (*productsapi.Payload, error)
	FetchAll(ctx context.Context, timeout time.Duration) (*productsapi.Payload, error)
}

// Store is the subset of the redis client used for cached collections.
type Store interface {
	GetBytes(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	CollectionKey(source string) string
}

// Params wires a Transport.
type Params struct {
	Upstream Upstream
	Store    Store
	Logger   *logger.Logger
	Metrics  *metrics.CatalogMetrics
	// Source identifies the upstream in the cache key, usually its host.
	Source string
	TTL    time.Duration
}

// Transport serves FetchAll from Redis when a fresh copy exists so that new
// sessions sorting the same collection share one upstream fetch. Pages are
// never cached. Requests marked with productsapi.WithoutSharedCache skip the
// read and overwrite the stored copy.
type Transport struct {
	upstream Upstream
	store    Store
	logg     *logger.Logger
	metrics  *metrics.CatalogMetrics
	key      string
	ttl      time.Duration
}

func New(params Params) (*Transport, error) {
	if params.Upstream == nil {
		return nil, errors.New("upstream required")
	}
	if params.Store == nil {
		return nil, errors.New("redis store required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	if params.TTL <= 0 {
		return nil, errors.New("ttl must be positive")
	}
	return &Transport{
		upstream: params.Upstream,
		store:    params.Store,
		logg:     params.Logger,
		metrics:  params.Metrics,
		key:      params.Store.CollectionKey(params.Source),
		ttl:      params.TTL,
	}, nil
}

func (t *Transport) FetchPage(ctx context.Context, offset, limit int, timeout time.Duration) (*productsapi.Payload, error) {
	return t.upstream.FetchPage(ctx, offset, limit, timeout)
}

func (t *Transport) FetchAll(ctx context.Context, timeout time.Duration) (*productsapi.Payload, error) {
	logCtx := t.logg.WithField(ctx, "cache_key", t.key)

	if productsapi.SharedCacheBypassed(ctx) {
		t.logg.Debug(logCtx, "collectioncache.bypass")
	} else if payload, ok := t.read(logCtx); ok {
		return payload, nil
	}

	payload, err := t.upstream.FetchAll(ctx, timeout)
	if err != nil {
		return nil, err
	}

	encoded, err := json.Marshal(payload)
	if err != nil {
		t.logg.Error(logCtx, "collectioncache.encode_failed", err)
		return payload, nil
	}
	if err := t.store.Set(ctx, t.key, encoded, t.ttl); err != nil {
		t.logg.Error(logCtx, "collectioncache.write_failed", err)
	}
	return payload, nil
}

func (t *Transport) read(ctx context.Context) (*productsapi.Payload, bool) {
	raw, err := t.store.GetBytes(ctx, t.key)
	switch {
	case err == nil:
	case redis.IsMiss(err):
		t.logg.Debug(ctx, "collectioncache.miss")
		return nil, false
	default:
		t.logg.Error(ctx, "collectioncache.read_failed", err)
		return nil, false
	}

	var payload productsapi.Payload
	if err := json.Unmarshal(raw, &payload); err != nil || payload.Products == nil {
		t.logg.Warn(ctx, "collectioncache.corrupt_entry")
		if delErr := t.store.Del(ctx, t.key); delErr != nil {
			t.logg.Error(ctx, "collectioncache.evict_failed", delErr)
		}
		return nil, false
	}
	t.metrics.IncCacheHit("redis")
	t.logg.Debug(ctx, "collectioncache.hit")
	return &payload, true
}
