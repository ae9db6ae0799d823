package productsapi

import "context"

type bypassCacheKey struct{}

// WithoutSharedCache marks ctx so caching decorators in front of the client
// fetch from the upstream and refresh their copy instead of serving it.
func WithoutSharedCache(ctx context.Context) context.Context {
	return context.WithValue(ctx, bypassCacheKey{}, true)
}

// SharedCacheBypassed reports whether ctx was marked by WithoutSharedCache.
func SharedCacheBypassed(ctx context.Context) bool {
	bypass, _ := ctx.Value(bypassCacheKey{}).(bool)
	return bypass
}
