package cachemdw

import (
	"context"
	"net/http"

	"github.com/kava-labs/odata-batch-proxy/batch"
	"github.com/kava-labs/odata-batch-proxy/decode"
)

type cacheContextKey string

const (
	// Context keys
	CachedResponsesContextKey cacheContextKey = "X-ODATA-BATCH-CACHED-RESPONSES"
	FreshResponsesContextKey  cacheContextKey = "X-ODATA-BATCH-FRESH-RESPONSES"

	CacheHeaderKey          = "X-Batch-Cache"
	CacheHitHeaderValue     = "HIT"
	CacheMissHeaderValue    = "MISS"
	CachePartialHeaderValue = "PARTIAL"
)

// IsCachedMiddleware returns middleware which works in the following way:
// - tries to get the decoded batch from context (previous middleware should set it)
// - tries to get the response of every cacheable retrieve item from the cache
// - sets the responses found in context, keyed by item index, and forwards to next middleware
//
// next middleware should only send the items missing from CachedResponses to the backend
func (c *ServiceCache) IsCachedMiddleware(
	next http.Handler,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// if cache is not enabled - do nothing and forward to next middleware
		if !c.cacheEnabled {
			next.ServeHTTP(w, r)
			return
		}

		decodedReq, ok := r.Context().Value(c.decodedRequestContextKey).(*decode.BatchRequestEnvelope)
		if !ok {
			c.Logger.Error().
				Str("method", r.Method).
				Str("url", r.URL.String()).
				Str("host", r.Host).
				Msg("can't cast request to *BatchRequestEnvelope type")

			next.ServeHTTP(w, r)
			return
		}

		ops := make(map[int]*batch.Operation)
		for index, item := range decodedReq.Items {
			if item.IsRetrieve() {
				ops[index] = item.Request.ToOperation()
			}
		}

		cachedResponses, err := c.GetCachedQueryResponses(r.Context(), ops)
		if err != nil {
			c.Logger.Error().
				Err(err).
				Int("items", len(ops)).
				Msg("error during getting responses from cache")
			cachedResponses = make(map[int]*QueryResponse)
		}

		c.Logger.Trace().
			Int("items", len(decodedReq.Items)).
			Int("cached", len(cachedResponses)).
			Msg("cache lookup finished")

		responseContext := context.WithValue(r.Context(), CachedResponsesContextKey, cachedResponses)
		next.ServeHTTP(w, r.WithContext(responseContext))
	}
}

// CachedResponses returns the cached responses set by IsCachedMiddleware, keyed by item index
func CachedResponses(ctx context.Context) map[int]*QueryResponse {
	cached, _ := ctx.Value(CachedResponsesContextKey).(map[int]*QueryResponse)
	return cached
}

// WithFreshResponses returns a context carrying the retrieve responses read from the backend,
// keyed by item index, for CachingMiddleware to store
func WithFreshResponses(ctx context.Context, responses map[int]*QueryResponse) context.Context {
	return context.WithValue(ctx, FreshResponsesContextKey, responses)
}
