package cachemdw

import (
	"net/http"

	"github.com/kava-labs/odata-batch-proxy/decode"
)

// CachingMiddleware returns middleware which works in the following way:
// - tries to get the decoded batch from context (previous middleware should set it)
// - tries to get the fresh retrieve responses from context (the batch handler should set them)
// - caches every fresh response whose request and response are cacheable
// - calls next middleware
func (c *ServiceCache) CachingMiddleware(
	next http.Handler,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// if cache is not enabled - do nothing and forward to next middleware
		if !c.cacheEnabled {
			c.Logger.Trace().
				Str("method", r.Method).
				Str("url", r.URL.String()).
				Str("host", r.Host).
				Msg("cache is disabled skipping caching-middleware")

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

		freshResponses, _ := r.Context().Value(FreshResponsesContextKey).(map[int]*QueryResponse)

		for index, response := range freshResponses {
			if index < 0 || index >= len(decodedReq.Items) || !decodedReq.Items[index].IsRetrieve() {
				continue
			}

			op := decodedReq.Items[index].Request.ToOperation()
			if !IsCacheable(op) || !response.IsCacheable() {
				continue
			}

			if err := c.CacheQueryResponse(r.Context(), op, response); err != nil {
				c.Logger.Error().
					Err(err).
					Int("item", index).
					Msg("can't cache retrieve response")
			}
		}

		next.ServeHTTP(w, r)
	}
}
