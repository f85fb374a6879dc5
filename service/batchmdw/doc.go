// Package batchmdw is responsible for the middleware used to handle batch requests.
//
// The primary export is CreateBatchProcessingMiddleware which sends every
// item of the decoded batch that was not served from the cache to the
// OData backend as a single multipart batch, reads the items of the
// multipart response back in order and combines cached and fresh results
// into a single JSON response.
//
// The cache status header will be set to:
//   - `HIT` when all items are cache hits
//   - `MISS` when no item is a cache hit
//   - `PARTIAL` when there is a mix of cache hits and misses
package batchmdw
