// Package cachemdw is responsible for caching the responses to retrieve
// items of a batch and provides corresponding middleware.
// The package can work with any underlying storage which implements the
// simple cache.Cache interface.
//
// The package provides two different middlewares:
// - IsCachedMiddleware (should be run before the batch handler)
// - CachingMiddleware  (should be run after the batch handler)
//
// IsCachedMiddleware looks up every cacheable retrieve of the decoded batch
// and sets the responses found in the context.
// CachingMiddleware takes the fresh retrieve responses set in the context by
// the batch handler and stores the cacheable ones.
package cachemdw
