package cachemdw_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kava-labs/odata-batch-proxy/batch"
	"github.com/kava-labs/odata-batch-proxy/clients/cache"
	"github.com/kava-labs/odata-batch-proxy/service/cachemdw"
)

const (
	defaultCachePrefixString = "odata"
	testDecodedRequestKey    = "X-TEST-DECODED-REQUEST"
)

var defaultQueryResp = &cachemdw.QueryResponse{
	StatusCode: http.StatusOK,
	Reason:     "OK",
	HeaderMap:  map[string]string{"Content-Type": "application/json"},
	Body:       []byte(`{"d":{"ID":1}}`),
}

func newTestServiceCache(inMemoryCache cache.Cache, enabled bool) *cachemdw.ServiceCache {
	return cachemdw.NewServiceCache(
		inMemoryCache,
		testDecodedRequestKey,
		defaultCachePrefixString,
		enabled,
		cachemdw.DefaultWhitelistedHeaders,
		time.Hour,
		nil,
	)
}

func TestUnitTestIsCacheable(t *testing.T) {
	for _, tc := range []struct {
		desc      string
		op        *batch.Operation
		cacheable bool
	}{
		{
			desc:      "plain get",
			op:        batch.NewOperation(http.MethodGet, "Products(1)", nil, nil),
			cacheable: true,
		},
		{
			desc:      "get with unrelated cache control",
			op:        batch.NewOperation(http.MethodGet, "Products", http.Header{"Cache-Control": []string{"max-age=60"}}, nil),
			cacheable: true,
		},
		{
			desc: "get with no-cache",
			op:   batch.NewOperation(http.MethodGet, "Products", http.Header{"Cache-Control": []string{"max-age=0, No-Cache"}}, nil),
		},
		{
			desc: "post",
			op:   batch.NewOperation(http.MethodPost, "Products", nil, []byte("{}")),
		},
		{
			desc: "empty url",
			op:   batch.NewOperation(http.MethodGet, "", nil, nil),
		},
		{
			desc: "nil operation",
		},
	} {
		t.Run(tc.desc, func(t *testing.T) {
			require.Equal(t, tc.cacheable, cachemdw.IsCacheable(tc.op))
		})
	}
}

func TestUnitTestCacheQueryResponse(t *testing.T) {
	ctxb := context.Background()

	inMemoryCache := cache.NewInMemoryCache()
	serviceCache := newTestServiceCache(inMemoryCache, true)
	require.True(t, serviceCache.IsCacheEnabled())
	require.NoError(t, serviceCache.Healthcheck(ctxb))

	op := batch.NewOperation(http.MethodGet, "Products(1)", nil, nil)

	_, err := serviceCache.GetCachedQueryResponse(ctxb, op)
	require.ErrorIs(t, err, cache.ErrNotFound)

	require.NoError(t, serviceCache.CacheQueryResponse(ctxb, op, defaultQueryResp))

	cached, err := serviceCache.GetCachedQueryResponse(ctxb, op)
	require.NoError(t, err)
	require.Equal(t, defaultQueryResp, cached)

	key, err := cachemdw.GetQueryKey(defaultCachePrefixString, op)
	require.NoError(t, err)
	require.Contains(t, inMemoryCache.GetAll(ctxb), key)
}

func TestUnitTestCacheQueryResponseRejectsUncacheable(t *testing.T) {
	ctxb := context.Background()

	inMemoryCache := cache.NewInMemoryCache()
	serviceCache := newTestServiceCache(inMemoryCache, true)

	post := batch.NewOperation(http.MethodPost, "Products", nil, []byte("{}"))
	err := serviceCache.CacheQueryResponse(ctxb, post, defaultQueryResp)
	require.ErrorIs(t, err, cachemdw.ErrRequestIsNotCacheable)

	_, err = serviceCache.GetCachedQueryResponse(ctxb, post)
	require.ErrorIs(t, err, cachemdw.ErrRequestIsNotCacheable)

	get := batch.NewOperation(http.MethodGet, "Products(404)", nil, nil)
	err = serviceCache.CacheQueryResponse(ctxb, get, &cachemdw.QueryResponse{StatusCode: http.StatusNotFound})
	require.ErrorIs(t, err, cachemdw.ErrResponseIsNotCacheable)

	require.Empty(t, inMemoryCache.GetAll(ctxb))
}

func TestUnitTestCacheQueryResponseNoExpiration(t *testing.T) {
	ctxb := context.Background()

	inMemoryCache := cache.NewInMemoryCache()
	serviceCache := cachemdw.NewServiceCache(
		inMemoryCache,
		testDecodedRequestKey,
		defaultCachePrefixString,
		true,
		nil,
		cache.NoExpiration,
		nil,
	)

	op := batch.NewOperation(http.MethodGet, "Categories", nil, nil)
	require.NoError(t, serviceCache.CacheQueryResponse(ctxb, op, defaultQueryResp))

	_, err := serviceCache.GetCachedQueryResponse(ctxb, op)
	require.NoError(t, err)
}

func TestUnitTestGetCachedQueryResponses(t *testing.T) {
	ctxb := context.Background()

	inMemoryCache := cache.NewInMemoryCache()
	serviceCache := newTestServiceCache(inMemoryCache, true)

	cachedOp := batch.NewOperation(http.MethodGet, "Products(1)", nil, nil)
	require.NoError(t, serviceCache.CacheQueryResponse(ctxb, cachedOp, defaultQueryResp))

	corruptOp := batch.NewOperation(http.MethodGet, "Products(2)", nil, nil)
	corruptKey, err := cachemdw.GetQueryKey(defaultCachePrefixString, corruptOp)
	require.NoError(t, err)
	require.NoError(t, inMemoryCache.Set(ctxb, corruptKey, []byte("not json"), time.Minute))

	responses, err := serviceCache.GetCachedQueryResponses(ctxb, map[int]*batch.Operation{
		0: cachedOp,
		1: corruptOp,
		2: batch.NewOperation(http.MethodGet, "Products(3)", nil, nil),
		3: batch.NewOperation(http.MethodGet, "Products(1)", http.Header{"Cache-Control": []string{"no-cache"}}, nil),
		5: batch.NewOperation(http.MethodGet, "Products(1)", nil, nil),
	})
	require.NoError(t, err)
	require.Len(t, responses, 2)
	require.Equal(t, defaultQueryResp, responses[0])
	require.Equal(t, defaultQueryResp, responses[5], "repeated operations share one cache entry")

	responses, err = serviceCache.GetCachedQueryResponses(ctxb, nil)
	require.NoError(t, err)
	require.Empty(t, responses)
}
