package cachemdw

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kava-labs/odata-batch-proxy/batch"
	"github.com/kava-labs/odata-batch-proxy/clients/cache"
	"github.com/kava-labs/odata-batch-proxy/logging"
)

// DefaultWhitelistedHeaders are the sub-response headers cached along with the body
var DefaultWhitelistedHeaders = []string{
	"Content-Type",
	"DataServiceVersion",
	"OData-Version",
	"ETag",
	"Last-Modified",
}

// ServiceCache is responsible for caching retrieve responses and provides corresponding middleware
// ServiceCache can work with any underlying storage which implements simple cache.Cache interface
type ServiceCache struct {
	cacheClient              cache.Cache
	decodedRequestContextKey any
	// cachePrefix is used as prefix for any key in the cache
	cachePrefix        string
	cacheEnabled       bool
	whitelistedHeaders []string
	// cacheTTL is either greater than zero or cache.NoExpiration
	cacheTTL time.Duration

	*logging.ServiceLogger
}

func NewServiceCache(
	cacheClient cache.Cache,
	decodedRequestContextKey any,
	cachePrefix string,
	cacheEnabled bool,
	whitelistedHeaders []string,
	cacheTTL time.Duration,
	logger *logging.ServiceLogger,
) *ServiceCache {
	return &ServiceCache{
		cacheClient:              cacheClient,
		decodedRequestContextKey: decodedRequestContextKey,
		cachePrefix:              cachePrefix,
		cacheEnabled:             cacheEnabled,
		whitelistedHeaders:       whitelistedHeaders,
		cacheTTL:                 cacheTTL,
		ServiceLogger:            logging.OrNop(logger),
	}
}

// IsCacheable checks if a retrieve operation is cacheable:
// it must be a GET that does not ask to bypass caches
func IsCacheable(op *batch.Operation) bool {
	if op == nil || op.URL == "" {
		return false
	}

	if op.Method() != http.MethodGet {
		return false
	}

	for _, value := range op.Header.Values("Cache-Control") {
		for _, directive := range strings.Split(value, ",") {
			if strings.EqualFold(strings.TrimSpace(directive), "no-cache") {
				return false
			}
		}
	}

	return true
}

// GetCachedQueryResponse calculates cache key for the operation and then tries to get it from cache.
func (c *ServiceCache) GetCachedQueryResponse(
	ctx context.Context,
	op *batch.Operation,
) (*QueryResponse, error) {
	// if request isn't cacheable - there is no point to try to get it from cache so exit early with an error
	if !IsCacheable(op) {
		return nil, ErrRequestIsNotCacheable
	}

	key, err := GetQueryKey(c.cachePrefix, op)
	if err != nil {
		return nil, err
	}

	queryResponseInJSON, err := c.cacheClient.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	var queryResponse QueryResponse
	if err := json.Unmarshal(queryResponseInJSON, &queryResponse); err != nil {
		return nil, err
	}

	return &queryResponse, nil
}

// GetCachedQueryResponses looks up the responses of several operations,
// keyed by the caller's item index, with a single cache call. Uncacheable
// operations and misses are absent from the result; values that can't be
// decoded are logged and treated as misses.
func (c *ServiceCache) GetCachedQueryResponses(
	ctx context.Context,
	ops map[int]*batch.Operation,
) (map[int]*QueryResponse, error) {
	keysByIndex := make(map[int]string, len(ops))
	keys := make([]string, 0, len(ops))
	for index, op := range ops {
		if !IsCacheable(op) {
			continue
		}

		key, err := GetQueryKey(c.cachePrefix, op)
		if err != nil {
			return nil, err
		}

		keysByIndex[index] = key
		keys = append(keys, key)
	}

	responses := make(map[int]*QueryResponse, len(keysByIndex))
	if len(keys) == 0 {
		return responses, nil
	}

	values, err := c.cacheClient.GetMany(ctx, keys)
	if err != nil {
		return nil, err
	}

	for index, key := range keysByIndex {
		value, ok := values[key]
		if !ok {
			continue
		}

		var queryResponse QueryResponse
		if err := json.Unmarshal(value, &queryResponse); err != nil {
			c.Logger.Error().
				Err(err).
				Int("item", index).
				Msg("can't unmarshal cached query response")
			continue
		}

		responses[index] = &queryResponse
	}

	return responses, nil
}

// CacheQueryResponse calculates cache key for the operation and then saves response to the cache.
func (c *ServiceCache) CacheQueryResponse(
	ctx context.Context,
	op *batch.Operation,
	response *QueryResponse,
) error {
	// don't cache uncacheable requests
	if !IsCacheable(op) {
		return ErrRequestIsNotCacheable
	}

	// don't cache uncacheable responses
	if !response.IsCacheable() {
		return ErrResponseIsNotCacheable
	}

	key, err := GetQueryKey(c.cachePrefix, op)
	if err != nil {
		return err
	}

	queryResponseInJSON, err := json.Marshal(response)
	if err != nil {
		return fmt.Errorf("can't marshal query response: %w", err)
	}

	return c.cacheClient.Set(ctx, key, queryResponseInJSON, c.cacheTTL)
}

// WhitelistedHeaders returns the sub-response headers kept in cached values
func (c *ServiceCache) WhitelistedHeaders() []string {
	return c.whitelistedHeaders
}

func (c *ServiceCache) Healthcheck(ctx context.Context) error {
	return c.cacheClient.Healthcheck(ctx)
}

func (c *ServiceCache) IsCacheEnabled() bool {
	return c.cacheEnabled
}
