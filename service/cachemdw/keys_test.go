package cachemdw_test

import (
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kava-labs/odata-batch-proxy/batch"
	"github.com/kava-labs/odata-batch-proxy/service/cachemdw"
)

func TestUnitTestBuildCacheKey(t *testing.T) {
	for _, tc := range []struct {
		desc          string
		cacheItemType cachemdw.CacheItemType
		parts         []string
		expectedKey   string
	}{
		{
			desc:          "test case #1",
			cacheItemType: cachemdw.CacheItemTypeQuery,
			parts:         []string{"odata", "0x01"},
			expectedKey:   "query:odata:0x01",
		},
		{
			desc:          "unknown item type",
			cacheItemType: cachemdw.CacheItemType(0),
			parts:         []string{"odata"},
			expectedKey:   "unknown:odata",
		},
	} {
		t.Run(tc.desc, func(t *testing.T) {
			require.Equal(t, tc.expectedKey, cachemdw.BuildCacheKey(tc.cacheItemType, tc.parts))
		})
	}
}

func TestUnitTestGetQueryKey(t *testing.T) {
	op := func(url string, header http.Header) *batch.Operation {
		return batch.NewOperation(http.MethodGet, url, header, nil)
	}

	key, err := cachemdw.GetQueryKey("odata", op("Products(1)", nil))
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(key, "query:odata:0x"))
	require.Len(t, key, len("query:odata:")+66)

	sameKey, err := cachemdw.GetQueryKey("odata", op("Products(1)", nil))
	require.NoError(t, err)
	require.Equal(t, key, sameKey, "keys are deterministic")

	otherURL, err := cachemdw.GetQueryKey("odata", op("Products(2)", nil))
	require.NoError(t, err)
	require.NotEqual(t, key, otherURL)

	otherPrefix, err := cachemdw.GetQueryKey("other", op("Products(1)", nil))
	require.NoError(t, err)
	require.NotEqual(t, key, otherPrefix)

	withAccept, err := cachemdw.GetQueryKey("odata", op("Products(1)", http.Header{"Accept": []string{"application/json"}}))
	require.NoError(t, err)
	require.NotEqual(t, key, withAccept, "headers take part in the key")

	// header names are canonicalized and sorted before hashing
	first, err := cachemdw.GetQueryKey("odata", op("Products(1)", http.Header{
		"accept":         []string{"application/json"},
		"X-Request-Kind": []string{"a"},
	}))
	require.NoError(t, err)
	second, err := cachemdw.GetQueryKey("odata", op("Products(1)", http.Header{
		"X-Request-Kind": []string{"a"},
		"Accept":         []string{" application/json "},
	}))
	require.NoError(t, err)
	require.Equal(t, first, second)

	_, err = cachemdw.GetQueryKey("odata", nil)
	require.Error(t, err)
}
