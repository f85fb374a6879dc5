package cachemdw_test

import (
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kava-labs/odata-batch-proxy/batch"
	"github.com/kava-labs/odata-batch-proxy/service/cachemdw"
)

func TestUnitTestQueryResponseIsCacheable(t *testing.T) {
	for _, tc := range []struct {
		desc      string
		response  *cachemdw.QueryResponse
		cacheable bool
	}{
		{
			desc:      "ok",
			response:  &cachemdw.QueryResponse{StatusCode: http.StatusOK},
			cacheable: true,
		},
		{
			desc:     "no content",
			response: &cachemdw.QueryResponse{StatusCode: http.StatusNoContent},
		},
		{
			desc:     "not found",
			response: &cachemdw.QueryResponse{StatusCode: http.StatusNotFound},
		},
		{
			desc:     "server error",
			response: &cachemdw.QueryResponse{StatusCode: http.StatusInternalServerError},
		},
		{
			desc: "nil",
		},
	} {
		t.Run(tc.desc, func(t *testing.T) {
			require.Equal(t, tc.cacheable, tc.response.IsCacheable())
		})
	}
}

func TestUnitTestNewQueryResponseKeepsWhitelistedHeaders(t *testing.T) {
	header := make(http.Header)
	header.Set("Content-Type", "application/json")
	header.Set("Set-Cookie", "session=1")
	header.Set("Etag", `W/"1"`)

	sub := batch.NewSubResponse(http.StatusOK, "OK", header, strings.NewReader(`{"ID":1}`))

	response := cachemdw.NewQueryResponse(sub, []byte(`{"ID":1}`), cachemdw.DefaultWhitelistedHeaders)
	require.Equal(t, http.StatusOK, response.StatusCode)
	require.Equal(t, "OK", response.Reason)
	require.Equal(t, map[string]string{
		"Content-Type": "application/json",
		"Etag":         `W/"1"`,
	}, response.HeaderMap)

	restored := response.ToSubResponse()
	require.Equal(t, http.StatusOK, restored.StatusCode)
	require.Equal(t, "application/json", restored.Header.Get("Content-Type"))
	require.Empty(t, restored.Header.Get("Set-Cookie"))

	body, err := io.ReadAll(restored.Body)
	require.NoError(t, err)
	require.Equal(t, `{"ID":1}`, string(body))
}
