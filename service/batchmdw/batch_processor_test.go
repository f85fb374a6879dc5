package batchmdw

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kava-labs/odata-batch-proxy/service/cachemdw"
)

func TestUnitTest_cacheHitValue(t *testing.T) {
	for _, tc := range []struct {
		name     string
		total    int
		hits     int
		expected string
	}{
		{
			name:     "no hits => MISS",
			total:    5,
			hits:     0,
			expected: cachemdw.CacheMissHeaderValue,
		},
		{
			name:     "all hits => HIT",
			total:    5,
			hits:     5,
			expected: cachemdw.CacheHitHeaderValue,
		},
		{
			name:     "some hits => PARTIAL",
			total:    5,
			hits:     3,
			expected: cachemdw.CachePartialHeaderValue,
		},
		{
			name:     "invalid 0 case => MISS",
			total:    0,
			hits:     0,
			expected: cachemdw.CacheMissHeaderValue,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			actual := cacheHitValue(tc.total, tc.hits)
			require.Equal(t, tc.expected, actual)
		})
	}
}

func TestUnitTest_encodeBody(t *testing.T) {
	for _, tc := range []struct {
		name        string
		contentType string
		body        string
		expected    string
	}{
		{
			name:        "json is embedded",
			contentType: "application/json;odata=minimalmetadata",
			body:        `{"ID":1}`,
			expected:    `{"ID":1}`,
		},
		{
			name:        "json suffix is embedded",
			contentType: "application/problem+json",
			body:        `{"error":"x"}`,
			expected:    `{"error":"x"}`,
		},
		{
			name:        "invalid json is quoted",
			contentType: "application/json",
			body:        `{"ID":`,
			expected:    `"{\"ID\":"`,
		},
		{
			name:        "text is quoted",
			contentType: "text/plain",
			body:        "5",
			expected:    `"5"`,
		},
		{
			name:        "missing content type is quoted",
			contentType: "",
			body:        "<feed/>",
			expected:    `"<feed/>"`,
		},
		{
			name:        "empty body is omitted",
			contentType: "application/json",
			body:        "",
			expected:    "",
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.expected, string(encodeBody(tc.contentType, []byte(tc.body))))
		})
	}
}
