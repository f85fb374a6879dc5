package cachemdw

import (
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/kava-labs/odata-batch-proxy/batch"
)

type CacheItemType int

const (
	CacheItemTypeQuery CacheItemType = iota + 1
)

func (t CacheItemType) String() string {
	switch t {
	case CacheItemTypeQuery:
		return "query"
	default:
		return "unknown"
	}
}

func BuildCacheKey(cacheItemType CacheItemType, parts []string) string {
	fullParts := append(
		[]string{
			cacheItemType.String(),
		},
		parts...,
	)

	return strings.Join(fullParts, ":")
}

// GetQueryKey calculates the cache key for a retrieve operation.
// The hash covers the method, the url and the request headers sorted by
// canonical name, so two requests asking for different representations
// of the same resource don't share an entry.
func GetQueryKey(
	cachePrefix string,
	op *batch.Operation,
) (string, error) {
	if op == nil {
		return "", fmt.Errorf("operation shouldn't be nil")
	}

	data := make([]byte, 0)
	data = append(data, []byte(op.Method())...)
	data = append(data, '\n')
	data = append(data, []byte(op.URL)...)
	data = append(data, '\n')
	data = append(data, canonicalHeaders(op.Header)...)

	hashedReq := crypto.Keccak256Hash(data)

	parts := []string{
		cachePrefix,
		hashedReq.Hex(),
	}

	return BuildCacheKey(CacheItemTypeQuery, parts), nil
}

func canonicalHeaders(header http.Header) []byte {
	merged := make(map[string][]string, len(header))
	for name, values := range header {
		canonical := http.CanonicalHeaderKey(name)
		merged[canonical] = append(merged[canonical], values...)
	}

	names := make([]string, 0, len(merged))
	for name := range merged {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		for _, value := range merged[name] {
			b.WriteString(name)
			b.WriteByte(':')
			b.WriteString(strings.TrimSpace(value))
			b.WriteByte('\n')
		}
	}

	return []byte(b.String())
}
