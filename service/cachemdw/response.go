package cachemdw

import (
	"bytes"
	"net/http"

	"github.com/kava-labs/odata-batch-proxy/batch"
)

// QueryResponse represents the structure which is stored in the cache
// for every cacheable retrieve
type QueryResponse struct {
	StatusCode int    `json:"status_code"`
	Reason     string `json:"reason,omitempty"`
	// HeaderMap holds the whitelisted sub-response headers cached along with the body
	HeaderMap map[string]string `json:"header_map,omitempty"`
	Body      []byte            `json:"body"`
}

// NewQueryResponse captures a sub-response whose body has already been read
func NewQueryResponse(response *batch.SubResponse, body []byte, whitelistedHeaders []string) *QueryResponse {
	return &QueryResponse{
		StatusCode: response.StatusCode,
		Reason:     response.Reason,
		HeaderMap:  getHeadersToCache(response.Header, whitelistedHeaders),
		Body:       body,
	}
}

// IsCacheable returns true only for 200 OK responses. Errors, redirects
// and 204s are always fetched from the backend.
func (r *QueryResponse) IsCacheable() bool {
	return r != nil && r.StatusCode == http.StatusOK
}

// Header returns HeaderMap as an http.Header
func (r *QueryResponse) Header() http.Header {
	header := make(http.Header, len(r.HeaderMap))
	for name, value := range r.HeaderMap {
		header.Set(name, value)
	}

	return header
}

// ToSubResponse converts the cached value back into a sub-response
func (r *QueryResponse) ToSubResponse() *batch.SubResponse {
	return batch.NewSubResponse(r.StatusCode, r.Reason, r.Header(), bytes.NewReader(r.Body))
}

// getHeadersToCache gets the header map which has to be cached along with the body
func getHeadersToCache(header http.Header, whitelistedHeaders []string) map[string]string {
	headersToCache := make(map[string]string, 0)

	for _, headerName := range whitelistedHeaders {
		headerValue := header.Get(headerName)
		if headerValue == "" {
			continue
		}

		headersToCache[http.CanonicalHeaderKey(headerName)] = headerValue
	}

	return headersToCache
}
