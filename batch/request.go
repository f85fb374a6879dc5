package batch

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
)

// SubRequest is a single operation carried inside a batch.
type SubRequest interface {
	// Method is the HTTP method of the operation
	Method() string
	// Render returns the operation as raw HTTP: request line, headers,
	// blank line and body, CRLF terminated.
	Render() ([]byte, error)
}

// Operation is a SubRequest built from its parts.
// URL is written as-is on the request line and is normally relative to the
// OData service root, e.g. "Products(1)".
type Operation struct {
	method string
	URL    string
	Header http.Header
	Body   []byte
}

var _ SubRequest = (*Operation)(nil)

// NewOperation creates a new Operation. header may be nil.
func NewOperation(method string, url string, header http.Header, body []byte) *Operation {
	if header == nil {
		header = make(http.Header)
	}

	return &Operation{
		method: strings.ToUpper(method),
		URL:    url,
		Header: header,
		Body:   body,
	}
}

// OperationFromHTTPRequest adapts a standard library request. The request
// body is drained and closed.
func OperationFromHTTPRequest(r *http.Request) (*Operation, error) {
	var body []byte

	if r.Body != nil {
		defer r.Body.Close()

		var err error
		body, err = io.ReadAll(r.Body)
		if err != nil {
			return nil, newIOError("read", err)
		}
	}

	target := r.RequestURI
	if target == "" && r.URL != nil {
		target = r.URL.RequestURI()
	}

	return NewOperation(r.Method, target, r.Header.Clone(), body), nil
}

// Method implements SubRequest.
func (op *Operation) Method() string {
	return op.method
}

// Render implements SubRequest.
// Headers are written sorted by name so the output is stable.
func (op *Operation) Render() ([]byte, error) {
	if op.method == "" {
		return nil, fmt.Errorf("%w: operation has no method", ErrInvalidOperation)
	}
	if op.URL == "" {
		return nil, fmt.Errorf("%w: operation has no url", ErrInvalidOperation)
	}

	buf := new(bytes.Buffer)

	buf.WriteString(op.method)
	buf.WriteByte(' ')
	buf.WriteString(op.URL)
	buf.WriteByte(' ')
	buf.WriteString(HTTPVersion)
	buf.WriteString(CRLF)

	names := make([]string, 0, len(op.Header))
	for name := range op.Header {
		if http.CanonicalHeaderKey(name) == HeaderContentLength {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		for _, value := range op.Header[name] {
			buf.WriteString(name)
			buf.WriteString(": ")
			buf.WriteString(value)
			buf.WriteString(CRLF)
		}
	}

	if len(op.Body) > 0 {
		buf.WriteString(HeaderContentLength)
		buf.WriteString(": ")
		buf.WriteString(strconv.Itoa(len(op.Body)))
		buf.WriteString(CRLF)
	}

	buf.WriteString(CRLF)

	if len(op.Body) > 0 {
		buf.Write(op.Body)
		buf.WriteString(CRLF)
	}

	return buf.Bytes(), nil
}
