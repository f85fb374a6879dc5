// Package odatatest provides a fake OData $batch endpoint for tests.
//
// The fake parses incoming batches with the standard library's MIME reader,
// independently of the batch package, and answers every operation through
// a caller supplied Handler.
package odatatest

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"sync"
)

// Operation is one request parsed out of a batch
type Operation struct {
	Method    string
	URL       string
	Header    http.Header
	Body      []byte
	ContentID string
	// Changeset is the index of the enclosing changeset within the batch, or -1
	Changeset int
}

// Result is the answer to one Operation
type Result struct {
	StatusCode int
	Header     http.Header
	Body       string
}

// Handler answers a single operation
type Handler func(op Operation) Result

// OK answers every operation with 200 and a small JSON body naming the operation
func OK(op Operation) Result {
	return Result{
		StatusCode: http.StatusOK,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       fmt.Sprintf(`{"method":%q,"url":%q}`, op.Method, op.URL),
	}
}

// Backend is a fake OData service exposing a $batch endpoint at /$batch
type Backend struct {
	*httptest.Server

	handler Handler

	mu          sync.Mutex
	batches     int
	operations  []Operation
	batchStatus int
}

// NewBackend starts a Backend answering operations with handler
func NewBackend(handler Handler) *Backend {
	backend := &Backend{handler: handler}
	backend.Server = httptest.NewServer(http.HandlerFunc(backend.serveBatch))
	return backend
}

// FailBatches makes the backend reject whole batches with status
func (b *Backend) FailBatches(status int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.batchStatus = status
}

// BatchCount returns the number of batch requests received
func (b *Backend) BatchCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.batches
}

// Operations returns every operation received, in order
func (b *Backend) Operations() []Operation {
	b.mu.Lock()
	defer b.mu.Unlock()

	operations := make([]Operation, len(b.operations))
	copy(operations, b.operations)
	return operations
}

func (b *Backend) serveBatch(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	b.batches++
	batchStatus := b.batchStatus
	b.mu.Unlock()

	if r.Method != http.MethodPost || !strings.HasSuffix(r.URL.Path, "/$batch") {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}

	if batchStatus != 0 {
		io.Copy(io.Discard, r.Body)
		http.Error(w, "batch rejected", batchStatus)
		return
	}

	boundary, err := boundaryOf(r.Header.Get("Content-Type"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	responseBoundary := fmt.Sprintf("batchresponse_%d", b.BatchCount())
	out := new(bytes.Buffer)

	reader := multipart.NewReader(r.Body, boundary)
	changesetIndex := 0
	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		contentType := part.Header.Get("Content-Type")
		switch {
		case strings.HasPrefix(contentType, "application/http"):
			op, err := readOperation(part)
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			op.Changeset = -1

			b.record(op)
			writeResponsePart(out, responseBoundary, "", b.handler(op))

		case strings.HasPrefix(contentType, "multipart/mixed"):
			changesetBoundary, err := boundaryOf(contentType)
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}

			if err := b.serveChangeset(out, responseBoundary, changesetIndex, multipart.NewReader(part, changesetBoundary)); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			changesetIndex++

		default:
			http.Error(w, "unexpected part content type "+contentType, http.StatusBadRequest)
			return
		}
	}

	fmt.Fprintf(out, "--%s--\r\n", responseBoundary)

	w.Header().Set("Content-Type", "multipart/mixed; boundary="+responseBoundary)
	w.WriteHeader(http.StatusAccepted)
	w.Write(out.Bytes())
}

// serveChangeset answers a changeset, stopping at the first failed operation
func (b *Backend) serveChangeset(out *bytes.Buffer, responseBoundary string, index int, reader *multipart.Reader) error {
	changesetBoundary := fmt.Sprintf("changesetresponse_%d", index)
	nested := new(bytes.Buffer)
	failed := false

	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}

		op, err := readOperation(part)
		if err != nil {
			return err
		}
		op.ContentID = part.Header.Get("Content-ID")
		op.Changeset = index

		if failed {
			continue
		}

		b.record(op)
		result := b.handler(op)
		writeResponsePart(nested, changesetBoundary, op.ContentID, result)

		failed = result.StatusCode >= http.StatusBadRequest
	}

	fmt.Fprintf(out, "--%s\r\n", responseBoundary)
	fmt.Fprintf(out, "Content-Type: multipart/mixed; boundary=%s\r\n\r\n", changesetBoundary)
	out.Write(nested.Bytes())
	fmt.Fprintf(out, "--%s--\r\n", changesetBoundary)

	return nil
}

func (b *Backend) record(op Operation) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.operations = append(b.operations, op)
}

func boundaryOf(contentType string) (string, error) {
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return "", err
	}
	if mediaType != "multipart/mixed" || params["boundary"] == "" {
		return "", fmt.Errorf("expected multipart/mixed with a boundary, got %q", contentType)
	}
	return params["boundary"], nil
}

// readOperation parses an application/http part. Batch operations may carry
// urls relative to the service root, which http.ReadRequest rejects.
func readOperation(part io.Reader) (Operation, error) {
	reader := textproto.NewReader(bufio.NewReader(part))

	requestLine, err := reader.ReadLine()
	if err != nil {
		return Operation{}, err
	}

	fields := strings.Fields(requestLine)
	if len(fields) != 3 {
		return Operation{}, fmt.Errorf("malformed request line %q", requestLine)
	}

	header, err := reader.ReadMIMEHeader()
	if err != nil && err != io.EOF {
		return Operation{}, err
	}

	body, err := io.ReadAll(reader.R)
	if err != nil {
		return Operation{}, err
	}

	return Operation{
		Method: fields[0],
		URL:    fields[1],
		Header: http.Header(header),
		Body:   bytes.TrimSuffix(body, []byte("\r\n")),
	}, nil
}

func writeResponsePart(out *bytes.Buffer, boundary string, contentID string, result Result) {
	fmt.Fprintf(out, "--%s\r\n", boundary)
	out.WriteString("Content-Type: application/http\r\n")
	out.WriteString("Content-Transfer-Encoding: binary\r\n")
	if contentID != "" {
		fmt.Fprintf(out, "Content-ID: %s\r\n", contentID)
	}
	out.WriteString("\r\n")

	fmt.Fprintf(out, "HTTP/1.1 %d %s\r\n", result.StatusCode, http.StatusText(result.StatusCode))
	for name, values := range result.Header {
		for _, value := range values {
			fmt.Fprintf(out, "%s: %s\r\n", name, value)
		}
	}
	out.WriteString("\r\n")
	out.WriteString(result.Body)
	out.WriteString("\r\n")
}
