package batch

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"sync"
)

// SubResponse is the response to a single operation of a batch.
type SubResponse struct {
	StatusCode int
	Reason     string
	Header     http.Header
	Body       io.ReadCloser
	// ContentID is set for responses to changeset operations
	ContentID string

	closeOnce sync.Once
	closeErr  error
}

// NewSubResponse creates a SubResponse from a parsed status line, header
// block and body. A nil body is treated as empty.
func NewSubResponse(code int, reason string, header http.Header, body io.Reader) *SubResponse {
	if header == nil {
		header = make(http.Header)
	}

	var rc io.ReadCloser
	switch b := body.(type) {
	case nil:
		rc = io.NopCloser(bytes.NewReader(nil))
	case io.ReadCloser:
		rc = b
	default:
		rc = io.NopCloser(b)
	}

	return &SubResponse{
		StatusCode: code,
		Reason:     reason,
		Header:     header,
		Body:       rc,
	}
}

// IsFailure reports whether the status code is 400 or more.
func (r *SubResponse) IsFailure() bool {
	return r.StatusCode >= http.StatusBadRequest
}

// Close releases the response body. It is safe to call more than once.
func (r *SubResponse) Close() error {
	r.closeOnce.Do(func() {
		if r.Body != nil {
			r.closeErr = r.Body.Close()
		}
	})

	return r.closeErr
}

// SubResponseSlot holds the response of one written operation.
// It is filled exactly once, when the matching part is read.
type SubResponseSlot struct {
	mu       sync.Mutex
	response *SubResponse
}

// Response returns the response held by the slot. ok is false until the slot is filled.
func (s *SubResponseSlot) Response() (response *SubResponse, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.response, s.response != nil
}

func (s *SubResponseSlot) fill(response *SubResponse) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.response != nil {
		return fmt.Errorf("%w: response slot already filled", ErrInvalidOperation)
	}

	s.response = response
	return nil
}

func (s *SubResponseSlot) close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.response == nil {
		return nil
	}

	return s.response.Close()
}

// ExpectedItem records one item written to a batch request: its kind and
// one slot per operation. Retrieve items have a single slot keyed by
// RetrieveSlotKey, changeset items have one slot per Content-ID.
type ExpectedItem struct {
	kind       ItemKind
	contentIDs []string
	slots      map[string]*SubResponseSlot
}

func newExpectedItem(kind ItemKind) *ExpectedItem {
	return &ExpectedItem{
		kind:  kind,
		slots: make(map[string]*SubResponseSlot),
	}
}

// Kind returns the kind of the written item.
func (e *ExpectedItem) Kind() ItemKind {
	return e.kind
}

// ContentIDs returns the slot keys in the order the operations were written.
func (e *ExpectedItem) ContentIDs() []string {
	ids := make([]string, len(e.contentIDs))
	copy(ids, e.contentIDs)
	return ids
}

// Slot returns the slot registered under id.
func (e *ExpectedItem) Slot(id string) (*SubResponseSlot, bool) {
	slot, ok := e.slots[id]
	return slot, ok
}

// Responses returns the filled slots in written order.
func (e *ExpectedItem) Responses() []*SubResponse {
	responses := make([]*SubResponse, 0, len(e.contentIDs))
	for _, id := range e.contentIDs {
		if response, ok := e.slots[id].Response(); ok {
			responses = append(responses, response)
		}
	}

	return responses
}

func (e *ExpectedItem) register(id string) *SubResponseSlot {
	slot := &SubResponseSlot{}
	e.slots[id] = slot
	e.contentIDs = append(e.contentIDs, id)
	return slot
}

func (e *ExpectedItem) close() error {
	var firstErr error
	for _, id := range e.contentIDs {
		if err := e.slots[id].close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}
