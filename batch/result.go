package batch

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/kava-labs/odata-batch-proxy/logging"
)

// ResponseItem is one item of a batch response: a *RetrieveResult or a
// *ChangesetResult. Use a type switch or Kind to tell them apart.
type ResponseItem interface {
	// Kind returns KindRetrieve or KindChangeset
	Kind() ItemKind
	// HasNext reports whether Next can yield another sub-response
	HasNext() bool
	// Next reads the next sub-response from the stream
	Next() (*SubResponse, error)
	// Close releases every sub-response read by the item
	Close() error

	responseItem()
}

var (
	_ ResponseItem = (*RetrieveResult)(nil)
	_ ResponseItem = (*ChangesetResult)(nil)
)

// RetrieveResult is the response to a retrieve item. It yields exactly one sub-response.
type RetrieveResult struct {
	cursor   *LineCursor
	boundary string
	expected *ExpectedItem
	logger   *logging.ServiceLogger

	done   bool
	closed bool
	err    error
}

func newRetrieveResult(cursor *LineCursor, boundary string, expected *ExpectedItem, logger *logging.ServiceLogger) *RetrieveResult {
	return &RetrieveResult{
		cursor:   cursor,
		boundary: boundary,
		expected: expected,
		logger:   logger,
	}
}

func (r *RetrieveResult) responseItem() {}

// Kind implements ResponseItem.
func (r *RetrieveResult) Kind() ItemKind {
	return KindRetrieve
}

// HasNext implements ResponseItem.
func (r *RetrieveResult) HasNext() bool {
	return !r.closed && !r.done
}

// Next implements ResponseItem. A second call fails with ErrNoMoreItems.
func (r *RetrieveResult) Next() (*SubResponse, error) {
	if r.closed {
		return nil, fmt.Errorf("%w: retrieve result is closed", ErrInvalidOperation)
	}
	if r.err != nil {
		return nil, r.err
	}
	if r.done {
		return nil, ErrNoMoreItems
	}
	r.done = true

	var response *SubResponse
	err := r.cursor.exclusive(func() error {
		var err error
		response, err = readSubResponse(r.cursor, r.boundary)
		return err
	})
	if err != nil {
		r.err = err
		return nil, err
	}

	slot, _ := r.expected.Slot(RetrieveSlotKey)
	if err := slot.fill(response); err != nil {
		r.err = err
		return nil, err
	}

	r.logger.Trace().Int("status", response.StatusCode).Msg("read retrieve response")

	return response, nil
}

// Close implements ResponseItem. It is safe to call more than once.
func (r *RetrieveResult) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true

	return r.expected.close()
}

// ChangesetResult is the response to a changeset item. It yields one
// sub-response per operation of the changeset, matched by Content-ID.
//
// Once a sub-response with a status of 400 or more has been read, the
// remaining operations are given up on without reading further parts.
type ChangesetResult struct {
	cursor    *LineCursor
	boundary  string
	expected  *ExpectedItem
	remaining int
	logger    *logging.ServiceLogger

	breaking bool
	closed   bool
	err      error
}

func newChangesetResult(cursor *LineCursor, boundary string, expected *ExpectedItem, logger *logging.ServiceLogger) *ChangesetResult {
	return &ChangesetResult{
		cursor:    cursor,
		boundary:  boundary,
		expected:  expected,
		remaining: len(expected.contentIDs),
		logger:    logger,
	}
}

func (cs *ChangesetResult) responseItem() {}

// Kind implements ResponseItem.
func (cs *ChangesetResult) Kind() ItemKind {
	return KindChangeset
}

// HasNext implements ResponseItem.
func (cs *ChangesetResult) HasNext() bool {
	return !cs.closed && !cs.breaking && cs.remaining > 0
}

// Broken reports whether the changeset stopped early on a failed sub-response.
func (cs *ChangesetResult) Broken() bool {
	return cs.breaking
}

// Next implements ResponseItem.
func (cs *ChangesetResult) Next() (*SubResponse, error) {
	if cs.closed {
		return nil, fmt.Errorf("%w: changeset result is closed", ErrInvalidOperation)
	}
	if cs.err != nil {
		return nil, cs.err
	}
	if !cs.HasNext() {
		return nil, ErrNoMoreItems
	}
	cs.remaining--

	var response *SubResponse
	err := cs.cursor.exclusive(func() error {
		partHeader, err := nextItemHeaders(cs.cursor, cs.boundary)
		if err != nil {
			return err
		}
		if len(partHeader) == 0 {
			return fmt.Errorf("%w: changeset part expected but not found", ErrUnexpectedItemKind)
		}

		response, err = readSubResponse(cs.cursor, cs.boundary)
		if err != nil {
			return err
		}

		contentID, ok := ContentID(response.Header)
		if !ok {
			contentID, ok = ContentID(partHeader)
		}
		if !ok {
			return ErrMissingContentID
		}

		slot, ok := cs.expected.Slot(contentID)
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownContentID, contentID)
		}

		response.ContentID = contentID
		return slot.fill(response)
	})
	if err != nil {
		cs.err = err
		return nil, err
	}

	if response.IsFailure() {
		cs.breaking = true

		cs.logger.Debug().
			Str("content_id", response.ContentID).
			Int("status", response.StatusCode).
			Int("skipped", cs.remaining).
			Msg("changeset failed, skipping remaining sub-responses")
	}

	return response, nil
}

// Close implements ResponseItem. It is safe to call more than once.
func (cs *ChangesetResult) Close() error {
	if cs.closed {
		return nil
	}
	cs.closed = true

	return cs.expected.close()
}

// readSubResponse reads a status line, a header block and the body up to
// boundary. The caller must hold the cursor lock.
func readSubResponse(c *LineCursor, boundary string) (*SubResponse, error) {
	code, reason, err := readStatusLine(c)
	if err != nil {
		return nil, err
	}

	header, err := readHeaders(c)
	if err != nil {
		return nil, err
	}

	body := new(bytes.Buffer)
	if _, err := skipToBoundary(c, boundary, false, newLineCopier(body).write); err != nil {
		return nil, err
	}

	return NewSubResponse(code, reason, header, newBufferedBody(body.Bytes())), nil
}

// bufferedBody is a sub-response body read ahead of the shared cursor.
// Reading after Close fails.
type bufferedBody struct {
	mu     sync.Mutex
	reader *bytes.Reader
}

func newBufferedBody(p []byte) *bufferedBody {
	return &bufferedBody{reader: bytes.NewReader(p)}
}

func (b *bufferedBody) Read(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.reader == nil {
		return 0, fmt.Errorf("%w: body is closed", ErrInvalidOperation)
	}

	return b.reader.Read(p)
}

func (b *bufferedBody) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.reader = nil
	return nil
}
