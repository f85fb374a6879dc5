package batch

import (
	"fmt"
	"net/http"

	"github.com/kava-labs/odata-batch-proxy/logging"
)

// ResponseDemultiplexer splits a batch response into ResponseItems.
//
// It replays the ExpectedItems recorded while the request was written and,
// for each, reads exactly one part of the response, failing with
// ErrUnexpectedItemKind when the part's kind differs from what was written.
type ResponseDemultiplexer struct {
	response *http.Response
	cursor   *LineCursor
	boundary string
	expected []*ExpectedItem
	logger   *logging.ServiceLogger

	current ResponseItem
	closed  bool
	err     error
}

// NewResponseDemultiplexer creates a ResponseDemultiplexer over response.
// The envelope boundary is taken from the response Content-Type.
// On success the demultiplexer owns the response body; Close releases it.
func NewResponseDemultiplexer(response *http.Response, expected []*ExpectedItem, logger *logging.ServiceLogger) (*ResponseDemultiplexer, error) {
	if response == nil || response.Body == nil {
		return nil, fmt.Errorf("%w: response has no body", ErrInvalidOperation)
	}

	boundary, err := BoundaryFromContentType(response.Header.Values(HeaderContentType))
	if err != nil {
		return nil, err
	}

	items := make([]*ExpectedItem, len(expected))
	copy(items, expected)

	return &ResponseDemultiplexer{
		response: response,
		cursor:   NewLineCursor(response.Body),
		boundary: boundary,
		expected: items,
		logger:   logging.OrNop(logger),
	}, nil
}

// StatusCode returns the status code of the batch response itself.
func (d *ResponseDemultiplexer) StatusCode() int {
	return d.response.StatusCode
}

// Boundary returns the envelope boundary, including the leading dashes.
func (d *ResponseDemultiplexer) Boundary() string {
	return d.boundary
}

// HasNext reports whether expected items remain.
func (d *ResponseDemultiplexer) HasNext() bool {
	return !d.closed && len(d.expected) > 0
}

// Next closes the previously returned item and returns the next one.
// It fails with ErrNoMoreItems once every expected item has been returned.
func (d *ResponseDemultiplexer) Next() (ResponseItem, error) {
	if d.closed {
		return nil, fmt.Errorf("%w: batch response is closed", ErrInvalidOperation)
	}

	if err := d.closeCurrent(); err != nil {
		return nil, err
	}

	if d.err != nil {
		return nil, d.err
	}

	if len(d.expected) == 0 {
		return nil, ErrNoMoreItems
	}

	expected := d.expected[0]
	d.expected = d.expected[1:]

	item, err := d.nextItem(expected)
	if err != nil {
		d.err = err
		return nil, err
	}

	d.current = item

	return item, nil
}

// Close closes the current item and the response body.
// It is safe to call more than once.
func (d *ResponseDemultiplexer) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true

	err := d.closeCurrent()

	if closeErr := d.response.Body.Close(); closeErr != nil && err == nil {
		err = newIOError("close", closeErr)
	}

	return err
}

func (d *ResponseDemultiplexer) nextItem(expected *ExpectedItem) (ResponseItem, error) {
	header, err := NextItemHeaders(d.cursor, d.boundary)
	if err != nil {
		return nil, err
	}

	kind := ClassifyItem(header)
	if kind != expected.Kind() {
		return nil, fmt.Errorf("%w: expected %s item, found %s", ErrUnexpectedItemKind, expected.Kind(), kind)
	}

	d.logger.Trace().Str("kind", kind.String()).Msg("reading batch item")

	switch kind {
	case KindRetrieve:
		return newRetrieveResult(d.cursor, d.boundary, expected, d.logger), nil
	case KindChangeset:
		boundary, err := BoundaryFromContentType(header.Values(HeaderContentType))
		if err != nil {
			return nil, err
		}
		return newChangesetResult(d.cursor, boundary, expected, d.logger), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnexpectedItemKind, kind)
	}
}

func (d *ResponseDemultiplexer) closeCurrent() error {
	if d.current == nil {
		return nil
	}

	err := d.current.Close()
	d.current = nil

	return err
}
