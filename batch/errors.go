package batch

import (
	"errors"
	"fmt"
)

// Errors returned while writing a batch request or reading a batch
// response. They are wrapped with detail via fmt.Errorf, so callers
// should match them with errors.Is.
var (
	// ErrInvalidOperation is returned on protocol sequence misuse: the wrong
	// method for an item kind, writing or reading after close, or asking an
	// item for more results than it holds.
	ErrInvalidOperation = errors.New("invalid batch operation")
	// ErrInvalidContentType is returned when a Content-Type header carries no boundary parameter.
	ErrInvalidContentType = errors.New("invalid multipart content type")
	// ErrInvalidResponseLine is returned when a part does not start with an HTTP status line.
	ErrInvalidResponseLine = errors.New("invalid response status line")
	// ErrUnexpectedItemKind is returned when the response structure disagrees
	// with the structure recorded while writing the request.
	ErrUnexpectedItemKind = errors.New("unexpected batch item kind")
	// ErrMissingContentID is returned when a changeset response part carries no Content-ID.
	ErrMissingContentID = errors.New("missing content id")
	// ErrUnknownContentID is returned when a changeset response part names a
	// Content-ID that was never sent.
	ErrUnknownContentID = errors.New("unknown content id")
	// ErrNoMoreItems signals that iteration is exhausted.
	ErrNoMoreItems = errors.New("no more batch items")
	// ErrEndOfStream is returned by LineCursor.NextLine once the stream is drained.
	ErrEndOfStream = errors.New("end of batch stream")
)

// IOError wraps a failure of the underlying request sink or response stream.
//
// The batch is unusable once an IOError has been returned.
type IOError struct {
	Op  string // read, write or close
	Err error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("batch i/o error during %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for error chain inspection
func (e *IOError) Unwrap() error {
	return e.Err
}

func newIOError(op string, err error) error {
	if err == nil {
		return nil
	}

	var ioErr *IOError
	if errors.As(err, &ioErr) {
		return err
	}

	return &IOError{Op: op, Err: err}
}
