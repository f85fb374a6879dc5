package batch

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/kava-labs/odata-batch-proxy/logging"
)

type writerState int

const (
	writerIdle writerState = iota
	writerItemOpen
	writerClosed
)

// itemWriter is implemented by the item kinds a Writer can open
type itemWriter interface {
	close() error
}

// Writer assembles a batch request body on a sink.
//
// Only one item is open at a time: opening an item closes the previous one.
// A Writer is not safe for concurrent use.
type Writer struct {
	sink     io.WriteCloser
	boundary string
	state    writerState
	current  itemWriter
	expected []*ExpectedItem

	logger *logging.ServiceLogger
}

// NewWriter creates a Writer with a fresh batch boundary.
// logger may be nil.
func NewWriter(sink io.WriteCloser, logger *logging.ServiceLogger) *Writer {
	return &Writer{
		sink:     sink,
		boundary: BatchBoundaryPrefix + uuid.New().String(),
		state:    writerIdle,
		logger:   logging.OrNop(logger),
	}
}

// Boundary returns the envelope boundary, without the leading dashes.
func (w *Writer) Boundary() string {
	return w.boundary
}

// ContentType returns the Content-Type the batch request must be sent with.
func (w *Writer) ContentType() string {
	return ContentTypeMultipartMixed + "; boundary=" + w.boundary
}

// ExpectedItems returns the items written so far, in order. The list is
// what a ResponseDemultiplexer replays against the batch response.
func (w *Writer) ExpectedItems() []*ExpectedItem {
	items := make([]*ExpectedItem, len(w.expected))
	copy(items, w.expected)
	return items
}

// OpenRetrieve closes the open item, if any, and starts a retrieve item.
// Nothing is written for the item until its request is set, so a retrieve
// item closed without a request leaves no trace in the batch.
func (w *Writer) OpenRetrieve() (*RetrieveItemWriter, error) {
	if err := w.beginItem(); err != nil {
		return nil, err
	}

	item := &RetrieveItemWriter{
		batch: w,
	}

	w.current = item
	w.state = writerItemOpen

	return item, nil
}

// OpenChangeset closes the open item, if any, and starts a changeset item.
func (w *Writer) OpenChangeset() (*ChangesetItemWriter, error) {
	if err := w.beginItem(); err != nil {
		return nil, err
	}

	if err := w.writePreamble(); err != nil {
		return nil, err
	}

	expected := newExpectedItem(KindChangeset)
	item := &ChangesetItemWriter{
		batch:    w,
		expected: expected,
		boundary: ChangesetBoundaryPrefix + uuid.New().String(),
	}

	w.register(item, expected)

	return item, nil
}

// Close closes the open item, writes the envelope close delimiter and closes
// the sink. Calling Close again does nothing.
func (w *Writer) Close() error {
	if w.state == writerClosed {
		return nil
	}

	err := w.closeCurrent()
	w.state = writerClosed

	if err == nil {
		w.logger.Trace().Str("boundary", w.boundary).Msg("writing batch close delimiter")
		err = w.writeString(CRLF + DashDash + w.boundary + DashDash + CRLF)
	}

	if closeErr := w.sink.Close(); closeErr != nil && err == nil {
		err = newIOError("close", closeErr)
	}

	return err
}

// beginItem closes the open item before a new one is opened
func (w *Writer) beginItem() error {
	if w.state == writerClosed {
		return fmt.Errorf("%w: batch writer is closed", ErrInvalidOperation)
	}

	return w.closeCurrent()
}

// writePreamble writes the dash boundary that starts an item
func (w *Writer) writePreamble() error {
	w.logger.Trace().Str("boundary", w.boundary).Int("item", len(w.expected)+1).Msg("opening batch item")

	return w.writeString(CRLF + DashDash + w.boundary + CRLF)
}

func (w *Writer) register(item itemWriter, expected *ExpectedItem) {
	w.current = item
	w.expected = append(w.expected, expected)
	w.state = writerItemOpen
}

func (w *Writer) closeCurrent() error {
	if w.current == nil {
		return nil
	}

	err := w.current.close()
	w.current = nil
	w.state = writerIdle

	return err
}

func (w *Writer) closeItem(item itemWriter) error {
	if w.current != item {
		return item.close()
	}

	return w.closeCurrent()
}

func (w *Writer) write(p []byte) error {
	if _, err := w.sink.Write(p); err != nil {
		return newIOError("write", err)
	}

	return nil
}

func (w *Writer) writeString(s string) error {
	return w.write([]byte(s))
}

// RetrieveItemWriter is a retrieve item of a batch. It carries exactly one GET request.
type RetrieveItemWriter struct {
	batch   *Writer
	written bool
	closed  bool
}

// SetRequest writes the item's preamble, part headers and the rendered
// request, registers the item for the response, then closes the item.
func (r *RetrieveItemWriter) SetRequest(req SubRequest) error {
	if r.closed {
		return fmt.Errorf("%w: retrieve item is closed", ErrInvalidOperation)
	}

	if req.Method() != http.MethodGet {
		return fmt.Errorf("%w: retrieve item only accepts GET, got %s", ErrInvalidOperation, req.Method())
	}

	rendered, err := req.Render()
	if err != nil {
		return err
	}

	if err := r.batch.writePreamble(); err != nil {
		return err
	}

	buf := new(bytes.Buffer)
	writePartHeaders(buf, "")
	buf.Write(rendered)

	if err := r.batch.write(buf.Bytes()); err != nil {
		return err
	}

	r.written = true

	expected := newExpectedItem(KindRetrieve)
	expected.register(RetrieveSlotKey)
	r.batch.expected = append(r.batch.expected, expected)

	return r.batch.closeItem(r)
}

func (r *RetrieveItemWriter) close() error {
	if r.closed {
		return nil
	}
	r.closed = true

	if !r.written {
		r.batch.logger.Warn().Msg("closing retrieve item without a request, item dropped from batch")
	}

	return nil
}

// ChangesetItemWriter is a changeset item of a batch: an atomic group of
// non-GET operations framed by their own boundary.
type ChangesetItemWriter struct {
	batch         *Writer
	expected      *ExpectedItem
	boundary      string
	lastContentID int
	started       bool
	closed        bool
}

// Boundary returns the changeset boundary, without the leading dashes.
func (cs *ChangesetItemWriter) Boundary() string {
	return cs.boundary
}

// AddRequest writes req as the next operation of the changeset and returns
// the Content-ID assigned to it. Content-IDs start at 1 in every changeset.
func (cs *ChangesetItemWriter) AddRequest(req SubRequest) (int, error) {
	if cs.closed {
		return 0, fmt.Errorf("%w: changeset item is closed", ErrInvalidOperation)
	}

	if req.Method() == http.MethodGet {
		return 0, fmt.Errorf("%w: changeset does not accept GET", ErrInvalidOperation)
	}

	rendered, err := req.Render()
	if err != nil {
		return 0, err
	}

	buf := new(bytes.Buffer)

	if !cs.started {
		buf.WriteString(HeaderContentType + ": " + ContentTypeMultipartMixed + "; boundary=" + cs.boundary + CRLF)
		buf.WriteString(CRLF)
	}

	contentID := cs.lastContentID + 1

	buf.WriteString(CRLF + DashDash + cs.boundary + CRLF)
	writePartHeaders(buf, strconv.Itoa(contentID))
	buf.Write(rendered)

	if err := cs.batch.write(buf.Bytes()); err != nil {
		return 0, err
	}

	cs.started = true
	cs.lastContentID = contentID
	cs.expected.register(strconv.Itoa(contentID))

	cs.batch.logger.Trace().
		Str("boundary", cs.boundary).
		Int("content_id", contentID).
		Str("method", req.Method()).
		Msg("added changeset request")

	return contentID, nil
}

func (cs *ChangesetItemWriter) close() error {
	if cs.closed {
		return nil
	}
	cs.closed = true

	if !cs.started {
		cs.batch.logger.Warn().Str("boundary", cs.boundary).Msg("closing empty changeset")
		return nil
	}

	return cs.batch.writeString(CRLF + DashDash + cs.boundary + DashDash + CRLF)
}

// writePartHeaders writes the MIME headers of an application/http part
func writePartHeaders(buf *bytes.Buffer, contentID string) {
	buf.WriteString(HeaderContentType + ": " + ContentTypeApplicationHTTP + CRLF)
	buf.WriteString(HeaderContentTransferEncoding + ": " + TransferEncodingBinary + CRLF)
	if contentID != "" {
		buf.WriteString(HeaderContentID + ": " + contentID + CRLF)
	}
	buf.WriteString(CRLF)
}
