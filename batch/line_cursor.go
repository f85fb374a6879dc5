package batch

import (
	"bufio"
	"errors"
	"io"
	"strings"
	"sync"
)

// LineCursor is a forward-only cursor over the lines of a batch response body.
//
// Lines are returned without their CRLF (or bare LF) terminator. The last
// line returned is kept as the current line, together with the terminator it
// was read with, so part bodies can be copied back byte for byte.
//
// A single cursor is shared by every item of a response. Each scanner
// operation (skipping to a boundary, reading a header block, reading a
// status line) holds the cursor's lock for its whole duration, so one
// operation can never interleave with another.
type LineCursor struct {
	mu sync.Mutex

	reader     *bufio.Reader
	current    string
	currentEOL string
	hasCurrent bool
	err        error
}

// NewLineCursor creates a LineCursor reading from r.
func NewLineCursor(r io.Reader) *LineCursor {
	br, ok := r.(*bufio.Reader)
	if !ok {
		br = bufio.NewReader(r)
	}

	return &LineCursor{
		reader: br,
	}
}

// HasNext reports whether another line can be read.
func (c *LineCursor) HasNext() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.hasNext()
}

// NextLine reads and returns the next line, making it the current line.
// It returns ErrEndOfStream once the stream is drained.
func (c *LineCursor) NextLine() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.nextLine()
}

// Current returns the last line returned by the cursor. ok is false
// before the first line has been read.
func (c *LineCursor) Current() (line string, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.current, c.hasCurrent
}

// Err returns the read error that stopped the cursor, if it was anything
// other than the end of the stream.
func (c *LineCursor) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.readErr()
}

// exclusive runs fn while holding the cursor lock.
// fn must only use the unexported, non-locking methods.
func (c *LineCursor) exclusive(fn func() error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return fn()
}

func (c *LineCursor) hasNext() bool {
	if c.err != nil {
		return false
	}

	if _, err := c.reader.Peek(1); err != nil {
		c.err = err
		return false
	}

	return true
}

func (c *LineCursor) nextLine() (string, error) {
	if c.err != nil {
		return "", c.endError()
	}

	line, err := c.reader.ReadString('\n')
	if err != nil {
		c.err = err
		// a final line without terminator is still a line
		if len(line) == 0 {
			return "", c.endError()
		}
	}

	content := line
	if strings.HasSuffix(content, "\n") {
		content = strings.TrimSuffix(content[:len(content)-1], "\r")
	}

	c.current = content
	c.currentEOL = line[len(content):]
	c.hasCurrent = true

	return content, nil
}

func (c *LineCursor) currentLine() (string, bool) {
	return c.current, c.hasCurrent
}

// currentTerminator returns the line ending stripped from the current line:
// "\r\n", "\n", or "" for a final unterminated line.
func (c *LineCursor) currentTerminator() string {
	return c.currentEOL
}

func (c *LineCursor) readErr() error {
	if c.err == nil || errors.Is(c.err, io.EOF) {
		return nil
	}

	return newIOError("read", c.err)
}

func (c *LineCursor) endError() error {
	if errors.Is(c.err, io.EOF) {
		return ErrEndOfStream
	}

	return newIOError("read", c.err)
}
