package batch

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"
)

var (
	statusLinePattern = regexp.MustCompile(`(?i)^HTTP/(\d+)\.(\d+)\s+(\d{3})(?:\s+(.*))?$`)
	boundaryPattern   = regexp.MustCompile(`(?i)(?:^|[;\s])boundary\s*=\s*("[^"]*"|[^;\s]+)`)
)

// SkipToBoundary advances c until it reads a line starting with boundary and
// returns that line. With an empty boundary it stops at the first blank line.
//
// When includeCurrent is true the cursor's current line is examined first, so
// a boundary that was already read by a previous operation is honoured.
//
// Lines passed over are copied to out (if non-nil) with the line endings they
// were read with, except the one in front of the terminating line, which
// belongs to the delimiter. The terminating line is not copied. Reaching the end of the stream is not an
// error: the last line read is returned.
func SkipToBoundary(c *LineCursor, boundary string, includeCurrent bool, out io.Writer) (string, error) {
	var last string

	err := c.exclusive(func() error {
		var err error
		last, err = skipToBoundary(c, boundary, includeCurrent, newLineCopier(out).write)
		return err
	})

	return last, err
}

// ReadHeaders reads a header block ending with a blank line. Header names are
// case-insensitive and repeated names accumulate distinct values.
func ReadHeaders(c *LineCursor) (http.Header, error) {
	var header http.Header

	err := c.exclusive(func() error {
		var err error
		header, err = readHeaders(c)
		return err
	})

	return header, err
}

// BoundaryFromContentType extracts the boundary parameter from the given
// Content-Type header values. The result always starts with "--".
func BoundaryFromContentType(values []string) (string, error) {
	for _, value := range values {
		match := boundaryPattern.FindStringSubmatch(value)
		if match == nil {
			continue
		}

		boundary := strings.Trim(match[1], `"`)
		if boundary == "" {
			continue
		}

		if !strings.HasPrefix(boundary, DashDash) {
			boundary = DashDash + boundary
		}

		return boundary, nil
	}

	return "", fmt.Errorf("%w: no boundary in %q", ErrInvalidContentType, values)
}

// ReadStatusLine reads an HTTP status line such as "HTTP/1.1 200 OK",
// skipping blank lines in front of it.
func ReadStatusLine(c *LineCursor) (code int, reason string, err error) {
	err = c.exclusive(func() error {
		var err error
		code, reason, err = readStatusLine(c)
		return err
	})

	return code, reason, err
}

// NextItemHeaders consumes lines until boundary and returns the header block
// that follows it. An empty header signals there are no more items at this
// nesting level: the stream ended or the close delimiter was reached.
func NextItemHeaders(c *LineCursor, boundary string) (http.Header, error) {
	var header http.Header

	err := c.exclusive(func() error {
		var err error
		header, err = nextItemHeaders(c, boundary)
		return err
	})

	return header, err
}

// ClassifyItem tells a changeset part from a retrieve part by its Content-Type.
func ClassifyItem(header http.Header) ItemKind {
	values := header.Values(HeaderContentType)

	for _, value := range values {
		if strings.Contains(strings.ToLower(value), ContentTypeMultipartMixed) {
			return KindChangeset
		}
	}

	for _, value := range values {
		if strings.Contains(strings.ToLower(value), ContentTypeApplicationHTTP) {
			return KindRetrieve
		}
	}

	return KindNone
}

// ContentID returns the Content-ID of a part, without surrounding angle brackets.
func ContentID(header http.Header) (string, bool) {
	for _, value := range header.Values(HeaderContentID) {
		id := strings.TrimSpace(value)
		id = strings.TrimSuffix(strings.TrimPrefix(id, "<"), ">")
		if id != "" {
			return id, true
		}
	}

	return "", false
}

func skipToBoundary(c *LineCursor, boundary string, includeCurrent bool, emit func(line string, eol string) error) (string, error) {
	last, hasCurrent := c.currentLine()

	if includeCurrent && hasCurrent {
		if isPartEnd(last, boundary) {
			return last, nil
		}
		if err := emit(last, c.currentTerminator()); err != nil {
			return last, err
		}
	}

	for c.hasNext() {
		line, err := c.nextLine()
		if err != nil {
			return last, err
		}
		last = line

		if isPartEnd(line, boundary) {
			return line, nil
		}

		if err := emit(line, c.currentTerminator()); err != nil {
			return last, err
		}
	}

	return last, c.readErr()
}

func readHeaders(c *LineCursor) (http.Header, error) {
	header := make(http.Header)

	_, err := skipToBoundary(c, "", false, func(line string, _ string) error {
		name, value, ok := strings.Cut(line, ":")
		if !ok {
			return nil
		}

		name = strings.TrimSpace(name)
		if name == "" {
			return nil
		}

		addHeaderValue(header, name, strings.TrimSpace(value))
		return nil
	})

	return header, err
}

func readStatusLine(c *LineCursor) (int, string, error) {
	for {
		line, err := c.nextLine()
		if errors.Is(err, ErrEndOfStream) {
			return 0, "", fmt.Errorf("%w: stream ended before status line", ErrInvalidResponseLine)
		}
		if err != nil {
			return 0, "", err
		}

		if strings.TrimSpace(line) == "" {
			continue
		}

		match := statusLinePattern.FindStringSubmatch(strings.TrimSpace(line))
		if match == nil {
			return 0, "", fmt.Errorf("%w: %q", ErrInvalidResponseLine, line)
		}

		code, err := strconv.Atoi(match[3])
		if err != nil {
			return 0, "", fmt.Errorf("%w: %q", ErrInvalidResponseLine, line)
		}

		return code, strings.TrimSpace(match[4]), nil
	}
}

func nextItemHeaders(c *LineCursor, boundary string) (http.Header, error) {
	line, err := skipToBoundary(c, boundary, true, discardLine)
	if err != nil {
		return nil, err
	}

	if !strings.HasPrefix(line, boundary) || isCloseDelimiter(line, boundary) {
		return make(http.Header), nil
	}

	return readHeaders(c)
}

// isPartEnd reports whether line terminates a part scanned up to boundary.
func isPartEnd(line string, boundary string) bool {
	if strings.TrimSpace(boundary) == "" {
		return strings.TrimSpace(line) == ""
	}

	return strings.HasPrefix(line, boundary)
}

func isCloseDelimiter(line string, boundary string) bool {
	return strings.HasPrefix(strings.TrimSpace(line), boundary+DashDash)
}

func addHeaderValue(header http.Header, name string, value string) {
	key := http.CanonicalHeaderKey(name)
	for _, existing := range header[key] {
		if existing == value {
			return
		}
	}

	header[key] = append(header[key], value)
}

func discardLine(string, string) error {
	return nil
}

// lineCopier writes lines to out followed by the line ending each was read
// with. An ending is only written once the next line arrives: the ending in
// front of a boundary belongs to the delimiter.
type lineCopier struct {
	out     io.Writer
	pending string
}

func newLineCopier(out io.Writer) *lineCopier {
	return &lineCopier{out: out}
}

func (lc *lineCopier) write(line string, eol string) error {
	if lc.out == nil {
		return nil
	}

	if _, err := io.WriteString(lc.out, lc.pending+line); err != nil {
		return newIOError("write", err)
	}
	lc.pending = eol

	return nil
}
