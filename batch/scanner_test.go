package batch_test

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kava-labs/odata-batch-proxy/batch"
)

func TestUnitTestBoundaryFromContentType(t *testing.T) {
	for _, tc := range []struct {
		desc             string
		values           []string
		expectedBoundary string
		expectedErr      error
	}{
		{
			desc:             "plain boundary",
			values:           []string{"multipart/mixed; boundary=batch_123"},
			expectedBoundary: "--batch_123",
		},
		{
			desc:             "quoted boundary",
			values:           []string{`multipart/mixed; boundary="changeset_abc"`},
			expectedBoundary: "--changeset_abc",
		},
		{
			desc:             "case insensitive parameter with spaces",
			values:           []string{"multipart/mixed; charset=utf-8; Boundary = batch_x"},
			expectedBoundary: "--batch_x",
		},
		{
			desc:             "already dashed",
			values:           []string{"multipart/mixed; boundary=--batch_1"},
			expectedBoundary: "--batch_1",
		},
		{
			desc:             "boundary in second value",
			values:           []string{"multipart/mixed", "multipart/mixed; boundary=batch_2"},
			expectedBoundary: "--batch_2",
		},
		{
			desc:        "no boundary parameter",
			values:      []string{"multipart/mixed"},
			expectedErr: batch.ErrInvalidContentType,
		},
		{
			desc:        "no values",
			values:      nil,
			expectedErr: batch.ErrInvalidContentType,
		},
	} {
		t.Run(tc.desc, func(t *testing.T) {
			boundary, err := batch.BoundaryFromContentType(tc.values)
			if tc.expectedErr != nil {
				require.ErrorIs(t, err, tc.expectedErr)
				require.Empty(t, boundary)
				return
			}

			require.NoError(t, err)
			require.Equal(t, tc.expectedBoundary, boundary)
		})
	}
}

func TestUnitTestReadStatusLine(t *testing.T) {
	for _, tc := range []struct {
		desc           string
		input          string
		expectedCode   int
		expectedReason string
		expectedErr    error
	}{
		{
			desc:           "ok",
			input:          "HTTP/1.1 200 OK\r\n",
			expectedCode:   200,
			expectedReason: "OK",
		},
		{
			desc:           "lower case scheme with multi word reason",
			input:          "http/1.0 404 Not Found\r\n",
			expectedCode:   404,
			expectedReason: "Not Found",
		},
		{
			desc:         "leading blank lines and no reason",
			input:        "\r\n\r\nHTTP/1.1 204\r\n",
			expectedCode: 204,
		},
		{
			desc:        "not a status line",
			input:       "GET /Products HTTP/1.1\r\n",
			expectedErr: batch.ErrInvalidResponseLine,
		},
		{
			desc:        "empty stream",
			input:       "",
			expectedErr: batch.ErrInvalidResponseLine,
		},
	} {
		t.Run(tc.desc, func(t *testing.T) {
			cursor := batch.NewLineCursor(strings.NewReader(tc.input))

			code, reason, err := batch.ReadStatusLine(cursor)
			if tc.expectedErr != nil {
				require.ErrorIs(t, err, tc.expectedErr)
				return
			}

			require.NoError(t, err)
			require.Equal(t, tc.expectedCode, code)
			require.Equal(t, tc.expectedReason, reason)
		})
	}
}

func TestUnitTestReadHeaders(t *testing.T) {
	input := strings.Join([]string{
		"Content-Type: application/json",
		"content-type: application/json",
		"X-Custom: a",
		"x-custom:b ",
		"not a header",
		"DataServiceVersion: 3.0;NetFx",
		"",
		"body",
	}, "\r\n")
	cursor := batch.NewLineCursor(strings.NewReader(input))

	header, err := batch.ReadHeaders(cursor)
	require.NoError(t, err)

	require.Equal(t, []string{"application/json"}, header.Values("Content-Type"))
	require.Equal(t, []string{"a", "b"}, header.Values("X-Custom"))
	require.Equal(t, "3.0;NetFx", header.Get("Dataserviceversion"))
	require.Len(t, header, 3)

	line, err := cursor.NextLine()
	require.NoError(t, err)
	require.Equal(t, "body", line, "the blank separator is consumed with the headers")
}

func TestUnitTestSkipToBoundary(t *testing.T) {
	cursor := batch.NewLineCursor(strings.NewReader("a\r\nb\r\n--x\r\nc\r\n"))
	out := new(bytes.Buffer)

	last, err := batch.SkipToBoundary(cursor, "--x", false, out)
	require.NoError(t, err)
	require.Equal(t, "--x", last)
	require.Equal(t, "a\r\nb", out.String())

	// the boundary is already current, so nothing more is consumed
	last, err = batch.SkipToBoundary(cursor, "--x", true, nil)
	require.NoError(t, err)
	require.Equal(t, "--x", last)

	// without includeCurrent the scan moves on and hits the end of the stream
	out.Reset()
	last, err = batch.SkipToBoundary(cursor, "--x", false, out)
	require.NoError(t, err)
	require.Equal(t, "c", last)
	require.Equal(t, "c", out.String())
}

func TestUnitTestSkipToBoundaryKeepsLineEndings(t *testing.T) {
	cursor := batch.NewLineCursor(strings.NewReader("a\nb\r\nc\rd\r\n--x\r\n"))
	out := new(bytes.Buffer)

	last, err := batch.SkipToBoundary(cursor, "--x", false, out)
	require.NoError(t, err)
	require.Equal(t, "--x", last)
	require.Equal(t, "a\nb\r\nc\rd", out.String(), "only the ending in front of the boundary is dropped")

	// bare LF framing
	cursor = batch.NewLineCursor(strings.NewReader("x\n\n--x\n"))
	out.Reset()

	_, err = batch.SkipToBoundary(cursor, "--x", false, out)
	require.NoError(t, err)
	require.Equal(t, "x\n", out.String())
}

func TestUnitTestSkipToBlankLine(t *testing.T) {
	cursor := batch.NewLineCursor(strings.NewReader("h1: v\r\n\r\nbody\r\n"))
	out := new(bytes.Buffer)

	last, err := batch.SkipToBoundary(cursor, "", false, out)
	require.NoError(t, err)
	require.Equal(t, "", last)
	require.Equal(t, "h1: v", out.String())
}

func TestUnitTestNextItemHeaders(t *testing.T) {
	input := strings.Join([]string{
		"preamble",
		"--b",
		"Content-Type: application/http",
		"",
		"HTTP/1.1 200 OK",
		"",
		"--b--",
		"",
	}, "\r\n")
	cursor := batch.NewLineCursor(strings.NewReader(input))

	header, err := batch.NextItemHeaders(cursor, "--b")
	require.NoError(t, err)
	require.Equal(t, batch.KindRetrieve, batch.ClassifyItem(header))

	header, err = batch.NextItemHeaders(cursor, "--b")
	require.NoError(t, err)
	require.Empty(t, header, "close delimiter ends the items")

	header, err = batch.NextItemHeaders(batch.NewLineCursor(strings.NewReader("no parts here\r\n")), "--b")
	require.NoError(t, err)
	require.Empty(t, header, "end of stream ends the items")
}

func TestUnitTestClassifyItem(t *testing.T) {
	for _, tc := range []struct {
		desc         string
		contentType  []string
		expectedKind batch.ItemKind
	}{
		{
			desc:         "retrieve",
			contentType:  []string{"application/http"},
			expectedKind: batch.KindRetrieve,
		},
		{
			desc:         "changeset",
			contentType:  []string{"multipart/mixed; boundary=changeset_1"},
			expectedKind: batch.KindChangeset,
		},
		{
			desc:         "upper case changeset",
			contentType:  []string{"Multipart/Mixed; boundary=changeset_1"},
			expectedKind: batch.KindChangeset,
		},
		{
			desc:         "other content type",
			contentType:  []string{"application/json"},
			expectedKind: batch.KindNone,
		},
		{
			desc:         "no content type",
			expectedKind: batch.KindNone,
		},
	} {
		t.Run(tc.desc, func(t *testing.T) {
			header := make(http.Header)
			for _, value := range tc.contentType {
				header.Add("Content-Type", value)
			}

			require.Equal(t, tc.expectedKind, batch.ClassifyItem(header))
		})
	}
}

func TestUnitTestContentID(t *testing.T) {
	header := make(http.Header)

	_, ok := batch.ContentID(header)
	require.False(t, ok)

	header.Set("Content-ID", " <5> ")
	id, ok := batch.ContentID(header)
	require.True(t, ok)
	require.Equal(t, "5", id)
}

func TestUnitTestNextItemHeadersConcurrentReaders(t *testing.T) {
	const parts = 32

	var body strings.Builder
	body.WriteString("preamble\r\n")
	for i := 0; i < parts; i++ {
		fmt.Fprintf(&body, "--b\r\nX-Part: %d\r\nX-Check: %d\r\nX-Tail: %d\r\n\r\nbody %d\r\nmore %d\r\n", i, i, i, i, i)
	}
	body.WriteString("--b--\r\n")

	cursor := batch.NewLineCursor(strings.NewReader(body.String()))

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		headers []http.Header
		errs    []error
	)
	for i := 0; i < parts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			header, err := batch.NextItemHeaders(cursor, "--b")

			mu.Lock()
			defer mu.Unlock()
			headers = append(headers, header)
			errs = append(errs, err)
		}()
	}
	wg.Wait()

	seen := make(map[string]bool)
	for i, header := range headers {
		require.NoError(t, errs[i])
		require.Len(t, header, 3, "every reader gets a whole header block")

		part := header.Get("X-Part")
		require.Equal(t, part, header.Get("X-Check"))
		require.Equal(t, part, header.Get("X-Tail"))
		require.False(t, seen[part], "part %s was returned twice", part)
		seen[part] = true
	}
	require.Len(t, seen, parts)

	header, err := batch.NextItemHeaders(cursor, "--b")
	require.NoError(t, err)
	require.Empty(t, header)
}

func TestUnitTestSkipToBoundaryConcurrentReaders(t *testing.T) {
	const chunks = 32

	var body strings.Builder
	for i := 0; i < chunks; i++ {
		fmt.Fprintf(&body, "chunk %d line 1\r\nchunk %d line 2\r\nchunk %d line 3\r\n--x\r\n", i, i, i)
	}

	cursor := batch.NewLineCursor(strings.NewReader(body.String()))

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		outputs []string
		errs    []error
	)
	for i := 0; i < chunks; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			out := new(bytes.Buffer)
			last, err := batch.SkipToBoundary(cursor, "--x", false, out)
			if err == nil && last != "--x" {
				err = fmt.Errorf("stopped at %q", last)
			}

			mu.Lock()
			defer mu.Unlock()
			outputs = append(outputs, out.String())
			errs = append(errs, err)
		}()
	}
	wg.Wait()

	seen := make(map[int]bool)
	for i, out := range outputs {
		require.NoError(t, errs[i])

		lines := strings.Split(out, "\r\n")
		require.Len(t, lines, 3, "no chunk is split between readers")

		var chunk int
		_, err := fmt.Sscanf(lines[0], "chunk %d line 1", &chunk)
		require.NoError(t, err)
		require.Equal(t, fmt.Sprintf("chunk %d line 2", chunk), lines[1])
		require.Equal(t, fmt.Sprintf("chunk %d line 3", chunk), lines[2])
		require.False(t, seen[chunk])
		seen[chunk] = true
	}
	require.Len(t, seen, chunks)
	require.False(t, cursor.HasNext())
}
