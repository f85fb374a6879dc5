package batch_test

import (
	"errors"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/require"

	"github.com/kava-labs/odata-batch-proxy/batch"
)

func TestUnitTestLineCursorReadsLines(t *testing.T) {
	cursor := batch.NewLineCursor(strings.NewReader("first\r\nsecond\nthird"))

	_, ok := cursor.Current()
	require.False(t, ok, "no current line before the first read")

	var lines []string
	for cursor.HasNext() {
		line, err := cursor.NextLine()
		require.NoError(t, err)
		lines = append(lines, line)

		current, ok := cursor.Current()
		require.True(t, ok)
		require.Equal(t, line, current)
	}

	require.Equal(t, []string{"first", "second", "third"}, lines)
	require.NoError(t, cursor.Err())

	_, err := cursor.NextLine()
	require.ErrorIs(t, err, batch.ErrEndOfStream)
}

func TestUnitTestLineCursorKeepsBlankLines(t *testing.T) {
	cursor := batch.NewLineCursor(strings.NewReader("a\r\n\r\nb\r\n"))

	for _, expected := range []string{"a", "", "b"} {
		line, err := cursor.NextLine()
		require.NoError(t, err)
		require.Equal(t, expected, line)
	}

	require.False(t, cursor.HasNext())
}

func TestUnitTestLineCursorReportsReadErrors(t *testing.T) {
	readErr := errors.New("connection reset")
	cursor := batch.NewLineCursor(iotest.ErrReader(readErr))

	require.False(t, cursor.HasNext())

	_, err := cursor.NextLine()
	require.ErrorIs(t, err, readErr)

	var ioErr *batch.IOError
	require.ErrorAs(t, err, &ioErr)
	require.Equal(t, "read", ioErr.Op)

	require.ErrorIs(t, cursor.Err(), readErr)
}
