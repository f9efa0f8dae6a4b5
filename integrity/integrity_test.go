package integrity

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriterReaderRoundTrip(t *testing.T) {
	body := []byte("the quick brown fox jumps over the lazy dog")

	var buf bytes.Buffer
	w := NewWriter(&buf)
	_, err := w.Write(body)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	full := buf.Bytes()
	require.Len(t, full, len(body)+8)

	r := NewReader(bytes.NewReader(full[:len(body)]))
	got, err := io.ReadAll(r)
	require.NoError(t, err)
	require.Equal(t, body, got)
	require.NoError(t, r.Verify(full[len(body):]))
}

func TestVerifyDetectsCorruption(t *testing.T) {
	body := []byte("some chunk bytes")

	var buf bytes.Buffer
	w := NewWriter(&buf)
	_, err := w.Write(body)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	full := buf.Bytes()
	corrupted := append([]byte(nil), full[:len(body)]...)
	corrupted[0] ^= 0xFF

	r := NewReader(bytes.NewReader(corrupted))
	_, err = io.ReadAll(r)
	require.NoError(t, err)
	require.ErrorIs(t, r.Verify(full[len(body):]), ErrCheckFailed)
}
