package audio

import (
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestChunkSizeIsTwentyMilliseconds(t *testing.T) {
	require.Equal(t, 640, chunkSizeBytes)
}

func TestChunkerKeepsRemainder(t *testing.T) {
	c := chunker{size: 4}

	require.Empty(t, c.push([]byte{1, 2, 3}))
	out := c.push([]byte{4, 5, 6, 7, 8, 9})
	require.Equal(t, [][]byte{{1, 2, 3, 4}, {5, 6, 7, 8}}, out)
	require.Equal(t, []byte{9}, c.flush())
	require.Nil(t, c.flush())
}

func TestCaptureOnPCMChunkingAndStopFlushesTail(t *testing.T) {
	c := newCapture(Device{ID: "mic-1"})

	input := make([]byte, chunkSizeBytes+111)
	for i := range input {
		input[i] = byte(i % 251)
	}

	n, err := c.onPCM(input)
	require.NoError(t, err)
	require.Equal(t, len(input), n)
	require.Equal(t, int64(len(input)), c.BytesCaptured())

	first := <-c.Chunks()
	require.Equal(t, input[:chunkSizeBytes], first)

	require.NoError(t, c.Stop())
	require.NoError(t, c.Stop())

	tail, ok := <-c.Chunks()
	require.True(t, ok)
	require.Equal(t, input[chunkSizeBytes:], tail)

	_, ok = <-c.Chunks()
	require.False(t, ok)
}

func TestCaptureOnPCMReturnsEOFAfterStop(t *testing.T) {
	c := newCapture(Device{ID: "mic-1"})
	require.NoError(t, c.Stop())

	n, err := c.onPCM([]byte{1, 2, 3})
	require.Zero(t, n)
	require.ErrorIs(t, err, io.EOF)
	require.Zero(t, c.BytesCaptured())
	require.Equal(t, "mic-1", c.Device().ID)
}

func TestCaptureDuration(t *testing.T) {
	c := newCapture(Device{})
	c.bytes.Store(SampleRate * BytesPerSample * 3)
	require.Equal(t, 3*time.Second, c.Duration())
}

func TestWriterFuncDelegatesWrite(t *testing.T) {
	var got []byte
	w := writerFunc(func(b []byte) (int, error) {
		got = b
		return len(b), nil
	})

	n, err := w.Write([]byte{1, 2, 3})
	require.NoError(t, err)
	require.Equal(t, 3, n)
	require.Equal(t, []byte{1, 2, 3}, got)
}
