package audio

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jfreymuth/pulse"
	pulseproto "github.com/jfreymuth/pulse/proto"
)

// Capture format: 16 kHz mono signed 16-bit little endian.
const (
	SampleRate     = 16000
	BytesPerSample = 2
	ChunkDuration  = 20 * time.Millisecond

	chunkSizeBytes = SampleRate * BytesPerSample * int(ChunkDuration/time.Millisecond) / 1000
)

// chunker splits an arbitrary byte stream into fixed-size chunks, keeping the
// remainder for the next push.
type chunker struct {
	size    int
	pending []byte
}

func (c *chunker) push(buf []byte) [][]byte {
	c.pending = append(c.pending, buf...)
	out := make([][]byte, 0, len(c.pending)/c.size)
	for len(c.pending) >= c.size {
		out = append(out, append([]byte(nil), c.pending[:c.size]...))
		c.pending = c.pending[c.size:]
	}
	return out
}

// flush returns and clears the partial tail chunk, or nil.
func (c *chunker) flush() []byte {
	if len(c.pending) == 0 {
		return nil
	}
	tail := append([]byte(nil), c.pending...)
	c.pending = nil
	return tail
}

// Capture streams fixed-size PCM chunks from one Pulse source.
type Capture struct {
	device Device
	client *pulse.Client
	stream *pulse.RecordStream

	chunks chan []byte
	done   chan struct{}

	mu       sync.Mutex
	split    chunker
	stopped  bool
	inflight sync.WaitGroup

	bytes atomic.Int64
}

func newCapture(device Device) *Capture {
	return &Capture{
		device: device,
		chunks: make(chan []byte, 128),
		done:   make(chan struct{}),
		split:  chunker{size: chunkSizeBytes},
	}
}

// StartCapture opens a record stream on the selected source. Capture stops
// when ctx is cancelled or Stop is called.
func StartCapture(ctx context.Context, selected Device) (*Capture, error) {
	client, err := connect()
	if err != nil {
		return nil, err
	}

	source, err := client.SourceByID(selected.ID)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("resolve source %q: %w", selected.ID, err)
	}

	c := newCapture(selected)
	c.client = client

	stream, err := client.NewRecord(
		pulse.NewWriter(writerFunc(c.onPCM), pulseproto.FormatInt16LE),
		pulse.RecordSource(source),
		pulse.RecordMono,
		pulse.RecordSampleRate(SampleRate),
		pulse.RecordBufferFragmentSize(uint32(chunkSizeBytes)),
		pulse.RecordMediaName("scribe lecture"),
	)
	if err != nil {
		_ = c.Stop()
		return nil, fmt.Errorf("create pulse record stream: %w", err)
	}
	c.stream = stream
	stream.Start()

	go func() {
		select {
		case <-ctx.Done():
			_ = c.Stop()
		case <-c.done:
		}
	}()
	return c, nil
}

// Device returns the source being captured.
func (c *Capture) Device() Device {
	return c.device
}

// Chunks delivers PCM until Stop. The final chunk may be short.
func (c *Capture) Chunks() <-chan []byte {
	return c.chunks
}

// BytesCaptured reports total PCM bytes accepted from Pulse.
func (c *Capture) BytesCaptured() int64 {
	return c.bytes.Load()
}

// Duration converts captured bytes to audio time.
func (c *Capture) Duration() time.Duration {
	samples := c.BytesCaptured() / BytesPerSample
	return time.Duration(samples) * time.Second / SampleRate
}

// Stop ends the record stream, emits any buffered tail, and closes Chunks.
// Repeated calls are no-ops.
func (c *Capture) Stop() error {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return nil
	}
	c.stopped = true
	close(c.done)
	c.mu.Unlock()

	if c.stream != nil {
		c.stream.Stop()
		c.stream.Close()
	}
	if c.client != nil {
		c.client.Close()
	}
	c.inflight.Wait()

	c.mu.Lock()
	tail := c.split.flush()
	c.mu.Unlock()
	if tail != nil {
		select {
		case c.chunks <- tail:
		default:
		}
	}
	close(c.chunks)
	return nil
}

// onPCM is the Pulse record callback.
func (c *Capture) onPCM(buf []byte) (int, error) {
	if len(buf) == 0 {
		return 0, nil
	}

	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return 0, io.EOF
	}
	// Add under mu so Stop's Wait never races a late callback.
	c.inflight.Add(1)
	ready := c.split.push(buf)
	c.mu.Unlock()
	defer c.inflight.Done()

	c.bytes.Add(int64(len(buf)))
	for _, chunk := range ready {
		select {
		case c.chunks <- chunk:
		case <-c.done:
			return 0, io.EOF
		}
	}
	return len(buf), nil
}

type writerFunc func([]byte) (int, error)

func (f writerFunc) Write(b []byte) (int, error) {
	return f(b)
}
