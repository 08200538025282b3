// Package archive writes captured lecture audio to FLAC files.
package archive

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/mewkiz/flac"
	"github.com/mewkiz/flac/frame"
	"github.com/mewkiz/flac/meta"
)

// Capture format produced by the audio package: 16 kHz mono s16le.
const (
	SampleRate    = 16000
	BitsPerSample = 16
	BlockSize     = 4096
)

// Recorder encodes raw s16le PCM into one FLAC file. Write may be called with
// chunks of any length; samples are framed in fixed blocks.
type Recorder struct {
	path string
	file *os.File
	enc  *flac.Encoder

	mu      sync.Mutex
	block   []int16
	carry   []byte
	samples uint64
	closed  bool
}

// writeSeeker hides the file's Close from the encoder so the recorder can
// sync and close it itself.
type writeSeeker struct {
	io.WriteSeeker
}

// FileName is the archive name for a recording started at t.
func FileName(t time.Time) string {
	return "scribe-" + t.Format("20060102-150405") + ".flac"
}

// Create opens a new FLAC file in dir, creating dir when needed.
func Create(dir string, startedAt time.Time) (*Recorder, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create archive dir: %w", err)
	}
	path := filepath.Join(dir, FileName(startedAt))
	file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("create archive file: %w", err)
	}

	info := &meta.StreamInfo{
		BlockSizeMin:  BlockSize,
		BlockSizeMax:  BlockSize,
		SampleRate:    SampleRate,
		NChannels:     1,
		BitsPerSample: BitsPerSample,
	}
	enc, err := flac.NewEncoder(writeSeeker{file}, info)
	if err != nil {
		_ = file.Close()
		_ = os.Remove(path)
		return nil, fmt.Errorf("create flac encoder: %w", err)
	}

	return &Recorder{
		path:  path,
		file:  file,
		enc:   enc,
		block: make([]int16, 0, BlockSize),
	}, nil
}

// Path is the archive file location.
func (r *Recorder) Path() string {
	return r.path
}

// Samples reports how many samples have been accepted so far.
func (r *Recorder) Samples() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.samples
}

// Write accepts little-endian 16-bit PCM. An odd trailing byte is held until
// the next chunk.
func (r *Recorder) Write(pcm []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return 0, os.ErrClosed
	}

	data := pcm
	if len(r.carry) > 0 {
		data = append(r.carry, pcm...)
		r.carry = nil
	}
	for len(data) >= 2 {
		r.block = append(r.block, int16(binary.LittleEndian.Uint16(data)))
		data = data[2:]
		r.samples++
		if len(r.block) == BlockSize {
			if err := r.flushLocked(); err != nil {
				return 0, err
			}
		}
	}
	if len(data) == 1 {
		r.carry = []byte{data[0]}
	}
	return len(pcm), nil
}

// Close writes the final partial block, finalizes the stream header, and
// closes the file.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true

	var firstErr error
	if len(r.block) > 0 {
		firstErr = r.flushLocked()
	}
	if err := r.enc.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("finalize flac stream: %w", err)
	}
	if err := r.file.Sync(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("sync archive file: %w", err)
	}
	if err := r.file.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("close archive file: %w", err)
	}
	return firstErr
}

func (r *Recorder) flushLocked() error {
	samples := make([]int32, len(r.block))
	for i, s := range r.block {
		samples[i] = int32(s)
	}
	f := &frame.Frame{
		Header: frame.Header{
			BlockSize:     uint16(len(samples)),
			SampleRate:    SampleRate,
			Channels:      frame.ChannelsMono,
			BitsPerSample: BitsPerSample,
		},
		Subframes: []*frame.Subframe{{
			SubHeader: frame.SubHeader{Pred: frame.PredVerbatim},
			Samples:   samples,
			NSamples:  len(samples),
		}},
	}
	r.block = r.block[:0]
	if err := r.enc.WriteFrame(f); err != nil {
		return fmt.Errorf("write flac frame: %w", err)
	}
	return nil
}
