package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rbright/scribe/internal/fsm"
	"github.com/rbright/scribe/internal/store"
	"github.com/rbright/scribe/internal/transcript"
	"github.com/stretchr/testify/require"
)

type fakeStream struct {
	events    chan Event
	stopOnce  sync.Once
	stopCalls atomic.Int32
	onStop    func(chan<- Event)
	stopErr   error
}

func newFakeStream() *fakeStream {
	return &fakeStream{events: make(chan Event, 16)}
}

func (f *fakeStream) Events() <-chan Event {
	return f.events
}

func (f *fakeStream) Stop() error {
	f.stopCalls.Add(1)
	f.stopOnce.Do(func() {
		if f.onStop != nil {
			f.onStop(f.events)
		}
		close(f.events)
	})
	return f.stopErr
}

type fakeRecognizer struct {
	supported bool
	openErr   error
	stream    *fakeStream

	openCalls atomic.Int32
	lastOpts  Options
}

func (f *fakeRecognizer) Supported(context.Context) bool {
	return f.supported
}

func (f *fakeRecognizer) Open(_ context.Context, opts Options) (Stream, error) {
	f.openCalls.Add(1)
	f.lastOpts = opts
	if f.openErr != nil {
		return nil, f.openErr
	}
	return f.stream, nil
}

type fakeIndicator struct {
	recording atomic.Int32
	stopped   atomic.Int32

	mu     sync.Mutex
	errors []string
}

func (f *fakeIndicator) ShowRecording(context.Context) { f.recording.Add(1) }
func (f *fakeIndicator) ShowStopped(context.Context)   { f.stopped.Add(1) }
func (f *fakeIndicator) ShowError(_ context.Context, text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errors = append(f.errors, text)
}

func (f *fakeIndicator) errorTexts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.errors...)
}

type failingStore struct {
	loadErr error
	saveErr error
}

func (f failingStore) Load() (string, error) { return "", f.loadErr }
func (f failingStore) Save(string) error     { return f.saveErr }

var defaultOptions = Options{Continuous: true, InterimResults: true, Language: "en-US"}

func newTestSession(t *testing.T, recognizer *fakeRecognizer, slot Store, ind *fakeIndicator) *Session {
	t.Helper()
	s, err := New(nil, recognizer, slot, ind, defaultOptions)
	require.NoError(t, err)
	return s
}

func final(text string) transcript.Segment   { return transcript.Segment{Text: text, Final: true} }
func interim(text string) transcript.Segment { return transcript.Segment{Text: text} }

func TestFinalResultsConcatenateInDeliveryOrder(t *testing.T) {
	stream := newFakeStream()
	recognizer := &fakeRecognizer{supported: true, stream: stream}
	s := newTestSession(t, recognizer, store.Key(store.NewMemory(), store.TranscriptKey), &fakeIndicator{})

	require.NoError(t, s.Start(context.Background()))
	require.Equal(t, fsm.StateRecording, s.State())
	require.Equal(t, defaultOptions, recognizer.lastOpts)

	stream.events <- Event{Results: []transcript.Segment{interim("the qu")}}
	stream.events <- Event{Results: []transcript.Segment{final("The quick "), interim("bro")}}
	stream.events <- Event{ResumeIndex: 1, Results: []transcript.Segment{final("The quick "), final("brown fox "), interim("ju")}}
	stream.events <- Event{Results: []transcript.Segment{final("jumps.")}}

	require.NoError(t, s.Stop(context.Background()))
	require.Equal(t, fsm.StateIdle, s.State())
	require.Equal(t, "The quick brown fox jumps.", s.Transcript())
}

func TestStopWhenIdleIsNoop(t *testing.T) {
	slot := store.Key(store.NewMemory(), store.TranscriptKey)
	require.NoError(t, slot.Save("kept"))
	ind := &fakeIndicator{}
	s := newTestSession(t, &fakeRecognizer{supported: true, stream: newFakeStream()}, slot, ind)

	require.NoError(t, s.Stop(context.Background()))
	require.NoError(t, s.Stop(context.Background()))
	require.Equal(t, fsm.StateIdle, s.State())
	require.Equal(t, "kept", s.Transcript())
	require.Equal(t, int32(0), ind.stopped.Load())
}

func TestStopTwiceAfterRecordingStopsStreamOnce(t *testing.T) {
	stream := newFakeStream()
	s := newTestSession(t, &fakeRecognizer{supported: true, stream: stream}, store.Key(store.NewMemory(), store.TranscriptKey), &fakeIndicator{})

	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, s.Stop(context.Background()))
	require.NoError(t, s.Stop(context.Background()))
	require.Equal(t, int32(1), stream.stopCalls.Load())
}

func TestStartWithoutCapabilityLeavesSessionIdle(t *testing.T) {
	slot := store.Key(store.NewMemory(), store.TranscriptKey)
	recognizer := &fakeRecognizer{supported: false, stream: newFakeStream()}
	ind := &fakeIndicator{}
	s := newTestSession(t, recognizer, slot, ind)

	err := s.Start(context.Background())
	require.ErrorIs(t, err, ErrCapabilityUnavailable)
	require.Equal(t, fsm.StateIdle, s.State())
	require.Empty(t, s.Transcript())
	require.Equal(t, int32(0), recognizer.openCalls.Load())
	require.Equal(t, []string{"Speech recognition is not available"}, ind.errorTexts())

	saved, loadErr := slot.Load()
	require.NoError(t, loadErr)
	require.Empty(t, saved)
}

func TestStartOpenFailureLeavesSessionIdle(t *testing.T) {
	ind := &fakeIndicator{}
	s := newTestSession(t, &fakeRecognizer{supported: true, openErr: errors.New("riva down")}, store.Key(store.NewMemory(), store.TranscriptKey), ind)

	err := s.Start(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "riva down")
	require.Equal(t, fsm.StateIdle, s.State())
	require.Equal(t, int32(0), ind.recording.Load())
}

func TestStartWhileRecordingFails(t *testing.T) {
	recognizer := &fakeRecognizer{supported: true, stream: newFakeStream()}
	s := newTestSession(t, recognizer, store.Key(store.NewMemory(), store.TranscriptKey), &fakeIndicator{})

	require.NoError(t, s.Start(context.Background()))
	require.ErrorIs(t, s.Start(context.Background()), ErrAlreadyRecording)
	require.Equal(t, int32(1), recognizer.openCalls.Load())
	require.NoError(t, s.Stop(context.Background()))
}

func TestPersistenceRoundTripAcrossReload(t *testing.T) {
	kv := store.NewMemory()
	stream := newFakeStream()
	s := newTestSession(t, &fakeRecognizer{supported: true, stream: stream}, store.Key(kv, store.TranscriptKey), &fakeIndicator{})

	require.NoError(t, s.Start(context.Background()))
	stream.events <- Event{Results: []transcript.Segment{final("hello ")}}
	stream.events <- Event{Results: []transcript.Segment{final("world")}}
	require.NoError(t, s.Stop(context.Background()))

	reloaded := newTestSession(t, &fakeRecognizer{}, store.Key(kv, store.TranscriptKey), &fakeIndicator{})
	require.Equal(t, "hello world", reloaded.Transcript())
	require.Equal(t, fsm.StateIdle, reloaded.State())
}

func TestEveryFinalIsCheckpointed(t *testing.T) {
	kv := store.NewMemory()
	stream := newFakeStream()
	s := newTestSession(t, &fakeRecognizer{supported: true, stream: stream}, store.Key(kv, store.TranscriptKey), &fakeIndicator{})
	updates, cancel := s.Subscribe()
	defer cancel()

	require.NoError(t, s.Start(context.Background()))
	stream.events <- Event{Results: []transcript.Segment{final("one ")}}

	waitForTranscript(t, updates, "one ")
	saved, err := kv.Get(store.TranscriptKey)
	require.NoError(t, err)
	require.Equal(t, "one ", saved)

	require.NoError(t, s.Stop(context.Background()))
}

func TestStreamErrorDoesNotChangeState(t *testing.T) {
	stream := newFakeStream()
	ind := &fakeIndicator{}
	s := newTestSession(t, &fakeRecognizer{supported: true, stream: stream}, store.Key(store.NewMemory(), store.TranscriptKey), ind)
	updates, cancel := s.Subscribe()
	defer cancel()

	require.NoError(t, s.Start(context.Background()))
	stream.events <- Event{Err: errors.New("network")}
	stream.events <- Event{Results: []transcript.Segment{final("still here")}}

	waitForTranscript(t, updates, "still here")
	require.Equal(t, fsm.StateRecording, s.State())
	require.Contains(t, ind.errorTexts(), "Speech recognition error")

	require.NoError(t, s.Stop(context.Background()))
}

func TestEngineClosingStreamKeepsRecordingUntilStop(t *testing.T) {
	stream := newFakeStream()
	s := newTestSession(t, &fakeRecognizer{supported: true, stream: stream}, store.Key(store.NewMemory(), store.TranscriptKey), &fakeIndicator{})

	require.NoError(t, s.Start(context.Background()))
	stream.stopOnce.Do(func() { close(stream.events) })

	time.Sleep(20 * time.Millisecond)
	require.Equal(t, fsm.StateRecording, s.State())
	require.NoError(t, s.Stop(context.Background()))
	require.Equal(t, fsm.StateIdle, s.State())
}

func TestStopKeepsFinalsFlushedDuringShutdown(t *testing.T) {
	stream := newFakeStream()
	stream.onStop = func(events chan<- Event) {
		events <- Event{Results: []transcript.Segment{final("last words")}}
	}
	s := newTestSession(t, &fakeRecognizer{supported: true, stream: stream}, store.Key(store.NewMemory(), store.TranscriptKey), &fakeIndicator{})

	require.NoError(t, s.Start(context.Background()))
	stream.events <- Event{Results: []transcript.Segment{final("first words, ")}}
	require.NoError(t, s.Stop(context.Background()))
	require.Equal(t, "first words, last words", s.Transcript())
}

func TestStopReturnsStreamErrorButStillIdles(t *testing.T) {
	stream := newFakeStream()
	stream.stopErr = errors.New("close send failed")
	s := newTestSession(t, &fakeRecognizer{supported: true, stream: stream}, store.Key(store.NewMemory(), store.TranscriptKey), &fakeIndicator{})

	require.NoError(t, s.Start(context.Background()))
	err := s.Stop(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "close send failed")
	require.Equal(t, fsm.StateIdle, s.State())
}

func TestResetClearsAndPersists(t *testing.T) {
	kv := store.NewMemory()
	require.NoError(t, kv.Set(store.TranscriptKey, "old lecture"))
	s := newTestSession(t, &fakeRecognizer{}, store.Key(kv, store.TranscriptKey), &fakeIndicator{})
	require.Equal(t, "old lecture", s.Transcript())

	require.NoError(t, s.Reset())
	require.Empty(t, s.Transcript())
	saved, err := kv.Get(store.TranscriptKey)
	require.NoError(t, err)
	require.Empty(t, saved)
}

func TestResetReportsSaveFailure(t *testing.T) {
	s := newTestSession(t, &fakeRecognizer{}, failingStore{saveErr: errors.New("disk full")}, &fakeIndicator{})
	err := s.Reset()
	require.Error(t, err)
	require.Contains(t, err.Error(), "disk full")
}

func TestNewFailsWhenStoreCannotLoad(t *testing.T) {
	_, err := New(nil, &fakeRecognizer{}, failingStore{loadErr: errors.New("corrupt")}, nil, defaultOptions)
	require.Error(t, err)
	require.Contains(t, err.Error(), "load transcript")
}

func TestNewRequiresCollaborators(t *testing.T) {
	_, err := New(nil, nil, store.Key(store.NewMemory(), store.TranscriptKey), nil, defaultOptions)
	require.Error(t, err)

	_, err = New(nil, &fakeRecognizer{}, nil, nil, defaultOptions)
	require.Error(t, err)
}

func TestSaveFailureKeepsInMemoryTranscript(t *testing.T) {
	stream := newFakeStream()
	s := newTestSession(t, &fakeRecognizer{supported: true, stream: stream}, failingStore{saveErr: errors.New("read-only")}, &fakeIndicator{})

	require.NoError(t, s.Start(context.Background()))
	stream.events <- Event{Results: []transcript.Segment{final("kept in memory")}}
	require.NoError(t, s.Stop(context.Background()))
	require.Equal(t, "kept in memory", s.Transcript())
}

func TestSubscribeCancelIsIdempotent(t *testing.T) {
	s := newTestSession(t, &fakeRecognizer{}, store.Key(store.NewMemory(), store.TranscriptKey), &fakeIndicator{})
	updates, cancel := s.Subscribe()
	cancel()
	cancel()

	_, open := <-updates
	require.False(t, open)
	require.NoError(t, s.Reset())
}

func TestStreamErrorUnwraps(t *testing.T) {
	cause := errors.New("aborted")
	err := error(&StreamError{Err: cause})
	require.ErrorIs(t, err, cause)
	require.Equal(t, "recognition stream error: aborted", err.Error())
}

func waitForTranscript(t *testing.T, updates <-chan Update, want string) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case u := <-updates:
			if u.Transcript == want {
				return
			}
		case <-deadline:
			t.Fatalf("timed out waiting for transcript %q", want)
		}
	}
}
