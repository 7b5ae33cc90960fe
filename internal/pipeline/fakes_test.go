package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"cloud.google.com/go/speech/apiv1/speechpb"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Ali-AlHumidi/speechbridge/internal/audio"
	"github.com/Ali-AlHumidi/speechbridge/internal/metrics"
	"github.com/Ali-AlHumidi/speechbridge/internal/recognition"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testMetrics() *metrics.Metrics {
	return metrics.NewMetrics(prometheus.NewRegistry())
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("Timed out waiting for %s", what)
}

// callLog records the order of collaborator calls across goroutines
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(call string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, call)
}

func (l *callLog) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

type fakeTranslator struct {
	log     *callLog
	replies map[string]string
	fail    map[string]bool
	mu      sync.Mutex
	calls   int
}

func (f *fakeTranslator) Translate(ctx context.Context, text, target string) (string, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.log != nil {
		f.log.add("translate:" + text)
	}
	if f.fail[text] {
		return "", errors.New("translation service unavailable")
	}
	if reply, ok := f.replies[text]; ok {
		return reply, nil
	}
	return text + " (" + target + ")", nil
}

func (f *fakeTranslator) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeSynthesizer struct {
	log   *callLog
	fail  map[string]bool
	mu    sync.Mutex
	calls int
	clips []*audio.SynthesizedAudio
}

func (f *fakeSynthesizer) Synthesize(ctx context.Context, text, languageCode string) (*audio.SynthesizedAudio, error) {
	if f.log != nil {
		f.log.add("synthesize:" + text)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.fail[text] {
		return nil, errors.New("voice not available")
	}
	clip := audio.NewSynthesizedAudio([]byte("pcm:"+text), audio.PCM16Mono(16000))
	f.clips = append(f.clips, clip)
	return clip, nil
}

func (f *fakeSynthesizer) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakePlayer struct {
	log    *callLog
	delay  time.Duration
	err    error
	mu     sync.Mutex
	played [][]byte
}

func (f *fakePlayer) Play(ctx context.Context, clip *audio.SynthesizedAudio) error {
	if f.log != nil {
		f.log.add("play-start")
	}
	data := append([]byte(nil), clip.Bytes()...)
	time.Sleep(f.delay)
	f.mu.Lock()
	f.played = append(f.played, data)
	f.mu.Unlock()
	if f.log != nil {
		f.log.add("play-end")
	}
	return f.err
}

func (f *fakePlayer) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.played)
}

// fakeDevice produces silent frames at roughly microphone pace
type fakeDevice struct {
	mu     sync.Mutex
	reads  int
	failAt int
	closed int
}

func (d *fakeDevice) Read() ([]byte, error) {
	time.Sleep(2 * time.Millisecond)
	d.mu.Lock()
	defer d.mu.Unlock()
	d.reads++
	if d.failAt > 0 && d.reads >= d.failAt {
		return nil, errors.New("device unplugged")
	}
	return make([]byte, 64), nil
}

func (d *fakeDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed++
	return nil
}

func (d *fakeDevice) closeCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

type fakeOpener struct {
	mu      sync.Mutex
	opens   int
	err     error
	failAt  int
	devices []*fakeDevice
}

func (o *fakeOpener) Open(cfg audio.CaptureConfig) (audio.Device, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.opens++
	if o.err != nil {
		return nil, o.err
	}
	d := &fakeDevice{failAt: o.failAt}
	o.devices = append(o.devices, d)
	return d, nil
}

func (o *fakeOpener) openCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.opens
}

func (o *fakeOpener) device(i int) *fakeDevice {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.devices[i]
}

type recvResult struct {
	resp *speechpb.StreamingRecognizeResponse
	err  error
}

// scriptedStream answers with responses pushed by the test and ends the call
// after the client half-closes, with drainErr if set
type scriptedStream struct {
	ctx        context.Context
	responses  chan recvResult
	halfClosed chan struct{}
	closeOnce  sync.Once
	drainErr   error
}

func (s *scriptedStream) Send(*speechpb.StreamingRecognizeRequest) error { return nil }

func (s *scriptedStream) Recv() (*speechpb.StreamingRecognizeResponse, error) {
	select {
	case r := <-s.responses:
		return r.resp, r.err
	case <-s.halfClosed:
		if s.drainErr != nil {
			return nil, s.drainErr
		}
		return nil, io.EOF
	case <-s.ctx.Done():
		return nil, s.ctx.Err()
	}
}

func (s *scriptedStream) CloseSend() error {
	s.closeOnce.Do(func() { close(s.halfClosed) })
	return nil
}

type scriptedDialer struct {
	mu      sync.Mutex
	streams []*scriptedStream
	// gate, when set, holds Dial until it is closed
	gate     chan struct{}
	drainErr error
}

func (d *scriptedDialer) Dial(ctx context.Context) (recognition.Stream, error) {
	if d.gate != nil {
		select {
		case <-d.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	s := &scriptedStream{
		ctx:        ctx,
		responses:  make(chan recvResult, 16),
		halfClosed: make(chan struct{}),
		drainErr:   d.drainErr,
	}
	d.streams = append(d.streams, s)
	return s, nil
}

func (d *scriptedDialer) last() *scriptedStream {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.streams[len(d.streams)-1]
}

func (s *scriptedStream) push(transcript string, final bool) {
	s.responses <- recvResult{resp: &speechpb.StreamingRecognizeResponse{
		Results: []*speechpb.StreamingRecognitionResult{{
			IsFinal:      final,
			Alternatives: []*speechpb.SpeechRecognitionAlternative{{Transcript: transcript}},
		}},
	}}
}

func (s *scriptedStream) fail(err error) {
	s.responses <- recvResult{err: err}
}
