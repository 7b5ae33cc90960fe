package recognition

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
	"google.golang.org/genproto/googleapis/rpc/status"
	"google.golang.org/grpc/codes"

	"github.com/Ali-AlHumidi/speechbridge/internal/audio"
	"github.com/Ali-AlHumidi/speechbridge/internal/shared"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

type recvResult struct {
	resp *speechpb.StreamingRecognizeResponse
	err  error
}

type fakeStream struct {
	ctx       context.Context
	responses chan recvResult

	mu         sync.Mutex
	sent       []*speechpb.StreamingRecognizeRequest
	closedSend bool
}

func newFakeStream(results ...recvResult) *fakeStream {
	ch := make(chan recvResult, len(results)+1)
	for _, r := range results {
		ch <- r
	}
	return &fakeStream{responses: ch}
}

func (s *fakeStream) Send(req *speechpb.StreamingRecognizeRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, req)
	return nil
}

func (s *fakeStream) Recv() (*speechpb.StreamingRecognizeResponse, error) {
	select {
	case r, ok := <-s.responses:
		if !ok {
			return nil, io.EOF
		}
		return r.resp, r.err
	case <-s.ctx.Done():
		return nil, s.ctx.Err()
	}
}

func (s *fakeStream) CloseSend() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closedSend = true
	return nil
}

func (s *fakeStream) audioSent() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, req := range s.sent {
		if req.GetAudioContent() != nil {
			n++
		}
	}
	return n
}

type fakeDialer struct {
	stream *fakeStream
	err    error
}

func (d *fakeDialer) Dial(ctx context.Context) (Stream, error) {
	if d.err != nil {
		return nil, d.err
	}
	d.stream.ctx = ctx
	return d.stream, nil
}

// sliceSource yields a fixed number of frames, then io.EOF
type sliceSource struct {
	remaining int
}

func (s *sliceSource) Next() (audio.Frame, error) {
	if s.remaining == 0 {
		return audio.Frame{}, io.EOF
	}
	s.remaining--
	return audio.Frame{Data: []byte{0, 1, 2, 3}}, nil
}

// endlessSource yields frames paced like a microphone until err is set
type endlessSource struct {
	err error
}

func (s *endlessSource) Next() (audio.Frame, error) {
	time.Sleep(time.Millisecond)
	if s.err != nil {
		return audio.Frame{}, s.err
	}
	return audio.Frame{Data: []byte{0, 0}}, nil
}

func result(transcript string, final bool) recvResult {
	return recvResult{resp: &speechpb.StreamingRecognizeResponse{
		Results: []*speechpb.StreamingRecognitionResult{{
			IsFinal:   final,
			Stability: 0.5,
			Alternatives: []*speechpb.SpeechRecognitionAlternative{
				{Transcript: transcript, Confidence: 0.9},
				{Transcript: "ignored alternative"},
			},
		}},
	}}
}

func openSession(t *testing.T, stream *fakeStream) *Session {
	t.Helper()
	rec, err := NewRecognizer(&fakeDialer{stream: stream}, DefaultConfig(), testLogger())
	if err != nil {
		t.Fatalf("NewRecognizer failed: %v", err)
	}
	sess, err := rec.Open(context.Background())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	return sess
}

func collect(events <-chan Event) []Event {
	var out []Event
	for ev := range events {
		out = append(out, ev)
	}
	return out
}

func TestOpenSendsConfigFirst(t *testing.T) {
	stream := newFakeStream()
	openSession(t, stream)

	if len(stream.sent) != 1 {
		t.Fatalf("Expected 1 request after open, got %d", len(stream.sent))
	}
	cfg := stream.sent[0].GetStreamingConfig()
	if cfg == nil {
		t.Fatal("First request is not a streaming config")
	}
	if cfg.GetConfig().GetLanguageCode() != "en-US" {
		t.Errorf("Expected en-US, got %s", cfg.GetConfig().GetLanguageCode())
	}
	if cfg.GetConfig().GetSampleRateHertz() != 16000 {
		t.Errorf("Expected 16000 Hz, got %d", cfg.GetConfig().GetSampleRateHertz())
	}
	if cfg.GetConfig().GetEncoding() != speechpb.RecognitionConfig_LINEAR16 {
		t.Errorf("Expected LINEAR16, got %v", cfg.GetConfig().GetEncoding())
	}
	if !cfg.GetInterimResults() {
		t.Error("Expected interim results enabled")
	}
}

func TestRunEmitsEventsInOrder(t *testing.T) {
	stream := newFakeStream(result("hel", false), result("hello world", true))
	close(stream.responses)

	sess := openSession(t, stream)
	events := collect(sess.Run(context.Background(), &sliceSource{remaining: 3}))

	if len(events) != 2 {
		t.Fatalf("Expected 2 events, got %d: %+v", len(events), events)
	}
	if events[0].Kind != Partial || events[0].Transcript != "hel" {
		t.Errorf("Unexpected first event %+v", events[0])
	}
	if events[1].Kind != Final || events[1].Transcript != "hello world" {
		t.Errorf("Unexpected second event %+v", events[1])
	}
	if events[1].Confidence != 0.9 {
		t.Errorf("Expected confidence of first alternative, got %v", events[1].Confidence)
	}

	if sess.State() != StateStopped {
		t.Errorf("Expected stopped, got %s", sess.State())
	}
	if got := stream.audioSent(); got != 3 {
		t.Errorf("Expected 3 audio requests, got %d", got)
	}
	if !stream.closedSend {
		t.Error("Expected CloseSend after the frame source ended")
	}

	stats := sess.Stats()
	if stats.Partials != 1 || stats.Finals != 1 || stats.FramesSent != 3 {
		t.Errorf("Unexpected stats %+v", stats)
	}
}

func TestRunFailsAfterPartial(t *testing.T) {
	stream := newFakeStream(
		result("hel", false),
		recvResult{err: errors.New("rpc error: code = Unavailable")},
	)

	sess := openSession(t, stream)
	events := collect(sess.Run(context.Background(), &endlessSource{}))

	if len(events) != 2 {
		t.Fatalf("Expected 2 events, got %d: %+v", len(events), events)
	}
	if events[0].Kind != Partial {
		t.Errorf("Expected partial first, got %s", events[0].Kind)
	}
	last := events[1]
	if last.Kind != Failed || !errors.Is(last.Err, shared.ErrRecognitionStream) {
		t.Errorf("Expected failed event with ErrRecognitionStream, got %+v", last)
	}
	if sess.State() != StateFailed {
		t.Errorf("Expected failed, got %s", sess.State())
	}
}

func TestRunServiceErrorStatus(t *testing.T) {
	stream := newFakeStream(recvResult{resp: &speechpb.StreamingRecognizeResponse{
		Error: &status.Status{Code: int32(codes.OutOfRange), Message: "exceeded maximum allowed stream duration"},
	}})

	sess := openSession(t, stream)
	events := collect(sess.Run(context.Background(), &endlessSource{}))

	if len(events) != 1 || events[0].Kind != Failed {
		t.Fatalf("Expected a single failed event, got %+v", events)
	}
	if !errors.Is(events[0].Err, shared.ErrRecognitionStream) {
		t.Errorf("Expected ErrRecognitionStream, got %v", events[0].Err)
	}
}

func TestRunCaptureFailure(t *testing.T) {
	stream := newFakeStream()
	source := &endlessSource{err: errors.Join(shared.ErrCapture, errors.New("device unplugged"))}

	sess := openSession(t, stream)
	events := collect(sess.Run(context.Background(), source))

	if len(events) != 1 || events[0].Kind != Failed {
		t.Fatalf("Expected a single failed event, got %+v", events)
	}
	if !errors.Is(events[0].Err, shared.ErrCapture) || !errors.Is(events[0].Err, shared.ErrRecognitionStream) {
		t.Errorf("Expected capture and stream errors, got %v", events[0].Err)
	}
}

func TestRunTwice(t *testing.T) {
	stream := newFakeStream()
	close(stream.responses)

	sess := openSession(t, stream)
	collect(sess.Run(context.Background(), &sliceSource{}))

	events := collect(sess.Run(context.Background(), &sliceSource{}))
	if len(events) != 1 || !errors.Is(events[0].Err, shared.ErrSessionUsed) {
		t.Errorf("Expected ErrSessionUsed, got %+v", events)
	}
}

func TestRunCancelled(t *testing.T) {
	stream := newFakeStream()
	sess := openSession(t, stream)

	ctx, cancel := context.WithCancel(context.Background())
	events := sess.Run(ctx, &endlessSource{})
	cancel()

	for ev := range events {
		if ev.Kind == Failed {
			t.Errorf("Unexpected failure on cancellation: %v", ev.Err)
		}
	}
	if sess.State() != StateStopped {
		t.Errorf("Expected stopped, got %s", sess.State())
	}
}

func TestOpenErrors(t *testing.T) {
	_, err := NewRecognizer(&fakeDialer{}, Config{}, testLogger())
	if !errors.Is(err, shared.ErrConfiguration) {
		t.Errorf("Expected ErrConfiguration for empty config, got %v", err)
	}

	rec, err := NewRecognizer(&fakeDialer{err: errors.New("connection refused")}, DefaultConfig(), testLogger())
	if err != nil {
		t.Fatalf("NewRecognizer failed: %v", err)
	}
	if _, err := rec.Open(context.Background()); !errors.Is(err, shared.ErrRecognitionStream) {
		t.Errorf("Expected ErrRecognitionStream, got %v", err)
	}
}
