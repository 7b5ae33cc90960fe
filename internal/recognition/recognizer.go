package recognition

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"cloud.google.com/go/speech/apiv1/speechpb"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc/codes"

	"github.com/Ali-AlHumidi/speechbridge/internal/shared"
)

const eventBuffer = 32

// Dialer opens a streaming recognition call
type Dialer interface {
	Dial(ctx context.Context) (Stream, error)
}

// Recognizer opens recognition sessions with a fixed configuration
type Recognizer struct {
	dialer Dialer
	config Config
	logger *slog.Logger
}

// NewRecognizer creates a recognizer over dialer
func NewRecognizer(dialer Dialer, config Config, logger *slog.Logger) (*Recognizer, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("%w: recognition: %v", shared.ErrConfiguration, err)
	}
	return &Recognizer{
		dialer: dialer,
		config: config,
		logger: logger,
	}, nil
}

// Config returns the recognition configuration
func (r *Recognizer) Config() Config {
	return r.config
}

// Open dials a streaming call and sends the configuration message. The
// returned session stays idle until Run.
func (r *Recognizer) Open(ctx context.Context) (*Session, error) {
	streamCtx, cancel := context.WithCancel(ctx)

	stream, err := r.dialer.Dial(streamCtx)
	if err != nil {
		cancel()
		if errors.Is(err, shared.ErrConfiguration) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: dial: %v", shared.ErrRecognitionStream, err)
	}

	if err := stream.Send(r.config.configRequest()); err != nil {
		cancel()
		return nil, fmt.Errorf("%w: send config: %v", shared.ErrRecognitionStream, err)
	}

	r.logger.Debug("Recognition stream opened",
		slog.String("language", r.config.LanguageCode),
		slog.Int("sample_rate", r.config.SampleRate))

	return &Session{
		stream: stream,
		cancel: cancel,
		logger: r.logger,
	}, nil
}

// Session is one streaming recognition call. It can be run once.
type Session struct {
	stream Stream
	cancel context.CancelFunc
	logger *slog.Logger

	state atomic.Int32
	used  atomic.Bool

	framesSent atomic.Uint64
	partials   atomic.Uint64
	finals     atomic.Uint64
}

// SessionStats contains per-call counters
type SessionStats struct {
	FramesSent uint64 `json:"frames_sent"`
	Partials   uint64 `json:"partials"`
	Finals     uint64 `json:"finals"`
}

// State returns the current lifecycle state
func (s *Session) State() State {
	return State(s.state.Load())
}

// Stats returns per-call counters
func (s *Session) Stats() SessionStats {
	return SessionStats{
		FramesSent: s.framesSent.Load(),
		Partials:   s.partials.Load(),
		Finals:     s.finals.Load(),
	}
}

// Close tears down the underlying call. It is safe after Run has finished.
func (s *Session) Close() {
	s.cancel()
}

// Run streams frames to the service and returns the events it produces. The
// channel is closed when the call ends; a failure is delivered as a final
// event of kind Failed. The caller must drain the channel.
func (s *Session) Run(ctx context.Context, frames FrameSource) <-chan Event {
	events := make(chan Event, eventBuffer)

	if s.used.Swap(true) {
		events <- Event{Kind: Failed, Err: shared.ErrSessionUsed, Received: time.Now()}
		close(events)
		return events
	}

	s.state.Store(int32(StateStreaming))

	go func() {
		defer close(events)

		g, gctx := errgroup.WithContext(ctx)
		// Unblocks Recv when either side fails or the caller cancels.
		stopCancel := context.AfterFunc(gctx, s.cancel)
		defer stopCancel()

		g.Go(func() error {
			return s.send(gctx, frames)
		})
		g.Go(func() error {
			return s.receive(gctx, events)
		})

		err := g.Wait()
		s.cancel()

		switch {
		case err == nil, ctx.Err() != nil && !errors.Is(err, shared.ErrCapture):
			s.state.Store(int32(StateStopped))
			s.logger.Debug("Recognition stream ended",
				slog.Uint64("frames_sent", s.framesSent.Load()),
				slog.Uint64("finals", s.finals.Load()))
		default:
			s.state.Store(int32(StateFailed))
			s.logger.Warn("Recognition stream failed", slog.String("error", err.Error()))
			events <- Event{Kind: Failed, Err: err, Received: time.Now()}
		}
	}()

	return events
}

// send pulls frames until the source ends, then half-closes the call
func (s *Session) send(ctx context.Context, frames FrameSource) error {
	for {
		if ctx.Err() != nil {
			return nil
		}

		frame, err := frames.Next()
		if errors.Is(err, io.EOF) {
			if err := s.stream.CloseSend(); err != nil {
				return fmt.Errorf("%w: close send: %v", shared.ErrRecognitionStream, err)
			}
			return nil
		}
		if err != nil {
			return fmt.Errorf("%w: %w", shared.ErrRecognitionStream, err)
		}

		if err := s.stream.Send(audioRequest(frame.Data)); err != nil {
			// The call is gone; the receiver reports its status.
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("%w: send audio: %v", shared.ErrRecognitionStream, err)
		}
		s.framesSent.Add(1)
	}
}

// receive converts responses into events until the service closes the call
func (s *Session) receive(ctx context.Context, events chan<- Event) error {
	for {
		resp, err := s.stream.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%w: receive: %v", shared.ErrRecognitionStream, err)
		}

		if st := resp.GetError(); st != nil && codes.Code(st.GetCode()) != codes.OK {
			return fmt.Errorf("%w: service error %s: %s",
				shared.ErrRecognitionStream, codes.Code(st.GetCode()), st.GetMessage())
		}

		for _, result := range resp.GetResults() {
			ev, ok := eventFromResult(result)
			if !ok {
				continue
			}

			if ev.Kind == Final {
				s.finals.Add(1)
			} else {
				s.partials.Add(1)
			}

			select {
			case events <- ev:
			case <-ctx.Done():
				return nil
			}
		}
	}
}

// eventFromResult uses the first alternative only
func eventFromResult(result *speechpb.StreamingRecognitionResult) (Event, bool) {
	alternatives := result.GetAlternatives()
	if len(alternatives) == 0 {
		return Event{}, false
	}

	kind := Partial
	if result.GetIsFinal() {
		kind = Final
	}

	return Event{
		Kind:       kind,
		Transcript: alternatives[0].GetTranscript(),
		Stability:  result.GetStability(),
		Confidence: alternatives[0].GetConfidence(),
		Received:   time.Now(),
	}, true
}
