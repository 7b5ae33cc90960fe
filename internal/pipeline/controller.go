package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Ali-AlHumidi/speechbridge/internal/audio"
	"github.com/Ali-AlHumidi/speechbridge/internal/metrics"
	"github.com/Ali-AlHumidi/speechbridge/internal/recognition"
	"github.com/Ali-AlHumidi/speechbridge/internal/session"
	"github.com/Ali-AlHumidi/speechbridge/internal/shared"
	"github.com/Ali-AlHumidi/speechbridge/internal/translation"
)

// Session states reported by Status
const (
	StateStarting  = "starting"
	StateListening = "listening"
	StateStopping  = "stopping"
	StateStopped   = "stopped"
)

// ControllerConfig contains session parameters
type ControllerConfig struct {
	Capture audio.CaptureConfig
	// Targets is the enumerated set of selectable target languages
	Targets        []string
	RequestTimeout time.Duration
}

// Status is a snapshot of the controller
type Status struct {
	State     string            `json:"state"`
	SessionID string            `json:"session_id,omitempty"`
	Target    string            `json:"target,omitempty"`
	StartedAt *time.Time        `json:"started_at,omitempty"`
	EndedAt   *time.Time        `json:"ended_at,omitempty"`
	LastError string            `json:"last_error,omitempty"`
	Capture   audio.SourceStats `json:"capture"`
	Stage     StageStats        `json:"stage"`
}

// run is the state of one active session. The devices and the stage are
// set once starting is cleared.
type run struct {
	handle   *session.Handle
	target   string
	starting bool
	source   *audio.Source
	recog    *recognition.Session
	stage    *Stage
	cancel   context.CancelFunc
	done     chan struct{}
	endedAt  time.Time
	// failure is the stream failure, kept even when it arrives after Stop
	failure error
}

// Controller starts and stops translation sessions. At most one session owns
// the audio devices at any time.
type Controller struct {
	config     ControllerConfig
	opener     audio.Opener
	recognizer *recognition.Recognizer
	services   Services
	activity   *ActivityLog
	metrics    *metrics.Metrics
	logger     *slog.Logger

	mu        sync.Mutex
	active    *run
	last      *run
	lastError error
}

// NewController creates a controller. No device is opened until Start.
func NewController(config ControllerConfig, opener audio.Opener, recognizer *recognition.Recognizer,
	services Services, activity *ActivityLog, m *metrics.Metrics, logger *slog.Logger) *Controller {
	if len(config.Targets) == 0 {
		config.Targets = translation.DefaultTargets
	}
	return &Controller{
		config:     config,
		opener:     opener,
		recognizer: recognizer,
		services:   services,
		activity:   activity,
		metrics:    m,
		logger:     logger,
	}
}

// Languages returns the selectable target languages
func (c *Controller) Languages() []translation.Language {
	return translation.Describe(c.config.Targets)
}

// Activity returns the activity log
func (c *Controller) Activity() *ActivityLog {
	return c.activity
}

// Start begins a session translating into target and returns once the
// devices and the recognition stream are open. It returns
// shared.ErrSessionActive without opening anything when a session is running
// or starting. The slot is reserved before the devices are opened, so Status
// and Stop do not wait on the dial.
func (c *Controller) Start(target string) error {
	if err := translation.ValidateTarget(target, c.config.Targets); err != nil {
		return err
	}

	c.mu.Lock()
	if c.active != nil {
		c.mu.Unlock()
		c.metrics.RecordSessionRejected()
		return shared.ErrSessionActive
	}
	ctx, cancel := context.WithCancel(context.Background())
	r := &run{
		handle:   session.New(),
		target:   target,
		starting: true,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	c.active = r
	c.lastError = nil
	c.mu.Unlock()

	logger := c.logger.With(slog.String("session_id", r.handle.ID()))

	source, recog, err := c.open(ctx, r.handle, logger)
	if err != nil {
		cancel()
		return c.abortStart(r, err)
	}

	stage := NewStage(c.services, StageConfig{
		Target:         target,
		SessionID:      r.handle.ID(),
		RequestTimeout: c.config.RequestTimeout,
	}, c.activity, c.metrics, logger)

	c.mu.Lock()
	r.source = source
	r.recog = recog
	r.stage = stage
	r.starting = false
	c.mu.Unlock()
	c.metrics.RecordSessionStarted()

	c.activity.Append(r.handle.ID(), EntryStatus, fmt.Sprintf("Listening, translating into %s", target))

	// A Stop that arrived while starting ends the session at its first read
	go c.runSession(ctx, r, logger)

	return nil
}

// open acquires the microphone and the recognition stream of a session
func (c *Controller) open(ctx context.Context, handle *session.Handle, logger *slog.Logger) (*audio.Source, *recognition.Session, error) {
	source, err := audio.OpenSource(c.opener, c.config.Capture, handle, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open microphone: %w", err)
	}

	recog, err := c.recognizer.Open(ctx)
	if err != nil {
		source.Close()
		return nil, nil, fmt.Errorf("failed to open recognition stream: %w", err)
	}
	return source, recog, nil
}

// abortStart releases the reserved slot after a failed start
func (c *Controller) abortStart(r *run, err error) error {
	r.handle.Fail(err)

	c.mu.Lock()
	if c.active == r {
		c.active = nil
	}
	c.lastError = err
	c.mu.Unlock()

	c.activity.Append(r.handle.ID(), EntryError, err.Error())
	close(r.done)
	return err
}

// runSession consumes recognition events until the stream ends
func (c *Controller) runSession(ctx context.Context, r *run, logger *slog.Logger) {
	defer c.finishSession(r, logger)

	for ev := range r.recog.Run(ctx, r.source) {
		c.metrics.RecordRecognitionEvent(ev.Kind.String())

		switch ev.Kind {
		case recognition.Partial:
			logger.Debug("Partial transcript",
				slog.String("transcript", ev.Transcript),
				slog.Float64("stability", float64(ev.Stability)))
		case recognition.Final:
			outcome := r.stage.Process(ctx, ev.Transcript)
			logger.Debug("Processed final transcript", slog.String("outcome", outcome.String()))
		case recognition.Failed:
			// Fail is a no-op once Stop was requested; the error is still reported
			r.handle.Fail(ev.Err)
			r.failure = ev.Err
			c.activity.Append(r.handle.ID(), EntryError, fmt.Sprintf("Session error: %v", ev.Err))
		}
	}
}

// finishSession releases every resource of r and frees the active slot
func (c *Controller) finishSession(r *run, logger *slog.Logger) {
	if err := r.source.Close(); err != nil {
		logger.Warn("Failed to close microphone", slog.String("error", err.Error()))
	}
	r.recog.Close()
	r.cancel()
	r.handle.Stop()

	stats := r.source.Stats()
	c.metrics.RecordFrames(stats.Frames, stats.Overflows)

	err := r.failure
	if err == nil {
		err = r.handle.Err()
	}
	failed := err != nil && shared.IsSessionFatal(err)
	c.metrics.RecordSessionEnded(time.Since(r.handle.StartedAt()).Seconds(), failed)

	c.mu.Lock()
	r.endedAt = time.Now()
	if c.active == r {
		c.active = nil
	}
	c.last = r
	if err != nil {
		c.lastError = err
	}
	c.mu.Unlock()

	c.activity.Append(r.handle.ID(), EntryStatus, "Stopped listening")
	logger.Info("Session finished",
		slog.Uint64("frames", stats.Frames),
		slog.Uint64("played", r.stage.Stats().Played))

	close(r.done)
}

// Stop requests the active session to end. The in-flight transcript, if
// any, finishes first. It returns true only for the request that stopped
// the session.
func (c *Controller) Stop() bool {
	c.mu.Lock()
	r := c.active
	c.mu.Unlock()

	if r == nil {
		return false
	}
	if !r.handle.Stop() {
		return false
	}

	c.activity.Append(r.handle.ID(), EntryStatus, "Stopping")
	return true
}

// Wait blocks until the current session, if any, has released its devices
func (c *Controller) Wait(ctx context.Context) error {
	c.mu.Lock()
	r := c.active
	c.mu.Unlock()

	if r == nil {
		return nil
	}

	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown stops the active session and waits for it. When ctx expires the
// in-flight calls are cancelled.
func (c *Controller) Shutdown(ctx context.Context) error {
	c.Stop()

	err := c.Wait(ctx)
	if !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled) {
		return err
	}

	c.mu.Lock()
	r := c.active
	c.mu.Unlock()
	if r == nil {
		return nil
	}

	r.cancel()
	<-r.done
	return err
}

// Status returns a snapshot of the active or most recent session
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	status := Status{State: StateStopped}
	if c.lastError != nil {
		status.LastError = c.lastError.Error()
	}

	r := c.active
	if r != nil {
		switch {
		case r.starting:
			status.State = StateStarting
		case !r.handle.Running():
			status.State = StateStopping
		default:
			status.State = StateListening
		}
	} else {
		r = c.last
	}
	if r == nil {
		return status
	}

	startedAt := r.handle.StartedAt()
	status.SessionID = r.handle.ID()
	status.Target = r.target
	status.StartedAt = &startedAt
	if !r.endedAt.IsZero() {
		endedAt := r.endedAt
		status.EndedAt = &endedAt
	}
	if r.starting {
		return status
	}
	status.Capture = r.source.Stats()
	status.Stage = r.stage.Stats()

	return status
}
