package audio

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Ali-AlHumidi/speechbridge/internal/shared"
)

// ErrOverflow is returned by a Device when the input buffer overran before
// the read. The returned frame is still valid.
var ErrOverflow = errors.New("input overflowed")

// Device is an opened capture device that yields one frame per Read
type Device interface {
	// Read blocks until exactly one frame of PCM16LE samples is available
	Read() ([]byte, error)
	Close() error
}

// Opener opens capture devices. Open fails with shared.ErrDeviceUnavailable
// when the device cannot be acquired.
type Opener interface {
	Open(cfg CaptureConfig) (Device, error)
}

// RunState is the run flag a Source checks before every pull
type RunState interface {
	Running() bool
}

// DefaultMaxReadErrors is the number of consecutive failed reads after which
// the device is considered lost
const DefaultMaxReadErrors = 5

// CaptureConfig contains microphone capture parameters
type CaptureConfig struct {
	Device          string `yaml:"device"`
	SampleRate      int    `yaml:"sample_rate"`
	Channels        int    `yaml:"channels"`
	FramesPerBuffer int    `yaml:"frames_per_buffer"`
	// MaxReadErrors is how many consecutive read failures are skipped before
	// capture fails; zero selects DefaultMaxReadErrors
	MaxReadErrors int `yaml:"max_read_errors"`
}

// WithDefaults fills zero fields with the default capture parameters
func (c CaptureConfig) WithDefaults() CaptureConfig {
	if c.SampleRate == 0 {
		c.SampleRate = DefaultSampleRate
	}
	if c.Channels == 0 {
		c.Channels = DefaultChannels
	}
	if c.FramesPerBuffer == 0 {
		c.FramesPerBuffer = DefaultFramesPerBuffer
	}
	if c.MaxReadErrors == 0 {
		c.MaxReadErrors = DefaultMaxReadErrors
	}
	return c
}

// Validate validates capture configuration
func (c CaptureConfig) Validate() error {
	if c.SampleRate < 8000 || c.SampleRate > 48000 {
		return fmt.Errorf("sample rate must be between 8000 and 48000, got %d", c.SampleRate)
	}
	if c.Channels != 1 {
		return fmt.Errorf("only mono capture is supported, got %d channels", c.Channels)
	}
	if c.FramesPerBuffer <= 0 {
		return fmt.Errorf("frames per buffer must be positive, got %d", c.FramesPerBuffer)
	}
	if c.MaxReadErrors < 0 {
		return fmt.Errorf("max read errors cannot be negative, got %d", c.MaxReadErrors)
	}
	return nil
}

// Format returns the PCM format of frames produced with this configuration
func (c CaptureConfig) Format() Format {
	return PCM16Mono(c.SampleRate)
}

// SourceStats contains capture counters
type SourceStats struct {
	Frames     uint64 `json:"frames"`
	Bytes      uint64 `json:"bytes"`
	Overflows  uint64 `json:"overflows"`
	ReadErrors uint64 `json:"read_errors"`
}

// Source is a cancellable frame producer bound to one session. It owns the
// opened device until Close.
type Source struct {
	device Device
	state  RunState
	config CaptureConfig
	logger *slog.Logger

	seq        uint64
	failedRun  int
	frames     atomic.Uint64
	bytes      atomic.Uint64
	overflows  atomic.Uint64
	readErrors atomic.Uint64

	closeOnce sync.Once
	closeErr  error
	closed    bool

	mu sync.Mutex
}

// OpenSource opens the configured device and binds it to state
func OpenSource(opener Opener, cfg CaptureConfig, state RunState, logger *slog.Logger) (*Source, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrConfiguration, err)
	}

	device, err := opener.Open(cfg)
	if err != nil {
		if errors.Is(err, shared.ErrDeviceUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", shared.ErrDeviceUnavailable, err)
	}

	logger.Info("Audio capture opened",
		slog.String("device", displayName(cfg.Device)),
		slog.Int("sample_rate", cfg.SampleRate),
		slog.Int("frames_per_buffer", cfg.FramesPerBuffer))

	return &Source{
		device: device,
		state:  state,
		config: cfg,
		logger: logger,
	}, nil
}

// Config returns the effective capture configuration
func (s *Source) Config() CaptureConfig {
	return s.config
}

// Next pulls the next frame. It returns io.EOF once the run state reports
// stopped or the source has been closed; a read already in flight completes.
// A failed read is skipped; MaxReadErrors consecutive failures are reported
// as shared.ErrCapture.
func (s *Source) Next() (Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var data []byte
	for {
		if s.closed || !s.state.Running() {
			return Frame{}, io.EOF
		}

		var err error
		data, err = s.device.Read()
		if err == nil || errors.Is(err, ErrOverflow) {
			if err != nil {
				s.logger.Debug("Audio input overflowed", slog.Uint64("overflows", s.overflows.Add(1)))
			}
			s.failedRun = 0
			break
		}

		s.readErrors.Add(1)
		s.failedRun++
		if s.failedRun >= s.config.MaxReadErrors {
			return Frame{}, fmt.Errorf("%w: device lost after %d consecutive read errors: %v",
				shared.ErrCapture, s.failedRun, err)
		}
		s.logger.Warn("Audio read failed, skipping frame",
			slog.Int("consecutive", s.failedRun),
			slog.String("error", err.Error()))
	}

	s.seq++
	s.frames.Add(1)
	s.bytes.Add(uint64(len(data)))

	return Frame{Data: data, Seq: s.seq, Captured: time.Now()}, nil
}

// Close releases the device. Only the first call closes it.
func (s *Source) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()

		s.closeErr = s.device.Close()
		s.logger.Info("Audio capture closed",
			slog.Uint64("frames", s.frames.Load()),
			slog.Uint64("overflows", s.overflows.Load()))
	})
	return s.closeErr
}

// Stats returns capture counters. It does not wait for a read in flight.
func (s *Source) Stats() SourceStats {
	return SourceStats{
		Frames:     s.frames.Load(),
		Bytes:      s.bytes.Load(),
		Overflows:  s.overflows.Load(),
		ReadErrors: s.readErrors.Load(),
	}
}

func displayName(device string) string {
	if device == "" {
		return "default"
	}
	return device
}
