package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/Ali-AlHumidi/speechbridge/internal/audio"
	"github.com/Ali-AlHumidi/speechbridge/internal/metrics"
	"github.com/Ali-AlHumidi/speechbridge/internal/shared"
	"github.com/Ali-AlHumidi/speechbridge/internal/synthesis"
	"github.com/Ali-AlHumidi/speechbridge/internal/translation"
)

// Outcome is the result of processing one final transcript
type Outcome int

const (
	Played Outcome = iota
	Skipped
	TranslationFailed
	SynthesisFailed
	PlaybackFailed
)

func (o Outcome) String() string {
	switch o {
	case Played:
		return "played"
	case Skipped:
		return "skipped"
	case TranslationFailed:
		return "translation_failed"
	case SynthesisFailed:
		return "synthesis_failed"
	case PlaybackFailed:
		return "playback_failed"
	default:
		return "unknown"
	}
}

// Services are the external collaborators of the fan-out
type Services struct {
	Translator  translation.Translator
	Synthesizer synthesis.Synthesizer
	Player      audio.Player
}

// StageStats contains per-session fan-out counters
type StageStats struct {
	Finals              uint64 `json:"finals"`
	Played              uint64 `json:"played"`
	Skipped             uint64 `json:"skipped"`
	TranslationFailures uint64 `json:"translation_failures"`
	SynthesisFailures   uint64 `json:"synthesis_failures"`
	PlaybackFailures    uint64 `json:"playback_failures"`
}

// StageConfig identifies the session a Stage serves
type StageConfig struct {
	Target    string
	SessionID string
	// RequestTimeout bounds each translation and synthesis call; zero disables it
	RequestTimeout time.Duration
}

// Stage translates, synthesizes and plays final transcripts for one session
type Stage struct {
	services  Services
	target    string
	sessionID string
	timeout   time.Duration
	activity  *ActivityLog
	metrics   *metrics.Metrics
	logger    *slog.Logger

	finals              atomic.Uint64
	played              atomic.Uint64
	skipped             atomic.Uint64
	translationFailures atomic.Uint64
	synthesisFailures   atomic.Uint64
	playbackFailures    atomic.Uint64
}

// NewStage creates the fan-out stage of a session
func NewStage(services Services, config StageConfig, activity *ActivityLog, m *metrics.Metrics, logger *slog.Logger) *Stage {
	return &Stage{
		services:  services,
		target:    config.Target,
		sessionID: config.SessionID,
		timeout:   config.RequestTimeout,
		activity:  activity,
		metrics:   m,
		logger:    logger,
	}
}

// Process runs one transcript through translation, synthesis and playback.
// Steps run strictly in order and a failed step drops the transcript without
// affecting later ones.
func (s *Stage) Process(ctx context.Context, transcript string) Outcome {
	s.finals.Add(1)
	received := time.Now()

	transcript = strings.TrimSpace(transcript)
	if transcript == "" {
		s.skipped.Add(1)
		return Skipped
	}

	s.activity.Append(s.sessionID, EntryTranscript, "Transcript: "+transcript)

	start := time.Now()
	translated, err := s.translate(ctx, transcript)
	if err != nil {
		s.metrics.RecordStageFailure(metrics.StageTranslation, time.Since(start).Seconds())
		s.translationFailures.Add(1)
		s.fail("Translation error", err)
		return TranslationFailed
	}
	s.metrics.RecordStageSuccess(metrics.StageTranslation, time.Since(start).Seconds())

	if strings.TrimSpace(translated) == "" {
		s.skipped.Add(1)
		return Skipped
	}

	s.activity.Append(s.sessionID, EntryTranslation, fmt.Sprintf("Translated (%s): %s", s.target, translated))

	start = time.Now()
	clip, err := s.synthesize(ctx, translated)
	if err != nil {
		s.metrics.RecordStageFailure(metrics.StageSynthesis, time.Since(start).Seconds())
		s.synthesisFailures.Add(1)
		s.fail("Synthesis error", err)
		return SynthesisFailed
	}
	s.metrics.RecordStageSuccess(metrics.StageSynthesis, time.Since(start).Seconds())

	start = time.Now()
	err = s.play(ctx, clip)
	if err != nil {
		s.metrics.RecordStageFailure(metrics.StagePlayback, time.Since(start).Seconds())
		s.playbackFailures.Add(1)
		s.fail("Playback error", err)
		return PlaybackFailed
	}
	s.metrics.RecordStageSuccess(metrics.StagePlayback, time.Since(start).Seconds())
	s.metrics.RecordEventLatency(time.Since(received).Seconds())

	s.played.Add(1)
	return Played
}

func (s *Stage) translate(ctx context.Context, text string) (string, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.services.Translator.Translate(ctx, text, s.target)
}

func (s *Stage) synthesize(ctx context.Context, text string) (*audio.SynthesizedAudio, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	clip, err := s.services.Synthesizer.Synthesize(ctx, text, s.target)
	if err == nil && clip == nil {
		err = fmt.Errorf("%w: no audio returned", shared.ErrSynthesis)
	}
	return clip, err
}

func (s *Stage) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

// play renders the clip and releases it whatever the result
func (s *Stage) play(ctx context.Context, clip *audio.SynthesizedAudio) error {
	defer clip.Release()
	return s.services.Player.Play(ctx, clip)
}

func (s *Stage) fail(prefix string, err error) {
	s.activity.Append(s.sessionID, EntryError, fmt.Sprintf("%s: %v", prefix, err))
}

// Stats returns per-session fan-out counters
func (s *Stage) Stats() StageStats {
	return StageStats{
		Finals:              s.finals.Load(),
		Played:              s.played.Load(),
		Skipped:             s.skipped.Load(),
		TranslationFailures: s.translationFailures.Load(),
		SynthesisFailures:   s.synthesisFailures.Load(),
		PlaybackFailures:    s.playbackFailures.Load(),
	}
}
