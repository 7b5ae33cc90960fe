package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/Ali-AlHumidi/speechbridge/internal/audio"
	"github.com/Ali-AlHumidi/speechbridge/internal/config"
	"github.com/Ali-AlHumidi/speechbridge/internal/metrics"
	"github.com/Ali-AlHumidi/speechbridge/internal/pipeline"
	"github.com/Ali-AlHumidi/speechbridge/internal/recognition"
	"github.com/Ali-AlHumidi/speechbridge/internal/synthesis"
	"github.com/Ali-AlHumidi/speechbridge/internal/translation"
)

// app holds the wired service graph
type app struct {
	config     *config.Config
	logger     *slog.Logger
	registry   *prometheus.Registry
	metrics    *metrics.Metrics
	controller *pipeline.Controller

	dialer      *recognition.GoogleDialer
	translator  *translation.GoogleTranslator
	synthesizer *synthesis.GoogleSynthesizer
}

// newApp creates the Google clients and the session controller. No audio
// device is opened until a session starts.
func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	opts, err := cfg.ClientOptions()
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	appMetrics := metrics.NewMetrics(registry)

	a := &app{
		config:   cfg,
		logger:   logger,
		registry: registry,
		metrics:  appMetrics,
	}

	a.dialer, err = recognition.NewGoogleDialer(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create speech client: %w", err)
	}

	recognizer, err := recognition.NewRecognizer(a.dialer, cfg.Recognition, logger)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.translator, err = translation.NewGoogleTranslator(ctx, cfg.Translation.Config, logger, opts...)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to create translation client: %w", err)
	}

	a.synthesizer, err = synthesis.NewGoogleSynthesizer(ctx, cfg.Synthesis, logger, opts...)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to create text-to-speech client: %w", err)
	}

	services := pipeline.Services{
		Translator:  a.translator,
		Synthesizer: a.synthesizer,
		Player: &audio.PortAudioPlayer{
			Device:          cfg.Playback.Device,
			FramesPerBuffer: cfg.Playback.FramesPerBuffer,
		},
	}

	activity := pipeline.NewActivityLog(cfg.Pipeline.ActivityCapacity, logger)

	a.controller = pipeline.NewController(pipeline.ControllerConfig{
		Capture:        cfg.Capture,
		Targets:        cfg.Translation.Targets,
		RequestTimeout: cfg.Pipeline.GetRequestTimeoutDuration(),
	}, audio.PortAudioOpener{}, recognizer, services, activity, appMetrics, logger)

	logger.Info("Service initialized",
		slog.String("recognition_language", cfg.Recognition.LanguageCode),
		slog.Int("sample_rate", cfg.Capture.SampleRate),
		slog.String("capture_device", deviceLabel(cfg.Capture.Device)),
		slog.String("playback_device", deviceLabel(cfg.Playback.Device)),
		slog.String("voice_gender", cfg.Synthesis.Gender),
		slog.String("output_encoding", cfg.Synthesis.Encoding),
	)

	return a, nil
}

// Shutdown stops the active session and closes the Google clients
func (a *app) Shutdown(ctx context.Context) error {
	var errs []error
	if a.controller != nil {
		if err := a.controller.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("session shutdown: %w", err))
		}
	}
	if err := a.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Close releases the Google clients
func (a *app) Close() error {
	var errs []error
	if a.dialer != nil {
		errs = append(errs, a.dialer.Close())
	}
	if a.translator != nil {
		errs = append(errs, a.translator.Close())
	}
	if a.synthesizer != nil {
		errs = append(errs, a.synthesizer.Close())
	}
	return errors.Join(errs...)
}

func deviceLabel(name string) string {
	if name == "" {
		return "default"
	}
	return name
}
