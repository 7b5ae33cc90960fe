package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"google.golang.org/api/option"
	"gopkg.in/yaml.v3"

	"github.com/Ali-AlHumidi/speechbridge/internal/audio"
	"github.com/Ali-AlHumidi/speechbridge/internal/recognition"
	"github.com/Ali-AlHumidi/speechbridge/internal/shared"
	"github.com/Ali-AlHumidi/speechbridge/internal/synthesis"
	"github.com/Ali-AlHumidi/speechbridge/internal/translation"
)

// CredentialsEnv names the environment variable holding the path of the
// Google service account key
const CredentialsEnv = "GOOGLE_CREDENTIALS_PATH"

// Config represents the complete service configuration
type Config struct {
	Google      GoogleConfig        `yaml:"google"`
	Capture     audio.CaptureConfig `yaml:"capture"`
	Recognition recognition.Config  `yaml:"recognition"`
	Translation TranslationConfig   `yaml:"translation"`
	Synthesis   synthesis.Config    `yaml:"synthesis"`
	Playback    PlaybackConfig      `yaml:"playback"`
	Pipeline    PipelineConfig      `yaml:"pipeline"`
	HTTP        HTTPConfig          `yaml:"http"`
	Logging     LoggingConfig       `yaml:"logging"`
}

// GoogleConfig contains Google Cloud client settings
type GoogleConfig struct {
	// CredentialsFile is used when GOOGLE_CREDENTIALS_PATH is not set
	CredentialsFile string `yaml:"credentials_file"`
}

// TranslationConfig contains translation settings and the selectable targets
type TranslationConfig struct {
	translation.Config `yaml:",inline"`
	Targets            []string `yaml:"targets"`
	DefaultTarget      string   `yaml:"default_target"`
}

// PlaybackConfig contains output device settings
type PlaybackConfig struct {
	// Device selects the output by name, e.g. "BlackHole 2ch"; empty is the default output
	Device          string `yaml:"device"`
	FramesPerBuffer int    `yaml:"frames_per_buffer"`
}

// PipelineConfig contains fan-out settings
type PipelineConfig struct {
	RequestTimeout   int `yaml:"request_timeout"` // seconds
	ActivityCapacity int `yaml:"activity_capacity"`
}

// HTTPConfig contains HTTP control API configuration
type HTTPConfig struct {
	Port            int    `yaml:"port"`
	Address         string `yaml:"address"`
	ShutdownTimeout int    `yaml:"shutdown_timeout"` // seconds
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Default returns a configuration that runs without a file: 16 kHz mono
// capture on the default microphone, US English recognition and playback on
// the default output.
func Default() *Config {
	return &Config{
		Capture: audio.CaptureConfig{
			SampleRate:      audio.DefaultSampleRate,
			Channels:        audio.DefaultChannels,
			FramesPerBuffer: audio.DefaultFramesPerBuffer,
			MaxReadErrors:   audio.DefaultMaxReadErrors,
		},
		Recognition: recognition.DefaultConfig(),
		Translation: TranslationConfig{
			Targets:       append([]string(nil), translation.DefaultTargets...),
			DefaultTarget: "es",
		},
		Synthesis: synthesis.DefaultConfig(),
		Playback: PlaybackConfig{
			FramesPerBuffer: audio.DefaultFramesPerBuffer,
		},
		Pipeline: PipelineConfig{
			RequestTimeout:   15,
			ActivityCapacity: 500,
		},
		HTTP: HTTPConfig{
			Port:            8080,
			Address:         "127.0.0.1",
			ShutdownTimeout: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
	}
}

// Load reads and parses the configuration file. Keys missing from the file
// keep their default values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// Validate performs comprehensive validation of the configuration
func (c *Config) Validate() error {
	if err := c.Capture.Validate(); err != nil {
		return fmt.Errorf("capture config: %w", err)
	}

	if err := c.Recognition.Validate(); err != nil {
		return fmt.Errorf("recognition config: %w", err)
	}

	if c.Recognition.SampleRate != c.Capture.SampleRate {
		return fmt.Errorf("recognition sample_rate %d must match capture sample_rate %d",
			c.Recognition.SampleRate, c.Capture.SampleRate)
	}

	if err := c.Translation.Validate(); err != nil {
		return fmt.Errorf("translation config: %w", err)
	}

	if err := c.Synthesis.Validate(); err != nil {
		return fmt.Errorf("synthesis config: %w", err)
	}

	if err := c.Playback.Validate(); err != nil {
		return fmt.Errorf("playback config: %w", err)
	}

	if err := c.Pipeline.Validate(); err != nil {
		return fmt.Errorf("pipeline config: %w", err)
	}

	if err := c.HTTP.Validate(); err != nil {
		return fmt.Errorf("http config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

// Validate validates translation configuration
func (t *TranslationConfig) Validate() error {
	if err := t.Config.Validate(); err != nil {
		return err
	}

	if len(t.Targets) == 0 {
		return fmt.Errorf("targets cannot be empty")
	}

	for _, target := range t.Targets {
		if err := translation.ValidateTarget(target, nil); err != nil {
			return err
		}
	}

	if t.DefaultTarget != "" {
		if err := translation.ValidateTarget(t.DefaultTarget, t.Targets); err != nil {
			return fmt.Errorf("default_target: %w", err)
		}
	}

	return nil
}

// Validate validates playback configuration
func (p *PlaybackConfig) Validate() error {
	if p.FramesPerBuffer < 0 {
		return fmt.Errorf("frames_per_buffer cannot be negative, got %d", p.FramesPerBuffer)
	}
	return nil
}

// Validate validates pipeline configuration
func (p *PipelineConfig) Validate() error {
	if p.RequestTimeout < 0 {
		return fmt.Errorf("request_timeout cannot be negative, got %d", p.RequestTimeout)
	}
	if p.ActivityCapacity < 1 {
		return fmt.Errorf("activity_capacity must be at least 1, got %d", p.ActivityCapacity)
	}
	return nil
}

// Validate validates HTTP configuration
func (h *HTTPConfig) Validate() error {
	if h.Port < 1 || h.Port > 65535 {
		return fmt.Errorf("http port must be between 1 and 65535, got %d", h.Port)
	}

	if h.Address == "" {
		return fmt.Errorf("http address cannot be empty")
	}

	if h.ShutdownTimeout < 1 {
		return fmt.Errorf("shutdown_timeout must be at least 1 second, got %d", h.ShutdownTimeout)
	}

	return nil
}

// Validate validates logging configuration
func (l *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[l.Level] {
		return fmt.Errorf("level must be one of [debug, info, warn, error], got '%s'", l.Level)
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("format must be 'json' or 'text', got '%s'", l.Format)
	}

	return nil
}

// Addr returns the listen address of the HTTP API
func (h *HTTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", h.Address, h.Port)
}

// GetShutdownTimeoutDuration returns the shutdown timeout as a time.Duration
func (h *HTTPConfig) GetShutdownTimeoutDuration() time.Duration {
	return time.Duration(h.ShutdownTimeout) * time.Second
}

// GetRequestTimeoutDuration returns the per-call timeout of translation and
// synthesis requests; zero means no timeout
func (p *PipelineConfig) GetRequestTimeoutDuration() time.Duration {
	return time.Duration(p.RequestTimeout) * time.Second
}

// LoadCredentials resolves the service account key file from the
// environment, falling back to the config file
func (c *Config) LoadCredentials() (string, error) {
	path := strings.TrimSpace(os.Getenv(CredentialsEnv))
	if path == "" {
		path = c.Google.CredentialsFile
	}
	if path == "" {
		return "", fmt.Errorf("%w: %s is not set", shared.ErrConfiguration, CredentialsEnv)
	}

	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("%w: credentials file: %v", shared.ErrConfiguration, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("%w: credentials path %s is a directory", shared.ErrConfiguration, path)
	}

	return path, nil
}

// ClientOptions returns the Google client options carrying the credentials
func (c *Config) ClientOptions() ([]option.ClientOption, error) {
	path, err := c.LoadCredentials()
	if err != nil {
		return nil, err
	}
	return []option.ClientOption{option.WithCredentialsFile(path)}, nil
}
