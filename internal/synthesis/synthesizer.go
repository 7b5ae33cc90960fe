package synthesis

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	texttospeech "cloud.google.com/go/texttospeech/apiv1"
	"cloud.google.com/go/texttospeech/apiv1/texttospeechpb"
	gax "github.com/googleapis/gax-go/v2"
	"google.golang.org/api/option"

	"github.com/Ali-AlHumidi/speechbridge/internal/audio"
	"github.com/Ali-AlHumidi/speechbridge/internal/shared"
)

// Synthesizer converts text into an encoded audio clip
type Synthesizer interface {
	Synthesize(ctx context.Context, text, languageCode string) (*audio.SynthesizedAudio, error)
}

// Config contains voice and output format parameters
type Config struct {
	Gender       string  `yaml:"gender"`
	Encoding     string  `yaml:"encoding"`
	SampleRate   int     `yaml:"sample_rate"`
	VoiceName    string  `yaml:"voice_name"`
	SpeakingRate float64 `yaml:"speaking_rate"`
}

// DefaultConfig returns a neutral voice producing 16 kHz LINEAR16
func DefaultConfig() Config {
	return Config{
		Gender:     "NEUTRAL",
		Encoding:   string(audio.EncodingLinear16),
		SampleRate: audio.DefaultSampleRate,
	}
}

// Validate validates synthesis configuration
func (c Config) Validate() error {
	if _, err := c.gender(); err != nil {
		return err
	}
	if _, err := audio.ParseEncoding(c.Encoding); err != nil {
		return err
	}
	if c.SampleRate < 8000 || c.SampleRate > 48000 {
		return fmt.Errorf("sample rate must be between 8000 and 48000, got %d", c.SampleRate)
	}
	if c.SpeakingRate != 0 && (c.SpeakingRate < 0.25 || c.SpeakingRate > 4.0) {
		return fmt.Errorf("speaking rate must be between 0.25 and 4.0, got %.2f", c.SpeakingRate)
	}
	return nil
}

func (c Config) gender() (texttospeechpb.SsmlVoiceGender, error) {
	switch strings.ToUpper(c.Gender) {
	case "", "NEUTRAL":
		return texttospeechpb.SsmlVoiceGender_NEUTRAL, nil
	case "MALE":
		return texttospeechpb.SsmlVoiceGender_MALE, nil
	case "FEMALE":
		return texttospeechpb.SsmlVoiceGender_FEMALE, nil
	default:
		return 0, fmt.Errorf("unknown voice gender %q", c.Gender)
	}
}

// Format returns the descriptor attached to synthesized clips
func (c Config) Format() audio.Format {
	encoding, _ := audio.ParseEncoding(c.Encoding)
	return audio.Format{
		Encoding:      encoding,
		SampleRate:    c.SampleRate,
		Channels:      1,
		BitsPerSample: 16,
	}
}

// client is the subset of *texttospeech.Client used here
type client interface {
	SynthesizeSpeech(ctx context.Context, req *texttospeechpb.SynthesizeSpeechRequest, opts ...gax.CallOption) (*texttospeechpb.SynthesizeSpeechResponse, error)
	Close() error
}

// GoogleSynthesizer calls Google Cloud Text-to-Speech
type GoogleSynthesizer struct {
	client client
	config Config
	gender texttospeechpb.SsmlVoiceGender
	format audio.Format
	logger *slog.Logger
}

// NewGoogleSynthesizer creates a Text-to-Speech client
func NewGoogleSynthesizer(ctx context.Context, config Config, logger *slog.Logger, opts ...option.ClientOption) (*GoogleSynthesizer, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("%w: synthesis: %v", shared.ErrConfiguration, err)
	}

	c, err := texttospeech.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: text-to-speech client: %v", shared.ErrConfiguration, err)
	}
	return newGoogleSynthesizer(c, config, logger), nil
}

func newGoogleSynthesizer(c client, config Config, logger *slog.Logger) *GoogleSynthesizer {
	gender, _ := config.gender()
	return &GoogleSynthesizer{
		client: c,
		config: config,
		gender: gender,
		format: config.Format(),
		logger: logger,
	}
}

// Synthesize implements Synthesizer
func (s *GoogleSynthesizer) Synthesize(ctx context.Context, text, languageCode string) (*audio.SynthesizedAudio, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: empty text", shared.ErrSynthesis)
	}
	if languageCode == "" {
		return nil, fmt.Errorf("%w: language code is required", shared.ErrConfiguration)
	}

	resp, err := s.client.SynthesizeSpeech(ctx, s.request(text, languageCode))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrSynthesis, err)
	}
	content := resp.GetAudioContent()
	if len(content) == 0 {
		return nil, fmt.Errorf("%w: empty audio content", shared.ErrSynthesis)
	}
	// LINEAR16 responses carry a WAV header
	if s.format.Encoding == audio.EncodingLinear16 {
		if err := audio.ValidateWAV(content); err != nil {
			return nil, fmt.Errorf("%w: malformed LINEAR16 response: %v", shared.ErrSynthesis, err)
		}
	}

	s.logger.Debug("Synthesized speech",
		slog.String("language", languageCode),
		slog.Int("bytes", len(content)))

	return audio.NewSynthesizedAudio(content, s.format), nil
}

func (s *GoogleSynthesizer) request(text, languageCode string) *texttospeechpb.SynthesizeSpeechRequest {
	encoding := texttospeechpb.AudioEncoding_LINEAR16
	if s.format.Encoding == audio.EncodingMP3 {
		encoding = texttospeechpb.AudioEncoding_MP3
	}

	return &texttospeechpb.SynthesizeSpeechRequest{
		Input: &texttospeechpb.SynthesisInput{
			InputSource: &texttospeechpb.SynthesisInput_Text{Text: text},
		},
		Voice: &texttospeechpb.VoiceSelectionParams{
			LanguageCode: languageCode,
			Name:         s.config.VoiceName,
			SsmlGender:   s.gender,
		},
		AudioConfig: &texttospeechpb.AudioConfig{
			AudioEncoding:   encoding,
			SampleRateHertz: int32(s.config.SampleRate),
			SpeakingRate:    s.config.SpeakingRate,
		},
	}
}

// Close releases the client
func (s *GoogleSynthesizer) Close() error {
	return s.client.Close()
}
