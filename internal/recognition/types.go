package recognition

import (
	"fmt"
	"time"

	"cloud.google.com/go/speech/apiv1/speechpb"

	"github.com/Ali-AlHumidi/speechbridge/internal/audio"
)

// EventKind distinguishes recognition events
type EventKind int

const (
	// Partial is an interim hypothesis that may still be revised
	Partial EventKind = iota
	// Final is a stable transcript that triggers downstream processing
	Final
	// Failed is the terminal event of a session that ended with an error
	Failed
)

func (k EventKind) String() string {
	switch k {
	case Partial:
		return "partial"
	case Final:
		return "final"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Event is one item of the recognition stream, emitted in service order
type Event struct {
	Kind       EventKind
	Transcript string
	Stability  float32
	Confidence float32
	Received   time.Time
	Err        error
}

// State is the lifecycle of a recognition session
type State int32

const (
	StateIdle State = iota
	StateStreaming
	StateStopped
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStreaming:
		return "streaming"
	case StateStopped:
		return "stopped"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// FrameSource yields audio frames until it returns io.EOF
type FrameSource interface {
	Next() (audio.Frame, error)
}

// Stream is the client side of a streaming recognition call
type Stream interface {
	Send(*speechpb.StreamingRecognizeRequest) error
	Recv() (*speechpb.StreamingRecognizeResponse, error)
	CloseSend() error
}

// Config contains recognition request parameters
type Config struct {
	LanguageCode   string         `yaml:"language_code"`
	SampleRate     int            `yaml:"sample_rate"`
	Encoding       audio.Encoding `yaml:"encoding"`
	InterimResults bool           `yaml:"interim_results"`
	Model          string         `yaml:"model"`
	Punctuation    bool           `yaml:"automatic_punctuation"`
}

// DefaultConfig returns US English LINEAR16 at 16 kHz with interim results
func DefaultConfig() Config {
	return Config{
		LanguageCode:   "en-US",
		SampleRate:     audio.DefaultSampleRate,
		Encoding:       audio.EncodingLinear16,
		InterimResults: true,
	}
}

// Validate validates recognition configuration
func (c Config) Validate() error {
	if c.LanguageCode == "" {
		return fmt.Errorf("language code is required")
	}
	if c.SampleRate < 8000 || c.SampleRate > 48000 {
		return fmt.Errorf("sample rate must be between 8000 and 48000, got %d", c.SampleRate)
	}
	if c.Encoding != audio.EncodingLinear16 {
		return fmt.Errorf("streaming recognition only accepts LINEAR16 audio, got %q", c.Encoding)
	}
	return nil
}

// configRequest builds the first message of a streaming call
func (c Config) configRequest() *speechpb.StreamingRecognizeRequest {
	return &speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_StreamingConfig{
			StreamingConfig: &speechpb.StreamingRecognitionConfig{
				Config: &speechpb.RecognitionConfig{
					Encoding:                   speechpb.RecognitionConfig_LINEAR16,
					SampleRateHertz:            int32(c.SampleRate),
					LanguageCode:               c.LanguageCode,
					Model:                      c.Model,
					EnableAutomaticPunctuation: c.Punctuation,
				},
				InterimResults: c.InterimResults,
			},
		},
	}
}

func audioRequest(data []byte) *speechpb.StreamingRecognizeRequest {
	return &speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_AudioContent{
			AudioContent: data,
		},
	}
}
