package audio

import (
	"fmt"
	"sync"
	"time"
)

// Encoding names an audio payload encoding
type Encoding string

const (
	EncodingLinear16 Encoding = "LINEAR16"
	EncodingMP3      Encoding = "MP3"
)

// Default capture parameters, one frame is 1024 samples of 16 kHz mono PCM16
const (
	DefaultSampleRate      = 16000
	DefaultChannels        = 1
	DefaultBitsPerSample   = 16
	DefaultFramesPerBuffer = 1024
)

// ParseEncoding maps a configuration value onto an Encoding
func ParseEncoding(s string) (Encoding, error) {
	switch Encoding(s) {
	case EncodingLinear16, "":
		return EncodingLinear16, nil
	case EncodingMP3:
		return EncodingMP3, nil
	default:
		return "", fmt.Errorf("unsupported audio encoding %q", s)
	}
}

// Format describes an audio payload
type Format struct {
	Encoding      Encoding `json:"encoding"`
	SampleRate    int      `json:"sample_rate"`
	Channels      int      `json:"channels"`
	BitsPerSample int      `json:"bits_per_sample"`
}

// PCM16Mono returns the LINEAR16 mono format at the given rate
func PCM16Mono(sampleRate int) Format {
	return Format{
		Encoding:      EncodingLinear16,
		SampleRate:    sampleRate,
		Channels:      1,
		BitsPerSample: 16,
	}
}

// BytesPerFrame returns the size of one sample frame across all channels
func (f Format) BytesPerFrame() int {
	return f.Channels * f.BitsPerSample / 8
}

// Frame is one buffer of raw PCM16LE samples pulled from the microphone.
// Data must not be modified after the frame leaves the Source.
type Frame struct {
	Data     []byte
	Seq      uint64
	Captured time.Time
}

// SynthesizedAudio is an encoded clip produced once per final transcript and
// consumed exactly once by a Player.
type SynthesizedAudio struct {
	Data   []byte
	Format Format

	mu       sync.Mutex
	released bool
}

// NewSynthesizedAudio wraps an encoded buffer with its format descriptor
func NewSynthesizedAudio(data []byte, format Format) *SynthesizedAudio {
	return &SynthesizedAudio{Data: data, Format: format}
}

// Release drops the buffer. It is safe to call more than once.
func (a *SynthesizedAudio) Release() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.Data = nil
	a.released = true
}

// Released reports whether Release has been called
func (a *SynthesizedAudio) Released() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.released
}

// Bytes returns the encoded payload, or nil after Release
func (a *SynthesizedAudio) Bytes() []byte {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.Data
}
