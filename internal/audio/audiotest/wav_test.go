package audiotest_test

import (
	"testing"

	"github.com/Ali-AlHumidi/speechbridge/internal/audio"
	"github.com/Ali-AlHumidi/speechbridge/internal/audio/audiotest"
)

func TestEncodeWAVReadsBack(t *testing.T) {
	samples := []int16{100, -200, 300, -400}

	data, err := audiotest.EncodeWAV(samples, 16000, 1)
	if err != nil {
		t.Fatalf("EncodeWAV failed: %v", err)
	}
	if len(data) != audiotest.HeaderSize+len(samples)*2 {
		t.Errorf("Expected %d bytes, got %d", audiotest.HeaderSize+len(samples)*2, len(data))
	}
	if err := audio.ValidateWAV(data); err != nil {
		t.Errorf("Generated WAV is invalid: %v", err)
	}

	info, err := audio.GetWAVInfo(data)
	if err != nil {
		t.Fatalf("GetWAVInfo failed: %v", err)
	}
	if info.SampleRate != 16000 || info.Channels != 1 || info.BitsPerSample != 16 {
		t.Errorf("Unexpected info %+v", info)
	}
}

func TestEncodeWAVInvalidInput(t *testing.T) {
	tests := []struct {
		name       string
		samples    []int16
		sampleRate int
		channels   int
	}{
		{"empty samples", []int16{}, 8000, 1},
		{"zero sample rate", []int16{1, 2, 3}, 0, 1},
		{"negative sample rate", []int16{1, 2, 3}, -1000, 1},
		{"odd stereo samples", []int16{1, 2, 3}, 8000, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := audiotest.EncodeWAV(tt.samples, tt.sampleRate, tt.channels); err == nil {
				t.Error("Expected error")
			}
		})
	}
}
