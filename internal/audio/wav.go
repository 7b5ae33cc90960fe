package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

const (
	wavHeaderSize   = 44
	wavFormatPCM    = 1
	riffPreambleLen = 12
)

// WAVInfo holds the format fields of a WAV file and the location of its samples
type WAVInfo struct {
	AudioFormat   uint16  `json:"audio_format"`
	SampleRate    uint32  `json:"sample_rate"`
	Channels      uint16  `json:"channels"`
	BitsPerSample uint16  `json:"bits_per_sample"`
	Duration      float64 `json:"duration_seconds"`
	DataSize      uint32  `json:"data_size_bytes"`
	NumSamples    uint32  `json:"num_samples"`

	dataOffset int
}

// DecodeWAV parses a PCM WAV file and returns its format and interleaved
// 16-bit samples. Extra chunks (LIST, fact) between "fmt " and "data" are skipped.
func DecodeWAV(data []byte) (*WAVInfo, []int16, error) {
	info, err := pcm16Info(data)
	if err != nil {
		return nil, nil, err
	}

	raw := data[info.dataOffset : info.dataOffset+int(info.DataSize)]
	samples := make([]int16, len(raw)/2)
	if err := binary.Read(bytes.NewReader(raw), binary.LittleEndian, samples); err != nil {
		return nil, nil, fmt.Errorf("failed to read audio samples: %w", err)
	}

	return info, samples, nil
}

// ValidateWAV checks that data is a 16-bit PCM WAV file with samples, without
// decoding them
func ValidateWAV(data []byte) error {
	_, err := pcm16Info(data)
	return err
}

func pcm16Info(data []byte) (*WAVInfo, error) {
	info, err := GetWAVInfo(data)
	if err != nil {
		return nil, err
	}

	if info.AudioFormat != wavFormatPCM {
		return nil, fmt.Errorf("unsupported audio format: %d (only PCM is supported)", info.AudioFormat)
	}

	if info.BitsPerSample != 16 {
		return nil, fmt.Errorf("unsupported bit depth: %d (only 16-bit is supported)", info.BitsPerSample)
	}

	if info.NumSamples == 0 {
		return nil, fmt.Errorf("no audio data found")
	}

	return info, nil
}

// GetWAVInfo walks the RIFF chunks and extracts the format metadata
func GetWAVInfo(data []byte) (*WAVInfo, error) {
	if len(data) < wavHeaderSize {
		return nil, fmt.Errorf("WAV data too short: need at least %d bytes, got %d", wavHeaderSize, len(data))
	}

	if string(data[0:4]) != "RIFF" {
		return nil, fmt.Errorf("invalid WAV file: missing RIFF header")
	}

	if string(data[8:12]) != "WAVE" {
		return nil, fmt.Errorf("invalid WAV file: missing WAVE format")
	}

	var info WAVInfo
	haveFmt := false
	offset := riffPreambleLen

	for offset+8 <= len(data) {
		id := string(data[offset : offset+4])
		size := int(binary.LittleEndian.Uint32(data[offset+4 : offset+8]))
		body := offset + 8

		switch id {
		case "fmt ":
			if size < 16 || body+16 > len(data) {
				return nil, fmt.Errorf("invalid WAV file: truncated fmt chunk")
			}
			info.AudioFormat = binary.LittleEndian.Uint16(data[body : body+2])
			info.Channels = binary.LittleEndian.Uint16(data[body+2 : body+4])
			info.SampleRate = binary.LittleEndian.Uint32(data[body+4 : body+8])
			info.BitsPerSample = binary.LittleEndian.Uint16(data[body+14 : body+16])
			haveFmt = true
		case "data":
			if !haveFmt {
				return nil, fmt.Errorf("invalid WAV file: data chunk before fmt chunk")
			}
			// Streaming writers leave the size at 0 or 0xFFFFFFFF.
			if size == 0 || body+size > len(data) {
				size = len(data) - body
			}
			info.DataSize = uint32(size)
			info.dataOffset = body
			return finishInfo(&info)
		}

		// Chunks are word aligned.
		offset = body + size + size%2
	}

	if !haveFmt {
		return nil, fmt.Errorf("invalid WAV file: missing fmt chunk")
	}
	return nil, fmt.Errorf("invalid WAV file: missing data chunk")
}

func finishInfo(info *WAVInfo) (*WAVInfo, error) {
	if info.SampleRate == 0 {
		return nil, fmt.Errorf("invalid sample rate: 0")
	}
	if info.Channels == 0 {
		return nil, fmt.Errorf("invalid channel count: 0")
	}

	bytesPerSample := uint32(info.BitsPerSample) / 8
	if bytesPerSample == 0 {
		return nil, fmt.Errorf("invalid bit depth: %d", info.BitsPerSample)
	}

	info.NumSamples = info.DataSize / bytesPerSample
	frames := info.NumSamples / uint32(info.Channels)
	info.Duration = float64(frames) / float64(info.SampleRate)

	return info, nil
}
