package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/gopxl/beep/mp3"
	"github.com/gordonklaus/portaudio"

	"github.com/Ali-AlHumidi/speechbridge/internal/shared"
)

// Player renders synthesized audio. Play blocks until the whole clip has
// been written to the output device.
type Player interface {
	Play(ctx context.Context, clip *SynthesizedAudio) error
}

// PCM is decoded interleaved 16-bit audio ready for an output stream
type PCM struct {
	Samples    []int16
	SampleRate int
	Channels   int
}

// Duration returns the playback length in seconds
func (p PCM) Duration() float64 {
	if p.SampleRate == 0 || p.Channels == 0 {
		return 0
	}
	return float64(len(p.Samples)/p.Channels) / float64(p.SampleRate)
}

// Decode turns a synthesized clip into PCM after checking that the payload
// agrees with its format descriptor
func Decode(clip *SynthesizedAudio) (PCM, error) {
	if clip == nil {
		return PCM{}, fmt.Errorf("%w: no audio", shared.ErrPlayback)
	}

	data := clip.Bytes()
	if len(data) == 0 {
		return PCM{}, fmt.Errorf("%w: empty or released audio buffer", shared.ErrPlayback)
	}

	switch clip.Format.Encoding {
	case EncodingLinear16, "":
		return decodeLinear16(data, clip.Format)
	case EncodingMP3:
		return decodeMP3(data, clip.Format)
	default:
		return PCM{}, fmt.Errorf("%w: unsupported encoding %q", shared.ErrPlayback, clip.Format.Encoding)
	}
}

func decodeLinear16(data []byte, format Format) (PCM, error) {
	if len(data) < 4 || string(data[0:4]) != "RIFF" {
		// Headerless LINEAR16 takes its layout from the descriptor.
		if format.SampleRate <= 0 {
			return PCM{}, fmt.Errorf("%w: raw LINEAR16 without a sample rate", shared.ErrPlayback)
		}
		if format.BitsPerSample != 0 && format.BitsPerSample != 16 {
			return PCM{}, fmt.Errorf("%w: LINEAR16 with %d bits per sample", shared.ErrPlayback, format.BitsPerSample)
		}
		channels := format.Channels
		if channels == 0 {
			channels = 1
		}
		return PCM{Samples: bytesToInt16(data), SampleRate: format.SampleRate, Channels: channels}, nil
	}

	info, samples, err := DecodeWAV(data)
	if err != nil {
		return PCM{}, fmt.Errorf("%w: %v", shared.ErrPlayback, err)
	}

	if format.Channels != 0 && int(info.Channels) != format.Channels {
		return PCM{}, fmt.Errorf("%w: channel count %d does not match descriptor %d",
			shared.ErrPlayback, info.Channels, format.Channels)
	}
	if format.BitsPerSample != 0 && int(info.BitsPerSample) != format.BitsPerSample {
		return PCM{}, fmt.Errorf("%w: sample width %d does not match descriptor %d",
			shared.ErrPlayback, info.BitsPerSample, format.BitsPerSample)
	}
	if format.SampleRate != 0 && int(info.SampleRate) != format.SampleRate {
		return PCM{}, fmt.Errorf("%w: sample rate %d does not match descriptor %d",
			shared.ErrPlayback, info.SampleRate, format.SampleRate)
	}

	return PCM{Samples: samples, SampleRate: int(info.SampleRate), Channels: int(info.Channels)}, nil
}

func decodeMP3(data []byte, format Format) (PCM, error) {
	streamer, mp3Format, err := mp3.Decode(io.NopCloser(bytes.NewReader(data)))
	if err != nil {
		return PCM{}, fmt.Errorf("%w: mp3: %v", shared.ErrPlayback, err)
	}
	defer streamer.Close()

	rate := int(mp3Format.SampleRate)
	if format.SampleRate != 0 && rate != format.SampleRate {
		return PCM{}, fmt.Errorf("%w: sample rate %d does not match descriptor %d",
			shared.ErrPlayback, rate, format.SampleRate)
	}

	var samples []int16
	buf := make([][2]float64, 2048)
	for {
		n, ok := streamer.Stream(buf)
		for i := 0; i < n; i++ {
			mono := (buf[i][0] + buf[i][1]) / 2
			samples = append(samples, floatToInt16(mono))
		}
		if !ok {
			break
		}
	}
	if err := streamer.Err(); err != nil {
		return PCM{}, fmt.Errorf("%w: mp3: %v", shared.ErrPlayback, err)
	}

	return PCM{Samples: samples, SampleRate: rate, Channels: 1}, nil
}

func floatToInt16(v float64) int16 {
	v = math.Max(-1, math.Min(1, v))
	return int16(v * math.MaxInt16)
}

// PortAudioPlayer plays clips on a named output device, or the default one
// when Device is empty. A virtual microphone sink such as BlackHole is
// selected by name.
type PortAudioPlayer struct {
	Device          string
	FramesPerBuffer int
}

// Play implements Player
func (p *PortAudioPlayer) Play(ctx context.Context, clip *SynthesizedAudio) error {
	pcm, err := Decode(clip)
	if err != nil {
		return err
	}
	if len(pcm.Samples) == 0 {
		return nil
	}

	if err := acquirePortAudio(); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrDeviceUnavailable, err)
	}
	defer releasePortAudio()

	info, err := findDevice(p.Device, false)
	if err != nil {
		return fmt.Errorf("%w: output device: %v", shared.ErrDeviceUnavailable, err)
	}

	framesPerBuffer := p.FramesPerBuffer
	if framesPerBuffer <= 0 {
		framesPerBuffer = DefaultFramesPerBuffer
	}

	params := portaudio.HighLatencyParameters(nil, info)
	params.Output.Channels = pcm.Channels
	params.SampleRate = float64(pcm.SampleRate)
	params.FramesPerBuffer = framesPerBuffer

	buf := make([]int16, framesPerBuffer*pcm.Channels)
	stream, err := portaudio.OpenStream(params, buf)
	if err != nil {
		return fmt.Errorf("%w: open %s: %v", shared.ErrDeviceUnavailable, info.Name, err)
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return fmt.Errorf("%w: start %s: %v", shared.ErrPlayback, info.Name, err)
	}

	if err := writeAll(ctx, pcm.Samples, buf, stream.Write); err != nil {
		stream.Abort()
		return err
	}

	if err := stream.Stop(); err != nil {
		return fmt.Errorf("%w: stop: %v", shared.ErrPlayback, err)
	}
	return nil
}

// writeAll copies samples through buf one buffer at a time, zero padding the
// last one. Cancellation is checked between buffers.
func writeAll(ctx context.Context, samples, buf []int16, write func() error) error {
	for offset := 0; offset < len(samples); offset += len(buf) {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w: %v", shared.ErrPlayback, err)
		}

		n := copy(buf, samples[offset:])
		for i := n; i < len(buf); i++ {
			buf[i] = 0
		}

		if err := write(); err != nil && !errors.Is(err, portaudio.OutputUnderflowed) {
			return fmt.Errorf("%w: write: %v", shared.ErrPlayback, err)
		}
	}
	return nil
}
