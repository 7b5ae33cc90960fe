package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/gordonklaus/portaudio"

	"github.com/Ali-AlHumidi/speechbridge/internal/shared"
)

var (
	paMu    sync.Mutex
	paUsers int
)

// acquirePortAudio initializes the PortAudio library on first use
func acquirePortAudio() error {
	paMu.Lock()
	defer paMu.Unlock()
	if paUsers == 0 {
		if err := portaudio.Initialize(); err != nil {
			return fmt.Errorf("failed to initialize portaudio: %w", err)
		}
	}
	paUsers++
	return nil
}

// releasePortAudio terminates the library when the last user is gone
func releasePortAudio() {
	paMu.Lock()
	defer paMu.Unlock()
	if paUsers == 0 {
		return
	}
	paUsers--
	if paUsers == 0 {
		portaudio.Terminate()
	}
}

// DeviceInfo describes an audio device visible to PortAudio
type DeviceInfo struct {
	Name              string  `json:"name"`
	HostAPI           string  `json:"host_api"`
	MaxInputChannels  int     `json:"max_input_channels"`
	MaxOutputChannels int     `json:"max_output_channels"`
	DefaultSampleRate float64 `json:"default_sample_rate"`
	DefaultInput      bool    `json:"default_input"`
	DefaultOutput     bool    `json:"default_output"`
}

// ListDevices enumerates the audio devices known to PortAudio
func ListDevices() ([]DeviceInfo, error) {
	if err := acquirePortAudio(); err != nil {
		return nil, err
	}
	defer releasePortAudio()

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate devices: %w", err)
	}

	defaultIn, _ := portaudio.DefaultInputDevice()
	defaultOut, _ := portaudio.DefaultOutputDevice()

	result := make([]DeviceInfo, 0, len(devices))
	for _, d := range devices {
		info := DeviceInfo{
			Name:              d.Name,
			MaxInputChannels:  d.MaxInputChannels,
			MaxOutputChannels: d.MaxOutputChannels,
			DefaultSampleRate: d.DefaultSampleRate,
			DefaultInput:      defaultIn != nil && d.Name == defaultIn.Name,
			DefaultOutput:     defaultOut != nil && d.Name == defaultOut.Name,
		}
		if d.HostApi != nil {
			info.HostAPI = d.HostApi.Name
		}
		result = append(result, info)
	}
	return result, nil
}

// findDevice resolves a device by exact name, then by case-insensitive
// substring. An empty name selects the default device for the direction.
func findDevice(name string, input bool) (*portaudio.DeviceInfo, error) {
	if name == "" {
		if input {
			return portaudio.DefaultInputDevice()
		}
		return portaudio.DefaultOutputDevice()
	}

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, err
	}

	usable := func(d *portaudio.DeviceInfo) bool {
		if input {
			return d.MaxInputChannels > 0
		}
		return d.MaxOutputChannels > 0
	}

	for _, d := range devices {
		if d.Name == name && usable(d) {
			return d, nil
		}
	}

	lower := strings.ToLower(name)
	for _, d := range devices {
		if strings.Contains(strings.ToLower(d.Name), lower) && usable(d) {
			return d, nil
		}
	}

	return nil, fmt.Errorf("no device matching %q", name)
}

// PortAudioOpener opens microphones through PortAudio
type PortAudioOpener struct{}

// Open implements Opener
func (PortAudioOpener) Open(cfg CaptureConfig) (Device, error) {
	cfg = cfg.WithDefaults()

	if err := acquirePortAudio(); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrDeviceUnavailable, err)
	}

	info, err := findDevice(cfg.Device, true)
	if err != nil {
		releasePortAudio()
		return nil, fmt.Errorf("%w: input device: %v", shared.ErrDeviceUnavailable, err)
	}

	params := portaudio.HighLatencyParameters(info, nil)
	params.Input.Channels = cfg.Channels
	params.SampleRate = float64(cfg.SampleRate)
	params.FramesPerBuffer = cfg.FramesPerBuffer

	buf := make([]int16, cfg.FramesPerBuffer*cfg.Channels)
	stream, err := portaudio.OpenStream(params, buf)
	if err != nil {
		releasePortAudio()
		return nil, fmt.Errorf("%w: open %s: %v", shared.ErrDeviceUnavailable, info.Name, err)
	}

	if err := stream.Start(); err != nil {
		stream.Close()
		releasePortAudio()
		return nil, fmt.Errorf("%w: start %s: %v", shared.ErrDeviceUnavailable, info.Name, err)
	}

	return &portAudioInput{stream: stream, buf: buf}, nil
}

type portAudioInput struct {
	stream *portaudio.Stream
	buf    []int16
}

func (d *portAudioInput) Read() ([]byte, error) {
	err := d.stream.Read()
	if err != nil && !errors.Is(err, portaudio.InputOverflowed) {
		return nil, err
	}

	data := int16ToBytes(d.buf)
	if err != nil {
		return data, ErrOverflow
	}
	return data, nil
}

func (d *portAudioInput) Close() error {
	defer releasePortAudio()
	stopErr := d.stream.Stop()
	closeErr := d.stream.Close()
	return errors.Join(stopErr, closeErr)
}

// int16ToBytes copies samples into a new little-endian byte slice
func int16ToBytes(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}

// bytesToInt16 decodes little-endian PCM16 bytes; a trailing odd byte is dropped
func bytesToInt16(data []byte) []int16 {
	out := make([]int16, len(data)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(data[i*2:]))
	}
	return out
}
