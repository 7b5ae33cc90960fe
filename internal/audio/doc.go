// Package audio handles microphone capture, synthesized clip decoding and playback.
// It provides the cancellable frame source that feeds the recognition stream,
// the WAV codec used to validate LINEAR16 clips, and PortAudio-backed devices
// for capture and for rendering to the default output or a virtual sink.
package audio
