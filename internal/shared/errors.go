package shared

import "errors"

var (
	// ErrDeviceUnavailable means a microphone or output device could not be opened.
	ErrDeviceUnavailable = errors.New("audio device unavailable")
	// ErrCapture is a device I/O failure while pulling audio frames.
	ErrCapture = errors.New("audio capture failed")
	// ErrRecognitionStream is a transport or service failure on the streaming call.
	ErrRecognitionStream = errors.New("recognition stream failed")
	ErrTranslation       = errors.New("translation failed")
	ErrSynthesis         = errors.New("speech synthesis failed")
	ErrPlayback          = errors.New("playback failed")
	// ErrConfiguration covers missing credentials, bad target languages and
	// invalid settings. It is never retried.
	ErrConfiguration = errors.New("configuration error")

	// ErrSessionActive is returned when a session is started while another one
	// still owns the audio devices.
	ErrSessionActive = errors.New("a translation session is already active")
	// ErrSessionUsed is returned when a recognition session is run twice.
	ErrSessionUsed = errors.New("recognition session already used")
)

// IsSessionFatal reports whether err ends a running session. Per-event errors
// (translation, synthesis, playback) are not fatal.
func IsSessionFatal(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrDeviceUnavailable) ||
		errors.Is(err, ErrCapture) ||
		errors.Is(err, ErrRecognitionStream) ||
		errors.Is(err, ErrConfiguration)
}
