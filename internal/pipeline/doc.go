// Package pipeline runs translation sessions.
//
// A Controller owns at most one session at a time. Each session pulls audio
// from the microphone into a streaming recognition call and sends every final
// transcript through a Stage, which translates, synthesizes and plays it
// before the next transcript is taken. A failure inside a Stage drops only
// that transcript; capture and recognition failures end the session.
//
// Everything the user should see is appended to an ActivityLog, which also
// feeds live subscribers such as the HTTP event stream.
package pipeline
