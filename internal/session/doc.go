// Package session provides the run state shared between a translation session's
// pipeline goroutine and the caller that stops it.
// A Handle starts running, can be stopped or failed exactly once, and is never
// reused; every new session gets a fresh Handle.
package session
