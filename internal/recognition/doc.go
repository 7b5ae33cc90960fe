// Package recognition drives the bidirectional streaming recognition call.
// A Session pushes audio frames on one goroutine and reads responses on
// another, turning them into an ordered channel of partial and final events.
package recognition
