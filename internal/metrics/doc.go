// Package metrics defines the Prometheus collectors for capture, recognition,
// the per-transcript fan-out and the HTTP control API.
package metrics
