// Package server implements the HTTP control API: starting and stopping the
// translation session, the activity log and its live websocket feed, and the
// Prometheus metrics endpoint.
package server
