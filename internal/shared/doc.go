// Package shared holds the error taxonomy used across the pipeline packages.
package shared
