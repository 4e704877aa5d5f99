// Package server exposes the Prometheus /metrics endpoint on a dedicated
// listener for the duration of a run.
package server
