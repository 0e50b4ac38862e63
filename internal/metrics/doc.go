// Package metrics records pipeline, stage and version negotiation metrics.
// The NoopRecorder is used when metrics are disabled.
package metrics
