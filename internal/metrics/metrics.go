// Package metrics provides lightweight hooks for instrumentation.
package metrics

import "time"

// Recorder captures metric events for the application.
// Implementations can expose these to Prometheus, StatsD, etc.
type Recorder interface {
	// Authentication metrics
	IncAuthSuccess()
	IncAuthFailure(reason string)
	IncVerifyCacheHit()
	IncVerifyCacheMiss()
	ObserveVerifyDuration(duration time.Duration)

	// Key lifecycle metrics
	IncKeyCreated()
	IncKeyRevoked()

	// Conversion metrics
	IncConversion(variant string) // variant: "timestamp" or "datetime"
	IncConversionAmbiguous()
	IncConversionShifted()
}

// Snapshotter exposes a snapshot of current metrics.
type Snapshotter interface {
	Snapshot() Snapshot
}
