package metrics

import "time"

// NoopRecorder implements Recorder with no-op methods.
type NoopRecorder struct{}

// NewNoop returns a Recorder that discards all metrics.
func NewNoop() Recorder {
	return &NoopRecorder{}
}

func (n *NoopRecorder) IncAuthSuccess()                              {}
func (n *NoopRecorder) IncAuthFailure(reason string)                 {}
func (n *NoopRecorder) IncVerifyCacheHit()                           {}
func (n *NoopRecorder) IncVerifyCacheMiss()                          {}
func (n *NoopRecorder) ObserveVerifyDuration(duration time.Duration) {}
func (n *NoopRecorder) IncKeyCreated()                               {}
func (n *NoopRecorder) IncKeyRevoked()                               {}
func (n *NoopRecorder) IncConversion(variant string)                 {}
func (n *NoopRecorder) IncConversionAmbiguous()                      {}
func (n *NoopRecorder) IncConversionShifted()                        {}
