package metrics

import (
	"maps"
	"sync"
	"sync/atomic"
	"time"
)

// Snapshot captures current in-memory counters.
type Snapshot struct {
	AuthSuccesses         uint64
	AuthFailures          map[string]uint64 // by reason
	VerifyCacheHits       uint64
	VerifyCacheMisses     uint64
	VerifyDurationCount   uint64
	VerifyDurationTotalNs int64
	KeysCreated           uint64
	KeysRevoked           uint64
	Conversions           map[string]uint64 // by variant
	ConversionsAmbiguous  uint64
	ConversionsShifted    uint64
}

// InMemoryRecorder keeps counters in process memory. It backs the
// /metrics endpoint and tests.
type InMemoryRecorder struct {
	authSuccesses         uint64
	verifyCacheHits       uint64
	verifyCacheMisses     uint64
	verifyDurationCount   uint64
	verifyDurationTotalNs int64
	keysCreated           uint64
	keysRevoked           uint64
	conversionsAmbiguous  uint64
	conversionsShifted    uint64

	mu           sync.Mutex
	authFailures map[string]uint64
	conversions  map[string]uint64
}

// NewInMemory returns a Recorder that stores counters in memory.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{
		authFailures: make(map[string]uint64),
		conversions:  make(map[string]uint64),
	}
}

// Snapshot returns a copy of the counters.
func (m *InMemoryRecorder) Snapshot() Snapshot {
	m.mu.Lock()
	failures := maps.Clone(m.authFailures)
	conversions := maps.Clone(m.conversions)
	m.mu.Unlock()

	return Snapshot{
		AuthSuccesses:         atomic.LoadUint64(&m.authSuccesses),
		AuthFailures:          failures,
		VerifyCacheHits:       atomic.LoadUint64(&m.verifyCacheHits),
		VerifyCacheMisses:     atomic.LoadUint64(&m.verifyCacheMisses),
		VerifyDurationCount:   atomic.LoadUint64(&m.verifyDurationCount),
		VerifyDurationTotalNs: atomic.LoadInt64(&m.verifyDurationTotalNs),
		KeysCreated:           atomic.LoadUint64(&m.keysCreated),
		KeysRevoked:           atomic.LoadUint64(&m.keysRevoked),
		Conversions:           conversions,
		ConversionsAmbiguous:  atomic.LoadUint64(&m.conversionsAmbiguous),
		ConversionsShifted:    atomic.LoadUint64(&m.conversionsShifted),
	}
}

// IncAuthSuccess increments the successful authentication counter.
func (m *InMemoryRecorder) IncAuthSuccess() {
	atomic.AddUint64(&m.authSuccesses, 1)
}

// IncAuthFailure increments the failure counter for reason.
func (m *InMemoryRecorder) IncAuthFailure(reason string) {
	m.mu.Lock()
	m.authFailures[reason]++
	m.mu.Unlock()
}

// IncVerifyCacheHit increments the verification cache hit counter.
func (m *InMemoryRecorder) IncVerifyCacheHit() {
	atomic.AddUint64(&m.verifyCacheHits, 1)
}

// IncVerifyCacheMiss increments the verification cache miss counter.
func (m *InMemoryRecorder) IncVerifyCacheMiss() {
	atomic.AddUint64(&m.verifyCacheMisses, 1)
}

// ObserveVerifyDuration records how long a key verification took.
func (m *InMemoryRecorder) ObserveVerifyDuration(duration time.Duration) {
	atomic.AddUint64(&m.verifyDurationCount, 1)
	atomic.AddInt64(&m.verifyDurationTotalNs, duration.Nanoseconds())
}

// IncKeyCreated increments the key created counter.
func (m *InMemoryRecorder) IncKeyCreated() {
	atomic.AddUint64(&m.keysCreated, 1)
}

// IncKeyRevoked increments the key revoked counter.
func (m *InMemoryRecorder) IncKeyRevoked() {
	atomic.AddUint64(&m.keysRevoked, 1)
}

// IncConversion increments the conversion counter for variant.
func (m *InMemoryRecorder) IncConversion(variant string) {
	m.mu.Lock()
	m.conversions[variant]++
	m.mu.Unlock()
}

// IncConversionAmbiguous counts conversions that hit a fall-back overlap.
func (m *InMemoryRecorder) IncConversionAmbiguous() {
	atomic.AddUint64(&m.conversionsAmbiguous, 1)
}

// IncConversionShifted counts conversions that hit a spring-forward gap.
func (m *InMemoryRecorder) IncConversionShifted() {
	atomic.AddUint64(&m.conversionsShifted, 1)
}
