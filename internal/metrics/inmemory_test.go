package metrics

import (
	"sync"
	"testing"
	"time"
)

func TestInMemoryRecorder_Counts(t *testing.T) {
	t.Parallel()

	m := NewInMemory()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.IncAuthSuccess()
			m.IncAuthFailure("invalid_key")
			m.IncConversion("timestamp")
		}()
	}
	wg.Wait()

	m.IncAuthFailure("revoked")
	m.IncKeyCreated()
	m.IncKeyRevoked()
	m.IncConversionShifted()
	m.ObserveVerifyDuration(2 * time.Millisecond)

	snap := m.Snapshot()
	if snap.AuthSuccesses != 50 {
		t.Errorf("AuthSuccesses = %d, want 50", snap.AuthSuccesses)
	}
	if snap.AuthFailures["invalid_key"] != 50 || snap.AuthFailures["revoked"] != 1 {
		t.Errorf("AuthFailures = %v", snap.AuthFailures)
	}
	if snap.Conversions["timestamp"] != 50 {
		t.Errorf("Conversions = %v", snap.Conversions)
	}
	if snap.KeysCreated != 1 || snap.KeysRevoked != 1 || snap.ConversionsShifted != 1 {
		t.Errorf("unexpected snapshot: %+v", snap)
	}
	if snap.VerifyDurationCount != 1 || snap.VerifyDurationTotalNs != int64(2*time.Millisecond) {
		t.Errorf("verify duration = %d/%d", snap.VerifyDurationCount, snap.VerifyDurationTotalNs)
	}
}

func TestInMemoryRecorder_SnapshotIsCopy(t *testing.T) {
	t.Parallel()

	m := NewInMemory()
	m.IncAuthFailure("expired")

	snap := m.Snapshot()
	snap.AuthFailures["expired"] = 100

	if got := m.Snapshot().AuthFailures["expired"]; got != 1 {
		t.Errorf("snapshot mutation leaked into recorder: %d", got)
	}
}
