package handler

import (
	"fmt"
	"net/http"
	"slices"

	"github.com/epochzone/epochzone/internal/metrics"
)

// MetricsHandler exposes in-memory metrics.
type MetricsHandler struct {
	snapshotter metrics.Snapshotter
}

// NewMetricsHandler creates a new MetricsHandler.
func NewMetricsHandler(snapshotter metrics.Snapshotter) *MetricsHandler {
	return &MetricsHandler{snapshotter: snapshotter}
}

// Metrics returns metrics in Prometheus exposition format.
func (h *MetricsHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	if h.snapshotter == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	snap := h.snapshotter.Snapshot()

	w.Header().Set("Content-Type", "text/plain; version=0.0.4")

	writeMetric(w, "epochzone_auth_total{result=\"success\"} %d\n", snap.AuthSuccesses)
	for _, reason := range sortedKeys(snap.AuthFailures) {
		writeMetric(w, "epochzone_auth_failures_total{reason=%q} %d\n", reason, snap.AuthFailures[reason])
	}
	writeMetric(w, "epochzone_verify_cache_hits_total %d\n", snap.VerifyCacheHits)
	writeMetric(w, "epochzone_verify_cache_misses_total %d\n", snap.VerifyCacheMisses)
	writeMetric(w, "epochzone_verify_duration_seconds_count %d\n", snap.VerifyDurationCount)
	writeMetric(w, "epochzone_verify_duration_seconds_sum %.6f\n", float64(snap.VerifyDurationTotalNs)/1e9)

	writeMetric(w, "epochzone_api_keys_created_total %d\n", snap.KeysCreated)
	writeMetric(w, "epochzone_api_keys_revoked_total %d\n", snap.KeysRevoked)

	for _, variant := range sortedKeys(snap.Conversions) {
		writeMetric(w, "epochzone_conversions_total{variant=%q} %d\n", variant, snap.Conversions[variant])
	}
	writeMetric(w, "epochzone_conversions_ambiguous_total %d\n", snap.ConversionsAmbiguous)
	writeMetric(w, "epochzone_conversions_shifted_total %d\n", snap.ConversionsShifted)
}

func sortedKeys(m map[string]uint64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func writeMetric(w http.ResponseWriter, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}
