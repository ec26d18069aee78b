package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/ringsaturn/tzf"

	"github.com/epochzone/epochzone/internal/handler/dto"
	"github.com/epochzone/epochzone/internal/metrics"
	"github.com/epochzone/epochzone/internal/testutil"
	"github.com/epochzone/epochzone/internal/timezone"
)

func newTimezoneRouter(t *testing.T) (http.Handler, *metrics.InMemoryRecorder) {
	t.Helper()

	catalog, skipped := timezone.NewCatalog([]string{"UTC", "America/New_York", "Europe/Belgrade", "Asia/Kolkata"})
	if len(skipped) != 0 {
		t.Fatalf("catalog skipped zones: %v", skipped)
	}

	recorder := metrics.NewInMemory()
	h := NewTimezoneHandler(timezone.NewEngine(catalog), nil, recorder, testutil.DiscardLogger())
	h.now = func() time.Time { return time.Date(2024, 2, 10, 16, 0, 0, 0, time.UTC) }

	r := chi.NewRouter()
	r.Get("/api/timezones", h.List)
	r.Get("/api/time/*", h.GetTime)
	r.Post("/api/convert", h.Convert)
	return r, recorder
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) dto.ErrorDetail {
	t.Helper()

	var body dto.ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error body: %v", err)
	}
	return body.Error
}

func TestTimezoneHandler_List(t *testing.T) {
	router, _ := newTimezoneRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/timezones", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	var names []string
	if err := json.NewDecoder(rec.Body).Decode(&names); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	want := []string{"America/New_York", "Asia/Kolkata", "Europe/Belgrade", "UTC"}
	if strings.Join(names, ",") != strings.Join(want, ",") {
		t.Errorf("names = %v, want %v", names, want)
	}
}

func TestTimezoneHandler_GetTime(t *testing.T) {
	router, _ := newTimezoneRouter(t)

	tests := []struct {
		name       string
		path       string
		wantStatus int
		wantZone   string
		wantOffset string
		wantTS     int64
		wantCode   string
	}{
		{
			name:       "slash identifier",
			path:       "/api/time/America/New_York",
			wantStatus: http.StatusOK,
			wantZone:   "America/New_York",
			wantOffset: "UTC-05:00",
			wantTS:     1707580800,
		},
		{
			name:       "encoded slash",
			path:       "/api/time/America%2FNew_York",
			wantStatus: http.StatusOK,
			wantZone:   "America/New_York",
			wantOffset: "UTC-05:00",
			wantTS:     1707580800,
		},
		{
			name:       "half hour offset",
			path:       "/api/time/Asia/Kolkata",
			wantStatus: http.StatusOK,
			wantZone:   "Asia/Kolkata",
			wantOffset: "UTC+05:30",
			wantTS:     1707580800,
		},
		{
			name:       "summer instant",
			path:       "/api/time/Europe/Belgrade?at=1719835200",
			wantStatus: http.StatusOK,
			wantZone:   "Europe/Belgrade",
			wantOffset: "UTC+02:00",
			wantTS:     1719835200,
		},
		{
			name:       "unknown zone",
			path:       "/api/time/Mars/Olympus",
			wantStatus: http.StatusNotFound,
			wantCode:   CodeUnknownZone,
		},
		{
			name:       "wrong case",
			path:       "/api/time/america/new_york",
			wantStatus: http.StatusNotFound,
			wantCode:   CodeUnknownZone,
		},
		{
			name:       "non numeric at",
			path:       "/api/time/UTC?at=noon",
			wantStatus: http.StatusBadRequest,
			wantCode:   CodeInvalidTimestamp,
		},
		{
			name:       "at out of range",
			path:       "/api/time/UTC?at=9223372036854775807",
			wantStatus: http.StatusBadRequest,
			wantCode:   CodeInvalidTimestamp,
		},
		{
			name:       "at overflows int64",
			path:       "/api/time/UTC?at=9223372036854775808",
			wantStatus: http.StatusBadRequest,
			wantCode:   CodeInvalidTimestamp,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d: %s", tt.wantStatus, rec.Code, rec.Body.String())
			}

			if tt.wantCode != "" {
				if got := decodeError(t, rec); got.Code != tt.wantCode {
					t.Errorf("error code = %q, want %q", got.Code, tt.wantCode)
				}
				return
			}

			var info dto.ZoneInfoResponse
			if err := json.NewDecoder(rec.Body).Decode(&info); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if info.Identifier != tt.wantZone {
				t.Errorf("identifier = %q, want %q", info.Identifier, tt.wantZone)
			}
			if info.UTCOffset != tt.wantOffset {
				t.Errorf("utc_offset = %q, want %q", info.UTCOffset, tt.wantOffset)
			}
			if info.Timestamp != tt.wantTS {
				t.Errorf("timestamp = %d, want %d", info.Timestamp, tt.wantTS)
			}
			if _, err := time.Parse(time.RFC3339, info.Datetime); err != nil {
				t.Errorf("datetime %q is not RFC 3339: %v", info.Datetime, err)
			}
		})
	}
}

func TestTimezoneHandler_Convert(t *testing.T) {
	tests := []struct {
		name          string
		body          string
		wantStatus    int
		wantCode      string
		wantUTC       string
		wantTo        string
		wantAmbiguous bool
		wantShifted   bool
	}{
		{
			name:       "timestamp",
			body:       `{"timestamp":1707580800,"to":"America/New_York"}`,
			wantStatus: http.StatusOK,
			wantUTC:    "2024-02-10T16:00:00Z",
			wantTo:     "2024-02-10T11:00:00-05:00",
		},
		{
			name:       "datetime",
			body:       `{"datetime":"2024-02-10T17:00:00","from":"Europe/Belgrade","to":"UTC"}`,
			wantStatus: http.StatusOK,
			wantUTC:    "2024-02-10T16:00:00Z",
			wantTo:     "2024-02-10T16:00:00Z",
		},
		{
			name:        "gap shifts forward",
			body:        `{"datetime":"2026-03-29T02:30:00","from":"Europe/Belgrade","to":"UTC"}`,
			wantStatus:  http.StatusOK,
			wantUTC:     "2026-03-29T01:30:00Z",
			wantTo:      "2026-03-29T01:30:00Z",
			wantShifted: true,
		},
		{
			name:          "overlap takes earlier",
			body:          `{"datetime":"2026-10-25T02:30:00","from":"Europe/Belgrade","to":"UTC"}`,
			wantStatus:    http.StatusOK,
			wantUTC:       "2026-10-25T00:30:00Z",
			wantTo:        "2026-10-25T00:30:00Z",
			wantAmbiguous: true,
		},
		{
			name:       "malformed json",
			body:       `{"timestamp":`,
			wantStatus: http.StatusBadRequest,
			wantCode:   CodeInvalidRequest,
		},
		{
			name:       "both forms",
			body:       `{"timestamp":1,"datetime":"2024-02-10T17:00:00","from":"UTC","to":"UTC"}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   CodeInvalidRequest,
		},
		{
			name:       "neither form",
			body:       `{"to":"UTC"}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   CodeInvalidRequest,
		},
		{
			name:       "missing from",
			body:       `{"datetime":"2024-02-10T17:00:00","to":"UTC"}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   CodeInvalidRequest,
		},
		{
			name:       "bad datetime",
			body:       `{"datetime":"2024-02-10T17:00:00+01:00","from":"UTC","to":"UTC"}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   CodeInvalidDatetime,
		},
		{
			name:       "unknown target",
			body:       `{"timestamp":1707580800,"to":"Mars/Olympus"}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   CodeUnknownZone,
		},
		{
			name:       "unknown source",
			body:       `{"datetime":"2024-02-10T17:00:00","from":"Mars/Olympus","to":"UTC"}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   CodeUnknownZone,
		},
		{
			name:       "timestamp out of range",
			body:       `{"timestamp":9223372036854775807,"to":"UTC"}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   CodeInvalidTimestamp,
		},
		{
			name:       "year past 9999",
			body:       `{"timestamp":253402317000,"to":"UTC"}`,
			wantStatus: http.StatusOK,
			wantUTC:    "+10000-01-01T04:30:00Z",
			wantTo:     "+10000-01-01T04:30:00Z",
		},
		{
			name:       "datetime resolving past 9999",
			body:       `{"datetime":"9999-12-31T23:30:00","from":"America/New_York","to":"UTC"}`,
			wantStatus: http.StatusOK,
			wantUTC:    "+10000-01-01T04:30:00Z",
			wantTo:     "+10000-01-01T04:30:00Z",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, _ := newTimezoneRouter(t)

			req := httptest.NewRequest(http.MethodPost, "/api/convert", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d: %s", tt.wantStatus, rec.Code, rec.Body.String())
			}

			if tt.wantCode != "" {
				got := decodeError(t, rec)
				if got.Code != tt.wantCode {
					t.Errorf("error code = %q, want %q", got.Code, tt.wantCode)
				}
				if got.Message == "" {
					t.Error("error message should not be empty")
				}
				return
			}

			var resp dto.ConversionResponse
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if resp.UTC != tt.wantUTC {
				t.Errorf("utc = %q, want %q", resp.UTC, tt.wantUTC)
			}
			if resp.To.Datetime != tt.wantTo {
				t.Errorf("to.datetime = %q, want %q", resp.To.Datetime, tt.wantTo)
			}
			if resp.Ambiguous != tt.wantAmbiguous {
				t.Errorf("ambiguous = %v, want %v", resp.Ambiguous, tt.wantAmbiguous)
			}
			if resp.Shifted != tt.wantShifted {
				t.Errorf("shifted = %v, want %v", resp.Shifted, tt.wantShifted)
			}
		})
	}
}

func TestTimezoneHandler_ConvertMetrics(t *testing.T) {
	router, recorder := newTimezoneRouter(t)

	bodies := []string{
		`{"timestamp":1707580800,"to":"UTC"}`,
		`{"datetime":"2026-03-29T02:30:00","from":"Europe/Belgrade","to":"UTC"}`,
		`{"datetime":"2026-10-25T02:30:00","from":"Europe/Belgrade","to":"UTC"}`,
		`{"to":"UTC"}`,
	}
	for _, body := range bodies {
		req := httptest.NewRequest(http.MethodPost, "/api/convert", strings.NewReader(body))
		router.ServeHTTP(httptest.NewRecorder(), req)
	}

	snap := recorder.Snapshot()
	if snap.Conversions["timestamp"] != 1 {
		t.Errorf("timestamp conversions = %d, want 1", snap.Conversions["timestamp"])
	}
	if snap.Conversions["datetime"] != 2 {
		t.Errorf("datetime conversions = %d, want 2", snap.Conversions["datetime"])
	}
	if snap.ConversionsShifted != 1 || snap.ConversionsAmbiguous != 1 {
		t.Errorf("shifted/ambiguous = %d/%d, want 1/1", snap.ConversionsShifted, snap.ConversionsAmbiguous)
	}
}

var sharedFinder = sync.OnceValues(tzf.NewDefaultFinder)

func newLocationRouter(t *testing.T, finder timezone.Finder) http.Handler {
	t.Helper()

	catalog, skipped := timezone.NewCatalog([]string{"UTC", "America/New_York", "Asia/Tokyo"})
	if len(skipped) != 0 {
		t.Fatalf("catalog skipped zones: %v", skipped)
	}

	h := NewTimezoneHandler(timezone.NewEngine(catalog), timezone.NewLocator(catalog, finder), nil, testutil.DiscardLogger())
	h.now = func() time.Time { return time.Date(2024, 2, 10, 16, 0, 0, 0, time.UTC) }

	r := chi.NewRouter()
	r.Get("/api/location", h.Locate)
	return r
}

func TestTimezoneHandler_Locate(t *testing.T) {
	finder, err := sharedFinder()
	if err != nil {
		t.Fatalf("tzf.NewDefaultFinder() error = %v", err)
	}
	router := newLocationRouter(t, finder)

	tests := []struct {
		name         string
		query        string
		wantZone     string
		wantOffset   string
		wantAbbr     string
		wantDatetime string
	}{
		{
			name:         "tokyo",
			query:        "lat=35.6762&lng=139.6503",
			wantZone:     "Asia/Tokyo",
			wantOffset:   "UTC+09:00",
			wantAbbr:     "JST",
			wantDatetime: "2024-02-11T01:00:00+09:00",
		},
		{
			name:         "new york",
			query:        "lat=40.7128&lng=-74.0060",
			wantZone:     "America/New_York",
			wantOffset:   "UTC-05:00",
			wantAbbr:     "EST",
			wantDatetime: "2024-02-10T11:00:00-05:00",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/location?"+tt.query, nil)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			if rec.Code != http.StatusOK {
				t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
			}

			var body dto.ZoneInfoResponse
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if body.Identifier != tt.wantZone {
				t.Errorf("identifier = %q, want %q", body.Identifier, tt.wantZone)
			}
			if body.UTCOffset != tt.wantOffset {
				t.Errorf("utc_offset = %q, want %q", body.UTCOffset, tt.wantOffset)
			}
			if body.Abbreviation != tt.wantAbbr {
				t.Errorf("abbreviation = %q, want %q", body.Abbreviation, tt.wantAbbr)
			}
			if body.Datetime != tt.wantDatetime {
				t.Errorf("datetime = %q, want %q", body.Datetime, tt.wantDatetime)
			}
			if body.Timestamp != 1707580800 {
				t.Errorf("timestamp = %d, want 1707580800", body.Timestamp)
			}
		})
	}
}

type fixedFinder string

func (f fixedFinder) GetTimezoneName(float64, float64) string { return string(f) }

func TestTimezoneHandler_LocateErrors(t *testing.T) {
	tests := []struct {
		name       string
		finder     fixedFinder
		query      string
		wantStatus int
		wantCode   string
	}{
		{"missing lat", "Asia/Tokyo", "lng=139.6503", http.StatusBadRequest, CodeInvalidCoords},
		{"missing lng", "Asia/Tokyo", "lat=35.6762", http.StatusBadRequest, CodeInvalidCoords},
		{"no query", "Asia/Tokyo", "", http.StatusBadRequest, CodeInvalidCoords},
		{"non numeric lat", "Asia/Tokyo", "lat=north&lng=139.6503", http.StatusBadRequest, CodeInvalidCoords},
		{"latitude above 90", "Asia/Tokyo", "lat=91&lng=0", http.StatusBadRequest, CodeInvalidCoords},
		{"latitude below -90", "Asia/Tokyo", "lat=-90.01&lng=0", http.StatusBadRequest, CodeInvalidCoords},
		{"longitude above 180", "Asia/Tokyo", "lat=0&lng=181", http.StatusBadRequest, CodeInvalidCoords},
		{"longitude below -180", "Asia/Tokyo", "lat=0&lng=-180.5", http.StatusBadRequest, CodeInvalidCoords},
		{"nan", "Asia/Tokyo", "lat=NaN&lng=0", http.StatusBadRequest, CodeInvalidCoords},
		{"infinite", "Asia/Tokyo", "lat=0&lng=Inf", http.StatusBadRequest, CodeInvalidCoords},
		{"no zone at point", "", "lat=0&lng=0", http.StatusNotFound, CodeUnknownZone},
		{"zone outside catalog", "Europe/Paris", "lat=48.8566&lng=2.3522", http.StatusNotFound, CodeUnknownZone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newLocationRouter(t, tt.finder)

			req := httptest.NewRequest(http.MethodGet, "/api/location?"+tt.query, nil)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d: %s", tt.wantStatus, rec.Code, rec.Body.String())
			}
			if got := decodeError(t, rec); got.Code != tt.wantCode {
				t.Errorf("error code = %q, want %q", got.Code, tt.wantCode)
			}
		})
	}
}
