package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/epochzone/epochzone/internal/auth"
	"github.com/epochzone/epochzone/internal/handler/dto"
	"github.com/epochzone/epochzone/internal/metrics"
	"github.com/epochzone/epochzone/internal/middleware"
	"github.com/epochzone/epochzone/internal/timezone"
)

// TimezoneHandler serves the zone listing, lookup and conversion endpoints.
type TimezoneHandler struct {
	engine  *timezone.Engine
	locator *timezone.Locator
	metrics metrics.Recorder
	logger  *slog.Logger
	now     func() time.Time
}

// NewTimezoneHandler creates a new TimezoneHandler. locator may be nil when
// geolocation is disabled; Locate is then never routed.
func NewTimezoneHandler(engine *timezone.Engine, locator *timezone.Locator, recorder metrics.Recorder, logger *slog.Logger) *TimezoneHandler {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TimezoneHandler{
		engine:  engine,
		locator: locator,
		metrics: recorder,
		logger:  logger,
		now:     time.Now,
	}
}

// List returns every supported zone identifier.
// GET /api/timezones
func (h *TimezoneHandler) List(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.Catalog().List())
}

// GetTime describes one zone now, or at the unix instant given by ?at=.
// The identifier is the rest of the path, so both America/New_York and
// America%2FNew_York work.
// GET /api/time/{timezone}
func (h *TimezoneHandler) GetTime(w http.ResponseWriter, r *http.Request) {
	name, err := url.PathUnescape(chi.URLParam(r, "*"))
	if err != nil || name == "" {
		writeError(w, http.StatusNotFound, CodeUnknownZone, "unknown timezone")
		return
	}

	at := h.now()
	if raw := r.URL.Query().Get("at"); raw != "" {
		ts, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, CodeInvalidTimestamp, "'at' must be a unix timestamp in seconds")
			return
		}
		if at, err = timezone.TimestampToUTC(ts); err != nil {
			writeError(w, http.StatusBadRequest, CodeInvalidTimestamp, err.Error())
			return
		}
	}

	info, err := h.engine.Lookup(name, at)
	if err != nil {
		if errors.Is(err, timezone.ErrUnknownZone) {
			writeError(w, http.StatusNotFound, CodeUnknownZone, err.Error())
			return
		}
		h.internalError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ToZoneInfoResponse(info))
}

// Locate describes the zone covering a coordinate, now.
// GET /api/location?lat=35.6762&lng=139.6503
func (h *TimezoneHandler) Locate(w http.ResponseWriter, r *http.Request) {
	lat, err := floatParam(r, "lat")
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeInvalidCoords, err.Error())
		return
	}
	lng, err := floatParam(r, "lng")
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeInvalidCoords, err.Error())
		return
	}

	zone, err := h.locator.Locate(lat, lng)
	if err != nil {
		switch {
		case errors.Is(err, timezone.ErrInvalidCoordinates):
			writeError(w, http.StatusBadRequest, CodeInvalidCoords, err.Error())
		case errors.Is(err, timezone.ErrUnknownZone):
			writeError(w, http.StatusNotFound, CodeUnknownZone, err.Error())
		default:
			h.internalError(w, r, err)
		}
		return
	}

	writeJSON(w, http.StatusOK, dto.ToZoneInfoResponse(h.engine.ZoneInfo(zone, h.now())))
}

func floatParam(r *http.Request, name string) (float64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, fmt.Errorf("'%s' is required", name)
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("'%s' must be a decimal number", name)
	}
	return v, nil
}

// Convert converts a unix timestamp or a local datetime into another zone.
// POST /api/convert
func (h *TimezoneHandler) Convert(w http.ResponseWriter, r *http.Request) {
	var body dto.ConvertRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, CodeInvalidRequest, "invalid JSON body")
		return
	}

	req, err := timezone.NewRequest(body.ToInput())
	if err != nil {
		h.conversionError(w, r, err)
		return
	}

	result, err := h.engine.Convert(req)
	if err != nil {
		h.conversionError(w, r, err)
		return
	}

	switch req.(type) {
	case timezone.ByDatetime:
		h.metrics.IncConversion("datetime")
	default:
		h.metrics.IncConversion("timestamp")
	}
	if result.Ambiguous {
		h.metrics.IncConversionAmbiguous()
	}
	if result.Shifted {
		h.metrics.IncConversionShifted()
	}

	writeJSON(w, http.StatusOK, dto.ToConversionResponse(result))
}

func (h *TimezoneHandler) conversionError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, timezone.ErrUnknownZone):
		writeError(w, http.StatusBadRequest, CodeUnknownZone, err.Error())
	case errors.Is(err, timezone.ErrInvalidDatetime):
		writeError(w, http.StatusBadRequest, CodeInvalidDatetime, err.Error())
	case errors.Is(err, timezone.ErrInvalidTimestamp):
		writeError(w, http.StatusBadRequest, CodeInvalidTimestamp, err.Error())
	case errors.Is(err, timezone.ErrInvalidRequest):
		writeError(w, http.StatusBadRequest, CodeInvalidRequest, err.Error())
	default:
		h.internalError(w, r, err)
	}
}

func (h *TimezoneHandler) internalError(w http.ResponseWriter, r *http.Request, err error) {
	h.logger.Error("timezone request failed",
		"request_id", middleware.GetRequestID(r.Context()),
		"key_id", auth.KeyIDFromContext(r.Context()),
		"error", err,
	)
	writeError(w, http.StatusInternalServerError, CodeInternal, "internal server error")
}
