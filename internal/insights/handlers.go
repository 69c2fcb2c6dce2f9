package insights

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Handler содержит HTTP обработчики графиков и советов
type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// HandleSeries обрабатывает GET /v1/charts/series
func (h *Handler) HandleSeries(w http.ResponseWriter, r *http.Request) {
	profileID, ok := profileIDParam(w, r)
	if !ok {
		return
	}
	loc, ok := locationParam(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	metricRaw := q.Get("metric")
	if metricRaw == "" {
		metricRaw = "steps"
	}
	metric, err := ParseMetric(metricRaw)
	if err != nil {
		h.handleError(w, err)
		return
	}

	rangeRaw := q.Get("range")
	if rangeRaw == "" {
		rangeRaw = "week"
	}
	rng, err := ParseRange(rangeRaw)
	if err != nil {
		h.handleError(w, err)
		return
	}

	resp, err := h.service.Series(r.Context(), profileID, metric, rng, loc)
	if err != nil {
		h.handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleDaily обрабатывает GET /v1/insights/daily
func (h *Handler) HandleDaily(w http.ResponseWriter, r *http.Request) {
	profileID, ok := profileIDParam(w, r)
	if !ok {
		return
	}
	loc, ok := locationParam(w, r)
	if !ok {
		return
	}

	resp, err := h.service.Daily(r.Context(), profileID, loc)
	if err != nil {
		h.handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrProfileNotFound):
		writeError(w, http.StatusNotFound, "profile_not_found", "Profile not found")
	case errors.Is(err, ErrInvalidMetric):
		writeError(w, http.StatusBadRequest, "invalid_metric", "Metric must be one of steps, calories, exercise, workouts, standHours")
	case errors.Is(err, ErrInvalidRange):
		writeError(w, http.StatusBadRequest, "invalid_range", "Range must be one of day, week, month, year")
	default:
		h.service.log.Error("insights request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error", "Internal server error")
	}
}

func profileIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get("profile_id"))
	if raw == "" {
		writeError(w, http.StatusBadRequest, "missing_params", "profile_id is required")
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_profile_id", "Invalid profile ID")
		return uuid.Nil, false
	}
	return id, true
}

// locationParam читает необязательную IANA зону ?tz=; по умолчанию UTC.
func locationParam(w http.ResponseWriter, r *http.Request) (*time.Location, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get("tz"))
	if raw == "" {
		return time.UTC, true
	}
	loc, err := time.LoadLocation(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_tz", "Invalid time zone")
		return nil, false
	}
	return loc, true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
		},
	})
}
