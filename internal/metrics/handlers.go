package metrics

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Handler содержит HTTP обработчики для метрик
type Handler struct {
	service *Service
}

// NewHandler создаёт новый handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// HandleSyncBatch обрабатывает POST /v1/sync/batch
func (h *Handler) HandleSyncBatch(w http.ResponseWriter, r *http.Request) {
	var req SyncBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendError(w, http.StatusBadRequest, "invalid_json", "Invalid JSON")
		return
	}

	resp, err := h.service.SyncBatch(r.Context(), req)
	if err != nil {
		h.handleError(w, err, "Failed to sync batch")
		return
	}

	h.sendJSON(w, http.StatusOK, resp)
}

// HandleGetDailyMetrics обрабатывает GET /v1/metrics/daily
func (h *Handler) HandleGetDailyMetrics(w http.ResponseWriter, r *http.Request) {
	from := r.URL.Query().Get("from")
	to := r.URL.Query().Get("to")

	profileID, ok := h.profileID(w, r)
	if !ok {
		return
	}
	if from == "" || to == "" {
		h.sendError(w, http.StatusBadRequest, "missing_params", "Missing required parameters")
		return
	}

	resp, err := h.service.GetDailyMetrics(r.Context(), profileID, from, to)
	if err != nil {
		h.handleError(w, err, "Failed to get daily metrics")
		return
	}

	h.sendJSON(w, http.StatusOK, resp)
}

// HandleGetHourlyMetrics обрабатывает GET /v1/metrics/hourly
func (h *Handler) HandleGetHourlyMetrics(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	metric := r.URL.Query().Get("metric")

	profileID, ok := h.profileID(w, r)
	if !ok {
		return
	}
	if date == "" || metric == "" {
		h.sendError(w, http.StatusBadRequest, "missing_params", "Missing required parameters")
		return
	}

	if metric != HourlyMetricSteps && metric != HourlyMetricActiveEnergy {
		h.sendError(w, http.StatusBadRequest, "invalid_metric", "Metric must be 'steps' or 'active_energy'")
		return
	}

	resp, err := h.service.GetHourlyMetrics(r.Context(), profileID, date, metric)
	if err != nil {
		h.handleError(w, err, "Failed to get hourly metrics")
		return
	}

	h.sendJSON(w, http.StatusOK, resp)
}

// HandleListWorkouts обрабатывает GET /v1/workouts
func (h *Handler) HandleListWorkouts(w http.ResponseWriter, r *http.Request) {
	from := r.URL.Query().Get("from")
	to := r.URL.Query().Get("to")

	profileID, ok := h.profileID(w, r)
	if !ok {
		return
	}
	if from == "" || to == "" {
		h.sendError(w, http.StatusBadRequest, "missing_params", "Missing required parameters")
		return
	}

	resp, err := h.service.ListWorkouts(r.Context(), profileID, from, to)
	if err != nil {
		h.handleError(w, err, "Failed to list workouts")
		return
	}

	h.sendJSON(w, http.StatusOK, resp)
}

func (h *Handler) profileID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := r.URL.Query().Get("profile_id")
	if raw == "" {
		h.sendError(w, http.StatusBadRequest, "missing_params", "Missing required parameters")
		return uuid.Nil, false
	}

	profileID, err := uuid.Parse(raw)
	if err != nil {
		h.sendError(w, http.StatusBadRequest, "invalid_profile_id", "Invalid profile ID")
		return uuid.Nil, false
	}
	return profileID, true
}

func (h *Handler) handleError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, ErrProfileNotFound):
		h.sendError(w, http.StatusNotFound, "profile_not_found", "Profile not found")
	case errors.Is(err, ErrInvalidDate):
		h.sendError(w, http.StatusBadRequest, "invalid_date", "Invalid date format")
	case errors.Is(err, ErrInvalidRange):
		h.sendError(w, http.StatusBadRequest, "invalid_range", "Invalid date range")
	case errors.Is(err, ErrInvalidTime):
		h.sendError(w, http.StatusBadRequest, "invalid_time", "Invalid time range")
	case errors.Is(err, ErrInvalidLabel):
		h.sendError(w, http.StatusBadRequest, "invalid_label", "Workout label is required")
	default:
		h.service.log.Error(fallback, zap.Error(err))
		h.sendError(w, http.StatusInternalServerError, "internal_error", fallback)
	}
}

// sendJSON отправляет JSON ответ
func (h *Handler) sendJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// sendError отправляет ошибку в формате ErrorResponse
func (h *Handler) sendError(w http.ResponseWriter, status int, code, message string) {
	h.sendJSON(w, status, ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
		},
	})
}
