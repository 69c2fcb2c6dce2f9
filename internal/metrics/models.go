package metrics

import (
	"time"

	"github.com/google/uuid"
)

// SyncBatchRequest — запрос для батчевой синхронизации
type SyncBatchRequest struct {
	ProfileID      uuid.UUID        `json:"profile_id"`
	ClientTimeZone string           `json:"client_time_zone,omitempty"`
	Daily          []DailyAggregate `json:"daily,omitempty"`
	Hourly         []HourlyBucket   `json:"hourly,omitempty"`
	Sessions       Sessions         `json:"sessions,omitempty"`
}

// SyncBatchResponse — ответ на батчевую синхронизацию
type SyncBatchResponse struct {
	Status           string `json:"status"`
	UpsertedDaily    int    `json:"upserted_daily"`
	UpsertedHourly   int    `json:"upserted_hourly"`
	InsertedWorkouts int    `json:"inserted_workouts"`
}

// DailyAggregate — агрегированные данные за день
type DailyAggregate struct {
	Date     string         `json:"date"` // YYYY-MM-DD
	Activity *ActivityDaily `json:"activity,omitempty"`
	Sleep    *SleepDaily    `json:"sleep,omitempty"`
}

type ActivityDaily struct {
	Steps            int     `json:"steps"`
	ActiveEnergyKcal int     `json:"active_energy_kcal"`
	ExerciseMin      int     `json:"exercise_min"`
	StandHours       int     `json:"stand_hours"`
	DistanceKm       float64 `json:"distance_km"`
}

type SleepDaily struct {
	TotalMinutes int `json:"total_minutes"`
}

// HourlyBucket — данные за час
type HourlyBucket struct {
	Hour             time.Time `json:"hour"` // RFC3339, начало часа UTC
	Steps            *int      `json:"steps,omitempty"`
	ActiveEnergyKcal *int      `json:"active_energy_kcal,omitempty"`
}

// Sessions — сессии тренировок
type Sessions struct {
	Workouts []WorkoutSession `json:"workouts,omitempty"`
}

// WorkoutSession — сессия тренировки
type WorkoutSession struct {
	Start        time.Time `json:"start"` // RFC3339
	End          time.Time `json:"end"`   // RFC3339
	Label        string    `json:"label"` // "Running"|"Strength Training"|...
	CaloriesKcal *int      `json:"calories_kcal,omitempty"`
}

// WorkoutDTO — тренировка в ответе GET /v1/workouts
type WorkoutDTO struct {
	Start           time.Time `json:"start"`
	End             time.Time `json:"end"`
	Label           string    `json:"label"`
	DurationMinutes int       `json:"duration_minutes"`
	CaloriesKcal    *int      `json:"calories_kcal,omitempty"`
}

// DailyMetricsResponse — ответ для GET /v1/metrics/daily
type DailyMetricsResponse struct {
	Daily []DailyAggregate `json:"daily"`
}

// HourlyMetricsResponse — ответ для GET /v1/metrics/hourly
type HourlyMetricsResponse struct {
	Hourly []HourlyBucket `json:"hourly"`
}

// WorkoutsResponse — ответ для GET /v1/workouts
type WorkoutsResponse struct {
	Workouts []WorkoutDTO `json:"workouts"`
}

// ErrorResponse — формат ошибки
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
