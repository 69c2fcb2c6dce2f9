package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/fdg312/fitswift-hub/internal/storage"
	"github.com/fdg312/fitswift-hub/internal/userctx"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrProfileNotFound = errors.New("profile not found")
	ErrInvalidDate     = errors.New("invalid date format")
	ErrInvalidRange    = errors.New("invalid date range")
	ErrInvalidTime     = errors.New("invalid time range")
	ErrInvalidLabel    = errors.New("invalid workout label")
)

const (
	HourlyMetricSteps        = "steps"
	HourlyMetricActiveEnergy = "active_energy"
)

// Service содержит бизнес-логику метрик
type Service struct {
	profileStorage storage.Storage
	metricsStorage storage.MetricsStorage
	log            *zap.Logger
}

// NewService создаёт новый сервис
func NewService(profileStorage storage.Storage, metricsStorage storage.MetricsStorage, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		profileStorage: profileStorage,
		metricsStorage: metricsStorage,
		log:            log,
	}
}

// SyncBatch обрабатывает батчевую синхронизацию.
// Весь батч валидируется до записи, чтобы не сохранять его частично.
func (s *Service) SyncBatch(ctx context.Context, req SyncBatchRequest) (*SyncBatchResponse, error) {
	if err := s.ensureProfileAccess(ctx, req.ProfileID); err != nil {
		return nil, ErrProfileNotFound
	}

	if err := validateBatch(req); err != nil {
		return nil, err
	}

	resp := &SyncBatchResponse{
		Status: "ok",
	}

	for _, daily := range req.Daily {
		payload, err := json.Marshal(daily)
		if err != nil {
			return nil, err
		}

		if err := s.metricsStorage.UpsertDailyMetric(ctx, req.ProfileID, daily.Date, payload); err != nil {
			return nil, err
		}

		resp.UpsertedDaily++
	}

	for _, hourly := range req.Hourly {
		if err := s.metricsStorage.UpsertHourlyMetric(ctx, req.ProfileID, hourly.Hour, hourly.Steps, hourly.ActiveEnergyKcal); err != nil {
			return nil, err
		}

		resp.UpsertedHourly++
	}

	for _, workout := range req.Sessions.Workouts {
		row := storage.WorkoutRow{
			ProfileID:    req.ProfileID,
			Start:        workout.Start.UTC(),
			End:          workout.End.UTC(),
			Label:        strings.TrimSpace(workout.Label),
			CaloriesKcal: workout.CaloriesKcal,
		}
		if err := s.metricsStorage.InsertWorkout(ctx, row); err != nil {
			return nil, err
		}

		resp.InsertedWorkouts++
	}

	s.log.Info("sync batch stored",
		zap.Stringer("profile_id", req.ProfileID),
		zap.Int("daily", resp.UpsertedDaily),
		zap.Int("hourly", resp.UpsertedHourly),
		zap.Int("workouts", resp.InsertedWorkouts),
	)

	return resp, nil
}

// GetDailyMetrics возвращает дневные метрики за период
func (s *Service) GetDailyMetrics(ctx context.Context, profileID uuid.UUID, from, to string) (*DailyMetricsResponse, error) {
	if err := s.ensureProfileAccess(ctx, profileID); err != nil {
		return nil, ErrProfileNotFound
	}

	if err := validateDate(from); err != nil {
		return nil, err
	}
	if err := validateDate(to); err != nil {
		return nil, err
	}
	if from > to {
		return nil, ErrInvalidRange
	}

	rows, err := s.metricsStorage.GetDailyMetrics(ctx, profileID, from, to)
	if err != nil {
		return nil, err
	}

	dailyAggs := []DailyAggregate{}
	for _, row := range rows {
		var agg DailyAggregate
		if err := json.Unmarshal(row.Payload, &agg); err != nil {
			s.log.Warn("skip invalid daily payload", zap.String("date", row.Date), zap.Error(err))
			continue
		}
		dailyAggs = append(dailyAggs, agg)
	}

	return &DailyMetricsResponse{Daily: dailyAggs}, nil
}

// GetHourlyMetrics возвращает часовые метрики за день
func (s *Service) GetHourlyMetrics(ctx context.Context, profileID uuid.UUID, date, metric string) (*HourlyMetricsResponse, error) {
	if err := s.ensureProfileAccess(ctx, profileID); err != nil {
		return nil, ErrProfileNotFound
	}

	if err := validateDate(date); err != nil {
		return nil, err
	}

	rows, err := s.metricsStorage.GetHourlyMetrics(ctx, profileID, date)
	if err != nil {
		return nil, err
	}

	hourlyBuckets := []HourlyBucket{}
	for _, row := range rows {
		bucket := HourlyBucket{Hour: row.Hour}

		switch metric {
		case HourlyMetricSteps:
			bucket.Steps = row.Steps
		case HourlyMetricActiveEnergy:
			bucket.ActiveEnergyKcal = row.ActiveEnergyKcal
		}

		// Добавляем только если есть данные для запрошенной метрики
		if bucket.Steps != nil || bucket.ActiveEnergyKcal != nil {
			hourlyBuckets = append(hourlyBuckets, bucket)
		}
	}

	return &HourlyMetricsResponse{Hourly: hourlyBuckets}, nil
}

// ListWorkouts возвращает тренировки, начавшиеся в днях [from, to] включительно
func (s *Service) ListWorkouts(ctx context.Context, profileID uuid.UUID, from, to string) (*WorkoutsResponse, error) {
	if err := s.ensureProfileAccess(ctx, profileID); err != nil {
		return nil, ErrProfileNotFound
	}

	fromDate, err := time.Parse("2006-01-02", from)
	if err != nil {
		return nil, ErrInvalidDate
	}
	toDate, err := time.Parse("2006-01-02", to)
	if err != nil {
		return nil, ErrInvalidDate
	}
	if fromDate.After(toDate) {
		return nil, ErrInvalidRange
	}

	rows, err := s.metricsStorage.ListWorkouts(ctx, profileID, fromDate, toDate.AddDate(0, 0, 1))
	if err != nil {
		return nil, err
	}

	workouts := make([]WorkoutDTO, 0, len(rows))
	for _, row := range rows {
		workouts = append(workouts, WorkoutDTO{
			Start:           row.Start,
			End:             row.End,
			Label:           row.Label,
			DurationMinutes: int(row.Duration().Minutes()),
			CaloriesKcal:    row.CaloriesKcal,
		})
	}

	return &WorkoutsResponse{Workouts: workouts}, nil
}

// Валидация

func validateBatch(req SyncBatchRequest) error {
	for _, daily := range req.Daily {
		if err := validateDate(daily.Date); err != nil {
			return err
		}
	}
	for _, hourly := range req.Hourly {
		if hourly.Hour.IsZero() {
			return ErrInvalidTime
		}
	}
	for _, workout := range req.Sessions.Workouts {
		if err := validateTimeRange(workout.Start, workout.End); err != nil {
			return err
		}
		if strings.TrimSpace(workout.Label) == "" {
			return ErrInvalidLabel
		}
	}
	return nil
}

func validateDate(date string) error {
	_, err := time.Parse("2006-01-02", date)
	if err != nil {
		return ErrInvalidDate
	}
	return nil
}

func validateTimeRange(start, end time.Time) error {
	if start.After(end) || start.Equal(end) {
		return ErrInvalidTime
	}
	return nil
}

func (s *Service) ensureProfileAccess(ctx context.Context, profileID uuid.UUID) error {
	profile, err := s.profileStorage.GetProfile(ctx, profileID)
	if err != nil {
		return ErrProfileNotFound
	}

	if userID, ok := userctx.GetUserID(ctx); ok && strings.TrimSpace(userID) != "" && profile.OwnerUserID != userID {
		return ErrProfileNotFound
	}

	return nil
}
