package healthdata

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fdg312/fitswift-hub/internal/storage"
	"github.com/google/uuid"
)

// WeekWorkoutTypes — типы тренировок недельной сводки, в порядке отображения.
var WeekWorkoutTypes = []string{
	"Running",
	"Strength Training",
	"Soccer",
	"Basketball",
	"Stairstepper",
	"Kickboxing",
}

// MetricsReader — часть storage.MetricsStorage, нужная источнику.
type MetricsReader interface {
	GetDailyMetrics(ctx context.Context, profileID uuid.UUID, from, to string) ([]storage.DailyMetricRow, error)
	ListWorkouts(ctx context.Context, profileID uuid.UUID, from, to time.Time) ([]storage.WorkoutRow, error)
}

// StorageSource реализует Source поверх синхронизированных метрик одного профиля.
type StorageSource struct {
	metrics   MetricsReader
	profileID uuid.UUID
	loc       *time.Location
	now       func() time.Time
}

// NewStorageSource создаёт источник; nil loc означает UTC.
func NewStorageSource(metrics MetricsReader, profileID uuid.UUID, loc *time.Location) *StorageSource {
	if loc == nil {
		loc = time.UTC
	}
	return &StorageSource{
		metrics:   metrics,
		profileID: profileID,
		loc:       loc,
		now:       time.Now,
	}
}

// WithClock подменяет текущее время (для тестов).
func (s *StorageSource) WithClock(now func() time.Time) *StorageSource {
	s.now = now
	return s
}

func (s *StorageSource) TodaySteps(ctx context.Context) (Activity, error) {
	today, err := s.today(ctx)
	if err != nil {
		return Activity{}, err
	}
	return Activity{
		Title:    "Today Steps",
		Subtitle: fmt.Sprintf("Goal: %s steps", FormatNumber(StepsGoal)),
		Amount:   FormatNumber(float64(today.Steps)),
	}, nil
}

func (s *StorageSource) TodayCalories(ctx context.Context) (float64, error) {
	today, err := s.today(ctx)
	if err != nil {
		return 0, err
	}
	return float64(today.ActiveEnergyKcal), nil
}

func (s *StorageSource) TodayExerciseMinutes(ctx context.Context) (float64, error) {
	today, err := s.today(ctx)
	if err != nil {
		return 0, err
	}
	return float64(today.ExerciseMin), nil
}

func (s *StorageSource) TodayStandHours(ctx context.Context) (int, error) {
	today, err := s.today(ctx)
	if err != nil {
		return 0, err
	}
	return today.StandHours, nil
}

// WeekWorkoutSummary суммирует минуты по типам с понедельника текущей недели.
// Типы без тренировок дают "0 mins".
func (s *StorageSource) WeekWorkoutSummary(ctx context.Context) ([]Activity, error) {
	now := s.now().In(s.loc)
	rows, err := s.metrics.ListWorkouts(ctx, s.profileID, StartOfWeek(now), now)
	if err != nil {
		return nil, fmt.Errorf("list week workouts: %w", err)
	}

	minutes := make(map[string]int, len(WeekWorkoutTypes))
	for _, w := range rows {
		for _, t := range WeekWorkoutTypes {
			if strings.EqualFold(strings.TrimSpace(w.Label), t) {
				minutes[t] += int(w.Duration().Minutes())
				break
			}
		}
	}

	summary := make([]Activity, 0, len(WeekWorkoutTypes))
	for _, t := range WeekWorkoutTypes {
		summary = append(summary, Activity{
			Title:    t,
			Subtitle: "This week",
			Amount:   fmt.Sprintf("%d mins", minutes[t]),
		})
	}
	return summary, nil
}

// MonthWorkouts возвращает тренировки текущего месяца, новые первыми.
func (s *StorageSource) MonthWorkouts(ctx context.Context) ([]Workout, error) {
	now := s.now().In(s.loc)
	from, to := MonthBounds(now)
	rows, err := s.metrics.ListWorkouts(ctx, s.profileID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list month workouts: %w", err)
	}

	workouts := make([]Workout, 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- {
		workouts = append(workouts, FormatWorkout(rows[i], s.loc))
	}
	return workouts, nil
}

func (s *StorageSource) today(ctx context.Context) (DailyActivity, error) {
	date := s.now().In(s.loc).Format("2006-01-02")
	rows, err := s.metrics.GetDailyMetrics(ctx, s.profileID, date, date)
	if err != nil {
		return DailyActivity{}, fmt.Errorf("get daily metrics: %w", err)
	}
	if len(rows) == 0 {
		return DailyActivity{}, ErrNoData
	}
	return DecodeDailyActivity(rows[0].Payload)
}

// FormatWorkout форматирует тренировку для списка: "N mins", "Jan-2", "X kcal".
func FormatWorkout(w storage.WorkoutRow, loc *time.Location) Workout {
	calories := "-"
	if w.CaloriesKcal != nil {
		calories = FormatNumber(float64(*w.CaloriesKcal))
	}
	return Workout{
		Title:    w.Label,
		Duration: fmt.Sprintf("%d mins", int(w.Duration().Minutes())),
		Date:     w.Start.In(loc).Format("Jan-2"),
		Calories: calories + " kcal",
	}
}

// StartOfDay — полночь дня t в его зоне.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// StartOfWeek — понедельник недели t, 00:00.
func StartOfWeek(t time.Time) time.Time {
	day := StartOfDay(t)
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}

// MonthBounds — [первое число месяца t, первое число следующего месяца).
func MonthBounds(t time.Time) (time.Time, time.Time) {
	y, m, _ := t.Date()
	from := time.Date(y, m, 1, 0, 0, 0, 0, t.Location())
	return from, from.AddDate(0, 1, 0)
}
