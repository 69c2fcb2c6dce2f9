// Package healthdata exposes the synced HealthKit aggregates of one profile
// in the shape the assistant and the home screen consume.
package healthdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/dustin/go-humanize"
)

var (
	// ErrNoData означает, что за запрошенный период ничего не синхронизировано.
	ErrNoData = errors.New("no health data")
)

// StepsGoal отображается в подзаголовке карточки шагов.
const StepsGoal = 8000

// Activity — карточка активности (шаги за сегодня, минуты по типу тренировки за неделю).
type Activity struct {
	Title    string `json:"title"`
	Subtitle string `json:"subtitle"`
	Amount   string `json:"amount"`
}

// Workout — тренировка в списке за месяц, все поля уже отформатированы.
type Workout struct {
	Title    string `json:"title"`
	Duration string `json:"duration"` // "N mins"
	Date     string `json:"date"`     // "Jan-2"
	Calories string `json:"calories"` // "X kcal" или "- kcal"
}

// Source — источник данных о здоровье. Каждый метод независим и может вернуть ошибку.
type Source interface {
	TodaySteps(ctx context.Context) (Activity, error)
	TodayCalories(ctx context.Context) (float64, error)
	TodayExerciseMinutes(ctx context.Context) (float64, error)
	TodayStandHours(ctx context.Context) (int, error)
	WeekWorkoutSummary(ctx context.Context) ([]Activity, error)
	MonthWorkouts(ctx context.Context) ([]Workout, error)
}

// DailyActivity — activity часть дневного агрегата из /v1/sync/batch.
type DailyActivity struct {
	Steps            int     `json:"steps"`
	ActiveEnergyKcal int     `json:"active_energy_kcal"`
	ExerciseMin      int     `json:"exercise_min"`
	StandHours       int     `json:"stand_hours"`
	DistanceKm       float64 `json:"distance_km"`
}

// DecodeDailyActivity достаёт activity из сохранённого payload дневной метрики.
// Payload без activity возвращает ErrNoData.
func DecodeDailyActivity(payload []byte) (DailyActivity, error) {
	var daily struct {
		Activity *DailyActivity `json:"activity"`
	}
	if err := json.Unmarshal(payload, &daily); err != nil {
		return DailyActivity{}, fmt.Errorf("decode daily payload: %w", err)
	}
	if daily.Activity == nil {
		return DailyActivity{}, ErrNoData
	}
	return *daily.Activity, nil
}

// FormatNumber округляет до целого и добавляет разделители тысяч: 8000 -> "8,000".
func FormatNumber(v float64) string {
	return humanize.Comma(int64(math.Round(v)))
}
