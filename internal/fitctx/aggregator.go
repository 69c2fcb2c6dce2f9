// Package fitctx builds the fitness context block that is sent to the model
// together with every chat message.
package fitctx

import (
	"context"
	"fmt"
	"strings"

	"github.com/fdg312/fitswift-hub/internal/healthdata"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	NotAvailable     = "Not available"
	NoWorkoutsWeek   = "No workouts recorded"
	NoWorkoutsRecent = "None recorded recently"
)

// Aggregator опрашивает Source параллельно и собирает снимок из 5 строк.
type Aggregator struct {
	log *zap.Logger
}

func NewAggregator(log *zap.Logger) *Aggregator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Aggregator{log: log}
}

// Aggregate никогда не возвращает ошибку: упавшая метрика заменяется заглушкой.
func (a *Aggregator) Aggregate(ctx context.Context, src healthdata.Source) string {
	var (
		steps, calories, exercise, stand string
		week, recent                     string
	)

	// Ошибки не отменяют остальные запросы, поэтому без errgroup.WithContext.
	var g errgroup.Group

	g.Go(func() error {
		s, err := src.TodaySteps(ctx)
		steps = a.value(err, "steps", func() string {
			return fmt.Sprintf("%s (%s)", oneLine(s.Amount), oneLine(s.Subtitle))
		})
		return nil
	})
	g.Go(func() error {
		v, err := src.TodayCalories(ctx)
		calories = a.value(err, "calories", func() string {
			return healthdata.FormatNumber(v) + " kcal"
		})
		return nil
	})
	g.Go(func() error {
		v, err := src.TodayExerciseMinutes(ctx)
		exercise = a.value(err, "exercise", func() string {
			return healthdata.FormatNumber(v) + " minutes"
		})
		return nil
	})
	g.Go(func() error {
		v, err := src.TodayStandHours(ctx)
		stand = a.value(err, "stand_hours", func() string {
			return fmt.Sprintf("%d", v)
		})
		return nil
	})
	g.Go(func() error {
		list, err := src.WeekWorkoutSummary(ctx)
		week = weekSummary(list)
		if err != nil {
			a.log.Warn("metric fetch failed", zap.String("metric", "week_workouts"), zap.Error(err))
			week = NoWorkoutsWeek
		}
		return nil
	})
	g.Go(func() error {
		list, err := src.MonthWorkouts(ctx)
		recent = recentWorkouts(list)
		if err != nil {
			a.log.Warn("metric fetch failed", zap.String("metric", "month_workouts"), zap.Error(err))
			recent = NoWorkoutsRecent
		}
		return nil
	})

	_ = g.Wait()

	lines := []string{
		"Steps today: " + steps,
		"Calories burned today: " + calories,
		"Exercise today: " + exercise,
		"Stand hours today: " + stand,
		"Workouts: this week " + week + "; this month " + recent,
	}
	return strings.Join(lines, "\n")
}

func (a *Aggregator) value(err error, metric string, format func() string) string {
	if err != nil {
		a.log.Warn("metric fetch failed", zap.String("metric", metric), zap.Error(err))
		return NotAvailable
	}
	return format()
}

func weekSummary(list []healthdata.Activity) string {
	parts := make([]string, 0, len(list))
	for _, act := range list {
		parts = append(parts, oneLine(act.Title)+" "+oneLine(act.Amount))
	}
	if len(parts) == 0 {
		return NoWorkoutsWeek
	}
	return strings.Join(parts, ", ")
}

func recentWorkouts(list []healthdata.Workout) string {
	parts := make([]string, 0, len(list))
	for _, w := range list {
		parts = append(parts, fmt.Sprintf("%s on %s (%s, %s)",
			oneLine(w.Title), oneLine(w.Date), oneLine(w.Duration), oneLine(w.Calories)))
	}
	if len(parts) == 0 {
		return NoWorkoutsRecent
	}
	return strings.Join(parts, ", ")
}

// oneLine схлопывает пробелы и переводы строк: каждая метрика занимает ровно одну строку снимка.
func oneLine(v string) string {
	return strings.Join(strings.Fields(v), " ")
}
