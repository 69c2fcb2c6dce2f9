package insights

import (
	"context"
	"fmt"
	"time"

	"github.com/fdg312/fitswift-hub/internal/healthdata"
	"github.com/fdg312/fitswift-hub/internal/storage"
	"github.com/fdg312/fitswift-hub/internal/toolcall"
	"github.com/google/uuid"
)

const dateLayout = "2006-01-02"

// dayValues — значения метрики по дням "YYYY-MM-DD" в зоне loc.
type dayValues map[string]int

// dailyValues читает метрику за [from, to] (даты включительно).
func (s *Service) dailyValues(ctx context.Context, profileID uuid.UUID, metric toolcall.Metric, from, to time.Time) (dayValues, error) {
	values := make(dayValues)

	if metric == toolcall.MetricWorkouts {
		rows, err := s.metrics.ListWorkouts(ctx, profileID, from, to.AddDate(0, 0, 1))
		if err != nil {
			return nil, fmt.Errorf("list workouts: %w", err)
		}
		for _, w := range rows {
			values[w.Start.In(from.Location()).Format(dateLayout)]++
		}
		return values, nil
	}

	rows, err := s.metrics.GetDailyMetrics(ctx, profileID, from.Format(dateLayout), to.Format(dateLayout))
	if err != nil {
		return nil, fmt.Errorf("get daily metrics: %w", err)
	}
	for _, row := range rows {
		act, err := healthdata.DecodeDailyActivity(row.Payload)
		if err != nil {
			continue
		}
		values[row.Date] = activityValue(act, metric)
	}
	return values, nil
}

func activityValue(act healthdata.DailyActivity, metric toolcall.Metric) int {
	switch metric {
	case toolcall.MetricCalories:
		return act.ActiveEnergyKcal
	case toolcall.MetricExercise:
		return act.ExerciseMin
	case toolcall.MetricStandHours:
		return act.StandHours
	default:
		return act.Steps
	}
}

// daysSeries — по точке на каждый из days последних дней, заканчивая today.
func (s *Service) daysSeries(ctx context.Context, profileID uuid.UUID, metric toolcall.Metric, today time.Time, days int, labelLayout string) ([]Point, error) {
	from := today.AddDate(0, 0, -(days - 1))
	values, err := s.dailyValues(ctx, profileID, metric, from, today)
	if err != nil {
		return nil, err
	}

	points := make([]Point, 0, days)
	for d := from; !d.After(today); d = d.AddDate(0, 0, 1) {
		date := d.Format(dateLayout)
		points = append(points, Point{Label: d.Format(labelLayout), Date: date, Value: values[date]})
	}
	return points, nil
}

// yearSeries — 12 месячных сумм, заканчивая текущим месяцем.
func (s *Service) yearSeries(ctx context.Context, profileID uuid.UUID, metric toolcall.Metric, today time.Time) ([]Point, error) {
	currentMonth, _ := healthdata.MonthBounds(today)
	from := currentMonth.AddDate(0, -11, 0)

	values, err := s.dailyValues(ctx, profileID, metric, from, today)
	if err != nil {
		return nil, err
	}

	points := make([]Point, 0, 12)
	for m := from; !m.After(currentMonth); m = m.AddDate(0, 1, 0) {
		_, next := healthdata.MonthBounds(m)
		sum := 0
		for d := m; d.Before(next); d = d.AddDate(0, 0, 1) {
			sum += values[d.Format(dateLayout)]
		}
		points = append(points, Point{Label: m.Format("Jan"), Date: m.Format(dateLayout), Value: sum})
	}
	return points, nil
}

// hourSeries — 24 часовые точки за сегодня. Часовые корзины есть только для
// шагов и калорий; тренировки считаются по часу начала, остальные метрики
// отдаются одной дневной точкой.
func (s *Service) hourSeries(ctx context.Context, profileID uuid.UUID, metric toolcall.Metric, today time.Time) ([]Point, error) {
	switch metric {
	case toolcall.MetricSteps, toolcall.MetricCalories:
		rows, err := s.metrics.GetHourlyMetrics(ctx, profileID, today.UTC().Format(dateLayout))
		if err != nil {
			return nil, fmt.Errorf("get hourly metrics: %w", err)
		}
		byHour := make(map[int]int, len(rows))
		for _, row := range rows {
			byHour[row.Hour.UTC().Hour()] = hourlyValue(row, metric)
		}
		return hourPoints(time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC), byHour), nil

	case toolcall.MetricWorkouts:
		rows, err := s.metrics.ListWorkouts(ctx, profileID, today, today.AddDate(0, 0, 1))
		if err != nil {
			return nil, fmt.Errorf("list workouts: %w", err)
		}
		byHour := make(map[int]int)
		for _, w := range rows {
			byHour[w.Start.In(today.Location()).Hour()]++
		}
		return hourPoints(today, byHour), nil

	default:
		return s.daysSeries(ctx, profileID, metric, today, 1, "Today")
	}
}

func hourlyValue(row storage.HourlyMetricRow, metric toolcall.Metric) int {
	var v *int
	if metric == toolcall.MetricCalories {
		v = row.ActiveEnergyKcal
	} else {
		v = row.Steps
	}
	if v == nil {
		return 0
	}
	return *v
}

func hourPoints(day time.Time, byHour map[int]int) []Point {
	points := make([]Point, 0, 24)
	for h := 0; h < 24; h++ {
		t := day.Add(time.Duration(h) * time.Hour)
		points = append(points, Point{Label: t.Format("15:04"), Date: t.Format(time.RFC3339), Value: byHour[h]})
	}
	return points
}

func pointValues(points []Point) []int {
	values := make([]int, 0, len(points))
	for _, p := range points {
		values = append(values, p.Value)
	}
	return values
}
