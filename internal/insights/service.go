package insights

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/fdg312/fitswift-hub/internal/config"
	"github.com/fdg312/fitswift-hub/internal/healthdata"
	"github.com/fdg312/fitswift-hub/internal/storage"
	"github.com/fdg312/fitswift-hub/internal/toolcall"
	"github.com/fdg312/fitswift-hub/internal/userctx"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrProfileNotFound = errors.New("profile not found")
	ErrInvalidMetric   = errors.New("invalid metric")
	ErrInvalidRange    = errors.New("invalid range")
)

// MetricsReader — часть storage.MetricsStorage для чтения.
type MetricsReader interface {
	GetDailyMetrics(ctx context.Context, profileID uuid.UUID, from, to string) ([]storage.DailyMetricRow, error)
	GetHourlyMetrics(ctx context.Context, profileID uuid.UUID, date string) ([]storage.HourlyMetricRow, error)
	ListWorkouts(ctx context.Context, profileID uuid.UUID, from, to time.Time) ([]storage.WorkoutRow, error)
}

type Service struct {
	profiles storage.Storage
	metrics  MetricsReader
	goals    config.Goals
	log      *zap.Logger
	now      func() time.Time
}

func NewService(profiles storage.Storage, metrics MetricsReader, goals config.Goals, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	if goals.Steps <= 0 {
		goals.Steps = 10000
	}
	if goals.Calories <= 0 {
		goals.Calories = 600
	}
	if goals.ExerciseMin <= 0 {
		goals.ExerciseMin = 30
	}
	return &Service{
		profiles: profiles,
		metrics:  metrics,
		goals:    goals,
		log:      log,
		now:      time.Now,
	}
}

// ParseMetric строго проверяет метрику из запроса.
func ParseMetric(raw string) (toolcall.Metric, error) {
	switch m := toolcall.Metric(strings.TrimSpace(raw)); m {
	case toolcall.MetricSteps, toolcall.MetricCalories, toolcall.MetricExercise,
		toolcall.MetricWorkouts, toolcall.MetricStandHours:
		return m, nil
	}
	return "", ErrInvalidMetric
}

// ParseRange строго проверяет период из запроса.
func ParseRange(raw string) (toolcall.TimeRange, error) {
	switch r := toolcall.TimeRange(strings.TrimSpace(raw)); r {
	case toolcall.RangeDay, toolcall.RangeWeek, toolcall.RangeMonth, toolcall.RangeYear:
		return r, nil
	}
	return "", ErrInvalidRange
}

// Series строит ряд для графика: day — часы сегодняшнего дня, week — 7 дней,
// month — 30 дней, year — 12 месяцев.
func (s *Service) Series(ctx context.Context, profileID uuid.UUID, metric toolcall.Metric, rng toolcall.TimeRange, loc *time.Location) (*SeriesResponse, error) {
	if err := s.ensureProfileAccess(ctx, profileID); err != nil {
		return nil, err
	}
	if loc == nil {
		loc = time.UTC
	}
	today := healthdata.StartOfDay(s.now().In(loc))

	var (
		points []Point
		err    error
	)
	switch rng {
	case toolcall.RangeDay:
		points, err = s.hourSeries(ctx, profileID, metric, today)
	case toolcall.RangeWeek:
		points, err = s.daysSeries(ctx, profileID, metric, today, 7, "Mon")
	case toolcall.RangeMonth:
		points, err = s.daysSeries(ctx, profileID, metric, today, 30, "Jan 2")
	case toolcall.RangeYear:
		points, err = s.yearSeries(ctx, profileID, metric, today)
	default:
		return nil, ErrInvalidRange
	}
	if err != nil {
		return nil, err
	}

	values := pointValues(points)
	return &SeriesResponse{
		ProfileID:  profileID.String(),
		Metric:     string(metric),
		Range:      string(rng),
		Points:     points,
		Statistics: Statistics(values),
		Trend:      Trend(values),
	}, nil
}

// Daily собирает советы на сегодня: прогресс по целям, регулярность
// тренировок за месяц и тренд шагов за 7 дней.
func (s *Service) Daily(ctx context.Context, profileID uuid.UUID, loc *time.Location) (*DailyInsightsResponse, error) {
	if err := s.ensureProfileAccess(ctx, profileID); err != nil {
		return nil, err
	}
	if loc == nil {
		loc = time.UTC
	}
	now := s.now().In(loc)
	today := healthdata.StartOfDay(now)

	weekSteps, err := s.daysSeries(ctx, profileID, toolcall.MetricSteps, today, 7, "Mon")
	if err != nil {
		return nil, err
	}
	weekExercise, err := s.daysSeries(ctx, profileID, toolcall.MetricExercise, today, 7, "Mon")
	if err != nil {
		return nil, err
	}

	var act healthdata.DailyActivity
	rows, err := s.metrics.GetDailyMetrics(ctx, profileID, today.Format(dateLayout), today.Format(dateLayout))
	if err != nil {
		return nil, fmt.Errorf("get daily metrics: %w", err)
	}
	if len(rows) > 0 {
		if decoded, err := healthdata.DecodeDailyActivity(rows[0].Payload); err == nil {
			act = decoded
		}
	}

	from, to := healthdata.MonthBounds(now)
	workouts, err := s.metrics.ListWorkouts(ctx, profileID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list workouts: %w", err)
	}

	insights := make([]Insight, 0, 8)
	insights = append(insights, s.goalInsights(act)...)
	insights = append(insights, workoutInsights(workouts)...)
	insights = append(insights, stepsTrendInsights(pointValues(weekSteps))...)
	insights = append(insights, s.exerciseConsistencyInsights(pointValues(weekExercise))...)
	insights = append(insights, Insight{
		Title:          "Activity Balance",
		Description:    "Based on your recent activity patterns, you might benefit from more variety in your workouts.",
		Recommendation: ptr("Try incorporating both cardio and strength training for a well-rounded fitness routine."),
		Type:           TypeRecommendation,
	})

	s.log.Debug("daily insights built",
		zap.Stringer("profile_id", profileID),
		zap.Int("insights", len(insights)),
	)

	return &DailyInsightsResponse{
		ProfileID: profileID.String(),
		Date:      today.Format(dateLayout),
		Insights:  insights,
	}, nil
}

func (s *Service) goalInsights(act healthdata.DailyActivity) []Insight {
	out := make([]Insight, 0, 3)

	stepsGoal := healthdata.FormatNumber(float64(s.goals.Steps))
	progress := float64(act.Steps) / float64(s.goals.Steps)
	pct := act.Steps * 100 / s.goals.Steps
	steps := healthdata.FormatNumber(float64(act.Steps))

	switch {
	case progress >= 1:
		out = append(out, Insight{
			Title:          "Daily Step Goal Achieved!",
			Description:    fmt.Sprintf("Congratulations! You've reached your daily step goal of %s steps.", stepsGoal),
			Recommendation: ptr(fmt.Sprintf("Keep up the great work! Consider increasing your goal to %s steps for an extra challenge.", healthdata.FormatNumber(float64(s.goals.Steps+1000)))),
			Type:           TypeAchievement,
		})
	case progress >= 0.7:
		out = append(out, Insight{
			Title:          "Almost There!",
			Description:    fmt.Sprintf("You're at %s steps, which is %d%% of your daily goal.", steps, pct),
			Recommendation: ptr(fmt.Sprintf("A short evening walk could help you reach your target of %s steps.", stepsGoal)),
			Type:           TypeObservation,
		})
	default:
		out = append(out, Insight{
			Title:          "Step Count Update",
			Description:    fmt.Sprintf("You've taken %s steps today, which is %d%% of your daily goal.", steps, pct),
			Recommendation: ptr(fmt.Sprintf("Try to incorporate more walking into your day to reach your goal of %s steps.", stepsGoal)),
			Type:           TypeObservation,
		})
	}

	if act.ActiveEnergyKcal >= s.goals.Calories {
		out = append(out, Insight{
			Title: "Calorie Goal Achieved!",
			Description: fmt.Sprintf("You've burned %s active calories today, exceeding your goal of %s calories.",
				healthdata.FormatNumber(float64(act.ActiveEnergyKcal)), healthdata.FormatNumber(float64(s.goals.Calories))),
			Type: TypeAchievement,
		})
	}

	if act.ExerciseMin >= s.goals.ExerciseMin {
		out = append(out, Insight{
			Title:          "Exercise Goal Achieved!",
			Description:    fmt.Sprintf("You've completed %d minutes of exercise today, meeting the recommended daily activity level.", act.ExerciseMin),
			Recommendation: ptr("Regular exercise contributes to better cardiovascular health and mood."),
			Type:           TypeAchievement,
		})
	}

	return out
}

// workoutInsights: при равенстве частот выбирается тип, раньше идущий по алфавиту.
func workoutInsights(workouts []storage.WorkoutRow) []Insight {
	switch {
	case len(workouts) == 0:
		return nil
	case len(workouts) < 3:
		return []Insight{{
			Title:          "Getting Started",
			Description:    fmt.Sprintf("You've logged %d workout(s) recently. Great start!", len(workouts)),
			Recommendation: ptr("Aim for consistency by scheduling regular workout sessions throughout the week."),
			Type:           TypeRecommendation,
		}}
	}

	counts := make(map[string]int)
	for _, w := range workouts {
		counts[w.Label]++
	}
	types := make([]string, 0, len(counts))
	for t := range counts {
		types = append(types, t)
	}
	slices.SortFunc(types, func(a, b string) int {
		if c := cmp.Compare(counts[b], counts[a]); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	})
	favourite := types[0]

	out := []Insight{{
		Title:          "Workout Preference",
		Description:    fmt.Sprintf("You seem to enjoy %s the most, with %d sessions in the past month.", favourite, counts[favourite]),
		Recommendation: ptr("For balanced fitness, consider incorporating different types of workouts into your routine."),
		Type:           TypeObservation,
	}}

	perWeek := float64(len(workouts)) / 4
	switch {
	case perWeek >= 3:
		out = append(out, Insight{
			Title:          "Consistent Training",
			Description:    fmt.Sprintf("You're averaging about %.1f workouts per week, which is excellent for fitness progress.", perWeek),
			Recommendation: ptr("Consistency is key to long-term fitness success. Keep up the great work!"),
			Type:           TypeAchievement,
		})
	case perWeek >= 1:
		out = append(out, Insight{
			Title:          "Building Consistency",
			Description:    fmt.Sprintf("You're averaging about %.1f workouts per week.", perWeek),
			Recommendation: ptr("Try to aim for 3-4 workouts per week for optimal fitness benefits."),
			Type:           TypeRecommendation,
		})
	}
	return out
}

func stepsTrendInsights(values []int) []Insight {
	trend := Trend(values)
	switch trend.Direction {
	case TrendIncrease:
		return []Insight{{
			Title:          "Positive Steps Trend",
			Description:    fmt.Sprintf("Your daily step count has increased by approximately %d%% over the past week.", trend.PercentChange),
			Recommendation: ptr("Keep up this positive trend to improve your cardiovascular health and energy levels."),
			Type:           TypeTrendAnalysis,
		}}
	case TrendDecrease:
		return []Insight{{
			Title:          "Decreasing Steps Trend",
			Description:    fmt.Sprintf("Your daily step count has decreased by approximately %d%% over the past week.", -trend.PercentChange),
			Recommendation: ptr("Try to incorporate more walking into your daily routine, such as taking the stairs or parking farther away."),
			Type:           TypeTrendAnalysis,
		}}
	}
	return nil
}

func (s *Service) exerciseConsistencyInsights(values []int) []Insight {
	days := 0
	for _, v := range values {
		if v >= s.goals.ExerciseMin {
			days++
		}
	}

	switch {
	case days >= 5:
		return []Insight{{
			Title:          "Excellent Exercise Consistency",
			Description:    fmt.Sprintf("You've met your exercise goal on %d days this week.", days),
			Recommendation: ptr("Consistent exercise is key to improving fitness and overall health."),
			Type:           TypeAchievement,
		}}
	case days >= 3:
		return []Insight{{
			Title:          "Good Exercise Frequency",
			Description:    fmt.Sprintf("You've met your exercise goal on %d days this week.", days),
			Recommendation: ptr("Try to be active on most days of the week for optimal health benefits."),
			Type:           TypeObservation,
		}}
	}
	return nil
}

func (s *Service) ensureProfileAccess(ctx context.Context, profileID uuid.UUID) error {
	profile, err := s.profiles.GetProfile(ctx, profileID)
	if err != nil {
		return ErrProfileNotFound
	}

	if userID, ok := userctx.GetUserID(ctx); ok && strings.TrimSpace(userID) != "" && profile.OwnerUserID != userID {
		return ErrProfileNotFound
	}

	return nil
}

func ptr(s string) *string { return &s }
