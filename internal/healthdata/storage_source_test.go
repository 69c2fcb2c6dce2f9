package healthdata

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/fdg312/fitswift-hub/internal/storage"
	"github.com/fdg312/fitswift-hub/internal/storage/memory"
	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
)

// 2026-02-12 — четверг.
var testNow = time.Date(2026, 2, 12, 18, 30, 0, 0, time.UTC)

func setupSource(t *testing.T) (*StorageSource, *memory.MemoryStorage, uuid.UUID) {
	t.Helper()

	store := memory.New()
	profiles, _ := store.ListProfiles(context.Background())
	profileID := profiles[0].ID

	src := NewStorageSource(store, profileID, time.UTC).WithClock(func() time.Time { return testNow })
	return src, store, profileID
}

func putDaily(t *testing.T, store *memory.MemoryStorage, profileID uuid.UUID, date string, a DailyActivity) {
	t.Helper()

	payload, err := json.Marshal(map[string]any{"date": date, "activity": a})
	if err != nil {
		t.Fatal(err)
	}
	if err := store.UpsertDailyMetric(context.Background(), profileID, date, payload); err != nil {
		t.Fatal(err)
	}
}

func putWorkout(t *testing.T, store *memory.MemoryStorage, profileID uuid.UUID, label string, start time.Time, minutes int, kcal *int) {
	t.Helper()

	err := store.InsertWorkout(context.Background(), storage.WorkoutRow{
		ProfileID:    profileID,
		Start:        start,
		End:          start.Add(time.Duration(minutes) * time.Minute),
		Label:        label,
		CaloriesKcal: kcal,
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestTodayMetrics(t *testing.T) {
	src, store, profileID := setupSource(t)
	putDaily(t, store, profileID, "2026-02-12", DailyActivity{
		Steps:            12345,
		ActiveEnergyKcal: 512,
		ExerciseMin:      42,
		StandHours:       9,
	})
	ctx := context.Background()

	steps, err := src.TodaySteps(ctx)
	if err != nil {
		t.Fatal(err)
	}
	want := Activity{Title: "Today Steps", Subtitle: "Goal: 8,000 steps", Amount: "12,345"}
	if diff := cmp.Diff(want, steps); diff != "" {
		t.Errorf("TodaySteps mismatch (-want +got):\n%s", diff)
	}

	kcal, err := src.TodayCalories(ctx)
	if err != nil || kcal != 512 {
		t.Errorf("TodayCalories = %v, %v; want 512", kcal, err)
	}
	exercise, err := src.TodayExerciseMinutes(ctx)
	if err != nil || exercise != 42 {
		t.Errorf("TodayExerciseMinutes = %v, %v; want 42", exercise, err)
	}
	stand, err := src.TodayStandHours(ctx)
	if err != nil || stand != 9 {
		t.Errorf("TodayStandHours = %v, %v; want 9", stand, err)
	}
}

func TestTodayMetricsNoData(t *testing.T) {
	src, store, profileID := setupSource(t)
	// Вчерашние данные не считаются сегодняшними.
	putDaily(t, store, profileID, "2026-02-11", DailyActivity{Steps: 5000})

	if _, err := src.TodaySteps(context.Background()); !errors.Is(err, ErrNoData) {
		t.Fatalf("expected ErrNoData, got %v", err)
	}
	if _, err := src.TodayStandHours(context.Background()); !errors.Is(err, ErrNoData) {
		t.Fatalf("expected ErrNoData, got %v", err)
	}
}

func TestTodayUsesProfileTimeZone(t *testing.T) {
	loc := time.FixedZone("UTC+10", 10*60*60)
	_, store, profileID := setupSource(t)
	// 18:30 UTC 12 февраля — это уже 13 февраля в UTC+10.
	putDaily(t, store, profileID, "2026-02-13", DailyActivity{Steps: 100})

	src := NewStorageSource(store, profileID, loc).WithClock(func() time.Time { return testNow })
	steps, err := src.TodaySteps(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if steps.Amount != "100" {
		t.Fatalf("expected 100 steps, got %q", steps.Amount)
	}
}

func TestWeekWorkoutSummary(t *testing.T) {
	src, store, profileID := setupSource(t)

	monday := time.Date(2026, 2, 9, 7, 0, 0, 0, time.UTC)
	putWorkout(t, store, profileID, "Running", monday, 30, nil)
	putWorkout(t, store, profileID, "running", monday.AddDate(0, 0, 2), 25, nil)
	putWorkout(t, store, profileID, "Kickboxing", monday.AddDate(0, 0, 1), 45, nil)
	putWorkout(t, store, profileID, "Yoga", monday.AddDate(0, 0, 1).Add(3*time.Hour), 60, nil)
	// Прошлая неделя не попадает в сводку.
	putWorkout(t, store, profileID, "Soccer", monday.AddDate(0, 0, -1), 90, nil)

	got, err := src.WeekWorkoutSummary(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	want := []Activity{
		{Title: "Running", Subtitle: "This week", Amount: "55 mins"},
		{Title: "Strength Training", Subtitle: "This week", Amount: "0 mins"},
		{Title: "Soccer", Subtitle: "This week", Amount: "0 mins"},
		{Title: "Basketball", Subtitle: "This week", Amount: "0 mins"},
		{Title: "Stairstepper", Subtitle: "This week", Amount: "0 mins"},
		{Title: "Kickboxing", Subtitle: "This week", Amount: "45 mins"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("WeekWorkoutSummary mismatch (-want +got):\n%s", diff)
	}
}

func TestMonthWorkouts(t *testing.T) {
	src, store, profileID := setupSource(t)

	kcal := 1250
	putWorkout(t, store, profileID, "Running", time.Date(2026, 2, 3, 6, 0, 0, 0, time.UTC), 40, &kcal)
	putWorkout(t, store, profileID, "Soccer", time.Date(2026, 2, 10, 17, 0, 0, 0, time.UTC), 75, nil)
	putWorkout(t, store, profileID, "Basketball", time.Date(2026, 1, 30, 17, 0, 0, 0, time.UTC), 60, nil)

	got, err := src.MonthWorkouts(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	want := []Workout{
		{Title: "Soccer", Duration: "75 mins", Date: "Feb-10", Calories: "- kcal"},
		{Title: "Running", Duration: "40 mins", Date: "Feb-3", Calories: "1,250 kcal"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("MonthWorkouts mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeDailyActivity(t *testing.T) {
	if _, err := DecodeDailyActivity([]byte(`{"date":"2026-02-12"}`)); !errors.Is(err, ErrNoData) {
		t.Fatalf("expected ErrNoData for payload without activity, got %v", err)
	}
	if _, err := DecodeDailyActivity([]byte(`{`)); err == nil {
		t.Fatal("expected error for broken payload")
	}
}

func TestCalendarHelpers(t *testing.T) {
	sunday := time.Date(2026, 2, 15, 23, 0, 0, 0, time.UTC)
	if got := StartOfWeek(sunday); !got.Equal(time.Date(2026, 2, 9, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("StartOfWeek(sunday) = %v", got)
	}
	monday := time.Date(2026, 2, 9, 0, 0, 0, 0, time.UTC)
	if got := StartOfWeek(monday); !got.Equal(monday) {
		t.Errorf("StartOfWeek(monday) = %v", got)
	}

	from, to := MonthBounds(time.Date(2026, 12, 31, 12, 0, 0, 0, time.UTC))
	if !from.Equal(time.Date(2026, 12, 1, 0, 0, 0, 0, time.UTC)) || !to.Equal(time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("MonthBounds = %v, %v", from, to)
	}
}

func TestFormatNumber(t *testing.T) {
	tests := map[float64]string{
		0:       "0",
		999:     "999",
		8000:    "8,000",
		12345.6: "12,346",
		1234567: "1,234,567",
	}
	for in, want := range tests {
		if got := FormatNumber(in); got != want {
			t.Errorf("FormatNumber(%v) = %q, want %q", in, got, want)
		}
	}
}
