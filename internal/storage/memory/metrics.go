package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/fdg312/fitswift-hub/internal/storage"
	"github.com/google/uuid"
)

// MetricsMemoryStorage — in-memory реализация MetricsStorage
type MetricsMemoryStorage struct {
	mu            sync.RWMutex
	dailyMetrics  map[string]storage.DailyMetricRow  // key: "profileID:date"
	hourlyMetrics map[string]storage.HourlyMetricRow // key: "profileID:hour"
	workouts      map[string]storage.WorkoutRow      // key: "profileID:start:end:label"
}

// NewMetricsStorage создаёт новый MetricsMemoryStorage
func NewMetricsStorage() *MetricsMemoryStorage {
	return &MetricsMemoryStorage{
		dailyMetrics:  make(map[string]storage.DailyMetricRow),
		hourlyMetrics: make(map[string]storage.HourlyMetricRow),
		workouts:      make(map[string]storage.WorkoutRow),
	}
}

func (m *MetricsMemoryStorage) UpsertDailyMetric(ctx context.Context, profileID uuid.UUID, date string, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := fmt.Sprintf("%s:%s", profileID, date)
	now := time.Now()

	row, exists := m.dailyMetrics[key]
	if !exists {
		row = storage.DailyMetricRow{ProfileID: profileID, Date: date, CreatedAt: now}
	}
	row.Payload = payload
	row.UpdatedAt = now
	m.dailyMetrics[key] = row

	return nil
}

func (m *MetricsMemoryStorage) GetDailyMetrics(ctx context.Context, profileID uuid.UUID, from, to string) ([]storage.DailyMetricRow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var results []storage.DailyMetricRow
	for _, row := range m.dailyMetrics {
		if row.ProfileID == profileID && row.Date >= from && row.Date <= to {
			results = append(results, row)
		}
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Date < results[j].Date
	})

	return results, nil
}

func (m *MetricsMemoryStorage) UpsertHourlyMetric(ctx context.Context, profileID uuid.UUID, hour time.Time, steps, activeEnergyKcal *int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	hourTrunc := hour.UTC().Truncate(time.Hour)
	key := fmt.Sprintf("%s:%d", profileID, hourTrunc.Unix())
	now := time.Now()

	row, exists := m.hourlyMetrics[key]
	if !exists {
		row = storage.HourlyMetricRow{ProfileID: profileID, Hour: hourTrunc, CreatedAt: now}
	}
	if steps != nil {
		row.Steps = steps
	}
	if activeEnergyKcal != nil {
		row.ActiveEnergyKcal = activeEnergyKcal
	}
	row.UpdatedAt = now
	m.hourlyMetrics[key] = row

	return nil
}

func (m *MetricsMemoryStorage) GetHourlyMetrics(ctx context.Context, profileID uuid.UUID, date string) ([]storage.HourlyMetricRow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var results []storage.HourlyMetricRow
	for _, row := range m.hourlyMetrics {
		if row.ProfileID == profileID && row.Hour.Format("2006-01-02") == date {
			results = append(results, row)
		}
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Hour.Before(results[j].Hour)
	})

	return results, nil
}

func (m *MetricsMemoryStorage) InsertWorkout(ctx context.Context, w storage.WorkoutRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := fmt.Sprintf("%s:%d:%d:%s", w.ProfileID, w.Start.Unix(), w.End.Unix(), w.Label)
	if _, exists := m.workouts[key]; exists {
		return nil // ignore duplicate
	}

	w.CreatedAt = time.Now()
	m.workouts[key] = w
	return nil
}

func (m *MetricsMemoryStorage) ListWorkouts(ctx context.Context, profileID uuid.UUID, from, to time.Time) ([]storage.WorkoutRow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var results []storage.WorkoutRow
	for _, w := range m.workouts {
		if w.ProfileID != profileID || w.Start.Before(from) || !w.Start.Before(to) {
			continue
		}
		results = append(results, w)
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Start.Before(results[j].Start)
	})

	return results, nil
}
