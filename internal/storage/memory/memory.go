package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/fdg312/fitswift-hub/internal/storage"
	"github.com/google/uuid"
)

var (
	ErrNotFound = errors.New("profile not found")
)

// DefaultOwnerUserID владеет профилем, который создаётся при старте.
const DefaultOwnerUserID = "default"

// MemoryStorage — in-memory реализация Storage, MetricsStorage и ChatStorage
type MemoryStorage struct {
	mu       sync.RWMutex
	profiles map[uuid.UUID]storage.Profile
	metrics  *MetricsMemoryStorage
	reports  *ReportsMemoryStorage
	chat     *ChatMemoryStorage
}

// New создаёт новый MemoryStorage с owner профилем по умолчанию
func New() *MemoryStorage {
	now := time.Now()
	ownerID := uuid.New()

	return &MemoryStorage{
		profiles: map[uuid.UUID]storage.Profile{
			ownerID: {
				ID:          ownerID,
				OwnerUserID: DefaultOwnerUserID,
				Type:        "owner",
				Name:        "Me",
				CreatedAt:   now,
				UpdatedAt:   now,
			},
		},
		metrics: NewMetricsStorage(),
		reports: NewReportsMemoryStorage(),
		chat:    NewChatMemoryStorage(),
	}
}

func (m *MemoryStorage) ListProfiles(ctx context.Context) ([]storage.Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	profiles := make([]storage.Profile, 0, len(m.profiles))
	for _, p := range m.profiles {
		profiles = append(profiles, p)
	}

	return profiles, nil
}

func (m *MemoryStorage) GetProfile(ctx context.Context, id uuid.UUID) (*storage.Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.profiles[id]
	if !ok {
		return nil, ErrNotFound
	}

	return &p, nil
}

func (m *MemoryStorage) CreateProfile(ctx context.Context, profile *storage.Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if profile.ID == uuid.Nil {
		profile.ID = uuid.New()
	}

	now := time.Now()
	profile.CreatedAt = now
	profile.UpdatedAt = now

	m.profiles[profile.ID] = *profile

	return nil
}

func (m *MemoryStorage) UpdateProfile(ctx context.Context, profile *storage.Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.profiles[profile.ID]; !ok {
		return ErrNotFound
	}

	profile.UpdatedAt = time.Now()
	m.profiles[profile.ID] = *profile

	return nil
}

func (m *MemoryStorage) DeleteProfile(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.profiles[id]; !ok {
		return ErrNotFound
	}

	delete(m.profiles, id)

	return nil
}

func (m *MemoryStorage) Close() error {
	return nil
}

// MetricsStorage methods - делегируем к встроенному metrics storage

func (m *MemoryStorage) UpsertDailyMetric(ctx context.Context, profileID uuid.UUID, date string, payload []byte) error {
	return m.metrics.UpsertDailyMetric(ctx, profileID, date, payload)
}

func (m *MemoryStorage) GetDailyMetrics(ctx context.Context, profileID uuid.UUID, from, to string) ([]storage.DailyMetricRow, error) {
	return m.metrics.GetDailyMetrics(ctx, profileID, from, to)
}

func (m *MemoryStorage) UpsertHourlyMetric(ctx context.Context, profileID uuid.UUID, hour time.Time, steps, activeEnergyKcal *int) error {
	return m.metrics.UpsertHourlyMetric(ctx, profileID, hour, steps, activeEnergyKcal)
}

func (m *MemoryStorage) GetHourlyMetrics(ctx context.Context, profileID uuid.UUID, date string) ([]storage.HourlyMetricRow, error) {
	return m.metrics.GetHourlyMetrics(ctx, profileID, date)
}

func (m *MemoryStorage) InsertWorkout(ctx context.Context, w storage.WorkoutRow) error {
	return m.metrics.InsertWorkout(ctx, w)
}

func (m *MemoryStorage) ListWorkouts(ctx context.Context, profileID uuid.UUID, from, to time.Time) ([]storage.WorkoutRow, error) {
	return m.metrics.ListWorkouts(ctx, profileID, from, to)
}

// GetReportsStorage returns the reports storage
func (m *MemoryStorage) GetReportsStorage() *ReportsMemoryStorage {
	return m.reports
}

// GetChatStorage returns chat storage.
func (m *MemoryStorage) GetChatStorage() *ChatMemoryStorage {
	return m.chat
}

// ChatStorage methods - delegate to embedded chat storage.

func (m *MemoryStorage) InsertMessage(ctx context.Context, ownerUserID string, profileID uuid.UUID, role, content string, toolCommands []byte) (storage.ChatMessage, error) {
	return m.chat.InsertMessage(ctx, ownerUserID, profileID, role, content, toolCommands)
}

func (m *MemoryStorage) InsertMessageIfEmpty(ctx context.Context, ownerUserID string, profileID uuid.UUID, role, content string) (bool, error) {
	return m.chat.InsertMessageIfEmpty(ctx, ownerUserID, profileID, role, content)
}

func (m *MemoryStorage) ListMessages(ctx context.Context, ownerUserID string, profileID uuid.UUID, limit int, before *time.Time) ([]storage.ChatMessage, *time.Time, error) {
	return m.chat.ListMessages(ctx, ownerUserID, profileID, limit, before)
}
