package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrReportNotFound is returned by ReportsStorage for unknown ids.
var ErrReportNotFound = errors.New("report not found")

// Profile представляет профиль пользователя (owner или guest)
type Profile struct {
	ID          uuid.UUID
	OwnerUserID string // "default" когда auth выключен
	Type        string // "owner" или "guest"
	Name        string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Storage — интерфейс для работы с профилями
type Storage interface {
	ListProfiles(ctx context.Context) ([]Profile, error)

	GetProfile(ctx context.Context, id uuid.UUID) (*Profile, error)

	CreateProfile(ctx context.Context, profile *Profile) error

	UpdateProfile(ctx context.Context, profile *Profile) error

	DeleteProfile(ctx context.Context, id uuid.UUID) error

	// Close закрывает соединение (для Postgres)
	Close() error
}

// MetricsStorage — интерфейс для работы с метриками активности
type MetricsStorage interface {
	// UpsertDailyMetric сохраняет дневной агрегат (upsert по profile_id, date)
	UpsertDailyMetric(ctx context.Context, profileID uuid.UUID, date string, payload []byte) error

	// GetDailyMetrics возвращает дневные агрегаты за период, включая границы
	GetDailyMetrics(ctx context.Context, profileID uuid.UUID, from, to string) ([]DailyMetricRow, error)

	// UpsertHourlyMetric сохраняет часовую корзину; nil значения не затирают сохранённые
	UpsertHourlyMetric(ctx context.Context, profileID uuid.UUID, hour time.Time, steps, activeEnergyKcal *int) error

	// GetHourlyMetrics возвращает часовые корзины за день (UTC)
	GetHourlyMetrics(ctx context.Context, profileID uuid.UUID, date string) ([]HourlyMetricRow, error)

	// InsertWorkout добавляет тренировку (ignore duplicates)
	InsertWorkout(ctx context.Context, w WorkoutRow) error

	// ListWorkouts возвращает тренировки, начавшиеся в [from, to), по возрастанию start
	ListWorkouts(ctx context.Context, profileID uuid.UUID, from, to time.Time) ([]WorkoutRow, error)
}

// DailyMetricRow — строка из daily_metrics
type DailyMetricRow struct {
	ProfileID uuid.UUID
	Date      string // YYYY-MM-DD
	Payload   []byte // JSON
	CreatedAt time.Time
	UpdatedAt time.Time
}

// HourlyMetricRow — строка из hourly_metrics
type HourlyMetricRow struct {
	ProfileID        uuid.UUID
	Hour             time.Time
	Steps            *int
	ActiveEnergyKcal *int
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// WorkoutRow — строка из workouts
type WorkoutRow struct {
	ProfileID    uuid.UUID
	Start        time.Time
	End          time.Time
	Label        string
	CaloriesKcal *int
	CreatedAt    time.Time
}

// Duration returns the workout length.
func (w WorkoutRow) Duration() time.Duration {
	return w.End.Sub(w.Start)
}

// ReportsStorage — интерфейс для работы с отчётами
type ReportsStorage interface {
	// CreateReport сохраняет метаданные отчёта; содержимое лежит в blob store
	CreateReport(ctx context.Context, report *ReportMeta) error

	GetReport(ctx context.Context, id uuid.UUID) (*ReportMeta, error)

	// ListReports возвращает список отчётов профиля с пагинацией
	ListReports(ctx context.Context, profileID uuid.UUID, limit, offset int) ([]ReportMeta, error)

	DeleteReport(ctx context.Context, id uuid.UUID) error
}

// ReportMeta — метаданные отчёта
type ReportMeta struct {
	ID        uuid.UUID
	ProfileID uuid.UUID
	Format    string  // "pdf" or "csv"
	FromDate  string  // YYYY-MM-DD
	ToDate    string  // YYYY-MM-DD
	ObjectKey *string // ключ в blob store
	SizeBytes int64
	Status    string // "ready" or "failed"
	Error     *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ChatStorage — интерфейс для хранения сообщений чата.
type ChatStorage interface {
	// InsertMessage сохраняет сообщение чата. toolCommands — JSON список команд или nil.
	InsertMessage(ctx context.Context, ownerUserID string, profileID uuid.UUID, role, content string, toolCommands []byte) (ChatMessage, error)

	// InsertMessageIfEmpty атомарно добавляет сообщение, только если переписка owner/profile пуста.
	// Возвращает false, если сообщения уже были.
	InsertMessageIfEmpty(ctx context.Context, ownerUserID string, profileID uuid.UUID, role, content string) (bool, error)

	// ListMessages возвращает последние сообщения по owner/profile и nextCursor.
	// before используется как курсор по created_at (strictly less than).
	ListMessages(ctx context.Context, ownerUserID string, profileID uuid.UUID, limit int, before *time.Time) ([]ChatMessage, *time.Time, error)
}

// ChatMessage — сохранённое сообщение чата.
type ChatMessage struct {
	ID           uuid.UUID
	OwnerUserID  string
	ProfileID    uuid.UUID
	Role         string
	Content      string
	ToolCommands []byte
	CreatedAt    time.Time
}
