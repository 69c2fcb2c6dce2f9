package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/fdg312/fitswift-hub/internal/storage"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrNotFound = errors.New("profile not found")
)

// DefaultOwnerUserID владеет профилем, который создаётся при старте.
const DefaultOwnerUserID = "default"

// PostgresStorage — Postgres реализация Storage, MetricsStorage и ChatStorage
type PostgresStorage struct {
	pool    *pgxpool.Pool
	metrics *PostgresMetricsStorage
	reports *PostgresReportsStorage
	chat    *PostgresChatStorage
}

// New подключается к базе и обеспечивает owner профиль по умолчанию
func New(ctx context.Context, databaseURL string) (*PostgresStorage, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	ps := &PostgresStorage{
		pool:    pool,
		metrics: NewMetricsStorage(pool),
		reports: NewPostgresReportsStorage(pool),
		chat:    NewPostgresChatStorage(pool),
	}

	if _, err := ps.EnsureOwnerProfile(ctx, DefaultOwnerUserID, "Me"); err != nil {
		pool.Close()
		return nil, err
	}

	return ps, nil
}

// EnsureOwnerProfile returns the owner profile of a user, creating it on first use.
func (p *PostgresStorage) EnsureOwnerProfile(ctx context.Context, ownerUserID, name string) (*storage.Profile, error) {
	const insert = `
		INSERT INTO profiles (id, owner_user_id, type, name, created_at, updated_at)
		SELECT $1, $2, 'owner', $3, NOW(), NOW()
		WHERE NOT EXISTS (
			SELECT 1 FROM profiles WHERE owner_user_id = $2 AND type = 'owner'
		)
	`
	if _, err := p.pool.Exec(ctx, insert, uuid.New(), ownerUserID, name); err != nil {
		return nil, err
	}

	const query = `
		SELECT id, owner_user_id, type, name, created_at, updated_at
		FROM profiles
		WHERE owner_user_id = $1 AND type = 'owner'
		ORDER BY created_at ASC
		LIMIT 1
	`
	return scanProfile(p.pool.QueryRow(ctx, query, ownerUserID))
}

func (p *PostgresStorage) ListProfiles(ctx context.Context) ([]storage.Profile, error) {
	const query = `
		SELECT id, owner_user_id, type, name, created_at, updated_at
		FROM profiles
		ORDER BY created_at ASC
	`

	rows, err := p.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	profiles := []storage.Profile{}
	for rows.Next() {
		prof, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, *prof)
	}

	return profiles, rows.Err()
}

func (p *PostgresStorage) GetProfile(ctx context.Context, id uuid.UUID) (*storage.Profile, error) {
	const query = `
		SELECT id, owner_user_id, type, name, created_at, updated_at
		FROM profiles
		WHERE id = $1
	`
	return scanProfile(p.pool.QueryRow(ctx, query, id))
}

func (p *PostgresStorage) CreateProfile(ctx context.Context, profile *storage.Profile) error {
	if profile.ID == uuid.Nil {
		profile.ID = uuid.New()
	}

	now := time.Now()
	profile.CreatedAt = now
	profile.UpdatedAt = now

	const query = `
		INSERT INTO profiles (id, owner_user_id, type, name, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := p.pool.Exec(ctx, query,
		profile.ID,
		profile.OwnerUserID,
		profile.Type,
		profile.Name,
		profile.CreatedAt,
		profile.UpdatedAt,
	)
	return err
}

func (p *PostgresStorage) UpdateProfile(ctx context.Context, profile *storage.Profile) error {
	profile.UpdatedAt = time.Now()

	const query = `UPDATE profiles SET name = $2, updated_at = $3 WHERE id = $1`

	result, err := p.pool.Exec(ctx, query, profile.ID, profile.Name, profile.UpdatedAt)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *PostgresStorage) DeleteProfile(ctx context.Context, id uuid.UUID) error {
	result, err := p.pool.Exec(ctx, `DELETE FROM profiles WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *PostgresStorage) Close() error {
	p.pool.Close()
	return nil
}

func scanProfile(row pgx.Row) (*storage.Profile, error) {
	var prof storage.Profile
	err := row.Scan(
		&prof.ID,
		&prof.OwnerUserID,
		&prof.Type,
		&prof.Name,
		&prof.CreatedAt,
		&prof.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &prof, nil
}

// MetricsStorage methods - делегируем к встроенному metrics storage

func (p *PostgresStorage) UpsertDailyMetric(ctx context.Context, profileID uuid.UUID, date string, payload []byte) error {
	return p.metrics.UpsertDailyMetric(ctx, profileID, date, payload)
}

func (p *PostgresStorage) GetDailyMetrics(ctx context.Context, profileID uuid.UUID, from, to string) ([]storage.DailyMetricRow, error) {
	return p.metrics.GetDailyMetrics(ctx, profileID, from, to)
}

func (p *PostgresStorage) UpsertHourlyMetric(ctx context.Context, profileID uuid.UUID, hour time.Time, steps, activeEnergyKcal *int) error {
	return p.metrics.UpsertHourlyMetric(ctx, profileID, hour, steps, activeEnergyKcal)
}

func (p *PostgresStorage) GetHourlyMetrics(ctx context.Context, profileID uuid.UUID, date string) ([]storage.HourlyMetricRow, error) {
	return p.metrics.GetHourlyMetrics(ctx, profileID, date)
}

func (p *PostgresStorage) InsertWorkout(ctx context.Context, w storage.WorkoutRow) error {
	return p.metrics.InsertWorkout(ctx, w)
}

func (p *PostgresStorage) ListWorkouts(ctx context.Context, profileID uuid.UUID, from, to time.Time) ([]storage.WorkoutRow, error) {
	return p.metrics.ListWorkouts(ctx, profileID, from, to)
}

// GetReportsStorage returns the reports storage
func (p *PostgresStorage) GetReportsStorage() *PostgresReportsStorage {
	return p.reports
}

// GetChatStorage returns chat storage.
func (p *PostgresStorage) GetChatStorage() *PostgresChatStorage {
	return p.chat
}

// ChatStorage methods - delegate to embedded chat storage.

func (p *PostgresStorage) InsertMessage(ctx context.Context, ownerUserID string, profileID uuid.UUID, role, content string, toolCommands []byte) (storage.ChatMessage, error) {
	return p.chat.InsertMessage(ctx, ownerUserID, profileID, role, content, toolCommands)
}

func (p *PostgresStorage) InsertMessageIfEmpty(ctx context.Context, ownerUserID string, profileID uuid.UUID, role, content string) (bool, error) {
	return p.chat.InsertMessageIfEmpty(ctx, ownerUserID, profileID, role, content)
}

func (p *PostgresStorage) ListMessages(ctx context.Context, ownerUserID string, profileID uuid.UUID, limit int, before *time.Time) ([]storage.ChatMessage, *time.Time, error) {
	return p.chat.ListMessages(ctx, ownerUserID, profileID, limit, before)
}
