package postgres

import (
	"context"
	"time"

	"github.com/fdg312/fitswift-hub/internal/storage"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresMetricsStorage — Postgres реализация MetricsStorage
type PostgresMetricsStorage struct {
	pool *pgxpool.Pool
}

func NewMetricsStorage(pool *pgxpool.Pool) *PostgresMetricsStorage {
	return &PostgresMetricsStorage{pool: pool}
}

func (p *PostgresMetricsStorage) UpsertDailyMetric(ctx context.Context, profileID uuid.UUID, date string, payload []byte) error {
	const query = `
		INSERT INTO daily_metrics (profile_id, date, payload, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		ON CONFLICT (profile_id, date)
		DO UPDATE SET payload = EXCLUDED.payload, updated_at = NOW()
	`

	_, err := p.pool.Exec(ctx, query, profileID, date, payload)
	return err
}

func (p *PostgresMetricsStorage) GetDailyMetrics(ctx context.Context, profileID uuid.UUID, from, to string) ([]storage.DailyMetricRow, error) {
	const query = `
		SELECT profile_id, to_char(date, 'YYYY-MM-DD'), payload, created_at, updated_at
		FROM daily_metrics
		WHERE profile_id = $1 AND date >= $2::date AND date <= $3::date
		ORDER BY date ASC
	`

	rows, err := p.pool.Query(ctx, query, profileID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []storage.DailyMetricRow
	for rows.Next() {
		var row storage.DailyMetricRow
		if err := rows.Scan(&row.ProfileID, &row.Date, &row.Payload, &row.CreatedAt, &row.UpdatedAt); err != nil {
			return nil, err
		}
		results = append(results, row)
	}

	return results, rows.Err()
}

func (p *PostgresMetricsStorage) UpsertHourlyMetric(ctx context.Context, profileID uuid.UUID, hour time.Time, steps, activeEnergyKcal *int) error {
	const query = `
		INSERT INTO hourly_metrics (profile_id, hour, steps, active_energy_kcal, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		ON CONFLICT (profile_id, hour)
		DO UPDATE SET
			steps = COALESCE(EXCLUDED.steps, hourly_metrics.steps),
			active_energy_kcal = COALESCE(EXCLUDED.active_energy_kcal, hourly_metrics.active_energy_kcal),
			updated_at = NOW()
	`

	_, err := p.pool.Exec(ctx, query, profileID, hour.UTC().Truncate(time.Hour), steps, activeEnergyKcal)
	return err
}

func (p *PostgresMetricsStorage) GetHourlyMetrics(ctx context.Context, profileID uuid.UUID, date string) ([]storage.HourlyMetricRow, error) {
	const query = `
		SELECT profile_id, hour, steps, active_energy_kcal, created_at, updated_at
		FROM hourly_metrics
		WHERE profile_id = $1 AND (hour AT TIME ZONE 'UTC')::date = $2::date
		ORDER BY hour ASC
	`

	rows, err := p.pool.Query(ctx, query, profileID, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []storage.HourlyMetricRow
	for rows.Next() {
		var row storage.HourlyMetricRow
		if err := rows.Scan(&row.ProfileID, &row.Hour, &row.Steps, &row.ActiveEnergyKcal, &row.CreatedAt, &row.UpdatedAt); err != nil {
			return nil, err
		}
		results = append(results, row)
	}

	return results, rows.Err()
}

func (p *PostgresMetricsStorage) InsertWorkout(ctx context.Context, w storage.WorkoutRow) error {
	const query = `
		INSERT INTO workouts (profile_id, start, "end", label, calories_kcal, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (profile_id, start, "end", label) DO NOTHING
	`

	_, err := p.pool.Exec(ctx, query, w.ProfileID, w.Start, w.End, w.Label, w.CaloriesKcal)
	return err
}

func (p *PostgresMetricsStorage) ListWorkouts(ctx context.Context, profileID uuid.UUID, from, to time.Time) ([]storage.WorkoutRow, error) {
	const query = `
		SELECT profile_id, start, "end", label, calories_kcal, created_at
		FROM workouts
		WHERE profile_id = $1 AND start >= $2 AND start < $3
		ORDER BY start ASC
	`

	rows, err := p.pool.Query(ctx, query, profileID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []storage.WorkoutRow
	for rows.Next() {
		var w storage.WorkoutRow
		if err := rows.Scan(&w.ProfileID, &w.Start, &w.End, &w.Label, &w.CaloriesKcal, &w.CreatedAt); err != nil {
			return nil, err
		}
		results = append(results, w)
	}

	return results, rows.Err()
}
