package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// UsageRepository tracks per-day free-tier usage counters.
type UsageRepository interface {
	// CountInWindow sums the daily counters for days in [start, end).
	CountInWindow(ctx context.Context, userID string, start, end time.Time) (int, error)
	// IncrementDay upserts the counter row for the given calendar day,
	// initializing it to 1 when absent. The upsert is a single statement so
	// concurrent increments for the same day cannot lose updates.
	IncrementDay(ctx context.Context, userID string, day time.Time) error
}

type usageRepo struct {
	pool *pgxpool.Pool
}

// NewUsageRepo creates a new UsageRepository.
func NewUsageRepo(pool *pgxpool.Pool) UsageRepository {
	return &usageRepo{pool: pool}
}

func (r *usageRepo) CountInWindow(ctx context.Context, userID string, start, end time.Time) (int, error) {
	const q = `
        SELECT COALESCE(SUM(count), 0)
        FROM daily_usage
        WHERE user_id = $1
          AND usage_date >= $2::date
          AND usage_date < $3::date
    `
	var count int
	if err := r.pool.QueryRow(ctx, q, userID, start, end).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting usage for user %s: %w", userID, err)
	}
	return count, nil
}

func (r *usageRepo) IncrementDay(ctx context.Context, userID string, day time.Time) error {
	const q = `
        INSERT INTO daily_usage (user_id, usage_date, count)
        VALUES ($1, $2::date, 1)
        ON CONFLICT (user_id, usage_date) DO UPDATE
        SET count = daily_usage.count + 1
    `
	if _, err := r.pool.Exec(ctx, q, userID, day); err != nil {
		return fmt.Errorf("recording usage for user %s: %w", userID, err)
	}
	return nil
}
