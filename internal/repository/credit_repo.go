package repository

import (
	"context"
	"errors"
	"fmt"

	"app/internal/model"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNoCredits is returned when a debit finds no non-exhausted package.
var ErrNoCredits = errors.New("no_credits_remaining")

// CreditRepository manages prepaid credit packages.
type CreditRepository interface {
	// TotalRemaining sums credits_remaining over all non-exhausted packages.
	TotalRemaining(ctx context.Context, userID string) (int, error)
	// ListPackages returns all packages for a user, oldest first.
	ListPackages(ctx context.Context, userID string) ([]model.CreditPackage, error)
	// InsertPackage records a newly purchased or awarded package.
	InsertPackage(ctx context.Context, userID string, credits int, sourceRef string) error
	// DebitOldest decrements the oldest non-exhausted package by exactly one,
	// as a single conditional UPDATE so concurrent generations by the same
	// user cannot double-spend the last credit. Returns ErrNoCredits when no
	// package had a positive balance.
	DebitOldest(ctx context.Context, userID string) error
}

type creditRepo struct {
	pool *pgxpool.Pool
}

// NewCreditRepo creates a new CreditRepository.
func NewCreditRepo(pool *pgxpool.Pool) CreditRepository {
	return &creditRepo{pool: pool}
}

func (r *creditRepo) TotalRemaining(ctx context.Context, userID string) (int, error) {
	const q = `
        SELECT COALESCE(SUM(credits_remaining), 0)
        FROM credit_packages
        WHERE user_id = $1
          AND credits_remaining > 0
    `
	var total int
	if err := r.pool.QueryRow(ctx, q, userID).Scan(&total); err != nil {
		return 0, fmt.Errorf("sum remaining credits for user %s: %w", userID, err)
	}
	return total, nil
}

func (r *creditRepo) ListPackages(ctx context.Context, userID string) ([]model.CreditPackage, error) {
	const q = `
        SELECT id, user_id, credits_purchased, credits_remaining, source_ref, acquired_at
        FROM credit_packages
        WHERE user_id = $1
        ORDER BY acquired_at ASC
    `
	rows, err := r.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, fmt.Errorf("list credit packages for user %s: %w", userID, err)
	}
	defer rows.Close()

	var pkgs []model.CreditPackage
	for rows.Next() {
		var p model.CreditPackage
		if err := rows.Scan(&p.ID, &p.UserID, &p.CreditsPurchased, &p.CreditsRemaining, &p.SourceRef, &p.AcquiredAt); err != nil {
			return nil, fmt.Errorf("scan credit package: %w", err)
		}
		pkgs = append(pkgs, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate credit packages for user %s: %w", userID, err)
	}
	return pkgs, nil
}

func (r *creditRepo) InsertPackage(ctx context.Context, userID string, credits int, sourceRef string) error {
	const q = `
        INSERT INTO credit_packages (user_id, credits_purchased, credits_remaining, source_ref)
        VALUES ($1, $2, $2, $3)
    `
	if _, err := r.pool.Exec(ctx, q, userID, credits, sourceRef); err != nil {
		return fmt.Errorf("insert credit package for user %s: %w", userID, err)
	}
	return nil
}

func (r *creditRepo) DebitOldest(ctx context.Context, userID string) error {
	// The credits_remaining > 0 guard is repeated in the outer UPDATE so a
	// concurrent debit that drained the selected package between subquery and
	// update matches zero rows instead of going negative.
	const q = `
        UPDATE credit_packages
        SET credits_remaining = credits_remaining - 1
        WHERE id = (
            SELECT id
            FROM credit_packages
            WHERE user_id = $1
              AND credits_remaining > 0
            ORDER BY acquired_at ASC
            LIMIT 1
        )
          AND credits_remaining > 0
    `
	tag, err := r.pool.Exec(ctx, q, userID)
	if err != nil {
		return fmt.Errorf("debit credit for user %s: %w", userID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNoCredits
	}
	return nil
}
