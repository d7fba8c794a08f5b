package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"app/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Promo redemption failures the handler maps to client errors.
var (
	ErrPromoNotFound        = errors.New("promo_not_found")
	ErrPromoExpired         = errors.New("promo_expired")
	ErrPromoAlreadyRedeemed = errors.New("promo_already_redeemed")
	ErrPromoLimitReached    = errors.New("promo_limit_reached")
)

// PromoRepository manages promo codes and their redemptions.
type PromoRepository interface {
	GetCode(ctx context.Context, code string) (*model.PromoCode, error)
	// Redeem atomically checks the code's expiry, global cap and the
	// per-(user, code) uniqueness, then records the redemption and awards a
	// credit package in the same transaction.
	Redeem(ctx context.Context, userID, code string) (*model.PromoRedemption, error)
}

type promoRepo struct {
	pool *pgxpool.Pool
}

// NewPromoRepo creates a new PromoRepository.
func NewPromoRepo(pool *pgxpool.Pool) PromoRepository {
	return &promoRepo{pool: pool}
}

func (r *promoRepo) GetCode(ctx context.Context, code string) (*model.PromoCode, error) {
	const q = `
        SELECT code, credits, max_redemptions, expires_at
        FROM promo_codes
        WHERE code = $1
    `
	var pc model.PromoCode
	err := r.pool.QueryRow(ctx, q, code).Scan(&pc.Code, &pc.Credits, &pc.MaxRedemptions, &pc.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPromoNotFound
		}
		return nil, fmt.Errorf("fetch promo code %s: %w", code, err)
	}
	return &pc, nil
}

func (r *promoRepo) Redeem(ctx context.Context, userID, code string) (*model.PromoRedemption, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return nil, fmt.Errorf("starting transaction for promo redemption: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	const codeQ = `
        SELECT code, credits, max_redemptions, expires_at
        FROM promo_codes
        WHERE code = $1
        FOR UPDATE
    `
	var pc model.PromoCode
	if err := tx.QueryRow(ctx, codeQ, code).Scan(&pc.Code, &pc.Credits, &pc.MaxRedemptions, &pc.ExpiresAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPromoNotFound
		}
		return nil, fmt.Errorf("fetch promo code %s for redemption: %w", code, err)
	}
	if pc.ExpiresAt != nil && pc.ExpiresAt.Before(time.Now()) {
		return nil, ErrPromoExpired
	}

	const countQ = `SELECT COUNT(*) FROM promo_redemptions WHERE code = $1`
	var redeemed int
	if err := tx.QueryRow(ctx, countQ, code).Scan(&redeemed); err != nil {
		return nil, fmt.Errorf("count redemptions for code %s: %w", code, err)
	}
	if pc.MaxRedemptions > 0 && redeemed >= pc.MaxRedemptions {
		return nil, ErrPromoLimitReached
	}

	const insertQ = `
        INSERT INTO promo_redemptions (user_id, code, credits_awarded)
        VALUES ($1, $2, $3)
        RETURNING user_id, code, credits_awarded, redeemed_at
    `
	var red model.PromoRedemption
	err = tx.QueryRow(ctx, insertQ, userID, code, pc.Credits).
		Scan(&red.UserID, &red.Code, &red.CreditsAwarded, &red.RedeemedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrPromoAlreadyRedeemed
		}
		return nil, fmt.Errorf("record promo redemption for user %s: %w", userID, err)
	}

	const creditQ = `
        INSERT INTO credit_packages (user_id, credits_purchased, credits_remaining, source_ref)
        VALUES ($1, $2, $2, $3)
    `
	if _, err := tx.Exec(ctx, creditQ, userID, pc.Credits, "promo:"+code); err != nil {
		return nil, fmt.Errorf("award promo credits for user %s: %w", userID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing promo redemption for user %s: %w", userID, err)
	}
	return &red, nil
}
