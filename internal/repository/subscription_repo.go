package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"app/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SubscriptionRepository defines methods for accessing subscription data.
type SubscriptionRepository interface {
	// GetSubscription returns the user's subscription row, or nil if the user
	// has never subscribed. Absence is the free tier, not an error.
	GetSubscription(ctx context.Context, userID string) (*model.Subscription, error)
	// UpsertSubscription creates or replaces the subscription row for a user.
	// Keyed by user id so duplicate checkout webhooks converge on one state.
	UpsertSubscription(ctx context.Context, userID, plan, status, stripeSubscriptionID string, periodEnd *time.Time) error
	// UpdateByProviderID updates status and period bounds on the row matched by
	// the Stripe subscription id.
	UpdateByProviderID(ctx context.Context, stripeSubscriptionID, status string, periodEnd *time.Time, cancelAtPeriodEnd bool) error
	// CancelByProviderID marks the subscription canceled and the plan free.
	CancelByProviderID(ctx context.Context, stripeSubscriptionID string) error
	// MarkPastDueByProviderID flags the subscription after a failed invoice.
	MarkPastDueByProviderID(ctx context.Context, stripeSubscriptionID string) error
	// ExpireLapsed downgrades an active paid subscription whose period end has
	// passed to canceled/free. The WHERE guard makes repeated calls no-ops.
	ExpireLapsed(ctx context.Context, userID string) error
}

type subscriptionRepo struct {
	pool *pgxpool.Pool
}

// NewSubscriptionRepo creates a new SubscriptionRepository.
func NewSubscriptionRepo(pool *pgxpool.Pool) SubscriptionRepository {
	return &subscriptionRepo{pool: pool}
}

func (r *subscriptionRepo) GetSubscription(ctx context.Context, userID string) (*model.Subscription, error) {
	const q = `
        SELECT user_id, plan, status, stripe_subscription_id, current_period_end, cancel_at_period_end, created_at, updated_at
        FROM subscriptions
        WHERE user_id = $1
    `
	var s model.Subscription
	err := r.pool.QueryRow(ctx, q, userID).Scan(
		&s.UserID,
		&s.Plan,
		&s.Status,
		&s.StripeSubscriptionID,
		&s.CurrentPeriodEnd,
		&s.CancelAtPeriodEnd,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch subscription for user %s: %w", userID, err)
	}
	return &s, nil
}

func (r *subscriptionRepo) UpsertSubscription(ctx context.Context, userID, plan, status, stripeSubscriptionID string, periodEnd *time.Time) error {
	const q = `
        INSERT INTO subscriptions (user_id, plan, status, stripe_subscription_id, current_period_end, cancel_at_period_end, created_at, updated_at)
        VALUES ($1, $2, $3, NULLIF($4, ''), $5, FALSE, NOW(), NOW())
        ON CONFLICT (user_id) DO UPDATE
        SET plan = EXCLUDED.plan,
            status = EXCLUDED.status,
            stripe_subscription_id = EXCLUDED.stripe_subscription_id,
            current_period_end = EXCLUDED.current_period_end,
            cancel_at_period_end = EXCLUDED.cancel_at_period_end,
            updated_at = NOW()
    `
	if _, err := r.pool.Exec(ctx, q, userID, plan, status, stripeSubscriptionID, periodEnd); err != nil {
		return fmt.Errorf("upsert subscription for user %s: %w", userID, err)
	}
	return nil
}

func (r *subscriptionRepo) UpdateByProviderID(ctx context.Context, stripeSubscriptionID, status string, periodEnd *time.Time, cancelAtPeriodEnd bool) error {
	const q = `
        UPDATE subscriptions
        SET status = $2,
            current_period_end = $3,
            cancel_at_period_end = $4,
            updated_at = NOW()
        WHERE stripe_subscription_id = $1
    `
	if _, err := r.pool.Exec(ctx, q, stripeSubscriptionID, status, periodEnd, cancelAtPeriodEnd); err != nil {
		return fmt.Errorf("update subscription %s: %w", stripeSubscriptionID, err)
	}
	return nil
}

func (r *subscriptionRepo) CancelByProviderID(ctx context.Context, stripeSubscriptionID string) error {
	const q = `
        UPDATE subscriptions
        SET plan = 'free',
            status = 'canceled',
            cancel_at_period_end = FALSE,
            updated_at = NOW()
        WHERE stripe_subscription_id = $1
    `
	if _, err := r.pool.Exec(ctx, q, stripeSubscriptionID); err != nil {
		return fmt.Errorf("cancel subscription %s: %w", stripeSubscriptionID, err)
	}
	return nil
}

func (r *subscriptionRepo) MarkPastDueByProviderID(ctx context.Context, stripeSubscriptionID string) error {
	const q = `
        UPDATE subscriptions
        SET status = 'past_due',
            updated_at = NOW()
        WHERE stripe_subscription_id = $1
    `
	if _, err := r.pool.Exec(ctx, q, stripeSubscriptionID); err != nil {
		return fmt.Errorf("mark subscription %s past due: %w", stripeSubscriptionID, err)
	}
	return nil
}

func (r *subscriptionRepo) ExpireLapsed(ctx context.Context, userID string) error {
	const q = `
        UPDATE subscriptions
        SET plan = 'free',
            status = 'canceled',
            updated_at = NOW()
        WHERE user_id = $1
          AND status = 'active'
          AND plan IN ('monthly', 'yearly')
          AND current_period_end IS NOT NULL
          AND current_period_end < NOW()
    `
	if _, err := r.pool.Exec(ctx, q, userID); err != nil {
		return fmt.Errorf("expire lapsed subscription for user %s: %w", userID, err)
	}
	return nil
}
