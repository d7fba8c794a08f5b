package service

import (
	"app/internal/model"
	"app/internal/repository"
	"context"
	"time"

	"github.com/rs/zerolog"
)

// SubscriptionService resolves a user's subscription into the state the
// entitlement flow consumes.
type SubscriptionService interface {
	// GetState returns whether the user's subscription grants unlimited
	// generations right now. A user with no subscription row is on the free
	// tier. When an active paid subscription's period end has passed, the read
	// downgrades the row to canceled/free before answering (lazy expiry).
	// Read failures are returned, never treated as "no subscription": the
	// caller must fail closed.
	GetState(ctx context.Context, userID string) (*model.SubscriptionState, error)
	GetSubscription(ctx context.Context, userID string) (*model.Subscription, error)
}

type subscriptionService struct {
	repo   repository.SubscriptionRepository
	now    func() time.Time
	logger zerolog.Logger
}

// NewSubscriptionService creates a new SubscriptionService with a scoped logger.
func NewSubscriptionService(repo repository.SubscriptionRepository, logger zerolog.Logger) SubscriptionService {
	return &subscriptionService{
		repo:   repo,
		now:    time.Now,
		logger: logger.With().Str("service", "SubscriptionService").Logger(),
	}
}

func (s *subscriptionService) GetState(ctx context.Context, userID string) (*model.SubscriptionState, error) {
	sub, err := s.repo.GetSubscription(ctx, userID)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to fetch subscription")
		return nil, err
	}
	if sub == nil {
		return &model.SubscriptionState{Unlimited: false, PlanType: model.PlanFree, Status: model.SubscriptionInactive}, nil
	}

	state := &model.SubscriptionState{
		PlanType:  sub.Plan,
		Status:    sub.Status,
		PeriodEnd: sub.CurrentPeriodEnd,
	}
	if !model.IsPaidPlan(sub.Plan) || sub.Status != model.SubscriptionActive {
		return state, nil
	}
	if sub.CurrentPeriodEnd == nil || !sub.CurrentPeriodEnd.Before(s.now()) {
		state.Unlimited = true
		return state, nil
	}

	// Period end has passed: correct the stale row before answering. The
	// guarded UPDATE matches zero rows on repeat, so the downgrade is
	// idempotent.
	if err := s.repo.ExpireLapsed(ctx, userID); err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to expire lapsed subscription")
		return nil, err
	}
	s.logger.Info().Str("user_id", userID).Str("plan", sub.Plan).Msg("Lazily expired lapsed subscription")
	state.PlanType = model.PlanFree
	state.Status = model.SubscriptionCanceled
	state.Unlimited = false
	return state, nil
}

func (s *subscriptionService) GetSubscription(ctx context.Context, userID string) (*model.Subscription, error) {
	sub, err := s.repo.GetSubscription(ctx, userID)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to fetch subscription")
		return nil, err
	}
	return sub, nil
}
