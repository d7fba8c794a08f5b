package service

import (
	"app/internal/model"
	"app/internal/repository"
	"app/internal/util"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// ErrEntitlementExhausted is returned when no quota source can cover a
// generation. It is a business outcome, not a system fault.
var ErrEntitlementExhausted = errors.New("entitlement_exhausted")

// QuotaPolicy fixes the free-tier allowance and the window it is counted
// over. Day and week allowances are distinct, deliberately: the product's
// two legacy code paths disagreed on the window, so the choice is explicit
// configuration rather than something this package guesses.
type QuotaPolicy struct {
	Window          string // model.QuotaWindowDay or model.QuotaWindowWeek
	DailyAllowance  int
	WeeklyAllowance int
}

// Allowance returns the free generations granted within the active window.
func (p QuotaPolicy) Allowance() int {
	if p.Window == model.QuotaWindowWeek {
		return p.WeeklyAllowance
	}
	return p.DailyAllowance
}

// Bounds returns the [start, end) interval of the active window containing t.
func (p QuotaPolicy) Bounds(t time.Time) (time.Time, time.Time) {
	if p.Window == model.QuotaWindowWeek {
		start := util.StartOfISOWeek(t)
		return start, start.AddDate(0, 0, 7)
	}
	start := util.StartOfDay(t)
	return start, start.AddDate(0, 0, 1)
}

// EntitlementService decides whether a user may generate an avatar and, after
// a successful generation, applies the matching debit. Every handler that
// needs quota information goes through this one service; none of them query
// subscriptions, credits or usage counters directly.
type EntitlementService interface {
	// Decide combines subscription state, the free-tier window counter and the
	// credit balance into an allow/deny plus a chosen debit source. It is a
	// pure read: no counter moves until Debit.
	// Decision order is policy, first match wins: subscription, free, credit.
	Decide(ctx context.Context, userID string) (*model.EntitlementDecision, error)
	// Debit consumes exactly one unit from the source chosen by Decide. It
	// must only be called after the guarded operation succeeded; a failed
	// generation consumes nothing.
	Debit(ctx context.Context, userID string, source model.DebitSource) error
	// Policy exposes the active quota policy (for unauthenticated responses).
	Policy() QuotaPolicy
}

type entitlementService struct {
	subSvc     SubscriptionService
	creditRepo repository.CreditRepository
	usageRepo  repository.UsageRepository
	policy     QuotaPolicy
	now        func() time.Time
	logger     zerolog.Logger
}

// NewEntitlementService creates a new EntitlementService with a scoped logger.
func NewEntitlementService(
	subSvc SubscriptionService,
	creditRepo repository.CreditRepository,
	usageRepo repository.UsageRepository,
	policy QuotaPolicy,
	logger zerolog.Logger,
) EntitlementService {
	return &entitlementService{
		subSvc:     subSvc,
		creditRepo: creditRepo,
		usageRepo:  usageRepo,
		policy:     policy,
		now:        time.Now,
		logger:     logger.With().Str("service", "EntitlementService").Logger(),
	}
}

func (s *entitlementService) Policy() QuotaPolicy {
	return s.policy
}

func (s *entitlementService) Decide(ctx context.Context, userID string) (*model.EntitlementDecision, error) {
	state, err := s.subSvc.GetState(ctx, userID)
	if err != nil {
		// Fail closed: an unreadable subscription must deny, not silently
		// fall through to the free tier.
		return nil, fmt.Errorf("read subscription state: %w", err)
	}

	decision := &model.EntitlementDecision{
		PlanType:      state.PlanType,
		FreeAllowance: s.policy.Allowance(),
	}

	if state.Unlimited {
		decision.Allowed = true
		decision.Unlimited = true
		decision.Source = model.SourceSubscription
		return decision, nil
	}

	start, end := s.policy.Bounds(s.now())
	used, err := s.usageRepo.CountInWindow(ctx, userID, start, end)
	if err != nil {
		return nil, fmt.Errorf("read usage counter: %w", err)
	}
	decision.RemainingFree = s.policy.Allowance() - used
	if decision.RemainingFree < 0 {
		decision.RemainingFree = 0
	}

	credits, err := s.creditRepo.TotalRemaining(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("read credit balance: %w", err)
	}
	decision.RemainingCredits = credits

	switch {
	case decision.RemainingFree > 0:
		decision.Allowed = true
		decision.Source = model.SourceFree
	case credits > 0:
		decision.Allowed = true
		decision.Source = model.SourceCredit
	default:
		decision.Allowed = false
		decision.Source = model.SourceNone
	}
	return decision, nil
}

func (s *entitlementService) Debit(ctx context.Context, userID string, source model.DebitSource) error {
	switch source {
	case model.SourceSubscription:
		return nil
	case model.SourceFree:
		if err := s.usageRepo.IncrementDay(ctx, userID, s.now()); err != nil {
			s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to increment free usage counter")
			return err
		}
		return nil
	case model.SourceCredit:
		// The repository re-selects the oldest non-exhausted package inside a
		// single conditional UPDATE; nothing stale from Decide is reused.
		if err := s.creditRepo.DebitOldest(ctx, userID); err != nil {
			if errors.Is(err, repository.ErrNoCredits) {
				// Drained by a concurrent request between decide and debit.
				s.logger.Warn().Str("user_id", userID).Msg("Credit debit found no remaining package")
				return ErrEntitlementExhausted
			}
			s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to debit credit package")
			return err
		}
		return nil
	default:
		return fmt.Errorf("cannot debit source %q", source)
	}
}
