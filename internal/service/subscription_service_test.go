package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"app/internal/model"

	"github.com/rs/zerolog"
)

type fakeSubscriptionRepo struct {
	sub        *model.Subscription
	getErr     error
	expireErr  error
	expireCall int
}

func (f *fakeSubscriptionRepo) GetSubscription(ctx context.Context, userID string) (*model.Subscription, error) {
	return f.sub, f.getErr
}

func (f *fakeSubscriptionRepo) UpsertSubscription(ctx context.Context, userID, plan, status, stripeSubscriptionID string, periodEnd *time.Time) error {
	return nil
}

func (f *fakeSubscriptionRepo) UpdateByProviderID(ctx context.Context, stripeSubscriptionID, status string, periodEnd *time.Time, cancelAtPeriodEnd bool) error {
	return nil
}

func (f *fakeSubscriptionRepo) CancelByProviderID(ctx context.Context, stripeSubscriptionID string) error {
	return nil
}

func (f *fakeSubscriptionRepo) MarkPastDueByProviderID(ctx context.Context, stripeSubscriptionID string) error {
	return nil
}

func (f *fakeSubscriptionRepo) ExpireLapsed(ctx context.Context, userID string) error {
	if f.expireErr != nil {
		return f.expireErr
	}
	f.expireCall++
	if f.sub != nil {
		f.sub.Plan = model.PlanFree
		f.sub.Status = model.SubscriptionCanceled
	}
	return nil
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestGetStateNoSubscriptionRowIsFreeTier(t *testing.T) {
	svc := NewSubscriptionService(&fakeSubscriptionRepo{}, zerolog.Nop())

	state, err := svc.GetState(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("GetState returned error: %v", err)
	}
	if state.Unlimited {
		t.Fatal("missing subscription row must not be unlimited")
	}
	if state.PlanType != model.PlanFree {
		t.Fatalf("expected free plan, got %s", state.PlanType)
	}
}

func TestGetStateActivePaidWithinPeriodIsUnlimited(t *testing.T) {
	now := time.Date(2025, 6, 18, 12, 0, 0, 0, time.UTC)
	end := now.Add(24 * time.Hour)
	repo := &fakeSubscriptionRepo{sub: &model.Subscription{
		UserID:           "user-1",
		Plan:             model.PlanMonthly,
		Status:           model.SubscriptionActive,
		CurrentPeriodEnd: &end,
	}}
	svc := NewSubscriptionService(repo, zerolog.Nop())
	svc.(*subscriptionService).now = fixedClock(now)

	state, err := svc.GetState(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("GetState returned error: %v", err)
	}
	if !state.Unlimited {
		t.Fatalf("active paid subscription within period must be unlimited: %+v", state)
	}
	if repo.expireCall != 0 {
		t.Fatal("non-lapsed subscription must not be expired")
	}
}

func TestGetStatePastDueIsNotUnlimited(t *testing.T) {
	end := time.Now().Add(24 * time.Hour)
	repo := &fakeSubscriptionRepo{sub: &model.Subscription{
		Plan:             model.PlanMonthly,
		Status:           model.SubscriptionPastDue,
		CurrentPeriodEnd: &end,
	}}
	svc := NewSubscriptionService(repo, zerolog.Nop())

	state, err := svc.GetState(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("GetState returned error: %v", err)
	}
	if state.Unlimited {
		t.Fatal("past_due subscription must not be unlimited")
	}
}

func TestGetStateLazilyExpiresLapsedSubscription(t *testing.T) {
	now := time.Date(2025, 6, 18, 12, 0, 0, 0, time.UTC)
	end := now.Add(-time.Hour)
	repo := &fakeSubscriptionRepo{sub: &model.Subscription{
		UserID:           "user-1",
		Plan:             model.PlanYearly,
		Status:           model.SubscriptionActive,
		CurrentPeriodEnd: &end,
	}}
	svc := NewSubscriptionService(repo, zerolog.Nop())
	svc.(*subscriptionService).now = fixedClock(now)

	state, err := svc.GetState(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("GetState returned error: %v", err)
	}
	if state.Unlimited {
		t.Fatal("lapsed subscription must not be unlimited")
	}
	if state.PlanType != model.PlanFree || state.Status != model.SubscriptionCanceled {
		t.Fatalf("expected canceled/free after lazy expiry, got %+v", state)
	}
	if repo.expireCall != 1 {
		t.Fatalf("expected one expiry call, got %d", repo.expireCall)
	}

	// A second read sees the already-downgraded row and stays stable.
	state, err = svc.GetState(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("second GetState returned error: %v", err)
	}
	if state.Unlimited || state.PlanType != model.PlanFree {
		t.Fatalf("expiry must be idempotent, got %+v", state)
	}
	if repo.expireCall != 1 {
		t.Fatalf("downgraded row must not be expired again, got %d calls", repo.expireCall)
	}
}

func TestGetStateMissingPeriodEndStaysActive(t *testing.T) {
	repo := &fakeSubscriptionRepo{sub: &model.Subscription{
		Plan:   model.PlanMonthly,
		Status: model.SubscriptionActive,
	}}
	svc := NewSubscriptionService(repo, zerolog.Nop())

	state, err := svc.GetState(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("GetState returned error: %v", err)
	}
	if !state.Unlimited {
		t.Fatal("active subscription without a period end must stay unlimited")
	}
}

func TestGetStatePropagatesReadError(t *testing.T) {
	repo := &fakeSubscriptionRepo{getErr: errors.New("db down")}
	svc := NewSubscriptionService(repo, zerolog.Nop())

	if _, err := svc.GetState(context.Background(), "user-1"); err == nil {
		t.Fatal("read failure must be surfaced, not treated as free tier")
	}
}
