package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"app/internal/model"
	"app/internal/repository"

	"github.com/rs/zerolog"
)

type fakeSubscriptionService struct {
	state *model.SubscriptionState
	err   error
}

func (f *fakeSubscriptionService) GetState(ctx context.Context, userID string) (*model.SubscriptionState, error) {
	return f.state, f.err
}

func (f *fakeSubscriptionService) GetSubscription(ctx context.Context, userID string) (*model.Subscription, error) {
	return nil, nil
}

type fakeCreditRepo struct {
	remaining int
	readErr   error
	debitErr  error
	debits    int
}

func (f *fakeCreditRepo) TotalRemaining(ctx context.Context, userID string) (int, error) {
	return f.remaining, f.readErr
}

func (f *fakeCreditRepo) ListPackages(ctx context.Context, userID string) ([]model.CreditPackage, error) {
	return nil, nil
}

func (f *fakeCreditRepo) InsertPackage(ctx context.Context, userID string, credits int, sourceRef string) error {
	return nil
}

func (f *fakeCreditRepo) DebitOldest(ctx context.Context, userID string) error {
	if f.debitErr != nil {
		return f.debitErr
	}
	if f.remaining <= 0 {
		return repository.ErrNoCredits
	}
	f.remaining--
	f.debits++
	return nil
}

type fakeUsageRepo struct {
	used       int
	readErr    error
	increments int
}

func (f *fakeUsageRepo) CountInWindow(ctx context.Context, userID string, start, end time.Time) (int, error) {
	return f.used, f.readErr
}

func (f *fakeUsageRepo) IncrementDay(ctx context.Context, userID string, day time.Time) error {
	f.used++
	f.increments++
	return nil
}

func newTestEntitlementService(subState *model.SubscriptionState, credits *fakeCreditRepo, usage *fakeUsageRepo) EntitlementService {
	return NewEntitlementService(
		&fakeSubscriptionService{state: subState},
		credits,
		usage,
		QuotaPolicy{Window: model.QuotaWindowDay, DailyAllowance: 1, WeeklyAllowance: 1},
		zerolog.Nop(),
	)
}

func TestDecideActiveSubscriptionIsUnlimited(t *testing.T) {
	state := &model.SubscriptionState{Unlimited: true, PlanType: model.PlanMonthly, Status: model.SubscriptionActive}
	svc := newTestEntitlementService(state, &fakeCreditRepo{remaining: 3}, &fakeUsageRepo{used: 99})

	d, err := svc.Decide(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("Decide returned error: %v", err)
	}
	if !d.Allowed || !d.Unlimited {
		t.Fatalf("expected unlimited allow, got %+v", d)
	}
	if d.Source != model.SourceSubscription {
		t.Fatalf("expected subscription source, got %s", d.Source)
	}
}

func TestDecideFreeTierBeforeCredits(t *testing.T) {
	state := &model.SubscriptionState{PlanType: model.PlanFree, Status: model.SubscriptionInactive}
	svc := newTestEntitlementService(state, &fakeCreditRepo{remaining: 5}, &fakeUsageRepo{used: 0})

	d, err := svc.Decide(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("Decide returned error: %v", err)
	}
	if !d.Allowed {
		t.Fatalf("expected allow, got %+v", d)
	}
	if d.Source != model.SourceFree {
		t.Fatalf("free allowance must be consumed before credits, got source %s", d.Source)
	}
	if d.RemainingFree != 1 || d.RemainingCredits != 5 {
		t.Fatalf("unexpected remaining counts: %+v", d)
	}
}

func TestDecideFallsBackToCredits(t *testing.T) {
	state := &model.SubscriptionState{PlanType: model.PlanFree, Status: model.SubscriptionInactive}
	svc := newTestEntitlementService(state, &fakeCreditRepo{remaining: 2}, &fakeUsageRepo{used: 1})

	d, err := svc.Decide(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("Decide returned error: %v", err)
	}
	if !d.Allowed || d.Source != model.SourceCredit {
		t.Fatalf("expected credit source, got %+v", d)
	}
	if d.RemainingFree != 0 {
		t.Fatalf("expected exhausted free allowance, got %d", d.RemainingFree)
	}
}

func TestDecideDeniesWhenEverythingExhausted(t *testing.T) {
	state := &model.SubscriptionState{PlanType: model.PlanFree, Status: model.SubscriptionInactive}
	credits := &fakeCreditRepo{remaining: 0}
	usage := &fakeUsageRepo{used: 1}
	svc := newTestEntitlementService(state, credits, usage)

	d, err := svc.Decide(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("Decide returned error: %v", err)
	}
	if d.Allowed || d.Source != model.SourceNone {
		t.Fatalf("expected deny, got %+v", d)
	}
	// Decide is a pure read; a denial must not move any counter.
	if usage.increments != 0 || credits.debits != 0 {
		t.Fatalf("deny mutated state: increments=%d debits=%d", usage.increments, credits.debits)
	}
}

func TestDecideOverCountedWindowClampsToZero(t *testing.T) {
	state := &model.SubscriptionState{PlanType: model.PlanFree, Status: model.SubscriptionInactive}
	svc := newTestEntitlementService(state, &fakeCreditRepo{}, &fakeUsageRepo{used: 7})

	d, err := svc.Decide(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("Decide returned error: %v", err)
	}
	if d.RemainingFree != 0 {
		t.Fatalf("remaining free must clamp at zero, got %d", d.RemainingFree)
	}
}

func TestDecideFailsClosedOnSubscriptionReadError(t *testing.T) {
	svc := NewEntitlementService(
		&fakeSubscriptionService{err: errors.New("db down")},
		&fakeCreditRepo{remaining: 10},
		&fakeUsageRepo{},
		QuotaPolicy{Window: model.QuotaWindowDay, DailyAllowance: 1},
		zerolog.Nop(),
	)
	if _, err := svc.Decide(context.Background(), "user-1"); err == nil {
		t.Fatal("expected error when subscription state is unreadable")
	}
}

func TestDecideFailsClosedOnUsageReadError(t *testing.T) {
	state := &model.SubscriptionState{PlanType: model.PlanFree, Status: model.SubscriptionInactive}
	svc := newTestEntitlementService(state, &fakeCreditRepo{remaining: 10}, &fakeUsageRepo{readErr: errors.New("db down")})
	if _, err := svc.Decide(context.Background(), "user-1"); err == nil {
		t.Fatal("expected error when usage counter is unreadable")
	}
}

func TestDebitSubscriptionIsNoOp(t *testing.T) {
	credits := &fakeCreditRepo{remaining: 1}
	usage := &fakeUsageRepo{}
	svc := newTestEntitlementService(&model.SubscriptionState{Unlimited: true}, credits, usage)

	if err := svc.Debit(context.Background(), "user-1", model.SourceSubscription); err != nil {
		t.Fatalf("Debit returned error: %v", err)
	}
	if usage.increments != 0 || credits.debits != 0 {
		t.Fatalf("subscription debit must not touch counters: increments=%d debits=%d", usage.increments, credits.debits)
	}
}

func TestDebitFreeIncrementsCounter(t *testing.T) {
	usage := &fakeUsageRepo{}
	svc := newTestEntitlementService(&model.SubscriptionState{PlanType: model.PlanFree}, &fakeCreditRepo{}, usage)

	if err := svc.Debit(context.Background(), "user-1", model.SourceFree); err != nil {
		t.Fatalf("Debit returned error: %v", err)
	}
	if usage.increments != 1 {
		t.Fatalf("expected one increment, got %d", usage.increments)
	}
}

func TestDebitCreditConsumesOne(t *testing.T) {
	credits := &fakeCreditRepo{remaining: 2}
	svc := newTestEntitlementService(&model.SubscriptionState{PlanType: model.PlanFree}, credits, &fakeUsageRepo{})

	if err := svc.Debit(context.Background(), "user-1", model.SourceCredit); err != nil {
		t.Fatalf("Debit returned error: %v", err)
	}
	if credits.remaining != 1 || credits.debits != 1 {
		t.Fatalf("expected one credit consumed, remaining=%d debits=%d", credits.remaining, credits.debits)
	}
}

func TestDebitCreditRaceReturnsExhausted(t *testing.T) {
	// A concurrent request drained the last credit between Decide and Debit.
	credits := &fakeCreditRepo{remaining: 0}
	svc := newTestEntitlementService(&model.SubscriptionState{PlanType: model.PlanFree}, credits, &fakeUsageRepo{})

	err := svc.Debit(context.Background(), "user-1", model.SourceCredit)
	if !errors.Is(err, ErrEntitlementExhausted) {
		t.Fatalf("expected ErrEntitlementExhausted, got %v", err)
	}
}

func TestDebitUnknownSourceFails(t *testing.T) {
	svc := newTestEntitlementService(&model.SubscriptionState{}, &fakeCreditRepo{}, &fakeUsageRepo{})
	if err := svc.Debit(context.Background(), "user-1", model.SourceNone); err == nil {
		t.Fatal("expected error for undebitable source")
	}
}

func TestQuotaPolicyWindows(t *testing.T) {
	day := QuotaPolicy{Window: model.QuotaWindowDay, DailyAllowance: 1, WeeklyAllowance: 3}
	week := QuotaPolicy{Window: model.QuotaWindowWeek, DailyAllowance: 1, WeeklyAllowance: 3}

	if day.Allowance() != 1 {
		t.Fatalf("day allowance: got %d", day.Allowance())
	}
	if week.Allowance() != 3 {
		t.Fatalf("week allowance: got %d", week.Allowance())
	}

	// Wednesday 2025-06-18 15:30 UTC.
	at := time.Date(2025, 6, 18, 15, 30, 0, 0, time.UTC)

	start, end := day.Bounds(at)
	if !start.Equal(time.Date(2025, 6, 18, 0, 0, 0, 0, time.UTC)) || !end.Equal(time.Date(2025, 6, 19, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("day bounds: got [%v, %v)", start, end)
	}

	start, end = week.Bounds(at)
	if !start.Equal(time.Date(2025, 6, 16, 0, 0, 0, 0, time.UTC)) || !end.Equal(time.Date(2025, 6, 23, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("week bounds: got [%v, %v)", start, end)
	}
}
