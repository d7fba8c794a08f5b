package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"app/internal/api/v1/dto"
	"app/internal/middleware"
	"app/internal/model"
	"app/internal/service"

	"github.com/rs/zerolog"
)

type fakeEntitlementService struct {
	decision *model.EntitlementDecision
	err      error
	debitErr error
	policy   service.QuotaPolicy
	debits   []model.DebitSource
}

func (f *fakeEntitlementService) Decide(ctx context.Context, userID string) (*model.EntitlementDecision, error) {
	return f.decision, f.err
}

func (f *fakeEntitlementService) Debit(ctx context.Context, userID string, source model.DebitSource) error {
	f.debits = append(f.debits, source)
	return f.debitErr
}

func (f *fakeEntitlementService) Policy() service.QuotaPolicy {
	return f.policy
}

// withPrincipal stamps an authenticated user id onto the request, standing in
// for the auth middleware.
func withPrincipal(r *http.Request, userID string) *http.Request {
	ctx := context.WithValue(r.Context(), middleware.UserContextKey, userID)
	return r.WithContext(ctx)
}

func TestGetUsageAnonymous(t *testing.T) {
	svc := &fakeEntitlementService{policy: service.QuotaPolicy{Window: model.QuotaWindowDay, DailyAllowance: 1}}
	h := NewUsageHandler(svc, zerolog.Nop())

	req := httptest.NewRequest(http.MethodGet, "/usage", nil)
	rec := httptest.NewRecorder()
	h.GetUsage(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for anonymous usage check, got %d", rec.Code)
	}
	var resp dto.UsageResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.IsAuthenticated {
		t.Fatal("anonymous response must not claim authentication")
	}
	if resp.Remaining != 0 || resp.Total != 1 || resp.IsUnlimited {
		t.Fatalf("anonymous caller gets no server-side quota: %+v", resp)
	}
}

func TestGetUsageUnlimitedSubscriber(t *testing.T) {
	svc := &fakeEntitlementService{decision: &model.EntitlementDecision{
		Allowed:   true,
		Unlimited: true,
		Source:    model.SourceSubscription,
		PlanType:  model.PlanMonthly,
	}}
	h := NewUsageHandler(svc, zerolog.Nop())

	req := withPrincipal(httptest.NewRequest(http.MethodGet, "/usage", nil), "user-1")
	rec := httptest.NewRecorder()
	h.GetUsage(rec, req)

	var resp dto.UsageResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.IsUnlimited || resp.Remaining != -1 || resp.Total != -1 {
		t.Fatalf("unlimited subscriber must get the -1 sentinel: %+v", resp)
	}
	if resp.PlanType == nil || *resp.PlanType != model.PlanMonthly {
		t.Fatalf("expected monthly plan type, got %v", resp.PlanType)
	}
}

func TestGetUsageFreeWithCredits(t *testing.T) {
	svc := &fakeEntitlementService{decision: &model.EntitlementDecision{
		Allowed:          true,
		Source:           model.SourceFree,
		PlanType:         model.PlanFree,
		RemainingFree:    1,
		RemainingCredits: 5,
		FreeAllowance:    1,
	}}
	h := NewUsageHandler(svc, zerolog.Nop())

	req := withPrincipal(httptest.NewRequest(http.MethodGet, "/usage", nil), "user-1")
	rec := httptest.NewRecorder()
	h.GetUsage(rec, req)

	var resp dto.UsageResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Remaining != 6 || resp.Total != 6 {
		t.Fatalf("remaining/total must combine free and credits: %+v", resp)
	}
	if resp.FreeRemaining == nil || *resp.FreeRemaining != 1 {
		t.Fatalf("expected freeRemaining 1, got %v", resp.FreeRemaining)
	}
	if resp.PaidCredits == nil || *resp.PaidCredits != 5 {
		t.Fatalf("expected paidCredits 5, got %v", resp.PaidCredits)
	}
}

func TestGetUsageReadFailure(t *testing.T) {
	svc := &fakeEntitlementService{err: errors.New("db down")}
	h := NewUsageHandler(svc, zerolog.Nop())

	req := withPrincipal(httptest.NewRequest(http.MethodGet, "/usage", nil), "user-1")
	rec := httptest.NewRecorder()
	h.GetUsage(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 on read failure, got %d", rec.Code)
	}
}

func TestGetUsageRejectsNonGet(t *testing.T) {
	h := NewUsageHandler(&fakeEntitlementService{}, zerolog.Nop())
	req := httptest.NewRequest(http.MethodPost, "/usage", nil)
	rec := httptest.NewRecorder()
	h.GetUsage(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}
