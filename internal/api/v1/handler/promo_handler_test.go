package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"app/internal/api/v1/dto"
	"app/internal/model"
	"app/internal/repository"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

type fakePromoService struct {
	redemption *model.PromoRedemption
	err        error
}

func (f *fakePromoService) Redeem(ctx context.Context, userID, code string) (*model.PromoRedemption, error) {
	return f.redemption, f.err
}

func newTestPromoHandler(svc *fakePromoService) *PromoHandler {
	return NewPromoHandler(svc, validator.New(validator.WithRequiredStructEnabled()), zerolog.Nop())
}

func redeemRequest(body string) *http.Request {
	return withPrincipal(httptest.NewRequest(http.MethodPost, "/promos/redeem", strings.NewReader(body)), "user-1")
}

func TestRedeemRequiresAuth(t *testing.T) {
	h := newTestPromoHandler(&fakePromoService{})
	req := httptest.NewRequest(http.MethodPost, "/promos/redeem", strings.NewReader(`{"code":"WELCOME10"}`))
	rec := httptest.NewRecorder()
	h.Redeem(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestRedeemSuccess(t *testing.T) {
	h := newTestPromoHandler(&fakePromoService{redemption: &model.PromoRedemption{
		UserID:         "user-1",
		Code:           "WELCOME10",
		CreditsAwarded: 10,
	}})
	rec := httptest.NewRecorder()
	h.Redeem(rec, redeemRequest(`{"code":"WELCOME10"}`))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp dto.PromoRedeemResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Success || resp.Credits != 10 {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestRedeemErrorMapping(t *testing.T) {
	cases := []struct {
		name    string
		err     error
		message string
	}{
		{"not found", repository.ErrPromoNotFound, "invalid promo code"},
		{"expired", repository.ErrPromoExpired, "promo code expired"},
		{"already redeemed", repository.ErrPromoAlreadyRedeemed, "promo code already redeemed"},
		{"limit reached", repository.ErrPromoLimitReached, "promo code redemption limit reached"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			h := newTestPromoHandler(&fakePromoService{err: c.err})
			rec := httptest.NewRecorder()
			h.Redeem(rec, redeemRequest(`{"code":"SOME-CODE"}`))

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", rec.Code)
			}
			var resp dto.PromoRedeemResponse
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatalf("decode response: %v", err)
			}
			if resp.Success || resp.Message != c.message {
				t.Fatalf("unexpected response: %+v", resp)
			}
		})
	}
}

func TestRedeemRejectsMissingCode(t *testing.T) {
	h := newTestPromoHandler(&fakePromoService{})
	rec := httptest.NewRecorder()
	h.Redeem(rec, redeemRequest(`{}`))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing code, got %d", rec.Code)
	}
}
