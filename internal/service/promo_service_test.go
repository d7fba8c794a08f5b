package service

import (
	"context"
	"errors"
	"testing"

	"app/internal/model"
	"app/internal/repository"

	"github.com/rs/zerolog"
)

type fakePromoRepo struct {
	redemption *model.PromoRedemption
	err        error
	calls      int
}

func (f *fakePromoRepo) GetCode(ctx context.Context, code string) (*model.PromoCode, error) {
	return nil, nil
}

func (f *fakePromoRepo) Redeem(ctx context.Context, userID, code string) (*model.PromoRedemption, error) {
	f.calls++
	return f.redemption, f.err
}

func TestRedeemRejectsMalformedCodesWithoutDBRead(t *testing.T) {
	repo := &fakePromoRepo{}
	svc := NewPromoService(repo, zerolog.Nop())

	for _, code := range []string{"", "ab", "lowercase", "HAS SPACE", "-LEADINGDASH", "WAY-TOO-LONG-CODE-THAT-EXCEEDS-THE-LIMIT"} {
		if _, err := svc.Redeem(context.Background(), "user-1", code); !errors.Is(err, repository.ErrPromoNotFound) {
			t.Errorf("code %q: expected ErrPromoNotFound, got %v", code, err)
		}
	}
	if repo.calls != 0 {
		t.Fatalf("malformed codes must not reach the repository, got %d calls", repo.calls)
	}
}

func TestRedeemPassesWellFormedCode(t *testing.T) {
	repo := &fakePromoRepo{redemption: &model.PromoRedemption{Code: "WELCOME10", CreditsAwarded: 10}}
	svc := NewPromoService(repo, zerolog.Nop())

	red, err := svc.Redeem(context.Background(), "user-1", "WELCOME10")
	if err != nil {
		t.Fatalf("Redeem returned error: %v", err)
	}
	if red.CreditsAwarded != 10 {
		t.Fatalf("unexpected redemption: %+v", red)
	}
	if repo.calls != 1 {
		t.Fatalf("expected one repository call, got %d", repo.calls)
	}
}

func TestRedeemSurfacesRepositoryErrors(t *testing.T) {
	repo := &fakePromoRepo{err: repository.ErrPromoLimitReached}
	svc := NewPromoService(repo, zerolog.Nop())

	if _, err := svc.Redeem(context.Background(), "user-1", "SOLD-OUT"); !errors.Is(err, repository.ErrPromoLimitReached) {
		t.Fatalf("expected ErrPromoLimitReached, got %v", err)
	}
}
