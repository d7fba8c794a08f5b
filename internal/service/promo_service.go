package service

import (
	"app/internal/model"
	"app/internal/repository"
	"context"
	"regexp"

	"github.com/rs/zerolog"
)

// Promo codes are short uppercase alphanumerics with optional dashes.
var promoCodeShape = regexp.MustCompile(`^[A-Z0-9][A-Z0-9-]{2,31}$`)

// PromoService validates and applies promo code redemptions.
type PromoService interface {
	// Redeem awards the code's credits to the user. Shape violations surface
	// as ErrPromoNotFound so probing responses stay uniform.
	Redeem(ctx context.Context, userID, code string) (*model.PromoRedemption, error)
}

type promoService struct {
	repo   repository.PromoRepository
	logger zerolog.Logger
}

// NewPromoService creates a new PromoService with a scoped logger.
func NewPromoService(repo repository.PromoRepository, logger zerolog.Logger) PromoService {
	return &promoService{
		repo:   repo,
		logger: logger.With().Str("service", "PromoService").Logger(),
	}
}

func (s *promoService) Redeem(ctx context.Context, userID, code string) (*model.PromoRedemption, error) {
	if !promoCodeShape.MatchString(code) {
		return nil, repository.ErrPromoNotFound
	}
	red, err := s.repo.Redeem(ctx, userID, code)
	if err != nil {
		s.logger.Warn().Err(err).Str("user_id", userID).Str("code", code).Msg("Promo redemption rejected")
		return nil, err
	}
	s.logger.Info().Str("user_id", userID).Str("code", code).Int("credits", red.CreditsAwarded).Msg("Promo code redeemed")
	return red, nil
}
