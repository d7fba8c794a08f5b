package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"app/internal/api/v1/dto"
	"app/internal/middleware"
	"app/internal/repository"
	"app/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// PromoHandler serves promo code redemption.
type PromoHandler struct {
	promoSvc service.PromoService
	validate *validator.Validate
	logger   zerolog.Logger
}

// NewPromoHandler creates a new PromoHandler.
func NewPromoHandler(promoSvc service.PromoService, v *validator.Validate, logger zerolog.Logger) *PromoHandler {
	return &PromoHandler{promoSvc: promoSvc, validate: v, logger: logger}
}

// RegisterRoutes mounts the promo endpoint behind required auth.
func (h *PromoHandler) RegisterRoutes(mux *http.ServeMux, authMw func(http.Handler) http.Handler) {
	mux.Handle("/promos/redeem", authMw(http.HandlerFunc(h.Redeem)))
}

// Redeem godoc
// @Summary Redeem a promo code for credits
// @Tags promos
// @Accept json
// @Produce json
// @Param request body dto.PromoRedeemRequest true "Promo redemption request"
// @Success 200 {object} dto.PromoRedeemResponse
// @Failure 400 {object} dto.PromoRedeemResponse "invalid, expired, exhausted or already redeemed code"
// @Failure 401 {string} string "unauthorized"
// @Router /promos/redeem [post]
func (h *PromoHandler) Redeem(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}
	userID := middleware.PrincipalFromContext(r.Context())
	if userID == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req dto.PromoRedeemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.PromoRedeemResponse{Success: false, Message: "invalid request payload"})
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.PromoRedeemResponse{Success: false, Message: "invalid promo code"})
		return
	}

	red, err := h.promoSvc.Redeem(r.Context(), userID, req.Code)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrPromoNotFound):
			writeJSON(w, http.StatusBadRequest, dto.PromoRedeemResponse{Success: false, Message: "invalid promo code"})
		case errors.Is(err, repository.ErrPromoExpired):
			writeJSON(w, http.StatusBadRequest, dto.PromoRedeemResponse{Success: false, Message: "promo code expired"})
		case errors.Is(err, repository.ErrPromoAlreadyRedeemed):
			writeJSON(w, http.StatusBadRequest, dto.PromoRedeemResponse{Success: false, Message: "promo code already redeemed"})
		case errors.Is(err, repository.ErrPromoLimitReached):
			writeJSON(w, http.StatusBadRequest, dto.PromoRedeemResponse{Success: false, Message: "promo code redemption limit reached"})
		default:
			h.logger.Error().Err(err).Str("user_id", userID).Msg("promo redemption failed")
			http.Error(w, "failed to redeem promo code", http.StatusInternalServerError)
		}
		return
	}

	writeJSON(w, http.StatusOK, dto.PromoRedeemResponse{
		Success: true,
		Credits: red.CreditsAwarded,
		Message: "credits added to your account",
	})
}
