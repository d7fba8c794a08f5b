package handler

import (
	"encoding/json"
	"net/http"

	"app/internal/api/v1/dto"
	"app/internal/middleware"
	"app/internal/service"

	"github.com/rs/zerolog"
)

// UsageHandler answers the usage check: how many generations the caller has
// left and from which source.
type UsageHandler struct {
	entitlementSvc service.EntitlementService
	logger         zerolog.Logger
}

// NewUsageHandler creates a new UsageHandler.
func NewUsageHandler(entitlementSvc service.EntitlementService, logger zerolog.Logger) *UsageHandler {
	return &UsageHandler{entitlementSvc: entitlementSvc, logger: logger}
}

// RegisterRoutes mounts the usage endpoint. Auth is optional here: anonymous
// visitors get a zeroed response, not a 401, so the landing page can render
// quota state before sign-in.
func (h *UsageHandler) RegisterRoutes(mux *http.ServeMux, optionalAuthMw func(http.Handler) http.Handler) {
	mux.Handle("/usage", optionalAuthMw(http.HandlerFunc(h.GetUsage)))
}

// GetUsage godoc
// @Summary Report the caller's remaining generation quota
// @Tags usage
// @Produce json
// @Success 200 {object} dto.UsageResponse
// @Failure 500 {string} string "failed to read usage"
// @Router /usage [get]
func (h *UsageHandler) GetUsage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	userID := middleware.PrincipalFromContext(r.Context())
	if userID == "" {
		// No anonymous server-side quota. Any guest allowance lives purely in
		// the browser and grants no rights here.
		resp := dto.UsageResponse{
			Remaining:       0,
			Total:           h.entitlementSvc.Policy().Allowance(),
			IsUnlimited:     false,
			IsAuthenticated: false,
		}
		writeJSON(w, http.StatusOK, resp)
		return
	}

	decision, err := h.entitlementSvc.Decide(r.Context(), userID)
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", userID).Msg("failed to read usage")
		http.Error(w, "failed to read usage", http.StatusInternalServerError)
		return
	}

	plan := decision.PlanType
	resp := dto.UsageResponse{
		IsAuthenticated: true,
		PlanType:        &plan,
	}
	if decision.Unlimited {
		resp.Remaining = -1
		resp.Total = -1
		resp.IsUnlimited = true
		writeJSON(w, http.StatusOK, resp)
		return
	}

	free := decision.RemainingFree
	credits := decision.RemainingCredits
	resp.Remaining = free + credits
	resp.Total = decision.FreeAllowance + credits
	resp.FreeRemaining = &free
	resp.PaidCredits = &credits
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
