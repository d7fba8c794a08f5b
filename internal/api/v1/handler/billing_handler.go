package handler

import (
	"encoding/json"
	"net/http"

	"app/internal/api/v1/dto"
	"app/internal/middleware"
	"app/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// BillingHandler handles checkout, the customer portal, the subscription
// status read and the Stripe webhook.
type BillingHandler struct {
	stripeSvc *service.StripeService
	subSvc    service.SubscriptionService
	validate  *validator.Validate
	logger    zerolog.Logger
}

// NewBillingHandler creates a new BillingHandler.
func NewBillingHandler(stripeSvc *service.StripeService, subSvc service.SubscriptionService, v *validator.Validate, logger zerolog.Logger) *BillingHandler {
	return &BillingHandler{stripeSvc: stripeSvc, subSvc: subSvc, validate: v, logger: logger}
}

// RegisterRoutes registers the billing endpoints. The webhook is mounted
// without auth: Stripe authenticates through the signature header, and the
// body must reach the verifier unparsed.
func (h *BillingHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware func(http.Handler) http.Handler) {
	mux.Handle("/billing/checkout", authMiddleware(http.HandlerFunc(h.Checkout)))
	mux.Handle("/billing/portal", authMiddleware(http.HandlerFunc(h.Portal)))
	mux.Handle("/billing/subscription", authMiddleware(http.HandlerFunc(h.Subscription)))
	mux.Handle("/billing/webhook", http.HandlerFunc(h.Webhook))
}

// Checkout godoc
// @Summary Initiate a Stripe Checkout session for a plan or credit pack
// @Tags billing
// @Accept json
// @Produce json
// @Param request body dto.CheckoutRequest true "Checkout request"
// @Success 200 {object} map[string]string "URL of the Stripe Checkout session"
// @Failure 400 {string} string "invalid request payload"
// @Failure 401 {string} string "unauthorized"
// @Failure 500 {string} string "failed to create checkout session"
// @Router /billing/checkout [post]
func (h *BillingHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}
	userID := middleware.PrincipalFromContext(r.Context())
	if userID == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	var req dto.CheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request payload", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		http.Error(w, "invalid plan", http.StatusBadRequest)
		return
	}
	url, err := h.stripeSvc.CreateCheckoutSession(r.Context(), userID, req.Plan)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to create checkout session")
		http.Error(w, "failed to create checkout session", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}

// Portal godoc
// @Summary Create a Stripe Customer Portal session
// @Tags billing
// @Produce json
// @Success 200 {object} map[string]string "URL of the Customer Portal session"
// @Failure 401 {string} string "unauthorized"
// @Failure 500 {string} string "failed to create portal session"
// @Router /billing/portal [get]
func (h *BillingHandler) Portal(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}
	userID := middleware.PrincipalFromContext(r.Context())
	if userID == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	url, err := h.stripeSvc.CreatePortalSession(r.Context(), userID)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to create portal session")
		http.Error(w, "failed to create portal session", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}

// Subscription godoc
// @Summary Report the caller's subscription state
// @Tags billing
// @Produce json
// @Success 200 {object} model.SubscriptionState
// @Failure 401 {string} string "unauthorized"
// @Router /billing/subscription [get]
func (h *BillingHandler) Subscription(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}
	userID := middleware.PrincipalFromContext(r.Context())
	if userID == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	state, err := h.subSvc.GetState(r.Context(), userID)
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", userID).Msg("failed to read subscription state")
		http.Error(w, "failed to read subscription", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// Webhook godoc
// @Summary Receive Stripe billing events
// @Tags billing
// @Accept json
// @Success 200 {string} string "event processed"
// @Failure 400 {string} string "signature verification failed"
// @Failure 500 {string} string "failed to process event"
// @Router /billing/webhook [post]
func (h *BillingHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}
	h.stripeSvc.HandleWebhook(w, r)
}
