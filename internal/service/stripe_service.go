package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"app/internal/config"
	"app/internal/model"
	"app/internal/repository"

	"github.com/rs/zerolog"
	"github.com/stripe/stripe-go/v82"
	billingsession "github.com/stripe/stripe-go/v82/billingportal/session"
	checkoutsession "github.com/stripe/stripe-go/v82/checkout/session"
	customerpkg "github.com/stripe/stripe-go/v82/customer"
	subscriptionpkg "github.com/stripe/stripe-go/v82/subscription"
	"github.com/stripe/stripe-go/v82/webhook"
)

// errBadEvent marks webhook payloads that are malformed or unusable; they are
// rejected with a client error so Stripe does not redeliver them forever.
var errBadEvent = errors.New("bad_webhook_event")

// StripeService manages Stripe integration: checkout and portal sessions for
// plans and credit packs, and the webhook ingester that keeps subscription
// and credit-ledger state in sync with billing events.
type StripeService struct {
	cfg        *config.Config
	userRepo   repository.UserRepository
	subRepo    repository.SubscriptionRepository
	creditRepo repository.CreditRepository
	logger     zerolog.Logger

	// fetchSubscription resolves a subscription id to the full provider
	// object; replaced in tests to avoid network calls.
	fetchSubscription func(id string) (*stripe.Subscription, error)
}

// NewStripeService initializes the Stripe key and returns the service with a
// scoped logger.
func NewStripeService(
	cfg *config.Config,
	userRepo repository.UserRepository,
	subRepo repository.SubscriptionRepository,
	creditRepo repository.CreditRepository,
	logger zerolog.Logger,
) *StripeService {
	stripe.Key = cfg.StripeSecretKey
	return &StripeService{
		cfg:        cfg,
		userRepo:   userRepo,
		subRepo:    subRepo,
		creditRepo: creditRepo,
		logger:     logger.With().Str("service", "StripeService").Logger(),
		fetchSubscription: func(id string) (*stripe.Subscription, error) {
			return subscriptionpkg.Get(id, nil)
		},
	}
}

// getUserIDFromEvent resolves the user from webhook metadata or, failing
// that, from the Stripe customer id.
func (s *StripeService) getUserIDFromEvent(ctx context.Context, metadata map[string]string, customerID string) (string, error) {
	if userID, ok := metadata["user_id"]; ok && userID != "" {
		return userID, nil
	}
	if customerID == "" {
		return "", fmt.Errorf("%w: missing metadata and customer id", errBadEvent)
	}
	s.logger.Warn().Str("stripe_customer_id", customerID).Msg("Missing user_id metadata; looking up user by customer ID")
	u, err := s.userRepo.GetUserByStripeCustomerID(ctx, customerID)
	if err != nil {
		return "", fmt.Errorf("failed to lookup user by Stripe customer ID: %w", err)
	}
	if u == nil {
		return "", fmt.Errorf("%w: no user found for customer ID %s", errBadEvent, customerID)
	}
	return u.UserID, nil
}

// GetOrCreateCustomer ensures a Stripe Customer exists for a user.
func (s *StripeService) GetOrCreateCustomer(ctx context.Context, user *model.User) (string, error) {
	if user.StripeCustomerID != nil && *user.StripeCustomerID != "" {
		return *user.StripeCustomerID, nil
	}
	s.logger.Warn().Str("user_id", user.UserID).Msg("No Stripe customer ID found, creating customer")
	params := &stripe.CustomerParams{
		Email:    stripe.String(user.Email),
		Name:     stripe.String(user.Name),
		Metadata: map[string]string{"user_id": user.UserID},
	}
	cust, err := customerpkg.New(params)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", user.UserID).Msg("Failed to create Stripe customer")
		return "", fmt.Errorf("create stripe customer: %w", err)
	}
	if err := s.userRepo.UpdateStripeCustomerID(ctx, user.UserID, cust.ID); err != nil {
		s.logger.Error().Err(err).Str("user_id", user.UserID).Msg("Failed to store stripe customer id")
		return "", fmt.Errorf("store stripe customer id: %w", err)
	}
	return cust.ID, nil
}

// CreateCheckoutSession creates a Stripe Checkout session for a subscription
// plan ("monthly", "yearly") or the one-off credit pack ("credits").
func (s *StripeService) CreateCheckoutSession(ctx context.Context, userID, plan string) (string, error) {
	user, err := s.userRepo.GetUserByID(ctx, userID)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to fetch user for checkout session")
		return "", fmt.Errorf("fetch user: %w", err)
	}
	if user == nil {
		return "", fmt.Errorf("user not found: %s", userID)
	}
	customerID, err := s.GetOrCreateCustomer(ctx, user)
	if err != nil {
		return "", err
	}

	var priceID string
	mode := stripe.CheckoutSessionModeSubscription
	metadata := map[string]string{"user_id": userID}
	switch plan {
	case model.PlanMonthly:
		priceID = s.cfg.StripePriceMonthly
	case model.PlanYearly:
		priceID = s.cfg.StripePriceYearly
	case "credits":
		priceID = s.cfg.StripePriceCreditPack
		mode = stripe.CheckoutSessionModePayment
		metadata["purpose"] = "credit_pack"
	default:
		return "", fmt.Errorf("invalid plan: %s", plan)
	}

	sessParams := &stripe.CheckoutSessionParams{
		Customer:           stripe.String(customerID),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems:          []*stripe.CheckoutSessionLineItemParams{{Price: stripe.String(priceID), Quantity: stripe.Int64(1)}},
		Mode:               stripe.String(string(mode)),
		SuccessURL:         stripe.String(s.cfg.StripePortalReturnURL + "?status=success"),
		CancelURL:          stripe.String(s.cfg.StripePortalReturnURL + "?status=cancel"),
		Metadata:           metadata,
	}
	sess, err := checkoutsession.New(sessParams)
	if err != nil {
		s.logger.Error().Err(err).Str("plan", plan).Msg("Failed to create Stripe checkout session")
		return "", fmt.Errorf("create checkout session: %w", err)
	}
	return sess.URL, nil
}

// CreatePortalSession creates a Stripe Customer Portal session.
func (s *StripeService) CreatePortalSession(ctx context.Context, userID string) (string, error) {
	user, err := s.userRepo.GetUserByID(ctx, userID)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to fetch user for portal session")
		return "", fmt.Errorf("fetch user: %w", err)
	}
	if user == nil || user.StripeCustomerID == nil || *user.StripeCustomerID == "" {
		return "", fmt.Errorf("no stripe customer for user: %s", userID)
	}
	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(*user.StripeCustomerID),
		ReturnURL: stripe.String(s.cfg.StripePortalReturnURL),
	}
	sess, err := billingsession.New(params)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to create Stripe billing portal session")
		return "", fmt.Errorf("create billing portal session: %w", err)
	}
	return sess.URL, nil
}

// HandleWebhook verifies and processes Stripe webhook events. The body is
// read raw, before any parsing, so the signature covers the exact bytes.
func (s *StripeService) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to read Stripe webhook payload")
		http.Error(w, "failed to read payload", http.StatusBadRequest)
		return
	}
	sig := r.Header.Get("Stripe-Signature")
	event, err := webhook.ConstructEvent(payload, sig, s.cfg.StripeWebhookSecret)
	if err != nil {
		s.logger.Error().Err(err).Msg("Signature verification failed for Stripe webhook")
		http.Error(w, "signature verification failed", http.StatusBadRequest)
		return
	}
	s.logger.Info().Str("event_type", string(event.Type)).Msg("Stripe webhook received")

	if err := s.handleEvent(r.Context(), event); err != nil {
		if errors.Is(err, errBadEvent) {
			s.logger.Error().Err(err).Str("event_type", string(event.Type)).Msg("Rejecting malformed webhook event")
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		// A server error makes Stripe redeliver; that retry is the sole
		// reliability mechanism here.
		s.logger.Error().Err(err).Str("event_type", string(event.Type)).Msg("Failed to process webhook event")
		http.Error(w, "failed to process event", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// handleEvent applies one billing event to subscription or credit state. All
// writes are idempotent upserts, so duplicate deliveries converge.
func (s *StripeService) handleEvent(ctx context.Context, event stripe.Event) error {
	switch event.Type {
	case "checkout.session.completed":
		var cs stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &cs); err != nil {
			return fmt.Errorf("%w: invalid checkout.session data: %v", errBadEvent, err)
		}
		return s.handleCheckoutCompleted(ctx, &cs)

	case "customer.subscription.updated":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return fmt.Errorf("%w: invalid subscription data: %v", errBadEvent, err)
		}
		periodEnd := subscriptionPeriodEnd(&sub)
		return s.subRepo.UpdateByProviderID(ctx, sub.ID, mapSubscriptionStatus(sub.Status), periodEnd, sub.CancelAtPeriodEnd)

	case "customer.subscription.deleted":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return fmt.Errorf("%w: invalid subscription data: %v", errBadEvent, err)
		}
		return s.subRepo.CancelByProviderID(ctx, sub.ID)

	case "invoice.payment_failed":
		var invoice stripe.Invoice
		if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
			return fmt.Errorf("%w: invalid invoice data: %v", errBadEvent, err)
		}
		subID := invoiceSubscriptionID(&invoice)
		if subID == "" {
			s.logger.Info().Str("invoice_id", invoice.ID).Msg("Failed invoice has no subscription, ignoring")
			return nil
		}
		return s.subRepo.MarkPastDueByProviderID(ctx, subID)

	default:
		s.logger.Debug().Str("event_type", string(event.Type)).Msg("Ignoring unhandled webhook event")
		return nil
	}
}

func (s *StripeService) handleCheckoutCompleted(ctx context.Context, cs *stripe.CheckoutSession) error {
	customerID := ""
	if cs.Customer != nil {
		customerID = cs.Customer.ID
	}
	userID, err := s.getUserIDFromEvent(ctx, cs.Metadata, customerID)
	if err != nil {
		return err
	}

	// One-off credit pack purchase: payment mode, no subscription involved.
	if cs.Mode == stripe.CheckoutSessionModePayment {
		sourceRef := cs.ID
		if cs.PaymentIntent != nil && cs.PaymentIntent.ID != "" {
			sourceRef = cs.PaymentIntent.ID
		}
		if err := s.creditRepo.InsertPackage(ctx, userID, s.cfg.CreditPackSize, sourceRef); err != nil {
			return fmt.Errorf("insert purchased credit package: %w", err)
		}
		s.logger.Info().Str("user_id", userID).Int("credits", s.cfg.CreditPackSize).Msg("Credit pack purchase recorded")
		return nil
	}

	if cs.Subscription == nil || cs.Subscription.ID == "" {
		return fmt.Errorf("%w: checkout session has no subscription", errBadEvent)
	}
	subObj, err := s.fetchSubscription(cs.Subscription.ID)
	if err != nil {
		return fmt.Errorf("fetch subscription %s: %w", cs.Subscription.ID, err)
	}
	if len(subObj.Items.Data) == 0 || subObj.Items.Data[0].Price == nil {
		return fmt.Errorf("%w: subscription %s has no priced items", errBadEvent, subObj.ID)
	}
	plan := s.planFromPrice(subObj.Items.Data[0].Price.ID)
	if plan == "" {
		return fmt.Errorf("%w: unknown price %s on subscription %s", errBadEvent, subObj.Items.Data[0].Price.ID, subObj.ID)
	}
	periodEnd := subscriptionPeriodEnd(subObj)

	if err := s.subRepo.UpsertSubscription(ctx, userID, plan, model.SubscriptionActive, subObj.ID, periodEnd); err != nil {
		return fmt.Errorf("upsert subscription on checkout completion: %w", err)
	}
	s.logger.Info().Str("user_id", userID).Str("plan", plan).Str("subscription_id", subObj.ID).Msg("Subscription checkout recorded")
	return nil
}

// planFromPrice maps a Stripe price id to the plan kind it sells.
func (s *StripeService) planFromPrice(priceID string) string {
	switch priceID {
	case s.cfg.StripePriceMonthly:
		return model.PlanMonthly
	case s.cfg.StripePriceYearly:
		return model.PlanYearly
	default:
		return ""
	}
}

func mapSubscriptionStatus(status stripe.SubscriptionStatus) string {
	switch status {
	case stripe.SubscriptionStatusActive, stripe.SubscriptionStatusTrialing:
		return model.SubscriptionActive
	case stripe.SubscriptionStatusPastDue:
		return model.SubscriptionPastDue
	case stripe.SubscriptionStatusCanceled:
		return model.SubscriptionCanceled
	default:
		return model.SubscriptionInactive
	}
}

func subscriptionPeriodEnd(sub *stripe.Subscription) *time.Time {
	if sub == nil || len(sub.Items.Data) == 0 {
		return nil
	}
	if end := sub.Items.Data[0].CurrentPeriodEnd; end > 0 {
		t := time.Unix(end, 0)
		return &t
	}
	return nil
}

func invoiceSubscriptionID(invoice *stripe.Invoice) string {
	if invoice.Lines == nil {
		return ""
	}
	for _, line := range invoice.Lines.Data {
		if line.Subscription != nil && line.Subscription.ID != "" {
			return line.Subscription.ID
		}
	}
	return ""
}
