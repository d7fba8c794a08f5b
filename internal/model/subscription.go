package model

import "time"

// Plan kinds for a user subscription.
const (
	PlanFree    = "free"
	PlanMonthly = "monthly"
	PlanYearly  = "yearly"
)

// Subscription statuses.
const (
	SubscriptionActive   = "active"
	SubscriptionPastDue  = "past_due"
	SubscriptionCanceled = "canceled"
	SubscriptionInactive = "inactive"
)

// Subscription is the single billing subscription row for a user.
type Subscription struct {
	UserID               string     `db:"user_id" json:"user_id"`
	Plan                 string     `db:"plan" json:"plan"`
	Status               string     `db:"status" json:"status"`
	StripeSubscriptionID *string    `db:"stripe_subscription_id" json:"stripe_subscription_id,omitempty"`
	CurrentPeriodEnd     *time.Time `db:"current_period_end" json:"current_period_end,omitempty"`
	CancelAtPeriodEnd    bool       `db:"cancel_at_period_end" json:"cancel_at_period_end"`
	CreatedAt            time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time  `db:"updated_at" json:"updated_at"`
}

// SubscriptionState is the resolved view the entitlement flow consumes: did
// the subscription grant unlimited generations at the time of the read.
type SubscriptionState struct {
	Unlimited bool       `json:"unlimited"`
	PlanType  string     `json:"plan_type"`
	Status    string     `json:"status"`
	PeriodEnd *time.Time `json:"period_end,omitempty"`
}

// IsPaidPlan reports whether the plan kind grants unlimited generations when
// the subscription is active and within its billing period.
func IsPaidPlan(plan string) bool {
	return plan == PlanMonthly || plan == PlanYearly
}
