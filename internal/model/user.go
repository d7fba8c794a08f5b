package model

import "time"

// User represents a user profile in the system. Identity itself is owned by
// the external auth provider; this row carries product-side attributes only.
type User struct {
	UserID           string    `db:"user_id" json:"user_id"`
	Name             string    `db:"name" json:"name"`
	Email            string    `db:"email" json:"email"`
	AvatarURL        string    `db:"avatar_url" json:"avatar_url"`
	StripeCustomerID *string   `db:"stripe_customer_id" json:"stripe_customer_id,omitempty"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time `db:"updated_at" json:"updated_at"`
}
