package model

import "time"

// PromoCode is a redeemable code awarding a fixed credit package.
type PromoCode struct {
	Code           string     `db:"code" json:"code"`
	Credits        int        `db:"credits" json:"credits"`
	MaxRedemptions int        `db:"max_redemptions" json:"max_redemptions"`
	ExpiresAt      *time.Time `db:"expires_at" json:"expires_at,omitempty"`
}

// PromoRedemption records that a user redeemed a code. A (user, code) pair
// redeems at most once; rows are never mutated or deleted.
type PromoRedemption struct {
	UserID         string    `db:"user_id" json:"user_id"`
	Code           string    `db:"code" json:"code"`
	CreditsAwarded int       `db:"credits_awarded" json:"credits_awarded"`
	RedeemedAt     time.Time `db:"redeemed_at" json:"redeemed_at"`
}
