package model

import "time"

// CreditPackage is a prepaid, decrementable generation allowance. Packages are
// never deleted; an exhausted package simply drops out of debit selection.
type CreditPackage struct {
	ID               string    `db:"id" json:"id"`
	UserID           string    `db:"user_id" json:"user_id"`
	CreditsPurchased int       `db:"credits_purchased" json:"credits_purchased"`
	CreditsRemaining int       `db:"credits_remaining" json:"credits_remaining"`
	SourceRef        string    `db:"source_ref" json:"source_ref"`
	AcquiredAt       time.Time `db:"acquired_at" json:"acquired_at"`
}
