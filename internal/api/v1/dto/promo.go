package dto

// PromoRedeemRequest carries the code a user wants to redeem.
type PromoRedeemRequest struct {
	Code string `json:"code" validate:"required,min=3,max=32"`
}

// PromoRedeemResponse reports the outcome of a redemption attempt.
type PromoRedeemResponse struct {
	Success bool   `json:"success"`
	Credits int    `json:"credits,omitempty"`
	Message string `json:"message"`
}
