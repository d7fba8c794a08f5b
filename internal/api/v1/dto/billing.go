package dto

// CheckoutRequest selects what the checkout session sells: a subscription
// plan or the one-off credit pack.
type CheckoutRequest struct {
	Plan string `json:"plan" validate:"required,oneof=monthly yearly credits"`
}
