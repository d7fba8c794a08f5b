package dto

// UsageResponse reports how many generations the caller has left. For
// unlimited subscribers, remaining and total carry the -1 sentinel: the
// client renders "unlimited", it is not an error value.
type UsageResponse struct {
	Remaining       int     `json:"remaining"`
	Total           int     `json:"total"`
	IsUnlimited     bool    `json:"isUnlimited"`
	FreeRemaining   *int    `json:"freeRemaining,omitempty"`
	PaidCredits     *int    `json:"paidCredits,omitempty"`
	PlanType        *string `json:"planType,omitempty"`
	IsAuthenticated bool    `json:"isAuthenticated"`
}
