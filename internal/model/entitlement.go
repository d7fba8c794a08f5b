package model

// DebitSource identifies which quota a permitted generation will consume.
type DebitSource string

const (
	SourceSubscription DebitSource = "subscription"
	SourceFree         DebitSource = "free"
	SourceCredit       DebitSource = "credit"
	SourceNone         DebitSource = "none"
)

// EntitlementDecision is the outcome of the entitlement check for one
// generation request. It is a pure read; debiting happens separately after
// the guarded operation succeeds.
type EntitlementDecision struct {
	Allowed          bool        `json:"allowed"`
	Source           DebitSource `json:"source"`
	Unlimited        bool        `json:"unlimited"`
	PlanType         string      `json:"plan_type"`
	RemainingFree    int         `json:"remaining_free"`
	RemainingCredits int         `json:"remaining_credits"`
	FreeAllowance    int         `json:"free_allowance"`
}
