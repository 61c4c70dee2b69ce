package model

import "time"

// Activity types written by the service layer. Type is free-form on the
// wire; these are the values the server itself produces.
const (
	ActivityBurn           = "burn"
	ActivityStake          = "stake"
	ActivityClaimRewards   = "claim_rewards"
	ActivityBorrow         = "borrow"
	ActivityClaimSubmitted = "claim_submitted"
	ActivityPremiumPayment = "premium_payment"
	ActivityVerification   = "verification"
)

// Activity is an append-only, human-readable event in a user's history.
type Activity struct {
	ID          string    `json:"id"`               // activities.id
	UserID      string    `json:"userId"`           // activities.user_id
	Type        string    `json:"type"`             // activities.type
	Description string    `json:"description"`      // activities.description
	Amount      string    `json:"amount,omitempty"` // activities.amount (nullable)
	CreatedAt   time.Time `json:"createdAt"`        // activities.created_at
}
