package model

import "time"

// Loan is a borrow position opened against one of the user's policies.
type Loan struct {
	ID               string    `json:"id"`               // loans.id
	UserID           string    `json:"userId"`           // loans.user_id
	PolicyID         string    `json:"policyId"`         // loans.policy_id
	Amount           string    `json:"amount"`           // loans.amount
	InterestRate     string    `json:"interestRate"`     // loans.interest_rate
	HealthFactor     string    `json:"healthFactor"`     // loans.health_factor
	LiquidationRatio string    `json:"liquidationRatio"` // loans.liquidation_ratio
	IsActive         bool      `json:"isActive"`         // loans.is_active
	CreatedAt        time.Time `json:"createdAt"`        // loans.created_at
}
