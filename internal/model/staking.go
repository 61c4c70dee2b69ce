package model

import "time"

// StakingType identifies the pool a position is staked in.
type StakingType string

const (
	StakingInsurancePool StakingType = "insurance_pool"
	StakingRewards       StakingType = "rewards"
)

// StakingPosition records tokens a user locked into a pool. PendingRewards
// accrue until claimed and are reset to "0" by a claim.
//
// Fields:
//  ID             – primary key identifier.
//  UserID         – owner of the position.
//  Type           – insurance_pool or rewards.
//  Amount         – staked amount.
//  APY            – annual percentage yield.
//  PendingRewards – rewards accrued and not yet claimed.
//  LockPeriod     – lock period in days.
//  CreatedAt      – creation timestamp.
type StakingPosition struct {
	ID             string      `json:"id"`             // staking_positions.id
	UserID         string      `json:"userId"`         // staking_positions.user_id
	Type           StakingType `json:"type"`           // staking_positions.type
	Amount         string      `json:"amount"`         // staking_positions.amount
	APY            string      `json:"apy"`            // staking_positions.apy
	PendingRewards string      `json:"pendingRewards"` // staking_positions.pending_rewards
	LockPeriod     int         `json:"lockPeriod"`     // staking_positions.lock_period
	CreatedAt      time.Time   `json:"createdAt"`      // staking_positions.created_at
}
