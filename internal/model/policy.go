package model

import "time"

// Tier identifies an insurance policy level.
type Tier string

const (
	TierBasic      Tier = "basic"
	TierPremium    Tier = "premium"
	TierPremiumUrn Tier = "premium_urn"
)

// Policy is an NFT-backed insurance policy minted for a user. TokenID is
// unique across all policies. Policies are never deleted.
//
// Fields:
//  ID             – primary key identifier.
//  UserID         – owner of the policy.
//  TokenID        – unique NFT token id.
//  Tier           – basic, premium or premium_urn.
//  CoverageAmount – insured amount.
//  MonthlyPremium – premium due every month.
//  StakingBonus   – staking bonus in percent.
//  IsActive       – whether the policy is in force.
//  NextPremiumDue – when the next premium is due (nullable).
//  CreatedAt      – mint timestamp.
type Policy struct {
	ID             string     `json:"id"`             // policies.id
	UserID         string     `json:"userId"`         // policies.user_id
	TokenID        int        `json:"tokenId"`        // policies.token_id
	Tier           Tier       `json:"tier"`           // policies.tier
	CoverageAmount string     `json:"coverageAmount"` // policies.coverage_amount
	MonthlyPremium string     `json:"monthlyPremium"` // policies.monthly_premium
	StakingBonus   int        `json:"stakingBonus"`   // policies.staking_bonus
	IsActive       bool       `json:"isActive"`       // policies.is_active
	NextPremiumDue *time.Time `json:"nextPremiumDue"` // policies.next_premium_due (nullable)
	CreatedAt      time.Time  `json:"createdAt"`      // policies.created_at
}

// TierInfo describes a purchasable tier for the policy catalog.
type TierInfo struct {
	Tier           Tier     `json:"tier"`
	Title          string   `json:"title"`
	CoverageAmount string   `json:"coverageAmount"`
	MonthlyPremium string   `json:"monthlyPremium"`
	StakingBonus   int      `json:"stakingBonus"`
	Features       []string `json:"features"`
}

// Tiers is the static catalog of policy tiers offered to users.
var Tiers = []TierInfo{
	{
		Tier:           TierBasic,
		Title:          "Basic Policy",
		CoverageAmount: "50000",
		MonthlyPremium: "25",
		StakingBonus:   5,
		Features:       []string{"Basic coverage", "Standard claim processing", "Community support"},
	},
	{
		Tier:           TierPremium,
		Title:          "Premium Policy",
		CoverageAmount: "150000",
		MonthlyPremium: "65",
		StakingBonus:   10,
		Features:       []string{"Extended coverage", "Priority claim processing", "Encrypted beneficiary vault"},
	},
	{
		Tier:           TierPremiumUrn,
		Title:          "Premium+Urn",
		CoverageAmount: "500000",
		MonthlyPremium: "180",
		StakingBonus:   20,
		Features:       []string{"All Premium features", "Memorial urn NFT", "Dedicated claim agent"},
	},
}
