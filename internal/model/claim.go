package model

import "time"

// ClaimStatus represents the processing state of an insurance claim.
type ClaimStatus string

const (
	ClaimPending  ClaimStatus = "pending"
	ClaimApproved ClaimStatus = "approved"
	ClaimRejected ClaimStatus = "rejected"
	ClaimPaid     ClaimStatus = "paid"
)

// Claim is a payout request filed against a policy.
//
// Fields:
//  ID                 – primary key identifier.
//  UserID             – claimant.
//  PolicyID           – policy the claim is filed against.
//  PayoutType         – lump_sum, installments or custom.
//  Status             – pending, approved, rejected or paid.
//  VerificationMethod – world_id, oracle or community.
//  Amount             – requested payout.
//  SubmittedAt        – filing timestamp.
type Claim struct {
	ID                 string      `json:"id"`                 // claims.id
	UserID             string      `json:"userId"`             // claims.user_id
	PolicyID           string      `json:"policyId"`           // claims.policy_id
	PayoutType         string      `json:"payoutType"`         // claims.payout_type
	Status             ClaimStatus `json:"status"`             // claims.status
	VerificationMethod string      `json:"verificationMethod"` // claims.verification_method
	Amount             string      `json:"amount"`             // claims.amount
	SubmittedAt        time.Time   `json:"submittedAt"`        // claims.submitted_at
}
