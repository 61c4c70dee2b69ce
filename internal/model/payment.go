package model

import "time"

// PaymentStatus tracks a payment from initiation to settlement.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
	PaymentCancelled PaymentStatus = "cancelled"
)

// Payment records a payment initiated by the server and later confirmed by
// the client. Reference is generated once at initiation, never changes and
// is the only key used to match a confirmation payload to this record.
//
// Fields:
//  ID                – primary key identifier.
//  UserID            – payer.
//  Reference         – externally visible payment reference (32 hex chars).
//  Type              – premium, claim_payout or loan_repayment.
//  Amount            – payment amount.
//  Currency          – token symbol (USDC, USDCE, WLD).
//  Status            – pending, completed, failed or cancelled.
//  RelatedEntityID   – optional linked policy, loan or claim id.
//  RelatedEntityType – type of the linked entity.
//  TransactionID     – external transaction id reported at confirmation.
//  LedgerTxHash      – tx hash observed on the ledger during confirmation.
//  CreatedAt         – initiation timestamp.
//  CompletedAt       – settlement timestamp (nullable).
type Payment struct {
	ID                string        `json:"id"`                          // payments.id
	UserID            string        `json:"userId"`                      // payments.user_id
	Reference         string        `json:"paymentId"`                   // payments.payment_id
	Type              string        `json:"type"`                        // payments.type
	Amount            string        `json:"amount"`                      // payments.amount
	Currency          string        `json:"currency"`                    // payments.currency
	Status            PaymentStatus `json:"status"`                      // payments.status
	RelatedEntityID   string        `json:"relatedEntityId,omitempty"`   // payments.related_entity_id
	RelatedEntityType string        `json:"relatedEntityType,omitempty"` // payments.related_entity_type
	TransactionID     string        `json:"transactionId,omitempty"`     // payments.transaction_id
	LedgerTxHash      string        `json:"ledgerTxHash,omitempty"`      // payments.ledger_tx_hash
	CreatedAt         time.Time     `json:"createdAt"`                   // payments.created_at
	CompletedAt       *time.Time    `json:"completedAt"`                 // payments.completed_at (nullable)
}
