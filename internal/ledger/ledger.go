// Package ledger simulates the on-chain side of a payment. Transfers are
// recorded in memory, optionally published to RabbitMQ, and consumed into a
// rotating audit log.
package ledger

import (
	"context"
	"errors"
	"strings"
	"time"
)

// ZeroAddress is used as the sender when a confirmation carries none.
const ZeroAddress = "0x0000000000000000000000000000000000000000"

// Token contract addresses used for simulated transfers.
const (
	USDCAddress  = "0xA0b86a33E6441b4c2b3Eb0e25e9b3F9b5d4F8A4B"
	USDCEAddress = "0x163F8C2467924BE0AE7B5347228CABF260318753"
)

// ErrNoReference is returned when a transfer is submitted without the
// payment reference it belongs to.
var ErrNoReference = errors.New("ledger: transfer has no reference")

// TransferEvent is a token transfer observed on the ledger for a payment.
type TransferEvent struct {
	Reference   string    `json:"reference"`
	From        string    `json:"from"`
	To          string    `json:"to"`
	Token       string    `json:"token"`
	Amount      string    `json:"amount"`
	Currency    string    `json:"currency"`
	TxHash      string    `json:"tx_hash"`
	BlockNumber uint64    `json:"block_number"`
	ObservedAt  time.Time `json:"observed_at"`
}

// Verification is the answer to a lookup by payment reference.
type Verification struct {
	Found bool
	Event TransferEvent
}

// Service is the ledger capability used by payment confirmation.
type Service interface {
	// SimulateTransfer records a transfer and returns it with its tx hash
	// and block number filled in.
	SimulateTransfer(ctx context.Context, ev TransferEvent) (TransferEvent, error)
	// VerifyByReference looks up the transfer recorded for a reference.
	VerifyByReference(ctx context.Context, reference string) (Verification, error)
}

// TokenAddress maps a currency symbol to the token contract it settles in.
// Anything other than USDC settles in the bridged USDC.e contract.
func TokenAddress(currency string) string {
	if strings.EqualFold(currency, "USDC") {
		return USDCAddress
	}
	return USDCEAddress
}
