package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/iliyamo/ursol-insurance/internal/apperror"
	"github.com/iliyamo/ursol-insurance/internal/ledger"
	"github.com/iliyamo/ursol-insurance/internal/metrics"
	"github.com/iliyamo/ursol-insurance/internal/model"
	"github.com/iliyamo/ursol-insurance/internal/repository"
	"github.com/iliyamo/ursol-insurance/internal/utils"
	"github.com/iliyamo/ursol-insurance/internal/worldcoin"
)

// TransactionVerifier looks up a payment on the external payment rail.
type TransactionVerifier interface {
	TransactionConfigured() bool
	GetTransaction(ctx context.Context, transactionID string) (worldcoin.Transaction, error)
}

// Payments initiates payments and reconciles client confirmations against
// the stored record, the external rail and the ledger.
type Payments struct {
	store    repository.Store
	locks    Locker
	verifier TransactionVerifier
	ledger   ledger.Service
	treasury string
	log      *slog.Logger
	now      func() time.Time
}

// NewPayments wires the payment service. Transfers are simulated towards
// treasury.
func NewPayments(store repository.Store, locks Locker, verifier TransactionVerifier, l ledger.Service, treasury string, log *slog.Logger) *Payments {
	return &Payments{
		store:    store,
		locks:    locks,
		verifier: verifier,
		ledger:   l,
		treasury: treasury,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// InitiateInput is the body of a payment initiation.
type InitiateInput struct {
	Type              string `json:"type" validate:"omitempty,oneof=premium claim_payout loan_repayment"`
	Amount            string `json:"amount" validate:"omitempty,decimal"`
	Currency          string `json:"currency" validate:"omitempty,oneof=USDC USDCE WLD usdc usdce wld"`
	Description       string `json:"description" validate:"max=256"`
	RelatedEntityID   string `json:"relatedEntityId" validate:"required_with=RelatedEntityType"`
	RelatedEntityType string `json:"relatedEntityType" validate:"omitempty,oneof=policy loan claim"`
}

// Initiate records a pending payment under a fresh reference. Type
// defaults to premium, amount to 0 and currency to USDC.
func (s *Payments) Initiate(ctx context.Context, userID string, in InitiateInput) (model.Payment, error) {
	return s.initiate(ctx, userID, in, "USDC", false)
}

// InitiateLegacy behaves like Initiate but defaults the currency to USDCE,
// keeps the related entity and records a "Payment initiated" activity.
func (s *Payments) InitiateLegacy(ctx context.Context, userID string, in InitiateInput) (model.Payment, error) {
	return s.initiate(ctx, userID, in, "USDCE", true)
}

func (s *Payments) initiate(ctx context.Context, userID string, in InitiateInput, defCurrency string, withActivity bool) (model.Payment, error) {
	var msgs []string
	typ := firstNonEmpty(in.Type, "premium")
	switch typ {
	case "premium", "claim_payout", "loan_repayment":
	default:
		msgs = append(msgs, "type: must be one of premium, claim_payout, loan_repayment")
	}
	amount, err := utils.ParseAmount(firstNonEmpty(in.Amount, "0"))
	if err != nil || amount.IsNegative() {
		msgs = append(msgs, "amount: must be a non-negative number")
	}
	currency := strings.ToUpper(firstNonEmpty(in.Currency, defCurrency))
	switch currency {
	case "USDC", "USDCE", "WLD":
	default:
		msgs = append(msgs, "currency: must be one of USDC, USDCE, WLD")
	}
	if in.RelatedEntityType != "" {
		switch in.RelatedEntityType {
		case "policy", "loan", "claim":
		default:
			msgs = append(msgs, "relatedEntityType: must be one of policy, loan, claim")
		}
		if in.RelatedEntityID == "" {
			msgs = append(msgs, "relatedEntityId: required with relatedEntityType")
		}
	}
	if len(msgs) > 0 {
		return model.Payment{}, apperror.Validation(msgs...)
	}

	p := model.Payment{
		UserID:   userID,
		Type:     typ,
		Amount:   amount.String(),
		Currency: currency,
		Status:   model.PaymentPending,
	}
	if withActivity {
		p.RelatedEntityID, p.RelatedEntityType = in.RelatedEntityID, in.RelatedEntityType
	}
	// A collision of 128 random bits is not expected; the retry only keeps
	// the unique key honest.
	for i := 0; ; i++ {
		p.ID, p.Reference = "", utils.NewPaymentReference()
		err := s.store.CreatePayment(ctx, &p)
		if err == nil {
			break
		}
		if !errors.Is(err, repository.ErrConflict) || i == 2 {
			return model.Payment{}, storeErr(err, "Payment")
		}
	}
	s.log.InfoContext(ctx, "payment initiated", "reference", p.Reference, "amount", p.Amount, "currency", p.Currency)

	if withActivity {
		if err := s.store.CreateActivity(ctx, &model.Activity{
			UserID:      userID,
			Type:        model.ActivityPremiumPayment,
			Description: fmt.Sprintf("Payment initiated: %s %s (%s)", p.Amount, p.Currency, p.Reference),
			Amount:      p.Amount,
		}); err != nil {
			return model.Payment{}, storeErr(err, "Activity")
		}
	}
	return p, nil
}

// ConfirmPayload is the part of the client's completion payload the
// reconciliation reads. The full payload is echoed back untouched.
type ConfirmPayload struct {
	Reference     string `json:"reference"`
	TransactionID string `json:"transaction_id"`
	Sender        string `json:"sender"`
	From          string `json:"from"`
}

// ConfirmResult is the outcome of a successful confirmation.
type ConfirmResult struct {
	Payment          model.Payment
	Transaction      json.RawMessage
	AlreadyCompleted bool
}

// Confirm reconciles a completion payload with the payment it references.
// The steps run in order and each one must pass before the next:
//
//  1. the payment is looked up by reference (NotFound),
//  2. the payload reference must equal the stored one (ReferenceMismatch),
//  3. under the payment lock, a completed payment is returned as is and a
//     failed or cancelled one is refused (Conflict),
//  4. when a transaction id is present and credentials are configured, the
//     rail must report the same reference and a status other than failed
//     (ExternalVerificationFailed, VerificationMismatch),
//  5. a ledger transfer is simulated and looked up; its errors are logged,
//  6. the payment is completed together with one payment activity, provided
//     the store still holds it as pending; otherwise step 3 applies.
func (s *Payments) Confirm(ctx context.Context, userID string, raw json.RawMessage) (ConfirmResult, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return ConfirmResult{}, apperror.Validation("Missing payload in request body")
	}
	var pl ConfirmPayload
	if err := json.Unmarshal(trimmed, &pl); err != nil {
		return ConfirmResult{}, apperror.Validation("Invalid payload")
	}
	if pl.Reference == "" {
		return ConfirmResult{}, apperror.Validation("Missing reference in payload")
	}
	log := s.log.With("reference", pl.Reference)

	p, err := s.store.GetPaymentByReference(ctx, pl.Reference)
	if errors.Is(err, repository.ErrNotFound) || (err == nil && p.UserID != userID) {
		metrics.RecordConfirmation("not_found")
		return ConfirmResult{}, apperror.NotFound("Payment record")
	}
	if err != nil {
		return ConfirmResult{}, storeErr(err, "Payment")
	}
	if pl.Reference != p.Reference {
		metrics.RecordConfirmation("reference_mismatch")
		return ConfirmResult{}, apperror.ReferenceMismatch(pl.Reference, p.Reference)
	}

	unlock, err := s.locks.Lock(ctx, paymentKey(p.Reference))
	if err != nil {
		return ConfirmResult{}, apperror.Internal("acquire payment lock", err)
	}
	defer unlock()

	// Re-read under the lock so a concurrent confirmation is observed.
	p, err = s.store.GetPaymentByReference(ctx, pl.Reference)
	if err != nil {
		return ConfirmResult{}, storeErr(err, "Payment")
	}
	switch p.Status {
	case model.PaymentCompleted:
		metrics.RecordConfirmation("already_completed")
		log.InfoContext(ctx, "payment already completed")
		return ConfirmResult{Payment: p, Transaction: trimmed, AlreadyCompleted: true}, nil
	case model.PaymentFailed, model.PaymentCancelled:
		metrics.RecordConfirmation("rejected_" + string(p.Status))
		return ConfirmResult{}, apperror.Conflict(fmt.Sprintf("Payment is %s", p.Status))
	}

	if err := s.verifyExternally(ctx, log, &p, pl); err != nil {
		return ConfirmResult{}, err
	}
	s.corroborate(ctx, log, &p, pl)

	now := s.now()
	p.Status = model.PaymentCompleted
	p.CompletedAt = &now
	if pl.TransactionID != "" {
		p.TransactionID = pl.TransactionID
	}
	act := &model.Activity{
		UserID:      p.UserID,
		Type:        model.ActivityPremiumPayment,
		Description: fmt.Sprintf("Payment completed: %s %s (%s)", p.Amount, p.Currency, p.Reference),
		Amount:      p.Amount,
	}
	if err := s.store.CompletePayment(ctx, p, act); errors.Is(err, repository.ErrNotPending) {
		// Another confirmation settled the payment after the lock lease ran out.
		return s.settled(ctx, log, pl.Reference, trimmed)
	} else if err != nil {
		return ConfirmResult{}, storeErr(err, "Payment")
	}
	metrics.RecordConfirmation("completed")
	log.InfoContext(ctx, "payment confirmed", "amount", p.Amount, "currency", p.Currency, "ledger_tx", p.LedgerTxHash)
	return ConfirmResult{Payment: p, Transaction: trimmed}, nil
}

// settled reports a payment that left the pending state concurrently.
func (s *Payments) settled(ctx context.Context, log *slog.Logger, reference string, trimmed json.RawMessage) (ConfirmResult, error) {
	p, err := s.store.GetPaymentByReference(ctx, reference)
	if err != nil {
		return ConfirmResult{}, storeErr(err, "Payment")
	}
	if p.Status != model.PaymentCompleted {
		metrics.RecordConfirmation("rejected_" + string(p.Status))
		return ConfirmResult{}, apperror.Conflict(fmt.Sprintf("Payment is %s", p.Status))
	}
	metrics.RecordConfirmation("already_completed")
	log.InfoContext(ctx, "payment completed concurrently")
	return ConfirmResult{Payment: p, Transaction: trimmed, AlreadyCompleted: true}, nil
}

// verifyExternally checks the transaction with the payment rail. It is
// skipped without a transaction id or without credentials.
func (s *Payments) verifyExternally(ctx context.Context, log *slog.Logger, p *model.Payment, pl ConfirmPayload) error {
	if pl.TransactionID == "" {
		log.InfoContext(ctx, "no transaction id, skipping external verification")
		return nil
	}
	if s.verifier == nil || !s.verifier.TransactionConfigured() {
		log.InfoContext(ctx, "verification credentials missing, skipping external verification")
		return nil
	}

	tx, err := s.verifier.GetTransaction(ctx, pl.TransactionID)
	if errors.Is(err, worldcoin.ErrNotConfigured) {
		log.InfoContext(ctx, "verification credentials missing, skipping external verification")
		return nil
	}
	if err != nil {
		metrics.RecordConfirmation("verification_unavailable")
		log.WarnContext(ctx, "external verification failed", "error", err)
		return apperror.ExternalVerificationFailed(err)
	}

	referenceMatch := tx.Reference == p.Reference
	status := tx.Status()
	if referenceMatch && status != "failed" {
		return nil
	}
	metrics.RecordConfirmation("verification_mismatch")
	log.WarnContext(ctx, "external verification mismatch", "reported_reference", tx.Reference, "status", status)

	// The rail reported a failed transfer for this very payment: record it.
	if referenceMatch && status == "failed" {
		p.Status = model.PaymentFailed
		p.TransactionID = pl.TransactionID
		if err := s.store.UpdatePayment(ctx, *p); err != nil {
			log.ErrorContext(ctx, "mark payment failed", "error", err)
		}
	}
	return apperror.VerificationMismatch(referenceMatch, status)
}

// corroborate records the ledger's view of the payment. Failures are
// advisory and only logged.
func (s *Payments) corroborate(ctx context.Context, log *slog.Logger, p *model.Payment, pl ConfirmPayload) {
	if s.ledger == nil {
		return
	}
	sender := firstNonEmpty(pl.Sender, firstNonEmpty(pl.From, ledger.ZeroAddress))
	if _, err := s.ledger.SimulateTransfer(ctx, ledger.TransferEvent{
		Reference: p.Reference,
		From:      sender,
		To:        s.treasury,
		Token:     ledger.TokenAddress(p.Currency),
		Amount:    p.Amount,
		Currency:  p.Currency,
	}); err != nil {
		log.WarnContext(ctx, "ledger transfer simulation failed", "error", err)
		return
	}
	v, err := s.ledger.VerifyByReference(ctx, p.Reference)
	switch {
	case err != nil:
		log.WarnContext(ctx, "ledger verification failed", "error", err)
	case !v.Found:
		log.WarnContext(ctx, "ledger transfer not found")
	default:
		p.LedgerTxHash = v.Event.TxHash
	}
}

// ListPayments returns the user's payments, newest first.
func (s *Payments) ListPayments(ctx context.Context, userID string) ([]model.Payment, error) {
	out, err := s.store.ListPayments(ctx, userID)
	if err != nil {
		return nil, storeErr(err, "Payment")
	}
	return out, nil
}
