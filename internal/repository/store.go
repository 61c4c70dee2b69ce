package repository

import (
	"context"

	"github.com/iliyamo/ursol-insurance/internal/model"
)

// Store is the keyed repository behind every API operation. All list
// methods are filtered by the owning user. Create methods fill in ID and
// timestamp fields that are left empty by the caller.
type Store interface {
	GetUser(ctx context.Context, id string) (model.User, error)
	GetUserByAddress(ctx context.Context, address string) (model.User, error)
	CreateUser(ctx context.Context, u *model.User) error
	UpdateUserBalance(ctx context.Context, id, balance string) (model.User, error)
	SetUserVerified(ctx context.Context, id string, verified bool) error

	ListPolicies(ctx context.Context, userID string) ([]model.Policy, error)
	GetPolicy(ctx context.Context, id string) (model.Policy, error)
	// CreatePolicy returns ErrConflict when the token id is already taken.
	CreatePolicy(ctx context.Context, p *model.Policy) error

	ListStakingPositions(ctx context.Context, userID string) ([]model.StakingPosition, error)
	GetStakingPosition(ctx context.Context, id string) (model.StakingPosition, error)
	CreateStakingPosition(ctx context.Context, s *model.StakingPosition) error
	UpdatePendingRewards(ctx context.Context, id, rewards string) (model.StakingPosition, error)

	ListLoans(ctx context.Context, userID string) ([]model.Loan, error)
	CreateLoan(ctx context.Context, l *model.Loan) error

	// GetBeneficiary returns the single beneficiary record of a user.
	GetBeneficiary(ctx context.Context, userID string) (model.Beneficiary, error)
	// PutBeneficiary replaces the user's record, keeping its id and
	// creation time when one already exists.
	PutBeneficiary(ctx context.Context, b *model.Beneficiary) error

	ListClaims(ctx context.Context, userID string) ([]model.Claim, error)
	CreateClaim(ctx context.Context, c *model.Claim) error

	// ListActivities returns the user's activities, newest first.
	ListActivities(ctx context.Context, userID string) ([]model.Activity, error)
	CreateActivity(ctx context.Context, a *model.Activity) error

	// ListPayments returns the user's payments, newest first.
	ListPayments(ctx context.Context, userID string) ([]model.Payment, error)
	GetPaymentByReference(ctx context.Context, reference string) (model.Payment, error)
	// CreatePayment returns ErrConflict when the reference is already used.
	CreatePayment(ctx context.Context, p *model.Payment) error
	// UpdatePayment overwrites the mutable fields of a payment (status,
	// transaction id, ledger hash, completion time). The reference is
	// never changed.
	UpdatePayment(ctx context.Context, p model.Payment) error
	// CompletePayment stores the completed payment and its activity as a
	// single step, only if the stored payment is still pending. Otherwise
	// it returns ErrNotPending and writes nothing.
	CompletePayment(ctx context.Context, p model.Payment, a *model.Activity) error
}
