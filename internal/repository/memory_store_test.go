package repository

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/ursol-insurance/internal/model"
)

func seeded(t *testing.T) *MemoryStore {
	t.Helper()
	s := NewMemoryStore()
	require.NoError(t, Seed(context.Background(), s, time.Now().UTC()))
	return s
}

func TestSeedIsIdempotent(t *testing.T) {
	s := seeded(t)
	ctx := context.Background()
	require.NoError(t, Seed(ctx, s, time.Now().UTC()))

	u, err := s.GetUser(ctx, DemoUserID)
	require.NoError(t, err)
	assert.Equal(t, "15750.00", u.UrsolBalance)
	assert.True(t, u.IsWorldIDVerified)

	policies, _ := s.ListPolicies(ctx, DemoUserID)
	assert.Len(t, policies, 2)
	acts, _ := s.ListActivities(ctx, DemoUserID)
	assert.Len(t, acts, 4)
}

func TestActivitiesNewestFirst(t *testing.T) {
	s := seeded(t)
	acts, err := s.ListActivities(context.Background(), DemoUserID)
	require.NoError(t, err)
	require.Len(t, acts, 4)
	assert.Equal(t, model.ActivityClaimRewards, acts[0].Type)
	assert.Equal(t, model.ActivityBurn, acts[3].Type)
	for i := 1; i < len(acts); i++ {
		assert.False(t, acts[i].CreatedAt.After(acts[i-1].CreatedAt))
	}
}

func TestListsAreFilteredByOwner(t *testing.T) {
	s := seeded(t)
	ctx := context.Background()

	policies, err := s.ListPolicies(ctx, "someone-else")
	require.NoError(t, err)
	assert.NotNil(t, policies)
	assert.Empty(t, policies)

	loans, _ := s.ListLoans(ctx, DemoUserID)
	require.Len(t, loans, 1)
	assert.Equal(t, "policy-2", loans[0].PolicyID)
}

func TestCreatePolicyRejectsDuplicateToken(t *testing.T) {
	s := seeded(t)
	err := s.CreatePolicy(context.Background(), &model.Policy{UserID: DemoUserID, TokenID: 1247, Tier: model.TierBasic})
	assert.ErrorIs(t, err, ErrConflict)
}

func TestCreateFillsIDAndTimestamp(t *testing.T) {
	s := NewMemoryStore()
	c := &model.Claim{UserID: "u1", PolicyID: "p1", Status: model.ClaimPending, Amount: "10"}
	require.NoError(t, s.CreateClaim(context.Background(), c))
	assert.NotEmpty(t, c.ID)
	assert.False(t, c.SubmittedAt.IsZero())
}

func TestPutBeneficiaryReplacesInPlace(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	first := &model.Beneficiary{UserID: "u1", EncryptedData: "blob-1"}
	require.NoError(t, s.PutBeneficiary(ctx, first))

	second := &model.Beneficiary{UserID: "u1", EncryptedData: "blob-2", OnChainSettings: json.RawMessage(`{"visible":true}`)}
	require.NoError(t, s.PutBeneficiary(ctx, second))

	got, err := s.GetBeneficiary(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)
	assert.Equal(t, first.CreatedAt, got.CreatedAt)
	assert.Equal(t, "blob-2", got.EncryptedData)
	assert.JSONEq(t, `{"visible":true}`, string(got.OnChainSettings))

	_, err = s.GetBeneficiary(ctx, "u2")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPaymentLifecycle(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	p := &model.Payment{UserID: "u1", Reference: "abc", Type: "premium", Amount: "100", Currency: "USDC", Status: model.PaymentPending}
	require.NoError(t, s.CreatePayment(ctx, p))
	assert.ErrorIs(t, s.CreatePayment(ctx, &model.Payment{Reference: "abc"}), ErrConflict)

	now := time.Now().UTC()
	done := *p
	done.Status = model.PaymentCompleted
	done.CompletedAt = &now
	done.Amount = "999" // not a mutable field
	act := &model.Activity{UserID: "u1", Type: model.ActivityPremiumPayment, Amount: "100"}
	require.NoError(t, s.CompletePayment(ctx, done, act))

	got, err := s.GetPaymentByReference(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, model.PaymentCompleted, got.Status)
	assert.Equal(t, "100", got.Amount)
	require.NotNil(t, got.CompletedAt)

	acts, _ := s.ListActivities(ctx, "u1")
	assert.Len(t, acts, 1)

	missing := done
	missing.Reference = "nope"
	assert.ErrorIs(t, s.CompletePayment(ctx, missing, &model.Activity{UserID: "u1"}), ErrNotFound)
	acts, _ = s.ListActivities(ctx, "u1")
	assert.Len(t, acts, 1)
}

func TestCompletePaymentOnlyOnce(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	p := &model.Payment{UserID: "u1", Reference: "abc", Type: "premium", Amount: "100", Currency: "USDC", Status: model.PaymentPending}
	require.NoError(t, s.CreatePayment(ctx, p))

	now := time.Now().UTC()
	done := *p
	done.Status = model.PaymentCompleted
	done.CompletedAt = &now
	done.TransactionID = "tx-1"
	require.NoError(t, s.CompletePayment(ctx, done, &model.Activity{UserID: "u1", Amount: "100"}))

	again := done
	again.TransactionID = "tx-2"
	assert.ErrorIs(t, s.CompletePayment(ctx, again, &model.Activity{UserID: "u1", Amount: "100"}), ErrNotPending)

	got, err := s.GetPaymentByReference(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, "tx-1", got.TransactionID)
	acts, _ := s.ListActivities(ctx, "u1")
	assert.Len(t, acts, 1)

	failed := &model.Payment{UserID: "u1", Reference: "def", Type: "premium", Amount: "5", Currency: "USDC", Status: model.PaymentFailed}
	require.NoError(t, s.CreatePayment(ctx, failed))
	done.Reference = "def"
	assert.ErrorIs(t, s.CompletePayment(ctx, done, &model.Activity{UserID: "u1"}), ErrNotPending)
}

func TestUpdatePendingRewards(t *testing.T) {
	s := seeded(t)
	sp, err := s.UpdatePendingRewards(context.Background(), "stake-1", "0")
	require.NoError(t, err)
	assert.Equal(t, "0", sp.PendingRewards)

	_, err = s.UpdatePendingRewards(context.Background(), "missing", "0")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetUserByAddressIgnoresCase(t *testing.T) {
	s := seeded(t)
	u, err := s.GetUserByAddress(context.Background(), "0x742D35CC6639C0532FEA175B7B6C7B50F5F3A8F8")
	require.NoError(t, err)
	assert.Equal(t, DemoUserID, u.ID)
}
