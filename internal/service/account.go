package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/ursol-insurance/internal/apperror"
	"github.com/iliyamo/ursol-insurance/internal/model"
	"github.com/iliyamo/ursol-insurance/internal/repository"
	"github.com/iliyamo/ursol-insurance/internal/utils"
)

// burnRate is the share of coverage burned when a policy is minted.
var burnRate = decimal.RequireFromString("0.05")

// Accounts implements the balance-affecting operations of a user: policy
// minting, staking, reward claims, borrowing, and the record-only claim and
// beneficiary writes. Each balance-affecting call writes exactly one
// activity with the amount it moved.
type Accounts struct {
	store repository.Store
	locks Locker
	log   *slog.Logger
	now   func() time.Time
	token func() int
}

// NewAccounts wires the account service.
func NewAccounts(store repository.Store, locks Locker, log *slog.Logger) *Accounts {
	return &Accounts{
		store: store,
		locks: locks,
		log:   log,
		now:   func() time.Time { return time.Now().UTC() },
		token: func() int { return 1000 + rand.IntN(10000) },
	}
}

// GetUser returns the profile of userID.
func (a *Accounts) GetUser(ctx context.Context, userID string) (model.User, error) {
	u, err := a.store.GetUser(ctx, userID)
	if err != nil {
		return model.User{}, storeErr(err, "User")
	}
	return u, nil
}

// BalanceInput is the body of a balance update.
type BalanceInput struct {
	Amount    string `json:"amount" validate:"required,decimal"`
	Operation string `json:"operation" validate:"required,oneof=add subtract set"`
}

// UpdateBalance applies add, subtract (floored at zero) or set to the
// user's balance and returns the updated user.
func (a *Accounts) UpdateBalance(ctx context.Context, userID string, in BalanceInput) (model.User, error) {
	amount, err := utils.ParseAmount(in.Amount)
	if err != nil {
		return model.User{}, apperror.Validation("amount: must be a valid number")
	}
	var op func(cur decimal.Decimal) decimal.Decimal
	switch in.Operation {
	case "add":
		op = func(cur decimal.Decimal) decimal.Decimal { return cur.Add(amount) }
	case "subtract":
		op = func(cur decimal.Decimal) decimal.Decimal { return utils.ClampZero(cur.Sub(amount)) }
	case "set":
		op = func(decimal.Decimal) decimal.Decimal { return amount }
	default:
		return model.User{}, apperror.Validation("operation: must be one of add, subtract, set")
	}

	unlock, err := a.locks.Lock(ctx, userKey(userID))
	if err != nil {
		return model.User{}, apperror.Internal("acquire user lock", err)
	}
	defer unlock()
	return a.applyBalance(ctx, userID, op)
}

// applyBalance runs a read-modify-write on the balance. The caller holds the
// user lock.
func (a *Accounts) applyBalance(ctx context.Context, userID string, op func(decimal.Decimal) decimal.Decimal) (model.User, error) {
	u, err := a.store.GetUser(ctx, userID)
	if err != nil {
		return model.User{}, storeErr(err, "User")
	}
	cur, err := utils.ParseAmount(u.UrsolBalance)
	if err != nil {
		cur = decimal.Zero
	}
	updated, err := a.store.UpdateUserBalance(ctx, userID, op(cur).StringFixed(2))
	if err != nil {
		return model.User{}, storeErr(err, "User")
	}
	return updated, nil
}

// MintInput describes a policy purchase. Coverage and premium default to
// the tier's catalog values.
type MintInput struct {
	Tier           model.Tier `json:"tier" validate:"required,oneof=basic premium premium_urn"`
	CoverageAmount string     `json:"coverageAmount" validate:"omitempty,decimal"`
	MonthlyPremium string     `json:"monthlyPremium" validate:"omitempty,decimal"`
	StakingBonus   *int       `json:"stakingBonus" validate:"omitempty,min=0,max=100"`
}

// MintPolicy creates a policy with a fresh token id, burns 5% of its
// coverage from the user's balance and records one burn activity.
func (a *Accounts) MintPolicy(ctx context.Context, userID string, in MintInput) (model.Policy, error) {
	info, ok := tierInfo(in.Tier)
	if !ok {
		return model.Policy{}, apperror.Validation("tier: must be one of basic, premium, premium_urn")
	}
	coverage, err := amountOr(in.CoverageAmount, info.CoverageAmount, "coverageAmount")
	if err != nil {
		return model.Policy{}, err
	}
	premium, err := amountOr(in.MonthlyPremium, info.MonthlyPremium, "monthlyPremium")
	if err != nil {
		return model.Policy{}, err
	}
	bonus := info.StakingBonus
	if in.StakingBonus != nil {
		bonus = *in.StakingBonus
	}
	burn := coverage.Mul(burnRate).StringFixed(2)

	unlock, err := a.locks.Lock(ctx, userKey(userID))
	if err != nil {
		return model.Policy{}, apperror.Internal("acquire user lock", err)
	}
	defer unlock()

	if _, err := a.store.GetUser(ctx, userID); err != nil {
		return model.Policy{}, storeErr(err, "User")
	}

	due := a.now().Add(30 * 24 * time.Hour)
	p := model.Policy{
		UserID:         userID,
		Tier:           in.Tier,
		CoverageAmount: coverage.String(),
		MonthlyPremium: premium.String(),
		StakingBonus:   bonus,
		IsActive:       true,
		NextPremiumDue: &due,
	}
	const attempts = 10
	for i := 0; ; i++ {
		p.ID, p.TokenID = "", a.token()
		err := a.store.CreatePolicy(ctx, &p)
		if err == nil {
			break
		}
		if !errors.Is(err, repository.ErrConflict) || i == attempts-1 {
			return model.Policy{}, storeErr(err, "Policy")
		}
	}

	if err := a.store.CreateActivity(ctx, &model.Activity{
		UserID:      userID,
		Type:        model.ActivityBurn,
		Description: fmt.Sprintf("%s URSOL burned from %s policy purchase", burn, p.Tier),
		Amount:      burn,
	}); err != nil {
		return model.Policy{}, storeErr(err, "Activity")
	}
	burnDec := decimal.RequireFromString(burn)
	if _, err := a.applyBalance(ctx, userID, func(cur decimal.Decimal) decimal.Decimal {
		return utils.ClampZero(cur.Sub(burnDec))
	}); err != nil {
		return model.Policy{}, err
	}
	a.log.InfoContext(ctx, "policy minted", "user_id", userID, "token_id", p.TokenID, "tier", p.Tier, "burned", burn)
	return p, nil
}

// StakeInput opens a staking position.
type StakeInput struct {
	Type       model.StakingType `json:"type" validate:"required,oneof=insurance_pool rewards"`
	Amount     string            `json:"amount" validate:"required,decimal"`
	APY        string            `json:"apy" validate:"omitempty,decimal"`
	LockPeriod *int              `json:"lockPeriod" validate:"omitempty,min=0"`
}

// Stake locks tokens into a pool, debits the balance (floored at zero) and
// records one stake activity.
func (a *Accounts) Stake(ctx context.Context, userID string, in StakeInput) (model.StakingPosition, error) {
	if in.Type != model.StakingInsurancePool && in.Type != model.StakingRewards {
		return model.StakingPosition{}, apperror.Validation("type: must be one of insurance_pool, rewards")
	}
	amount, err := utils.ParseAmount(in.Amount)
	if err != nil || !amount.IsPositive() {
		return model.StakingPosition{}, apperror.Validation("Amount must be greater than 0")
	}
	defaults := poolDefaults(in.Type)
	apy := defaults.apy
	if in.APY != "" {
		apy, err = utils.NormalizeAmount(in.APY)
		if err != nil {
			return model.StakingPosition{}, apperror.Validation("apy: must be a valid number")
		}
	}
	lock := defaults.lockDays
	if in.LockPeriod != nil {
		lock = *in.LockPeriod
	}

	unlock, err := a.locks.Lock(ctx, userKey(userID))
	if err != nil {
		return model.StakingPosition{}, apperror.Internal("acquire user lock", err)
	}
	defer unlock()

	if _, err := a.store.GetUser(ctx, userID); err != nil {
		return model.StakingPosition{}, storeErr(err, "User")
	}
	sp := model.StakingPosition{
		UserID:         userID,
		Type:           in.Type,
		Amount:         amount.String(),
		APY:            apy,
		PendingRewards: "0",
		LockPeriod:     lock,
	}
	if err := a.store.CreateStakingPosition(ctx, &sp); err != nil {
		return model.StakingPosition{}, storeErr(err, "Staking position")
	}
	if err := a.store.CreateActivity(ctx, &model.Activity{
		UserID:      userID,
		Type:        model.ActivityStake,
		Description: fmt.Sprintf("Staked %s URSOL in %s", sp.Amount, humanize(string(sp.Type))),
		Amount:      sp.Amount,
	}); err != nil {
		return model.StakingPosition{}, storeErr(err, "Activity")
	}
	if _, err := a.applyBalance(ctx, userID, func(cur decimal.Decimal) decimal.Decimal {
		return utils.ClampZero(cur.Sub(amount))
	}); err != nil {
		return model.StakingPosition{}, err
	}
	return sp, nil
}

// ClaimRewards zeroes the pending rewards of one of the user's positions,
// credits the claimed amount to the balance once and records one
// claim_rewards activity with that amount.
func (a *Accounts) ClaimRewards(ctx context.Context, userID, positionID string) (model.StakingPosition, error) {
	unlock, err := a.locks.Lock(ctx, userKey(userID))
	if err != nil {
		return model.StakingPosition{}, apperror.Internal("acquire user lock", err)
	}
	defer unlock()

	sp, err := a.store.GetStakingPosition(ctx, positionID)
	if err != nil || sp.UserID != userID {
		if err == nil || errors.Is(err, repository.ErrNotFound) {
			return model.StakingPosition{}, apperror.NotFound("Staking position")
		}
		return model.StakingPosition{}, storeErr(err, "Staking position")
	}
	claimed := sp.PendingRewards
	if claimed == "" {
		claimed = "0"
	}
	claimedDec, err := utils.ParseAmount(claimed)
	if err != nil {
		claimedDec = decimal.Zero
	}

	updated, err := a.store.UpdatePendingRewards(ctx, positionID, "0")
	if err != nil {
		return model.StakingPosition{}, storeErr(err, "Staking position")
	}
	if err := a.store.CreateActivity(ctx, &model.Activity{
		UserID:      userID,
		Type:        model.ActivityClaimRewards,
		Description: fmt.Sprintf("Claimed rewards from %s staking", humanize(string(sp.Type))),
		Amount:      claimed,
	}); err != nil {
		return model.StakingPosition{}, storeErr(err, "Activity")
	}
	if _, err := a.applyBalance(ctx, userID, func(cur decimal.Decimal) decimal.Decimal {
		return cur.Add(claimedDec)
	}); err != nil {
		return model.StakingPosition{}, err
	}
	return updated, nil
}

// BorrowInput opens a loan against one of the user's policies. Rates
// default to the platform's standard terms.
type BorrowInput struct {
	PolicyID         string `json:"policyId" validate:"required"`
	Amount           string `json:"amount" validate:"required,decimal"`
	InterestRate     string `json:"interestRate" validate:"omitempty,decimal"`
	HealthFactor     string `json:"healthFactor" validate:"omitempty,decimal"`
	LiquidationRatio string `json:"liquidationRatio" validate:"omitempty,decimal"`
}

// Borrow records a loan, credits the principal to the balance and records
// one borrow activity. Repayment is not modelled.
func (a *Accounts) Borrow(ctx context.Context, userID string, in BorrowInput) (model.Loan, error) {
	amount, err := utils.ParseAmount(in.Amount)
	if err != nil || !amount.IsPositive() {
		return model.Loan{}, apperror.Validation("Amount must be greater than 0")
	}
	var msgs []string
	rate := firstNonEmpty(in.InterestRate, "8.5")
	health := firstNonEmpty(in.HealthFactor, "2.4")
	ratio := firstNonEmpty(in.LiquidationRatio, "150")
	for _, f := range []struct {
		name string
		v    *string
	}{{"interestRate", &rate}, {"healthFactor", &health}, {"liquidationRatio", &ratio}} {
		n, err := utils.NormalizeAmount(*f.v)
		if err != nil {
			msgs = append(msgs, f.name+": must be a valid number")
			continue
		}
		*f.v = n
	}
	if len(msgs) > 0 {
		return model.Loan{}, apperror.Validation(msgs...)
	}

	unlock, err := a.locks.Lock(ctx, userKey(userID))
	if err != nil {
		return model.Loan{}, apperror.Internal("acquire user lock", err)
	}
	defer unlock()

	if err := a.ownPolicy(ctx, userID, in.PolicyID); err != nil {
		return model.Loan{}, err
	}
	l := model.Loan{
		UserID:           userID,
		PolicyID:         in.PolicyID,
		Amount:           amount.String(),
		InterestRate:     rate,
		HealthFactor:     health,
		LiquidationRatio: ratio,
		IsActive:         true,
	}
	if err := a.store.CreateLoan(ctx, &l); err != nil {
		return model.Loan{}, storeErr(err, "Loan")
	}
	if _, err := a.applyBalance(ctx, userID, func(cur decimal.Decimal) decimal.Decimal {
		return cur.Add(amount)
	}); err != nil {
		return model.Loan{}, err
	}
	if err := a.store.CreateActivity(ctx, &model.Activity{
		UserID:      userID,
		Type:        model.ActivityBorrow,
		Description: fmt.Sprintf("Borrowed %s URSOL against policy", l.Amount),
		Amount:      l.Amount,
	}); err != nil {
		return model.Loan{}, storeErr(err, "Activity")
	}
	return l, nil
}

// BeneficiaryInput is the encrypted beneficiary document.
type BeneficiaryInput struct {
	EncryptedData   string          `json:"encryptedData" validate:"required"`
	OnChainSettings json.RawMessage `json:"onChainSettings"`
}

// SaveBeneficiary replaces the user's beneficiary record.
func (a *Accounts) SaveBeneficiary(ctx context.Context, userID string, in BeneficiaryInput) (model.Beneficiary, error) {
	settings := in.OnChainSettings
	if len(settings) > 0 && !json.Valid(settings) {
		return model.Beneficiary{}, apperror.Validation("onChainSettings: must be valid JSON")
	}
	if string(settings) == "null" {
		settings = nil
	}
	b := model.Beneficiary{UserID: userID, EncryptedData: in.EncryptedData, OnChainSettings: settings}
	if err := a.store.PutBeneficiary(ctx, &b); err != nil {
		return model.Beneficiary{}, storeErr(err, "Beneficiary")
	}
	return b, nil
}

// ListBeneficiaries returns the user's record as a list of zero or one.
func (a *Accounts) ListBeneficiaries(ctx context.Context, userID string) ([]model.Beneficiary, error) {
	b, err := a.store.GetBeneficiary(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return []model.Beneficiary{}, nil
	}
	if err != nil {
		return nil, storeErr(err, "Beneficiary")
	}
	return []model.Beneficiary{b}, nil
}

// ClaimInput files a claim against a policy.
type ClaimInput struct {
	PolicyID           string `json:"policyId" validate:"required"`
	PayoutType         string `json:"payoutType" validate:"required,oneof=lump_sum installments custom"`
	VerificationMethod string `json:"verificationMethod" validate:"omitempty,oneof=world_id oracle community"`
	Amount             string `json:"amount" validate:"required,decimal"`
}

// FileClaim records a pending claim and one claim_submitted activity. The
// balance is not touched until the claim is paid out.
func (a *Accounts) FileClaim(ctx context.Context, userID string, in ClaimInput) (model.Claim, error) {
	switch in.PayoutType {
	case "lump_sum", "installments", "custom":
	default:
		return model.Claim{}, apperror.Validation("payoutType: must be one of lump_sum, installments, custom")
	}
	amount, err := utils.ParseAmount(in.Amount)
	if err != nil || !amount.IsPositive() {
		return model.Claim{}, apperror.Validation("Amount must be greater than 0")
	}
	if err := a.ownPolicy(ctx, userID, in.PolicyID); err != nil {
		return model.Claim{}, err
	}
	c := model.Claim{
		UserID:             userID,
		PolicyID:           in.PolicyID,
		PayoutType:         in.PayoutType,
		Status:             model.ClaimPending,
		VerificationMethod: firstNonEmpty(in.VerificationMethod, "world_id"),
		Amount:             amount.String(),
	}
	if err := a.store.CreateClaim(ctx, &c); err != nil {
		return model.Claim{}, storeErr(err, "Claim")
	}
	if err := a.store.CreateActivity(ctx, &model.Activity{
		UserID:      userID,
		Type:        model.ActivityClaimSubmitted,
		Description: fmt.Sprintf("Submitted claim for %s URSOL", c.Amount),
		Amount:      c.Amount,
	}); err != nil {
		return model.Claim{}, storeErr(err, "Activity")
	}
	return c, nil
}

func (a *Accounts) ownPolicy(ctx context.Context, userID, policyID string) error {
	p, err := a.store.GetPolicy(ctx, policyID)
	if errors.Is(err, repository.ErrNotFound) || (err == nil && p.UserID != userID) {
		return apperror.NotFound("Policy")
	}
	if err != nil {
		return storeErr(err, "Policy")
	}
	return nil
}

// storeErr maps repository sentinels to API errors.
func storeErr(err error, what string) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return apperror.NotFound(what)
	case errors.Is(err, repository.ErrConflict):
		return apperror.Conflict(what + " already exists")
	default:
		return apperror.Internal(strings.ToLower(what)+" store error", err)
	}
}

func isNotFound(err error) bool { return errors.Is(err, repository.ErrNotFound) }

func tierInfo(t model.Tier) (model.TierInfo, bool) {
	for _, info := range model.Tiers {
		if info.Tier == t {
			return info, true
		}
	}
	return model.TierInfo{}, false
}

type pool struct {
	apy      string
	lockDays int
}

func poolDefaults(t model.StakingType) pool {
	if t == model.StakingInsurancePool {
		return pool{apy: "12.5", lockDays: 30}
	}
	return pool{apy: "0", lockDays: 0}
}

func amountOr(v, def, field string) (decimal.Decimal, error) {
	d, err := utils.ParseAmount(firstNonEmpty(v, def))
	if err != nil || d.IsNegative() {
		return decimal.Zero, apperror.Validation(field + ": must be a valid non-negative number")
	}
	return d, nil
}

func firstNonEmpty(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

func humanize(s string) string { return strings.ReplaceAll(s, "_", " ") }
