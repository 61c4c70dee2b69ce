package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/ursol-insurance/internal/model"
)

// DemoUserID is the account every request falls back to when no bearer
// identity is presented.
const DemoUserID = "demo-user-1"

// DemoAddress is the wallet address of the demo account.
const DemoAddress = "0x742d35cc6639c0532fea175b7b6c7b50f5f3a8f8"

// Seed loads the demo account with two policies, two staking positions,
// one loan and a short activity history. It does nothing when the demo
// user already exists, so it is safe to call on every start.
func Seed(ctx context.Context, s Store, now time.Time) error {
	if _, err := s.GetUser(ctx, DemoUserID); err == nil {
		return nil
	} else if !errors.Is(err, ErrNotFound) {
		return err
	}

	due1 := now.Add(15 * 24 * time.Hour)
	due2 := now.Add(22 * 24 * time.Hour)

	steps := []func() error{
		func() error {
			return s.CreateUser(ctx, &model.User{
				ID: DemoUserID, Address: DemoAddress, UrsolBalance: "15750.00",
				IsWorldIDVerified: true, CreatedAt: now,
			})
		},
		func() error {
			return s.CreatePolicy(ctx, &model.Policy{
				ID: "policy-1", UserID: DemoUserID, TokenID: 1247, Tier: model.TierPremium,
				CoverageAmount: "150000", MonthlyPremium: "65", StakingBonus: 10,
				IsActive: true, NextPremiumDue: &due1, CreatedAt: now,
			})
		},
		func() error {
			return s.CreatePolicy(ctx, &model.Policy{
				ID: "policy-2", UserID: DemoUserID, TokenID: 892, Tier: model.TierBasic,
				CoverageAmount: "50000", MonthlyPremium: "25", StakingBonus: 5,
				IsActive: true, NextPremiumDue: &due2, CreatedAt: now.Add(time.Millisecond),
			})
		},
		func() error {
			return s.CreateStakingPosition(ctx, &model.StakingPosition{
				ID: "stake-1", UserID: DemoUserID, Type: model.StakingInsurancePool,
				Amount: "2500", APY: "12.5", PendingRewards: "15.6", LockPeriod: 30, CreatedAt: now,
			})
		},
		func() error {
			return s.CreateStakingPosition(ctx, &model.StakingPosition{
				ID: "stake-2", UserID: DemoUserID, Type: model.StakingRewards,
				Amount: "1000", APY: "0", PendingRewards: "0", LockPeriod: 0, CreatedAt: now.Add(time.Millisecond),
			})
		},
		func() error {
			return s.CreateLoan(ctx, &model.Loan{
				ID: "loan-1", UserID: DemoUserID, PolicyID: "policy-2", Amount: "15000",
				InterestRate: "8.5", HealthFactor: "2.4", LiquidationRatio: "150",
				IsActive: true, CreatedAt: now,
			})
		},
	}

	activities := []model.Activity{
		{Type: model.ActivityClaimRewards, Description: "Claimed staking rewards", Amount: "15.6", CreatedAt: now.Add(-2 * time.Hour)},
		{Type: model.ActivityPremiumPayment, Description: "Premium payment for Policy #1247", Amount: "65", CreatedAt: now.Add(-24 * time.Hour)},
		{Type: model.ActivityBorrow, Description: "Borrowed against Policy #892", Amount: "15000", CreatedAt: now.Add(-72 * time.Hour)},
		{Type: model.ActivityBurn, Description: "Burned URSOL for Policy #1247 mint", Amount: "75", CreatedAt: now.Add(-168 * time.Hour)},
	}
	for i := range activities {
		a := activities[i]
		a.ID = fmt.Sprintf("activity-%d", i+1)
		a.UserID = DemoUserID
		steps = append(steps, func() error { return s.CreateActivity(ctx, &a) })
	}

	for _, step := range steps {
		if err := step(); err != nil {
			return fmt.Errorf("seed demo data: %w", err)
		}
	}
	return nil
}
