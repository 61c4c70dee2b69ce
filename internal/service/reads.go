package service

import (
	"context"

	"github.com/iliyamo/ursol-insurance/internal/model"
)

// Tiers returns the static policy catalog.
func (a *Accounts) Tiers() []model.TierInfo {
	out := make([]model.TierInfo, len(model.Tiers))
	copy(out, model.Tiers)
	return out
}

func (a *Accounts) ListPolicies(ctx context.Context, userID string) ([]model.Policy, error) {
	out, err := a.store.ListPolicies(ctx, userID)
	if err != nil {
		return nil, storeErr(err, "Policy")
	}
	return out, nil
}

func (a *Accounts) ListStakingPositions(ctx context.Context, userID string) ([]model.StakingPosition, error) {
	out, err := a.store.ListStakingPositions(ctx, userID)
	if err != nil {
		return nil, storeErr(err, "Staking position")
	}
	return out, nil
}

func (a *Accounts) ListLoans(ctx context.Context, userID string) ([]model.Loan, error) {
	out, err := a.store.ListLoans(ctx, userID)
	if err != nil {
		return nil, storeErr(err, "Loan")
	}
	return out, nil
}

func (a *Accounts) ListClaims(ctx context.Context, userID string) ([]model.Claim, error) {
	out, err := a.store.ListClaims(ctx, userID)
	if err != nil {
		return nil, storeErr(err, "Claim")
	}
	return out, nil
}

// ListActivities returns the user's activity history, newest first.
func (a *Accounts) ListActivities(ctx context.Context, userID string) ([]model.Activity, error) {
	out, err := a.store.ListActivities(ctx, userID)
	if err != nil {
		return nil, storeErr(err, "Activity")
	}
	return out, nil
}

// ResolveAddress returns the id of the user owning address, creating a
// fresh zero-balance user on first sight.
func (a *Accounts) ResolveAddress(ctx context.Context, address string) (model.User, error) {
	u, err := a.store.GetUserByAddress(ctx, address)
	if err == nil {
		return u, nil
	}
	if !isNotFound(err) {
		return model.User{}, storeErr(err, "User")
	}
	u = model.User{Address: address, UrsolBalance: "0.00"}
	if err := a.store.CreateUser(ctx, &u); err != nil {
		// Lost a race with another first sign-in for the same address.
		if existing, gerr := a.store.GetUserByAddress(ctx, address); gerr == nil {
			return existing, nil
		}
		return model.User{}, storeErr(err, "User")
	}
	a.log.InfoContext(ctx, "user created", "user_id", u.ID)
	return u, nil
}
