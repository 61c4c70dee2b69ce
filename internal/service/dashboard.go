package service

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/ursol-insurance/internal/model"
	"github.com/iliyamo/ursol-insurance/internal/repository"
	"github.com/iliyamo/ursol-insurance/internal/utils"
)

// recentActivityCount is the number of activities shown on the dashboard.
const recentActivityCount = 4

// Summary is the dashboard view of a user's holdings.
type Summary struct {
	TotalCoverage    string           `json:"totalCoverage"`
	TotalStaked      string           `json:"totalStaked"`
	TotalRewards     string           `json:"totalRewards"`
	TotalBorrowed    string           `json:"totalBorrowed"`
	ActivePolicies   int              `json:"activePolicies"`
	ActiveLoans      int              `json:"activeLoans"`
	RecentActivities []model.Activity `json:"recentActivities"`
}

// Dashboard aggregates a user's records. It is computed on every call.
type Dashboard struct {
	store repository.Store
}

func NewDashboard(store repository.Store) *Dashboard { return &Dashboard{store: store} }

// Summary totals coverage over all policies, staked amounts, pending
// rewards and the principal of active loans.
func (d *Dashboard) Summary(ctx context.Context, userID string) (Summary, error) {
	policies, err := d.store.ListPolicies(ctx, userID)
	if err != nil {
		return Summary{}, storeErr(err, "Policy")
	}
	positions, err := d.store.ListStakingPositions(ctx, userID)
	if err != nil {
		return Summary{}, storeErr(err, "Staking position")
	}
	loans, err := d.store.ListLoans(ctx, userID)
	if err != nil {
		return Summary{}, storeErr(err, "Loan")
	}
	activities, err := d.store.ListActivities(ctx, userID)
	if err != nil {
		return Summary{}, storeErr(err, "Activity")
	}

	var coverage, staked, rewards, borrowed decimal.Decimal
	out := Summary{}
	for _, p := range policies {
		coverage = coverage.Add(sumOf(p.CoverageAmount))
		if p.IsActive {
			out.ActivePolicies++
		}
	}
	for _, sp := range positions {
		staked = staked.Add(sumOf(sp.Amount))
		rewards = rewards.Add(sumOf(sp.PendingRewards))
	}
	for _, l := range loans {
		if !l.IsActive {
			continue
		}
		borrowed = borrowed.Add(sumOf(l.Amount))
		out.ActiveLoans++
	}

	out.TotalCoverage = coverage.StringFixed(0)
	out.TotalStaked = staked.StringFixed(0)
	out.TotalRewards = rewards.StringFixed(1)
	out.TotalBorrowed = borrowed.StringFixed(0)
	if len(activities) > recentActivityCount {
		activities = activities[:recentActivityCount]
	}
	out.RecentActivities = activities
	return out, nil
}

// sumOf treats unparsable stored amounts as zero.
func sumOf(s string) decimal.Decimal {
	d, err := utils.ParseAmount(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
