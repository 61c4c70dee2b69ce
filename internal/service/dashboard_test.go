package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/ursol-insurance/internal/model"
)

func TestDashboardSummaryOfDemoAccount(t *testing.T) {
	s := seededStore(t)
	d := NewDashboard(s)

	sum, err := d.Summary(context.Background(), demo)
	require.NoError(t, err)
	assert.Equal(t, "200000", sum.TotalCoverage)
	assert.Equal(t, "3500", sum.TotalStaked)
	assert.Equal(t, "15.6", sum.TotalRewards)
	assert.Equal(t, "15000", sum.TotalBorrowed)
	assert.Equal(t, 2, sum.ActivePolicies)
	assert.Equal(t, 1, sum.ActiveLoans)
	require.Len(t, sum.RecentActivities, 4)
	assert.Equal(t, "activity-1", sum.RecentActivities[0].ID)
}

func TestDashboardTracksMutations(t *testing.T) {
	s := seededStore(t)
	ctx := context.Background()
	require.NoError(t, s.CreateLoan(ctx, &model.Loan{UserID: demo, PolicyID: "policy-1", Amount: "999", IsActive: false}))
	require.NoError(t, s.CreateActivity(ctx, &model.Activity{UserID: demo, Type: model.ActivityStake, Description: "latest"}))

	sum, err := NewDashboard(s).Summary(ctx, demo)
	require.NoError(t, err)
	assert.Equal(t, "15000", sum.TotalBorrowed)
	assert.Equal(t, 1, sum.ActiveLoans)
	require.Len(t, sum.RecentActivities, 4)
	assert.Equal(t, "latest", sum.RecentActivities[0].Description)
}

func TestDashboardOfEmptyAccount(t *testing.T) {
	s := seededStore(t)
	sum, err := NewDashboard(s).Summary(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Equal(t, "0", sum.TotalCoverage)
	assert.Equal(t, "0.0", sum.TotalRewards)
	assert.NotNil(t, sum.RecentActivities)
	assert.Empty(t, sum.RecentActivities)
}
