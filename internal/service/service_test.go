package service

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/iliyamo/ursol-insurance/internal/model"
	"github.com/iliyamo/ursol-insurance/internal/repository"
)

const demo = repository.DemoUserID

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// seededStore returns a memory store holding the demo account, seeded an
// hour in the past so records written by the test sort as newer.
func seededStore(t *testing.T) *repository.MemoryStore {
	t.Helper()
	s := repository.NewMemoryStore()
	require.NoError(t, repository.Seed(context.Background(), s, time.Now().UTC().Add(-time.Hour)))
	return s
}

func newAccounts(t *testing.T) (*Accounts, *repository.MemoryStore) {
	t.Helper()
	s := seededStore(t)
	return NewAccounts(s, NewMemoryLocker(), discardLogger()), s
}

func activitiesOfType(t *testing.T, s repository.Store, userID, typ string) []model.Activity {
	t.Helper()
	all, err := s.ListActivities(context.Background(), userID)
	require.NoError(t, err)
	var out []model.Activity
	for _, a := range all {
		if a.Type == typ {
			out = append(out, a)
		}
	}
	return out
}

func balanceOf(t *testing.T, s repository.Store, userID string) string {
	t.Helper()
	u, err := s.GetUser(context.Background(), userID)
	require.NoError(t, err)
	return u.UrsolBalance
}

// addUser creates a second account owning one policy.
func addUser(t *testing.T, s repository.Store) (model.User, model.Policy) {
	t.Helper()
	ctx := context.Background()
	u := model.User{ID: "other-user", Address: "0x1111111111111111111111111111111111111111", UrsolBalance: "10.00"}
	require.NoError(t, s.CreateUser(ctx, &u))
	p := model.Policy{UserID: u.ID, TokenID: 4242, Tier: model.TierBasic, CoverageAmount: "50000", MonthlyPremium: "25", IsActive: true}
	require.NoError(t, s.CreatePolicy(ctx, &p))
	return u, p
}
