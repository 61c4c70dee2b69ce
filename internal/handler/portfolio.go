package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/ursol-insurance/internal/service"
)

// PortfolioHandler serves the caller's policies, staking positions, loans,
// beneficiaries, claims and activity history.
type PortfolioHandler struct {
	Accounts *service.Accounts
}

func NewPortfolioHandler(accounts *service.Accounts) *PortfolioHandler {
	if accounts == nil {
		panic("nil accounts passed to NewPortfolioHandler")
	}
	return &PortfolioHandler{Accounts: accounts}
}

// list runs a list operation for the caller and writes the array.
func list[T any](c echo.Context, fn func(ctx context.Context, userID string) ([]T, error)) error {
	out, err := fn(c.Request().Context(), currentUser(c))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// create binds In, runs a mutation for the caller and writes the result.
func create[In, Out any](c echo.Context, fn func(ctx context.Context, userID string, in In) (Out, error)) error {
	var in In
	if err := bind(c, &in); err != nil {
		return fail(c, err)
	}
	out, err := fn(c.Request().Context(), currentUser(c), in)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// Tiers returns the static policy catalog.
func (h *PortfolioHandler) Tiers(c echo.Context) error {
	return c.JSON(http.StatusOK, h.Accounts.Tiers())
}

func (h *PortfolioHandler) ListPolicies(c echo.Context) error {
	return list(c, h.Accounts.ListPolicies)
}

// MintPolicy buys a policy of the requested tier.
func (h *PortfolioHandler) MintPolicy(c echo.Context) error {
	return create(c, h.Accounts.MintPolicy)
}

func (h *PortfolioHandler) ListStaking(c echo.Context) error {
	return list(c, h.Accounts.ListStakingPositions)
}

func (h *PortfolioHandler) Stake(c echo.Context) error {
	return create(c, h.Accounts.Stake)
}

// ClaimRewards claims the pending rewards of staking position :id.
func (h *PortfolioHandler) ClaimRewards(c echo.Context) error {
	sp, err := h.Accounts.ClaimRewards(c.Request().Context(), currentUser(c), c.Param("id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, sp)
}

func (h *PortfolioHandler) ListLoans(c echo.Context) error {
	return list(c, h.Accounts.ListLoans)
}

func (h *PortfolioHandler) Borrow(c echo.Context) error {
	return create(c, h.Accounts.Borrow)
}

func (h *PortfolioHandler) ListBeneficiaries(c echo.Context) error {
	return list(c, h.Accounts.ListBeneficiaries)
}

// SaveBeneficiary replaces the caller's encrypted beneficiary record.
func (h *PortfolioHandler) SaveBeneficiary(c echo.Context) error {
	return create(c, h.Accounts.SaveBeneficiary)
}

func (h *PortfolioHandler) ListClaims(c echo.Context) error {
	return list(c, h.Accounts.ListClaims)
}

func (h *PortfolioHandler) FileClaim(c echo.Context) error {
	return create(c, h.Accounts.FileClaim)
}

// ListActivities returns the caller's activity history, newest first.
func (h *PortfolioHandler) ListActivities(c echo.Context) error {
	return list(c, h.Accounts.ListActivities)
}
