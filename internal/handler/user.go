package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/ursol-insurance/internal/apperror"
	"github.com/iliyamo/ursol-insurance/internal/service"
	"github.com/iliyamo/ursol-insurance/internal/utils"
)

// UserHandler serves the caller's profile, balance and access tokens.
type UserHandler struct {
	Accounts  *service.Accounts
	JWTSecret string
	TokenTTL  int // minutes
}

func NewUserHandler(accounts *service.Accounts, jwtSecret string, ttlMin int) *UserHandler {
	if accounts == nil {
		panic("nil accounts passed to NewUserHandler")
	}
	return &UserHandler{Accounts: accounts, JWTSecret: jwtSecret, TokenTTL: ttlMin}
}

// GetUser returns the caller's profile.
func (h *UserHandler) GetUser(c echo.Context) error {
	u, err := h.Accounts.GetUser(c.Request().Context(), currentUser(c))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, u)
}

// UpdateBalance applies {amount, operation} to the caller's balance.
func (h *UserHandler) UpdateBalance(c echo.Context) error {
	var in service.BalanceInput
	if err := bind(c, &in); err != nil {
		return fail(c, err)
	}
	u, err := h.Accounts.UpdateBalance(c.Request().Context(), currentUser(c), in)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, u)
}

type tokenReq struct {
	Address string `json:"address" validate:"required,max=128"`
}

type tokenResp struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
	UserID  string    `json:"userId"`
}

// IssueToken signs an access token for the user owning the wallet address,
// creating the user on first sight. It is a demo sign-in: ownership of the
// address is not proven, so the router mounts it in development only.
func (h *UserHandler) IssueToken(c echo.Context) error {
	if h.JWTSecret == "" {
		return fail(c, apperror.NotFound("Token issuing"))
	}
	var req tokenReq
	if err := bind(c, &req); err != nil {
		return fail(c, err)
	}
	u, err := h.Accounts.ResolveAddress(c.Request().Context(), req.Address)
	if err != nil {
		return fail(c, err)
	}
	tok, err := utils.NewAccessToken(h.JWTSecret, u.ID, h.TokenTTL)
	if err != nil {
		return fail(c, apperror.Internal("sign access token", err))
	}
	return c.JSON(http.StatusOK, tokenResp{Token: tok.Token, Expires: tok.Exp, UserID: u.ID})
}
