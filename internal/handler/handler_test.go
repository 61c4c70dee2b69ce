package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/ursol-insurance/internal/apperror"
	"github.com/iliyamo/ursol-insurance/internal/service"
)

func newContext(method string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	e.Validator = NewValidator()
	req := httptest.NewRequest(method, "/", nil)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestValidatorMessages(t *testing.T) {
	v := NewValidator()

	err := v.Validate(&service.BorrowInput{Amount: "abc"})
	require.Error(t, err)
	e := apperror.From(err)
	assert.Equal(t, apperror.KindValidation, e.Kind)
	assert.Equal(t, []string{"policyId: is required", "amount: must be a valid number"}, e.Details["errors"])

	err = v.Validate(&service.MintInput{Tier: "gold"})
	require.Error(t, err)
	assert.Equal(t, "tier: must be one of basic, premium, premium_urn", apperror.From(err).Message)

	bonus := 101
	err = v.Validate(&service.MintInput{Tier: "basic", StakingBonus: &bonus})
	require.Error(t, err)
	assert.Equal(t, "stakingBonus: must be at most 100", apperror.From(err).Message)

	assert.NoError(t, v.Validate(&service.BalanceInput{Amount: "12.50", Operation: "set"}))
}

func TestFailEnvelope(t *testing.T) {
	c, rec := newContext(http.MethodGet)
	require.NoError(t, fail(c, apperror.Validation("a: is required", "b: is invalid")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "a: is required; b: is invalid", body["message"])
	assert.Len(t, body["errors"], 2)

	c, rec = newContext(http.MethodGet)
	require.NoError(t, fail(c, errors.New("dial tcp: connection refused")))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, map[string]any{"message": "Internal server error"}, decode(t, rec))
}

func TestFailPaymentEnvelope(t *testing.T) {
	c, rec := newContext(http.MethodPost)
	require.NoError(t, failPayment(c, apperror.VerificationMismatch(false, "failed"), "Payment confirmation failed"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "Transaction verification failed", body["message"])
	assert.Equal(t, map[string]any{"referenceMatch": false, "status": "failed"}, body["details"])

	c, rec = newContext(http.MethodPost)
	require.NoError(t, failPayment(c, apperror.Internal("store", errors.New("boom")), "Payment confirmation failed"))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, map[string]any{"success": false, "message": "Payment confirmation failed"}, decode(t, rec))
}

type pinger struct{ err error }

func (p pinger) PingContext(context.Context) error { return p.err }

func TestHealth(t *testing.T) {
	c, rec := newContext(http.MethodGet)
	require.NoError(t, Health(pinger{})(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	c, rec = newContext(http.MethodGet)
	require.NoError(t, Health(pinger{err: errors.New("down")})(c))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "database unavailable", rec.Body.String())
}
