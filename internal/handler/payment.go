package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/ursol-insurance/internal/apperror"
	"github.com/iliyamo/ursol-insurance/internal/model"
	"github.com/iliyamo/ursol-insurance/internal/service"
)

// PaymentHandler serves payment initiation, confirmation and history.
type PaymentHandler struct {
	Payments *service.Payments
}

func NewPaymentHandler(payments *service.Payments) *PaymentHandler {
	if payments == nil {
		panic("nil payments passed to NewPaymentHandler")
	}
	return &PaymentHandler{Payments: payments}
}

// Initiate creates a pending payment and answers {"id": reference}.
func (h *PaymentHandler) Initiate(c echo.Context) error {
	return h.initiate(c, h.Payments.Initiate)
}

// InitiateLegacy is Initiate with USDCE as default currency, related
// entity support and an initiation activity.
func (h *PaymentHandler) InitiateLegacy(c echo.Context) error {
	return h.initiate(c, h.Payments.InitiateLegacy)
}

func (h *PaymentHandler) initiate(c echo.Context, fn func(ctx context.Context, userID string, in service.InitiateInput) (model.Payment, error)) error {
	var in service.InitiateInput
	if err := bind(c, &in); err != nil {
		return fail(c, err)
	}
	p, err := fn(c.Request().Context(), currentUser(c), in)
	if err != nil {
		if e := apperror.From(err); e.Status() >= http.StatusInternalServerError {
			report(c, e)
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Payment initiation failed"})
		}
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"id": p.Reference})
}

type confirmReq struct {
	Payload json.RawMessage `json:"payload"`
}

// Confirm reconciles a client completion payload with its payment.
func (h *PaymentHandler) Confirm(c echo.Context) error {
	var req confirmReq
	if err := c.Bind(&req); err != nil {
		return failPayment(c, apperror.Validation("Missing payload in request body"), "")
	}
	res, err := h.Payments.Confirm(c.Request().Context(), currentUser(c), req.Payload)
	if err != nil {
		return failPayment(c, err, "Payment confirmation failed")
	}
	message := "Payment confirmed successfully"
	if res.AlreadyCompleted {
		message = "Payment already confirmed"
	}
	return c.JSON(http.StatusOK, echo.Map{
		"success":     true,
		"message":     message,
		"payment":     res.Payment,
		"transaction": res.Transaction,
	})
}

// ListPayments returns the caller's payments, newest first.
func (h *PaymentHandler) ListPayments(c echo.Context) error {
	return list(c, h.Payments.ListPayments)
}
