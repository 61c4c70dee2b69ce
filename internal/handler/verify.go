package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/ursol-insurance/internal/apperror"
	"github.com/iliyamo/ursol-insurance/internal/service"
)

// VerifyHandler forwards World ID proofs for verification.
type VerifyHandler struct {
	Verification *service.Verification
}

func NewVerifyHandler(v *service.Verification) *VerifyHandler {
	if v == nil {
		panic("nil verification passed to NewVerifyHandler")
	}
	return &VerifyHandler{Verification: v}
}

// Verify answers {verifyRes, status} with status mirrored in the HTTP code.
func (h *VerifyHandler) Verify(c echo.Context) error {
	var req service.ProofRequest
	if err := c.Bind(&req); err != nil {
		return invalidProof(c)
	}
	out, err := h.Verification.Verify(c.Request().Context(), currentUser(c), req)
	if err != nil {
		e := apperror.From(err)
		if e.Kind == apperror.KindInvalidProof {
			return invalidProof(c)
		}
		report(c, e)
		return c.JSON(http.StatusInternalServerError, echo.Map{
			"verifyRes": echo.Map{"success": false, "error": "Verification service error"},
			"status":    http.StatusInternalServerError,
		})
	}
	status := http.StatusOK
	if !out.Verified {
		status = http.StatusBadRequest
	}
	return c.JSON(status, echo.Map{"verifyRes": out.Result, "status": status})
}

func invalidProof(c echo.Context) error {
	return c.JSON(http.StatusBadRequest, echo.Map{
		"status":  http.StatusBadRequest,
		"message": apperror.InvalidProof().Message,
	})
}
