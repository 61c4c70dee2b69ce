package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/ursol-insurance/internal/service"
)

// DashboardHandler serves the aggregated portfolio view.
type DashboardHandler struct {
	Dashboard *service.Dashboard
}

func NewDashboardHandler(d *service.Dashboard) *DashboardHandler {
	if d == nil {
		panic("nil dashboard passed to NewDashboardHandler")
	}
	return &DashboardHandler{Dashboard: d}
}

// Summary is recomputed on every call.
func (h *DashboardHandler) Summary(c echo.Context) error {
	sum, err := h.Dashboard.Summary(c.Request().Context(), currentUser(c))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, sum)
}
