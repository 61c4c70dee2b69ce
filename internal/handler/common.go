// Package handler contains the echo handlers of the HTTP API. Handlers bind
// and validate input, call one service operation and translate the result
// or AppError into the JSON shape each route family uses.
package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"reflect"
	"strings"

	"github.com/getsentry/sentry-go"
	validator "github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/ursol-insurance/internal/apperror"
	"github.com/iliyamo/ursol-insurance/internal/middleware"
	"github.com/iliyamo/ursol-insurance/internal/utils"
)

// Validator adapts go-playground/validator to echo. It knows the "decimal"
// tag used by amount fields.
type Validator struct {
	v *validator.Validate
}

func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("decimal", func(fl validator.FieldLevel) bool {
		_, err := utils.ParseAmount(fl.Field().String())
		return err == nil
	})
	return &Validator{v: v}
}

// Validate returns an *apperror.AppError of kind Validation listing every
// failing field.
func (cv *Validator) Validate(i any) error {
	err := cv.v.Struct(i)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperror.Validation(err.Error())
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fieldMessage(fe))
	}
	return apperror.Validation(msgs...)
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_with":
		return fe.Field() + ": is required"
	case "decimal":
		return fe.Field() + ": must be a valid number"
	case "oneof":
		return fmt.Sprintf("%s: must be one of %s", fe.Field(), strings.ReplaceAll(fe.Param(), " ", ", "))
	case "min", "max":
		return fmt.Sprintf("%s: must be %s %s", fe.Field(), map[string]string{"min": "at least", "max": "at most"}[fe.Tag()], fe.Param())
	default:
		return fe.Field() + ": is invalid"
	}
}

// bind decodes the JSON body into dst and validates it.
func bind(c echo.Context, dst any) error {
	if err := c.Bind(dst); err != nil {
		return apperror.Validation("invalid request body")
	}
	return c.Validate(dst)
}

// currentUser is the id resolved by the identity middleware.
func currentUser(c echo.Context) string { return middleware.UserID(c) }

// report logs a server-side failure and sends it to sentry. Client errors
// are not reported.
func report(c echo.Context, e *apperror.AppError) {
	if e.Status() < http.StatusInternalServerError {
		return
	}
	req := c.Request()
	slog.ErrorContext(req.Context(), "request failed",
		"route", c.Path(), "method", req.Method, "kind", string(e.Kind), "error", e.Error())

	hub := sentry.CurrentHub().Clone()
	hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("route", c.Path())
		scope.SetTag("method", req.Method)
		scope.SetTag("request_id", c.Response().Header().Get(echo.HeaderXRequestID))
		hub.CaptureException(e)
	})
}

// fail writes the {"message": ...} envelope of the CRUD routes.
func fail(c echo.Context, err error) error {
	e := apperror.From(err)
	report(c, e)
	body := echo.Map{"message": e.Message}
	switch {
	case e.Status() >= http.StatusInternalServerError:
		body["message"] = "Internal server error"
	case e.Kind == apperror.KindValidation:
		body["errors"] = e.Details["errors"]
	}
	return c.JSON(e.Status(), body)
}

// failPayment writes the {"success": false, ...} envelope of the payment
// routes. Internal failures carry fallback as their message.
func failPayment(c echo.Context, err error, fallback string) error {
	e := apperror.From(err)
	report(c, e)
	if e.Status() >= http.StatusInternalServerError {
		return c.JSON(e.Status(), echo.Map{"success": false, "message": fallback})
	}
	body := echo.Map{"success": false, "message": e.Message}
	switch e.Kind {
	case apperror.KindVerificationMismatch:
		body["details"] = e.Details
	case apperror.KindValidation:
		body["errors"] = e.Details["errors"]
	}
	return c.JSON(e.Status(), body)
}
