// Package apperror defines the error taxonomy shared by the service and
// handler layers. Services return *AppError values; handlers translate the
// Kind into an HTTP status and a JSON envelope.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Kind classifies an application error.
type Kind string

const (
	KindNotFound                   Kind = "not_found"
	KindValidation                 Kind = "validation_error"
	KindReferenceMismatch          Kind = "reference_mismatch"
	KindVerificationMismatch       Kind = "verification_mismatch"
	KindExternalVerificationFailed Kind = "external_verification_failed"
	KindExternalService            Kind = "external_service_error"
	KindInvalidProof               Kind = "invalid_proof"
	KindConflict                   Kind = "conflict"
	KindUnauthorized               Kind = "unauthorized"
	KindInternal                   Kind = "internal"
)

// AppError carries a Kind, a client-facing message and optional diagnostic
// details. The wrapped cause is never serialized.
type AppError struct {
	Kind    Kind
	Message string
	Details map[string]any
	cause   error
}

func (e *AppError) Error() string {
	if e == nil {
		return ""
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// Status returns the HTTP status code for the error kind.
func (e *AppError) Status() int {
	switch e.Kind {
	case KindNotFound:
		return http.StatusNotFound
	case KindValidation, KindReferenceMismatch, KindVerificationMismatch,
		KindExternalVerificationFailed, KindInvalidProof:
		return http.StatusBadRequest
	case KindConflict:
		return http.StatusConflict
	case KindUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func NotFound(what string) *AppError {
	return &AppError{Kind: KindNotFound, Message: what + " not found"}
}

// Validation aggregates field messages into a single error.
func Validation(messages ...string) *AppError {
	return &AppError{
		Kind:    KindValidation,
		Message: strings.Join(messages, "; "),
		Details: map[string]any{"errors": messages},
	}
}

func ReferenceMismatch(payloadRef, storedRef string) *AppError {
	return &AppError{
		Kind:    KindReferenceMismatch,
		Message: "Payment reference mismatch",
		Details: map[string]any{"payloadReference": payloadRef, "storedReference": storedRef},
	}
}

func VerificationMismatch(referenceMatch bool, status string) *AppError {
	return &AppError{
		Kind:    KindVerificationMismatch,
		Message: "Transaction verification failed",
		Details: map[string]any{"referenceMatch": referenceMatch, "status": status},
	}
}

func ExternalVerificationFailed(cause error) *AppError {
	return &AppError{
		Kind:    KindExternalVerificationFailed,
		Message: "Failed to verify transaction with Worldcoin API",
		cause:   cause,
	}
}

func ExternalService(service string, cause error) *AppError {
	return &AppError{
		Kind:    KindExternalService,
		Message: service + " unavailable",
		cause:   cause,
	}
}

func InvalidProof() *AppError {
	return &AppError{Kind: KindInvalidProof, Message: "Invalid proof data"}
}

func Conflict(msg string) *AppError {
	return &AppError{Kind: KindConflict, Message: msg}
}

func Unauthorized(msg string) *AppError {
	return &AppError{Kind: KindUnauthorized, Message: msg}
}

func Internal(msg string, cause error) *AppError {
	return &AppError{Kind: KindInternal, Message: msg, cause: cause}
}

// From returns err as an *AppError, wrapping unknown errors as internal.
func From(err error) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) && appErr != nil {
		return appErr
	}
	return Internal("internal error", err)
}

// Is reports whether err is an *AppError of the given kind.
func Is(err error, kind Kind) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr != nil && appErr.Kind == kind
}
