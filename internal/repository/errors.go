// Package repository defines the storage contract of the service together
// with its in-memory and MySQL implementations. Sentinel errors are shared
// by both backends so that services can map them to API errors without
// knowing which one is in use.
package repository

import "errors"

// ErrNotFound is returned when a lookup by key matches no row.
// Services translate this into an HTTP 404 response.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a write would violate a uniqueness
// constraint, such as a duplicate policy token id or payment reference.
// Services translate this into an HTTP 409 response or retry.
var ErrConflict = errors.New("conflict")

// ErrNotPending is returned by CompletePayment when the payment has left
// the pending state. Nothing is written in that case.
var ErrNotPending = errors.New("payment not pending")
