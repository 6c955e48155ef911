// Package common defines the sentinel errors shared across the registry
// layers. Callers match these values with errors.Is; the HTTP layer maps
// each one to its status code.
package common

import "errors"

var (
	// Repository-level errors.
	ErrNotFound = errors.New("not found")

	// Auth errors.
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrInvalidCredentials = errors.New("invalid credentials")

	// Request shape errors.
	ErrBadRequest       = errors.New("bad request")
	ErrMethodNotAllowed = errors.New("method not allowed")

	// Downstream/internal failures. Detail stays in logs; clients get a
	// generic message.
	ErrInternal = errors.New("internal error")
)
