package domain

import "errors"

var (
	// ErrInvalidCredentials is returned when email or password do not match an active account.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUnauthenticated is returned when a credential is missing, malformed, expired or revoked.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrNotFound is returned by repositories and stores for missing records.
	ErrNotFound = errors.New("not found")
)

// ErrInvalidInput is returned when a request is missing required fields.
var ErrInvalidInput = errors.New("invalid input")
