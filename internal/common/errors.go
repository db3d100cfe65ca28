// Package common defines shared constants and sentinel errors used across
// the coderoom server and client. Callers should use errors.Is to match
// these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound      = errors.New("not found")
	ErrorAlreadyExists = errors.New("already exists")

	// Service-level errors (generic/internal flow control).
	ErrorInternal       = errors.New("internal error")
	ErrorUnauthorized   = errors.New("unauthorized")
	ErrorValidation     = errors.New("validation error")
	ErrNotProjectMember = errors.New("user does not belong to this project")

	// Session gate errors.
	ErrTokenMissing     = errors.New("token missing")
	ErrInvalidToken     = errors.New("invalid token")
	ErrTokenExpired     = errors.New("token expired")
	ErrTokenRevoked     = errors.New("token revoked")
	ErrInvalidProjectID = errors.New("invalid project id")

	// AI content generator failures.
	ErrUpstream = errors.New("upstream failure")
)
