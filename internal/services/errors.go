package services

import "errors"

// Every service error wraps exactly one of these. Handlers match with errors.Is.
var (
	ErrNotFound        = errors.New("not found")
	ErrForbidden       = errors.New("forbidden")
	ErrInvalidTarget   = errors.New("invalid share target")
	ErrPolicyViolation = errors.New("policy violation")
	ErrTransient       = errors.New("temporarily unavailable")
)
