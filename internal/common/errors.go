// Package common defines shared constants and sentinel errors used across
// itter components. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound      = errors.New("not found")
	ErrorAlreadyExists = errors.New("already exists")

	// Command/input validation. The command stays unexecuted.
	ErrValidation = errors.New("validation error")

	// Domain rules.
	ErrEetTooLong    = errors.New("eet too long")
	ErrSelfFollow    = errors.New("cannot follow yourself")
	ErrNotFollowing  = errors.New("not following")
	ErrUsernameTaken = errors.New("username taken")

	// Transport lifecycle. Terminal for one session only.
	ErrTransportClosed = errors.New("transport closed")
)
