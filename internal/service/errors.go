package service

import "errors"

// Typed failures surfaced by the proctoring core. Handlers translate these
// into response error codes; nothing below is ever swallowed except late
// violation events on terminal attempts (see IntegrityService).
var (
	// ErrNotFound means the attempt, exam, or user does not exist.
	ErrNotFound = errors.New("resource not found")
	// ErrConflict means an active attempt already exists for this exam and user.
	ErrConflict = errors.New("active attempt already exists")
	// ErrInvalidState means a mutation was attempted on a terminal attempt.
	ErrInvalidState = errors.New("attempt is not active")
	// ErrForbidden means the caller lacks ownership or the chat gate is closed.
	ErrForbidden = errors.New("operation not permitted")
	// ErrInvalidCredentials is returned by the auth flow on a bad login.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrSessionAlreadyActive rejects a second concurrent student login.
	ErrSessionAlreadyActive = errors.New("another session is already active, please contact admin to reset")
)
