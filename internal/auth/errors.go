package auth

import "errors"

// Failure classes surfaced by the token service. Handlers map these to
// HTTP statuses and never attach more detail than a generic message.
var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrTokenMissing       = errors.New("no token provided")
	ErrTokenInvalid       = errors.New("invalid or expired token")
	ErrUserNotFound       = errors.New("user not found")
	ErrSecretMissing      = errors.New("token secret is not configured")
)
