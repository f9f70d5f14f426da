package auth

import "errors"

var (
	// ErrInvalidCredentials covers both an unknown email and a wrong password.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrTokenExpiredOrInvalid covers unknown, already used and expired reset tokens.
	ErrTokenExpiredOrInvalid = errors.New("password reset token is invalid or has expired")
	ErrNoSuchAccount         = errors.New("no account with that email address")
	ErrTokenGeneration       = errors.New("failed to generate token")
)
