package domain

import "fmt"

// AuthError is an unauthorized-class failure raised by the auth core. The
// message is fixed per code and deliberately does not reveal which internal
// check failed.
type AuthError struct {
	Code    string
	Message string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func newAuthError(code, message string) *AuthError {
	return &AuthError{Code: code, Message: message}
}

// ErrInvalidCredentials covers both unknown email and wrong password.
func ErrInvalidCredentials() *AuthError {
	return newAuthError("invalid_credentials", "Invalid credentials")
}

// ErrInvalidRefreshToken covers malformed, expired, or badly signed refresh
// tokens.
func ErrInvalidRefreshToken() *AuthError {
	return newAuthError("invalid_token", "Invalid refresh token")
}

// ErrInvalidAccessToken covers expired or badly signed access tokens.
func ErrInvalidAccessToken() *AuthError {
	return newAuthError("invalid_token", "Invalid access token")
}

// ErrTokenRevoked covers a refresh token whose ledger record is missing,
// already revoked, or does not match the presented secret.
func ErrTokenRevoked() *AuthError {
	return newAuthError("token_revoked", "Refresh token is invalid or revoked")
}

// ErrAccessDenied covers a user that vanished between token issuance and the
// persistence re-check.
func ErrAccessDenied() *AuthError {
	return newAuthError("access_denied", "Access denied")
}

// ErrTooManyAttempts covers a login lockout after repeated failures.
func ErrTooManyAttempts() *AuthError {
	return newAuthError("too_many_attempts", "Too many failed login attempts")
}
