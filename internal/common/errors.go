// Package common defines shared constants and sentinel errors used across
// the credential, token and payment layers. Callers should use errors.Is to
// match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound      = errors.New("not found")
	ErrorAlreadyExists = errors.New("already exists")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")

	// Login rejections.
	ErrBlankCredentials   = errors.New("username or password should not be blank")
	ErrUnknownIdentity    = errors.New("unknown identity")
	ErrInvalidCredentials = errors.New("invalid credentials")

	// Key vault errors.
	ErrKeyNotFound      = errors.New("key not found")
	ErrDecryptionFailed = errors.New("decryption failed")

	// Token errors.
	ErrMalformedToken = errors.New("malformed token")
	ErrTokenExpired   = errors.New("token expired")

	// Payment gateway errors.
	ErrGatewayRequestFailed     = errors.New("gateway request failed")
	ErrMalformedGatewayResponse = errors.New("malformed gateway response")
	ErrGatewayTimeout           = errors.New("gateway timeout")
)
