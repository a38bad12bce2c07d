package token

import "errors"

var (
	ErrMalformed        = errors.New("token: credential malformed")
	ErrExpired          = errors.New("token: credential expired")
	ErrSignatureInvalid = errors.New("token: signature invalid")
	ErrInvalidClaims    = errors.New("token: invalid claims")
	ErrMissingKey       = errors.New("token: missing key material")
	ErrInvalidKey       = errors.New("token: invalid key material")
	ErrUnsupportedAlg   = errors.New("token: unsupported signing algorithm")
)
