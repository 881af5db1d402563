package auth

import (
	"errors"
	"fmt"
)

// ErrInvalidToken is the parent of every token validation failure. Code that
// only needs "is this caller authenticated?" should test for it and nothing
// finer: the subtypes exist for logs and tests, not for responses.
var ErrInvalidToken = errors.New("auth: invalid token")

var (
	ErrInvalidSignature = fmt.Errorf("%w: signature mismatch", ErrInvalidToken)
	ErrExpired          = fmt.Errorf("%w: token expired", ErrInvalidToken)
	ErrMalformedClaims  = fmt.Errorf("%w: malformed claims", ErrInvalidToken)
)

// External identity exchange failures. Every one of them aborts the callback
// and is reported to the browser as a plain 400.
var (
	ErrProviderNotConfigured = errors.New("auth: identity provider is not configured")
	ErrProviderError         = errors.New("auth: identity provider error")
	ErrMissingCode           = errors.New("auth: missing authorization code")
	ErrTokenExchangeFailed   = errors.New("auth: authorization code exchange failed")
	ErrNoEmailProvided       = errors.New("auth: identity provider returned no email")
)

var ErrPasswordMismatch = errors.New("auth: invalid password")
