// Package auth provides session tokens, password hashing and the Google
// OAuth 2.0 exchange for the task tracker.
//
// AUTHENTICATION FLOW OVERVIEW:
//  1. Password login: POST /auth/token → bcrypt verify → JWT in the response body
//  2. Google login: /auth/google/login → Google → /auth/google/callback with a code
//  3. Server exchanges the code, fetches the profile, finds or creates the user
//     by email, and sets the JWT in the access_token cookie
//  4. Protected routes read the JWT from "Authorization: Bearer" (or the cookie),
//     validate it, and put the claims in the request context
//
// JWT STRUCTURE (three base64-encoded parts separated by dots):
//
//	HEADER.PAYLOAD.SIGNATURE
//	- Header: algorithm + token type → {"alg":"HS256","typ":"JWT"}
//	- Payload: claims → {"sub":"jane","id":"cv37rs3p...","role":"user","exp":1234567890}
//	- Signature: HMAC(header+"."+payload, secretKey)
//
// Validation needs only the secret. There is no session table and no
// revocation list: a token is good until its exp.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultTokenTTL is the lifetime of tokens issued by both login flows.
const DefaultTokenTTL = 20 * time.Minute

const tokenIssuer = "tasktracker"

// NumericDate defaults to whole seconds, which would move exp up to a second
// before issue+ttl.
func init() {
	jwt.TimePrecision = time.Millisecond
}

// minSecretLength guards against obviously weak secrets at startup.
const minSecretLength = 16

// Claims is the JWT payload.
//
// "sub" (Subject, from RegisteredClaims) carries the username and "id" the
// internal user ID. Handlers scope queries by UserID and gate admin routes
// on Role.
type Claims struct {
	UserID string `json:"id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// TokenService handles JWT creation and validation.
//
// The secret and algorithm are fixed when the service is built and never
// change for the life of the process.
type TokenService struct {
	secret []byte
	method *jwt.SigningMethodHMAC
	now    func() time.Time
}

// NewTokenService creates a TokenService.
//
// algorithm is one of HS256, HS384 or HS512; empty means HS256. The secret
// must come from configuration (JWT_SECRET or a secret file), never from source.
func NewTokenService(secret, algorithm string) (*TokenService, error) {
	if len(secret) < minSecretLength {
		return nil, fmt.Errorf("auth: JWT secret must be at least %d characters", minSecretLength)
	}

	var method *jwt.SigningMethodHMAC
	switch algorithm {
	case "", "HS256":
		method = jwt.SigningMethodHS256
	case "HS384":
		method = jwt.SigningMethodHS384
	case "HS512":
		method = jwt.SigningMethodHS512
	default:
		return nil, fmt.Errorf("auth: unsupported signing algorithm %q", algorithm)
	}

	return &TokenService{
		secret: []byte(secret),
		method: method,
		now:    time.Now,
	}, nil
}

// Issue creates and signs a token for the given identity, valid for ttl.
//
// exp keeps millisecond precision, so a token issued at 12:00:00.7 with a
// 20m TTL is valid until 12:20:00.7.
func (s *TokenService) Issue(subject, userID, role string, ttl time.Duration) (string, error) {
	now := s.now()

	c := Claims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    tokenIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(s.method, c).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}

	return signed, nil
}

// Validate parses and verifies a token and returns its claims.
//
// VALIDATION CHECKS (performed by the jwt library, in this order):
//   - Algorithm is the configured HMAC variant (blocks "alg: none" and
//     algorithm confusion)
//   - Signature matches
//   - Issuer is ours and exp is present and in the future
//
// Failures come back as ErrInvalidSignature, ErrExpired or ErrMalformedClaims,
// all of which wrap ErrInvalidToken.
func (s *TokenService) Validate(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&Claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{s.method.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
			return nil, ErrInvalidSignature
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrExpired
		default:
			return nil, fmt.Errorf("%w: %v", ErrMalformedClaims, err)
		}
	}

	c, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrMalformedClaims
	}

	if c.Subject == "" || c.UserID == "" {
		return nil, ErrMalformedClaims
	}

	return c, nil
}
