package auth

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// defaultCost is the bcrypt work factor used unless BCRYPT_COST overrides it.
// Tune it so one hash takes 200-300ms on production hardware.
const defaultCost = 12

// PasswordService provides bcrypt hashing and verification at a fixed cost.
//
// Stored hashes are the full bcrypt output, salt included:
//
//	$2a$12$<22-char salt><31-char hash>
//	 ^   ^
//	 |   cost (2^12 rounds)
//	 version
type PasswordService struct {
	cost int

	dummyOnce sync.Once
	dummyHash []byte
}

// NewPasswordServiceWithCost uses cost when bcrypt accepts it and the
// default otherwise. The server passes the BCRYPT_COST setting here.
func NewPasswordServiceWithCost(cost int) *PasswordService {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = defaultCost
	}
	return &PasswordService{cost: cost}
}

// NewPasswordServiceForTest accepts any cost, including bcrypt's minimum of
// 4. Tests in other packages use it to keep hashing fast. Never use it in
// production code.
func NewPasswordServiceForTest(cost int) *PasswordService {
	return &PasswordService{cost: cost}
}

// Hash returns the bcrypt hash of plaintext, ready to store as-is.
// Plaintexts over 72 bytes are rejected rather than silently truncated.
func (p *PasswordService) Hash(plaintext string) (string, error) {
	if len(plaintext) > 72 {
		return "", fmt.Errorf("auth: password must be 72 bytes or fewer")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), p.cost)
	if err != nil {
		return "", fmt.Errorf("auth: hashing password: %w", err)
	}

	return string(hashed), nil
}

// Verify returns nil when plaintext matches hash and ErrPasswordMismatch
// when it does not. Any other error means the stored hash is unusable.
func (p *PasswordService) Verify(hash, plaintext string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrPasswordMismatch
		}
		return fmt.Errorf("auth: comparing password hash: %w", err)
	}
	return nil
}

// VerifyNothing burns the same bcrypt work as a real Verify against a fixed
// hash and discards the result.
//
// Login calls it when the username does not exist so that "no such user" and
// "wrong password" take the same time and cannot be told apart by a stopwatch.
func (p *PasswordService) VerifyNothing(plaintext string) {
	p.dummyOnce.Do(func() {
		p.dummyHash, _ = bcrypt.GenerateFromPassword([]byte("tasktracker-dummy-password"), p.cost)
	})
	_ = bcrypt.CompareHashAndPassword(p.dummyHash, []byte(plaintext))
}

// RandomHash hashes 16 bytes of fresh randomness.
//
// Accounts created through Google sign-in get one of these as their stored
// password: nobody knows the plaintext, so password login for them always fails
// until the owner sets a password explicitly.
func (p *PasswordService) RandomHash() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("auth: reading random bytes: %w", err)
	}
	return p.Hash(base64.RawURLEncoding.EncodeToString(buf))
}
