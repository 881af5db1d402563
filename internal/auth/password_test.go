package auth

import (
	"errors"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

// newTestPasswordService uses bcrypt's minimum cost so tests stay fast.
func newTestPasswordService() *PasswordService {
	return NewPasswordServiceForTest(bcrypt.MinCost)
}

func TestHash_Format(t *testing.T) {
	ps := newTestPasswordService()

	hash, err := ps.Hash("my-secret-password")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	if !strings.HasPrefix(hash, "$2") {
		t.Errorf("Hash() = %q, not a bcrypt hash", hash)
	}
	if strings.Contains(hash, "my-secret-password") {
		t.Error("hash contains the plaintext")
	}
}

func TestHash_SaltedPerCall(t *testing.T) {
	ps := newTestPasswordService()

	h1, _ := ps.Hash("same-password")
	h2, _ := ps.Hash("same-password")
	if h1 == h2 {
		t.Fatal("two hashes of one password are identical")
	}

	// Both must still verify.
	for _, h := range []string{h1, h2} {
		if err := ps.Verify(h, "same-password"); err != nil {
			t.Errorf("Verify() error = %v", err)
		}
	}
}

func TestHash_LengthLimit(t *testing.T) {
	ps := newTestPasswordService()

	if _, err := ps.Hash(strings.Repeat("a", 72)); err != nil {
		t.Errorf("72 bytes rejected: %v", err)
	}
	// bcrypt would truncate at 72 bytes; Hash refuses instead.
	if _, err := ps.Hash(strings.Repeat("a", 73)); err == nil {
		t.Error("73 bytes accepted")
	}
	// Length is bytes, not runes.
	if _, err := ps.Hash(strings.Repeat("é", 37)); err == nil {
		t.Error("74-byte multibyte password accepted")
	}
}

func TestVerify(t *testing.T) {
	ps := newTestPasswordService()
	hash, err := ps.Hash("correct-horse-battery-staple")
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name         string
		hash         string
		password     string
		wantErr      bool
		wantMismatch bool
	}{
		{"correct", hash, "correct-horse-battery-staple", false, false},
		{"wrong", hash, "correct-horse-battery-stapler", true, true},
		{"empty", hash, "", true, true},
		{"corrupt hash", "not-a-valid-bcrypt-hash", "password", true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ps.Verify(tt.hash, tt.password)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Verify() error = %v, wantErr %v", err, tt.wantErr)
			}
			if errors.Is(err, ErrPasswordMismatch) != tt.wantMismatch {
				t.Errorf("errors.Is(err, ErrPasswordMismatch) = %v, want %v", !tt.wantMismatch, tt.wantMismatch)
			}
		})
	}
}

func TestHashVerify_RoundTrip(t *testing.T) {
	ps := newTestPasswordService()

	for _, pw := range []string{"hello123", "p@$$w0rd!#%", "пароль-密码", "  padded  ", " "} {
		hash, err := ps.Hash(pw)
		if err != nil {
			t.Fatalf("Hash(%q) error = %v", pw, err)
		}
		if err := ps.Verify(hash, pw); err != nil {
			t.Errorf("Verify(%q) error = %v", pw, err)
		}
	}
}

func TestRandomHash_IsUsableBcryptAndUnique(t *testing.T) {
	ps := newTestPasswordService()

	h1, err := ps.RandomHash()
	if err != nil {
		t.Fatalf("RandomHash() error = %v", err)
	}
	h2, _ := ps.RandomHash()

	if !strings.HasPrefix(h1, "$2") {
		t.Errorf("RandomHash() does not look like a bcrypt hash: %q", h1)
	}
	if h1 == h2 {
		t.Error("RandomHash() returned the same hash twice")
	}

	for _, guess := range []string{"", "password", "user"} {
		if err := ps.Verify(h1, guess); err == nil {
			t.Errorf("Verify(randomHash, %q) succeeded", guess)
		}
	}
}

func TestVerifyNothing_BuildsDummyOnce(t *testing.T) {
	ps := newTestPasswordService()

	ps.VerifyNothing("anything")
	first := string(ps.dummyHash)
	ps.VerifyNothing("")

	if first == "" {
		t.Fatal("dummy hash was not initialised")
	}
	if string(ps.dummyHash) != first {
		t.Error("dummy hash rebuilt on second call")
	}
}

func TestNewPasswordServiceWithCost_ClampsToDefault(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{4, 4},
		{10, 10},
		{0, defaultCost},
		{3, defaultCost},
		{32, defaultCost},
	}
	for _, tt := range tests {
		if got := NewPasswordServiceWithCost(tt.in).cost; got != tt.want {
			t.Errorf("NewPasswordServiceWithCost(%d).cost = %d, want %d", tt.in, got, tt.want)
		}
	}
}
