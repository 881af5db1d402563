// Package lockout throttles password guessing against a single username.
//
// After Threshold failed logins within Window the username is locked for
// Window. A successful login clears the counter. The key is the submitted
// username, so unknown usernames lock exactly like real ones.
package lockout

import (
	"context"
	"errors"
	"time"
)

// ErrLocked is returned by Guard.Check while a key is locked.
var ErrLocked = errors.New("lockout: too many failed attempts")

// Defaults used when config leaves the policy at zero.
const (
	DefaultThreshold = 5
	DefaultWindow    = 15 * time.Minute
)

// State is the stored failure record for one key.
type State struct {
	FailedCount int
	LockedUntil time.Time
}

// Locked reports whether the lock is still in force at now.
func (s State) Locked(now time.Time) bool {
	return !s.LockedUntil.IsZero() && now.Before(s.LockedUntil)
}

// Store persists failure state. Implementations must make RecordFailure
// atomic per key.
type Store interface {
	Get(ctx context.Context, key string) (State, error)
	RecordFailure(ctx context.Context, key string, now time.Time, threshold int, window time.Duration) (State, error)
	Clear(ctx context.Context, key string) error
}

// Guard applies the lockout policy on top of a Store.
type Guard struct {
	store     Store
	threshold int
	window    time.Duration
	now       func() time.Time
}

func NewGuard(store Store, threshold int, window time.Duration) *Guard {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &Guard{store: store, threshold: threshold, window: window, now: time.Now}
}

// Check returns ErrLocked while key is locked. An expired lock is cleared so
// the next failure starts a fresh count.
func (g *Guard) Check(ctx context.Context, key string) error {
	st, err := g.store.Get(ctx, key)
	if err != nil {
		return err
	}
	now := g.now()
	if st.Locked(now) {
		return ErrLocked
	}
	if !st.LockedUntil.IsZero() {
		return g.store.Clear(ctx, key)
	}
	return nil
}

// Fail records one failed attempt and returns the updated state.
func (g *Guard) Fail(ctx context.Context, key string) (State, error) {
	return g.store.RecordFailure(ctx, key, g.now(), g.threshold, g.window)
}

// Reset forgets all failures for key.
func (g *Guard) Reset(ctx context.Context, key string) error {
	return g.store.Clear(ctx, key)
}
