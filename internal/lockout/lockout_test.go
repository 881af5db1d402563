package lockout

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewRedisStore(client), mr
}

// storeFactories runs the same policy tests against both backends.
func storeFactories(t *testing.T) map[string]func() Store {
	return map[string]func() Store{
		"memory": func() Store { return NewMemoryStore() },
		"redis": func() Store {
			s, _ := newRedisStore(t)
			return s
		},
	}
}

func newTestGuard(store Store, now *time.Time) *Guard {
	g := NewGuard(store, 3, 10*time.Minute)
	g.now = func() time.Time { return *now }
	return g
}

func TestGuard_LocksAfterThreshold(t *testing.T) {
	for name, mk := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
			g := newTestGuard(mk(), &now)

			for i := 1; i <= 2; i++ {
				require.NoError(t, g.Check(ctx, "jane"))
				st, err := g.Fail(ctx, "jane")
				require.NoError(t, err)
				assert.Equal(t, i, st.FailedCount)
				assert.False(t, st.Locked(now))
			}

			st, err := g.Fail(ctx, "jane")
			require.NoError(t, err)
			assert.True(t, st.Locked(now))
			assert.ErrorIs(t, g.Check(ctx, "jane"), ErrLocked)

			// Other keys are unaffected.
			assert.NoError(t, g.Check(ctx, "john"))
		})
	}
}

func TestGuard_LockExpires(t *testing.T) {
	for name, mk := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
			g := newTestGuard(mk(), &now)

			for i := 0; i < 3; i++ {
				_, err := g.Fail(ctx, "jane")
				require.NoError(t, err)
			}
			require.ErrorIs(t, g.Check(ctx, "jane"), ErrLocked)

			now = now.Add(11 * time.Minute)
			require.NoError(t, g.Check(ctx, "jane"))

			// Count restarted: one more failure must not relock.
			st, err := g.Fail(ctx, "jane")
			require.NoError(t, err)
			assert.Equal(t, 1, st.FailedCount)
			assert.NoError(t, g.Check(ctx, "jane"))
		})
	}
}

func TestGuard_ResetClears(t *testing.T) {
	for name, mk := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
			g := newTestGuard(mk(), &now)

			_, _ = g.Fail(ctx, "jane")
			_, _ = g.Fail(ctx, "jane")
			require.NoError(t, g.Reset(ctx, "jane"))

			st, err := g.Fail(ctx, "jane")
			require.NoError(t, err)
			assert.Equal(t, 1, st.FailedCount)
		})
	}
}

func TestNewGuard_Defaults(t *testing.T) {
	g := NewGuard(NewMemoryStore(), 0, 0)
	assert.Equal(t, DefaultThreshold, g.threshold)
	assert.Equal(t, DefaultWindow, g.window)
}

func TestMemoryStore_WindowRestartsCount(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	_, _ = m.RecordFailure(ctx, "jane", now, 3, time.Minute)
	_, _ = m.RecordFailure(ctx, "jane", now, 3, time.Minute)

	st, err := m.RecordFailure(ctx, "jane", now.Add(2*time.Minute), 3, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, st.FailedCount)
}

func TestMemoryStore_Sweep(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	_, _ = m.RecordFailure(ctx, "old", now, 5, time.Minute)
	_, _ = m.RecordFailure(ctx, "fresh", now.Add(5*time.Minute), 5, time.Minute)

	removed := m.Sweep(now.Add(5 * time.Minute))
	assert.Equal(t, 1, removed)

	st, _ := m.Get(ctx, "fresh")
	assert.Equal(t, 1, st.FailedCount)
	st, _ = m.Get(ctx, "old")
	assert.Zero(t, st.FailedCount)
}

func TestRedisStore_KeyLayout(t *testing.T) {
	ctx := context.Background()
	s, mr := newRedisStore(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	_, err := s.RecordFailure(ctx, "jane", now, 2, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "1", mr.HGet("auth:lockout:jane", "failed_count"))
	assert.Equal(t, time.Minute, mr.TTL("auth:lockout:jane"))

	st, err := s.RecordFailure(ctx, "jane", now, 2, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, now.Add(time.Minute), st.LockedUntil)
	assert.NotEmpty(t, mr.HGet("auth:lockout:jane", "locked_until"))

	require.NoError(t, s.Clear(ctx, "jane"))
	assert.False(t, mr.Exists("auth:lockout:jane"))
}
