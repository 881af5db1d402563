package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// unsetEnv removes keys for the duration of the test. t.Setenv registers the
// restore; an empty value would still count as "set" for cleanenv.
func unsetEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}
}

func TestLoad_FromEnvDefaults(t *testing.T) {
	unsetEnv(t, "CONFIG_PATH", "ENV", "PORT", "JWT_ALGORITHM", "TOKEN_TTL", "GOOGLE_TIMEOUT",
		"LOGIN_LANDING_PATH", "COOKIE_SECURE", "OPEN_ADMIN_REGISTRATION", "LOCKOUT_THRESHOLD", "LOCKOUT_WINDOW")
	t.Setenv("JWT_SECRET", "env-secret-at-least-16")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "local", cfg.Env)
	assert.True(t, cfg.IsLocal())
	assert.Equal(t, "8080", cfg.HTTP.Port)
	assert.Equal(t, "HS256", cfg.Auth.Algorithm)
	assert.Equal(t, 20*time.Minute, cfg.Auth.TokenTTL)
	assert.Equal(t, 10*time.Second, cfg.Google.Timeout)
	assert.Equal(t, "/todos/", cfg.Google.LandingPath)
	assert.False(t, cfg.Auth.CookieSecure)
	assert.False(t, cfg.Auth.OpenAdminRegistration)
	assert.Equal(t, 5, cfg.Lockout.Threshold)
	assert.Equal(t, 15*time.Minute, cfg.Lockout.Window)
}

func TestLoad_MissingSecret(t *testing.T) {
	unsetEnv(t, "CONFIG_PATH", "JWT_SECRET", "JWT_SECRET_FILE")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")
}

func TestLoad_SecretFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "jwt")
	require.NoError(t, os.WriteFile(path, []byte("file-secret-at-least-16\n"), 0o600))

	unsetEnv(t, "CONFIG_PATH", "JWT_SECRET")
	t.Setenv("JWT_SECRET_FILE", path)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "file-secret-at-least-16", cfg.Auth.JWTSecret)
}

func TestLoad_YAMLWithEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
env: prod
db_path: /var/lib/tasktracker.db
http:
  port: "9090"
auth:
  jwt_secret: yaml-secret-at-least-16
  token_ttl: 5m
  cookie_secure: true
google:
  client_id: abc
  client_secret: def
lockout:
  threshold: 3
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	unsetEnv(t, "ENV", "DB_PATH", "JWT_SECRET", "JWT_SECRET_FILE", "TOKEN_TTL", "COOKIE_SECURE",
		"GOOGLE_CLIENT_ID", "GOOGLE_CLIENT_SECRET", "LOCKOUT_THRESHOLD")
	t.Setenv("CONFIG_PATH", path)
	t.Setenv("PORT", "7070")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "prod", cfg.Env)
	assert.False(t, cfg.IsLocal())
	assert.Equal(t, "/var/lib/tasktracker.db", cfg.DBPath)
	assert.Equal(t, "7070", cfg.HTTP.Port, "env overrides yaml")
	assert.Equal(t, "yaml-secret-at-least-16", cfg.Auth.JWTSecret)
	assert.Equal(t, 5*time.Minute, cfg.Auth.TokenTTL)
	assert.True(t, cfg.Auth.CookieSecure)
	assert.Equal(t, "abc", cfg.Google.ClientID)
	assert.Equal(t, 3, cfg.Lockout.Threshold)
}

func TestLoad_MissingConfigFile(t *testing.T) {
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "nope.yaml"))

	_, err := Load()
	require.Error(t, err)
}

func TestString_MasksSecrets(t *testing.T) {
	cfg := &Config{Auth: Auth{JWTSecret: "super-secret-value"}}
	s := cfg.String()
	assert.NotContains(t, s, "super-secret-value")
	assert.Contains(t, s, "jwt_secret=****")
}
