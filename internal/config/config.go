// Package config loads runtime settings from a YAML file and the environment.
//
// Resolution order (cleanenv): env-default → YAML file at CONFIG_PATH (if
// set) → environment variables. The JWT secret has no default: startup
// fails without it.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Env      string `yaml:"env" env:"ENV" env-default:"local"`
	LogLevel string `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`
	DBPath   string `yaml:"db_path" env:"DB_PATH" env-default:"data/tasktracker.db"`

	HTTP      HTTP      `yaml:"http"`
	Auth      Auth      `yaml:"auth"`
	Google    Google    `yaml:"google"`
	Redis     Redis     `yaml:"redis"`
	RateLimit RateLimit `yaml:"rate_limit"`
	Lockout   Lockout   `yaml:"lockout"`
}

type HTTP struct {
	Port         string        `yaml:"port" env:"PORT" env-default:"8080"`
	ReadTimeout  time.Duration `yaml:"read_timeout" env:"HTTP_READ_TIMEOUT" env-default:"15s"`
	WriteTimeout time.Duration `yaml:"write_timeout" env:"HTTP_WRITE_TIMEOUT" env-default:"30s"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" env:"HTTP_IDLE_TIMEOUT" env-default:"60s"`
}

type Auth struct {
	// JWTSecret may also come from the file named by JWTSecretFile
	// (Docker/Kubernetes secrets).
	JWTSecret     string        `yaml:"jwt_secret" env:"JWT_SECRET"`
	JWTSecretFile string        `yaml:"jwt_secret_file" env:"JWT_SECRET_FILE"`
	Algorithm     string        `yaml:"algorithm" env:"JWT_ALGORITHM" env-default:"HS256"`
	TokenTTL      time.Duration `yaml:"token_ttl" env:"TOKEN_TTL" env-default:"20m"`

	// CookieSecure sets the Secure flag on the access_token cookie. Turn it
	// on anywhere the app is served over HTTPS.
	CookieSecure bool `yaml:"cookie_secure" env:"COOKIE_SECURE" env-default:"false"`

	// OpenAdminRegistration lets POST /auth/ create admin accounts. Off by
	// default: the role field is then forced to "user".
	OpenAdminRegistration bool `yaml:"open_admin_registration" env:"OPEN_ADMIN_REGISTRATION" env-default:"false"`

	BcryptCost int `yaml:"bcrypt_cost" env:"BCRYPT_COST" env-default:"12"`
}

type Google struct {
	ClientID     string        `yaml:"client_id" env:"GOOGLE_CLIENT_ID"`
	ClientSecret string        `yaml:"client_secret" env:"GOOGLE_CLIENT_SECRET"`
	RedirectURL  string        `yaml:"redirect_url" env:"GOOGLE_REDIRECT_URI" env-default:"http://localhost:8080/auth/google/callback"`
	AuthURL      string        `yaml:"auth_url" env:"GOOGLE_AUTH_URL"`
	TokenURL     string        `yaml:"token_url" env:"GOOGLE_TOKEN_URL"`
	UserInfoURL  string        `yaml:"userinfo_url" env:"GOOGLE_USERINFO_URL"`
	Timeout      time.Duration `yaml:"timeout" env:"GOOGLE_TIMEOUT" env-default:"10s"`
	LandingPath  string        `yaml:"landing_path" env:"LOGIN_LANDING_PATH" env-default:"/todos/"`
}

// Redis is optional. Empty URL keeps lockout state in memory.
type Redis struct {
	URL string `yaml:"url" env:"REDIS_URL"`
}

type RateLimit struct {
	// AuthPerMinute is the per-client-IP budget for /auth/* routes.
	AuthPerMinute int `yaml:"auth_per_minute" env:"AUTH_RATE_PER_MINUTE" env-default:"30"`
	AuthBurst     int `yaml:"auth_burst" env:"AUTH_RATE_BURST" env-default:"10"`
}

type Lockout struct {
	Threshold int           `yaml:"threshold" env:"LOCKOUT_THRESHOLD" env-default:"5"`
	Window    time.Duration `yaml:"window" env:"LOCKOUT_WINDOW" env-default:"15m"`
}

// Load reads configuration. If CONFIG_PATH is set the YAML file must exist;
// environment variables override it either way.
func Load() (*Config, error) {
	var cfg Config

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config: %s: %w", path, err)
		}
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("config: reading %s: %w", path, err)
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("config: reading environment: %w", err)
	}

	if err := cfg.resolveSecret(); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) resolveSecret() error {
	if c.Auth.JWTSecret != "" || c.Auth.JWTSecretFile == "" {
		return nil
	}
	b, err := os.ReadFile(c.Auth.JWTSecretFile)
	if err != nil {
		return fmt.Errorf("config: reading JWT secret file: %w", err)
	}
	c.Auth.JWTSecret = strings.TrimSpace(string(b))
	return nil
}

func (c *Config) validate() error {
	if c.Auth.JWTSecret == "" {
		return errors.New("config: JWT_SECRET (or JWT_SECRET_FILE) is required")
	}
	if c.Auth.TokenTTL <= 0 {
		return errors.New("config: TOKEN_TTL must be positive")
	}
	if c.Google.Timeout <= 0 {
		return errors.New("config: GOOGLE_TIMEOUT must be positive")
	}
	return nil
}

// IsLocal reports whether the process runs in the developer environment.
func (c *Config) IsLocal() bool {
	return c.Env == "local"
}

// String renders the config with secrets masked, for the startup log.
func (c *Config) String() string {
	return fmt.Sprintf(
		"env=%s db=%s port=%s jwt_alg=%s token_ttl=%s jwt_secret=%s google_client=%s redis=%t lockout=%d/%s",
		c.Env,
		c.DBPath,
		c.HTTP.Port,
		c.Auth.Algorithm,
		c.Auth.TokenTTL,
		mask(c.Auth.JWTSecret),
		mask(c.Google.ClientID),
		c.Redis.URL != "",
		c.Lockout.Threshold,
		c.Lockout.Window,
	)
}

func mask(s string) string {
	if s == "" {
		return "<unset>"
	}
	return "****"
}
