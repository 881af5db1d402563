package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sakif/tasktracker/internal/apperror"
	"github.com/sakif/tasktracker/internal/auth"
	"github.com/sakif/tasktracker/internal/lockout"
	"github.com/sakif/tasktracker/internal/metrics"
	"github.com/sakif/tasktracker/internal/model"
	"github.com/sakif/tasktracker/internal/repository"
)

// ErrUsernameUnavailable means every candidate username derived from a
// Google profile was taken.
var ErrUsernameUnavailable = errors.New("service/auth: no free username for external account")

// LoginFailedMessage is the only message a failed password login ever
// produces, whatever the cause.
const LoginFailedMessage = "Could not validate user."

const (
	maxUsernameBase     = 30
	maxUsernameAttempts = 1000
	// createRetries bounds the find-or-create loop when concurrent
	// callbacks race on the same email or username.
	createRetries = 3
)

// AuthOptions carries the optional collaborators and policy knobs.
type AuthOptions struct {
	TokenTTL time.Duration
	// Lockout may be nil to disable per-username throttling.
	Lockout *lockout.Guard
	// Metrics may be nil.
	Metrics metrics.Recorder
	// OpenAdminRegistration allows self-registration with role "admin".
	OpenAdminRegistration bool
}

// AuthService handles the authentication business logic.
//
//	AuthHandler (HTTP) → AuthService (business rules) → UserRepository (DB)
//	                   ↘ TokenService (JWT), PasswordService (bcrypt), lockout.Guard
//
// It covers registration, password login behind the lockout guard, and
// Google sign-in (find or create by email). Nothing here knows about
// cookies, redirects or status codes.
type AuthService struct {
	users     repository.UserRepository
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	logger    *slog.Logger

	ttl        time.Duration
	guard      *lockout.Guard
	metrics    metrics.Recorder
	openAdmins bool
}

// NewAuthService creates an AuthService with all required dependencies.
func NewAuthService(
	users repository.UserRepository,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	logger *slog.Logger,
	opts AuthOptions,
) *AuthService {
	if opts.TokenTTL <= 0 {
		opts.TokenTTL = auth.DefaultTokenTTL
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.Nop{}
	}
	return &AuthService{
		users:      users,
		tokens:     tokens,
		passwords:  passwords,
		logger:     logger,
		ttl:        opts.TokenTTL,
		guard:      opts.Lockout,
		metrics:    opts.Metrics,
		openAdmins: opts.OpenAdminRegistration,
	}
}

// AuthResult bundles the user and the issued token so the handler can
// respond in one step.
type AuthResult struct {
	User  *model.User
	Token string
}

// RegisterInput is the body of POST /auth/.
type RegisterInput struct {
	Username    string `json:"username" validate:"required,max=50"`
	Email       string `json:"email" validate:"required,email"`
	FirstName   string `json:"first_name" validate:"max=100"`
	LastName    string `json:"last_name" validate:"max=100"`
	Password    string `json:"password" validate:"required,min=6,max=72"`
	Role        string `json:"role" validate:"omitempty,oneof=user admin"`
	PhoneNumber string `json:"phone_number" validate:"max=20"`
	Address     string `json:"address" validate:"max=200"`
}

// Register creates a password account.
//
// Unless admin self-registration is enabled the role is always "user",
// whatever the request asked for. A taken username or email comes back as
// apperror.ErrConflict without saying which one.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*model.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)

	if err := validateInput(in); err != nil {
		s.metrics.Registration(metrics.ResultFailure)
		return nil, err
	}

	role := model.RoleUser
	if s.openAdmins && in.Role == model.RoleAdmin {
		role = model.RoleAdmin
	}

	hash, err := s.passwords.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("service/auth: hashing password: %w", err)
	}

	user := &model.User{
		Username:     in.Username,
		Email:        in.Email,
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		PhoneNumber:  strings.TrimSpace(in.PhoneNumber),
		Address:      strings.TrimSpace(in.Address),
		PasswordHash: hash,
		Role:         role,
		IsActive:     true,
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			s.metrics.Registration(metrics.ResultConflict)
			return nil, apperror.Conflict("username or email")
		}
		s.metrics.Registration(metrics.ResultError)
		return nil, fmt.Errorf("service/auth: creating user: %w", err)
	}

	s.metrics.Registration(metrics.ResultCreated)
	s.logger.Info("user registered",
		slog.String("userID", user.ID),
		slog.String("username", user.Username),
		slog.String("role", user.Role),
	)

	return user, nil
}

// Authenticate checks a username/password pair.
//
// It returns (nil, nil) both when the username is unknown and when the
// password is wrong. Unknown usernames still pay for a bcrypt comparison so
// the two cases take the same time.
func (s *AuthService) Authenticate(ctx context.Context, username, password string) (*model.User, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			s.passwords.VerifyNothing(password)
			return nil, nil
		}
		return nil, fmt.Errorf("service/auth: looking up user: %w", err)
	}

	if err := s.passwords.Verify(user.PasswordHash, password); err != nil {
		if !errors.Is(err, auth.ErrPasswordMismatch) {
			// Corrupt stored hash. Still a failed login for the caller.
			s.logger.Error("stored password hash unusable",
				slog.String("userID", user.ID),
				slog.String("error", err.Error()),
			)
		}
		return nil, nil
	}

	return user, nil
}

// Login runs Authenticate behind the lockout guard and issues a token.
//
// Errors:
//   - apperror.ErrTooManyRequests while the username is locked out
//   - apperror.ErrUnauthorized with LoginFailedMessage for any bad credential
func (s *AuthService) Login(ctx context.Context, username, password string) (*AuthResult, error) {
	// Usernames are case-sensitive, so the lock bucket is too.
	key := strings.TrimSpace(username)

	if s.guard != nil {
		if err := s.guard.Check(ctx, key); err != nil {
			if errors.Is(err, lockout.ErrLocked) {
				s.metrics.LoginAttempt(metrics.ResultLocked)
				return nil, apperror.TooManyRequests("Too many failed login attempts. Try again later.")
			}
			// Lockout backend down: fail open, the password check still applies.
			s.logger.Error("lockout check failed", slog.String("error", err.Error()))
		}
	}

	user, err := s.Authenticate(ctx, username, password)
	if err != nil {
		s.metrics.LoginAttempt(metrics.ResultError)
		return nil, err
	}

	if user == nil {
		s.metrics.LoginAttempt(metrics.ResultFailure)
		s.recordFailure(ctx, key)
		return nil, apperror.Unauthorized(LoginFailedMessage)
	}

	if s.guard != nil {
		if err := s.guard.Reset(ctx, key); err != nil {
			s.logger.Error("lockout reset failed", slog.String("error", err.Error()))
		}
	}

	token, err := s.issue(user)
	if err != nil {
		return nil, err
	}

	s.metrics.LoginAttempt(metrics.ResultSuccess)
	s.logger.Info("user logged in", slog.String("userID", user.ID))

	return &AuthResult{User: user, Token: token}, nil
}

func (s *AuthService) recordFailure(ctx context.Context, key string) {
	if s.guard == nil {
		return
	}
	st, err := s.guard.Fail(ctx, key)
	if err != nil {
		s.logger.Error("recording failed login", slog.String("error", err.Error()))
		return
	}
	if !st.LockedUntil.IsZero() {
		s.logger.Warn("username locked out",
			slog.String("username", key),
			slog.Int("failedCount", st.FailedCount),
			slog.Time("lockedUntil", st.LockedUntil),
		)
	}
}

// CompleteExternalLogin finds or creates the account for a Google profile
// and issues a token for it.
//
// Existing accounts are matched by email and reused as-is; profile fields
// are not copied over. New accounts get a derived username (see
// resolveUsername), role "user" and an unusable random password.
func (s *AuthService) CompleteExternalLogin(ctx context.Context, profile *auth.GoogleProfile) (*AuthResult, error) {
	if profile == nil || profile.Email == "" {
		s.metrics.ExternalLogin(metrics.ResultFailure)
		return nil, auth.ErrNoEmailProvided
	}

	user, created, err := s.findOrCreateExternal(ctx, profile)
	if err != nil {
		s.metrics.ExternalLogin(metrics.ResultError)
		return nil, err
	}

	token, err := s.issue(user)
	if err != nil {
		s.metrics.ExternalLogin(metrics.ResultError)
		return nil, err
	}

	if created {
		s.metrics.ExternalLogin(metrics.ResultCreated)
	} else {
		s.metrics.ExternalLogin(metrics.ResultSuccess)
	}
	s.logger.Info("user authenticated via Google",
		slog.String("userID", user.ID),
		slog.String("username", user.Username),
		slog.Bool("created", created),
	)

	return &AuthResult{User: user, Token: token}, nil
}

func (s *AuthService) findOrCreateExternal(ctx context.Context, profile *auth.GoogleProfile) (*model.User, bool, error) {
	for attempt := 0; attempt < createRetries; attempt++ {
		existing, err := s.users.GetByEmail(ctx, profile.Email)
		if err == nil {
			return existing, false, nil
		}
		if !errors.Is(err, apperror.ErrNotFound) {
			return nil, false, fmt.Errorf("service/auth: looking up email: %w", err)
		}

		username, err := s.resolveUsername(ctx, baseUsername(profile))
		if err != nil {
			return nil, false, err
		}

		hash, err := s.passwords.RandomHash()
		if err != nil {
			return nil, false, fmt.Errorf("service/auth: generating password: %w", err)
		}

		user := &model.User{
			Username:     username,
			Email:        profile.Email,
			FirstName:    profile.GivenName,
			LastName:     profile.FamilyName,
			PasswordHash: hash,
			Role:         model.RoleUser,
			IsActive:     true,
		}

		err = s.users.Create(ctx, user)
		if err == nil {
			return user, true, nil
		}
		if !errors.Is(err, apperror.ErrConflict) {
			return nil, false, fmt.Errorf("service/auth: creating external user: %w", err)
		}
		// Lost a race for the email or the username. Look again.
		s.logger.Warn("external user create conflicted, retrying",
			slog.String("username", username),
			slog.Int("attempt", attempt+1),
		)
	}

	return nil, false, apperror.Conflict("username or email")
}

// resolveUsername returns base if it is free, else the first free base+N.
//
// With n users in the store at most n names can be taken, so n+1 candidates
// always contain a free one. The search is further capped at
// maxUsernameAttempts.
func (s *AuthService) resolveUsername(ctx context.Context, base string) (string, error) {
	count, err := s.users.Count(ctx)
	if err != nil {
		return "", fmt.Errorf("service/auth: counting users: %w", err)
	}

	limit := count + 1
	if limit > maxUsernameAttempts {
		limit = maxUsernameAttempts
	}

	for i := 0; i < limit; i++ {
		candidate := base
		if i > 0 {
			candidate = base + strconv.Itoa(i)
		}

		taken, err := s.users.UsernameExists(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("service/auth: checking username: %w", err)
		}
		if !taken {
			return candidate, nil
		}
	}

	return "", ErrUsernameUnavailable
}

// baseUsername picks the starting username for a Google profile: the email
// local part, else the display name squashed to lowercase, else "user".
func baseUsername(p *auth.GoogleProfile) string {
	local, _, _ := strings.Cut(p.Email, "@")
	if base := truncateRunes(strings.TrimSpace(local), maxUsernameBase); base != "" {
		return base
	}

	name := strings.ToLower(strings.Join(strings.Fields(p.Name), ""))
	if base := truncateRunes(name, maxUsernameBase); base != "" {
		return base
	}

	return "user"
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

func (s *AuthService) issue(user *model.User) (string, error) {
	token, err := s.tokens.Issue(user.Username, user.ID, user.Role, s.ttl)
	if err != nil {
		return "", fmt.Errorf("service/auth: issuing token for user %s: %w", user.ID, err)
	}
	return token, nil
}

// TokenTTL is the lifetime of tokens this service issues.
func (s *AuthService) TokenTTL() time.Duration {
	return s.ttl
}
