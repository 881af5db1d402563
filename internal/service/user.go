package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/tasktracker/internal/apperror"
	"github.com/sakif/tasktracker/internal/auth"
	"github.com/sakif/tasktracker/internal/model"
	"github.com/sakif/tasktracker/internal/repository"
)

// ChangePasswordInput is the body of PUT /users/password.
type ChangePasswordInput struct {
	Password    string `json:"password" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=6,max=72"`
}

// UserService manages the signed-in user's own profile.
type UserService struct {
	users     repository.UserRepository
	passwords *auth.PasswordService
	logger    *slog.Logger
}

func NewUserService(users repository.UserRepository, passwords *auth.PasswordService, logger *slog.Logger) *UserService {
	return &UserService{users: users, passwords: passwords, logger: logger}
}

// Me returns the user behind a token.
func (s *UserService) Me(ctx context.Context, userID string) (*model.User, error) {
	if userID == "" {
		return nil, apperror.Unauthorized(LoginFailedMessage)
	}
	return s.users.GetByID(ctx, userID)
}

// ChangePassword requires the current password, even for accounts created
// through Google (whose current password nobody knows, so they cannot use it).
func (s *UserService) ChangePassword(ctx context.Context, userID string, in ChangePasswordInput) error {
	if err := validateInput(in); err != nil {
		return err
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}

	if err := s.passwords.Verify(user.PasswordHash, in.Password); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			return apperror.Unauthorized("Error on password change")
		}
		return fmt.Errorf("service/user: verifying password: %w", err)
	}

	hash, err := s.passwords.Hash(in.NewPassword)
	if err != nil {
		return fmt.Errorf("service/user: hashing password: %w", err)
	}

	if err := s.users.UpdatePassword(ctx, userID, hash); err != nil {
		return fmt.Errorf("service/user: saving password: %w", err)
	}

	s.logger.Info("password changed", slog.String("userID", userID))
	return nil
}

func (s *UserService) ChangePhoneNumber(ctx context.Context, userID, phone string) error {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return apperror.ValidationFailed("phone_number", "phone_number is required")
	}
	if len(phone) > 20 {
		return apperror.ValidationFailed("phone_number", "phone_number must be at most 20 characters")
	}
	return s.users.UpdatePhoneNumber(ctx, userID, phone)
}

func (s *UserService) ChangeAddress(ctx context.Context, userID, address string) error {
	address = strings.TrimSpace(address)
	if address == "" {
		return apperror.ValidationFailed("address", "address is required")
	}
	if len(address) > 200 {
		return apperror.ValidationFailed("address", "address must be at most 200 characters")
	}
	return s.users.UpdateAddress(ctx, userID, address)
}
