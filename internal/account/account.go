// Package account is the credential store: registration, login and password
// changes over bcrypt hashes kept in storage.
package account

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/fenggwsx/SportChat/internal/apperr"
	"github.com/fenggwsx/SportChat/internal/auth"
	"github.com/fenggwsx/SportChat/internal/storage"
	"github.com/fenggwsx/SportChat/internal/validation"
)

// UserStore is the part of storage.Store the credential store needs.
type UserStore interface {
	CreateUser(ctx context.Context, user *storage.User) error
	GetUserByUsername(ctx context.Context, username string) (*storage.User, error)
	GetUserByID(ctx context.Context, id int64) (*storage.User, error)
	UpdatePassword(ctx context.Context, id int64, hash string) error
}

// Service registers and authenticates users.
type Service struct {
	store     UserStore
	validator *validation.Validator
	hashCost  int
}

// Option configures a Service.
type Option func(*Service)

// WithHashCost overrides the bcrypt cost.
func WithHashCost(cost int) Option {
	return func(s *Service) { s.hashCost = cost }
}

// NewService returns a credential store backed by store.
func NewService(store UserStore, validator *validation.Validator, opts ...Option) *Service {
	s := &Service{store: store, validator: validator}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type registration struct {
	Username string `json:"username" validate:"required,max=255"`
	Password string `json:"password" validate:"required"`
}

// Register creates a user and returns its id.
func (s *Service) Register(ctx context.Context, username, password string) (int64, error) {
	username = strings.TrimSpace(username)
	if err := s.validator.Check(registration{Username: username, Password: password}); err != nil {
		return 0, err
	}
	if len(password) < auth.MinPasswordLength {
		return 0, apperr.ErrWeakCredential
	}

	if _, err := s.store.GetUserByUsername(ctx, username); err == nil {
		return 0, apperr.ErrDuplicateUser
	} else if !errors.Is(err, storage.ErrNotFound) {
		return 0, err
	}

	hashed, err := s.hash(password)
	if err != nil {
		return 0, err
	}

	user := &storage.User{
		Username:  username,
		Password:  hashed,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return 0, apperr.ErrDuplicateUser
		}
		return 0, err
	}

	log.Info().Str("component", "account").Str("user", user.Username).Int64("id", user.ID).Msg("register success")
	return user.ID, nil
}

// Login verifies credentials and returns the matching user. Unknown usernames
// fail with ErrUserNotFound and wrong passwords with ErrInvalidCredential;
// callers facing users should not tell the two apart.
func (s *Service) Login(ctx context.Context, username, password string) (*storage.User, error) {
	username = strings.TrimSpace(username)
	if err := s.validator.CheckFields(
		validation.Field{Name: "username", Value: username, Rules: "required"},
		validation.Field{Name: "password", Value: password, Rules: "required"},
	); err != nil {
		return nil, err
	}

	user, err := s.store.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperr.ErrUserNotFound
		}
		return nil, err
	}

	if err := auth.ComparePassword(user.Password, password); err != nil {
		return nil, apperr.ErrInvalidCredential
	}

	log.Info().Str("component", "account").Str("user", user.Username).Int64("id", user.ID).Msg("login success")
	return withoutHash(user), nil
}

// ChangePassword replaces the password after verifying the current one.
func (s *Service) ChangePassword(ctx context.Context, userID int64, currentPassword, newPassword string) error {
	if err := s.validator.CheckFields(
		validation.Field{Name: "user_id", Value: userID, Rules: "gt=0"},
		validation.Field{Name: "current_password", Value: currentPassword, Rules: "required"},
		validation.Field{Name: "new_password", Value: newPassword, Rules: "required"},
	); err != nil {
		return err
	}
	if len(newPassword) < auth.MinPasswordLength {
		return apperr.ErrWeakCredential
	}

	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return apperr.ErrUserNotFound
		}
		return err
	}
	if err := auth.ComparePassword(user.Password, currentPassword); err != nil {
		return apperr.ErrInvalidCredential
	}

	hashed, err := s.hash(newPassword)
	if err != nil {
		return err
	}
	if err := s.store.UpdatePassword(ctx, userID, hashed); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return apperr.ErrUserNotFound
		}
		return err
	}
	log.Info().Str("component", "account").Int64("id", userID).Msg("password changed")
	return nil
}

// GetUserInfo returns the user without its password hash.
func (s *Service) GetUserInfo(ctx context.Context, userID int64) (*storage.User, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperr.ErrUserNotFound
		}
		return nil, err
	}
	return withoutHash(user), nil
}

// UserExists reports whether userID refers to a stored user.
func (s *Service) UserExists(ctx context.Context, userID int64) (bool, error) {
	if userID <= 0 {
		return false, nil
	}
	_, err := s.store.GetUserByID(ctx, userID)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	return false, err
}

func (s *Service) hash(password string) (string, error) {
	if s.hashCost > 0 {
		return auth.HashPasswordCost(password, s.hashCost)
	}
	return auth.HashPassword(password)
}

func withoutHash(user *storage.User) *storage.User {
	clone := *user
	clone.Password = ""
	return &clone
}
