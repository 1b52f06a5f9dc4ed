// Package service — authentication business logic.
//
// AuthService is the business logic layer for authentication. It sits between
// the HTTP handlers and the repository/auth utilities:
//
//	AuthHandler (HTTP) → AuthService (business rules) → UserRepository (DB)
//	                   ↘ TokenService (JWT), PasswordService (bcrypt)
//
// KEY RESPONSIBILITIES:
//   - Register users with a bcrypt hash, never the plaintext
//   - Check username/password pairs without revealing which half was wrong
//   - Record logins and issue/verify identity tokens
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/messagely/internal/apperror"
	"github.com/sakif/messagely/internal/auth"
	"github.com/sakif/messagely/internal/model"
	"github.com/sakif/messagely/internal/repository"
)

// AuthService handles the authentication business logic.
//
// DEPENDENCIES (injected via NewAuthService):
//   - users      repository.UserRepository  → read/write user records
//   - tokens     *auth.TokenService         → generate/validate JWTs
//   - passwords  *auth.PasswordService      → bcrypt hashing at the configured cost
//   - logger     *slog.Logger               → structured logging
type AuthService struct {
	users     repository.UserRepository
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	logger    *slog.Logger
	now       Clock
}

// NewAuthService creates an AuthService with all required dependencies.
// Call this in server.go when wiring the dependency graph.
func NewAuthService(
	users repository.UserRepository,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:     users,
		tokens:    tokens,
		passwords: passwords,
		logger:    logger,
		now:       SystemClock,
	}
}

// RegisterInput is everything a new account needs. All fields are required.
type RegisterInput struct {
	Username  string `json:"username"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone"`
}

// validate trims the free-text fields and reports the first missing one.
// The password is left exactly as typed.
func (in *RegisterInput) validate() error {
	in.Username = strings.TrimSpace(in.Username)
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.Phone = strings.TrimSpace(in.Phone)

	required := []struct{ field, value string }{
		{"username", in.Username},
		{"password", in.Password},
		{"first_name", in.FirstName},
		{"last_name", in.LastName},
		{"phone", in.Phone},
	}
	for _, r := range required {
		if r.value == "" {
			return apperror.ValidationFailed(r.field, r.field+" is required")
		}
	}

	if len(in.Password) > auth.MaxPasswordBytes {
		return apperror.ValidationFailed("password",
			fmt.Sprintf("password must be %d bytes or fewer", auth.MaxPasswordBytes))
	}
	return nil
}

// Register creates a new user and returns its public profile.
//
// join_at and last_login_at both start at the registration time. A taken
// username surfaces as apperror.ErrConflict from the store and the existing
// record is left untouched.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*model.UserProfile, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	hash, err := s.passwords.HashContext(ctx, in.Password)
	if err != nil {
		return nil, fmt.Errorf("service/auth: hashing password for %s: %w", in.Username, err)
	}

	now := s.now()
	user := &model.User{
		Username:     in.Username,
		PasswordHash: hash,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Phone:        in.Phone,
		JoinAt:       now,
		LastLoginAt:  now,
	}

	if err := s.users.CreateUser(ctx, user); err != nil {
		if !errors.Is(err, apperror.ErrConflict) {
			s.logger.Error("failed to register user",
				slog.String("username", in.Username),
				slog.String("error", err.Error()),
			)
		}
		return nil, fmt.Errorf("service/auth: registering %s: %w", in.Username, err)
	}

	s.logger.Info("user registered", slog.String("username", user.Username))
	return user.Profile(), nil
}

// Authenticate reports whether password matches the stored hash for
// username. An unknown username is simply false, the same answer as a
// wrong password. Store failures are returned as errors, never as false.
//
// Authenticate does not touch last_login_at; Login does that.
func (s *AuthService) Authenticate(ctx context.Context, username, password string) (bool, error) {
	hash, found, err := s.users.GetPasswordHash(ctx, username)
	if err != nil {
		return false, fmt.Errorf("service/auth: looking up %s: %w", username, err)
	}
	if !found {
		return false, nil
	}

	if err := s.passwords.VerifyContext(ctx, hash, password); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			return false, nil
		}
		return false, fmt.Errorf("service/auth: verifying password for %s: %w", username, err)
	}
	return true, nil
}

// UpdateLoginTimestamp sets last_login_at to now.
// Returns apperror.ErrNotFound if the user does not exist.
func (s *AuthService) UpdateLoginTimestamp(ctx context.Context, username string) (*model.LoginStamp, error) {
	now := s.now()
	if err := s.users.TouchLogin(ctx, username, now); err != nil {
		return nil, fmt.Errorf("service/auth: recording login for %s: %w", username, err)
	}
	return &model.LoginStamp{Username: username, LastLoginAt: now}, nil
}

// Login checks the credentials, records the login and returns a token.
// Bad credentials yield apperror.ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, username, password string) (string, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return "", apperror.ValidationFailed("username", "username is required")
	}
	if password == "" {
		return "", apperror.ValidationFailed("password", "password is required")
	}

	ok, err := s.Authenticate(ctx, username, password)
	if err != nil {
		return "", err
	}
	if !ok {
		s.logger.Info("login rejected", slog.String("username", username))
		return "", apperror.InvalidCredentials()
	}

	if _, err := s.UpdateLoginTimestamp(ctx, username); err != nil {
		return "", err
	}

	s.logger.Info("user logged in", slog.String("username", username))
	return s.IssueToken(username)
}

// RegisterAndLogin registers the user and, only once the record is
// persisted, issues their first token.
func (s *AuthService) RegisterAndLogin(ctx context.Context, in RegisterInput) (string, error) {
	profile, err := s.Register(ctx, in)
	if err != nil {
		return "", err
	}
	return s.IssueToken(profile.Username)
}

// IssueToken mints a signed token naming username.
func (s *AuthService) IssueToken(username string) (string, error) {
	token, err := s.tokens.Generate(username)
	if err != nil {
		return "", fmt.Errorf("service/auth: generating token for %s: %w", username, err)
	}
	return token, nil
}

// The Authorizer's route guards verify tokens through AuthService.
var _ auth.TokenVerifier = (*AuthService)(nil)

// VerifyToken validates a token and returns the username it encodes.
// Any failure is reported as apperror.ErrUnauthorized.
func (s *AuthService) VerifyToken(token string) (string, error) {
	username, err := s.tokens.Validate(token)
	if err != nil {
		s.logger.Debug("token rejected", slog.String("error", err.Error()))
		return "", apperror.Unauthorized("invalid or missing token")
	}
	return username, nil
}
