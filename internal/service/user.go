package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/messagely/internal/apperror"
	"github.com/sakif/messagely/internal/model"
	"github.com/sakif/messagely/internal/repository"
)

// UserService is the user directory: listings, profiles and per-user
// message boxes.
type UserService struct {
	repo   repository.UserRepository
	logger *slog.Logger
}

func NewUserService(repo repository.UserRepository, logger *slog.Logger) *UserService {
	return &UserService{repo: repo, logger: logger}
}

// All lists every user's profile snippet, ordered by username.
func (s *UserService) All(ctx context.Context) ([]model.ProfileSnippet, error) {
	users, err := s.repo.ListUsers(ctx)
	if err != nil {
		s.logger.Error("failed to list users", slog.String("error", err.Error()))
		return nil, fmt.Errorf("listing users: %w", err)
	}
	return users, nil
}

// Get returns a user's profile. Returns apperror.ErrNotFound if absent.
func (s *UserService) Get(ctx context.Context, username string) (*model.UserProfile, error) {
	username, err := requireUsername(username)
	if err != nil {
		return nil, err
	}

	user, err := s.repo.GetUser(ctx, username)
	if err != nil {
		return nil, err
	}
	return user.Profile(), nil
}

// MessagesFrom lists the messages username has sent, each with the
// recipient's snippet. No messages is an empty slice, not an error.
func (s *UserService) MessagesFrom(ctx context.Context, username string) ([]model.SentMessage, error) {
	username, err := requireUsername(username)
	if err != nil {
		return nil, err
	}

	msgs, err := s.repo.MessagesFrom(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("listing messages from %s: %w", username, err)
	}
	return msgs, nil
}

// MessagesTo lists the messages username has received, each with the
// sender's snippet.
func (s *UserService) MessagesTo(ctx context.Context, username string) ([]model.ReceivedMessage, error) {
	username, err := requireUsername(username)
	if err != nil {
		return nil, err
	}

	msgs, err := s.repo.MessagesTo(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("listing messages to %s: %w", username, err)
	}
	return msgs, nil
}

func requireUsername(username string) (string, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return "", apperror.ValidationFailed("username", "username is required")
	}
	return username, nil
}
