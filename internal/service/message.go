// Package service contains the business logic layer of the application.
//
// THE THREE-LAYER ARCHITECTURE:
//
//	Handler (HTTP layer)     → parses requests, enforces access policy, writes responses
//	Service (Business layer) → validates input, stamps times, orchestrates
//	Repository (Data layer)  → reads/writes to the database
//
// Services never see the caller. Who may read or mark a message is decided
// at the boundary (see auth.CanViewMessage / auth.CanMarkRead) so the same
// service can back any transport.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/sakif/messagely/internal/apperror"
	"github.com/sakif/messagely/internal/model"
	"github.com/sakif/messagely/internal/repository"
)

// MessageService handles business logic for direct messages.
type MessageService struct {
	repo   repository.MessageRepository
	logger *slog.Logger
	now    Clock
}

// NewMessageService creates a new MessageService.
func NewMessageService(repo repository.MessageRepository, logger *slog.Logger) *MessageService {
	return &MessageService{
		repo:   repo,
		logger: logger,
		now:    SystemClock,
	}
}

// ParseMessageID converts a path segment into a message id.
// Anything other than a positive base-10 integer is a validation error.
func ParseMessageID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperror.ValidationFailed("id", "message id must be a positive integer")
	}
	return id, nil
}

// Create sends a message from one user to another. sent_at is stamped here
// and read_at starts out null.
//
// The recipient is not looked up first: the store's foreign key rejects an
// unknown recipient and that surfaces as apperror.ErrNotFound.
func (s *MessageService) Create(ctx context.Context, from, to, body string) (*model.Message, error) {
	// === VALIDATION ===
	if from == "" {
		return nil, apperror.ValidationFailed("from_username", "sender is required")
	}
	to = strings.TrimSpace(to)
	if to == "" {
		return nil, apperror.ValidationFailed("to_username", "to_username is required")
	}
	if strings.TrimSpace(body) == "" {
		return nil, apperror.ValidationFailed("body", "body is required")
	}

	msg := &model.Message{
		FromUsername: from,
		ToUsername:   to,
		Body:         body,
		SentAt:       s.now(),
	}

	if err := s.repo.CreateMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("sending message %s -> %s: %w", from, to, err)
	}

	s.logger.Info("message sent",
		slog.Int64("id", msg.ID),
		slog.String("from", from),
		slog.String("to", to),
	)
	return msg, nil
}

// Get returns a message with both parties' profile snippets.
// Returns apperror.ErrNotFound if the message doesn't exist.
func (s *MessageService) Get(ctx context.Context, id int64) (*model.MessageDetail, error) {
	if id <= 0 {
		return nil, apperror.ValidationFailed("id", "message id must be a positive integer")
	}
	return s.repo.GetMessage(ctx, id)
}

// MarkRead records that the recipient has read the message.
//
// The first call sets read_at; later calls leave it alone and return the
// original timestamp, so read_at never moves once set.
func (s *MessageService) MarkRead(ctx context.Context, id int64) (*model.ReadReceipt, error) {
	if id <= 0 {
		return nil, apperror.ValidationFailed("id", "message id must be a positive integer")
	}

	receipt, err := s.repo.MarkRead(ctx, id, s.now())
	if err != nil {
		return nil, err
	}

	s.logger.Info("message read", slog.Int64("id", id))
	return receipt, nil
}
