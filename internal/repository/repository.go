// Package repository declares the Credential Store contracts.
//
// Services depend on these interfaces, never on a concrete store, so tests
// can pass in-memory fakes and the server can pick SQLite or Postgres at
// startup.
package repository

import (
	"context"
	"time"

	"github.com/sakif/messagely/internal/model"
)

// UserRepository persists user records.
//
// Implementations translate store failures into apperror kinds:
// duplicate username → ErrConflict, missing row → ErrNotFound.
type UserRepository interface {
	CreateUser(ctx context.Context, user *model.User) error
	// GetPasswordHash returns ("", false, nil) when the user does not exist.
	GetPasswordHash(ctx context.Context, username string) (string, bool, error)
	TouchLogin(ctx context.Context, username string, at time.Time) error
	ListUsers(ctx context.Context) ([]model.ProfileSnippet, error)
	GetUser(ctx context.Context, username string) (*model.User, error)
	MessagesFrom(ctx context.Context, username string) ([]model.SentMessage, error)
	MessagesTo(ctx context.Context, username string) ([]model.ReceivedMessage, error)
}

// MessageRepository persists direct messages.
type MessageRepository interface {
	// CreateMessage fills in msg.ID. An unknown sender or recipient yields
	// ErrNotFound.
	CreateMessage(ctx context.Context, msg *model.Message) error
	GetMessage(ctx context.Context, id int64) (*model.MessageDetail, error)
	// MarkRead sets read_at to at only if it is still null, then returns the
	// stored value.
	MarkRead(ctx context.Context, id int64, at time.Time) (*model.ReadReceipt, error)
}
