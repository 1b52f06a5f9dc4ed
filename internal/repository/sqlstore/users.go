package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sakif/messagely/internal/apperror"
	"github.com/sakif/messagely/internal/model"
	"github.com/sakif/messagely/internal/repository"
)

// compile-time check that *DB implements repository.UserRepository
var _ repository.UserRepository = (*DB)(nil)

// CreateUser inserts a new user row. The caller has already hashed the
// password and set JoinAt/LastLoginAt.
//
// A duplicate username surfaces from the store as a primary-key violation
// and is translated to apperror.ErrConflict; the existing row is untouched.
func (db *DB) CreateUser(ctx context.Context, user *model.User) error {
	_, err := db.conn.ExecContext(ctx, db.q(
		`INSERT INTO users (username, password, first_name, last_name, phone, join_at, last_login_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`),
		user.Username,
		user.PasswordHash,
		user.FirstName,
		user.LastName,
		user.Phone,
		user.JoinAt,
		user.LastLoginAt,
	)
	if err != nil {
		if db.dialect.classify(err) == constraintUnique {
			return apperror.Conflict("user", user.Username)
		}
		return fmt.Errorf("sqlstore: inserting user %s: %w", user.Username, err)
	}
	return nil
}

// GetPasswordHash returns the stored bcrypt hash for username.
// An unknown user is not an error: found is false.
func (db *DB) GetPasswordHash(ctx context.Context, username string) (string, bool, error) {
	var hash string
	err := db.conn.QueryRowContext(ctx, db.q(
		`SELECT password FROM users WHERE username = ?`),
		username,
	).Scan(&hash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("sqlstore: reading password hash for %s: %w", username, err)
	}
	return hash, true, nil
}

// TouchLogin sets last_login_at. RowsAffected tells us whether the user
// exists, so no SELECT is needed first.
func (db *DB) TouchLogin(ctx context.Context, username string, at time.Time) error {
	result, err := db.conn.ExecContext(ctx, db.q(
		`UPDATE users SET last_login_at = ? WHERE username = ?`),
		at,
		username,
	)
	if err != nil {
		return fmt.Errorf("sqlstore: updating last login for %s: %w", username, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlstore: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("user", username)
	}
	return nil
}

// ListUsers returns every user's profile snippet, ordered by username.
func (db *DB) ListUsers(ctx context.Context) ([]model.ProfileSnippet, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT username, first_name, last_name, phone
		 FROM users
		 ORDER BY username`,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: listing users: %w", err)
	}
	defer rows.Close()

	users := make([]model.ProfileSnippet, 0)
	for rows.Next() {
		var u model.ProfileSnippet
		if err := rows.Scan(&u.Username, &u.FirstName, &u.LastName, &u.Phone); err != nil {
			return nil, fmt.Errorf("sqlstore: scanning user row: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlstore: iterating users: %w", err)
	}

	return users, nil
}

// GetUser retrieves the full user record, hash included. Callers that
// respond to clients use (*model.User).Profile.
func (db *DB) GetUser(ctx context.Context, username string) (*model.User, error) {
	var (
		u         model.User
		lastLogin sql.NullTime
	)
	err := db.conn.QueryRowContext(ctx, db.q(
		`SELECT username, password, first_name, last_name, phone, join_at, last_login_at
		 FROM users
		 WHERE username = ?`),
		username,
	).Scan(
		&u.Username,
		&u.PasswordHash,
		&u.FirstName,
		&u.LastName,
		&u.Phone,
		&u.JoinAt,
		&lastLogin,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", username)
		}
		return nil, fmt.Errorf("sqlstore: getting user %s: %w", username, err)
	}

	u.JoinAt = u.JoinAt.UTC()
	if lastLogin.Valid {
		u.LastLoginAt = lastLogin.Time.UTC()
	}
	return &u, nil
}

// MessagesFrom lists messages sent by username, each joined with the
// recipient's profile snippet. No messages yields an empty slice.
func (db *DB) MessagesFrom(ctx context.Context, username string) ([]model.SentMessage, error) {
	rows, err := db.conn.QueryContext(ctx, db.q(
		`SELECT m.id, u.username, u.first_name, u.last_name, u.phone,
		        m.body, m.sent_at, m.read_at
		 FROM messages m
		 JOIN users u ON m.to_username = u.username
		 WHERE m.from_username = ?
		 ORDER BY m.sent_at, m.id`),
		username,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: listing messages from %s: %w", username, err)
	}
	defer rows.Close()

	messages := make([]model.SentMessage, 0)
	for rows.Next() {
		var (
			m      model.SentMessage
			readAt sql.NullTime
		)
		if err := rows.Scan(
			&m.ID,
			&m.ToUser.Username, &m.ToUser.FirstName, &m.ToUser.LastName, &m.ToUser.Phone,
			&m.Body, &m.SentAt, &readAt,
		); err != nil {
			return nil, fmt.Errorf("sqlstore: scanning sent message row: %w", err)
		}
		m.SentAt = m.SentAt.UTC()
		m.ReadAt = nullTimePtr(readAt)
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlstore: iterating sent messages: %w", err)
	}

	return messages, nil
}

// MessagesTo lists messages received by username, each joined with the
// sender's profile snippet.
func (db *DB) MessagesTo(ctx context.Context, username string) ([]model.ReceivedMessage, error) {
	rows, err := db.conn.QueryContext(ctx, db.q(
		`SELECT m.id, u.username, u.first_name, u.last_name, u.phone,
		        m.body, m.sent_at, m.read_at
		 FROM messages m
		 JOIN users u ON m.from_username = u.username
		 WHERE m.to_username = ?
		 ORDER BY m.sent_at, m.id`),
		username,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: listing messages to %s: %w", username, err)
	}
	defer rows.Close()

	messages := make([]model.ReceivedMessage, 0)
	for rows.Next() {
		var (
			m      model.ReceivedMessage
			readAt sql.NullTime
		)
		if err := rows.Scan(
			&m.ID,
			&m.FromUser.Username, &m.FromUser.FirstName, &m.FromUser.LastName, &m.FromUser.Phone,
			&m.Body, &m.SentAt, &readAt,
		); err != nil {
			return nil, fmt.Errorf("sqlstore: scanning received message row: %w", err)
		}
		m.SentAt = m.SentAt.UTC()
		m.ReadAt = nullTimePtr(readAt)
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlstore: iterating received messages: %w", err)
	}

	return messages, nil
}
