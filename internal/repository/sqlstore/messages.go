package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/sakif/messagely/internal/apperror"
	"github.com/sakif/messagely/internal/model"
	"github.com/sakif/messagely/internal/repository"
)

// compile-time check that *DB implements repository.MessageRepository
var _ repository.MessageRepository = (*DB)(nil)

// CreateMessage inserts msg and fills in the id assigned by the database.
//
// Both SQLite (3.35+) and Postgres support INSERT ... RETURNING, so the id
// comes back in the same round-trip. Neither party is checked up front:
// the foreign keys reject unknown users. The violation does not say which
// key failed, so the NotFound names both parties.
func (db *DB) CreateMessage(ctx context.Context, msg *model.Message) error {
	err := db.conn.QueryRowContext(ctx, db.q(
		`INSERT INTO messages (from_username, to_username, body, sent_at)
		 VALUES (?, ?, ?, ?)
		 RETURNING id`),
		msg.FromUsername,
		msg.ToUsername,
		msg.Body,
		msg.SentAt,
	).Scan(&msg.ID)
	if err != nil {
		if db.dialect.classify(err) == constraintForeignKey {
			return apperror.NotFound("sender or recipient", msg.FromUsername+" -> "+msg.ToUsername)
		}
		return fmt.Errorf("sqlstore: inserting message from %s to %s: %w", msg.FromUsername, msg.ToUsername, err)
	}
	return nil
}

// GetMessage fetches a message joined with both parties' snippets.
func (db *DB) GetMessage(ctx context.Context, id int64) (*model.MessageDetail, error) {
	var (
		m      model.MessageDetail
		readAt sql.NullTime
	)
	err := db.conn.QueryRowContext(ctx, db.q(
		`SELECT m.id, m.body, m.sent_at, m.read_at,
		        f.username, f.first_name, f.last_name, f.phone,
		        t.username, t.first_name, t.last_name, t.phone
		 FROM messages m
		 JOIN users f ON m.from_username = f.username
		 JOIN users t ON m.to_username = t.username
		 WHERE m.id = ?`),
		id,
	).Scan(
		&m.ID, &m.Body, &m.SentAt, &readAt,
		&m.FromUser.Username, &m.FromUser.FirstName, &m.FromUser.LastName, &m.FromUser.Phone,
		&m.ToUser.Username, &m.ToUser.FirstName, &m.ToUser.LastName, &m.ToUser.Phone,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("message", strconv.FormatInt(id, 10))
		}
		return nil, fmt.Errorf("sqlstore: getting message %d: %w", id, err)
	}

	m.SentAt = m.SentAt.UTC()
	m.ReadAt = nullTimePtr(readAt)
	return &m, nil
}

// MarkRead stamps read_at once. The "read_at IS NULL" guard makes a second
// call a no-op, and the follow-up SELECT returns whatever is stored, so
// repeated calls always report the first read time.
//
// Both statements run in one transaction so the SELECT sees the UPDATE
// and nothing in between.
func (db *DB) MarkRead(ctx context.Context, id int64, at time.Time) (*model.ReadReceipt, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: beginning mark-read tx: %w", err)
	}
	// Rollback after Commit is a harmless no-op.
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, db.q(
		`UPDATE messages SET read_at = ? WHERE id = ? AND read_at IS NULL`),
		at,
		id,
	); err != nil {
		return nil, fmt.Errorf("sqlstore: marking message %d read: %w", id, err)
	}

	var (
		receipt model.ReadReceipt
		readAt  sql.NullTime
	)
	err = tx.QueryRowContext(ctx, db.q(
		`SELECT id, read_at FROM messages WHERE id = ?`),
		id,
	).Scan(&receipt.ID, &readAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("message", strconv.FormatInt(id, 10))
		}
		return nil, fmt.Errorf("sqlstore: reading message %d read_at: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("sqlstore: committing mark-read tx: %w", err)
	}

	receipt.ReadAt = readAt.Time.UTC()
	return &receipt, nil
}
