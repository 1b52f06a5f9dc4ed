package sqlstore

import (
	"context"
	"fmt"

	"github.com/pressly/goose/v3"
)

// Migrate applies every pending migration for the store's dialect.
//
// The goose Provider API is used instead of the package-level functions so
// no global dialect or base FS is mutated; two stores (e.g. parallel
// tests) can migrate independently.
func (db *DB) Migrate(ctx context.Context) error {
	fsys, err := db.dialect.migrations()
	if err != nil {
		return fmt.Errorf("sqlstore: loading %s migrations: %w", db.dialect.Name, err)
	}

	provider, err := goose.NewProvider(db.dialect.gooseDialect, db.conn, fsys)
	if err != nil {
		return fmt.Errorf("sqlstore: creating migration provider: %w", err)
	}

	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("sqlstore: running migrations: %w", err)
	}
	return nil
}
