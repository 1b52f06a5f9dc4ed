package sqlstore

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pressly/goose/v3"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	// database/sql driver for Postgres, registered as "pgx".
	_ "github.com/jackc/pgx/v5/stdlib"
)

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var migrationsFS embed.FS

// constraint classifies integrity violations reported by the database.
type constraint int

const (
	constraintNone constraint = iota
	constraintUnique
	constraintForeignKey
)

// Dialect captures everything that differs between the supported backends.
type Dialect struct {
	Name         string
	driverName   string
	gooseDialect goose.Dialect
	numbered     bool // $1-style placeholders
	singleConn   bool
	pragmas      []string
	classify     func(error) constraint
}

var (
	SQLite = Dialect{
		Name:         "sqlite",
		driverName:   "sqlite",
		gooseDialect: goose.DialectSQLite3,
		singleConn:   true,
		pragmas: []string{
			"PRAGMA journal_mode=WAL",
			// Off by default in SQLite; messages reference users.
			"PRAGMA foreign_keys=ON",
		},
		classify: classifySQLite,
	}

	Postgres = Dialect{
		Name:         "postgres",
		driverName:   "pgx",
		gooseDialect: goose.DialectPostgres,
		numbered:     true,
		classify:     classifyPostgres,
	}
)

// DialectFor resolves a configured driver name.
func DialectFor(name string) (Dialect, error) {
	switch strings.ToLower(name) {
	case "sqlite", "sqlite3":
		return SQLite, nil
	case "postgres", "postgresql", "pgx":
		return Postgres, nil
	default:
		return Dialect{}, fmt.Errorf("sqlstore: unsupported driver %q", name)
	}
}

// Rebind rewrites "?" placeholders into the dialect's native form.
// None of the store's queries contain a literal question mark.
func (d Dialect) Rebind(query string) string {
	if !d.numbered {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

func (d Dialect) migrations() (fs.FS, error) {
	return fs.Sub(migrationsFS, "migrations/"+d.Name)
}

func classifySQLite(err error) constraint {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return constraintNone
	}

	switch se.Code() {
	case sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3.SQLITE_CONSTRAINT_UNIQUE:
		return constraintUnique
	case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
		return constraintForeignKey
	}

	// Primary result code only (extended codes disabled on the connection).
	if se.Code()&0xff == sqlite3.SQLITE_CONSTRAINT {
		msg := se.Error()
		switch {
		case strings.Contains(msg, "FOREIGN KEY"):
			return constraintForeignKey
		case strings.Contains(msg, "UNIQUE"), strings.Contains(msg, "PRIMARY KEY"):
			return constraintUnique
		}
	}
	return constraintNone
}

func classifyPostgres(err error) constraint {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return constraintNone
	}

	switch pgErr.Code {
	case "23505": // unique_violation
		return constraintUnique
	case "23503": // foreign_key_violation
		return constraintForeignKey
	}
	return constraintNone
}
