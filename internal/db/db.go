// internal/db/db.go
package db

import (
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Supported database/sql driver names.
const (
	DriverSQLite   = "sqlite"
	DriverPgx      = "pgx"
	DriverPostgres = "postgres"
)

type DB struct {
	*sql.DB
	Driver string
}

// New opens a SQLite catalog snapshot.
func New(path string) (*DB, error) {
	return Open(DriverSQLite, path)
}

// Open connects to a catalog source. SQLite snapshots get WAL mode and
// foreign keys; Postgres mirrors are used as-is.
func Open(driver, dsn string) (*DB, error) {
	switch driver {
	case DriverSQLite, DriverPgx, DriverPostgres:
	default:
		return nil, fmt.Errorf("unsupported driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if driver != DriverSQLite {
		if err := db.Ping(); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to connect: %w", err)
		}
		return &DB{DB: db, Driver: driver}, nil
	}

	// Each connection to :memory: is a separate database
	if dsn == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	// Enable WAL mode for concurrent reads
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return &DB{DB: db, Driver: driver}, nil
}

// Rebind rewrites ? placeholders to $n for the Postgres drivers.
func (db *DB) Rebind(query string) string {
	return Rebind(db.Driver, query)
}

// Rebind rewrites ? placeholders to $n when driver needs numbered bind
// variables. Question marks inside single-quoted literals are left alone.
func Rebind(driver, query string) string {
	if driver == DriverSQLite || driver == "" {
		return query
	}
	out := make([]byte, 0, len(query)+8)
	n := 0
	inQuote := false
	for i := 0; i < len(query); i++ {
		c := query[i]
		switch {
		case c == '\'':
			inQuote = !inQuote
			out = append(out, c)
		case c == '?' && !inQuote:
			n++
			out = append(out, '$')
			out = append(out, fmt.Sprint(n)...)
		default:
			out = append(out, c)
		}
	}
	return string(out)
}
