// Package sqlite implements the repository interfaces on top of SQLite.
//
// modernc.org/sqlite is a pure Go translation of SQLite, so the binary needs
// no C toolchain. The store owns the schema and creates it on open.
//
// TIMESTAMPS:
// created_at/updated_at are stored as INTEGER unix nanoseconds. Timelines
// ORDER BY created_at, and integer ordering is exact where DATETIME text
// ordering depends on the formatting of fractional seconds and zones.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sqlitedriver "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/sakif/chirper/internal/apperror"
	"github.com/sakif/chirper/internal/repository"
)

var _ repository.Store = (*DB)(nil)

// DB wraps a sql.DB connection pool and implements repository.Store.
type DB struct {
	conn *sql.DB
}

// New opens (or creates) the database at dbPath and runs migrations.
//
// dbPath examples:
//   - "data/chirper.db"  → file-based database (persistent)
//   - ":memory:"         → in-memory database (tests)
//
// PRAGMAS PER CONNECTION:
// foreign_keys is a per-connection setting, and sql.DB opens connections
// lazily. Passing it through the DSN (_pragma=...) applies it to every
// connection in the pool, not just the first one.
func New(dbPath string) (*DB, error) {
	dsn := dbPath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"

	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// Every new connection to ":memory:" is a brand-new empty database.
	// Pin the pool to one connection so the schema stays visible.
	if dbPath == ":memory:" {
		conn.SetMaxOpenConns(1)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL lets readers proceed while a status transaction is writing.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// NewWithConn wraps an already-open pool without touching the schema.
// Used with go-sqlmock in tests.
func NewWithConn(conn *sql.DB) *DB {
	return &DB{conn: conn}
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping reports whether the database is reachable; used by /healthz.
func (db *DB) Ping(ctx context.Context) error {
	if err := db.conn.PingContext(ctx); err != nil {
		return apperror.StorageUnavailable(fmt.Errorf("sqlite: ping: %w", err))
	}
	return nil
}

// migrate creates the schema. CREATE ... IF NOT EXISTS keeps it idempotent.
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id             TEXT PRIMARY KEY,
			nickname       TEXT NOT NULL UNIQUE,
			email          TEXT NOT NULL DEFAULT '',
			identifier     TEXT NOT NULL UNIQUE,
			provider       TEXT NOT NULL DEFAULT '',
			formatted_name TEXT NOT NULL DEFAULT '',
			photo_url      TEXT NOT NULL DEFAULT '',
			location       TEXT NOT NULL DEFAULT '',
			description    TEXT NOT NULL DEFAULT '',
			created_at     INTEGER NOT NULL,
			updated_at     INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_users_email ON users(email);
	`)
	if err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}

	// recipient_id NULL => public post; non-NULL => direct message.
	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS statuses (
			id           TEXT PRIMARY KEY,
			owner_id     TEXT NOT NULL REFERENCES users(id),
			recipient_id TEXT REFERENCES users(id),
			text         TEXT NOT NULL,
			created_at   INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_statuses_owner_created ON statuses(owner_id, created_at);
		CREATE INDEX IF NOT EXISTS idx_statuses_recipient ON statuses(recipient_id);
	`)
	if err != nil {
		return fmt.Errorf("creating statuses table: %w", err)
	}

	// The composite primary keys make both edge kinds duplicate-free.
	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS follows (
			follower_id TEXT NOT NULL REFERENCES users(id),
			followed_id TEXT NOT NULL REFERENCES users(id),
			created_at  INTEGER NOT NULL,
			PRIMARY KEY (follower_id, followed_id)
		);
		CREATE INDEX IF NOT EXISTS idx_follows_followed ON follows(followed_id);

		CREATE TABLE IF NOT EXISTS mentions (
			user_id   TEXT NOT NULL REFERENCES users(id),
			status_id TEXT NOT NULL REFERENCES statuses(id) ON DELETE CASCADE,
			PRIMARY KEY (user_id, status_id)
		);
		CREATE INDEX IF NOT EXISTS idx_mentions_status ON mentions(status_id);
	`)
	if err != nil {
		return fmt.Errorf("creating edge tables: %w", err)
	}

	// Added after the first release: bcrypt hash for the basic-auth API.
	if err := db.addColumnIfNotExists("users", "api_password",
		"TEXT NOT NULL DEFAULT ''"); err != nil {
		return fmt.Errorf("adding api_password to users: %w", err)
	}

	return nil
}

// addColumnIfNotExists adds a column to a table only if it doesn't already exist.
// Running it twice is a no-op.
func (db *DB) addColumnIfNotExists(table, column, definition string) error {
	var count int
	err := db.conn.QueryRow(
		`SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?`,
		table, column,
	).Scan(&count)
	if err != nil {
		return fmt.Errorf("checking column %s.%s: %w", table, column, err)
	}
	if count > 0 {
		return nil
	}
	_, err = db.conn.Exec(fmt.Sprintf(
		`ALTER TABLE %s ADD COLUMN %s %s`, table, column, definition,
	))
	return err
}

// WithTx runs fn inside a transaction. fn's error (or a panic) rolls back;
// otherwise the transaction is committed.
func (db *DB) WithTx(ctx context.Context, fn func(tx repository.Tx) error) (err error) {
	sqlTx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return apperror.StorageUnavailable(fmt.Errorf("sqlite: beginning transaction: %w", err))
	}

	defer func() {
		if p := recover(); p != nil {
			_ = sqlTx.Rollback()
			panic(p)
		}
	}()

	if err := fn(&writer{q: sqlTx}); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return errors.Join(err, apperror.StorageUnavailable(fmt.Errorf("sqlite: rolling back: %w", rbErr)))
		}
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return apperror.StorageUnavailable(fmt.Errorf("sqlite: committing transaction: %w", err))
	}
	return nil
}

// querier is the subset of *sql.DB and *sql.Tx the write paths need.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func storageErr(op string, err error) error {
	return apperror.StorageUnavailable(fmt.Errorf("sqlite: %s: %w", op, err))
}

func constraintCode(err error) int {
	var se *sqlitedriver.Error
	if errors.As(err, &se) {
		return se.Code()
	}
	return 0
}

// isUniqueViolation accepts the extended result code, or the primary
// SQLITE_CONSTRAINT code plus the message when extended codes are off.
func isUniqueViolation(err error) bool {
	switch code := constraintCode(err); {
	case code == sqlite3.SQLITE_CONSTRAINT_UNIQUE, code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	case code&0xff == sqlite3.SQLITE_CONSTRAINT:
		return strings.Contains(err.Error(), "UNIQUE") || strings.Contains(err.Error(), "PRIMARY KEY")
	}
	return false
}

func isForeignKeyViolation(err error) bool {
	switch code := constraintCode(err); {
	case code == sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
		return true
	case code&0xff == sqlite3.SQLITE_CONSTRAINT:
		return strings.Contains(err.Error(), "FOREIGN KEY")
	}
	return false
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func toUnix(t time.Time) int64 {
	return t.UnixNano()
}

func fromUnix(n int64) time.Time {
	return time.Unix(0, n).UTC()
}

func uniqueField(err error) string {
	msg := err.Error()
	if i := strings.Index(msg, "users."); i >= 0 {
		field := msg[i+len("users."):]
		if j := strings.IndexAny(field, " ,)"); j >= 0 {
			field = field[:j]
		}
		return field
	}
	return ""
}
