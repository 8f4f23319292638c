package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net/url"
	"time"

	_ "modernc.org/sqlite"

	"syncpair/internal/domain"
)

// Options configures Open.
type Options struct {
	// Passphrase protects sealed columns. An empty passphrase is allowed and
	// still seals, so secrets are never stored as plain text.
	Passphrase string
	// Scrypt parameters for a newly created vault; zero means the defaults.
	ScryptN, ScryptR, ScryptP int
	// Now is the clock used for modified_at; defaults to time.Now.
	Now func() time.Time
	// Rand is the entropy source for salts and nonces; defaults to crypto/rand.
	Rand io.Reader
}

// SQLStore is the SQLite-backed implementation of domain.Store.
type SQLStore struct {
	db    *sql.DB
	vault *vault
	now   func() time.Time
}

// querier is satisfied by both *sql.DB and *sql.Tx so helpers can run inside
// or outside a transaction.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Open opens (creating if needed) the database at path, applies the schema
// and unlocks the vault.
func Open(ctx context.Context, path string, opts Options) (*SQLStore, error) {
	q := url.Values{}
	q.Add("_pragma", "foreign_keys(1)")
	q.Add("_pragma", "busy_timeout(5000)")
	q.Add("_pragma", "journal_mode(WAL)")
	db, err := sql.Open("sqlite", "file:"+path+"?"+q.Encode())
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// The database is owned by this process; one connection keeps SQLite's
	// locking out of the way of transactions.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	s := &SQLStore{db: db, now: opts.Now}
	if s.now == nil {
		s.now = time.Now
	}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	v, err := openVault(ctx, db, opts)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	s.vault = v
	return s, nil
}

// Close releases the database.
func (s *SQLStore) Close() error { return s.db.Close() }

func (s *SQLStore) migrate(ctx context.Context) error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS vault (
id INTEGER PRIMARY KEY CHECK (id = 1),
salt BLOB NOT NULL,
scrypt_n INTEGER NOT NULL,
scrypt_r INTEGER NOT NULL,
scrypt_p INTEGER NOT NULL,
check_value BLOB NOT NULL
);`,
		`CREATE TABLE IF NOT EXISTS clients (
client_id TEXT PRIMARY KEY,
name TEXT NOT NULL,
identity_key TEXT NOT NULL,
identity_private BLOB,
status TEXT NOT NULL,
auth_level TEXT NOT NULL,
version TEXT NOT NULL,
is_self INTEGER NOT NULL DEFAULT 0,
deleted INTEGER NOT NULL DEFAULT 0,
modified_at INTEGER NOT NULL
);`,
		`CREATE UNIQUE INDEX IF NOT EXISTS clients_one_self ON clients(is_self) WHERE is_self = 1;`,
		`CREATE TABLE IF NOT EXISTS ephemeral_keys (
key_id TEXT PRIMARY KEY,
client_id TEXT NOT NULL REFERENCES clients(client_id),
public_key TEXT NOT NULL,
private_key BLOB,
status TEXT NOT NULL,
deleted INTEGER NOT NULL DEFAULT 0,
modified_at INTEGER NOT NULL
);`,
		`CREATE INDEX IF NOT EXISTS ephemeral_keys_owner ON ephemeral_keys(client_id, status);`,
		`CREATE TABLE IF NOT EXISTS sessions (
session_id TEXT PRIMARY KEY,
role TEXT NOT NULL,
own_key_id TEXT NOT NULL,
other_client_id TEXT NOT NULL,
other_identity_key TEXT NOT NULL,
other_key_id TEXT NOT NULL,
other_key TEXT NOT NULL,
own_sequence INTEGER NOT NULL DEFAULT 0,
other_sequence INTEGER NOT NULL DEFAULT 0,
state TEXT NOT NULL,
deleted INTEGER NOT NULL DEFAULT 0,
modified_at INTEGER NOT NULL
);`,
		`CREATE TABLE IF NOT EXISTS messages (
message_id INTEGER PRIMARY KEY AUTOINCREMENT,
session_id TEXT NOT NULL REFERENCES sessions(session_id),
version TEXT NOT NULL,
src_client_id TEXT NOT NULL,
src_key_id TEXT NOT NULL,
src_key TEXT NOT NULL DEFAULT '',
dst_client_id TEXT NOT NULL,
dst_key_id TEXT NOT NULL,
sequence INTEGER NOT NULL,
type TEXT NOT NULL,
content TEXT NOT NULL,
is_read INTEGER NOT NULL DEFAULT 0,
deleted INTEGER NOT NULL DEFAULT 0,
modified_at INTEGER NOT NULL,
UNIQUE (session_id, sequence)
);`,
		`CREATE TABLE IF NOT EXISTS properties (
key TEXT PRIMARY KEY,
value TEXT NOT NULL DEFAULT '',
secret BLOB,
deleted INTEGER NOT NULL DEFAULT 0,
modified_at INTEGER NOT NULL
);`,
	}
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// withTx runs fn in a transaction, committing only if fn succeeds.
func (s *SQLStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Reset removes every client, key, session, message and property. The vault
// is kept so the passphrase stays valid.
func (s *SQLStore) Reset(ctx context.Context) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, table := range []string{"messages", "sessions", "ephemeral_keys", "clients", "properties"} {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
				return fmt.Errorf("reset %s: %w", table, err)
			}
		}
		return nil
	})
}

func (s *SQLStore) stamp() int64 { return s.now().UnixMilli() }

func fromStamp(ms int64) time.Time { return time.UnixMilli(ms) }

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func notFound(what string, id any) error {
	return fmt.Errorf("%s %v: %w", what, id, domain.ErrNotFound)
}

func isNoRows(err error) bool { return errors.Is(err, sql.ErrNoRows) }

// Compile-time assertion that SQLStore implements domain.Store.
var _ domain.Store = (*SQLStore)(nil)
