package sqlite

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	// Import the SQLite driver.
	_ "modernc.org/sqlite"

	"github.com/hrygo/catgpt/internal/profile"
	"github.com/hrygo/catgpt/store"
)

// DB implements store.Driver on an embedded sqlite database.
//
// Reads run on the shared connection pool. All writes are serialized through
// a single dedicated connection held in a one-slot channel: acquiring it
// blocks until the previous write transaction releases it, so at most one
// write transaction is active process-wide at any instant.
type DB struct {
	db      *sql.DB
	profile *profile.Profile

	// writeConn is a one-slot pool holding the single write connection.
	writeConn chan *sql.Conn
}

// NewDB opens the sqlite database at profile.DSN.
//
// Notes:
// - When using the `modernc.org/sqlite` driver, each pragma must be prefixed with `_pragma=`.
// - WAL journal mode lets read connections proceed while a write transaction is open.
func NewDB(p *profile.Profile) (store.Driver, error) {
	if p.DSN == "" {
		return nil, errors.New("dsn required")
	}

	sqliteDB, err := sql.Open("sqlite", p.DSN+"?_pragma=foreign_keys(0)&_pragma=busy_timeout(10000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open db with dsn: %s", p.DSN)
	}

	conn, err := sqliteDB.Conn(context.Background())
	if err != nil {
		_ = sqliteDB.Close()
		return nil, errors.Wrap(err, "failed to pin write connection")
	}

	driver := &DB{
		db:        sqliteDB,
		profile:   p,
		writeConn: make(chan *sql.Conn, 1),
	}
	driver.writeConn <- conn

	return driver, nil
}

func (d *DB) GetDB() *sql.DB {
	return d.db
}

func (d *DB) Close() error {
	// Drain the write slot so no transaction is mid-flight while closing.
	conn := <-d.writeConn
	if err := conn.Close(); err != nil {
		return errors.Wrap(err, "failed to close write connection")
	}
	return d.db.Close()
}

// acquireWrite blocks until the write connection is free or ctx is done.
func (d *DB) acquireWrite(ctx context.Context) (*sql.Conn, error) {
	select {
	case conn := <-d.writeConn:
		return conn, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (d *DB) releaseWrite(conn *sql.Conn) {
	d.writeConn <- conn
}
