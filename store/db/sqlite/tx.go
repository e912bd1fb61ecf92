package sqlite

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/pkg/errors"
)

// ErrReadEscalation is returned when a write transaction is requested while
// an ambient read transaction is active. Read transactions cannot be
// upgraded; the caller must open the write transaction first.
var ErrReadEscalation = errors.New("a write transaction cannot join a read transaction")

type txKind int

const (
	txRead txKind = iota
	txWrite
)

func (k txKind) String() string {
	if k == txWrite {
		return "write"
	}
	return "read"
}

// tx is the ambient transaction handle bound into the context for the
// duration of the outermost WithRead/WithWrite call.
type tx struct {
	kind  txKind
	sqlTx *sql.Tx
}

type txCtxKey struct{}

func txFrom(ctx context.Context) (*tx, bool) {
	t, ok := ctx.Value(txCtxKey{}).(*tx)
	return t, ok
}

// handle returns the SQL handle of the ambient transaction. Store methods
// always wrap themselves in WithRead/WithWrite first, so a missing handle is
// a programming error.
func handle(ctx context.Context) (*sql.Tx, error) {
	t, ok := txFrom(ctx)
	if !ok {
		return nil, errors.New("no ambient transaction in context")
	}
	return t.sqlTx, nil
}

// WithRead runs fn inside a read transaction. An ambient transaction of
// either kind is joined; a read body may run inside a write transaction.
func (d *DB) WithRead(ctx context.Context, fn func(ctx context.Context) error) error {
	return d.withTx(ctx, txRead, fn)
}

// WithWrite runs fn inside the serialized write transaction. Joining an
// ambient read transaction fails fast with ErrReadEscalation.
func (d *DB) WithWrite(ctx context.Context, fn func(ctx context.Context) error) error {
	return d.withTx(ctx, txWrite, fn)
}

func (d *DB) withTx(ctx context.Context, kind txKind, fn func(ctx context.Context) error) error {
	if cur, ok := txFrom(ctx); ok {
		if kind == txWrite && cur.kind == txRead {
			return ErrReadEscalation
		}
		// Join the ambient transaction: no new connection, no nested commit.
		return fn(ctx)
	}

	var (
		sqlTx *sql.Tx
		conn  *sql.Conn
		err   error
	)
	if kind == txWrite {
		conn, err = d.acquireWrite(ctx)
		if err != nil {
			return errors.Wrap(err, "failed to acquire write connection")
		}
		defer d.releaseWrite(conn)

		sqlTx, err = conn.BeginTx(ctx, nil)
	} else {
		sqlTx, err = d.db.BeginTx(ctx, nil)
	}
	if err != nil {
		return errors.Wrapf(err, "failed to begin %s transaction", kind)
	}

	err = fn(context.WithValue(ctx, txCtxKey{}, &tx{kind: kind, sqlTx: sqlTx}))
	if err != nil {
		// Roll back and re-return the body error; a rollback failure is
		// logged but never masks it.
		if rbErr := sqlTx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			slog.Error("transaction rollback failed", "kind", kind.String(), "error", rbErr)
		}
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return errors.Wrapf(err, "failed to commit %s transaction", kind)
	}
	return nil
}
