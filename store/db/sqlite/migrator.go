package sqlite

import (
	"context"
	"log/slog"

	"github.com/pkg/errors"
)

// migration is one schema step. Version codes are monotonically increasing
// (YYMMDDHHMM); a migration is applied at most once and recorded in
// migration_history.
type migration struct {
	version     string
	versionCode int64
	statements  []string
}

var migrations = []migration{
	{
		version:     "0.1.0",
		versionCode: 2401010500,
		statements: []string{
			`CREATE TABLE IF NOT EXISTS topic (
				tid INTEGER PRIMARY KEY AUTOINCREMENT,
				label TEXT NOT NULL DEFAULT '',
				chat_id INTEGER NOT NULL DEFAULT 0,
				user_id INTEGER NOT NULL DEFAULT 0,
				title TEXT NOT NULL DEFAULT '',
				generate_title INTEGER NOT NULL DEFAULT 1,
				thread_id INTEGER NOT NULL DEFAULT 0
			)`,
			`CREATE UNIQUE INDEX IF NOT EXISTS idx_topic_label ON topic (label)`,
			`CREATE INDEX IF NOT EXISTS idx_topic_user_chat ON topic (user_id, chat_id)`,
			`CREATE TABLE IF NOT EXISTS message (
				role TEXT NOT NULL DEFAULT '',
				content TEXT NOT NULL DEFAULT '',
				message_id INTEGER NOT NULL DEFAULT 0,
				chat_id INTEGER NOT NULL DEFAULT 0,
				ts INTEGER NOT NULL DEFAULT 0,
				topic_id INTEGER NOT NULL DEFAULT 0,
				message_type INTEGER NOT NULL DEFAULT 0
			)`,
			`CREATE INDEX IF NOT EXISTS idx_message_topic ON message (topic_id)`,
			`CREATE TABLE IF NOT EXISTS profile (
				uid INTEGER NOT NULL DEFAULT 0,
				model TEXT NOT NULL DEFAULT '',
				endpoint TEXT NOT NULL DEFAULT '',
				prompt TEXT NOT NULL DEFAULT '',
				chat_type INTEGER NOT NULL DEFAULT 0,
				chat_id INTEGER NOT NULL DEFAULT 0,
				thread_id INTEGER NOT NULL DEFAULT 0,
				topic_id INTEGER NOT NULL DEFAULT 0,
				UNIQUE (uid, chat_id, thread_id)
			)`,
			`CREATE TABLE IF NOT EXISTS users (
				uid INTEGER PRIMARY KEY,
				blocked INTEGER NOT NULL DEFAULT 0
			)`,
		},
	},
	{
		version:     "0.2.0",
		versionCode: 2402150900,
		statements: []string{
			`ALTER TABLE profile ADD COLUMN preview_url TEXT NOT NULL DEFAULT ''`,
			`ALTER TABLE profile ADD COLUMN preview_token TEXT NOT NULL DEFAULT ''`,
		},
	},
	{
		version:     "0.3.0",
		versionCode: 2403020800,
		statements: []string{
			`CREATE TABLE IF NOT EXISTS groups (
				chat_id INTEGER PRIMARY KEY,
				respond_message INTEGER NOT NULL DEFAULT 0
			)`,
		},
	},
}

// Migrate applies all pending migrations in version-code order inside one
// write transaction.
func (d *DB) Migrate(ctx context.Context) error {
	if _, err := d.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS migration_history (
		version TEXT NOT NULL DEFAULT '',
		version_code INTEGER PRIMARY KEY,
		applied_ts INTEGER NOT NULL DEFAULT (unixepoch())
	)`); err != nil {
		return errors.Wrap(err, "failed to create migration_history")
	}

	return d.WithWrite(ctx, func(ctx context.Context) error {
		sqlTx, err := handle(ctx)
		if err != nil {
			return err
		}

		applied := map[int64]bool{}
		rows, err := sqlTx.QueryContext(ctx, `SELECT version_code FROM migration_history`)
		if err != nil {
			return errors.Wrap(err, "failed to read migration history")
		}
		defer rows.Close()
		for rows.Next() {
			var code int64
			if err := rows.Scan(&code); err != nil {
				return errors.Wrap(err, "failed to scan migration history")
			}
			applied[code] = true
		}
		if err := rows.Err(); err != nil {
			return errors.Wrap(err, "failed to iterate migration history")
		}

		for _, m := range migrations {
			if applied[m.versionCode] {
				continue
			}
			slog.Info("applying migration", "version", m.version, "version_code", m.versionCode)
			for _, stmt := range m.statements {
				if _, err := sqlTx.ExecContext(ctx, stmt); err != nil {
					return errors.Wrapf(err, "migration %s failed", m.version)
				}
			}
			if _, err := sqlTx.ExecContext(ctx,
				`INSERT INTO migration_history (version, version_code) VALUES (?, ?)`,
				m.version, m.versionCode,
			); err != nil {
				return errors.Wrapf(err, "failed to record migration %s", m.version)
			}
		}
		return nil
	})
}
