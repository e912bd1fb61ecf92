package sqlite

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	"github.com/hrygo/catgpt/store"
)

func (d *DB) CreateProfile(ctx context.Context, p *store.Profile) error {
	return d.WithWrite(ctx, func(ctx context.Context) error {
		sqlTx, err := handle(ctx)
		if err != nil {
			return err
		}
		_, err = sqlTx.ExecContext(ctx,
			`INSERT INTO profile (uid, model, endpoint, prompt, chat_type, chat_id, thread_id, topic_id, preview_url, preview_token)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			p.UID, p.Model, p.Endpoint, p.Prompt, p.ChatType, p.ChatID, p.ThreadID, p.TopicID, p.PreviewURL, p.PreviewToken,
		)
		return errors.Wrapf(err, "failed to create profile for uid %d", p.UID)
	})
}

func (d *DB) GetProfile(ctx context.Context, uid, chatID, threadID int64) (*store.Profile, error) {
	var profile *store.Profile
	err := d.WithRead(ctx, func(ctx context.Context) error {
		sqlTx, err := handle(ctx)
		if err != nil {
			return err
		}
		row := sqlTx.QueryRowContext(ctx,
			`SELECT uid, model, endpoint, prompt, chat_type, chat_id, thread_id, topic_id, preview_url, preview_token
			 FROM profile WHERE uid = ? AND chat_id = ? AND thread_id = ?`,
			uid, chatID, threadID,
		)
		p := &store.Profile{}
		if err := row.Scan(&p.UID, &p.Model, &p.Endpoint, &p.Prompt, &p.ChatType, &p.ChatID, &p.ThreadID, &p.TopicID, &p.PreviewURL, &p.PreviewToken); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil
			}
			return errors.Wrapf(err, "failed to get profile for uid %d", uid)
		}
		profile = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return profile, nil
}

func (d *DB) UpdateProfile(ctx context.Context, p *store.Profile) error {
	return d.WithWrite(ctx, func(ctx context.Context) error {
		sqlTx, err := handle(ctx)
		if err != nil {
			return err
		}
		_, err = sqlTx.ExecContext(ctx,
			`UPDATE profile SET model = ?, endpoint = ?, prompt = ?, topic_id = ?, preview_url = ?, preview_token = ?
			 WHERE uid = ? AND chat_id = ? AND thread_id = ?`,
			p.Model, p.Endpoint, p.Prompt, p.TopicID, p.PreviewURL, p.PreviewToken, p.UID, p.ChatID, p.ThreadID,
		)
		return errors.Wrapf(err, "failed to update profile for uid %d", p.UID)
	})
}

func (d *DB) GetUser(ctx context.Context, uid int64) (*store.User, error) {
	var user *store.User
	err := d.WithRead(ctx, func(ctx context.Context) error {
		sqlTx, err := handle(ctx)
		if err != nil {
			return err
		}
		row := sqlTx.QueryRowContext(ctx, `SELECT uid, blocked FROM users WHERE uid = ?`, uid)
		u := &store.User{}
		if err := row.Scan(&u.UID, &u.Blocked); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil
			}
			return errors.Wrapf(err, "failed to get user %d", uid)
		}
		user = u
		return nil
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (d *DB) CreateUser(ctx context.Context, user *store.User) error {
	return d.WithWrite(ctx, func(ctx context.Context) error {
		sqlTx, err := handle(ctx)
		if err != nil {
			return err
		}
		_, err = sqlTx.ExecContext(ctx, `INSERT INTO users (uid, blocked) VALUES (?, ?)`, user.UID, user.Blocked)
		return errors.Wrapf(err, "failed to create user %d", user.UID)
	})
}

func (d *DB) UpdateUser(ctx context.Context, user *store.User) error {
	return d.WithWrite(ctx, func(ctx context.Context) error {
		sqlTx, err := handle(ctx)
		if err != nil {
			return err
		}
		_, err = sqlTx.ExecContext(ctx, `UPDATE users SET blocked = ? WHERE uid = ?`, user.Blocked, user.UID)
		return errors.Wrapf(err, "failed to update user %d", user.UID)
	})
}

func (d *DB) GetGroup(ctx context.Context, chatID int64) (*store.Group, error) {
	var group *store.Group
	err := d.WithRead(ctx, func(ctx context.Context) error {
		sqlTx, err := handle(ctx)
		if err != nil {
			return err
		}
		row := sqlTx.QueryRowContext(ctx, `SELECT chat_id, respond_message FROM groups WHERE chat_id = ?`, chatID)
		g := &store.Group{}
		if err := row.Scan(&g.ChatID, &g.RespondMessage); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil
			}
			return errors.Wrapf(err, "failed to get group %d", chatID)
		}
		group = g
		return nil
	})
	if err != nil {
		return nil, err
	}
	return group, nil
}

func (d *DB) CreateGroup(ctx context.Context, group *store.Group) error {
	return d.WithWrite(ctx, func(ctx context.Context) error {
		sqlTx, err := handle(ctx)
		if err != nil {
			return err
		}
		_, err = sqlTx.ExecContext(ctx, `INSERT INTO groups (chat_id, respond_message) VALUES (?, ?)`, group.ChatID, group.RespondMessage)
		return errors.Wrapf(err, "failed to create group %d", group.ChatID)
	})
}

// UpdateGroup upserts the policy row: an admin can set the answering policy
// before the bot has ever provisioned the group.
func (d *DB) UpdateGroup(ctx context.Context, group *store.Group) error {
	return d.WithWrite(ctx, func(ctx context.Context) error {
		sqlTx, err := handle(ctx)
		if err != nil {
			return err
		}
		_, err = sqlTx.ExecContext(ctx,
			`INSERT INTO groups (chat_id, respond_message) VALUES (?, ?)
			 ON CONFLICT (chat_id) DO UPDATE SET respond_message = excluded.respond_message`,
			group.ChatID, group.RespondMessage,
		)
		return errors.Wrapf(err, "failed to update group %d", group.ChatID)
	})
}
