package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/hrygo/catgpt/store"
)

// packContent stores a media turn's reference and caption in one column as
// "<media>,<content>". unpackContent is the symmetric read.
func packContent(m *store.Message) string {
	if m.Type == store.MessageTypePhoto {
		return m.MediaURL + "," + m.Content
	}
	return m.Content
}

func unpackContent(m *store.Message) {
	if m.Type != store.MessageTypePhoto {
		return
	}
	segments := strings.SplitN(m.Content, ",", 2)
	m.MediaURL = segments[0]
	if len(segments) > 1 {
		m.Content = segments[1]
	} else {
		m.Content = ""
	}
}

func (d *DB) CreateTopic(ctx context.Context, topic *store.Topic) (int64, error) {
	var id int64
	err := d.WithWrite(ctx, func(ctx context.Context) error {
		sqlTx, err := handle(ctx)
		if err != nil {
			return err
		}
		result, err := sqlTx.ExecContext(ctx,
			`INSERT INTO topic (label, chat_id, user_id, title, generate_title, thread_id) VALUES (?, ?, ?, ?, ?, ?)`,
			topic.Label, topic.ChatID, topic.UserID, topic.Title, topic.GenerateTitle, topic.ThreadID,
		)
		if err != nil {
			return errors.Wrap(err, "failed to create topic")
		}
		id, err = result.LastInsertId()
		return errors.Wrap(err, "failed to read topic id")
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (d *DB) UpdateTopic(ctx context.Context, topic *store.Topic) error {
	return d.WithWrite(ctx, func(ctx context.Context) error {
		sqlTx, err := handle(ctx)
		if err != nil {
			return err
		}
		_, err = sqlTx.ExecContext(ctx,
			`UPDATE topic SET label = ?, chat_id = ?, user_id = ?, title = ?, generate_title = ?, thread_id = ? WHERE tid = ?`,
			topic.Label, topic.ChatID, topic.UserID, topic.Title, topic.GenerateTitle, topic.ThreadID, topic.ID,
		)
		return errors.Wrapf(err, "failed to update topic %d", topic.ID)
	})
}

func (d *DB) GetTopic(ctx context.Context, topicID int64) (*store.Topic, error) {
	var topic *store.Topic
	err := d.WithRead(ctx, func(ctx context.Context) error {
		sqlTx, err := handle(ctx)
		if err != nil {
			return err
		}
		row := sqlTx.QueryRowContext(ctx,
			`SELECT tid, label, chat_id, user_id, title, generate_title, thread_id FROM topic WHERE tid = ?`,
			topicID,
		)
		t := &store.Topic{}
		if err := row.Scan(&t.ID, &t.Label, &t.ChatID, &t.UserID, &t.Title, &t.GenerateTitle, &t.ThreadID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil
			}
			return errors.Wrapf(err, "failed to get topic %d", topicID)
		}
		topic = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return topic, nil
}

func (d *DB) ListTopics(ctx context.Context, find *store.FindTopic) ([]*store.Topic, error) {
	var topics []*store.Topic
	err := d.WithRead(ctx, func(ctx context.Context) error {
		sqlTx, err := handle(ctx)
		if err != nil {
			return err
		}

		query := `SELECT tid, label, chat_id, user_id, title, generate_title, thread_id FROM topic WHERE user_id = ? AND chat_id = ?`
		args := []any{find.UserID, find.ChatID}
		if find.ThreadID != 0 {
			query += ` AND thread_id = ?`
			args = append(args, find.ThreadID)
		}
		query += ` ORDER BY tid`

		rows, err := sqlTx.QueryContext(ctx, query, args...)
		if err != nil {
			return errors.Wrap(err, "failed to list topics")
		}
		defer rows.Close()

		for rows.Next() {
			t := &store.Topic{}
			if err := rows.Scan(&t.ID, &t.Label, &t.ChatID, &t.UserID, &t.Title, &t.GenerateTitle, &t.ThreadID); err != nil {
				return errors.Wrap(err, "failed to scan topic")
			}
			topics = append(topics, t)
		}
		return errors.Wrap(rows.Err(), "failed to iterate topics")
	})
	if err != nil {
		return nil, err
	}
	return topics, nil
}

func (d *DB) DeleteTopic(ctx context.Context, topicID int64) error {
	return d.WithWrite(ctx, func(ctx context.Context) error {
		sqlTx, err := handle(ctx)
		if err != nil {
			return err
		}
		_, err = sqlTx.ExecContext(ctx, `DELETE FROM topic WHERE tid = ?`, topicID)
		return errors.Wrapf(err, "failed to delete topic %d", topicID)
	})
}

func (d *DB) AppendMessages(ctx context.Context, topicID int64, messages []*store.Message) error {
	if len(messages) == 0 {
		return nil
	}
	return d.WithWrite(ctx, func(ctx context.Context) error {
		sqlTx, err := handle(ctx)
		if err != nil {
			return err
		}

		stmt, err := sqlTx.PrepareContext(ctx,
			`INSERT INTO message (role, content, message_id, chat_id, ts, topic_id, message_type) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		)
		if err != nil {
			return errors.Wrap(err, "failed to prepare message insert")
		}
		defer stmt.Close()

		for _, m := range messages {
			if _, err := stmt.ExecContext(ctx,
				m.Role, packContent(m), m.MessageID, m.ChatID, m.Ts, topicID, m.Type,
			); err != nil {
				return errors.Wrapf(err, "failed to append message to topic %d", topicID)
			}
		}
		return nil
	})
}

func (d *DB) GetMessages(ctx context.Context, topicIDs []int64) ([]*store.Message, error) {
	if len(topicIDs) == 0 {
		return nil, nil
	}

	var messages []*store.Message
	err := d.WithRead(ctx, func(ctx context.Context) error {
		sqlTx, err := handle(ctx)
		if err != nil {
			return err
		}

		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(topicIDs)), ",")
		args := make([]any, len(topicIDs))
		for i, id := range topicIDs {
			args[i] = id
		}

		rows, err := sqlTx.QueryContext(ctx, fmt.Sprintf(
			`SELECT role, content, message_id, chat_id, ts, topic_id, message_type FROM message WHERE topic_id IN (%s) ORDER BY ts, rowid`,
			placeholders,
		), args...)
		if err != nil {
			return errors.Wrap(err, "failed to get messages")
		}
		defer rows.Close()

		for rows.Next() {
			m := &store.Message{}
			if err := rows.Scan(&m.Role, &m.Content, &m.MessageID, &m.ChatID, &m.Ts, &m.TopicID, &m.Type); err != nil {
				return errors.Wrap(err, "failed to scan message")
			}
			unpackContent(m)
			messages = append(messages, m)
		}
		return errors.Wrap(rows.Err(), "failed to iterate messages")
	})
	if err != nil {
		return nil, err
	}
	return messages, nil
}

func (d *DB) RemoveMessages(ctx context.Context, topicID int64, messageIDs []int) error {
	if len(messageIDs) == 0 {
		return nil
	}
	return d.WithWrite(ctx, func(ctx context.Context) error {
		sqlTx, err := handle(ctx)
		if err != nil {
			return err
		}

		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(messageIDs)), ",")
		args := make([]any, 0, len(messageIDs)+1)
		args = append(args, topicID)
		for _, id := range messageIDs {
			args = append(args, id)
		}

		_, err = sqlTx.ExecContext(ctx, fmt.Sprintf(
			`DELETE FROM message WHERE topic_id = ? AND message_id IN (%s)`, placeholders,
		), args...)
		return errors.Wrapf(err, "failed to remove messages from topic %d", topicID)
	})
}

func (d *DB) RemoveMessagesByTopic(ctx context.Context, topicID int64) error {
	return d.WithWrite(ctx, func(ctx context.Context) error {
		sqlTx, err := handle(ctx)
		if err != nil {
			return err
		}
		_, err = sqlTx.ExecContext(ctx, `DELETE FROM message WHERE topic_id = ?`, topicID)
		return errors.Wrapf(err, "failed to remove messages of topic %d", topicID)
	})
}
