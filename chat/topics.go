package chat

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/hrygo/catgpt/store"
)

// Topics owns the cross-entity invariants of conversation threads: a topic
// is never observable without its seed messages, turns are appended in
// pairs, and clears swap the whole message set atomically.
type Topics struct {
	store *store.Store
}

func NewTopics(s *store.Store) *Topics {
	return &Topics{store: s}
}

// newLabel returns a fresh opaque share identifier.
func newLabel() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// NewTopic creates a topic and appends its seed messages in one write
// transaction.
func (t *Topics) NewTopic(ctx context.Context, title string, chatID, userID int64, seed []*store.Message, generateTitle bool, threadID int64) (*store.Topic, error) {
	topic := &store.Topic{
		Label:         newLabel(),
		ChatID:        chatID,
		UserID:        userID,
		Title:         title,
		GenerateTitle: generateTitle,
		ThreadID:      threadID,
		Messages:      seed,
	}

	err := t.store.WithWrite(ctx, func(ctx context.Context) error {
		id, err := t.store.CreateTopic(ctx, topic)
		if err != nil {
			return err
		}
		topic.ID = id
		for _, m := range topic.Messages {
			m.TopicID = id
		}
		return t.store.AppendMessages(ctx, id, topic.Messages)
	})
	if err != nil {
		return nil, err
	}
	return topic, nil
}

// GetTopic fetches a topic, optionally with its messages. A missing topic is
// (nil, nil).
func (t *Topics) GetTopic(ctx context.Context, topicID int64, fetchMessages bool) (*store.Topic, error) {
	var topic *store.Topic
	err := t.store.WithRead(ctx, func(ctx context.Context) error {
		var err error
		topic, err = t.store.GetTopic(ctx, topicID)
		if err != nil || topic == nil || !fetchMessages {
			return err
		}
		topic.Messages, err = t.store.GetMessages(ctx, []int64{topicID})
		return err
	})
	if err != nil {
		return nil, err
	}
	return topic, nil
}

// AppendTurn persists one exchange: the user turn, the assistant turn, and
// an optional reasoning trace, in a single batch. The assistant turn is
// stamped one unit after the user turn so ordering stays deterministic when
// timestamps collide at second resolution.
func (t *Topics) AppendTurn(ctx context.Context, topicID int64, userMsg, assistantMsg *store.Message, reasoning string) error {
	if topicID <= 0 {
		return errors.Errorf("invalid topic id %d", topicID)
	}

	userMsg.Role = store.RoleUser
	userMsg.TopicID = topicID

	assistantMsg.Role = store.RoleAssistant
	assistantMsg.TopicID = topicID
	assistantMsg.Ts = userMsg.Ts + 1

	messages := []*store.Message{userMsg, assistantMsg}
	if reasoning != "" {
		messages = append(messages, &store.Message{
			Role:    store.RoleAssistant,
			Content: reasoning,
			ChatID:  assistantMsg.ChatID,
			Ts:      assistantMsg.Ts,
			TopicID: topicID,
			Type:    store.MessageTypeReasoning,
		})
	}

	return t.store.AppendMessages(ctx, topicID, messages)
}

// ClearTopic removes every message of the topic, re-seeds it with the given
// prompt, resets the title and issues a fresh label, all in one write
// transaction so a reader never observes a topic with neither its old nor
// new message set.
func (t *Topics) ClearTopic(ctx context.Context, topic *store.Topic, seedPrompt *store.Message) error {
	if topic.ID <= 0 {
		return errors.Errorf("invalid topic id %d", topic.ID)
	}

	return t.store.WithWrite(ctx, func(ctx context.Context) error {
		if err := t.store.RemoveMessagesByTopic(ctx, topic.ID); err != nil {
			return err
		}
		if seedPrompt != nil {
			seedPrompt.TopicID = topic.ID
			if err := t.store.AppendMessages(ctx, topic.ID, []*store.Message{seedPrompt}); err != nil {
				return err
			}
		}

		topic.GenerateTitle = true
		topic.Title = store.PlaceholderTitle
		topic.Label = newLabel()
		return t.store.UpdateTopic(ctx, topic)
	})
}

// RemoveTopic deletes the topic row and all its messages atomically.
func (t *Topics) RemoveTopic(ctx context.Context, topicID int64) error {
	if topicID <= 0 {
		return errors.Errorf("invalid topic id %d", topicID)
	}

	return t.store.WithWrite(ctx, func(ctx context.Context) error {
		if err := t.store.DeleteTopic(ctx, topicID); err != nil {
			return err
		}
		return t.store.RemoveMessagesByTopic(ctx, topicID)
	})
}

// RemoveMessages revokes individual turns by platform message id.
func (t *Topics) RemoveMessages(ctx context.Context, topicID int64, messageIDs []int) error {
	if topicID <= 0 {
		return errors.Errorf("invalid topic id %d", topicID)
	}
	if len(messageIDs) == 0 {
		return errors.New("message ids cannot be empty")
	}
	return t.store.RemoveMessages(ctx, topicID, messageIDs)
}

// UpdateTopic persists topic attribute changes.
func (t *Topics) UpdateTopic(ctx context.Context, topic *store.Topic) error {
	if topic.ID <= 0 {
		return errors.Errorf("invalid topic id %d", topic.ID)
	}
	return t.store.UpdateTopic(ctx, topic)
}

// ListTopicsWithMessages fetches the user's topics in the chat scope and
// batch-loads all their messages in one query, grouping client-side.
func (t *Topics) ListTopicsWithMessages(ctx context.Context, uid, chatID, threadID int64) ([]*store.Topic, error) {
	var topics []*store.Topic
	err := t.store.WithRead(ctx, func(ctx context.Context) error {
		var err error
		topics, err = t.store.ListTopics(ctx, &store.FindTopic{UserID: uid, ChatID: chatID, ThreadID: threadID})
		if err != nil || len(topics) == 0 {
			return err
		}

		topicIDs := make([]int64, len(topics))
		for i, topic := range topics {
			topicIDs[i] = topic.ID
		}
		messages, err := t.store.GetMessages(ctx, topicIDs)
		if err != nil {
			return err
		}

		grouped := map[int64][]*store.Message{}
		for _, m := range messages {
			grouped[m.TopicID] = append(grouped[m.TopicID], m)
		}
		for _, topic := range topics {
			topic.Messages = grouped[topic.ID]
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return topics, nil
}
