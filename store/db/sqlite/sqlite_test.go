package sqlite

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/catgpt/internal/profile"
	"github.com/hrygo/catgpt/store"
)

func newTestDB(t *testing.T) store.Driver {
	t.Helper()
	driver, err := NewDB(&profile.Profile{DSN: filepath.Join(t.TempDir(), "catgpt_test.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = driver.Close() })
	require.NoError(t, driver.Migrate(context.Background()))
	return driver
}

func TestMigrateIsIdempotent(t *testing.T) {
	driver := newTestDB(t)
	// A second run must see every migration as already applied.
	require.NoError(t, driver.Migrate(context.Background()))
}

func TestTopicCRUD(t *testing.T) {
	ctx := context.Background()
	driver := newTestDB(t)

	topic := &store.Topic{
		Label:         "label-1",
		ChatID:        10,
		UserID:        1,
		Title:         "first",
		GenerateTitle: true,
		ThreadID:      5,
	}
	id, err := driver.CreateTopic(ctx, topic)
	require.NoError(t, err)
	require.NotZero(t, id)

	got, err := driver.GetTopic(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "first", got.Title)
	assert.Equal(t, int64(5), got.ThreadID)
	assert.True(t, got.GenerateTitle)

	got.Title = "renamed"
	got.GenerateTitle = false
	require.NoError(t, driver.UpdateTopic(ctx, got))

	got, err = driver.GetTopic(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "renamed", got.Title)
	assert.False(t, got.GenerateTitle)

	require.NoError(t, driver.DeleteTopic(ctx, id))
	got, err = driver.GetTopic(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestListTopicsThreadFilter(t *testing.T) {
	ctx := context.Background()
	driver := newTestDB(t)

	for i, threadID := range []int64{0, 7, 7} {
		_, err := driver.CreateTopic(ctx, &store.Topic{
			Label: "label-" + string(rune('a'+i)), ChatID: 10, UserID: 1, ThreadID: threadID,
		})
		require.NoError(t, err)
	}

	all, err := driver.ListTopics(ctx, &store.FindTopic{UserID: 1, ChatID: 10})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	threaded, err := driver.ListTopics(ctx, &store.FindTopic{UserID: 1, ChatID: 10, ThreadID: 7})
	require.NoError(t, err)
	assert.Len(t, threaded, 2)

	other, err := driver.ListTopics(ctx, &store.FindTopic{UserID: 2, ChatID: 10})
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestMessagesRoundtripAndOrder(t *testing.T) {
	ctx := context.Background()
	driver := newTestDB(t)

	id, err := driver.CreateTopic(ctx, &store.Topic{Label: "l", ChatID: 10, UserID: 1})
	require.NoError(t, err)

	messages := []*store.Message{
		{Role: store.RoleUser, Content: "second", ChatID: 10, Ts: 200, MessageID: 2},
		{Role: store.RoleSystem, Content: "first", ChatID: 10, Ts: 100},
		{Role: store.RoleAssistant, Content: "also second", ChatID: 10, Ts: 200, MessageID: 3},
	}
	require.NoError(t, driver.AppendMessages(ctx, id, messages))

	got, err := driver.GetMessages(ctx, []int64{id})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "first", got[0].Content)
	// Equal timestamps fall back to insertion order.
	assert.Equal(t, "second", got[1].Content)
	assert.Equal(t, "also second", got[2].Content)
	assert.Equal(t, id, got[0].TopicID)
}

func TestPhotoContentPacking(t *testing.T) {
	ctx := context.Background()
	driver := newTestDB(t)

	id, err := driver.CreateTopic(ctx, &store.Topic{Label: "l", ChatID: 10, UserID: 1})
	require.NoError(t, err)

	photo := &store.Message{
		Role:     store.RoleUser,
		Content:  "a caption, with a comma",
		MediaURL: "base64data",
		ChatID:   10,
		Ts:       100,
		Type:     store.MessageTypePhoto,
	}
	require.NoError(t, driver.AppendMessages(ctx, id, []*store.Message{photo}))

	got, err := driver.GetMessages(ctx, []int64{id})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "base64data", got[0].MediaURL)
	assert.Equal(t, "a caption, with a comma", got[0].Content)
	assert.Equal(t, store.MessageTypePhoto, got[0].Type)
}

func TestRemoveMessages(t *testing.T) {
	ctx := context.Background()
	driver := newTestDB(t)

	id, err := driver.CreateTopic(ctx, &store.Topic{Label: "l", ChatID: 10, UserID: 1})
	require.NoError(t, err)
	require.NoError(t, driver.AppendMessages(ctx, id, []*store.Message{
		{Role: store.RoleUser, Content: "keep", MessageID: 1, Ts: 1},
		{Role: store.RoleAssistant, Content: "drop", MessageID: 2, Ts: 2},
		{Role: store.RoleUser, Content: "drop too", MessageID: 3, Ts: 3},
	}))

	require.NoError(t, driver.RemoveMessages(ctx, id, []int{2, 3}))
	got, err := driver.GetMessages(ctx, []int64{id})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "keep", got[0].Content)

	require.NoError(t, driver.RemoveMessagesByTopic(ctx, id))
	got, err = driver.GetMessages(ctx, []int64{id})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestProfileRoundtrip(t *testing.T) {
	ctx := context.Background()
	driver := newTestDB(t)

	p := &store.Profile{
		UID:      1,
		Model:    "gpt-4o",
		Endpoint: "openai",
		Prompt:   "System",
		ChatType: store.ChatTypeGroup,
		ChatID:   10,
		ThreadID: 5,
		TopicID:  42,
	}
	require.NoError(t, driver.CreateProfile(ctx, p))

	got, err := driver.GetProfile(ctx, 1, 10, 5)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, *p, *got)

	missing, err := driver.GetProfile(ctx, 1, 10, 0)
	require.NoError(t, err)
	assert.Nil(t, missing)

	got.Model = "gpt-4o-mini"
	got.PreviewURL = "path"
	got.PreviewToken = "tok"
	require.NoError(t, driver.UpdateProfile(ctx, got))

	got, err = driver.GetProfile(ctx, 1, 10, 5)
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o-mini", got.Model)
	assert.Equal(t, "path", got.PreviewURL)
	assert.Equal(t, "tok", got.PreviewToken)
}

func TestProfileScopeUnique(t *testing.T) {
	ctx := context.Background()
	driver := newTestDB(t)

	p := &store.Profile{UID: 1, ChatID: 10, ThreadID: 0}
	require.NoError(t, driver.CreateProfile(ctx, p))
	assert.Error(t, driver.CreateProfile(ctx, p), "one profile per (uid, chat, thread)")
}

func TestUserRoundtrip(t *testing.T) {
	ctx := context.Background()
	driver := newTestDB(t)

	got, err := driver.GetUser(ctx, 42)
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, driver.CreateUser(ctx, &store.User{UID: 42}))
	got, err = driver.GetUser(ctx, 42)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.False(t, got.Blocked)

	got.Blocked = true
	require.NoError(t, driver.UpdateUser(ctx, got))
	got, err = driver.GetUser(ctx, 42)
	require.NoError(t, err)
	assert.True(t, got.Blocked)
}

func TestGroupRoundtrip(t *testing.T) {
	ctx := context.Background()
	driver := newTestDB(t)

	got, err := driver.GetGroup(ctx, -100)
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, driver.CreateGroup(ctx, &store.Group{ChatID: -100}))
	require.NoError(t, driver.UpdateGroup(ctx, &store.Group{ChatID: -100, RespondMessage: true}))

	got, err = driver.GetGroup(ctx, -100)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.RespondMessage)
}

func TestUpdateGroupBeforeProvisioning(t *testing.T) {
	ctx := context.Background()
	driver := newTestDB(t)

	// An admin can flip the policy before the bot ever saw a plain message
	// in the group; the row must survive a restart.
	require.NoError(t, driver.UpdateGroup(ctx, &store.Group{ChatID: -200, RespondMessage: true}))

	got, err := driver.GetGroup(ctx, -200)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.RespondMessage)

	require.NoError(t, driver.UpdateGroup(ctx, &store.Group{ChatID: -200, RespondMessage: false}))
	got, err = driver.GetGroup(ctx, -200)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.False(t, got.RespondMessage)
}

func TestWriteInsideReadFailsFast(t *testing.T) {
	ctx := context.Background()
	driver := newTestDB(t)

	err := driver.WithRead(ctx, func(ctx context.Context) error {
		return driver.WithWrite(ctx, func(context.Context) error { return nil })
	})
	assert.ErrorIs(t, err, ErrReadEscalation)
}

func TestAmbientTransactionJoins(t *testing.T) {
	ctx := context.Background()
	driver := newTestDB(t)

	// Nested store calls inside one write transaction join it instead of
	// deadlocking on the single write connection.
	err := driver.WithWrite(ctx, func(ctx context.Context) error {
		id, err := driver.CreateTopic(ctx, &store.Topic{Label: "l", ChatID: 10, UserID: 1})
		if err != nil {
			return err
		}
		return driver.AppendMessages(ctx, id, []*store.Message{
			{Role: store.RoleUser, Content: "hi", Ts: 1},
		})
	})
	require.NoError(t, err)

	// A read inside a write joins as well.
	err = driver.WithWrite(ctx, func(ctx context.Context) error {
		_, err := driver.GetTopic(ctx, 1)
		return err
	})
	require.NoError(t, err)
}

func TestWriteRollbackOnError(t *testing.T) {
	ctx := context.Background()
	driver := newTestDB(t)

	failed := driver.WithWrite(ctx, func(ctx context.Context) error {
		if _, err := driver.CreateTopic(ctx, &store.Topic{Label: "gone", ChatID: 10, UserID: 1}); err != nil {
			return err
		}
		return assert.AnError
	})
	require.ErrorIs(t, failed, assert.AnError)

	topics, err := driver.ListTopics(ctx, &store.FindTopic{UserID: 1, ChatID: 10})
	require.NoError(t, err)
	assert.Empty(t, topics)
}

func TestConcurrentWritesSerialize(t *testing.T) {
	ctx := context.Background()
	driver := newTestDB(t)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := driver.CreateTopic(ctx, &store.Topic{
				Label: "concurrent-" + string(rune('a'+i)), ChatID: 10, UserID: 1,
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	topics, err := driver.ListTopics(ctx, &store.FindTopic{UserID: 1, ChatID: 10})
	require.NoError(t, err)
	assert.Len(t, topics, 16)
}
