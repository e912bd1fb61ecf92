package chat

import (
	"context"
	"sort"
	"sync"

	"github.com/pkg/errors"

	"github.com/hrygo/catgpt/store"
)

// memDriver is an in-memory store.Driver for exercising the service layer
// without a database.
type memDriver struct {
	mu       sync.Mutex
	nextID   int64
	topics   map[int64]*store.Topic
	messages map[int64][]*store.Message
	profiles map[[3]int64]*store.Profile
	users    map[int64]*store.User
	groups   map[int64]*store.Group
}

func newMemDriver() *memDriver {
	return &memDriver{
		nextID:   1,
		topics:   map[int64]*store.Topic{},
		messages: map[int64][]*store.Message{},
		profiles: map[[3]int64]*store.Profile{},
		users:    map[int64]*store.User{},
		groups:   map[int64]*store.Group{},
	}
}

func newMemStore() *store.Store {
	return store.New(newMemDriver())
}

func (d *memDriver) WithRead(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (d *memDriver) WithWrite(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (d *memDriver) Migrate(context.Context) error { return nil }
func (d *memDriver) Close() error                  { return nil }

func (d *memDriver) CreateTopic(_ context.Context, topic *store.Topic) (int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	id := d.nextID
	d.nextID++
	clone := *topic
	clone.ID = id
	d.topics[id] = &clone
	return id, nil
}

func (d *memDriver) UpdateTopic(_ context.Context, topic *store.Topic) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.topics[topic.ID]; !ok {
		return errors.Errorf("topic %d not found", topic.ID)
	}
	clone := *topic
	d.topics[topic.ID] = &clone
	return nil
}

func (d *memDriver) GetTopic(_ context.Context, topicID int64) (*store.Topic, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	t, ok := d.topics[topicID]
	if !ok {
		return nil, nil
	}
	clone := *t
	clone.Messages = nil
	return &clone, nil
}

func (d *memDriver) ListTopics(_ context.Context, find *store.FindTopic) ([]*store.Topic, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var result []*store.Topic
	for _, t := range d.topics {
		if t.UserID == find.UserID && t.ChatID == find.ChatID &&
			(find.ThreadID == 0 || t.ThreadID == find.ThreadID) {
			clone := *t
			clone.Messages = nil
			result = append(result, &clone)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (d *memDriver) DeleteTopic(_ context.Context, topicID int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.topics, topicID)
	return nil
}

func (d *memDriver) AppendMessages(_ context.Context, topicID int64, messages []*store.Message) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, m := range messages {
		clone := *m
		clone.TopicID = topicID
		d.messages[topicID] = append(d.messages[topicID], &clone)
	}
	return nil
}

func (d *memDriver) GetMessages(_ context.Context, topicIDs []int64) ([]*store.Message, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var result []*store.Message
	for _, id := range topicIDs {
		for _, m := range d.messages[id] {
			clone := *m
			result = append(result, &clone)
		}
	}
	sort.SliceStable(result, func(i, j int) bool { return result[i].Ts < result[j].Ts })
	return result, nil
}

func (d *memDriver) RemoveMessages(_ context.Context, topicID int64, messageIDs []int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	drop := map[int]bool{}
	for _, id := range messageIDs {
		drop[id] = true
	}
	var kept []*store.Message
	for _, m := range d.messages[topicID] {
		if !drop[m.MessageID] {
			kept = append(kept, m)
		}
	}
	d.messages[topicID] = kept
	return nil
}

func (d *memDriver) RemoveMessagesByTopic(_ context.Context, topicID int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.messages, topicID)
	return nil
}

func profileKey(uid, chatID, threadID int64) [3]int64 {
	return [3]int64{uid, chatID, threadID}
}

func (d *memDriver) CreateProfile(_ context.Context, profile *store.Profile) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	key := profileKey(profile.UID, profile.ChatID, profile.ThreadID)
	if _, ok := d.profiles[key]; ok {
		return errors.New("profile already exists")
	}
	clone := *profile
	d.profiles[key] = &clone
	return nil
}

func (d *memDriver) GetProfile(_ context.Context, uid, chatID, threadID int64) (*store.Profile, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, ok := d.profiles[profileKey(uid, chatID, threadID)]
	if !ok {
		return nil, nil
	}
	clone := *p
	return &clone, nil
}

func (d *memDriver) UpdateProfile(_ context.Context, profile *store.Profile) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	key := profileKey(profile.UID, profile.ChatID, profile.ThreadID)
	if _, ok := d.profiles[key]; !ok {
		return errors.New("profile not found")
	}
	clone := *profile
	d.profiles[key] = &clone
	return nil
}

func (d *memDriver) GetUser(_ context.Context, uid int64) (*store.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	u, ok := d.users[uid]
	if !ok {
		return nil, nil
	}
	clone := *u
	return &clone, nil
}

func (d *memDriver) CreateUser(_ context.Context, user *store.User) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	clone := *user
	d.users[user.UID] = &clone
	return nil
}

func (d *memDriver) UpdateUser(_ context.Context, user *store.User) error {
	return d.CreateUser(context.Background(), user)
}

func (d *memDriver) GetGroup(_ context.Context, chatID int64) (*store.Group, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	g, ok := d.groups[chatID]
	if !ok {
		return nil, nil
	}
	clone := *g
	return &clone, nil
}

func (d *memDriver) CreateGroup(_ context.Context, group *store.Group) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	clone := *group
	d.groups[group.ChatID] = &clone
	return nil
}

func (d *memDriver) UpdateGroup(_ context.Context, group *store.Group) error {
	return d.CreateGroup(context.Background(), group)
}

var _ store.Driver = (*memDriver)(nil)

// fakeMessenger records outbound traffic for assertions.
type fakeMessenger struct {
	mu       sync.Mutex
	nextID   int
	sent     []*Outgoing
	edits    map[int][]string
	editErrs []error
	deleted  [][]int
}

func newFakeMessenger() *fakeMessenger {
	return &fakeMessenger{nextID: 100, edits: map[int][]string{}}
}

func (f *fakeMessenger) SendMessage(_ context.Context, out *Outgoing) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	clone := *out
	f.sent = append(f.sent, &clone)
	return f.nextID, nil
}

// failEditsWith queues errors returned by subsequent edits, one per call.
func (f *fakeMessenger) failEditsWith(errs ...error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.editErrs = append(f.editErrs, errs...)
}

func (f *fakeMessenger) EditMessageText(_ context.Context, _ int64, messageID int, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.editErrs) > 0 {
		err := f.editErrs[0]
		f.editErrs = f.editErrs[1:]
		if err != nil {
			return err
		}
	}
	f.edits[messageID] = append(f.edits[messageID], text)
	return nil
}

func (f *fakeMessenger) SendDocument(_ context.Context, _ int64, _ int, _ string, _ []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	return f.nextID, nil
}

func (f *fakeMessenger) DeleteMessages(_ context.Context, _ int64, messageIDs []int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, messageIDs)
	return nil
}

func (f *fakeMessenger) lastEdit(messageID int) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	edits := f.edits[messageID]
	if len(edits) == 0 {
		return ""
	}
	return edits[len(edits)-1]
}
