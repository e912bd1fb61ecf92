// Package store provides database access to all raw conversation objects.
package store

import "context"

// Store provides database access to all raw objects.
type Store struct {
	driver Driver
}

// New creates a new instance of Store.
func New(driver Driver) *Store {
	return &Store{driver: driver}
}

func (s *Store) GetDriver() Driver {
	return s.driver
}

func (s *Store) Close() error {
	return s.driver.Close()
}

// Migrate applies pending schema migrations.
func (s *Store) Migrate(ctx context.Context) error {
	return s.driver.Migrate(ctx)
}

// WithRead runs fn inside a read transaction, joining an ambient one if present.
func (s *Store) WithRead(ctx context.Context, fn func(ctx context.Context) error) error {
	return s.driver.WithRead(ctx, fn)
}

// WithWrite runs fn inside the serialized write transaction.
func (s *Store) WithWrite(ctx context.Context, fn func(ctx context.Context) error) error {
	return s.driver.WithWrite(ctx, fn)
}

func (s *Store) CreateTopic(ctx context.Context, topic *Topic) (int64, error) {
	return s.driver.CreateTopic(ctx, topic)
}

func (s *Store) UpdateTopic(ctx context.Context, topic *Topic) error {
	return s.driver.UpdateTopic(ctx, topic)
}

func (s *Store) GetTopic(ctx context.Context, topicID int64) (*Topic, error) {
	return s.driver.GetTopic(ctx, topicID)
}

func (s *Store) ListTopics(ctx context.Context, find *FindTopic) ([]*Topic, error) {
	return s.driver.ListTopics(ctx, find)
}

func (s *Store) DeleteTopic(ctx context.Context, topicID int64) error {
	return s.driver.DeleteTopic(ctx, topicID)
}

func (s *Store) AppendMessages(ctx context.Context, topicID int64, messages []*Message) error {
	return s.driver.AppendMessages(ctx, topicID, messages)
}

func (s *Store) GetMessages(ctx context.Context, topicIDs []int64) ([]*Message, error) {
	return s.driver.GetMessages(ctx, topicIDs)
}

func (s *Store) RemoveMessages(ctx context.Context, topicID int64, messageIDs []int) error {
	return s.driver.RemoveMessages(ctx, topicID, messageIDs)
}

func (s *Store) RemoveMessagesByTopic(ctx context.Context, topicID int64) error {
	return s.driver.RemoveMessagesByTopic(ctx, topicID)
}

func (s *Store) CreateProfile(ctx context.Context, profile *Profile) error {
	return s.driver.CreateProfile(ctx, profile)
}

func (s *Store) GetProfile(ctx context.Context, uid, chatID, threadID int64) (*Profile, error) {
	return s.driver.GetProfile(ctx, uid, chatID, threadID)
}

func (s *Store) UpdateProfile(ctx context.Context, profile *Profile) error {
	return s.driver.UpdateProfile(ctx, profile)
}

func (s *Store) GetUser(ctx context.Context, uid int64) (*User, error) {
	return s.driver.GetUser(ctx, uid)
}

func (s *Store) CreateUser(ctx context.Context, user *User) error {
	return s.driver.CreateUser(ctx, user)
}

func (s *Store) UpdateUser(ctx context.Context, user *User) error {
	return s.driver.UpdateUser(ctx, user)
}

func (s *Store) GetGroup(ctx context.Context, chatID int64) (*Group, error) {
	return s.driver.GetGroup(ctx, chatID)
}

func (s *Store) CreateGroup(ctx context.Context, group *Group) error {
	return s.driver.CreateGroup(ctx, group)
}

func (s *Store) UpdateGroup(ctx context.Context, group *Group) error {
	return s.driver.UpdateGroup(ctx, group)
}
