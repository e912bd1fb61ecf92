package store

import "context"

// Driver is an interface for store driver.
// Every mutating method is individually transactional at its declared kind and
// joins an ambient transaction opened via WithWrite, so multi-entity operations
// can be composed atomically by the service layer.
type Driver interface {
	// WithRead runs fn inside a read transaction. A fn finding a compatible
	// ambient transaction joins it instead of opening a new one.
	WithRead(ctx context.Context, fn func(ctx context.Context) error) error
	// WithWrite runs fn inside the single serialized write transaction.
	// Opening a write transaction while an ambient read transaction is
	// active fails fast.
	WithWrite(ctx context.Context, fn func(ctx context.Context) error) error

	// Migrate applies pending schema migrations, ordered by version code.
	Migrate(ctx context.Context) error

	CreateTopic(ctx context.Context, topic *Topic) (int64, error)
	UpdateTopic(ctx context.Context, topic *Topic) error
	GetTopic(ctx context.Context, topicID int64) (*Topic, error)
	ListTopics(ctx context.Context, find *FindTopic) ([]*Topic, error)
	DeleteTopic(ctx context.Context, topicID int64) error

	AppendMessages(ctx context.Context, topicID int64, messages []*Message) error
	GetMessages(ctx context.Context, topicIDs []int64) ([]*Message, error)
	RemoveMessages(ctx context.Context, topicID int64, messageIDs []int) error
	RemoveMessagesByTopic(ctx context.Context, topicID int64) error

	CreateProfile(ctx context.Context, profile *Profile) error
	GetProfile(ctx context.Context, uid, chatID, threadID int64) (*Profile, error)
	UpdateProfile(ctx context.Context, profile *Profile) error

	GetUser(ctx context.Context, uid int64) (*User, error)
	CreateUser(ctx context.Context, user *User) error
	UpdateUser(ctx context.Context, user *User) error

	GetGroup(ctx context.Context, chatID int64) (*Group, error)
	CreateGroup(ctx context.Context, group *Group) error
	// UpdateGroup upserts the group policy row; the policy may be set before
	// the group was ever provisioned.
	UpdateGroup(ctx context.Context, group *Group) error

	Close() error
}
