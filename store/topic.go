package store

// Role identifies who produced a message turn.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether the role belongs to the closed role set.
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	}
	return false
}

// MessageType discriminates how a message turn is interpreted and rendered.
type MessageType int32

const (
	MessageTypeText MessageType = iota
	MessageTypePhoto
	MessageTypeAudio
	// MessageTypeReasoning holds a model reasoning trace. Reasoning turns are
	// excluded from prompt payloads and from user-visible rendering, like
	// system turns.
	MessageTypeReasoning
)

// Topic is one conversation thread owned by a user in a chat.
type Topic struct {
	ID            int64
	Label         string // opaque share identifier, regenerated on clear
	ChatID        int64
	UserID        int64
	Title         string
	GenerateTitle bool
	ThreadID      int64
	Messages      []*Message // loaded on demand
}

// PlaceholderTitle is assigned until the title generator or the user sets one.
const PlaceholderTitle = "new topic"

// Message is a single turn inside a topic.
type Message struct {
	Role      Role
	Content   string
	MediaURL  string // packed into the content column for media turns
	MessageID int
	ChatID    int64
	Ts        int64
	TopicID   int64
	Type      MessageType
}

// FindTopic filters topic listings. ThreadID is applied only when non-zero.
type FindTopic struct {
	UserID   int64
	ChatID   int64
	ThreadID int64
}
