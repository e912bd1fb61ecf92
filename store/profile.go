package store

// ChatType mirrors the messaging platform's chat categories.
type ChatType int32

const (
	ChatTypePrivate ChatType = 0
	ChatTypeGroup   ChatType = 10
	ChatTypeChannel ChatType = 20
)

// ChatTypeOf maps the platform's chat type string onto the stored enum.
func ChatTypeOf(chatType string) ChatType {
	switch chatType {
	case "private":
		return ChatTypePrivate
	case "channel":
		return ChatTypeChannel
	default:
		return ChatTypeGroup
	}
}

// Profile is the durable session anchor for one (uid, chat, thread) scope.
// Profiles are created lazily on first permitted interaction and never deleted.
type Profile struct {
	UID      int64
	Model    string
	Endpoint string
	Prompt   string // prompt preset name
	ChatType ChatType
	ChatID   int64
	ThreadID int64
	TopicID  int64
	// PreviewURL/PreviewToken cache the external preview page so overflow
	// re-renders update the same page instead of creating a new one.
	PreviewURL   string
	PreviewToken string
}

// User gates access to the bot.
type User struct {
	UID     int64
	Blocked bool
}

// Group holds per-group settings.
type Group struct {
	ChatID int64
	// RespondMessage makes the bot answer every group message instead of
	// only @mentions.
	RespondMessage bool
}
