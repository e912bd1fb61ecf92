package chat

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// Messenger is the narrow contract the chat core needs from the messaging
// platform. Edit and delete calls are rate limited by the platform; the
// streaming reply pacing exists specifically to respect this.
type Messenger interface {
	// SendMessage sends text and returns the platform message id.
	SendMessage(ctx context.Context, out *Outgoing) (int, error)
	// EditMessageText replaces the text of a previously sent message.
	EditMessageText(ctx context.Context, chatID int64, messageID int, text string) error
	// SendDocument delivers a file as a document reply.
	SendDocument(ctx context.Context, chatID int64, replyTo int, filename string, data []byte) (int, error)
	// DeleteMessages removes messages by id.
	DeleteMessages(ctx context.Context, chatID int64, messageIDs []int) error
}

// Outgoing addresses one outbound message.
type Outgoing struct {
	ChatID   int64
	ThreadID int
	ReplyTo  int
	Text     string
	// Plain disables markup parsing for this message.
	Plain bool
}

// PlatformError is a messaging platform API failure with its HTTP-style
// status code. The reply controller recovers from 400 and 429 locally;
// everything else is fatal.
type PlatformError struct {
	Code        int
	Description string
}

func (e *PlatformError) Error() string {
	return fmt.Sprintf("platform api error %d: %s", e.Code, e.Description)
}

// ParseRetryAfter extracts the suggested retry delay in seconds from a
// platform rate-limit description such as "Too Many Requests: retry after 7".
// It returns -1 when the text carries no trailing integer.
func ParseRetryAfter(text string) int {
	text = strings.TrimSpace(text)
	idx := strings.LastIndex(text, " ")
	seconds, err := strconv.Atoi(text[idx+1:])
	if err != nil {
		return -1
	}
	return seconds
}
