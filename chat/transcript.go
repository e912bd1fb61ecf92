package chat

import (
	"fmt"

	"github.com/hrygo/catgpt/store"
)

// MaxSegmentLength is the default transcript segment size, matching the
// platform message cap.
const MaxSegmentLength = 4096

// MessagesToSegments renders a conversation transcript as markdown, split
// into segments of at most maxLength. System prompts and reasoning traces
// are omitted.
func MessagesToSegments(messages []*store.Message, maxLength int) []string {
	if maxLength <= 0 {
		maxLength = MaxSegmentLength
	}

	var (
		segments []string
		segment  string
		total    int
	)
	for _, m := range messages {
		if m.Role == store.RoleSystem || m.Type == store.MessageTypeReasoning {
			continue
		}

		text := fmt.Sprintf("## %s\n%s\n\n", m.Role, m.Content)
		if total+len(text) > maxLength {
			segments = append(segments, segment)
			segment = ""
			total = 0
		}
		segment += text
		total += len(text)
	}

	// A single oversized turn is truncated rather than split mid-word.
	if total > maxLength {
		segment = segment[:maxLength-3] + "..."
	}
	if len(segment) > 0 {
		segments = append(segments, segment)
	}
	return segments
}
