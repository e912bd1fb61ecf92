package chat

import (
	"context"
	"log/slog"
	"strings"

	"github.com/hrygo/catgpt/ai/llm"
	"github.com/hrygo/catgpt/store"
)

// titleInstruction asks the model for a bare title with no decoration.
const titleInstruction = "Please generate a title for this conversation without any lead-in, punctuation, quotation marks, periods, symbols, bold text, or additional text. Remove enclosing quotation marks. Please only return the title without any additional info."

// Titler derives a short title for a topic from its first exchange. It runs
// after the user-visible reply has been finalized; failures are logged and
// never surface.
type Titler struct {
	endpoints llm.Endpoints
	topics    *Topics
}

func NewTitler(endpoints llm.Endpoints, topics *Topics) *Titler {
	return &Titler{endpoints: endpoints, topics: topics}
}

// MaybeGenerateTitle issues one non-streaming completion and persists the
// result. A topic whose GenerateTitle flag is clear is left alone.
func (t *Titler) MaybeGenerateTitle(ctx context.Context, topic *store.Topic, transcript []llm.Message, answer string) {
	if topic == nil || !topic.GenerateTitle {
		return
	}

	endpoint := t.endpoints.TitleEndpoint()
	if endpoint == nil {
		return
	}
	provider, err := llm.ProviderFor(endpoint)
	if err != nil {
		slog.Error("title generation skipped", "error", err)
		return
	}

	messages := make([]llm.Message, 0, len(transcript)+2)
	messages = append(messages, transcript...)
	messages = append(messages,
		llm.Message{Role: "assistant", Content: answer},
		llm.Message{Role: "user", Content: titleInstruction},
	)

	title, err := provider.Completion(ctx, endpoint, &llm.Request{
		Model:    endpoint.DefaultModel,
		Messages: messages,
	})
	if err != nil {
		slog.Error("title generation failed", "topic_id", topic.ID, "error", err)
		return
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return
	}

	topic.Title = title
	topic.GenerateTitle = false
	if err := t.topics.UpdateTopic(ctx, topic); err != nil {
		slog.Error("title update failed", "topic_id", topic.ID, "error", err)
	}
}
