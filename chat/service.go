// Package chat implements the conversation core: session resolution, the
// streaming reply renderer, topic persistence and title generation.
package chat

import (
	"context"
	"log/slog"
	"time"

	"github.com/hrygo/catgpt/ai/llm"
	"github.com/hrygo/catgpt/store"
)

// Pager renders long content to an external preview page.
type Pager interface {
	// CreatePage publishes content and returns its public URL and opaque
	// path for later updates.
	CreatePage(ctx context.Context, title, markdown string) (url string, path string, err error)
	// UpdatePage rewrites an existing page and returns its public URL.
	UpdatePage(ctx context.Context, path, title, markdown string) (string, error)
	// Token identifies the account owning created pages; cached page paths
	// are only reusable under the same token.
	Token() string
}

// Incoming is one user message the core should answer.
type Incoming struct {
	UID       int64
	ChatID    int64
	ChatType  string
	ThreadID  int64
	MessageID int
	Ts        int64
	Text      string
	// MediaData carries the image payload of a photo turn, base64-encoded.
	MediaData string
	Type      store.MessageType
}

// thinkingPlaceholder is the reply message's initial text.
const thinkingPlaceholder = "A smart cat is thinking..."

// Service wires the resolver, the reply renderer and the topic service into
// the inbound message flow.
type Service struct {
	store     *store.Store
	topics    *Topics
	resolver  *Resolver
	titler    *Titler
	endpoints llm.Endpoints
	messenger Messenger
	pager     Pager
	escape    func(string) string
	replyOpts ReplyOptions
	// providerFor resolves the completion backend for an endpoint.
	providerFor func(*llm.Endpoint) (llm.Provider, error)
}

func NewService(
	s *store.Store,
	topics *Topics,
	resolver *Resolver,
	titler *Titler,
	endpoints llm.Endpoints,
	messenger Messenger,
	pager Pager,
	escape func(string) string,
	replyOpts ReplyOptions,
) *Service {
	return &Service{
		store:       s,
		topics:      topics,
		resolver:    resolver,
		titler:      titler,
		endpoints:   endpoints,
		messenger:   messenger,
		pager:       pager,
		escape:      escape,
		replyOpts:   replyOpts,
		providerFor: llm.ProviderFor,
	}
}

func (s *Service) Topics() *Topics          { return s.topics }
func (s *Service) Resolver() *Resolver      { return s.resolver }
func (s *Service) Endpoints() llm.Endpoints { return s.endpoints }

// HandleMessage answers one inbound user message end to end: resolve the
// session, stream the model reply into a live-edited message, persist the
// exchange, then fire title generation. A fatal mid-stream error is
// reported in the reply message and nothing is persisted for the exchange.
func (s *Service) HandleMessage(ctx context.Context, in *Incoming) error {
	profile, err := s.resolver.Resolve(ctx, in.UID, in.ChatID, in.ChatType, in.ThreadID)
	if err != nil {
		return err
	}

	endpoint := s.resolver.Endpoint(profile)
	model := s.resolver.Model(profile, endpoint)

	topic, err := s.topics.GetTopic(ctx, profile.TopicID, true)
	if err != nil {
		return err
	}
	if topic == nil {
		// The profile can outlive its topic (explicit removal); re-provision.
		topic, err = s.topics.NewTopic(ctx, store.PlaceholderTitle, in.ChatID, in.UID,
			s.seedFor(profile), true, in.ThreadID)
		if err != nil {
			return err
		}
		profile.TopicID = topic.ID
		if err := s.store.UpdateProfile(ctx, profile); err != nil {
			return err
		}
	}

	userMsg := &store.Message{
		Role:      store.RoleUser,
		Content:   in.Text,
		MediaURL:  in.MediaData,
		MessageID: in.MessageID,
		ChatID:    in.ChatID,
		Ts:        in.Ts,
		TopicID:   topic.ID,
		Type:      in.Type,
	}

	transcript := buildPayload(topic.Messages)
	transcript = append(transcript, payloadMessage(userMsg))

	replyID, err := s.messenger.SendMessage(ctx, &Outgoing{
		ChatID:   in.ChatID,
		ThreadID: int(in.ThreadID),
		ReplyTo:  in.MessageID,
		Text:     thinkingPlaceholder,
		Plain:    true,
	})
	if err != nil {
		return err
	}

	provider, err := s.providerFor(endpoint)
	if err != nil {
		return err
	}
	chunks, errs, err := provider.StreamCompletion(ctx, endpoint, &llm.Request{
		Model:    model,
		Messages: transcript,
	})
	if err != nil {
		s.reportError(ctx, in.ChatID, replyID, "", err)
		return nil
	}

	reply := NewReply(s.messenger, s.escape, s.overflowRenderer(profile, topic), s.replyOpts)
	answer, reasoning, err := reply.Stream(ctx, chunks, errs, ReplyTarget{
		ChatID:    in.ChatID,
		MessageID: replyID,
		ThreadID:  int(in.ThreadID),
	})
	if err != nil {
		// Partial turns are discarded: the user's retry starts clean from
		// the last persisted exchange.
		s.reportError(ctx, in.ChatID, replyID, answer, err)
		return nil
	}

	assistantMsg := &store.Message{
		Role:      store.RoleAssistant,
		Content:   answer,
		MessageID: replyID,
		ChatID:    in.ChatID,
		TopicID:   topic.ID,
	}
	if err := s.topics.AppendTurn(ctx, topic.ID, userMsg, assistantMsg, reasoning); err != nil {
		return err
	}

	if topic.GenerateTitle && s.titler != nil {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			s.titler.MaybeGenerateTitle(ctx, topic, transcript, answer)
		}()
	}
	return nil
}

// StartTopic creates a topic seeded with the profile's preset prompt and
// activates it for the scope, atomically with the profile update. An empty
// title requests automatic title generation from the first exchange.
func (s *Service) StartTopic(ctx context.Context, profile *store.Profile, title string, threadID int64) (*store.Topic, error) {
	generate := title == ""
	if title == "" {
		title = store.PlaceholderTitle
	}

	var topic *store.Topic
	err := s.store.WithWrite(ctx, func(ctx context.Context) error {
		var err error
		topic, err = s.topics.NewTopic(ctx, title, profile.ChatID, profile.UID, s.seedFor(profile), generate, threadID)
		if err != nil {
			return err
		}
		profile.TopicID = topic.ID
		return s.store.UpdateProfile(ctx, profile)
	})
	if err != nil {
		return nil, err
	}
	return topic, nil
}

func (s *Service) seedFor(profile *store.Profile) []*store.Message {
	seed := s.resolver.SeedFor(profile)
	if seed == nil {
		return nil
	}
	return []*store.Message{seed}
}

// reportError appends the error text to whatever partial reply had been
// rendered. Failures to report are only logged; the original error context
// matters more.
func (s *Service) reportError(ctx context.Context, chatID int64, replyID int, partial string, cause error) {
	slog.Error("reply failed", "chat_id", chatID, "error", cause)
	text := partial + "\nError: " + cause.Error()
	if err := s.messenger.EditMessageText(ctx, chatID, replyID, s.escape(text)); err != nil {
		slog.Error("failed to report reply error", "chat_id", chatID, "error", err)
	}
}

// buildPayload converts persisted turns into prompt messages. Reasoning
// traces never re-enter the prompt.
func buildPayload(messages []*store.Message) []llm.Message {
	payload := make([]llm.Message, 0, len(messages)+1)
	for _, m := range messages {
		if m.Type == store.MessageTypeReasoning {
			continue
		}
		payload = append(payload, payloadMessage(m))
	}
	return payload
}

func payloadMessage(m *store.Message) llm.Message {
	msg := llm.Message{Role: string(m.Role), Content: m.Content}
	if m.Type == store.MessageTypePhoto {
		msg.MediaURL = m.MediaURL
	}
	return msg
}

// overflowRenderer returns the pagination fallback for overlong replies,
// reusing the profile's cached page when the pager token still matches.
func (s *Service) overflowRenderer(profile *store.Profile, topic *store.Topic) OverflowRenderer {
	if s.pager == nil {
		return nil
	}
	return func(ctx context.Context, markdown string) (string, error) {
		title := topic.Title
		if title == "" {
			title = store.PlaceholderTitle
		}

		if profile.PreviewURL != "" && profile.PreviewToken == s.pager.Token() {
			return s.pager.UpdatePage(ctx, profile.PreviewURL, title, markdown)
		}

		url, path, err := s.pager.CreatePage(ctx, title, markdown)
		if err != nil {
			return "", err
		}
		profile.PreviewURL = path
		profile.PreviewToken = s.pager.Token()
		if err := s.store.UpdateProfile(ctx, profile); err != nil {
			slog.Error("failed to cache preview page", "uid", profile.UID, "error", err)
		}
		return url, nil
	}
}
