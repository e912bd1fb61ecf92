package chat

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/catgpt/ai/llm"
	"github.com/hrygo/catgpt/store"
)

type fakePager struct {
	token   string
	created int
	updated int
	lastMD  string
}

func (p *fakePager) CreatePage(_ context.Context, _, markdown string) (string, string, error) {
	p.created++
	p.lastMD = markdown
	return "https://telegra.ph/created", "created-path", nil
}

func (p *fakePager) UpdatePage(_ context.Context, path, _, markdown string) (string, error) {
	p.updated++
	p.lastMD = markdown
	return "https://telegra.ph/" + path, nil
}

func (p *fakePager) Token() string { return p.token }

func newTestService(pager Pager) (*Service, *store.Store, *fakeMessenger) {
	st := newMemStore()
	topics := NewTopics(st)
	resolver := NewResolver(st, topics, testEndpoints(), Presets{DefaultPresetName: "Be brief."})
	messenger := newFakeMessenger()
	svc := NewService(st, topics, resolver, nil, testEndpoints(), messenger, pager, nil, testReplyOptions())
	return svc, st, messenger
}

// fakeProvider replays a scripted stream and records the request it served.
type fakeProvider struct {
	chunks    []llm.Chunk
	streamErr error
	gotReq    *llm.Request
}

func (p *fakeProvider) StreamCompletion(_ context.Context, _ *llm.Endpoint, req *llm.Request) (<-chan llm.Chunk, <-chan error, error) {
	p.gotReq = req
	ch := make(chan llm.Chunk)
	errs := make(chan error, 1)
	go func() {
		for _, c := range p.chunks {
			ch <- c
		}
		if p.streamErr != nil {
			errs <- p.streamErr
		}
		close(ch)
		close(errs)
	}()
	return ch, errs, nil
}

func (p *fakeProvider) Completion(context.Context, *llm.Endpoint, *llm.Request) (string, error) {
	return "", nil
}

func useProvider(svc *Service, p llm.Provider) {
	svc.providerFor = func(*llm.Endpoint) (llm.Provider, error) { return p, nil }
}

func TestStartTopicActivatesAtomically(t *testing.T) {
	ctx := context.Background()
	svc, st, _ := newTestService(nil)

	profile, err := svc.Resolver().Resolve(ctx, 1, 10, "private", 0)
	require.NoError(t, err)
	before := profile.TopicID

	topic, err := svc.StartTopic(ctx, profile, "", 0)
	require.NoError(t, err)
	assert.NotEqual(t, before, topic.ID)
	assert.Equal(t, store.PlaceholderTitle, topic.Title)
	assert.True(t, topic.GenerateTitle)

	stored, err := st.GetProfile(ctx, 1, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, topic.ID, stored.TopicID)

	// A seeded prompt rides along.
	messages, err := st.GetMessages(ctx, []int64{topic.ID})
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, "Be brief.", messages[0].Content)
}

func TestStartTopicExplicitTitleSkipsGeneration(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(nil)

	profile, err := svc.Resolver().Resolve(ctx, 1, 10, "private", 0)
	require.NoError(t, err)

	topic, err := svc.StartTopic(ctx, profile, "Holidays", 0)
	require.NoError(t, err)
	assert.Equal(t, "Holidays", topic.Title)
	assert.False(t, topic.GenerateTitle)
}

func TestHandleMessagePersistsExchange(t *testing.T) {
	ctx := context.Background()
	svc, st, messenger := newTestService(nil)
	provider := &fakeProvider{chunks: []llm.Chunk{
		{Content: "Hi "},
		{Content: "there", Finished: true},
	}}
	useProvider(svc, provider)

	err := svc.HandleMessage(ctx, &Incoming{
		UID: 1, ChatID: 10, ChatType: "private",
		MessageID: 5, Ts: 1000, Text: "Hello",
	})
	require.NoError(t, err)

	// The placeholder reply goes out first and gets live-edited into the
	// assembled answer.
	require.NotEmpty(t, messenger.sent)
	assert.Equal(t, thinkingPlaceholder, messenger.sent[0].Text)
	assert.Equal(t, 5, messenger.sent[0].ReplyTo)
	assert.Equal(t, "Hi there", messenger.lastEdit(101))

	// The prompt carried the seed and the user turn.
	require.NotNil(t, provider.gotReq)
	require.Len(t, provider.gotReq.Messages, 2)
	assert.Equal(t, "system", provider.gotReq.Messages[0].Role)
	assert.Equal(t, llm.Message{Role: "user", Content: "Hello"}, provider.gotReq.Messages[1])

	// The exchange is persisted as a paired turn after the seed.
	profile, err := st.GetProfile(ctx, 1, 10, 0)
	require.NoError(t, err)
	messages, err := st.GetMessages(ctx, []int64{profile.TopicID})
	require.NoError(t, err)
	require.Len(t, messages, 3)
	assert.Equal(t, store.RoleUser, messages[1].Role)
	assert.Equal(t, "Hello", messages[1].Content)
	assert.Equal(t, store.RoleAssistant, messages[2].Role)
	assert.Equal(t, "Hi there", messages[2].Content)
	assert.Equal(t, int64(1001), messages[2].Ts)
	assert.Equal(t, 101, messages[2].MessageID)
}

func TestHandleMessageDiscardsTurnOnStreamFailure(t *testing.T) {
	ctx := context.Background()
	svc, st, messenger := newTestService(nil)
	provider := &fakeProvider{
		chunks:    []llm.Chunk{{Content: "partial"}},
		streamErr: errors.New("upstream exploded"),
	}
	useProvider(svc, provider)

	err := svc.HandleMessage(ctx, &Incoming{
		UID: 1, ChatID: 10, ChatType: "private",
		MessageID: 5, Ts: 1000, Text: "Hello",
	})
	require.NoError(t, err, "a mid-stream failure is reported, not propagated")

	// The error is appended to whatever partial text had been rendered.
	last := messenger.lastEdit(101)
	assert.Contains(t, last, "partial")
	assert.Contains(t, last, "Error: upstream exploded")

	// Nothing of the failed exchange is persisted; only the seed remains.
	profile, err := st.GetProfile(ctx, 1, 10, 0)
	require.NoError(t, err)
	messages, err := st.GetMessages(ctx, []int64{profile.TopicID})
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, store.RoleSystem, messages[0].Role)
}

func TestBuildPayloadExcludesReasoning(t *testing.T) {
	messages := []*store.Message{
		{Role: store.RoleSystem, Content: "seed"},
		{Role: store.RoleUser, Content: "q"},
		{Role: store.RoleAssistant, Content: "a"},
		{Role: store.RoleAssistant, Content: "trace", Type: store.MessageTypeReasoning},
		{Role: store.RoleUser, Content: "pic", MediaURL: "data", Type: store.MessageTypePhoto},
	}

	payload := buildPayload(messages)
	require.Len(t, payload, 4)
	assert.Equal(t, llm.Message{Role: "system", Content: "seed"}, payload[0])
	assert.Equal(t, llm.Message{Role: "user", Content: "pic", MediaURL: "data"}, payload[3])
}

func TestOverflowRendererCachesPage(t *testing.T) {
	ctx := context.Background()
	pager := &fakePager{token: "tok-1"}
	svc, st, _ := newTestService(pager)

	profile, err := svc.Resolver().Resolve(ctx, 1, 10, "private", 0)
	require.NoError(t, err)
	topic := &store.Topic{ID: profile.TopicID, Title: "long story"}

	render := svc.overflowRenderer(profile, topic)
	require.NotNil(t, render)

	url, err := render(ctx, "body one")
	require.NoError(t, err)
	assert.Equal(t, "https://telegra.ph/created", url)
	assert.Equal(t, 1, pager.created)

	// The page path and token are persisted on the profile.
	stored, err := st.GetProfile(ctx, 1, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, "created-path", stored.PreviewURL)
	assert.Equal(t, "tok-1", stored.PreviewToken)

	// Subsequent overflows update the cached page.
	url, err = render(ctx, "body two")
	require.NoError(t, err)
	assert.Equal(t, "https://telegra.ph/created-path", url)
	assert.Equal(t, 1, pager.created)
	assert.Equal(t, 1, pager.updated)
	assert.Equal(t, "body two", pager.lastMD)
}

func TestOverflowRendererIgnoresStaleToken(t *testing.T) {
	ctx := context.Background()
	pager := &fakePager{token: "tok-2"}
	svc, _, _ := newTestService(pager)

	profile, err := svc.Resolver().Resolve(ctx, 1, 10, "private", 0)
	require.NoError(t, err)
	profile.PreviewURL = "old-path"
	profile.PreviewToken = "tok-1"

	render := svc.overflowRenderer(profile, &store.Topic{ID: 1, Title: "t"})
	_, err = render(ctx, "body")
	require.NoError(t, err)
	assert.Equal(t, 1, pager.created, "a cached page under another account is not reused")
	assert.Equal(t, 0, pager.updated)
}

func TestOverflowRendererNilPager(t *testing.T) {
	svc, _, _ := newTestService(nil)
	assert.Nil(t, svc.overflowRenderer(&store.Profile{}, &store.Topic{}))
}
