package chat

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/spf13/viper"
	"golang.org/x/sync/singleflight"

	"github.com/hrygo/catgpt/ai/llm"
	"github.com/hrygo/catgpt/store"
)

// Resolver maps an inbound (uid, chat, thread) scope to its session profile
// and active topic, provisioning both lazily on first contact.
type Resolver struct {
	store     *store.Store
	topics    *Topics
	endpoints llm.Endpoints
	presets   Presets

	group singleflight.Group

	// enrolled memoizes positive enrollment checks. The keyspace is one
	// entry per user, small enough that entries are never evicted.
	mu       sync.Mutex
	enrolled map[int64]bool
}

// Presets maps a preset name to its system prompt text.
type Presets map[string]string

// DefaultPresetName is the preset used for new profiles.
const DefaultPresetName = "System"

// Prompt returns the preset's system prompt, or empty when unknown.
func (p Presets) Prompt(name string) string {
	return p[name]
}

// LoadPresets reads the prompt presets from the shared config file. A file
// without a prompts section yields an empty set, which is valid: topics then
// start without a seed prompt.
func LoadPresets(path string) (Presets, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read presets config %q: %w", path, err)
	}

	presets := Presets{}
	if err := v.UnmarshalKey("prompts", &presets); err != nil {
		return nil, fmt.Errorf("failed to parse prompt presets: %w", err)
	}
	return presets, nil
}

func NewResolver(s *store.Store, topics *Topics, endpoints llm.Endpoints, presets Presets) *Resolver {
	if presets == nil {
		presets = Presets{}
	}
	return &Resolver{
		store:     s,
		topics:    topics,
		endpoints: endpoints,
		presets:   presets,
		enrolled:  map[int64]bool{},
	}
}

func scopeKey(uid, chatID, threadID int64) string {
	return fmt.Sprintf("%d-%d-%d", uid, chatID, threadID)
}

// Resolve returns the profile for the scope, creating a default profile
// bound to the default endpoint and a freshly seeded topic when none exists.
// It is idempotent and safe to call on every inbound message; concurrent
// first contacts for the same scope are collapsed into one provisioning.
func (r *Resolver) Resolve(ctx context.Context, uid, chatID int64, chatType string, threadID int64) (*store.Profile, error) {
	profile, err := r.store.GetProfile(ctx, uid, chatID, threadID)
	if err != nil {
		return nil, err
	}
	if profile != nil {
		return profile, nil
	}

	v, err, _ := r.group.Do(scopeKey(uid, chatID, threadID), func() (any, error) {
		// Re-check under the flight: the losing caller of a race lands here
		// after the winner committed.
		profile, err := r.store.GetProfile(ctx, uid, chatID, threadID)
		if err != nil || profile != nil {
			return profile, err
		}
		return r.provision(ctx, uid, chatID, chatType, threadID)
	})
	if err != nil {
		return nil, err
	}
	return v.(*store.Profile), nil
}

func (r *Resolver) provision(ctx context.Context, uid, chatID int64, chatType string, threadID int64) (*store.Profile, error) {
	endpoint := r.endpoints.Default()

	profile := &store.Profile{
		UID:      uid,
		Model:    endpoint.DefaultModel,
		Endpoint: endpoint.Name,
		Prompt:   DefaultPresetName,
		ChatType: store.ChatTypeOf(chatType),
		ChatID:   chatID,
		ThreadID: threadID,
	}

	err := r.store.WithWrite(ctx, func(ctx context.Context) error {
		topic, err := r.topics.NewTopic(ctx, store.PlaceholderTitle, chatID, uid, r.seedMessages(profile, chatID), true, threadID)
		if err != nil {
			return err
		}
		profile.TopicID = topic.ID
		return r.store.CreateProfile(ctx, profile)
	})
	if err != nil {
		return nil, err
	}

	slog.Info("provisioned session", "uid", uid, "chat_id", chatID, "thread_id", threadID, "endpoint", endpoint.Name)
	return profile, nil
}

// seedMessages builds the system prompt seed for a new topic, if the
// profile's preset has one.
func (r *Resolver) seedMessages(profile *store.Profile, chatID int64) []*store.Message {
	prompt := r.presets.Prompt(profile.Prompt)
	if prompt == "" {
		return nil
	}
	return []*store.Message{SeedPrompt(prompt, chatID)}
}

// SeedPrompt wraps a system prompt text into a message record.
func SeedPrompt(prompt string, chatID int64) *store.Message {
	return &store.Message{
		Role:    store.RoleSystem,
		Content: prompt,
		ChatID:  chatID,
	}
}

// SeedFor returns the seed prompt for the profile's preset, or nil.
func (r *Resolver) SeedFor(profile *store.Profile) *store.Message {
	prompt := r.presets.Prompt(profile.Prompt)
	if prompt == "" {
		return nil
	}
	return SeedPrompt(prompt, profile.ChatID)
}

// SwitchModel activates a model for the scope. A model outside the active
// endpoint's supported set is silently coerced to that endpoint's default.
func (r *Resolver) SwitchModel(ctx context.Context, profile *store.Profile, model string) error {
	endpoint := r.endpoints.Get(profile.Endpoint)
	if endpoint == nil {
		endpoint = r.endpoints.Default()
		profile.Endpoint = endpoint.Name
	}
	if !endpoint.SupportsModel(model) {
		model = endpoint.DefaultModel
	}
	profile.Model = model
	return r.store.UpdateProfile(ctx, profile)
}

// SwitchEndpoint activates an endpoint, coercing the model to the
// endpoint's default when the current one is not supported there.
func (r *Resolver) SwitchEndpoint(ctx context.Context, profile *store.Profile, endpointName string) error {
	endpoint := r.endpoints.Get(endpointName)
	if endpoint == nil {
		return fmt.Errorf("unknown endpoint %q", endpointName)
	}
	profile.Endpoint = endpoint.Name
	if !endpoint.SupportsModel(profile.Model) {
		profile.Model = endpoint.DefaultModel
	}
	return r.store.UpdateProfile(ctx, profile)
}

// SwitchTopic activates an existing topic for the scope.
func (r *Resolver) SwitchTopic(ctx context.Context, profile *store.Profile, topicID int64) error {
	topic, err := r.store.GetTopic(ctx, topicID)
	if err != nil {
		return err
	}
	if topic == nil {
		return fmt.Errorf("topic %d not found", topicID)
	}
	profile.TopicID = topicID
	return r.store.UpdateProfile(ctx, profile)
}

// Endpoint resolves the profile's active endpoint, falling back to the
// process default.
func (r *Resolver) Endpoint(profile *store.Profile) *llm.Endpoint {
	if endpoint := r.endpoints.Get(profile.Endpoint); endpoint != nil {
		return endpoint
	}
	return r.endpoints.Default()
}

// Model resolves the model to use for the profile on the given endpoint.
func (r *Resolver) Model(profile *store.Profile, endpoint *llm.Endpoint) string {
	if endpoint.SupportsModel(profile.Model) {
		return profile.Model
	}
	return endpoint.DefaultModel
}

// IsEnrolled reports whether the user may talk to the bot.
func (r *Resolver) IsEnrolled(ctx context.Context, uid int64) (bool, error) {
	r.mu.Lock()
	if r.enrolled[uid] {
		r.mu.Unlock()
		return true, nil
	}
	r.mu.Unlock()

	user, err := r.store.GetUser(ctx, uid)
	if err != nil {
		return false, err
	}
	if user == nil || user.Blocked {
		return false, nil
	}

	r.mu.Lock()
	r.enrolled[uid] = true
	r.mu.Unlock()
	return true, nil
}

// Enroll admits a user.
func (r *Resolver) Enroll(ctx context.Context, uid int64) error {
	user, err := r.store.GetUser(ctx, uid)
	if err != nil {
		return err
	}
	if user != nil {
		if user.Blocked {
			user.Blocked = false
			return r.store.UpdateUser(ctx, user)
		}
		return nil
	}
	return r.store.CreateUser(ctx, &store.User{UID: uid})
}
