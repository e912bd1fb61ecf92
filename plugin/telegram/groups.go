package telegram

import (
	"context"
	"log/slog"
	"sync"

	"github.com/hrygo/catgpt/store"
)

// groupGate decides whether the bot answers unaddressed messages in a group.
// Decisions are memoized per chat; the keyspace is one entry per group the
// bot is a member of.
type groupGate struct {
	store    *store.Store
	fallback bool

	mu   sync.Mutex
	memo map[int64]bool
}

func newGroupGate(st *store.Store, fallback bool) *groupGate {
	return &groupGate{
		store:    st,
		fallback: fallback,
		memo:     map[int64]bool{},
	}
}

// Responds reports the answering policy for the group, provisioning the
// default on first contact. Storage failures fall back to the configured
// default rather than silencing the group.
func (g *groupGate) Responds(ctx context.Context, chatID int64) bool {
	g.mu.Lock()
	if v, ok := g.memo[chatID]; ok {
		g.mu.Unlock()
		return v
	}
	g.mu.Unlock()

	group, err := g.store.GetGroup(ctx, chatID)
	if err != nil {
		slog.Error("failed to load group policy", "chat_id", chatID, "error", err)
		return g.fallback
	}
	respond := g.fallback
	if group == nil {
		err = g.store.CreateGroup(ctx, &store.Group{ChatID: chatID, RespondMessage: respond})
		if err != nil {
			slog.Error("failed to provision group policy", "chat_id", chatID, "error", err)
			return respond
		}
	} else {
		respond = group.RespondMessage
	}

	g.mu.Lock()
	g.memo[chatID] = respond
	g.mu.Unlock()
	return respond
}

// SetRespond updates the answering policy.
func (g *groupGate) SetRespond(ctx context.Context, chatID int64, respond bool) error {
	if err := g.store.UpdateGroup(ctx, &store.Group{ChatID: chatID, RespondMessage: respond}); err != nil {
		return err
	}
	g.mu.Lock()
	g.memo[chatID] = respond
	g.mu.Unlock()
	return nil
}
