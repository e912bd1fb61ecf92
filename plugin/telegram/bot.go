package telegram

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/pkg/errors"

	"github.com/hrygo/catgpt/chat"
	"github.com/hrygo/catgpt/store"
)

const (
	longPollSeconds = 30
	pollRetryDelay  = 3 * time.Second

	enrollHint = "Please enter a valid key to use this bot. You can do this by typing '/key key'."
)

// Config carries the bot-level settings of the Telegram front end.
type Config struct {
	// Token is the bot token from BotFather.
	Token string
	// AccessKey gates enrollment via /key.
	AccessKey string
	// RespondGroup is the default group answering policy before a group
	// admin sets one with /respond.
	RespondGroup bool
}

// actionFunc handles one inline keyboard callback. msgIDs carries the
// related chat message ids encoded into the callback data, first the
// triggering command message.
type actionFunc func(ctx context.Context, operation string, msgIDs []int, chatID int64, uid int64, cb *incoming) error

// Sharer publishes a conversation transcript externally and returns its
// public URL. label identifies the conversation across re-shares.
type Sharer interface {
	Export(ctx context.Context, title, label, body string) (string, error)
}

// Bot runs the Telegram front end: it polls updates, routes commands and
// keyboard callbacks, and feeds plain messages into the chat service.
type Bot struct {
	api       *tgbotapi.BotAPI
	messenger *Messenger
	svc       *chat.Service
	store     *store.Store
	groups    *groupGate
	sharer    Sharer
	accessKey string
	mention   string
	client    *http.Client
	actions   map[string]actionFunc
}

// NewBot builds the front end. sharer may be nil when no share backend is
// configured. The chat service is attached afterwards via Bind because it
// needs this bot's messenger to send with.
func NewBot(cfg Config, st *store.Store, sharer Sharer) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, errors.Wrap(err, "unable to create bot api client")
	}

	b := &Bot{
		api:       api,
		messenger: NewMessenger(api),
		store:     st,
		groups:    newGroupGate(st, cfg.RespondGroup),
		sharer:    sharer,
		accessKey: cfg.AccessKey,
		mention:   "@" + api.Self.UserName,
		client:    &http.Client{Timeout: 30 * time.Second},
	}
	b.actions = map[string]actionFunc{
		"clear":     b.doClear,
		"model":     b.doModelChange,
		"endpoint":  b.doEndpointChange,
		"list":      b.doTopicChange,
		"list_tips": b.doTopicTips,
		"revoke":    b.doRevoke,
		"respond":   b.doRespondChange,
	}
	return b, nil
}

// Messenger exposes the outbound adapter for wiring into the chat core.
func (b *Bot) Messenger() *Messenger { return b.messenger }

// Bind attaches the chat service the bot routes messages into.
func (b *Bot) Bind(svc *chat.Service) { b.svc = svc }

// Run registers the command menu and polls updates until ctx is cancelled.
// Each update is handled on its own goroutine so one slow model reply never
// blocks the loop.
func (b *Bot) Run(ctx context.Context) error {
	if b.svc == nil {
		return errors.New("bot has no chat service bound")
	}
	if err := b.setCommands(ctx); err != nil {
		slog.Warn("failed to register command menu", "error", err)
	}
	slog.Info("telegram bot started", "username", b.api.Self.UserName)

	offset := 0
	for {
		updates, err := b.getUpdates(ctx, offset)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			slog.Error("failed to fetch updates", "error", err)
			select {
			case <-time.After(pollRetryDelay):
				continue
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		for _, u := range updates {
			offset = u.ID + 1
			go b.handleUpdate(ctx, u)
		}
	}
}

func (b *Bot) setCommands(ctx context.Context) error {
	commands := []map[string]string{
		{"command": "new", "description": "start a new topic: [title]"},
		{"command": "list", "description": "all topics"},
		{"command": "endpoint", "description": "display endpoints: [endpoint_name]"},
		{"command": "model", "description": "display models: [model_name]"},
		{"command": "revoke", "description": "revoke messages: [count]"},
		{"command": "clear", "description": "clear context: [history|all]"},
		{"command": "respond", "description": "respond group message [y|n]"},
	}
	params := make(tgbotapi.Params)
	if err := params.AddInterface("commands", commands); err != nil {
		return err
	}
	return b.messenger.request(ctx, "setMyCommands", params, nil)
}

func (b *Bot) handleUpdate(ctx context.Context, u *update) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic while handling update", "update_id", u.ID, "panic", r)
		}
	}()

	switch {
	case u.CallbackQuery != nil:
		b.handleCallback(ctx, u.CallbackQuery)
	case u.Message != nil && u.Message.From != nil:
		b.handleMessage(ctx, u.Message)
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *incoming) {
	if strings.HasPrefix(msg.Text, "/") {
		b.handleCommand(ctx, msg)
		return
	}
	b.handleChat(ctx, msg)
}

// handleChat feeds a plain message into the streaming reply flow.
func (b *Bot) handleChat(ctx context.Context, msg *incoming) {
	text := msg.Text
	if msg.Chat.isGroup() {
		mentioned := strings.Contains(text, b.mention)
		if !mentioned && !b.groups.Responds(ctx, msg.Chat.ID) {
			return
		}
		text = strings.TrimSpace(strings.ReplaceAll(text, b.mention, ""))
	}

	ok, err := b.ensureEnrolled(ctx, msg)
	if err != nil || !ok {
		return
	}

	in := &chat.Incoming{
		UID:       msg.From.ID,
		ChatID:    msg.Chat.ID,
		ChatType:  msg.Chat.Type,
		ThreadID:  int64(msg.ThreadID),
		MessageID: msg.MessageID,
		Ts:        msg.Date,
		Text:      text,
		Type:      store.MessageTypeText,
	}

	if len(msg.Photo) > 0 {
		data, err := b.downloadPhoto(ctx, msg.Photo)
		if err != nil {
			slog.Error("failed to download photo", "chat_id", msg.Chat.ID, "error", err)
			b.replyPlain(ctx, msg, "Failed to read the photo, please retry.")
			return
		}
		in.Type = store.MessageTypePhoto
		in.Text = msg.Caption
		in.MediaData = base64.StdEncoding.EncodeToString(data)
	}

	if err := b.svc.HandleMessage(ctx, in); err != nil {
		slog.Error("failed to handle message", "chat_id", msg.Chat.ID, "error", err)
		b.replyPlain(ctx, msg, "Error: "+err.Error())
	}
}

// ensureEnrolled verifies access and provisions the session profile. Not
// enrolled is answered with the key hint, not treated as an error.
func (b *Bot) ensureEnrolled(ctx context.Context, msg *incoming) (bool, error) {
	enrolled, err := b.svc.Resolver().IsEnrolled(ctx, msg.From.ID)
	if err != nil {
		slog.Error("enrollment check failed", "uid", msg.From.ID, "error", err)
		return false, err
	}
	if !enrolled {
		b.replyPlain(ctx, msg, enrollHint)
		return false, nil
	}
	return true, nil
}

// downloadPhoto fetches the largest rendition of the photo.
func (b *Bot) downloadPhoto(ctx context.Context, photos []photoSize) ([]byte, error) {
	largest := photos[len(photos)-1]
	file, err := b.api.GetFile(tgbotapi.FileConfig{FileID: largest.FileID})
	if err != nil {
		return nil, wrapErr(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, file.Link(b.api.Token), nil)
	if err != nil {
		return nil, err
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("photo download failed with status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func (b *Bot) replyPlain(ctx context.Context, msg *incoming, text string) {
	_, err := b.messenger.SendMessage(ctx, &chat.Outgoing{
		ChatID:   msg.Chat.ID,
		ThreadID: msg.ThreadID,
		ReplyTo:  msg.MessageID,
		Text:     text,
		Plain:    true,
	})
	if err != nil {
		slog.Error("failed to send reply", "chat_id", msg.Chat.ID, "error", err)
	}
}

func (b *Bot) reply(ctx context.Context, msg *incoming, markdown string) {
	_, err := b.messenger.SendMessage(ctx, &chat.Outgoing{
		ChatID:   msg.Chat.ID,
		ThreadID: msg.ThreadID,
		ReplyTo:  msg.MessageID,
		Text:     Escape(markdown),
	})
	if err != nil {
		slog.Error("failed to send reply", "chat_id", msg.Chat.ID, "error", err)
	}
}

// commandArg strips the command itself and the bot mention, leaving the
// argument text.
func (b *Bot) commandArg(msg *incoming, command string) string {
	text := strings.TrimPrefix(msg.Text, "/"+command)
	text = strings.ReplaceAll(text, b.mention, "")
	return strings.TrimSpace(text)
}

func (b *Bot) profileOf(ctx context.Context, msg *incoming) (*store.Profile, error) {
	return b.svc.Resolver().Resolve(ctx, msg.From.ID, msg.Chat.ID, msg.Chat.Type, int64(msg.ThreadID))
}

func (b *Bot) profileText(ctx context.Context, profile *store.Profile) string {
	title := "None"
	if profile.TopicID > 0 {
		topic, err := b.svc.Topics().GetTopic(ctx, profile.TopicID, false)
		if err == nil && topic != nil {
			title = topic.Title
		}
	}
	return fmt.Sprintf("current topic: `%s`\nmodel: `%s`\nendpoint: `%s`\nprompt: `%s`",
		title, profile.Model, profile.Endpoint, profile.Prompt)
}
