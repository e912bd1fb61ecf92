package telegram

import (
	"context"
	"encoding/json"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/pkg/errors"
)

// The update structs mirror only the Bot API fields the bot consumes. They
// are decoded locally because the pinned client release predates forum
// topics and drops message_thread_id from its typed updates.

type update struct {
	ID            int            `json:"update_id"`
	Message       *incoming      `json:"message"`
	CallbackQuery *callbackQuery `json:"callback_query"`
}

type incoming struct {
	MessageID int         `json:"message_id"`
	ThreadID  int         `json:"message_thread_id"`
	From      *userRef    `json:"from"`
	Chat      chatRef     `json:"chat"`
	Date      int64       `json:"date"`
	Text      string      `json:"text"`
	Caption   string      `json:"caption"`
	Photo     []photoSize `json:"photo"`
}

type userRef struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

type chatRef struct {
	ID   int64  `json:"id"`
	Type string `json:"type"`
}

type photoSize struct {
	FileID   string `json:"file_id"`
	FileSize int    `json:"file_size"`
}

type callbackQuery struct {
	ID      string    `json:"id"`
	From    *userRef  `json:"from"`
	Message *incoming `json:"message"`
	Data    string    `json:"data"`
}

// isGroup reports whether the chat is any multi-member scope.
func (c chatRef) isGroup() bool {
	switch c.Type {
	case "group", "supergroup", "gigagroup", "channel":
		return true
	}
	return false
}

// getUpdates long-polls for the next batch of updates.
func (b *Bot) getUpdates(ctx context.Context, offset int) ([]*update, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	params := make(tgbotapi.Params)
	params.AddNonZero("offset", offset)
	params["timeout"] = strconv.Itoa(longPollSeconds)

	resp, err := b.api.MakeRequest("getUpdates", params)
	if err != nil {
		return nil, wrapErr(err)
	}

	var updates []*update
	if err := json.Unmarshal(resp.Result, &updates); err != nil {
		return nil, errors.Wrap(err, "unable to decode updates")
	}
	return updates, nil
}
