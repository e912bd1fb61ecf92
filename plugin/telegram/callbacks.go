package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Callback data is "target:operation:message_ids:chat_id:uid". Message ids
// are delta-encoded against the first id to stay inside Telegram's 64-byte
// callback data limit.

func encodeMessageIDs(ids []int) string {
	var b strings.Builder
	b.WriteString(strconv.Itoa(ids[0]))
	for _, id := range ids[1:] {
		b.WriteString(",")
		b.WriteString(strconv.Itoa(id - ids[0]))
	}
	return b.String()
}

func decodeMessageIDs(encoded string) ([]int, error) {
	parts := strings.Split(encoded, ",")
	first, err := strconv.Atoi(parts[0])
	if err != nil {
		return nil, errors.Wrapf(err, "bad message id %q", parts[0])
	}
	ids := []int{first}
	for _, p := range parts[1:] {
		offset, err := strconv.Atoi(p)
		if err != nil {
			return nil, errors.Wrapf(err, "bad message id offset %q", p)
		}
		ids = append(ids, first+offset)
	}
	return ids, nil
}

// callbackData builds the callback payload for one keyboard button.
func callbackData(target, operation string, msgIDs []int, chatID, uid int64) string {
	return fmt.Sprintf("%s:%s:%s:%d:%d", target, operation, encodeMessageIDs(msgIDs), chatID, uid)
}

// handleCallback routes an inline keyboard press to its action. Presses from
// anyone but the user who opened the keyboard are ignored.
func (b *Bot) handleCallback(ctx context.Context, cb *callbackQuery) {
	if err := b.messenger.AnswerCallback(ctx, cb.ID); err != nil {
		slog.Warn("failed to answer callback", "error", err)
	}
	if cb.Message == nil || cb.From == nil {
		return
	}

	segments := strings.SplitN(cb.Data, ":", 5)
	if len(segments) != 5 {
		slog.Warn("malformed callback data", "data", cb.Data)
		return
	}
	target, operation := segments[0], segments[1]

	msgIDs, err := decodeMessageIDs(segments[2])
	if err != nil {
		slog.Warn("malformed callback message ids", "data", cb.Data, "error", err)
		return
	}
	chatID, err := strconv.ParseInt(segments[3], 10, 64)
	if err != nil {
		return
	}
	sourceUID, err := strconv.ParseInt(segments[4], 10, 64)
	if err != nil {
		return
	}
	if cb.From.ID != sourceUID {
		return
	}

	action, ok := b.actions[target]
	if !ok {
		slog.Warn("unknown callback target", "target", target)
		return
	}
	if err := action(ctx, operation, msgIDs, chatID, cb.From.ID, cb.Message); err != nil {
		slog.Error("callback action failed", "target", target, "operation", operation, "error", err)
	}
}
