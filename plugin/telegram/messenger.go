// Package telegram adapts the Telegram Bot API to the chat core: outbound
// messaging, MarkdownV2 rendering, the update loop and command routing.
package telegram

import (
	"context"
	"encoding/json"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/pkg/errors"
	"golang.org/x/time/rate"

	"github.com/hrygo/catgpt/chat"
)

const parseModeMarkdownV2 = "MarkdownV2"

// Messenger implements chat.Messenger on top of the Bot API client. Requests
// are built as raw parameter maps because the pinned client release predates
// forum topics and cannot carry message_thread_id in its typed configs; the
// client still supplies auth, transport and error typing.
type Messenger struct {
	api     *tgbotapi.BotAPI
	limiter *rate.Limiter
}

// NewMessenger wraps the client with a global send limiter tuned under
// Telegram's 30 messages per second bot-wide cap.
func NewMessenger(api *tgbotapi.BotAPI) *Messenger {
	return &Messenger{
		api:     api,
		limiter: rate.NewLimiter(rate.Every(time.Second/25), 5),
	}
}

// Button is one inline keyboard button.
type Button struct {
	Text         string `json:"text"`
	CallbackData string `json:"callback_data"`
}

// wrapErr converts a Bot API failure into a PlatformError the reply pacing
// can classify. Non-API failures (transport, context) pass through.
func wrapErr(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) {
		return &chat.PlatformError{Code: apiErr.Code, Description: apiErr.Message}
	}
	return err
}

func (m *Messenger) request(ctx context.Context, method string, params tgbotapi.Params, result any) error {
	if err := m.limiter.Wait(ctx); err != nil {
		return err
	}
	resp, err := m.api.MakeRequest(method, params)
	if err != nil {
		return wrapErr(err)
	}
	if result != nil {
		if err := json.Unmarshal(resp.Result, result); err != nil {
			return errors.Wrapf(err, "unable to decode %s response", method)
		}
	}
	return nil
}

// SendMessage sends text and returns the platform message id.
func (m *Messenger) SendMessage(ctx context.Context, out *chat.Outgoing) (int, error) {
	return m.sendMessage(ctx, out, nil)
}

// SendKeyboard sends text with an inline keyboard attached.
func (m *Messenger) SendKeyboard(ctx context.Context, out *chat.Outgoing, keyboard [][]Button) (int, error) {
	return m.sendMessage(ctx, out, keyboard)
}

func (m *Messenger) sendMessage(ctx context.Context, out *chat.Outgoing, keyboard [][]Button) (int, error) {
	params := make(tgbotapi.Params)
	params.AddNonZero64("chat_id", out.ChatID)
	params["text"] = out.Text
	params.AddNonZero("reply_to_message_id", out.ReplyTo)
	params.AddNonZero("message_thread_id", out.ThreadID)
	params.AddBool("disable_web_page_preview", true)
	params.AddBool("allow_sending_without_reply", true)
	if !out.Plain {
		params["parse_mode"] = parseModeMarkdownV2
	}
	if keyboard != nil {
		markup, err := json.Marshal(map[string]any{"inline_keyboard": keyboard})
		if err != nil {
			return 0, err
		}
		params["reply_markup"] = string(markup)
	}

	var sent struct {
		MessageID int `json:"message_id"`
	}
	if err := m.request(ctx, "sendMessage", params, &sent); err != nil {
		return 0, err
	}
	return sent.MessageID, nil
}

// EditMessageText replaces the text of a previously sent message.
func (m *Messenger) EditMessageText(ctx context.Context, chatID int64, messageID int, text string) error {
	params := make(tgbotapi.Params)
	params.AddNonZero64("chat_id", chatID)
	params.AddNonZero("message_id", messageID)
	params["text"] = text
	params["parse_mode"] = parseModeMarkdownV2
	params.AddBool("disable_web_page_preview", true)
	return m.request(ctx, "editMessageText", params, nil)
}

// SendDocument uploads data as a document reply. Uploads go through the
// typed client API since multipart bodies cannot be expressed as raw params.
func (m *Messenger) SendDocument(ctx context.Context, chatID int64, replyTo int, filename string, data []byte) (int, error) {
	if err := m.limiter.Wait(ctx); err != nil {
		return 0, err
	}
	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{Name: filename, Bytes: data})
	doc.ReplyToMessageID = replyTo
	sent, err := m.api.Send(doc)
	if err != nil {
		return 0, wrapErr(err)
	}
	return sent.MessageID, nil
}

// DeleteMessages removes messages one by one. A message that is already gone
// or too old to delete is not an error worth failing the operation for.
func (m *Messenger) DeleteMessages(ctx context.Context, chatID int64, messageIDs []int) error {
	for _, id := range messageIDs {
		params := make(tgbotapi.Params)
		params.AddNonZero64("chat_id", chatID)
		params.AddNonZero("message_id", id)
		if err := m.request(ctx, "deleteMessage", params, nil); err != nil {
			var pe *chat.PlatformError
			if errors.As(err, &pe) && pe.Code == 400 {
				continue
			}
			return err
		}
	}
	return nil
}

// AnswerCallback acknowledges a callback query so the client stops showing
// its progress spinner.
func (m *Messenger) AnswerCallback(ctx context.Context, callbackID string) error {
	params := make(tgbotapi.Params)
	params["callback_query_id"] = callbackID
	return m.request(ctx, "answerCallbackQuery", params, nil)
}

var _ chat.Messenger = (*Messenger)(nil)
