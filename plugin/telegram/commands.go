package telegram

import (
	"context"
	"crypto/hmac"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/hrygo/catgpt/chat"
	"github.com/hrygo/catgpt/store"
)

func (b *Bot) handleCommand(ctx context.Context, msg *incoming) {
	fields := strings.Fields(msg.Text)
	command := strings.TrimPrefix(fields[0], "/")
	command = strings.TrimSuffix(command, b.mention)

	if command == "key" {
		b.handleKey(ctx, msg)
		return
	}

	ok, err := b.ensureEnrolled(ctx, msg)
	if err != nil || !ok {
		return
	}

	handlers := map[string]func(context.Context, *incoming){
		"new":      b.handleNew,
		"list":     b.handleList,
		"clear":    b.handleClear,
		"model":    b.handleModel,
		"endpoint": b.handleEndpoint,
		"revoke":   b.handleRevoke,
		"respond":  b.handleRespond,
	}
	handler, ok2 := handlers[command]
	if !ok2 {
		return
	}
	handler(ctx, msg)
}

// handleKey enrolls a user presenting the access key. The key message is
// deleted on success so the secret does not linger in the chat history.
func (b *Bot) handleKey(ctx context.Context, msg *incoming) {
	enrolled, err := b.svc.Resolver().IsEnrolled(ctx, msg.From.ID)
	if err != nil {
		slog.Error("enrollment check failed", "uid", msg.From.ID, "error", err)
		return
	}

	var text string
	switch {
	case enrolled:
		text = "You have already been registered in the system. No need to enter the key again."
	case b.accessKey != "" && hmac.Equal([]byte(b.commandArg(msg, "key")), []byte(b.accessKey)):
		if err := b.svc.Resolver().Enroll(ctx, msg.From.ID); err != nil {
			slog.Error("enrollment failed", "uid", msg.From.ID, "error", err)
			return
		}
		text = fmt.Sprintf("@%s Your registration is complete. Have fun!", msg.From.Username)
		if err := b.messenger.DeleteMessages(ctx, msg.Chat.ID, []int{msg.MessageID}); err != nil {
			slog.Warn("failed to delete key message", "error", err)
		}
	default:
		text = "Invalid key. Please enter a valid key to proceed."
	}
	b.replyPlain(ctx, msg, text)
}

func (b *Bot) handleNew(ctx context.Context, msg *incoming) {
	profile, err := b.profileOf(ctx, msg)
	if err != nil {
		slog.Error("failed to load profile", "uid", msg.From.ID, "error", err)
		return
	}

	title := b.commandArg(msg, "new")
	if _, err := b.svc.StartTopic(ctx, profile, title, int64(msg.ThreadID)); err != nil {
		slog.Error("failed to create topic", "uid", msg.From.ID, "error", err)
		b.replyPlain(ctx, msg, "Failed to create a new topic.")
		return
	}
	b.reply(ctx, msg, "A new topic has been created.\n"+b.profileText(ctx, profile))
}

func (b *Bot) handleList(ctx context.Context, msg *incoming) {
	b.showTopicList(ctx, msg.From.ID, msg.MessageID, msg.Chat.ID, msg.ThreadID, -1)
}

// showTopicList renders the topic index with one numbered button per topic.
// A positive editMsgID refreshes an already displayed list in place.
func (b *Bot) showTopicList(ctx context.Context, uid int64, msgID int, chatID int64, threadID, editMsgID int) {
	profile, err := b.svc.Resolver().Resolve(ctx, uid, chatID, "private", int64(threadID))
	if err != nil {
		slog.Error("failed to load profile", "uid", uid, "error", err)
		return
	}

	title := "None"
	if current, err := b.svc.Topics().GetTopic(ctx, profile.TopicID, false); err == nil && current != nil {
		title = current.Title
	}

	topics, err := b.svc.Topics().ListTopicsWithMessages(ctx, uid, chatID, int64(threadID))
	if err != nil {
		slog.Error("failed to list topics", "uid", uid, "error", err)
		return
	}

	var (
		text     = fmt.Sprintf("Current topic: `%s` \n\nlist of topics:\n", title)
		keyboard [][]Button
		row      []Button
	)
	for i, t := range topics {
		if len(row) == 5 {
			keyboard = append(keyboard, row)
			row = nil
		}
		row = append(row, Button{
			Text:         strconv.Itoa(i + 1),
			CallbackData: callbackData("list_tips", strconv.FormatInt(t.ID, 10), []int{msgID}, chatID, uid),
		})
		text += fmt.Sprintf("%d. %s\n", i+1, t.Title)
	}
	if len(row) > 0 {
		keyboard = append(keyboard, row)
		keyboard = append(keyboard, []Button{{
			Text:         "dismiss",
			CallbackData: callbackData("list_tips", "dismiss", []int{msgID}, chatID, uid),
		}})
	}

	out := &chat.Outgoing{ChatID: chatID, ThreadID: threadID, Text: text, Plain: true}
	if editMsgID > 0 {
		if err := b.editKeyboard(ctx, chatID, editMsgID, text, keyboard); err != nil {
			slog.Error("failed to refresh topic list", "error", err)
		}
		return
	}
	if _, err := b.messenger.SendKeyboard(ctx, out, keyboard); err != nil {
		slog.Error("failed to send topic list", "error", err)
	}
}

func (b *Bot) editKeyboard(ctx context.Context, chatID int64, messageID int, text string, keyboard [][]Button) error {
	params := make(tgbotapi.Params)
	params.AddNonZero64("chat_id", chatID)
	params.AddNonZero("message_id", messageID)
	params["text"] = text
	if keyboard != nil {
		if err := params.AddInterface("reply_markup", map[string]any{"inline_keyboard": keyboard}); err != nil {
			return err
		}
	}
	return b.messenger.request(ctx, "editMessageText", params, nil)
}

// doTopicTips shows the per-topic action menu with a short preview of the
// latest exchange.
func (b *Bot) doTopicTips(ctx context.Context, operation string, msgIDs []int, chatID, uid int64, cb *incoming) error {
	if operation == "dismiss" {
		return b.messenger.DeleteMessages(ctx, chatID, append(msgIDs, cb.MessageID))
	}

	topicID, err := strconv.ParseInt(operation, 10, 64)
	if err != nil {
		return err
	}
	topic, err := b.svc.Topics().GetTopic(ctx, topicID, true)
	if err != nil || topic == nil {
		return err
	}

	contextIDs := append(msgIDs, cb.MessageID)
	ops := []struct{ label, op string }{
		{"switch", "s"}, {"share", "sr"}, {"download", "dl"}, {"delete", "d"},
	}
	var row []Button
	for _, o := range ops {
		row = append(row, Button{
			Text:         o.label,
			CallbackData: callbackData("list", fmt.Sprintf("%s_%d", o.op, topicID), contextIDs, chatID, uid),
		})
	}
	keyboard := [][]Button{row, {{
		Text:         "dismiss",
		CallbackData: callbackData("list", fmt.Sprintf("c_%d", topicID), contextIDs, chatID, uid),
	}}}

	var summary string
	if n := len(topic.Messages); n >= 2 {
		segments := chat.MessagesToSegments(topic.Messages[n-2:], chat.MaxSegmentLength)
		if len(segments) > 0 {
			summary = segments[0]
		}
	}
	preview := Escape(fmt.Sprintf("**What would you like to do on the topic** `<%s>`?\n\n%s", topic.Title, summary))
	if len(preview) > chat.MaxSegmentLength {
		preview = preview[:chat.MaxSegmentLength-3] + "..."
	}

	_, err = b.messenger.SendKeyboard(ctx, &chat.Outgoing{ChatID: chatID, Text: preview}, keyboard)
	return err
}

// doTopicChange executes one topic menu action: switch, share, download or
// delete.
func (b *Bot) doTopicChange(ctx context.Context, operation string, msgIDs []int, chatID, uid int64, cb *incoming) error {
	op, rest, ok := strings.Cut(operation, "_")
	if !ok {
		return nil
	}
	topicID, err := strconv.ParseInt(rest, 10, 64)
	if err != nil {
		return err
	}

	topic, err := b.svc.Topics().GetTopic(ctx, topicID, true)
	if err != nil {
		return err
	}
	if topic == nil {
		b.sendMarkdown(ctx, chatID, cb.ThreadID, fmt.Sprintf("topic `%d` not found", topicID))
		return b.messenger.DeleteMessages(ctx, chatID, []int{cb.MessageID})
	}

	switch op {
	case "s":
		profile, err := b.svc.Resolver().Resolve(ctx, uid, chatID, cb.Chat.Type, int64(cb.ThreadID))
		if err != nil {
			return err
		}
		if err := b.svc.Resolver().SwitchTopic(ctx, profile, topicID); err != nil {
			return err
		}
		b.sendMarkdown(ctx, chatID, cb.ThreadID, fmt.Sprintf("Switched to topic `%s`", topic.Title))
		return b.messenger.DeleteMessages(ctx, chatID, append(msgIDs, cb.MessageID))

	case "sr":
		if b.sharer == nil || len(topic.Messages) == 0 {
			return nil
		}
		segments := chat.MessagesToSegments(topic.Messages, 65535)
		url, err := b.sharer.Export(ctx, topic.Title, topic.Label, segments[0])
		if err != nil {
			return err
		}
		b.sendMarkdown(ctx, chatID, cb.ThreadID, "Share link: "+url)

	case "dl":
		if len(topic.Messages) > 0 {
			segments := chat.MessagesToSegments(topic.Messages, 65536)
			_, err = b.messenger.SendDocument(ctx, chatID, msgIDs[0], topic.Title+".md", []byte(segments[0]))
			if err != nil {
				return err
			}
		}

	case "d":
		if err := b.svc.Topics().RemoveTopic(ctx, topicID); err != nil {
			return err
		}
		b.showTopicList(ctx, uid, msgIDs[0], chatID, cb.ThreadID, msgIDs[len(msgIDs)-1])
	}

	return b.messenger.DeleteMessages(ctx, chatID, []int{cb.MessageID})
}

var clearOps = map[string]bool{"history": true, "all": true}

func (b *Bot) handleClear(ctx context.Context, msg *incoming) {
	arg := b.commandArg(msg, "clear")
	if clearOps[arg] {
		op := "yes"
		if arg == "all" {
			op = "all"
		}
		if err := b.doClear(ctx, op, []int{msg.MessageID}, msg.Chat.ID, msg.From.ID, msg); err != nil {
			slog.Error("clear failed", "uid", msg.From.ID, "error", err)
		}
		return
	}

	keyboard := [][]Button{{
		{Text: "clear", CallbackData: callbackData("clear", "yes", []int{msg.MessageID}, msg.Chat.ID, msg.From.ID)},
		{Text: "delete", CallbackData: callbackData("clear", "all", []int{msg.MessageID}, msg.Chat.ID, msg.From.ID)},
		{Text: "dismiss", CallbackData: callbackData("clear", "no", []int{msg.MessageID}, msg.Chat.ID, msg.From.ID)},
	}}
	out := &chat.Outgoing{
		ChatID:   msg.Chat.ID,
		ThreadID: msg.ThreadID,
		Text:     "Chat history in current window will be cleared, are you sure?",
		Plain:    true,
	}
	if _, err := b.messenger.SendKeyboard(ctx, out, keyboard); err != nil {
		slog.Error("failed to send clear confirmation", "error", err)
	}
}

// doClear wipes the active topic back to its seed prompt. Operation "all"
// additionally deletes the cleared turns from the chat window.
func (b *Bot) doClear(ctx context.Context, operation string, msgIDs []int, chatID, uid int64, cb *incoming) error {
	if operation == "no" {
		return b.messenger.DeleteMessages(ctx, chatID, []int{msgIDs[0], cb.MessageID})
	}

	profile, err := b.svc.Resolver().Resolve(ctx, uid, chatID, cb.Chat.Type, int64(cb.ThreadID))
	if err != nil {
		return err
	}
	topic, err := b.svc.Topics().GetTopic(ctx, profile.TopicID, true)
	if err != nil || topic == nil {
		return err
	}

	var clearedIDs []int
	for _, m := range topic.Messages {
		if m.Role != store.RoleSystem && m.MessageID > 0 {
			clearedIDs = append(clearedIDs, m.MessageID)
		}
	}

	seed := b.svc.Resolver().SeedFor(profile)
	if err := b.svc.Topics().ClearTopic(ctx, topic, seed); err != nil {
		return err
	}

	b.sendMarkdown(ctx, chatID, cb.ThreadID, "`Context cleared.`")
	if err := b.messenger.DeleteMessages(ctx, chatID, []int{msgIDs[0], cb.MessageID}); err != nil {
		slog.Warn("failed to delete clear prompt", "error", err)
	}

	if operation == "all" && len(clearedIDs) > 0 {
		if err := b.messenger.DeleteMessages(ctx, chatID, clearedIDs); err != nil {
			slog.Warn("failed to delete cleared turns", "error", err)
		}
	}
	return nil
}

func (b *Bot) handleModel(ctx context.Context, msg *incoming) {
	profile, err := b.profileOf(ctx, msg)
	if err != nil {
		slog.Error("failed to load profile", "uid", msg.From.ID, "error", err)
		return
	}
	endpoint := b.svc.Resolver().Endpoint(profile)

	if arg := b.commandArg(msg, "model"); arg != "" && endpoint.SupportsModel(arg) {
		if err := b.applyModel(ctx, profile, arg, msg.Chat.ID, msg.ThreadID, []int{msg.MessageID}); err != nil {
			slog.Error("model switch failed", "error", err)
		}
		return
	}

	var (
		keyboard [][]Button
		row      []Button
	)
	for i, model := range endpoint.Models {
		if len(row) == 2 {
			keyboard = append(keyboard, row)
			row = nil
		}
		row = append(row, Button{
			Text:         model,
			CallbackData: callbackData("model", strconv.Itoa(i), []int{msg.MessageID}, msg.Chat.ID, msg.From.ID),
		})
	}
	if len(row) > 0 {
		keyboard = append(keyboard, row)
		keyboard = append(keyboard, []Button{{
			Text:         "dismiss",
			CallbackData: callbackData("model", "dismiss", []int{msg.MessageID}, msg.Chat.ID, msg.From.ID),
		}})
	}

	text := Escape(fmt.Sprintf("current endpoint: `%s`\ncurrent model: `%s`\n", profile.Endpoint, profile.Model))
	out := &chat.Outgoing{ChatID: msg.Chat.ID, ThreadID: msg.ThreadID, Text: text}
	if _, err := b.messenger.SendKeyboard(ctx, out, keyboard); err != nil {
		slog.Error("failed to send model list", "error", err)
	}
}

func (b *Bot) doModelChange(ctx context.Context, operation string, msgIDs []int, chatID, uid int64, cb *incoming) error {
	if operation == "dismiss" {
		return b.messenger.DeleteMessages(ctx, chatID, append(msgIDs, cb.MessageID))
	}

	profile, err := b.svc.Resolver().Resolve(ctx, uid, chatID, cb.Chat.Type, int64(cb.ThreadID))
	if err != nil {
		return err
	}
	endpoint := b.svc.Resolver().Endpoint(profile)

	idx, err := strconv.Atoi(operation)
	if err != nil || idx < 0 || idx >= len(endpoint.Models) {
		return nil
	}
	return b.applyModel(ctx, profile, endpoint.Models[idx], chatID, cb.ThreadID, append(msgIDs, cb.MessageID))
}

func (b *Bot) applyModel(ctx context.Context, profile *store.Profile, model string, chatID int64, threadID int, cleanupIDs []int) error {
	if profile.Model != model {
		if err := b.svc.Resolver().SwitchModel(ctx, profile, model); err != nil {
			return err
		}
	}
	b.sendMarkdown(ctx, chatID, threadID, fmt.Sprintf("current model: `%s`", profile.Model))
	return b.messenger.DeleteMessages(ctx, chatID, cleanupIDs)
}

func (b *Bot) handleEndpoint(ctx context.Context, msg *incoming) {
	if arg := b.commandArg(msg, "endpoint"); arg != "" && b.svc.Endpoints().Get(arg) != nil {
		if err := b.doEndpointChange(ctx, arg, []int{msg.MessageID}, msg.Chat.ID, msg.From.ID, msg); err != nil {
			slog.Error("endpoint switch failed", "error", err)
		}
		return
	}

	profile, err := b.profileOf(ctx, msg)
	if err != nil {
		slog.Error("failed to load profile", "uid", msg.From.ID, "error", err)
		return
	}

	var (
		keyboard [][]Button
		row      []Button
	)
	for _, endpoint := range b.svc.Endpoints() {
		if len(row) == 2 {
			keyboard = append(keyboard, row)
			row = nil
		}
		row = append(row, Button{
			Text:         endpoint.Name,
			CallbackData: callbackData("endpoint", endpoint.Name, []int{msg.MessageID}, msg.Chat.ID, msg.From.ID),
		})
	}
	if len(row) > 0 {
		keyboard = append(keyboard, row)
		keyboard = append(keyboard, []Button{{
			Text:         "dismiss",
			CallbackData: callbackData("endpoint", "dismiss", []int{msg.MessageID}, msg.Chat.ID, msg.From.ID),
		}})
	}

	text := Escape(fmt.Sprintf("current endpoint: **%s** \nEndpoints:", profile.Endpoint))
	out := &chat.Outgoing{ChatID: msg.Chat.ID, ThreadID: msg.ThreadID, Text: text}
	if _, err := b.messenger.SendKeyboard(ctx, out, keyboard); err != nil {
		slog.Error("failed to send endpoint list", "error", err)
	}
}

func (b *Bot) doEndpointChange(ctx context.Context, operation string, msgIDs []int, chatID, uid int64, cb *incoming) error {
	if operation == "dismiss" {
		return b.messenger.DeleteMessages(ctx, chatID, append(msgIDs, cb.MessageID))
	}

	profile, err := b.svc.Resolver().Resolve(ctx, uid, chatID, cb.Chat.Type, int64(cb.ThreadID))
	if err != nil {
		return err
	}
	if err := b.svc.Resolver().SwitchEndpoint(ctx, profile, operation); err != nil {
		b.sendMarkdown(ctx, chatID, cb.ThreadID, "endpoint not found")
		return nil
	}

	b.sendMarkdown(ctx, chatID, cb.ThreadID, fmt.Sprintf("current endpoint: `%s`", operation))
	return b.messenger.DeleteMessages(ctx, chatID, append(msgIDs, cb.MessageID))
}

func (b *Bot) handleRevoke(ctx context.Context, msg *incoming) {
	profile, err := b.profileOf(ctx, msg)
	if err != nil {
		slog.Error("failed to load profile", "uid", msg.From.ID, "error", err)
		return
	}
	topic, err := b.svc.Topics().GetTopic(ctx, profile.TopicID, true)
	if err != nil || topic == nil {
		b.replyPlain(ctx, msg, "Please select a topic to use.")
		return
	}

	count := 0
	if arg := b.commandArg(msg, "revoke"); arg != "" {
		if n, err := strconv.Atoi(arg); err == nil {
			count = n
		}
	}

	candidates := revokeCandidates(topic.Messages, msg.Chat.ID, count)
	if len(candidates) == 0 {
		b.replyPlain(ctx, msg, "Could not find any messages in current conversation")
		return
	}

	op := "yes"
	if count > 0 {
		op = fmt.Sprintf("yes_%d", count)
	}
	keyboard := [][]Button{{
		{Text: "Yes", CallbackData: callbackData("revoke", op, []int{msg.MessageID}, msg.Chat.ID, msg.From.ID)},
		{Text: "No", CallbackData: callbackData("revoke", "no", []int{msg.MessageID}, msg.Chat.ID, msg.From.ID)},
	}}

	var content strings.Builder
	content.WriteString("Are you sure? This operation will revoke the messages below:\n\n")
	for _, m := range candidates {
		fmt.Fprintf(&content, "### %s\n%s\n\n", m.Role, m.Content)
	}
	text := Escape(content.String())
	if len(text) > chat.MaxSegmentLength {
		text = text[:chat.MaxSegmentLength-1]
	}

	out := &chat.Outgoing{ChatID: msg.Chat.ID, ThreadID: msg.ThreadID, Text: text}
	if _, err := b.messenger.SendKeyboard(ctx, out, keyboard); err != nil {
		slog.Error("failed to send revoke confirmation", "error", err)
	}
}

// revokeCandidates walks the transcript backwards collecting messages in
// this chat window: count of them when given, otherwise back to and
// including the latest user turn.
func revokeCandidates(messages []*store.Message, chatID int64, count int) []*store.Message {
	var result []*store.Message
	for i := len(messages) - 1; i >= 0; i-- {
		m := messages[i]
		if m.ChatID != chatID || m.Role == store.RoleSystem {
			continue
		}
		result = append([]*store.Message{m}, result...)
		if count > 0 {
			if len(result) >= count {
				break
			}
		} else if m.Role == store.RoleUser {
			break
		}
	}
	return result
}

func (b *Bot) doRevoke(ctx context.Context, operation string, msgIDs []int, chatID, uid int64, cb *incoming) error {
	if operation == "no" {
		return b.messenger.DeleteMessages(ctx, chatID, []int{msgIDs[0], cb.MessageID})
	}

	count := 0
	if _, rest, ok := strings.Cut(operation, "_"); ok {
		if n, err := strconv.Atoi(rest); err == nil {
			count = n
		}
	}

	profile, err := b.svc.Resolver().Resolve(ctx, uid, chatID, cb.Chat.Type, int64(cb.ThreadID))
	if err != nil {
		return err
	}
	topic, err := b.svc.Topics().GetTopic(ctx, profile.TopicID, true)
	if err != nil || topic == nil {
		return err
	}

	candidates := revokeCandidates(topic.Messages, chatID, count)
	if len(candidates) == 0 {
		return nil
	}
	revokedIDs := make([]int, 0, len(candidates))
	for _, m := range candidates {
		revokedIDs = append(revokedIDs, m.MessageID)
	}

	if err := b.svc.Topics().RemoveMessages(ctx, topic.ID, revokedIDs); err != nil {
		return err
	}
	if err := b.messenger.DeleteMessages(ctx, chatID, append(revokedIDs, cb.MessageID)); err != nil {
		slog.Warn("failed to delete revoked messages", "error", err)
	}

	_, err = b.messenger.SendMessage(ctx, &chat.Outgoing{
		ChatID:  chatID,
		ReplyTo: msgIDs[0],
		Text:    fmt.Sprintf("%d messages revoked", len(revokedIDs)),
		Plain:   true,
	})
	return err
}

func (b *Bot) handleRespond(ctx context.Context, msg *incoming) {
	if !msg.Chat.isGroup() {
		return
	}
	admin, err := b.isGroupAdmin(ctx, msg.Chat.ID, msg.From.ID)
	if err != nil {
		slog.Error("admin check failed", "chat_id", msg.Chat.ID, "error", err)
		return
	}
	if !admin {
		b.replyPlain(ctx, msg, "Permission denied")
		return
	}

	if arg := b.commandArg(msg, "respond"); arg != "" {
		if err := b.doRespondChange(ctx, arg, []int{msg.MessageID}, msg.Chat.ID, msg.From.ID, msg); err != nil {
			slog.Error("respond change failed", "error", err)
		}
		return
	}

	keyboard := [][]Button{{
		{Text: "Yes", CallbackData: callbackData("respond", "yes", []int{msg.MessageID}, msg.Chat.ID, msg.From.ID)},
		{Text: "No", CallbackData: callbackData("respond", "no", []int{msg.MessageID}, msg.Chat.ID, msg.From.ID)},
	}}
	out := &chat.Outgoing{ChatID: msg.Chat.ID, ThreadID: msg.ThreadID, Text: "Are you sure?", Plain: true}
	if _, err := b.messenger.SendKeyboard(ctx, out, keyboard); err != nil {
		slog.Error("failed to send respond confirmation", "error", err)
	}
}

func (b *Bot) doRespondChange(ctx context.Context, operation string, msgIDs []int, chatID, uid int64, cb *incoming) error {
	respond := operation == "y" || operation == "yes"
	if err := b.groups.SetRespond(ctx, chatID, respond); err != nil {
		return err
	}

	state := "disabled"
	if respond {
		state = "enabled"
	}
	_, err := b.messenger.SendMessage(ctx, &chat.Outgoing{
		ChatID:  chatID,
		ReplyTo: msgIDs[0],
		Text:    "Responding to group messages: " + state,
		Plain:   true,
	})
	if err != nil {
		return err
	}

	if msgIDs[0] != cb.MessageID {
		return b.messenger.DeleteMessages(ctx, chatID, []int{cb.MessageID})
	}
	return nil
}

func (b *Bot) isGroupAdmin(ctx context.Context, chatID, uid int64) (bool, error) {
	params := make(tgbotapi.Params)
	params.AddNonZero64("chat_id", chatID)
	params.AddNonZero64("user_id", uid)

	var member struct {
		Status string `json:"status"`
	}
	if err := b.messenger.request(ctx, "getChatMember", params, &member); err != nil {
		return false, err
	}
	return member.Status == "creator" || member.Status == "administrator", nil
}

func (b *Bot) sendMarkdown(ctx context.Context, chatID int64, threadID int, markdown string) {
	_, err := b.messenger.SendMessage(ctx, &chat.Outgoing{
		ChatID:   chatID,
		ThreadID: threadID,
		Text:     Escape(markdown),
	})
	if err != nil {
		slog.Error("failed to send message", "chat_id", chatID, "error", err)
	}
}
