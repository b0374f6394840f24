package notify

// This file contains the Telegram delivery worker - a single goroutine
// owns the bot API, callers hand it messages over a channel and wait on
// a per-request result. Also runs the updates loop that keeps the chat
// registry in sync (/start, /chats, /status, membership changes).

import (
	"context"
	"fmt"
	"strings"
	"time"

	"trending-alert/internal/config"
	log "trending-alert/internal/infra/log"
	"trending-alert/internal/infra/tz"
	"trending-alert/internal/storage"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// sendTimeout caps how long a caller waits for the worker to deliver
// one message.
const sendTimeout = 10 * time.Second

// sendInterval paces consecutive sends so broadcasts across many chats
// stay under Telegram's flood limits.
const sendInterval = 500 * time.Millisecond

type sendRequest struct {
	msg    tgbotapi.Chattable
	result chan sendResult
}

type sendResult struct {
	messageID int
	err       error
}

// Telegram delivers notifications to registered chats and maintains the
// chat registry from incoming updates.
type Telegram struct {
	bot     *tgbotapi.BotAPI
	chats   *storage.ChatRegistry
	buttons []config.MessageButton
	limiter *rate.Limiter
	sends   chan sendRequest
}

// NewTelegram connects to the Bot API with the given token.
func NewTelegram(token string, chats *storage.ChatRegistry, buttons []config.MessageButton) (*Telegram, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to telegram: %w", err)
	}

	log.LogSuccess("Telegram bot authorized", zap.String("username", bot.Self.UserName))

	return &Telegram{
		bot:     bot,
		chats:   chats,
		buttons: buttons,
		limiter: rate.NewLimiter(rate.Every(sendInterval), 1),
		sends:   make(chan sendRequest),
	}, nil
}

// BotUsername returns the authorized bot account name.
func (t *Telegram) BotUsername() string {
	return t.bot.Self.UserName
}

// Start launches the sender worker and the updates loop. Both stop when
// ctx is cancelled.
func (t *Telegram) Start(ctx context.Context) {
	go t.senderWorker(ctx)
	go t.updatesLoop(ctx)
}

// senderWorker is the only goroutine that calls bot.Send. It paces
// requests through the limiter and reports the message id back to the
// caller.
func (t *Telegram) senderWorker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case req := <-t.sends:
			if err := t.limiter.Wait(ctx); err != nil {
				req.result <- sendResult{err: err}
				continue
			}
			sent, err := t.bot.Send(req.msg)
			req.result <- sendResult{messageID: sent.MessageID, err: err}
		}
	}
}

// send hands a message to the worker and waits for the outcome.
func (t *Telegram) send(ctx context.Context, msg tgbotapi.Chattable) (int, error) {
	req := sendRequest{msg: msg, result: make(chan sendResult, 1)}

	select {
	case t.sends <- req:
	case <-time.After(sendTimeout):
		return 0, fmt.Errorf("telegram sender busy, dropped message after %s", sendTimeout)
	case <-ctx.Done():
		return 0, ctx.Err()
	}

	select {
	case res := <-req.result:
		if res.err != nil {
			return 0, res.err
		}
		return res.messageID, nil
	case <-time.After(sendTimeout):
		return 0, fmt.Errorf("telegram send timed out after %s", sendTimeout)
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// SendMessage delivers an HTML message to a chat. tokenAddress and
// chain pick which configured buttons get attached; pass empty strings
// for plain messages.
func (t *Telegram) SendMessage(ctx context.Context, chatID int64, text, tokenAddress, chain string) (int, error) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	if tokenAddress != "" {
		if keyboard := BuildInlineKeyboard(t.buttons, tokenAddress, chain); keyboard != nil {
			msg.ReplyMarkup = keyboard
		}
	}

	messageID, err := t.send(ctx, msg)
	if err != nil {
		log.LogError("Failed to send telegram message",
			zap.Int64("chat_id", chatID),
			zap.Error(err))
		return 0, err
	}

	t.chats.IncrementMessageCount(chatID)
	return messageID, nil
}

// SendPhoto delivers a photo with an HTML caption. Callers fall back to
// SendMessage when this fails.
func (t *Telegram) SendPhoto(ctx context.Context, chatID int64, photoURL, caption, tokenAddress, chain string) (int, error) {
	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileURL(photoURL))
	photo.Caption = caption
	photo.ParseMode = tgbotapi.ModeHTML
	if tokenAddress != "" {
		if keyboard := BuildInlineKeyboard(t.buttons, tokenAddress, chain); keyboard != nil {
			photo.ReplyMarkup = keyboard
		}
	}

	messageID, err := t.send(ctx, photo)
	if err != nil {
		log.LogWarn("Failed to send telegram photo",
			zap.Int64("chat_id", chatID),
			zap.String("photo_url", photoURL),
			zap.Error(err))
		return 0, err
	}

	t.chats.IncrementMessageCount(chatID)
	return messageID, nil
}

// SendReply delivers an HTML message threaded under an earlier one.
func (t *Telegram) SendReply(ctx context.Context, chatID int64, replyToMessageID int, text string) (int, error) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	msg.ReplyToMessageID = replyToMessageID

	messageID, err := t.send(ctx, msg)
	if err != nil {
		log.LogError("Failed to send telegram reply",
			zap.Int64("chat_id", chatID),
			zap.Int("reply_to", replyToMessageID),
			zap.Error(err))
		return 0, err
	}

	t.chats.IncrementMessageCount(chatID)
	return messageID, nil
}

// Broadcast sends the same text to every active chat. Per-chat failures
// are logged and skipped.
func (t *Telegram) Broadcast(ctx context.Context, text string) {
	for _, chat := range t.chats.ActiveChats() {
		if _, err := t.send(ctx, htmlMessage(chat.ChatID, text)); err != nil {
			log.LogWarn("Broadcast delivery failed",
				zap.Int64("chat_id", chat.ChatID),
				zap.String("chat", chat.DisplayName()),
				zap.Error(err))
			continue
		}
		t.chats.IncrementMessageCount(chat.ChatID)
	}
}

func htmlMessage(chatID int64, text string) tgbotapi.MessageConfig {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	return msg
}

// updatesLoop watches incoming updates for commands and for the bot
// being added to or removed from chats.
func (t *Telegram) updatesLoop(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30

	updates := t.bot.GetUpdatesChan(u)
	log.LogInfo("Telegram updates loop started")

	for {
		select {
		case <-ctx.Done():
			t.bot.StopReceivingUpdates()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if update.MyChatMember != nil {
				t.handleMembershipChange(ctx, update.MyChatMember)
				continue
			}
			if update.Message != nil && update.Message.IsCommand() {
				t.handleCommand(ctx, update.Message)
			}
		}
	}
}

// memberStatuses the bot counts as "in the chat".
func isMemberStatus(status string) bool {
	return status == "member" || status == "administrator" || status == "creator"
}

func isGoneStatus(status string) bool {
	return status == "left" || status == "kicked"
}

func (t *Telegram) handleMembershipChange(ctx context.Context, change *tgbotapi.ChatMemberUpdated) {
	oldStatus := change.OldChatMember.Status
	newStatus := change.NewChatMember.Status
	chat := change.Chat

	log.LogDebug("Chat membership update",
		zap.Int64("chat_id", chat.ID),
		zap.String("old_status", oldStatus),
		zap.String("new_status", newStatus))

	switch {
	case isGoneStatus(oldStatus) && isMemberStatus(newStatus):
		t.chats.AddChat(chatRecordFrom(chat))
		if _, err := t.send(ctx, htmlMessage(chat.ID, FormatStartupMessage())); err != nil {
			log.LogWarn("Failed to send welcome message",
				zap.Int64("chat_id", chat.ID),
				zap.Error(err))
		}
	case isMemberStatus(oldStatus) && isGoneStatus(newStatus):
		t.chats.RemoveChat(chat.ID)
	}
}

func chatRecordFrom(chat tgbotapi.Chat) storage.ChatRecord {
	return storage.ChatRecord{
		ChatID:    chat.ID,
		Type:      chat.Type,
		Title:     chat.Title,
		Username:  chat.UserName,
		FirstName: chat.FirstName,
		LastName:  chat.LastName,
	}
}

func (t *Telegram) handleCommand(ctx context.Context, message *tgbotapi.Message) {
	command := message.Command()

	log.LogDebug("Received command",
		zap.String("command", command),
		zap.Int64("chat_id", message.Chat.ID))

	switch command {
	case "start":
		t.chats.AddChat(chatRecordFrom(*message.Chat))
		t.replyToCommand(ctx, message, FormatStartupMessage())
	case "chats":
		t.replyToCommand(ctx, message, t.formatChatsReply())
	case "status":
		t.replyToCommand(ctx, message, t.formatStatusReply())
	}
}

func (t *Telegram) replyToCommand(ctx context.Context, message *tgbotapi.Message, text string) {
	msg := htmlMessage(message.Chat.ID, text)
	msg.ReplyToMessageID = message.MessageID
	if _, err := t.send(ctx, msg); err != nil {
		log.LogError("Failed to answer command",
			zap.String("command", message.Command()),
			zap.Int64("chat_id", message.Chat.ID),
			zap.Error(err))
	}
}

func (t *Telegram) formatChatsReply() string {
	chats := t.chats.ActiveChats()
	if len(chats) == 0 {
		return "No active chats registered"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "📋 <b>Active Chats (%d)</b>\n\n", len(chats))
	for i, chat := range chats {
		fmt.Fprintf(&b, "%d. %s (<code>%d</code>) - %d messages\n",
			i+1, chat.DisplayName(), chat.ChatID, chat.MessageCount)
	}
	return b.String()
}

func (t *Telegram) formatStatusReply() string {
	var b strings.Builder
	b.WriteString("🤖 <b>Bot Status</b>\n\n")
	fmt.Fprintf(&b, "Account: @%s\n", t.bot.Self.UserName)
	fmt.Fprintf(&b, "Active chats: %d\n", len(t.chats.ActiveChats()))
	fmt.Fprintf(&b, "Time: %s", tz.FormatNow())
	return b.String()
}
