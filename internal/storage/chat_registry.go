package storage

// Chat registry - the chats the bot broadcasts to
// Chats join via /start or by adding the bot, leaves are soft deletes
// so history and counters survive a rejoin
// One JSON file, keyed by chat id, written atomically

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"trending-alert/internal/infra/log"
	"trending-alert/internal/infra/tz"

	"go.uber.org/zap"
)

// ChatRecord describes one chat the bot has seen.
type ChatRecord struct {
	ChatID       int64  `json:"chat_id"`
	Type         string `json:"type"` // private, group, supergroup, channel, unknown
	Title        string `json:"title"`
	Username     string `json:"username"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	AddedAt      string `json:"added_at"`
	UpdatedAt    string `json:"updated_at"`
	RemovedAt    string `json:"removed_at,omitempty"`
	Active       bool   `json:"active"`
	MessageCount int    `json:"message_count"`
}

// DisplayName renders the chat the way it shows up in /chats output.
func (c *ChatRecord) DisplayName() string {
	switch c.Type {
	case "channel":
		return fmt.Sprintf("channel %q (@%s)", c.Title, c.Username)
	case "group", "supergroup":
		return fmt.Sprintf("group %q", c.Title)
	case "private":
		name := c.FirstName
		if c.LastName != "" {
			name += " " + c.LastName
		}
		if c.Username != "" {
			return fmt.Sprintf("private chat %q (@%s)", name, c.Username)
		}
		return fmt.Sprintf("private chat %q", name)
	default:
		return fmt.Sprintf("unknown chat (ID: %d)", c.ChatID)
	}
}

// ChatsFilePath builds the chat registry file name under dataDir.
func ChatsFilePath(dataDir string) string {
	return filepath.Join(dataDir, "chats_data.json")
}

// ChatRegistry persists the known chats. Safe for concurrent use: the
// Telegram update handler and the scan loop both touch it.
type ChatRegistry struct {
	mu   sync.Mutex
	path string
	data map[string]*ChatRecord
}

// NewChatRegistry loads the registry from path, starting empty when
// the file is missing or unreadable.
func NewChatRegistry(path string) *ChatRegistry {
	r := &ChatRegistry{
		path: path,
		data: make(map[string]*ChatRecord),
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.LogWarn("Failed to read chat registry, starting empty",
				zap.String("file", path), zap.Error(err))
		}
		return r
	}
	if err := json.Unmarshal(raw, &r.data); err != nil {
		log.LogWarn("Failed to parse chat registry, starting empty",
			zap.String("file", path), zap.Error(err))
		r.data = make(map[string]*ChatRecord)
	}
	return r
}

func (r *ChatRegistry) save() {
	jsonData, err := json.MarshalIndent(r.data, "", "  ")
	if err != nil {
		log.LogError("Failed to marshal chat registry", zap.Error(err))
		return
	}

	tmpPath := r.path + ".tmp"
	if err := os.WriteFile(tmpPath, jsonData, 0644); err != nil {
		log.LogError("Failed to write chat registry", zap.String("file", tmpPath), zap.Error(err))
		return
	}
	if err := os.Rename(tmpPath, r.path); err != nil {
		os.Remove(tmpPath)
		log.LogError("Failed to replace chat registry", zap.String("file", r.path), zap.Error(err))
	}
}

// AddChat registers a chat or reactivates a known one. AddedAt and
// MessageCount survive re-adds, everything else is refreshed.
func (r *ChatRegistry) AddChat(chat ChatRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := chatKey(chat.ChatID)
	now := tz.FormatNow()

	rec := &ChatRecord{
		ChatID:    chat.ChatID,
		Type:      normalizeChatType(chat.Type),
		Title:     chat.Title,
		Username:  chat.Username,
		FirstName: chat.FirstName,
		LastName:  chat.LastName,
		AddedAt:   now,
		UpdatedAt: now,
		Active:    true,
	}
	if prev, ok := r.data[key]; ok {
		rec.AddedAt = prev.AddedAt
		rec.MessageCount = prev.MessageCount
	}

	r.data[key] = rec
	r.save()

	log.LogInfo("Chat registered", zap.String("chat", rec.DisplayName()), zap.Int64("chat_id", rec.ChatID))
}

// RemoveChat deactivates a chat without dropping its record.
func (r *ChatRegistry) RemoveChat(chatID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.data[chatKey(chatID)]
	if !ok {
		log.LogWarn("Tried to remove unknown chat", zap.Int64("chat_id", chatID))
		return
	}
	rec.Active = false
	rec.RemovedAt = tz.FormatNow()
	r.save()

	log.LogInfo("Chat removed", zap.String("chat", rec.DisplayName()), zap.Int64("chat_id", chatID))
}

// ActiveChats returns the chats currently receiving broadcasts,
// ordered by chat id for stable iteration.
func (r *ChatRegistry) ActiveChats() []ChatRecord {
	r.mu.Lock()
	defer r.mu.Unlock()

	var chats []ChatRecord
	for _, rec := range r.data {
		if rec.Active {
			chats = append(chats, *rec)
		}
	}
	sort.Slice(chats, func(i, j int) bool { return chats[i].ChatID < chats[j].ChatID })
	return chats
}

// Chat returns one chat record, ok=false when unknown.
func (r *ChatRegistry) Chat(chatID int64) (ChatRecord, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.data[chatKey(chatID)]
	if !ok {
		return ChatRecord{}, false
	}
	return *rec, true
}

// IncrementMessageCount bumps the sent-message counter of a chat.
func (r *ChatRegistry) IncrementMessageCount(chatID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.data[chatKey(chatID)]
	if !ok {
		return
	}
	rec.MessageCount++
	r.save()
}

func normalizeChatType(t string) string {
	switch t {
	case "private", "group", "supergroup", "channel":
		return t
	default:
		return "unknown"
	}
}
