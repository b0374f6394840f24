package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(t *testing.T) *ChatRegistry {
	t.Helper()
	return NewChatRegistry(filepath.Join(t.TempDir(), "chats.json"))
}

func TestAddChatAndActiveList(t *testing.T) {
	r := newTestRegistry(t)

	r.AddChat(ChatRecord{ChatID: 200, Type: "group", Title: "Alpha Group"})
	r.AddChat(ChatRecord{ChatID: 100, Type: "private", FirstName: "Ann", Username: "ann"})

	chats := r.ActiveChats()
	require.Len(t, chats, 2)
	// ordered by chat id
	assert.Equal(t, int64(100), chats[0].ChatID)
	assert.Equal(t, int64(200), chats[1].ChatID)
	assert.True(t, chats[0].Active)
	assert.NotEmpty(t, chats[0].AddedAt)
}

func TestRemoveChatIsSoftDelete(t *testing.T) {
	r := newTestRegistry(t)
	r.AddChat(ChatRecord{ChatID: 100, Type: "group", Title: "Alpha"})

	r.RemoveChat(100)

	assert.Empty(t, r.ActiveChats())
	rec, ok := r.Chat(100)
	require.True(t, ok)
	assert.False(t, rec.Active)
	assert.NotEmpty(t, rec.RemovedAt)
}

func TestReAddPreservesAddedAtAndCount(t *testing.T) {
	r := newTestRegistry(t)
	r.AddChat(ChatRecord{ChatID: 100, Type: "group", Title: "Alpha"})
	r.IncrementMessageCount(100)
	r.IncrementMessageCount(100)

	first, _ := r.Chat(100)
	r.RemoveChat(100)
	r.AddChat(ChatRecord{ChatID: 100, Type: "group", Title: "Alpha Renamed"})

	rec, ok := r.Chat(100)
	require.True(t, ok)
	assert.True(t, rec.Active)
	assert.Equal(t, "Alpha Renamed", rec.Title)
	assert.Equal(t, first.AddedAt, rec.AddedAt)
	assert.Equal(t, 2, rec.MessageCount)
	assert.Empty(t, rec.RemovedAt)
}

func TestRegistryPersistsAcrossReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chats.json")

	r1 := NewChatRegistry(path)
	r1.AddChat(ChatRecord{ChatID: 100, Type: "channel", Title: "News", Username: "news"})

	r2 := NewChatRegistry(path)
	rec, ok := r2.Chat(100)
	require.True(t, ok)
	assert.Equal(t, "channel", rec.Type)
	assert.Equal(t, "News", rec.Title)
}

func TestRegistryCorruptFileStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chats.json")
	require.NoError(t, os.WriteFile(path, []byte("???"), 0644))

	r := NewChatRegistry(path)
	assert.Empty(t, r.ActiveChats())
}

func TestChatTypeNormalization(t *testing.T) {
	r := newTestRegistry(t)
	r.AddChat(ChatRecord{ChatID: 1, Type: "weird"})

	rec, _ := r.Chat(1)
	assert.Equal(t, "unknown", rec.Type)
}

func TestDisplayName(t *testing.T) {
	tests := []struct {
		name string
		rec  ChatRecord
		want string
	}{
		{"channel", ChatRecord{Type: "channel", Title: "News", Username: "news"}, `channel "News" (@news)`},
		{"group", ChatRecord{Type: "group", Title: "Alpha"}, `group "Alpha"`},
		{"private with username", ChatRecord{Type: "private", FirstName: "Ann", LastName: "Lee", Username: "ann"}, `private chat "Ann Lee" (@ann)`},
		{"private without username", ChatRecord{Type: "private", FirstName: "Ann"}, `private chat "Ann"`},
		{"unknown", ChatRecord{Type: "unknown", ChatID: 7}, "unknown chat (ID: 7)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.rec.DisplayName())
		})
	}
}
