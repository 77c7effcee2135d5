package store

import (
	"strings"
	"sync"
	"time"

	"github.com/nandalalm/Fixeify-sub002/infrastructure/cache"
)

// Presence tracks which users are online. It is updated only by presence
// events and is neither persisted nor paginated.
type Presence struct {
	mu     sync.RWMutex
	online map[string]bool
}

func NewPresence() *Presence {
	return &Presence{online: make(map[string]bool)}
}

func (p *Presence) SetOnline(userId string, online bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if online {
		p.online[userId] = true
		return
	}
	delete(p.online, userId)
}

func (p *Presence) IsOnline(userId string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.online[userId]
}

// typingTTL bounds how long a typing flag survives a lost stopTyping.
const typingTTL = 5 * time.Second

// TypingTracker holds the ephemeral typing indicators. A flag expires on
// its own when the peer's stopTyping never arrives.
type TypingTracker struct {
	cache *cache.MemCache
}

func NewTypingTracker() *TypingTracker {
	return &TypingTracker{cache: cache.NewMemCache(typingTTL)}
}

func typingKey(chatId, userId string) string {
	return chatId + "/" + userId
}

func (t *TypingTracker) Start(chatId, userId string) {
	t.cache.Set(typingKey(chatId, userId), true, typingTTL)
}

func (t *TypingTracker) Stop(chatId, userId string) {
	t.cache.Delete(typingKey(chatId, userId))
}

func (t *TypingTracker) IsTyping(chatId, userId string) bool {
	return t.cache.Exists(typingKey(chatId, userId))
}

// TypingUsers lists the users currently typing in a conversation.
func (t *TypingTracker) TypingUsers(chatId string) []string {
	keys := t.cache.KeysWithPrefix(chatId + "/")
	users := make([]string, 0, len(keys))
	for _, k := range keys {
		users = append(users, strings.TrimPrefix(k, chatId+"/"))
	}
	return users
}

func (t *TypingTracker) Close() {
	t.cache.Close()
}
