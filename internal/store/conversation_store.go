package store

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/nandalalm/Fixeify-sub002/internal/entity"
	"github.com/nandalalm/Fixeify-sub002/internal/transport"
)

var ErrConversationNotFound = errors.New("conversation not found")

// ConversationStore holds the authoritative, de-duplicated list of the
// actor's conversations and keeps unread counts, last-message previews and
// updatedAt consistent under concurrent REST and push updates.
type ConversationStore struct {
	mu    sync.RWMutex
	actor entity.Actor
	tr    transport.Transport
	log   *slog.Logger

	// conversations keeps original fetch order; display order is
	// computed on read so ties stay stable.
	conversations []entity.Conversation
	loadErr       error
}

func NewConversationStore(actor entity.Actor, tr transport.Transport, log *slog.Logger) *ConversationStore {
	if log == nil {
		log = slog.Default()
	}
	return &ConversationStore{
		actor: actor,
		tr:    tr,
		log:   log,
	}
}

// LoadConversations replaces the full list with the server snapshot.
// Idempotent; safe to call repeatedly, e.g. on reconnect. A failed fetch
// leaves the prior list untouched and records a transient error.
func (s *ConversationStore) LoadConversations(ctx context.Context) error {
	snapshot, err := s.tr.FetchConversations(ctx, s.actor.Id, s.actor.Role)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		s.loadErr = err
		return err
	}

	deduped := make([]entity.Conversation, 0, len(snapshot))
	seen := make(map[string]struct{}, len(snapshot))
	for _, c := range snapshot {
		if _, ok := seen[c.Id]; ok {
			continue
		}
		seen[c.Id] = struct{}{}
		deduped = append(deduped, c)
	}

	s.conversations = deduped
	s.loadErr = nil
	return nil
}

// Upsert inserts a conversation if its id is not already present.
// Duplicates are dropped, never overwritten, so a partial push payload
// cannot clobber a richer REST-fetched record.
func (s *ConversationStore) Upsert(conversation entity.Conversation) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range s.conversations {
		if c.Id == conversation.Id {
			return
		}
	}
	s.conversations = append(s.conversations, conversation)
}

// UpsertFromMessage folds a sent or received message into its
// conversation's preview state. Unknown chat ids are a no-op: this store
// never synthesizes participant data from a bare message.
//
// The unread count increments by one only when the actor is not the
// sender and is not currently viewing the conversation (activeChatId).
// A message arriving on the active conversation forces unread to zero;
// the message store marks it read separately.
func (s *ConversationStore) UpsertFromMessage(message entity.Message, activeChatId string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(message.ChatId)
	if idx < 0 {
		s.log.Debug("message for unknown conversation dropped", slog.String("chatId", message.ChatId))
		return
	}

	c := &s.conversations[idx]
	c.LastMessage = message.Preview()
	c.UpdatedAt = time.Now()

	if message.SenderId == s.actor.Id {
		return
	}
	if message.ChatId == activeChatId {
		c.UnreadCount = 0
		c.LastMessage.Status = entity.StatusRead
		return
	}
	c.UnreadCount++
}

// MarkConversationRead zeroes the unread count for one conversation.
func (s *ConversationStore) MarkConversationRead(chatId string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if idx := s.indexOf(chatId); idx >= 0 {
		s.conversations[idx].UnreadCount = 0
	}
}

// MarkLastMessageStatus advances the last-message preview status.
// Backward transitions are ignored.
func (s *ConversationStore) MarkLastMessageStatus(chatId string, status entity.MessageStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(chatId)
	if idx < 0 || s.conversations[idx].LastMessage == nil {
		return
	}
	last := s.conversations[idx].LastMessage
	if last.Status.CanAdvanceTo(status) {
		last.Status = status
	}
}

// ApplyExternalUpdate replaces one conversation wholesale with a
// fully-formed server snapshot, last writer wins. Unknown conversations
// are appended.
func (s *ConversationStore) ApplyExternalUpdate(conversation entity.Conversation) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if idx := s.indexOf(conversation.Id); idx >= 0 {
		s.conversations[idx] = conversation
		return
	}
	s.conversations = append(s.conversations, conversation)
}

// Get returns a copy of the conversation with the given id.
func (s *ConversationStore) Get(chatId string) (entity.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if idx := s.indexOf(chatId); idx >= 0 {
		return s.conversations[idx], nil
	}
	return entity.Conversation{}, ErrConversationNotFound
}

// List returns the display order: descending by last-message timestamp,
// conversations without any message last, ties kept in fetch order.
func (s *ConversationStore) List() []entity.Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]entity.Conversation, len(s.conversations))
	copy(out, s.conversations)

	sort.SliceStable(out, func(i, j int) bool {
		li, lj := out[i].LastMessage, out[j].LastMessage
		switch {
		case li == nil:
			return false
		case lj == nil:
			return true
		default:
			return li.Timestamp.After(lj.Timestamp)
		}
	})
	return out
}

// Err reports the error from the most recent failed load, cleared by the
// next successful one.
func (s *ConversationStore) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadErr
}

func (s *ConversationStore) indexOf(chatId string) int {
	for i := range s.conversations {
		if s.conversations[i].Id == chatId {
			return i
		}
	}
	return -1
}
