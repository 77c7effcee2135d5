package store

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"

	"github.com/nandalalm/Fixeify-sub002/internal/entity"
	"github.com/nandalalm/Fixeify-sub002/internal/transport"
)

// ErrSuperseded marks a page load whose response arrived after a newer
// page-1 load reset the conversation. The stale page is discarded.
var ErrSuperseded = errors.New("page load superseded")

// ErrSendInFlight rejects a second send while one is pending for the
// same conversation.
var ErrSendInFlight = errors.New("send already in flight")

// MessageStore keeps per-conversation chronological message history and
// merges paginated REST history with live-appended messages. All merges
// dedupe by stable id, so interleaving between a REST response and a push
// of the same logical change is harmless.
type MessageStore struct {
	mu   sync.RWMutex
	role entity.Role
	tr   transport.Transport
	log  *slog.Logger

	messages map[string][]entity.Message
	// epochs tags each conversation's history; a page-1 load bumps the
	// epoch so stale in-flight older-page responses can be recognized.
	epochs  map[string]uint64
	sending map[string]bool
	loadErr error
}

func NewMessageStore(role entity.Role, tr transport.Transport, log *slog.Logger) *MessageStore {
	if log == nil {
		log = slog.Default()
	}
	return &MessageStore{
		role:     role,
		tr:       tr,
		log:      log,
		messages: make(map[string][]entity.Message),
		epochs:   make(map[string]uint64),
		sending:  make(map[string]bool),
	}
}

// LoadPage fetches one page of history (newest-first from the server) and
// merges it in chronological order. Page 1 replaces the conversation's
// history; later pages prepend older messages, deduped by id with the
// existing entry kept on conflict. hasMore is true when the page came
// back full.
func (s *MessageStore) LoadPage(ctx context.Context, chatId string, page, limit int) (hasMore bool, err error) {
	s.mu.Lock()
	if page <= 1 {
		s.epochs[chatId]++
	}
	epoch := s.epochs[chatId]
	s.mu.Unlock()

	result, err := s.tr.FetchMessages(ctx, chatId, page, limit, s.role)
	if err != nil {
		s.mu.Lock()
		s.loadErr = err
		s.mu.Unlock()
		return false, err
	}

	chronological := make([]entity.Message, len(result.Messages))
	for i, m := range result.Messages {
		m.Normalize()
		chronological[len(result.Messages)-1-i] = m
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.epochs[chatId] != epoch {
		s.log.Debug("stale message page discarded",
			slog.String("chatId", chatId), slog.Int("page", page))
		return false, ErrSuperseded
	}
	s.loadErr = nil

	if page <= 1 {
		s.messages[chatId] = chronological
	} else {
		existing := s.messages[chatId]
		present := make(map[string]struct{}, len(existing))
		for _, m := range existing {
			present[m.Id] = struct{}{}
		}
		merged := make([]entity.Message, 0, len(chronological)+len(existing))
		for _, m := range chronological {
			if _, ok := present[m.Id]; ok {
				continue
			}
			merged = append(merged, m)
		}
		s.messages[chatId] = append(merged, existing...)
	}

	return len(result.Messages) == limit, nil
}

// AppendOrUpdate merges one message into its conversation. An existing
// entry with the same id is replaced in place; a provisional optimistic
// entry is reconciled when the incoming message carries its client ref;
// otherwise the message is inserted and the history re-sorted ascending
// by timestamp, so ordering holds even under out-of-order arrival.
func (s *MessageStore) AppendOrUpdate(message entity.Message) {
	message.Normalize()

	s.mu.Lock()
	defer s.mu.Unlock()

	history := s.messages[message.ChatId]
	for i := range history {
		if history[i].Id == message.Id {
			history[i] = message
			return
		}
	}
	if message.ClientRef != "" {
		for i := range history {
			if history[i].Id == message.ClientRef || history[i].ClientRef == message.ClientRef {
				history[i] = message
				s.sortLocked(message.ChatId)
				return
			}
		}
	}

	s.messages[message.ChatId] = append(history, message)
	s.sortLocked(message.ChatId)
}

// SetStatus advances one message's delivery status. Backward transitions
// are ignored, not errors.
func (s *MessageStore) SetStatus(chatId, messageId string, status entity.MessageStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()

	history := s.messages[chatId]
	for i := range history {
		if history[i].Id != messageId {
			continue
		}
		if history[i].Status.CanAdvanceTo(status) {
			history[i].Status = status
			history[i].IsRead = status == entity.StatusRead
		}
		return
	}
}

// MarkOwnDelivered moves the sender's own messages still at sent to
// delivered. Messages already read stay read.
func (s *MessageStore) MarkOwnDelivered(chatId, senderId string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	history := s.messages[chatId]
	for i := range history {
		if history[i].SenderId == senderId && history[i].Status == entity.StatusSent {
			history[i].Status = entity.StatusDelivered
		}
	}
}

// MarkOwnRead flips every message the sender authored to read, used when
// the peer acknowledges the whole conversation without naming ids.
func (s *MessageStore) MarkOwnRead(chatId, senderId string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	history := s.messages[chatId]
	for i := range history {
		if history[i].SenderId == senderId {
			history[i].Status = entity.StatusRead
			history[i].IsRead = true
		}
	}
}

// MarkAllReadLocally flips every message in the conversation to read,
// used when the actor opens a conversation they are the receiver on.
func (s *MessageStore) MarkAllReadLocally(chatId string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	history := s.messages[chatId]
	for i := range history {
		history[i].Status = entity.StatusRead
		history[i].IsRead = true
	}
}

// Err reports the error from the most recent failed page load, cleared by
// the next page that lands.
func (s *MessageStore) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadErr
}

// Messages returns a copy of the conversation's history in display order.
func (s *MessageStore) Messages(chatId string) []entity.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history := s.messages[chatId]
	out := make([]entity.Message, len(history))
	copy(out, history)
	return out
}

// Reset drops a conversation's local history, e.g. on logout of the
// conversation view. In-flight page loads for it become stale.
func (s *MessageStore) Reset(chatId string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.epochs[chatId]++
	delete(s.messages, chatId)
}

// BeginSend acquires the per-conversation in-flight send guard.
func (s *MessageStore) BeginSend(chatId string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sending[chatId] {
		return ErrSendInFlight
	}
	s.sending[chatId] = true
	return nil
}

// EndSend releases the guard taken by BeginSend.
func (s *MessageStore) EndSend(chatId string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sending, chatId)
}

func (s *MessageStore) sortLocked(chatId string) {
	history := s.messages[chatId]
	sort.SliceStable(history, func(i, j int) bool {
		return history[i].Timestamp.Before(history[j].Timestamp)
	})
}
