package store

import (
	"context"
	"log/slog"
	"sync"

	"github.com/nandalalm/Fixeify-sub002/internal/entity"
	"github.com/nandalalm/Fixeify-sub002/internal/transport"
)

// NotificationStore maintains the three notification views (all,
// message-only, non-message-only) under paginated fetch plus live push.
//
// Items live once in a canonical map; each view keeps only an ordered id
// list, so a read-state flip is written once and is visible from every
// view. Each view pages independently.
type NotificationStore struct {
	mu    sync.RWMutex
	actor entity.Actor
	tr    transport.Transport
	log   *slog.Logger

	items   map[string]*entity.NotificationItem
	order   map[entity.NotificationView][]string
	epochs  map[entity.NotificationView]uint64
	loadErr error
}

func NewNotificationStore(actor entity.Actor, tr transport.Transport, log *slog.Logger) *NotificationStore {
	if log == nil {
		log = slog.Default()
	}
	return &NotificationStore{
		actor:  actor,
		tr:     tr,
		log:    log,
		items:  make(map[string]*entity.NotificationItem),
		order:  make(map[entity.NotificationView][]string),
		epochs: make(map[entity.NotificationView]uint64),
	}
}

// LoadPage fetches one page for a view. Page 1 replaces the view's list;
// later pages append new ids only, deduped against items already present.
// The server returns pages in recency order, so appends keep that order.
func (s *NotificationStore) LoadPage(ctx context.Context, view entity.NotificationView, page, limit int, filter transport.ReadFilter) (hasMore bool, err error) {
	s.mu.Lock()
	if page <= 1 {
		s.epochs[view]++
	}
	epoch := s.epochs[view]
	s.mu.Unlock()

	result, err := s.tr.FetchNotifications(ctx, view, s.actor.Id, s.actor.Role, page, limit, filter)
	if err != nil {
		s.mu.Lock()
		s.loadErr = err
		s.mu.Unlock()
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.epochs[view] != epoch {
		s.log.Debug("stale notification page discarded",
			slog.String("view", string(view)), slog.Int("page", page))
		return false, ErrSuperseded
	}
	s.loadErr = nil

	if page <= 1 {
		s.order[view] = nil
	}

	present := make(map[string]struct{}, len(s.order[view]))
	for _, id := range s.order[view] {
		present[id] = struct{}{}
	}
	for i := range result.Notifications {
		item := result.Notifications[i]
		s.items[item.Id] = &item
		if _, ok := present[item.Id]; ok {
			continue
		}
		s.order[view] = append(s.order[view], item.Id)
	}

	return len(result.Notifications) == limit, nil
}

// PushIncoming unshifts a live item into the all view and into exactly
// one of the message or non-message views based on its type. An item with
// neither title nor description is not actionable and is dropped.
func (s *NotificationStore) PushIncoming(item entity.NotificationItem) {
	if item.Title == "" && item.Description == "" {
		s.log.Debug("notification without title or description dropped", slog.String("id", item.Id))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[item.Id]; ok {
		return
	}
	s.items[item.Id] = &item

	s.order[entity.ViewAll] = append([]string{item.Id}, s.order[entity.ViewAll]...)
	view := entity.ViewNonMessage
	if item.IsMessageKind() {
		view = entity.ViewMessage
	}
	s.order[view] = append([]string{item.Id}, s.order[view]...)
}

// MarkRead flips one item to read on the server and locally. The flip is
// idempotent and visible from every view the item appears in.
func (s *NotificationStore) MarkRead(ctx context.Context, id string) error {
	if err := s.tr.MarkNotificationRead(ctx, id); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if item, ok := s.items[id]; ok {
		item.IsRead = true
	}
	return nil
}

// MarkAllRead flips every item to read, server first.
func (s *NotificationStore) MarkAllRead(ctx context.Context) error {
	return s.markBulkRead(ctx, entity.ViewAll)
}

// MarkAllMessageRead flips only message-type items to read, leaving
// non-message unread counts unchanged.
func (s *NotificationStore) MarkAllMessageRead(ctx context.Context) error {
	return s.markBulkRead(ctx, entity.ViewMessage)
}

func (s *NotificationStore) markBulkRead(ctx context.Context, view entity.NotificationView) error {
	if err := s.tr.MarkAllNotificationsRead(ctx, view, s.actor.Id, s.actor.Role); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, item := range s.items {
		if item.InView(view) {
			item.IsRead = true
		}
	}
	return nil
}

// Err reports the error from the most recent failed page load, cleared by
// the next page that lands.
func (s *NotificationStore) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadErr
}

// Items returns a copy of the view's list in its established order.
func (s *NotificationStore) Items(view entity.NotificationView) []entity.NotificationItem {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]entity.NotificationItem, 0, len(s.order[view]))
	for _, id := range s.order[view] {
		if item, ok := s.items[id]; ok {
			out = append(out, *item)
		}
	}
	return out
}

// UnreadCount derives the view's unread count on read; it is never
// stored, so it cannot drift from the underlying list.
func (s *NotificationStore) UnreadCount(view entity.NotificationView) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, id := range s.order[view] {
		if item, ok := s.items[id]; ok && !item.IsRead {
			count++
		}
	}
	return count
}
