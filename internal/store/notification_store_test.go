package store

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nandalalm/Fixeify-sub002/internal/entity"
	"github.com/nandalalm/Fixeify-sub002/internal/transport"
)

func notification(id string, kind entity.NotificationType) entity.NotificationItem {
	return entity.NotificationItem{
		Id:        id,
		Title:     "title " + id,
		Type:      kind,
		Timestamp: time.Now(),
		UserId:    "u1",
	}
}

func TestNotificationStore_LoadPage(t *testing.T) {
	pageItems := func(ids ...string) []entity.NotificationItem {
		out := make([]entity.NotificationItem, 0, len(ids))
		for _, id := range ids {
			out = append(out, notification(id, entity.NotificationBooking))
		}
		return out
	}

	t.Run("page one replaces, later pages append new ids only", func(t *testing.T) {
		pages := map[int][]entity.NotificationItem{
			1: pageItems("n1", "n2"),
			2: pageItems("n2", "n3"),
		}
		tr := &fakeTransport{
			fetchNotifications: func(view entity.NotificationView, page, limit int, filter transport.ReadFilter) (transport.NotificationPage, error) {
				return transport.NotificationPage{Notifications: pages[page], Total: 3}, nil
			},
		}
		s := NewNotificationStore(testActor, tr, nil)

		hasMore, err := s.LoadPage(context.Background(), entity.ViewAll, 1, 2, transport.FilterAll)
		require.NoError(t, err)
		assert.True(t, hasMore)

		hasMore, err = s.LoadPage(context.Background(), entity.ViewAll, 2, 2, transport.FilterAll)
		require.NoError(t, err)
		assert.True(t, hasMore, "page of raw size == limit")

		items := s.Items(entity.ViewAll)
		require.Len(t, items, 3, "n2 deduped")
		assert.Equal(t, "n1", items[0].Id)
		assert.Equal(t, "n3", items[2].Id, "appended, not prepended")
	})

	t.Run("short page means no more", func(t *testing.T) {
		tr := &fakeTransport{
			fetchNotifications: func(view entity.NotificationView, page, limit int, filter transport.ReadFilter) (transport.NotificationPage, error) {
				return transport.NotificationPage{Notifications: pageItems("n1")}, nil
			},
		}
		s := NewNotificationStore(testActor, tr, nil)

		hasMore, err := s.LoadPage(context.Background(), entity.ViewAll, 1, 10, transport.FilterUnread)
		require.NoError(t, err)
		assert.False(t, hasMore)
	})

	t.Run("failed load keeps prior items and records a transient error", func(t *testing.T) {
		fetchErr := errors.New("fetch notifications failed")
		var fail bool
		tr := &fakeTransport{
			fetchNotifications: func(view entity.NotificationView, page, limit int, filter transport.ReadFilter) (transport.NotificationPage, error) {
				if fail {
					return transport.NotificationPage{}, fetchErr
				}
				return transport.NotificationPage{Notifications: pageItems("n1")}, nil
			},
		}
		s := NewNotificationStore(testActor, tr, nil)

		_, err := s.LoadPage(context.Background(), entity.ViewAll, 1, 10, transport.FilterAll)
		require.NoError(t, err)

		fail = true
		_, err = s.LoadPage(context.Background(), entity.ViewAll, 1, 10, transport.FilterAll)
		assert.ErrorIs(t, err, fetchErr)
		assert.ErrorIs(t, s.Err(), fetchErr)
		assert.Len(t, s.Items(entity.ViewAll), 1, "prior items untouched")

		fail = false
		_, err = s.LoadPage(context.Background(), entity.ViewAll, 1, 10, transport.FilterAll)
		require.NoError(t, err)
		assert.NoError(t, s.Err(), "next successful load clears the error")
	})

	t.Run("views page independently", func(t *testing.T) {
		tr := &fakeTransport{
			fetchNotifications: func(view entity.NotificationView, page, limit int, filter transport.ReadFilter) (transport.NotificationPage, error) {
				return transport.NotificationPage{
					Notifications: pageItems(fmt.Sprintf("%s-%d", view, page)),
				}, nil
			},
		}
		s := NewNotificationStore(testActor, tr, nil)

		_, err := s.LoadPage(context.Background(), entity.ViewMessage, 1, 10, transport.FilterAll)
		require.NoError(t, err)
		_, err = s.LoadPage(context.Background(), entity.ViewNonMessage, 1, 10, transport.FilterAll)
		require.NoError(t, err)

		assert.Len(t, s.Items(entity.ViewMessage), 1)
		assert.Len(t, s.Items(entity.ViewNonMessage), 1)
		assert.Empty(t, s.Items(entity.ViewAll))
	})
}

func TestNotificationStore_PushIncoming(t *testing.T) {
	t.Run("message item lands in all and message views only", func(t *testing.T) {
		s := NewNotificationStore(testActor, &fakeTransport{}, nil)
		s.PushIncoming(notification("n1", entity.NotificationMessage))

		assert.Len(t, s.Items(entity.ViewAll), 1)
		assert.Len(t, s.Items(entity.ViewMessage), 1)
		assert.Empty(t, s.Items(entity.ViewNonMessage))
	})

	t.Run("booking item lands in all and non-message views", func(t *testing.T) {
		s := NewNotificationStore(testActor, &fakeTransport{}, nil)
		s.PushIncoming(notification("n1", entity.NotificationBooking))

		assert.Len(t, s.Items(entity.ViewAll), 1)
		assert.Empty(t, s.Items(entity.ViewMessage))
		assert.Len(t, s.Items(entity.ViewNonMessage), 1)
	})

	t.Run("push unshifts ahead of fetched items", func(t *testing.T) {
		s := NewNotificationStore(testActor, &fakeTransport{
			fetchNotifications: func(view entity.NotificationView, page, limit int, filter transport.ReadFilter) (transport.NotificationPage, error) {
				return transport.NotificationPage{
					Notifications: []entity.NotificationItem{notification("old", entity.NotificationWallet)},
				}, nil
			},
		}, nil)
		_, err := s.LoadPage(context.Background(), entity.ViewAll, 1, 10, transport.FilterAll)
		require.NoError(t, err)

		s.PushIncoming(notification("fresh", entity.NotificationQuota))
		items := s.Items(entity.ViewAll)
		require.Len(t, items, 2)
		assert.Equal(t, "fresh", items[0].Id)
	})

	t.Run("item without title or description is dropped", func(t *testing.T) {
		s := NewNotificationStore(testActor, &fakeTransport{}, nil)
		s.PushIncoming(entity.NotificationItem{Id: "bad", Type: entity.NotificationGeneral})
		assert.Empty(t, s.Items(entity.ViewAll))
	})

	t.Run("duplicate push is ignored", func(t *testing.T) {
		s := NewNotificationStore(testActor, &fakeTransport{}, nil)
		s.PushIncoming(notification("n1", entity.NotificationGeneral))
		s.PushIncoming(notification("n1", entity.NotificationGeneral))
		assert.Len(t, s.Items(entity.ViewAll), 1)
	})
}

func TestNotificationStore_ReadState(t *testing.T) {
	newStore := func(t *testing.T) (*NotificationStore, *fakeTransport) {
		tr := &fakeTransport{}
		s := NewNotificationStore(testActor, tr, nil)
		s.PushIncoming(notification("msg1", entity.NotificationMessage))
		s.PushIncoming(notification("msg2", entity.NotificationMessage))
		s.PushIncoming(notification("book1", entity.NotificationBooking))
		return s, tr
	}

	t.Run("MarkRead flips everywhere and is idempotent", func(t *testing.T) {
		s, tr := newStore(t)
		require.NoError(t, s.MarkRead(context.Background(), "msg1"))
		require.NoError(t, s.MarkRead(context.Background(), "msg1"))

		assert.Equal(t, []string{"msg1", "msg1"}, tr.markedNotificationIds)
		assert.Equal(t, 1, s.UnreadCount(entity.ViewMessage))
		assert.Equal(t, 2, s.UnreadCount(entity.ViewAll))
	})

	t.Run("MarkAllMessageRead leaves non-message unread untouched", func(t *testing.T) {
		s, tr := newStore(t)
		require.NoError(t, s.MarkAllMessageRead(context.Background()))

		assert.Equal(t, []entity.NotificationView{entity.ViewMessage}, tr.markedAllViews)
		assert.Equal(t, 0, s.UnreadCount(entity.ViewMessage))
		assert.Equal(t, 1, s.UnreadCount(entity.ViewNonMessage))
		assert.Equal(t, 1, s.UnreadCount(entity.ViewAll))
	})

	t.Run("MarkAllRead flips everything", func(t *testing.T) {
		s, _ := newStore(t)
		require.NoError(t, s.MarkAllRead(context.Background()))
		assert.Equal(t, 0, s.UnreadCount(entity.ViewAll))
		assert.Equal(t, 0, s.UnreadCount(entity.ViewMessage))
		assert.Equal(t, 0, s.UnreadCount(entity.ViewNonMessage))
	})

	t.Run("unread counts derive from the list", func(t *testing.T) {
		s, _ := newStore(t)
		assert.Equal(t, 3, s.UnreadCount(entity.ViewAll))
		assert.Equal(t, 2, s.UnreadCount(entity.ViewMessage))
		assert.Equal(t, 1, s.UnreadCount(entity.ViewNonMessage))
	})
}
