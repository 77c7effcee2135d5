package store

import (
	"context"
	"time"

	"github.com/nandalalm/Fixeify-sub002/internal/entity"
	"github.com/nandalalm/Fixeify-sub002/internal/transport"
)

// fakeTransport implements transport.Transport with overridable function
// fields; unset calls succeed with zero values.
type fakeTransport struct {
	fetchConversations func(actorId string, role entity.Role) ([]entity.Conversation, error)
	fetchMessages      func(chatId string, page, limit int) (transport.MessagePage, error)
	fetchNotifications func(view entity.NotificationView, page, limit int, filter transport.ReadFilter) (transport.NotificationPage, error)

	markedNotificationIds []string
	markedAllViews        []entity.NotificationView
}

func (f *fakeTransport) FetchConversations(_ context.Context, actorId string, role entity.Role) ([]entity.Conversation, error) {
	if f.fetchConversations != nil {
		return f.fetchConversations(actorId, role)
	}
	return nil, nil
}

func (f *fakeTransport) FetchExistingConversation(context.Context, string, string, entity.Role) (*entity.Conversation, error) {
	return nil, nil
}

func (f *fakeTransport) CreateConversation(context.Context, string, string, entity.Role) (entity.Conversation, error) {
	return entity.Conversation{}, nil
}

func (f *fakeTransport) FetchMessages(_ context.Context, chatId string, page, limit int, _ entity.Role) (transport.MessagePage, error) {
	if f.fetchMessages != nil {
		return f.fetchMessages(chatId, page, limit)
	}
	return transport.MessagePage{}, nil
}

func (f *fakeTransport) SendMessage(_ context.Context, input transport.SendMessageInput) (entity.Message, error) {
	return entity.Message{
		Id:        "srv-" + input.ClientRef,
		ChatId:    input.ChatId,
		SenderId:  input.SenderId,
		Content:   input.Content,
		Timestamp: time.Now(),
		Status:    entity.StatusSent,
		ClientRef: input.ClientRef,
	}, nil
}

func (f *fakeTransport) MarkMessagesRead(context.Context, string, string, entity.Role) error {
	return nil
}

func (f *fakeTransport) FetchNotifications(_ context.Context, view entity.NotificationView, _ string, _ entity.Role, page, limit int, filter transport.ReadFilter) (transport.NotificationPage, error) {
	if f.fetchNotifications != nil {
		return f.fetchNotifications(view, page, limit, filter)
	}
	return transport.NotificationPage{}, nil
}

func (f *fakeTransport) MarkNotificationRead(_ context.Context, id string) error {
	f.markedNotificationIds = append(f.markedNotificationIds, id)
	return nil
}

func (f *fakeTransport) MarkAllNotificationsRead(_ context.Context, view entity.NotificationView, _ string, _ entity.Role) error {
	f.markedAllViews = append(f.markedAllViews, view)
	return nil
}
