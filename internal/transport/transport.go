package transport

import (
	"context"

	"github.com/nandalalm/Fixeify-sub002/internal/entity"
)

// ReadFilter is applied server-side when paging notifications.
type ReadFilter string

const (
	FilterAll    ReadFilter = "all"
	FilterUnread ReadFilter = "unread"
)

// MessagePage is one page of history as the server returns it:
// newest-first, with the conversation's total message count.
type MessagePage struct {
	Messages []entity.Message `json:"messages"`
	Total    int              `json:"total"`
}

type NotificationPage struct {
	Notifications []entity.NotificationItem `json:"notifications"`
	Total         int                       `json:"total"`
}

type SendMessageInput struct {
	ChatId      string              `json:"chatId"`
	SenderId    string              `json:"senderId"`
	SenderRole  entity.SenderRole   `json:"senderRole"`
	Content     string              `json:"content"`
	Type        entity.MessageType  `json:"type"`
	Attachments []entity.Attachment `json:"attachments,omitempty"`
	ClientRef   string              `json:"clientRef,omitempty"`
}

// Transport is the request/response side of the backend. The engine
// depends on this narrow contract only; the REST shapes behind it are an
// implementation detail of the rest package.
type Transport interface {
	FetchConversations(ctx context.Context, actorId string, role entity.Role) ([]entity.Conversation, error)
	FetchExistingConversation(ctx context.Context, actorId, otherId string, role entity.Role) (*entity.Conversation, error)
	CreateConversation(ctx context.Context, actorId, otherId string, role entity.Role) (entity.Conversation, error)

	FetchMessages(ctx context.Context, chatId string, page, limit int, role entity.Role) (MessagePage, error)
	SendMessage(ctx context.Context, input SendMessageInput) (entity.Message, error)
	MarkMessagesRead(ctx context.Context, chatId, actorId string, role entity.Role) error

	FetchNotifications(ctx context.Context, view entity.NotificationView, actorId string, role entity.Role, page, limit int, filter ReadFilter) (NotificationPage, error)
	MarkNotificationRead(ctx context.Context, id string) error
	MarkAllNotificationsRead(ctx context.Context, view entity.NotificationView, actorId string, role entity.Role) error
}

// CredentialRefresher is the external auth collaborator used by the
// router's reconnection escalation path.
type CredentialRefresher interface {
	Refresh(ctx context.Context) (accessToken string, err error)
}
