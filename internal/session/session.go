package session

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/nandalalm/Fixeify-sub002/infrastructure/ws"
	"github.com/nandalalm/Fixeify-sub002/internal/entity"
	"github.com/nandalalm/Fixeify-sub002/internal/router"
	"github.com/nandalalm/Fixeify-sub002/internal/store"
	"github.com/nandalalm/Fixeify-sub002/internal/transport"
)

// DefaultPageSize is the page size used when a caller passes zero.
const DefaultPageSize = 20

// tokenSink is implemented by transports whose bearer token can be
// swapped after a credential refresh.
type tokenSink interface {
	SetToken(token string)
}

// Session owns the realtime state for one authenticated actor: the three
// stores, presence and typing, the event router and the stream. Construct
// it on login and Close it on logout; nothing here is a singleton.
type Session struct {
	actor  entity.Actor
	tr     transport.Transport
	router *router.Router
	log    *slog.Logger

	conversations *store.ConversationStore
	messages      *store.MessageStore
	notifications *store.NotificationStore
	presence      *store.Presence
	typing        *store.TypingTracker
}

func New(actor entity.Actor, tr transport.Transport, stream ws.IStream, refresher transport.CredentialRefresher, log *slog.Logger) *Session {
	if log == nil {
		log = slog.Default()
	}

	s := &Session{
		actor:         actor,
		tr:            tr,
		log:           log,
		conversations: store.NewConversationStore(actor, tr, log),
		messages:      store.NewMessageStore(actor.Role, tr, log),
		notifications: store.NewNotificationStore(actor, tr, log),
		presence:      store.NewPresence(),
		typing:        store.NewTypingTracker(),
	}

	s.router = router.NewRouter(actor, stream, refresher, router.Stores{
		Conversations: s.conversations,
		Messages:      s.messages,
		Notifications: s.notifications,
		Presence:      s.presence,
		Typing:        s.typing,
	}, log)

	if sink, ok := tr.(tokenSink); ok {
		s.router.OnTokenRefresh(sink.SetToken)
	}

	return s
}

// Connect brings the stream up with the given credential.
func (s *Session) Connect(ctx context.Context, accessToken string) error {
	return s.router.Connect(ctx, accessToken)
}

// Close tears the session down: the stream disconnects and ephemeral
// state stops its background work.
func (s *Session) Close() error {
	err := s.router.Disconnect()
	s.typing.Close()
	return err
}

func (s *Session) Actor() entity.Actor { return s.actor }

func (s *Session) Conversations() *store.ConversationStore { return s.conversations }
func (s *Session) Messages() *store.MessageStore           { return s.messages }
func (s *Session) Notifications() *store.NotificationStore { return s.notifications }
func (s *Session) Presence() *store.Presence               { return s.presence }

func (s *Session) ConnectionState() router.ConnectionState { return s.router.State() }

// OnConnectionState subscribes to the shared connectivity observable.
func (s *Session) OnConnectionState(fn func(router.ConnectionState)) {
	s.router.Subscribe(fn)
}

// LoadConversations refreshes the conversation list from the server.
func (s *Session) LoadConversations(ctx context.Context) error {
	return s.conversations.LoadConversations(ctx)
}

// EnsureConversation returns the conversation with the given counterpart,
// creating it when none exists. Racing calls settle on the same server
// record because the store dedupes by the returned id.
func (s *Session) EnsureConversation(ctx context.Context, otherId string) (entity.Conversation, error) {
	existing, err := s.tr.FetchExistingConversation(ctx, s.actor.Id, otherId, s.actor.Role)
	if err != nil {
		return entity.Conversation{}, err
	}
	if existing != nil {
		s.conversations.Upsert(*existing)
		return *existing, nil
	}

	created, err := s.tr.CreateConversation(ctx, s.actor.Id, otherId, s.actor.Role)
	if err != nil {
		return entity.Conversation{}, err
	}
	s.conversations.Upsert(created)
	return created, nil
}

// OpenConversation joins the conversation's room, loads the first page of
// history and clears unread state locally and on the server. hasMore
// reports whether older pages exist.
func (s *Session) OpenConversation(ctx context.Context, chatId string, limit int) (hasMore bool, err error) {
	if limit <= 0 {
		limit = DefaultPageSize
	}

	if err := s.router.JoinChat(chatId); err != nil {
		s.log.Debug("joinChat emit failed", slog.Any("error", err))
	}

	hasMore, err = s.messages.LoadPage(ctx, chatId, 1, limit)
	if err != nil {
		return false, err
	}

	s.messages.MarkAllReadLocally(chatId)
	s.conversations.MarkConversationRead(chatId)
	if err := s.tr.MarkMessagesRead(ctx, chatId, s.actor.Id, s.actor.Role); err != nil {
		return hasMore, err
	}
	return hasMore, nil
}

// CloseConversation leaves the room; the conversation is no longer the
// active one for unread suppression.
func (s *Session) CloseConversation(chatId string) {
	if err := s.router.LeaveChat(chatId); err != nil {
		s.log.Debug("leaveChat emit failed", slog.Any("error", err))
	}
}

// LoadOlderMessages prepends one older page of history.
func (s *Session) LoadOlderMessages(ctx context.Context, chatId string, page, limit int) (hasMore bool, err error) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	return s.messages.LoadPage(ctx, chatId, page, limit)
}

// SendMessage performs an optimistic send: the message appears locally
// under a provisional id immediately, the server call carries the same id
// as a client reference, and the confirmed record replaces the
// provisional one on arrival from either the response or a push echo.
// A second send on the same conversation while one is in flight is
// rejected with store.ErrSendInFlight.
func (s *Session) SendMessage(ctx context.Context, chatId, content string, msgType entity.MessageType, attachments []entity.Attachment) (entity.Message, error) {
	if err := s.messages.BeginSend(chatId); err != nil {
		return entity.Message{}, err
	}
	defer s.messages.EndSend(chatId)

	conversation, err := s.conversations.Get(chatId)
	if err != nil {
		return entity.Message{}, err
	}
	receiver := conversation.Other(s.actor.Id)

	if msgType == "" {
		msgType = entity.MessageTypeText
	}

	clientRef := uuid.NewString()
	provisional := entity.Message{
		Id:           clientRef,
		ChatId:       chatId,
		SenderId:     s.actor.Id,
		SenderRole:   s.actor.Role.SenderRole(),
		ReceiverId:   receiver.Id,
		ReceiverRole: oppositeRole(s.actor.Role.SenderRole()),
		Content:      content,
		Attachments:  attachments,
		Timestamp:    time.Now(),
		Type:         msgType,
		Status:       entity.StatusSent,
		ClientRef:    clientRef,
	}
	provisional.Normalize()

	s.messages.AppendOrUpdate(provisional)
	s.conversations.UpsertFromMessage(provisional, s.router.ActiveChatId())

	confirmed, err := s.tr.SendMessage(ctx, transport.SendMessageInput{
		ChatId:      chatId,
		SenderId:    s.actor.Id,
		SenderRole:  s.actor.Role.SenderRole(),
		Content:     content,
		Type:        msgType,
		Attachments: attachments,
		ClientRef:   clientRef,
	})
	if err != nil {
		return provisional, err
	}

	if confirmed.ClientRef == "" {
		confirmed.ClientRef = clientRef
	}
	s.messages.AppendOrUpdate(confirmed)
	s.conversations.UpsertFromMessage(confirmed, s.router.ActiveChatId())
	return confirmed, nil
}

// Typing and StopTyping relay the actor's typing indicator; these are
// ephemeral signals and never touch the stores.
func (s *Session) Typing(chatId string) {
	if err := s.router.EmitTyping(chatId); err != nil {
		s.log.Debug("typing emit failed", slog.Any("error", err))
	}
}

func (s *Session) StopTyping(chatId string) {
	if err := s.router.EmitStopTyping(chatId); err != nil {
		s.log.Debug("stopTyping emit failed", slog.Any("error", err))
	}
}

// IsTyping reports whether a participant is currently typing in the
// conversation. The flag expires on its own when a stopTyping is lost.
func (s *Session) IsTyping(chatId, userId string) bool {
	return s.typing.IsTyping(chatId, userId)
}

// LoadNotifications pages one of the three notification views.
func (s *Session) LoadNotifications(ctx context.Context, view entity.NotificationView, page, limit int, filter transport.ReadFilter) (hasMore bool, err error) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if filter == "" {
		filter = transport.FilterAll
	}
	return s.notifications.LoadPage(ctx, view, page, limit, filter)
}

func (s *Session) MarkNotificationRead(ctx context.Context, id string) error {
	return s.notifications.MarkRead(ctx, id)
}

func (s *Session) MarkAllNotificationsRead(ctx context.Context) error {
	return s.notifications.MarkAllRead(ctx)
}

func (s *Session) MarkAllMessageNotificationsRead(ctx context.Context) error {
	return s.notifications.MarkAllMessageRead(ctx)
}

func oppositeRole(role entity.SenderRole) entity.SenderRole {
	if role == entity.SenderRoleUser {
		return entity.SenderRolePro
	}
	return entity.SenderRoleUser
}
