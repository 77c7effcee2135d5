package router

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/nandalalm/Fixeify-sub002/infrastructure/ws"
	"github.com/nandalalm/Fixeify-sub002/internal/entity"
	"github.com/nandalalm/Fixeify-sub002/internal/store"
	"github.com/nandalalm/Fixeify-sub002/internal/transport"
	"github.com/nandalalm/Fixeify-sub002/pkg/token"
)

// ConnectionState is the single observable connectivity value shared by
// every UI consumer.
type ConnectionState string

const (
	StateDisconnected ConnectionState = "disconnected"
	StateConnecting   ConnectionState = "connecting"
	StateConnected    ConnectionState = "connected"
	StateReconnecting ConnectionState = "reconnecting"
	// StateFailed is the persistent connection-error state entered after
	// the reconnection policy is exhausted. It is distinct from a single
	// failed fetch.
	StateFailed ConnectionState = "failed"
)

// Reconnection policy knobs; vars so tests can tighten the backoff.
var (
	maxReconnectAttempts = 5
	baseReconnectDelay   = time.Second
	maxReconnectDelay    = 30 * time.Second
)

var ErrExpiredCredential = errors.New("credential expired and no refresher configured")

// Router translates named push events into store operations and owns the
// stream's reconnection policy. It is the only writer that touches more
// than one store per event; both mutations complete before the event
// callback returns, so a UI snapshot never observes half an event.
type Router struct {
	actor     entity.Actor
	stream    ws.IStream
	refresher transport.CredentialRefresher
	log       *slog.Logger

	conversations *store.ConversationStore
	messages      *store.MessageStore
	notifications *store.NotificationStore
	presence      *store.Presence
	typing        *store.TypingTracker

	mu             sync.Mutex
	ctx            context.Context
	accessToken    string
	activeChatId   string
	state          ConnectionState
	stateSubs      []func(ConnectionState)
	onTokenRefresh func(string)
	// gen counts connection lifecycles; Connect and Disconnect bump it so
	// a reconnect loop started under an older lifecycle stops itself.
	// connGen is the lifecycle the current connection was dialed under and
	// is what a disconnect-triggered reconnect loop runs as.
	gen     uint64
	connGen uint64
}

type Stores struct {
	Conversations *store.ConversationStore
	Messages      *store.MessageStore
	Notifications *store.NotificationStore
	Presence      *store.Presence
	Typing        *store.TypingTracker
}

func NewRouter(actor entity.Actor, stream ws.IStream, refresher transport.CredentialRefresher, stores Stores, log *slog.Logger) *Router {
	if log == nil {
		log = slog.Default()
	}
	r := &Router{
		actor:         actor,
		stream:        stream,
		refresher:     refresher,
		log:           log,
		conversations: stores.Conversations,
		messages:      stores.Messages,
		notifications: stores.Notifications,
		presence:      stores.Presence,
		typing:        stores.Typing,
		state:         StateDisconnected,
	}
	stream.OnEvent(r.handleEvent)
	stream.OnDisconnect(r.handleDisconnect)
	return r
}

// OnTokenRefresh registers a callback fired with the new access token
// after the escalation path refreshes the credential.
func (r *Router) OnTokenRefresh(fn func(accessToken string)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onTokenRefresh = fn
}

// Subscribe registers a connection-state observer. The current state is
// delivered immediately.
func (r *Router) Subscribe(fn func(ConnectionState)) {
	r.mu.Lock()
	r.stateSubs = append(r.stateSubs, fn)
	current := r.state
	r.mu.Unlock()
	fn(current)
}

func (r *Router) State() ConnectionState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Connect authenticates the stream with the given credential. An already
// expired credential is never sent: it is refreshed first, or the
// connection is refused when no refresher is configured.
func (r *Router) Connect(ctx context.Context, accessToken string) error {
	r.mu.Lock()
	r.gen++
	r.connGen = r.gen
	r.ctx = ctx
	r.accessToken = accessToken
	r.mu.Unlock()

	if token.Expired(accessToken) {
		refreshed, err := r.refreshCredential(ctx)
		if err != nil {
			r.setState(StateDisconnected)
			return err
		}
		accessToken = refreshed
	}

	r.setState(StateConnecting)
	if err := r.stream.Connect(ctx, accessToken); err != nil {
		r.setState(StateDisconnected)
		return err
	}
	r.afterConnect()
	return nil
}

// Disconnect tears the stream down deliberately; no reconnect follows,
// including a reconnect loop already backing off.
func (r *Router) Disconnect() error {
	r.mu.Lock()
	r.gen++
	r.mu.Unlock()

	err := r.stream.Close()
	r.setState(StateDisconnected)
	return err
}

// JoinChat marks the conversation as the active one for the unread
// suppression rule and announces the join to the server.
func (r *Router) JoinChat(chatId string) error {
	r.mu.Lock()
	r.activeChatId = chatId
	r.mu.Unlock()

	return r.stream.Emit(EventJoinChat, joinChatPayload{
		ChatId:          chatId,
		ParticipantId:   r.actor.Id,
		ParticipantRole: r.actor.Role,
	})
}

// LeaveChat clears the active conversation and announces the leave.
func (r *Router) LeaveChat(chatId string) error {
	r.mu.Lock()
	if r.activeChatId == chatId {
		r.activeChatId = ""
	}
	r.mu.Unlock()

	return r.stream.Emit(EventLeaveChat, leaveChatPayload{ChatId: chatId})
}

func (r *Router) ActiveChatId() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.activeChatId
}

// EmitSendMessage pushes an outgoing message over the stream.
func (r *Router) EmitSendMessage(input transport.SendMessageInput) error {
	return r.stream.Emit(EventSendMessage, input)
}

func (r *Router) EmitTyping(chatId string) error {
	return r.stream.Emit(EventTyping, typingPayload{ChatId: chatId, UserId: r.actor.Id})
}

func (r *Router) EmitStopTyping(chatId string) error {
	return r.stream.Emit(EventStopTyping, typingPayload{ChatId: chatId, UserId: r.actor.Id})
}

// EmitMarkMessageRead reports a read receipt; messageId may be empty to
// acknowledge the whole conversation.
func (r *Router) EmitMarkMessageRead(chatId, messageId string) error {
	return r.stream.Emit(EventMarkMessageRead, markMessageReadPayload{
		ChatId:    chatId,
		MessageId: messageId,
	})
}

func (r *Router) handleEvent(name string, data json.RawMessage) {
	switch name {
	case EventNewMessage:
		r.onNewMessage(data)
	case EventMessageRead, EventMessagesRead:
		r.onMessagesRead(data)
	case EventMessagesDelivered:
		r.onMessagesDelivered(data)
	case EventOnlineStatus:
		r.onOnlineStatus(data)
	case EventConversationUpdated:
		r.onConversationUpdated(data)
	case EventNewNotification:
		r.onNewNotification(data)
	case EventTyping:
		r.onTyping(data, true)
	case EventStopTyping:
		r.onTyping(data, false)
	default:
		r.log.Debug("unknown stream event", slog.String("event", name))
	}
}

func (r *Router) onNewMessage(data json.RawMessage) {
	message, err := normalizeMessage(data)
	if err != nil {
		r.log.Debug("malformed newMessage dropped", slog.Any("error", err))
		return
	}

	active := r.ActiveChatId()
	if message.ChatId == active && message.SenderId != r.actor.Id {
		message.Status = entity.StatusRead
		message.IsRead = true
	}

	r.messages.AppendOrUpdate(message)
	r.conversations.UpsertFromMessage(message, active)

	// Incoming message on the open conversation: acknowledge right away
	// so the sender's view advances too.
	if message.ChatId == active && message.SenderId != r.actor.Id {
		if err := r.EmitMarkMessageRead(message.ChatId, message.Id); err != nil {
			r.log.Debug("read receipt emit failed", slog.Any("error", err))
		}
	}
}

func (r *Router) onMessagesRead(data json.RawMessage) {
	payload, err := normalizeRead(data)
	if err != nil {
		r.log.Debug("malformed read event dropped", slog.Any("error", err))
		return
	}

	ids := payload.MessageIds
	if payload.MessageId != "" {
		ids = append(ids, payload.MessageId)
	}
	if len(ids) == 0 {
		// No ids means the peer read everything the actor sent.
		r.messages.MarkOwnRead(payload.ChatId, r.actor.Id)
	}
	for _, id := range ids {
		r.messages.SetStatus(payload.ChatId, id, entity.StatusRead)
	}
	r.conversations.MarkLastMessageStatus(payload.ChatId, entity.StatusRead)
}

func (r *Router) onMessagesDelivered(data json.RawMessage) {
	payload, err := normalizeDelivered(data)
	if err != nil {
		r.log.Debug("malformed delivered event dropped", slog.Any("error", err))
		return
	}
	r.messages.MarkOwnDelivered(payload.ChatId, r.actor.Id)
}

func (r *Router) onOnlineStatus(data json.RawMessage) {
	payload, err := normalizeOnlineStatus(data)
	if err != nil {
		r.log.Debug("malformed onlineStatus dropped", slog.Any("error", err))
		return
	}
	r.presence.SetOnline(payload.UserId, payload.IsOnline)
}

func (r *Router) onConversationUpdated(data json.RawMessage) {
	conversation, err := normalizeConversation(data)
	if err != nil {
		r.log.Debug("malformed conversationUpdated dropped", slog.Any("error", err))
		return
	}
	r.conversations.ApplyExternalUpdate(conversation)
}

func (r *Router) onNewNotification(data json.RawMessage) {
	item, err := normalizeNotification(data)
	if err != nil {
		r.log.Debug("malformed notification dropped", slog.Any("error", err))
		return
	}
	if !targetsActor(item, r.actor) {
		r.log.Debug("notification for another actor dropped", slog.String("id", item.Id))
		return
	}
	r.notifications.PushIncoming(item)
}

func (r *Router) onTyping(data json.RawMessage, start bool) {
	payload, err := normalizeTyping(data)
	if err != nil {
		r.log.Debug("malformed typing event dropped", slog.Any("error", err))
		return
	}
	if start {
		r.typing.Start(payload.ChatId, payload.UserId)
		return
	}
	r.typing.Stop(payload.ChatId, payload.UserId)
}

func (r *Router) handleDisconnect(reason string) {
	if reason == ws.ReasonClientDisconnect {
		r.setState(StateDisconnected)
		return
	}

	r.log.Info("stream disconnected, reconnecting", slog.String("reason", reason))
	r.setState(StateReconnecting)

	r.mu.Lock()
	gen := r.connGen
	r.mu.Unlock()
	go r.reconnect(gen)
}

// stale reports whether the lifecycle that started a reconnect loop has
// been superseded by a Disconnect or a fresh Connect.
func (r *Router) stale(gen uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.gen != gen
}

// reconnect retries the connection with the current credential using
// exponential backoff. After maxReconnectAttempts consecutive failures it
// escalates to the credential-refresh collaborator and retries once with
// the refreshed credential before surfacing the persistent failed state.
// Every dial is guarded by the lifecycle generation: once Disconnect or a
// fresh Connect supersedes this loop it exits without touching the state.
func (r *Router) reconnect(gen uint64) {
	r.mu.Lock()
	ctx := r.ctx
	r.mu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}

	for attempt := 1; attempt <= maxReconnectAttempts; attempt++ {
		if err := r.sleep(ctx, backoffDelay(attempt)); err != nil {
			r.setState(StateDisconnected)
			return
		}
		if r.stale(gen) {
			return
		}

		r.mu.Lock()
		accessToken := r.accessToken
		r.mu.Unlock()

		if token.Expired(accessToken) {
			break
		}
		err := r.stream.Connect(ctx, accessToken)
		if err == nil {
			if r.stale(gen) {
				r.stream.Close()
				return
			}
			r.log.Info("stream reconnected", slog.Int("attempt", attempt))
			r.afterConnect()
			return
		}
		r.log.Warn("stream reconnect failed",
			slog.Int("attempt", attempt),
			slog.Any("error", err),
		)
	}

	if r.stale(gen) {
		return
	}
	refreshed, err := r.refreshCredential(ctx)
	if err != nil {
		r.log.Error("credential refresh failed", slog.Any("error", err))
		r.setState(StateFailed)
		return
	}
	if err := r.stream.Connect(ctx, refreshed); err != nil {
		r.log.Error("reconnect with refreshed credential failed", slog.Any("error", err))
		r.setState(StateFailed)
		return
	}
	if r.stale(gen) {
		r.stream.Close()
		return
	}
	r.afterConnect()
}

func (r *Router) afterConnect() {
	r.setState(StateConnected)
	if active := r.ActiveChatId(); active != "" {
		if err := r.JoinChat(active); err != nil {
			r.log.Debug("rejoin after connect failed", slog.Any("error", err))
		}
	}
}

func (r *Router) refreshCredential(ctx context.Context) (string, error) {
	if r.refresher == nil {
		return "", ErrExpiredCredential
	}
	refreshed, err := r.refresher.Refresh(ctx)
	if err != nil {
		return "", err
	}

	r.mu.Lock()
	r.accessToken = refreshed
	notify := r.onTokenRefresh
	r.mu.Unlock()

	if notify != nil {
		notify(refreshed)
	}
	return refreshed, nil
}

func (r *Router) setState(state ConnectionState) {
	r.mu.Lock()
	changed := r.state != state
	r.state = state
	subs := make([]func(ConnectionState), len(r.stateSubs))
	copy(subs, r.stateSubs)
	r.mu.Unlock()

	if !changed {
		return
	}
	for _, fn := range subs {
		fn(state)
	}
}

func (r *Router) sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func backoffDelay(attempt int) time.Duration {
	delay := baseReconnectDelay * time.Duration(math.Pow(2, float64(attempt-1)))
	if delay > maxReconnectDelay {
		delay = maxReconnectDelay
	}
	return delay
}
