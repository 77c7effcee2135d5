package router

import "github.com/nandalalm/Fixeify-sub002/internal/entity"

// Event names received from the stream.
const (
	EventNewMessage          = "newMessage"
	EventMessageRead         = "messageRead"
	EventMessagesRead        = "messagesRead"
	EventMessagesDelivered   = "messagesDelivered"
	EventOnlineStatus        = "onlineStatus"
	EventConversationUpdated = "conversationUpdated"
	EventNewNotification     = "newNotification"
	EventTyping              = "typing"
	EventStopTyping          = "stopTyping"
)

// Event names emitted to the stream.
const (
	EventJoinChat        = "joinChat"
	EventLeaveChat       = "leaveChat"
	EventSendMessage     = "sendMessage"
	EventMarkMessageRead = "markMessageRead"
)

type joinChatPayload struct {
	ChatId          string      `json:"chatId"`
	ParticipantId   string      `json:"participantId"`
	ParticipantRole entity.Role `json:"participantRole"`
}

type leaveChatPayload struct {
	ChatId string `json:"chatId"`
}

type typingPayload struct {
	ChatId string `json:"chatId"`
	UserId string `json:"userId,omitempty"`
}

type markMessageReadPayload struct {
	ChatId    string `json:"chatId"`
	MessageId string `json:"messageId,omitempty"`
}

type messageReadPayload struct {
	ChatId     string   `json:"chatId"`
	MessageId  string   `json:"messageId"`
	MessageIds []string `json:"messageIds"`
}

type messagesDeliveredPayload struct {
	ChatId string `json:"chatId"`
}

type onlineStatusPayload struct {
	UserId   string `json:"userId"`
	IsOnline bool   `json:"isOnline"`
}
