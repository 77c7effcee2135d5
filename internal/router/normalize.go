package router

import (
	"encoding/json"
	"errors"

	"github.com/nandalalm/Fixeify-sub002/internal/entity"
)

// Incoming stream payloads are loosely shaped; one normalization function
// per event maps the untyped wire payload into the strict entity shapes.
// A raw payload never leaks past this boundary: it either normalizes or
// the event is dropped.

var errMalformedPayload = errors.New("malformed payload")

func normalizeMessage(data json.RawMessage) (entity.Message, error) {
	var message entity.Message
	if err := json.Unmarshal(data, &message); err != nil {
		return entity.Message{}, err
	}
	if message.Id == "" || message.ChatId == "" {
		return entity.Message{}, errMalformedPayload
	}
	message.Normalize()
	return message, nil
}

func normalizeConversation(data json.RawMessage) (entity.Conversation, error) {
	var conversation entity.Conversation
	if err := json.Unmarshal(data, &conversation); err != nil {
		return entity.Conversation{}, err
	}
	if conversation.Id == "" {
		return entity.Conversation{}, errMalformedPayload
	}
	return conversation, nil
}

func normalizeNotification(data json.RawMessage) (entity.NotificationItem, error) {
	var item entity.NotificationItem
	if err := json.Unmarshal(data, &item); err != nil {
		return entity.NotificationItem{}, err
	}
	if item.Id == "" {
		return entity.NotificationItem{}, errMalformedPayload
	}
	if item.Type == "" {
		item.Type = entity.NotificationGeneral
	}
	return item, nil
}

func normalizeRead(data json.RawMessage) (messageReadPayload, error) {
	var payload messageReadPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return messageReadPayload{}, err
	}
	if payload.ChatId == "" {
		return messageReadPayload{}, errMalformedPayload
	}
	return payload, nil
}

func normalizeDelivered(data json.RawMessage) (messagesDeliveredPayload, error) {
	var payload messagesDeliveredPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return messagesDeliveredPayload{}, err
	}
	if payload.ChatId == "" {
		return messagesDeliveredPayload{}, errMalformedPayload
	}
	return payload, nil
}

func normalizeOnlineStatus(data json.RawMessage) (onlineStatusPayload, error) {
	var payload onlineStatusPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return onlineStatusPayload{}, err
	}
	if payload.UserId == "" {
		return onlineStatusPayload{}, errMalformedPayload
	}
	return payload, nil
}

func normalizeTyping(data json.RawMessage) (typingPayload, error) {
	var payload typingPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return typingPayload{}, err
	}
	if payload.ChatId == "" || payload.UserId == "" {
		return typingPayload{}, errMalformedPayload
	}
	return payload, nil
}

// targetsActor reports whether a pushed notification is addressed to the
// given actor, by the correlation id matching the actor's role.
func targetsActor(item entity.NotificationItem, actor entity.Actor) bool {
	switch actor.Role {
	case entity.RoleUser:
		return item.UserId == actor.Id
	case entity.RolePro:
		return item.ProId == actor.Id
	case entity.RoleAdmin:
		return item.AdminId == actor.Id
	}
	return false
}
