package entity

import "time"

type SenderRole string

const (
	SenderRoleUser SenderRole = "User"
	SenderRolePro  SenderRole = "ApprovedPro"
)

type MessageType string

const (
	MessageTypeText  MessageType = "text"
	MessageTypeImage MessageType = "image"
	MessageTypeFile  MessageType = "file"
)

type MessageStatus string

const (
	StatusSent      MessageStatus = "sent"
	StatusDelivered MessageStatus = "delivered"
	StatusRead      MessageStatus = "read"
)

// statusRank orders the delivery states. Transitions only ever move to a
// higher rank; delivered may be skipped entirely when the ack is lost.
func (s MessageStatus) rank() int {
	switch s {
	case StatusSent:
		return 1
	case StatusDelivered:
		return 2
	case StatusRead:
		return 3
	}
	return 0
}

// CanAdvanceTo reports whether moving from s to next is a forward
// transition. Equal or backward moves are no-ops for callers.
func (s MessageStatus) CanAdvanceTo(next MessageStatus) bool {
	return next.rank() > s.rank()
}

type Attachment struct {
	Url  string `json:"url"`
	Mime string `json:"mime"`
	Size int64  `json:"size"`
}

type Message struct {
	Id           string        `json:"id"`
	ChatId       string        `json:"chatId"`
	SenderId     string        `json:"senderId"`
	SenderRole   SenderRole    `json:"senderRole"`
	ReceiverId   string        `json:"receiverId"`
	ReceiverRole SenderRole    `json:"receiverRole"`
	Content      string        `json:"content"`
	Attachments  []Attachment  `json:"attachments"`
	Timestamp    time.Time     `json:"timestamp"`
	Type         MessageType   `json:"type"`
	Status       MessageStatus `json:"status"`
	IsRead       bool          `json:"isRead"`

	// ClientRef is the provisional id generated on an optimistic send and
	// echoed back by the server so the local record and the confirmed
	// record are recognized as the same logical message.
	ClientRef string `json:"clientRef,omitempty"`
}

// Normalize fills the defensive defaults: nil attachments become an empty
// list, the zero status becomes sent, and IsRead is kept consistent with
// the read status. Malformed payloads are normalized, never rejected.
func (m *Message) Normalize() {
	if m.Attachments == nil {
		m.Attachments = []Attachment{}
	}
	if m.Type == "" {
		m.Type = MessageTypeText
	}
	if m.Status == "" {
		m.Status = StatusSent
	}
	if m.Status == StatusRead {
		m.IsRead = true
	}
}

// Preview projects the message into the denormalized shape a conversation
// carries as its last message.
func (m Message) Preview() *LastMessage {
	return &LastMessage{
		Id:         m.Id,
		Content:    m.Content,
		SenderId:   m.SenderId,
		SenderRole: m.SenderRole,
		Timestamp:  m.Timestamp,
		Status:     m.Status,
	}
}
