package entity

import "time"

// Conversation is a persistent 1:1 channel between a user and a pro. The
// server guarantees at most one conversation per (user, pro) pair; the
// client only ever dedupes by Id.
type Conversation struct {
	Id          string       `json:"id"`
	User        Participant  `json:"user"`
	Pro         Participant  `json:"pro"`
	LastMessage *LastMessage `json:"lastMessage,omitempty"`
	UnreadCount int          `json:"unreadCount"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}

// LastMessage is the denormalized projection of the most recent message,
// present only once at least one message exists.
type LastMessage struct {
	Id         string        `json:"id"`
	Content    string        `json:"content,omitempty"`
	SenderId   string        `json:"senderId"`
	SenderRole SenderRole    `json:"senderRole"`
	Timestamp  time.Time     `json:"timestamp"`
	Status     MessageStatus `json:"status"`
}

// Other resolves the participant opposite the given actor id.
func (c Conversation) Other(actorId string) Participant {
	if c.User.Id == actorId {
		return c.Pro
	}
	return c.User
}
