package entity

import "time"

type NotificationType string

const (
	NotificationMessage NotificationType = "message"
	NotificationBooking NotificationType = "booking"
	NotificationQuota   NotificationType = "quota"
	NotificationWallet  NotificationType = "wallet"
	NotificationGeneral NotificationType = "general"
)

// NotificationView selects one of the three filtered projections exposed
// to the UI.
type NotificationView string

const (
	ViewAll        NotificationView = "all"
	ViewMessage    NotificationView = "message"
	ViewNonMessage NotificationView = "nonMessage"
)

type NotificationItem struct {
	Id          string           `json:"id"`
	Title       string           `json:"title"`
	Description string           `json:"description"`
	Timestamp   time.Time        `json:"timestamp"`
	IsRead      bool             `json:"isRead"`
	Type        NotificationType `json:"type"`

	// Correlation ids for click-through navigation. Only the ones
	// relevant to Type are populated; none participate in merge logic.
	UserId    string `json:"userId,omitempty"`
	ProId     string `json:"proId,omitempty"`
	AdminId   string `json:"adminId,omitempty"`
	ChatId    string `json:"chatId,omitempty"`
	BookingId string `json:"bookingId,omitempty"`
	QuotaId   string `json:"quotaId,omitempty"`
	WalletId  string `json:"walletId,omitempty"`
	MessageId string `json:"messageId,omitempty"`
}

// IsMessageKind reports whether the item belongs to the message view.
func (n NotificationItem) IsMessageKind() bool {
	return n.Type == NotificationMessage
}

// InView reports whether the item belongs to the given view.
func (n NotificationItem) InView(view NotificationView) bool {
	switch view {
	case ViewMessage:
		return n.IsMessageKind()
	case ViewNonMessage:
		return !n.IsMessageKind()
	default:
		return true
	}
}
