package notifications

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type NotificationType string

const (
	NotificationTypeBookingConfirmed NotificationType = "BOOKING_CONFIRMED"
	NotificationTypeBookingCancelled NotificationType = "BOOKING_CANCELLED"
)

// BookingNotification is the message published when a booking settles
type BookingNotification struct {
	ID         uuid.UUID        `json:"id"`
	Type       NotificationType `json:"type"`
	UserID     uuid.UUID        `json:"user_id"`
	BookingID  uuid.UUID        `json:"booking_id"`
	BookingRef string           `json:"booking_ref"`
	EventID    uuid.UUID        `json:"event_id"`
	SeatIDs    []uuid.UUID      `json:"seat_ids"`
	Amount     int64            `json:"amount"`
	Currency   string           `json:"currency"`
	Reason     string           `json:"reason,omitempty"`
	OccurredAt time.Time        `json:"occurred_at"`
}

// GetPartitionKey keeps a user's notifications ordered on one partition
func (n *BookingNotification) GetPartitionKey() string {
	return n.UserID.String()
}

func (n *BookingNotification) ToJSON() ([]byte, error) {
	return json.Marshal(n)
}
