package reservations

import (
	"time"

	"github.com/google/uuid"
)

type HoldRequest struct {
	EventID  uuid.UUID
	HolderID uuid.UUID
	SeatIDs  []uuid.UUID
}

type HoldResult struct {
	EventID    uuid.UUID  `json:"event_id"`
	HolderID   uuid.UUID  `json:"holder_id"`
	Seats      []HeldSeat `json:"seats"`
	TotalPrice int64      `json:"total_price"`
	ExpiresAt  time.Time  `json:"expires_at"`
	TTLSeconds int        `json:"ttl_seconds"`
}

// SeatIDs returns the held seats in lock order
func (r *HoldResult) SeatIDs() []uuid.UUID {
	ids := make([]uuid.UUID, len(r.Seats))
	for i, seat := range r.Seats {
		ids[i] = seat.SeatID
	}
	return ids
}

type HeldSeat struct {
	SeatID     uuid.UUID `json:"seat_id"`
	Section    string    `json:"section"`
	Row        string    `json:"row"`
	SeatNumber string    `json:"seat_number"`
	Price      int64     `json:"price"`
}

type Availability string

const (
	AvailabilityAvailable Availability = "AVAILABLE"
	AvailabilityHeld      Availability = "HELD"
	AvailabilityBooked    Availability = "BOOKED"
)

// SeatAvailability is the effective status of a seat: durable state merged with live holds
type SeatAvailability struct {
	SeatID     uuid.UUID    `json:"seat_id"`
	Section    string       `json:"section"`
	Row        string       `json:"row"`
	SeatNumber string       `json:"seat_number"`
	Price      int64        `json:"price"`
	Status     Availability `json:"status"`
	HeldByYou  bool         `json:"held_by_you,omitempty"`
}
