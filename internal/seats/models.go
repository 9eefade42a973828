package seats

import (
	"time"

	"github.com/google/uuid"
)

// Seat is the durable inventory row for one seat of one event.
// Status BOOKED always comes with a BookingID; RESERVED may carry one while a booking commits.
type Seat struct {
	ID            uuid.UUID  `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	EventID       uuid.UUID  `gorm:"type:uuid;index;not null" json:"event_id"`
	Section       string     `gorm:"type:varchar(50);not null" json:"section"`
	Row           string     `gorm:"column:row_label;type:varchar(10);not null" json:"row"`
	SeatNumber    string     `gorm:"type:varchar(10);not null" json:"seat_number"`
	Price         int64      `gorm:"not null;check:chk_seats_price,price >= 0" json:"price"`
	Status        Status     `gorm:"type:varchar(20);not null;default:'AVAILABLE';check:chk_seats_status,status IN ('AVAILABLE', 'RESERVED', 'BOOKED')" json:"status"`
	BookingID     *uuid.UUID `gorm:"type:uuid;index" json:"booking_id,omitempty"`
	ReservedBy    *uuid.UUID `gorm:"type:uuid" json:"reserved_by,omitempty"`
	ReservedUntil *time.Time `json:"reserved_until,omitempty"`
	Version       int64      `gorm:"not null;default:1" json:"version"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// TableName sets the table name for Seat
func (Seat) TableName() string {
	return "seats"
}

func (s *Seat) IsBooked() bool {
	return s.Status == StatusBooked
}

// IsClaimed reports whether a booking owns the seat, pending or confirmed.
func (s *Seat) IsClaimed() bool {
	return s.BookingID != nil
}

// ReservedFor reports whether the seat is reserved by holderID.
func (s *Seat) ReservedFor(holderID uuid.UUID) bool {
	return s.Status == StatusReserved && s.ReservedBy != nil && *s.ReservedBy == holderID
}

// Label renders the seat position, e.g. "A-12 (Balcony)".
func (s *Seat) Label() string {
	return s.Row + "-" + s.SeatNumber + " (" + s.Section + ")"
}
