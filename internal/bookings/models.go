package bookings

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
)

// Booking is one commit attempt over an immutable set of seats.
// Amounts are in minor currency units and fixed at hold time.
type Booking struct {
	ID            uuid.UUID  `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	BookingRef    string     `gorm:"type:varchar(32);uniqueIndex;not null" json:"booking_ref"`
	UserID        uuid.UUID  `gorm:"type:uuid;index;not null" json:"user_id"`
	EventID       uuid.UUID  `gorm:"type:uuid;index;not null" json:"event_id"`
	TotalAmount   int64      `gorm:"not null;check:chk_bookings_total_amount,total_amount >= 0" json:"total_amount"`
	Currency      string     `gorm:"type:varchar(3);not null" json:"currency"`
	Status        Status     `gorm:"type:varchar(20);not null;default:'PENDING';check:chk_bookings_status,status IN ('PENDING', 'CONFIRMED', 'CANCELLED')" json:"status"`
	FailureReason string     `json:"failure_reason,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	ConfirmedAt   *time.Time `json:"confirmed_at,omitempty"`
	CancelledAt   *time.Time `json:"cancelled_at,omitempty"`

	Seats []BookingSeat `json:"seats,omitempty" gorm:"foreignKey:BookingID;constraint:OnDelete:CASCADE;"`
}

// BookingSeat snapshots a seat and its price as it was when the booking was made
type BookingSeat struct {
	ID         uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	BookingID  uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_booking_seats_booking_seat" json:"booking_id"`
	SeatID     uuid.UUID `gorm:"type:uuid;not null;index;uniqueIndex:idx_booking_seats_booking_seat" json:"seat_id"`
	Section    string    `gorm:"type:varchar(50);not null" json:"section"`
	Row        string    `gorm:"column:row_label;type:varchar(10);not null" json:"row"`
	SeatNumber string    `gorm:"type:varchar(10);not null" json:"seat_number"`
	Price      int64     `gorm:"not null" json:"price"`
	CreatedAt  time.Time `json:"created_at"`
}

// TableName sets the table name for Booking
func (Booking) TableName() string {
	return "bookings"
}

// TableName sets the table name for BookingSeat
func (BookingSeat) TableName() string {
	return "booking_seats"
}

func (b *Booking) IsPending() bool {
	return b.Status == StatusPending
}

func (b *Booking) IsConfirmed() bool {
	return b.Status == StatusConfirmed
}

func (b *Booking) IsCancelled() bool {
	return b.Status == StatusCancelled
}

// SeatIDs returns the booked seats in lock order
func (b *Booking) SeatIDs() []uuid.UUID {
	ids := make([]uuid.UUID, len(b.Seats))
	for i, seat := range b.Seats {
		ids[i] = seat.SeatID
	}
	return ids
}

// IsStale reports whether a PENDING booking has outlived the window in which its payment could still finish
func (b *Booking) IsStale(now time.Time, grace time.Duration) bool {
	return b.IsPending() && !now.Before(b.CreatedAt.Add(grace))
}

const bookingRefLetters = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// generateBookingReference builds EVT-YYYYMMDD-XXXXXX
func generateBookingReference(now time.Time) (string, error) {
	randomPart := make([]byte, 6)
	for i := range randomPart {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(bookingRefLetters))))
		if err != nil {
			return "", err
		}
		randomPart[i] = bookingRefLetters[num.Int64()]
	}
	return fmt.Sprintf("EVT-%s-%s", now.Format("20060102"), string(randomPart)), nil
}
