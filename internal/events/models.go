package events

import (
	"time"

	"github.com/google/uuid"
)

type Event struct {
	ID          uuid.UUID   `json:"id" gorm:"type:uuid;default:uuid_generate_v4();primaryKey"`
	Name        string      `json:"name" gorm:"not null;size:255"`
	Description string      `json:"description" gorm:"type:text"`
	Venue       string      `json:"venue" gorm:"not null;size:255"`
	StartsAt    time.Time   `json:"starts_at" gorm:"not null"`
	Currency    string      `json:"currency" gorm:"type:varchar(3);not null"`
	Status      EventStatus `json:"status" gorm:"type:varchar(20);not null;default:'DRAFT';check:chk_events_status,status IN ('DRAFT', 'PUBLISHED', 'CANCELLED', 'COMPLETED')"`
	CreatedAt   time.Time   `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt   time.Time   `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName specifies the table name for GORM
func (Event) TableName() string {
	return "events"
}

type EventResponse struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Venue       string      `json:"venue"`
	StartsAt    time.Time   `json:"starts_at"`
	Currency    string      `json:"currency"`
	Status      EventStatus `json:"status"`
	TotalSeats  int64       `json:"total_seats"`
	BookedSeats int64       `json:"booked_seats"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// SeatGrid describes one priced block of seats: rows x seatsPerRow in a section
type SeatGrid struct {
	Section     string   `json:"section" binding:"required,max=50"`
	Rows        []string `json:"rows" binding:"required,min=1,dive,required,max=10"`
	SeatsPerRow int      `json:"seats_per_row" binding:"required,min=1,max=500"`
	Price       int64    `json:"price" binding:"min=0"`
}

type CreateEventRequest struct {
	Name        string     `json:"name" binding:"required,min=3,max=255"`
	Description string     `json:"description" binding:"max=2000"`
	Venue       string     `json:"venue" binding:"required,min=3,max=255"`
	StartsAt    time.Time  `json:"starts_at" binding:"required"`
	Currency    string     `json:"currency" binding:"required,len=3"`
	Publish     bool       `json:"publish"`
	Seating     []SeatGrid `json:"seating" binding:"required,min=1,dive"`
}

// ToResponse converts Event to EventResponse; seat counts are filled by the service
func (e *Event) ToResponse() EventResponse {
	return EventResponse{
		ID:          e.ID.String(),
		Name:        e.Name,
		Description: e.Description,
		Venue:       e.Venue,
		StartsAt:    e.StartsAt,
		Currency:    e.Currency,
		Status:      e.Status,
		CreatedAt:   e.CreatedAt,
		UpdatedAt:   e.UpdatedAt,
	}
}
