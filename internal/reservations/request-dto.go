package reservations

import "github.com/google/uuid"

type HoldSeatsRequest struct {
	EventID uuid.UUID   `json:"event_id" binding:"required"`
	SeatIDs []uuid.UUID `json:"seat_ids" binding:"required,min=1,max=10,unique,dive,required"`
}

type ReleaseSeatsRequest struct {
	SeatIDs []uuid.UUID `json:"seat_ids" binding:"required,min=1,max=10,dive,required"`
}
