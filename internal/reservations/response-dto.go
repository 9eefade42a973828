package reservations

import (
	"time"

	"github.com/google/uuid"
)

type ReleaseResponse struct {
	Released int `json:"released"`
}

type HoldsResponse struct {
	Holds []HoldEntryResponse `json:"holds"`
	Count int                 `json:"count"`
}

type HoldEntryResponse struct {
	SeatID     uuid.UUID `json:"seat_id"`
	EventID    uuid.UUID `json:"event_id"`
	ExpiresAt  time.Time `json:"expires_at"`
	TTLSeconds int       `json:"ttl_seconds"`
}

func toHoldsResponse(entries []Entry, now time.Time) HoldsResponse {
	resp := HoldsResponse{Holds: make([]HoldEntryResponse, 0, len(entries)), Count: len(entries)}
	for _, entry := range entries {
		resp.Holds = append(resp.Holds, HoldEntryResponse{
			SeatID:     entry.SeatID,
			EventID:    entry.EventID,
			ExpiresAt:  entry.ExpiresAt,
			TTLSeconds: int(entry.ExpiresAt.Sub(now).Seconds()),
		})
	}
	return resp
}
