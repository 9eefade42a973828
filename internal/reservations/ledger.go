package reservations

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Entry is one live claim in the reservation ledger
type Entry struct {
	SeatID    uuid.UUID `json:"seat_id"`
	HolderID  uuid.UUID `json:"holder_id"`
	EventID   uuid.UUID `json:"event_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Live reports whether the entry is still in force at now
func (e Entry) Live(now time.Time) bool {
	return now.Before(e.ExpiresAt)
}

type AcquireRequest struct {
	EventID  uuid.UUID
	HolderID uuid.UUID
	SeatIDs  []uuid.UUID
	Now      time.Time
	TTL      time.Duration
}

// Grant describes a successful acquisition.
// Acquired lists seats that were free before; the rest were refreshed holds of the same holder.
type Grant struct {
	ExpiresAt time.Time
	Acquired  []uuid.UUID
}

// Ledger is the shared seat -> (holder, expiresAt) store.
// Entries whose expiry is not after the supplied now are treated as absent.
type Ledger interface {
	// Acquire claims all seats for the holder or none of them.
	// A live entry of another holder fails with apperrors.ErrSeatContended.
	Acquire(ctx context.Context, req AcquireRequest) (*Grant, error)
	// Release drops the entries owned by holderID and returns how many were removed.
	Release(ctx context.Context, holderID uuid.UUID, seatIDs []uuid.UUID) (int, error)
	// Lookup returns the live entries among seatIDs.
	Lookup(ctx context.Context, seatIDs []uuid.UUID, now time.Time) (map[uuid.UUID]Entry, error)
	// HolderEntries returns the live entries owned by holderID.
	HolderEntries(ctx context.Context, holderID uuid.UUID, now time.Time) ([]Entry, error)
}
