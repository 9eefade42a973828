package testutil

import (
	"context"
	"fmt"
	"sync"
	"time"

	"seatbook/internal/notifications"
	"seatbook/internal/reservations"
	"seatbook/internal/shared/apperrors"

	"github.com/google/uuid"
)

// MemoryLedger is a reservations.Ledger with the same rules as the Redis scripts
type MemoryLedger struct {
	mu      sync.Mutex
	entries map[uuid.UUID]reservations.Entry
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{entries: make(map[uuid.UUID]reservations.Entry)}
}

func (l *MemoryLedger) Acquire(_ context.Context, req reservations.AcquireRequest) (*reservations.Grant, error) {
	if len(req.SeatIDs) == 0 || req.TTL <= 0 {
		return nil, fmt.Errorf("%w: empty acquire", apperrors.ErrInvalidRequest)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	var fresh []uuid.UUID
	for _, seatID := range req.SeatIDs {
		entry, ok := l.entries[seatID]
		live := ok && entry.Live(req.Now)
		if live && entry.HolderID != req.HolderID {
			return nil, apperrors.Seats(apperrors.ErrSeatContended, seatID)
		}
		if !live {
			fresh = append(fresh, seatID)
		}
	}

	expiresAt := req.Now.Add(req.TTL).Truncate(time.Millisecond)
	for _, seatID := range req.SeatIDs {
		l.entries[seatID] = reservations.Entry{
			SeatID:    seatID,
			HolderID:  req.HolderID,
			EventID:   req.EventID,
			ExpiresAt: expiresAt,
		}
	}
	return &reservations.Grant{ExpiresAt: expiresAt, Acquired: fresh}, nil
}

func (l *MemoryLedger) Release(_ context.Context, holderID uuid.UUID, seatIDs []uuid.UUID) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	released := 0
	for _, seatID := range seatIDs {
		if entry, ok := l.entries[seatID]; ok && entry.HolderID == holderID {
			delete(l.entries, seatID)
			released++
		}
	}
	return released, nil
}

func (l *MemoryLedger) Lookup(_ context.Context, seatIDs []uuid.UUID, now time.Time) (map[uuid.UUID]reservations.Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make(map[uuid.UUID]reservations.Entry, len(seatIDs))
	for _, seatID := range seatIDs {
		if entry, ok := l.entries[seatID]; ok && entry.Live(now) {
			out[seatID] = entry
		}
	}
	return out, nil
}

func (l *MemoryLedger) HolderEntries(_ context.Context, holderID uuid.UUID, now time.Time) ([]reservations.Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []reservations.Entry
	for _, entry := range l.entries {
		if entry.HolderID == holderID && entry.Live(now) {
			out = append(out, entry)
		}
	}
	sortEntries(out)
	return out, nil
}

// Drop removes an entry as if Redis had lost it
func (l *MemoryLedger) Drop(seatID uuid.UUID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.entries, seatID)
}

func sortEntries(entries []reservations.Entry) {
	ids := make([]uuid.UUID, len(entries))
	byID := make(map[uuid.UUID]reservations.Entry, len(entries))
	for i, e := range entries {
		ids[i] = e.SeatID
		byID[e.SeatID] = e
	}
	sortIDs(ids)
	for i, id := range ids {
		entries[i] = byID[id]
	}
}

// Catalog is a reservations.Catalog reading prices straight from Memory
type Catalog struct {
	Memory *Memory
	// Closed marks events that are not open for booking
	Closed map[uuid.UUID]bool
}

func NewCatalog(m *Memory) *Catalog {
	return &Catalog{Memory: m, Closed: make(map[uuid.UUID]bool)}
}

func (c *Catalog) EnsureBookable(_ context.Context, eventID uuid.UUID) error {
	if c.Closed[eventID] {
		return apperrors.ErrEventNotBookable
	}
	return nil
}

func (c *Catalog) SeatPrices(_ context.Context, eventID uuid.UUID, seatIDs []uuid.UUID) (map[uuid.UUID]int64, error) {
	prices := make(map[uuid.UUID]int64, len(seatIDs))
	var unknown []uuid.UUID
	for _, seatID := range seatIDs {
		seat := c.Memory.Seat(seatID)
		if seat.ID == uuid.Nil || seat.EventID != eventID {
			unknown = append(unknown, seatID)
			continue
		}
		prices[seatID] = seat.Price
	}
	if len(unknown) > 0 {
		return nil, apperrors.Seats(apperrors.ErrInvalidRequest, unknown...)
	}
	return prices, nil
}

// Gateway is a scripted payments.Gateway
type Gateway struct {
	mu sync.Mutex

	Valid     bool
	VerifyErr error
	RefundErr error
	Delay     time.Duration
	Orders    []string
	Refunds   []string

	// RefundKeys holds the idempotency key of every refund call, failed ones included
	RefundKeys []string
}

func NewGateway() *Gateway {
	return &Gateway{Valid: true}
}

func (g *Gateway) CreateOrder(_ context.Context, amount int64, currency, receipt string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	orderID := fmt.Sprintf("order_%d", len(g.Orders)+1)
	g.Orders = append(g.Orders, orderID)
	return orderID, nil
}

func (g *Gateway) VerifySignature(ctx context.Context, orderID, paymentID, signature string) (bool, error) {
	if g.Delay > 0 {
		select {
		case <-time.After(g.Delay):
		case <-ctx.Done():
			return false, ctx.Err()
		}
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.Valid, g.VerifyErr
}

func (g *Gateway) Refund(_ context.Context, paymentID string, amount int64, idempotencyKey string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.RefundKeys = append(g.RefundKeys, idempotencyKey)
	if g.RefundErr != nil {
		return "", g.RefundErr
	}
	g.Refunds = append(g.Refunds, paymentID)
	return fmt.Sprintf("rfnd_%d", len(g.Refunds)), nil
}

// RefundCount reports how many refunds went through
func (g *Gateway) RefundCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.Refunds)
}

// Notifier records every published notification
type Notifier struct {
	mu   sync.Mutex
	sent []notifications.BookingNotification
}

func (n *Notifier) Publish(_ context.Context, notification *notifications.BookingNotification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, *notification)
	return nil
}

func (n *Notifier) Close() error {
	return nil
}

// Sent returns the notifications published so far
func (n *Notifier) Sent() []notifications.BookingNotification {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]notifications.BookingNotification, len(n.sent))
	copy(out, n.sent)
	return out
}
