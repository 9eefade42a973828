package reservations

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"seatbook/internal/seats"
	"seatbook/internal/shared/apperrors"
	"seatbook/pkg/clock"
	"seatbook/pkg/logger"

	"github.com/google/uuid"
)

const (
	DefaultHoldTTL  = 10 * time.Minute
	DefaultMaxSeats = 10
)

// SeatStore is the part of the seat inventory the coordinator writes through
type SeatStore interface {
	GetSeats(ctx context.Context, eventID uuid.UUID, seatIDs []uuid.UUID) ([]seats.Seat, error)
	ListByEvent(ctx context.Context, eventID uuid.UUID) ([]seats.Seat, error)
	ReserveSeats(ctx context.Context, eventID, holderID uuid.UUID, seatIDs []uuid.UUID, until time.Time) error
	ReleaseReservations(ctx context.Context, holderID uuid.UUID, seatIDs []uuid.UUID) (int64, error)
}

// Catalog answers event-level questions owned by the event catalog
type Catalog interface {
	EnsureBookable(ctx context.Context, eventID uuid.UUID) error
	SeatPrices(ctx context.Context, eventID uuid.UUID, seatIDs []uuid.UUID) (map[uuid.UUID]int64, error)
}

// BookingReconciler settles a booking that still claims seats.
// It reports true when it freed seats (abandoned PENDING booking, or a claim left by a cancelled one).
type BookingReconciler interface {
	ReconcileBooking(ctx context.Context, bookingID uuid.UUID) (bool, error)
}

type Service interface {
	RequestHold(ctx context.Context, req HoldRequest) (*HoldResult, error)
	// ValidateHold re-checks that the holder still owns every seat and refreshes the hold.
	ValidateHold(ctx context.Context, req HoldRequest) (*HoldResult, error)
	ReleaseHold(ctx context.Context, holderID uuid.UUID, seatIDs []uuid.UUID) (int, error)
	// ReleaseLedger drops ledger entries only; the durable seat rows are owned by a booking.
	ReleaseLedger(ctx context.Context, holderID uuid.UUID, seatIDs []uuid.UUID) error
	GetHolds(ctx context.Context, holderID uuid.UUID) ([]Entry, error)
	SeatMap(ctx context.Context, eventID, viewerID uuid.UUID) ([]SeatAvailability, error)
	SetReconciler(reconciler BookingReconciler)
}

type Option func(*service)

func WithHoldTTL(ttl time.Duration) Option {
	return func(s *service) {
		if ttl > 0 {
			s.holdTTL = ttl
		}
	}
}

func WithMaxSeats(n int) Option {
	return func(s *service) {
		if n > 0 {
			s.maxSeats = n
		}
	}
}

// WithImplicitHold lets ValidateHold acquire seats the holder never held
func WithImplicitHold(enabled bool) Option {
	return func(s *service) {
		s.implicitHold = enabled
	}
}

type service struct {
	ledger     Ledger
	store      SeatStore
	catalog    Catalog
	clock      clock.Clock
	reconciler BookingReconciler

	holdTTL      time.Duration
	maxSeats     int
	implicitHold bool
}

func NewService(ledger Ledger, store SeatStore, catalog Catalog, clk clock.Clock, opts ...Option) Service {
	s := &service{
		ledger:       ledger,
		store:        store,
		catalog:      catalog,
		clock:        clk,
		holdTTL:      DefaultHoldTTL,
		maxSeats:     DefaultMaxSeats,
		implicitHold: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetReconciler injects booking recovery after construction (bookings depends on this package)
func (s *service) SetReconciler(reconciler BookingReconciler) {
	s.reconciler = reconciler
}

func (s *service) RequestHold(ctx context.Context, req HoldRequest) (*HoldResult, error) {
	seatIDs, err := s.normalize(req.SeatIDs)
	if err != nil {
		return nil, err
	}
	if err := s.catalog.EnsureBookable(ctx, req.EventID); err != nil {
		return nil, err
	}

	// Step 1: settle stale claims, reject seats that are durably sold
	inventory, err := s.loadSeats(ctx, req.EventID, seatIDs)
	if err != nil {
		return nil, err
	}
	var booked []uuid.UUID
	for _, seat := range inventory {
		if seat.IsBooked() {
			booked = append(booked, seat.ID)
		}
	}
	if len(booked) > 0 {
		return nil, apperrors.Seats(apperrors.ErrSeatUnavailable, booked...)
	}

	prices, err := s.catalog.SeatPrices(ctx, req.EventID, seatIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to price seats: %w", err)
	}

	// Step 2: claim in the ledger, all or nothing
	grant, err := s.ledger.Acquire(ctx, AcquireRequest{
		EventID:  req.EventID,
		HolderID: req.HolderID,
		SeatIDs:  seatIDs,
		Now:      s.clock.Now(),
		TTL:      s.holdTTL,
	})
	if err != nil {
		return nil, err
	}

	// Step 3: project onto the durable rows; undo fresh ledger claims on failure
	if err := s.store.ReserveSeats(ctx, req.EventID, req.HolderID, seatIDs, grant.ExpiresAt); err != nil {
		s.rollbackLedger(ctx, req.HolderID, grant.Acquired)
		return nil, err
	}

	logger.GetDefault().LogHoldGranted(ctx, req.EventID.String(), req.HolderID.String(), len(seatIDs), grant.ExpiresAt)

	return s.buildResult(req, inventory, prices, grant.ExpiresAt), nil
}

func (s *service) ValidateHold(ctx context.Context, req HoldRequest) (*HoldResult, error) {
	seatIDs, err := s.normalize(req.SeatIDs)
	if err != nil {
		return nil, err
	}

	entries, err := s.ledger.Lookup(ctx, seatIDs, s.clock.Now())
	if err != nil {
		return nil, err
	}

	var foreign, missing []uuid.UUID
	for _, seatID := range seatIDs {
		entry, ok := entries[seatID]
		switch {
		case !ok:
			missing = append(missing, seatID)
		case entry.HolderID != req.HolderID:
			foreign = append(foreign, seatID)
		}
	}
	if len(foreign) > 0 {
		return nil, apperrors.Seats(apperrors.ErrSeatContended, foreign...)
	}
	if len(missing) > 0 && !s.implicitHold {
		return nil, apperrors.Seats(apperrors.ErrHoldExpired, missing...)
	}

	// refreshing gives the commit a full hold window and re-asserts the durable projection
	req.SeatIDs = seatIDs
	result, err := s.RequestHold(ctx, req)
	if err != nil && errors.Is(err, apperrors.ErrSeatContended) && len(missing) == 0 {
		return nil, apperrors.Seats(apperrors.ErrHoldExpired, apperrors.SeatIDs(err)...)
	}
	return result, err
}

func (s *service) ReleaseHold(ctx context.Context, holderID uuid.UUID, seatIDs []uuid.UUID) (int, error) {
	seatIDs, err := s.normalize(seatIDs)
	if err != nil {
		return 0, err
	}

	released, err := s.ledger.Release(ctx, holderID, seatIDs)
	if err != nil {
		return 0, err
	}
	if _, err := s.store.ReleaseReservations(ctx, holderID, seatIDs); err != nil {
		return released, err
	}

	logger.GetDefault().LogHoldReleased(ctx, holderID.String(), released)
	return released, nil
}

func (s *service) ReleaseLedger(ctx context.Context, holderID uuid.UUID, seatIDs []uuid.UUID) error {
	_, err := s.ledger.Release(ctx, holderID, seatIDs)
	return err
}

func (s *service) GetHolds(ctx context.Context, holderID uuid.UUID) ([]Entry, error) {
	return s.ledger.HolderEntries(ctx, holderID, s.clock.Now())
}

func (s *service) SeatMap(ctx context.Context, eventID, viewerID uuid.UUID) ([]SeatAvailability, error) {
	inventory, err := s.store.ListByEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if len(inventory) == 0 {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrEventNotFound, eventID)
	}

	seatIDs := make([]uuid.UUID, len(inventory))
	for i, seat := range inventory {
		seatIDs[i] = seat.ID
	}
	entries, err := s.ledger.Lookup(ctx, seatIDs, s.clock.Now())
	if err != nil {
		return nil, err
	}

	view := make([]SeatAvailability, len(inventory))
	for i, seat := range inventory {
		view[i] = SeatAvailability{
			SeatID:     seat.ID,
			Section:    seat.Section,
			Row:        seat.Row,
			SeatNumber: seat.SeatNumber,
			Price:      seat.Price,
			Status:     AvailabilityAvailable,
		}
		entry, held := entries[seat.ID]
		switch {
		case seat.IsBooked():
			view[i].Status = AvailabilityBooked
		case held:
			view[i].Status = AvailabilityHeld
			view[i].HeldByYou = viewerID != uuid.Nil && entry.HolderID == viewerID
		case seat.IsClaimed():
			// a booking is committing on a lapsed hold
			view[i].Status = AvailabilityHeld
		}
	}
	return view, nil
}

// loadSeats fetches the requested seats of the event, letting the reconciler
// settle any booking that still claims one of them.
func (s *service) loadSeats(ctx context.Context, eventID uuid.UUID, seatIDs []uuid.UUID) ([]seats.Seat, error) {
	inventory, err := s.store.GetSeats(ctx, eventID, seatIDs)
	if err != nil {
		return nil, err
	}
	if missing := missingSeats(seatIDs, inventory); len(missing) > 0 {
		return nil, apperrors.Seats(apperrors.ErrInvalidRequest, missing...)
	}
	if s.reconciler == nil {
		return inventory, nil
	}

	healed := false
	seen := make(map[uuid.UUID]struct{})
	for _, seat := range inventory {
		if seat.BookingID == nil {
			continue
		}
		if _, ok := seen[*seat.BookingID]; ok {
			continue
		}
		seen[*seat.BookingID] = struct{}{}

		freed, err := s.reconciler.ReconcileBooking(ctx, *seat.BookingID)
		if err != nil {
			return nil, fmt.Errorf("failed to reconcile booking %s: %w", *seat.BookingID, err)
		}
		healed = healed || freed
	}
	if !healed {
		return inventory, nil
	}
	return s.store.GetSeats(ctx, eventID, seatIDs)
}

func (s *service) rollbackLedger(ctx context.Context, holderID uuid.UUID, seatIDs []uuid.UUID) {
	if len(seatIDs) == 0 {
		return
	}
	if _, err := s.ledger.Release(context.WithoutCancel(ctx), holderID, seatIDs); err != nil {
		// the entries still expire on their own
		logger.GetDefault().ErrorWithContext(ctx, "failed to roll back ledger claims", err, map[string]interface{}{
			"holder_id": holderID.String(),
			"seats":     len(seatIDs),
		})
	}
}

func (s *service) normalize(seatIDs []uuid.UUID) ([]uuid.UUID, error) {
	normalized := NormalizeSeatIDs(seatIDs)
	if len(normalized) == 0 {
		return nil, fmt.Errorf("%w: at least one seat is required", apperrors.ErrInvalidRequest)
	}
	if len(normalized) > s.maxSeats {
		return nil, fmt.Errorf("%w: at most %d seats per request", apperrors.ErrInvalidRequest, s.maxSeats)
	}
	if normalized[0] == uuid.Nil {
		return nil, fmt.Errorf("%w: nil seat id", apperrors.ErrInvalidRequest)
	}
	return normalized, nil
}

func (s *service) buildResult(req HoldRequest, inventory []seats.Seat, prices map[uuid.UUID]int64, expiresAt time.Time) *HoldResult {
	result := &HoldResult{
		EventID:   req.EventID,
		HolderID:  req.HolderID,
		Seats:     make([]HeldSeat, 0, len(inventory)),
		ExpiresAt: expiresAt,
	}
	for _, seat := range inventory {
		price := prices[seat.ID]
		result.Seats = append(result.Seats, HeldSeat{
			SeatID:     seat.ID,
			Section:    seat.Section,
			Row:        seat.Row,
			SeatNumber: seat.SeatNumber,
			Price:      price,
		})
		result.TotalPrice += price
	}
	if ttl := expiresAt.Sub(s.clock.Now()); ttl > 0 {
		result.TTLSeconds = int(ttl.Seconds())
	}
	return result
}

// NormalizeSeatIDs de-duplicates and sorts seat IDs into lock order
func NormalizeSeatIDs(seatIDs []uuid.UUID) []uuid.UUID {
	out := slices.Clone(seatIDs)
	sortUUIDs(out)
	return slices.Compact(out)
}

func sortUUIDs(ids []uuid.UUID) {
	slices.SortFunc(ids, func(a, b uuid.UUID) int {
		return bytes.Compare(a[:], b[:])
	})
}

func missingSeats(requested []uuid.UUID, found []seats.Seat) []uuid.UUID {
	present := make(map[uuid.UUID]struct{}, len(found))
	for _, seat := range found {
		present[seat.ID] = struct{}{}
	}
	var missing []uuid.UUID
	for _, id := range requested {
		if _, ok := present[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing
}
