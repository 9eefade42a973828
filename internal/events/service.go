package events

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"seatbook/internal/seats"
	"seatbook/internal/shared/apperrors"
	"seatbook/internal/shared/constants"
	"seatbook/internal/shared/database"
	"seatbook/pkg/cache"
	"seatbook/pkg/clock"
	"seatbook/pkg/logger"

	"github.com/google/uuid"
)

// SeatWriter creates the seat inventory of a new event
type SeatWriter interface {
	CreateSeats(ctx context.Context, seats []seats.Seat) error
}

type Service interface {
	CreateEvent(ctx context.Context, req CreateEventRequest) (*EventResponse, error)
	GetEventByID(ctx context.Context, id uuid.UUID) (*EventResponse, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status EventStatus) error

	// EnsureBookable fails unless the event exists, is published and has not started
	EnsureBookable(ctx context.Context, eventID uuid.UUID) error
	// SeatPrices returns the catalog price of each requested seat
	SeatPrices(ctx context.Context, eventID uuid.UUID, seatIDs []uuid.UUID) (map[uuid.UUID]int64, error)
}

type service struct {
	repo  Repository
	seats SeatWriter
	cache cache.Service
	tx    database.Transactor
	clock clock.Clock
}

func NewService(repo Repository, seatWriter SeatWriter, cacheService cache.Service, tx database.Transactor, clk clock.Clock) Service {
	return &service{
		repo:  repo,
		seats: seatWriter,
		cache: cacheService,
		tx:    tx,
		clock: clk,
	}
}

func (s *service) CreateEvent(ctx context.Context, req CreateEventRequest) (*EventResponse, error) {
	if !req.StartsAt.After(s.clock.Now()) {
		return nil, fmt.Errorf("%w: event must start in the future", apperrors.ErrInvalidRequest)
	}

	event := &Event{
		ID:          uuid.New(),
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		Venue:       strings.TrimSpace(req.Venue),
		StartsAt:    req.StartsAt.UTC(),
		Currency:    strings.ToUpper(req.Currency),
		Status:      EventStatusDraft,
	}
	if req.Publish {
		event.Status = EventStatusPublished
	}

	inventory, err := buildSeats(event.ID, req.Seating)
	if err != nil {
		return nil, err
	}

	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, event); err != nil {
			return err
		}
		return s.seats.CreateSeats(ctx, inventory)
	})
	if err != nil {
		return nil, err
	}

	logger.GetDefault().InfoWithContext(ctx, "event created", map[string]interface{}{
		"event_id": event.ID.String(),
		"seats":    len(inventory),
		"status":   string(event.Status),
	})

	resp := event.ToResponse()
	resp.TotalSeats = int64(len(inventory))
	return &resp, nil
}

// buildSeats expands the seating plan; positions must be unique within the event
func buildSeats(eventID uuid.UUID, seating []SeatGrid) ([]seats.Seat, error) {
	seen := make(map[string]struct{})
	var inventory []seats.Seat
	for _, grid := range seating {
		if grid.Price < 0 {
			return nil, fmt.Errorf("%w: negative price in section %s", apperrors.ErrInvalidRequest, grid.Section)
		}
		for _, row := range grid.Rows {
			for n := 1; n <= grid.SeatsPerRow; n++ {
				seat := seats.Seat{
					ID:         uuid.New(),
					EventID:    eventID,
					Section:    grid.Section,
					Row:        row,
					SeatNumber: strconv.Itoa(n),
					Price:      grid.Price,
					Status:     seats.StatusAvailable,
					Version:    1,
				}
				label := seat.Label()
				if _, dup := seen[label]; dup {
					return nil, fmt.Errorf("%w: seat %s appears twice", apperrors.ErrInvalidRequest, label)
				}
				seen[label] = struct{}{}
				inventory = append(inventory, seat)
			}
		}
	}
	return inventory, nil
}

func (s *service) GetEventByID(ctx context.Context, id uuid.UUID) (*EventResponse, error) {
	event, err := s.cachedEvent(ctx, id)
	if err != nil {
		return nil, err
	}

	resp := event.ToResponse()
	resp.TotalSeats, resp.BookedSeats, err = s.repo.SeatCounts(ctx, id)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

func (s *service) UpdateStatus(ctx context.Context, id uuid.UUID, status EventStatus) error {
	if !status.IsValid() {
		return fmt.Errorf("%w: unknown event status %q", apperrors.ErrInvalidRequest, status)
	}
	if err := s.repo.UpdateStatus(ctx, id, status); err != nil {
		return err
	}
	s.invalidateEventCache(ctx, id)
	return nil
}

func (s *service) EnsureBookable(ctx context.Context, eventID uuid.UUID) error {
	event, err := s.cachedEvent(ctx, eventID)
	if err != nil {
		return err
	}
	if !event.Status.IsBookable() {
		return fmt.Errorf("%w: event is %s", apperrors.ErrEventNotBookable, event.Status)
	}
	if !s.clock.Now().Before(event.StartsAt) {
		return fmt.Errorf("%w: event has already started", apperrors.ErrEventNotBookable)
	}
	return nil
}

func (s *service) SeatPrices(ctx context.Context, eventID uuid.UUID, seatIDs []uuid.UUID) (map[uuid.UUID]int64, error) {
	var all map[uuid.UUID]int64
	err := s.cache.GetOrSet(ctx, constants.BuildEventPricesKey(eventID), constants.TTL_EVENT_PRICES, &all,
		func(ctx context.Context) (interface{}, error) {
			return s.repo.SeatPrices(ctx, eventID)
		})
	if err != nil {
		return nil, err
	}

	prices := make(map[uuid.UUID]int64, len(seatIDs))
	var unknown []uuid.UUID
	for _, seatID := range seatIDs {
		price, ok := all[seatID]
		if !ok {
			unknown = append(unknown, seatID)
			continue
		}
		prices[seatID] = price
	}
	if len(unknown) > 0 {
		return nil, apperrors.Seats(apperrors.ErrInvalidRequest, unknown...)
	}
	return prices, nil
}

func (s *service) cachedEvent(ctx context.Context, id uuid.UUID) (*Event, error) {
	var event Event
	err := s.cache.GetOrSet(ctx, constants.BuildEventDetailKey(id), constants.TTL_EVENT_DETAIL, &event,
		func(ctx context.Context) (interface{}, error) {
			return s.repo.GetByID(ctx, id)
		})
	if err != nil {
		return nil, err
	}
	return &event, nil
}

func (s *service) invalidateEventCache(ctx context.Context, eventID uuid.UUID) {
	if err := s.cache.DeletePattern(ctx, constants.BuildEventInvalidationPattern(eventID)); err != nil {
		logger.GetDefault().WarnWithContext(ctx, "failed to invalidate event cache", map[string]interface{}{
			"event_id": eventID.String(),
			"error":    err.Error(),
		})
	}
}
