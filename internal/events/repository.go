package events

import (
	"context"
	"errors"
	"fmt"

	"seatbook/internal/seats"
	"seatbook/internal/shared/apperrors"
	"seatbook/internal/shared/database"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Repository interface {
	Create(ctx context.Context, event *Event) error
	GetByID(ctx context.Context, id uuid.UUID) (*Event, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status EventStatus) error
	// SeatPrices returns the price of every seat of the event
	SeatPrices(ctx context.Context, eventID uuid.UUID) (map[uuid.UUID]int64, error)
	SeatCounts(ctx context.Context, eventID uuid.UUID) (total, booked int64, err error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, event *Event) error {
	if err := database.Conn(ctx, r.db).Create(event).Error; err != nil {
		return fmt.Errorf("failed to create event: %w", err)
	}
	return nil
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*Event, error) {
	var event Event
	err := database.Conn(ctx, r.db).Where("id = ?", id).First(&event).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrEventNotFound
		}
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	return &event, nil
}

func (r *repository) UpdateStatus(ctx context.Context, id uuid.UUID, status EventStatus) error {
	result := database.Conn(ctx, r.db).
		Model(&Event{}).
		Where("id = ?", id).
		Update("status", status)
	if result.Error != nil {
		return fmt.Errorf("failed to update event status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrEventNotFound
	}
	return nil
}

func (r *repository) SeatPrices(ctx context.Context, eventID uuid.UUID) (map[uuid.UUID]int64, error) {
	var rows []struct {
		ID    uuid.UUID
		Price int64
	}
	err := database.Conn(ctx, r.db).
		Model(&seats.Seat{}).
		Select("id, price").
		Where("event_id = ?", eventID).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load seat prices: %w", err)
	}

	prices := make(map[uuid.UUID]int64, len(rows))
	for _, row := range rows {
		prices[row.ID] = row.Price
	}
	return prices, nil
}

func (r *repository) SeatCounts(ctx context.Context, eventID uuid.UUID) (int64, int64, error) {
	var counts struct {
		Total  int64
		Booked int64
	}
	err := database.Conn(ctx, r.db).
		Model(&seats.Seat{}).
		Select("COUNT(*) AS total, COUNT(*) FILTER (WHERE status = ?) AS booked", seats.StatusBooked).
		Where("event_id = ?", eventID).
		Scan(&counts).Error
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count seats: %w", err)
	}
	return counts.Total, counts.Booked, nil
}
