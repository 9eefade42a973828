package bookings

import (
	"context"
	"errors"
	"fmt"
	"time"

	"seatbook/internal/shared/apperrors"
	"seatbook/internal/shared/database"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Repository interface {
	// Create inserts the booking together with its seat lines
	Create(ctx context.Context, booking *Booking) error
	GetByID(ctx context.Context, id uuid.UUID) (*Booking, error)
	// TransitionStatus moves a booking from one status to another, failing with
	// apperrors.ErrStatusConflict when the row is no longer in from.
	TransitionStatus(ctx context.Context, id uuid.UUID, from, to Status, fields map[string]interface{}) error
	// ListStalePending returns PENDING bookings created before createdBefore, oldest first
	ListStalePending(ctx context.Context, createdBefore time.Time, limit int) ([]Booking, error)
	ListByUser(ctx context.Context, userID uuid.UUID, page, limit int) ([]Booking, int64, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, booking *Booking) error {
	if err := database.Conn(ctx, r.db).Create(booking).Error; err != nil {
		return fmt.Errorf("failed to create booking: %w", err)
	}
	return nil
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*Booking, error) {
	var booking Booking
	err := database.Conn(ctx, r.db).
		Preload("Seats", func(db *gorm.DB) *gorm.DB { return db.Order("seat_id") }).
		Where("id = ?", id).
		First(&booking).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrBookingNotFound
		}
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	return &booking, nil
}

func (r *repository) TransitionStatus(ctx context.Context, id uuid.UUID, from, to Status, fields map[string]interface{}) error {
	if !from.CanTransitionTo(to) {
		return fmt.Errorf("%w: booking cannot move from %s to %s", apperrors.ErrInvalidRequest, from, to)
	}

	updates := map[string]interface{}{"status": to}
	for k, v := range fields {
		updates[k] = v
	}

	result := database.Conn(ctx, r.db).
		Model(&Booking{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to update booking status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: booking %s is not %s", apperrors.ErrStatusConflict, id, from)
	}
	return nil
}

func (r *repository) ListStalePending(ctx context.Context, createdBefore time.Time, limit int) ([]Booking, error) {
	var bookings []Booking
	err := database.Conn(ctx, r.db).
		Preload("Seats").
		Where("status = ? AND created_at < ?", StatusPending, createdBefore).
		Order("created_at ASC").
		Limit(limit).
		Find(&bookings).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list stale bookings: %w", err)
	}
	return bookings, nil
}

func (r *repository) ListByUser(ctx context.Context, userID uuid.UUID, page, limit int) ([]Booking, int64, error) {
	var bookings []Booking
	var totalCount int64

	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 10
	}

	baseQuery := database.Conn(ctx, r.db).
		Model(&Booking{}).
		Where("user_id = ?", userID)

	if err := baseQuery.Count(&totalCount).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count bookings: %w", err)
	}

	offset := (page - 1) * limit
	err := baseQuery.
		Preload("Seats").
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&bookings).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list bookings: %w", err)
	}

	return bookings, totalCount, nil
}
