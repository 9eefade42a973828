package seats

import (
	"context"
	"fmt"
	"time"

	"seatbook/internal/shared/apperrors"
	"seatbook/internal/shared/database"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository is the seat inventory store. Every mutating call locks the
// affected rows in seat-ID order and checks the expected state in the UPDATE.
type Repository interface {
	CreateSeats(ctx context.Context, seats []Seat) error
	GetSeats(ctx context.Context, eventID uuid.UUID, seatIDs []uuid.UUID) ([]Seat, error)
	ListByEvent(ctx context.Context, eventID uuid.UUID) ([]Seat, error)

	// Holder side
	ReserveSeats(ctx context.Context, eventID, holderID uuid.UUID, seatIDs []uuid.UUID, until time.Time) error
	ReleaseReservations(ctx context.Context, holderID uuid.UUID, seatIDs []uuid.UUID) (int64, error)

	// Booking side
	AttachBooking(ctx context.Context, holderID, bookingID uuid.UUID, seatIDs []uuid.UUID) error
	MarkBooked(ctx context.Context, bookingID uuid.UUID, seatIDs []uuid.UUID) error
	ReleaseBookingSeats(ctx context.Context, bookingID uuid.UUID) (int64, error)

	// Sweeper
	ResetExpiredReservations(ctx context.Context, now time.Time, limit int) (int64, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

var clearedReservation = map[string]interface{}{
	"status":         StatusAvailable,
	"booking_id":     nil,
	"reserved_by":    nil,
	"reserved_until": nil,
	"version":        gorm.Expr("version + 1"),
}

func (r *repository) CreateSeats(ctx context.Context, seats []Seat) error {
	if len(seats) == 0 {
		return nil
	}
	if err := database.Conn(ctx, r.db).CreateInBatches(&seats, 500).Error; err != nil {
		return fmt.Errorf("failed to create seats: %w", err)
	}
	return nil
}

func (r *repository) GetSeats(ctx context.Context, eventID uuid.UUID, seatIDs []uuid.UUID) ([]Seat, error) {
	var seats []Seat
	err := database.Conn(ctx, r.db).
		Where("event_id = ? AND id IN ?", eventID, seatIDs).
		Order("id").
		Find(&seats).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get seats: %w", err)
	}
	return seats, nil
}

func (r *repository) ListByEvent(ctx context.Context, eventID uuid.UUID) ([]Seat, error) {
	var seats []Seat
	err := database.Conn(ctx, r.db).
		Where("event_id = ?", eventID).
		Order("section ASC, row_label ASC, seat_number ASC").
		Find(&seats).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list seats: %w", err)
	}
	return seats, nil
}

func (r *repository) ReserveSeats(ctx context.Context, eventID, holderID uuid.UUID, seatIDs []uuid.UUID, until time.Time) error {
	return database.WithTx(ctx, r.db, func(ctx context.Context) error {
		tx := database.Conn(ctx, r.db)

		locked, err := lockSeats(tx.Where("event_id = ? AND id IN ?", eventID, seatIDs))
		if err != nil {
			return err
		}
		if missing := missingSeats(seatIDs, locked); len(missing) > 0 {
			return apperrors.Seats(apperrors.ErrInvalidRequest, missing...)
		}

		var booked, claimed []uuid.UUID
		for _, seat := range locked {
			switch {
			case seat.IsBooked():
				booked = append(booked, seat.ID)
			case seat.IsClaimed() && !seat.ReservedFor(holderID):
				claimed = append(claimed, seat.ID)
			}
		}
		if len(booked) > 0 {
			return apperrors.Seats(apperrors.ErrSeatUnavailable, booked...)
		}
		if len(claimed) > 0 {
			return apperrors.Seats(apperrors.ErrSeatContended, claimed...)
		}

		// booking_id is left alone: a holder re-holding seats of its own pending booking keeps the claim
		result := tx.Model(&Seat{}).
			Where("id IN ? AND status <> ?", seatIDs, StatusBooked).
			Updates(map[string]interface{}{
				"status":         StatusReserved,
				"reserved_by":    holderID,
				"reserved_until": until,
				"version":        gorm.Expr("version + 1"),
			})
		if result.Error != nil {
			return fmt.Errorf("failed to reserve seats: %w", result.Error)
		}
		if result.RowsAffected != int64(len(seatIDs)) {
			return fmt.Errorf("%w: reserved %d of %d seats", apperrors.ErrInternalInconsistency, result.RowsAffected, len(seatIDs))
		}
		return nil
	})
}

func (r *repository) ReleaseReservations(ctx context.Context, holderID uuid.UUID, seatIDs []uuid.UUID) (int64, error) {
	var released int64
	err := database.WithTx(ctx, r.db, func(ctx context.Context) error {
		tx := database.Conn(ctx, r.db)
		if _, err := lockSeats(tx.Where("id IN ?", seatIDs)); err != nil {
			return err
		}
		result := tx.Model(&Seat{}).
			Where("id IN ? AND status = ? AND reserved_by = ? AND booking_id IS NULL", seatIDs, StatusReserved, holderID).
			Updates(clearedReservation)
		if result.Error != nil {
			return fmt.Errorf("failed to release reservations: %w", result.Error)
		}
		released = result.RowsAffected
		return nil
	})
	return released, err
}

func (r *repository) AttachBooking(ctx context.Context, holderID, bookingID uuid.UUID, seatIDs []uuid.UUID) error {
	return database.WithTx(ctx, r.db, func(ctx context.Context) error {
		tx := database.Conn(ctx, r.db)

		locked, err := lockSeats(tx.Where("id IN ?", seatIDs))
		if err != nil {
			return err
		}
		var lost []uuid.UUID
		for _, seat := range locked {
			if !seat.ReservedFor(holderID) || seat.IsClaimed() {
				lost = append(lost, seat.ID)
			}
		}
		lost = append(lost, missingSeats(seatIDs, locked)...)
		if len(lost) > 0 {
			return apperrors.Seats(apperrors.ErrHoldExpired, lost...)
		}

		result := tx.Model(&Seat{}).
			Where("id IN ? AND status = ? AND reserved_by = ? AND booking_id IS NULL", seatIDs, StatusReserved, holderID).
			Updates(map[string]interface{}{
				"booking_id": bookingID,
				"version":    gorm.Expr("version + 1"),
			})
		if result.Error != nil {
			return fmt.Errorf("failed to attach booking: %w", result.Error)
		}
		if result.RowsAffected != int64(len(seatIDs)) {
			return apperrors.Seats(apperrors.ErrHoldExpired, seatIDs...)
		}
		return nil
	})
}

func (r *repository) MarkBooked(ctx context.Context, bookingID uuid.UUID, seatIDs []uuid.UUID) error {
	return database.WithTx(ctx, r.db, func(ctx context.Context) error {
		tx := database.Conn(ctx, r.db)
		if _, err := lockSeats(tx.Where("id IN ?", seatIDs)); err != nil {
			return err
		}
		result := tx.Model(&Seat{}).
			Where("id IN ? AND booking_id = ? AND status = ?", seatIDs, bookingID, StatusReserved).
			Updates(map[string]interface{}{
				"status":         StatusBooked,
				"reserved_by":    nil,
				"reserved_until": nil,
				"version":        gorm.Expr("version + 1"),
			})
		if result.Error != nil {
			return fmt.Errorf("failed to mark seats booked: %w", result.Error)
		}
		if result.RowsAffected != int64(len(seatIDs)) {
			return fmt.Errorf("%w: booking %s owns %d of %d seats",
				apperrors.ErrInternalInconsistency, bookingID, result.RowsAffected, len(seatIDs))
		}
		return nil
	})
}

func (r *repository) ReleaseBookingSeats(ctx context.Context, bookingID uuid.UUID) (int64, error) {
	var released int64
	err := database.WithTx(ctx, r.db, func(ctx context.Context) error {
		tx := database.Conn(ctx, r.db)
		if _, err := lockSeats(tx.Where("booking_id = ?", bookingID)); err != nil {
			return err
		}
		result := tx.Model(&Seat{}).Where("booking_id = ?", bookingID).Updates(clearedReservation)
		if result.Error != nil {
			return fmt.Errorf("failed to release booking seats: %w", result.Error)
		}
		released = result.RowsAffected
		return nil
	})
	return released, err
}

func (r *repository) ResetExpiredReservations(ctx context.Context, now time.Time, limit int) (int64, error) {
	var reset int64
	err := database.WithTx(ctx, r.db, func(ctx context.Context) error {
		tx := database.Conn(ctx, r.db)

		var ids []uuid.UUID
		err := tx.Model(&Seat{}).
			Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("status = ? AND booking_id IS NULL AND reserved_until < ?", StatusReserved, now).
			Order("id").
			Limit(limit).
			Pluck("id", &ids).Error
		if err != nil {
			return fmt.Errorf("failed to find lapsed reservations: %w", err)
		}
		if len(ids) == 0 {
			return nil
		}

		result := tx.Model(&Seat{}).
			Where("id IN ? AND status = ? AND booking_id IS NULL AND reserved_until < ?", ids, StatusReserved, now).
			Updates(clearedReservation)
		if result.Error != nil {
			return fmt.Errorf("failed to reset lapsed reservations: %w", result.Error)
		}
		reset = result.RowsAffected
		return nil
	})
	return reset, err
}

// lockSeats takes row locks in seat-ID order so concurrent multi-seat writers cannot deadlock.
func lockSeats(query *gorm.DB) ([]Seat, error) {
	var seats []Seat
	err := query.
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Order("id").
		Find(&seats).Error
	if err != nil {
		return nil, fmt.Errorf("failed to lock seats: %w", err)
	}
	return seats, nil
}

func missingSeats(requested []uuid.UUID, found []Seat) []uuid.UUID {
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
