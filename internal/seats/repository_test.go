package seats

import (
	"context"
	"database/sql/driver"
	"errors"
	"testing"
	"time"

	"seatbook/internal/shared/apperrors"
	"seatbook/internal/shared/database"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newMockRepository(t *testing.T) (Repository, *gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: conn}), &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Silent),
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)
	return NewRepository(db), db, mock
}

var seatColumns = []string{
	"id", "event_id", "section", "row_label", "seat_number", "price", "status",
	"booking_id", "reserved_by", "reserved_until", "version", "created_at", "updated_at",
}

func seatRows(seats ...Seat) *sqlmock.Rows {
	rows := sqlmock.NewRows(seatColumns)
	for _, s := range seats {
		rows.AddRow(
			s.ID.String(), s.EventID.String(), s.Section, s.Row, s.SeatNumber, s.Price, string(s.Status),
			nullableUUID(s.BookingID), nullableUUID(s.ReservedBy), nullableTime(s.ReservedUntil),
			s.Version, s.CreatedAt, s.UpdatedAt,
		)
	}
	return rows
}

func nullableUUID(id *uuid.UUID) driver.Value {
	if id == nil {
		return nil
	}
	return id.String()
}

func nullableTime(t *time.Time) driver.Value {
	if t == nil {
		return nil
	}
	return *t
}

type seatFixture struct {
	eventID uuid.UUID
	holder  uuid.UUID
	now     time.Time
	seats   []Seat
}

// two seats of one event, sorted by id the way the lock query returns them
func newSeatFixture() seatFixture {
	f := seatFixture{
		eventID: uuid.New(),
		holder:  uuid.New(),
		now:     time.Date(2026, 5, 1, 18, 0, 0, 0, time.UTC),
	}
	ids := []uuid.UUID{uuid.New(), uuid.New()}
	if ids[1].String() < ids[0].String() {
		ids[0], ids[1] = ids[1], ids[0]
	}
	for i, id := range ids {
		f.seats = append(f.seats, Seat{
			ID:         id,
			EventID:    f.eventID,
			Section:    "Stalls",
			Row:        "A",
			SeatNumber: string(rune('1' + i)),
			Price:      5000,
			Status:     StatusAvailable,
			Version:    1,
			CreatedAt:  f.now,
			UpdatedAt:  f.now,
		})
	}
	return f
}

func (f seatFixture) ids() []uuid.UUID {
	return []uuid.UUID{f.seats[0].ID, f.seats[1].ID}
}

func (f seatFixture) reservedBy(holder uuid.UUID, bookingID *uuid.UUID) []Seat {
	until := f.now.Add(10 * time.Minute)
	out := make([]Seat, len(f.seats))
	for i, s := range f.seats {
		s.Status = StatusReserved
		s.ReservedBy = &holder
		s.ReservedUntil = &until
		s.BookingID = bookingID
		out[i] = s
	}
	return out
}

const (
	lockByEvent = `SELECT \* FROM "seats" WHERE .*event_id = \$1 AND id IN \(\$2,\$3\).* ORDER BY id FOR UPDATE`
	lockByID    = `SELECT \* FROM "seats" WHERE .*id IN \(\$1,\$2\).* ORDER BY id FOR UPDATE`
)

func TestReserveSeats(t *testing.T) {
	ctx := context.Background()

	t.Run("locks in id order and reserves every seat", func(t *testing.T) {
		repo, _, mock := newMockRepository(t)
		f := newSeatFixture()

		mock.ExpectBegin()
		mock.ExpectQuery(lockByEvent).
			WithArgs(f.eventID, f.seats[0].ID, f.seats[1].ID).
			WillReturnRows(seatRows(f.seats...))
		mock.ExpectExec(`UPDATE "seats" SET .* WHERE id IN \(\$\d+,\$\d+\) AND status <> \$\d+`).
			WillReturnResult(sqlmock.NewResult(0, 2))
		mock.ExpectCommit()

		err := repo.ReserveSeats(ctx, f.eventID, f.holder, f.ids(), f.now.Add(10*time.Minute))
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("booked seat aborts before any update", func(t *testing.T) {
		repo, _, mock := newMockRepository(t)
		f := newSeatFixture()
		bookingID := uuid.New()
		f.seats[1].Status = StatusBooked
		f.seats[1].BookingID = &bookingID

		mock.ExpectBegin()
		mock.ExpectQuery(lockByEvent).WillReturnRows(seatRows(f.seats...))
		mock.ExpectRollback()

		err := repo.ReserveSeats(ctx, f.eventID, f.holder, f.ids(), f.now.Add(10*time.Minute))
		require.ErrorIs(t, err, apperrors.ErrSeatUnavailable)
		assert.Equal(t, []uuid.UUID{f.seats[1].ID}, apperrors.SeatIDs(err))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("seat claimed by another booking is contended", func(t *testing.T) {
		repo, _, mock := newMockRepository(t)
		f := newSeatFixture()
		bookingID := uuid.New()
		claimed := f.reservedBy(uuid.New(), &bookingID)
		f.seats[0] = claimed[0]

		mock.ExpectBegin()
		mock.ExpectQuery(lockByEvent).WillReturnRows(seatRows(f.seats...))
		mock.ExpectRollback()

		err := repo.ReserveSeats(ctx, f.eventID, f.holder, f.ids(), f.now.Add(10*time.Minute))
		require.ErrorIs(t, err, apperrors.ErrSeatContended)
		assert.Equal(t, []uuid.UUID{f.seats[0].ID}, apperrors.SeatIDs(err))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("seat of another event is rejected", func(t *testing.T) {
		repo, _, mock := newMockRepository(t)
		f := newSeatFixture()

		mock.ExpectBegin()
		mock.ExpectQuery(lockByEvent).WillReturnRows(seatRows(f.seats[0]))
		mock.ExpectRollback()

		err := repo.ReserveSeats(ctx, f.eventID, f.holder, f.ids(), f.now.Add(10*time.Minute))
		require.ErrorIs(t, err, apperrors.ErrInvalidRequest)
		assert.Equal(t, []uuid.UUID{f.seats[1].ID}, apperrors.SeatIDs(err))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("guarded update matching fewer rows rolls back", func(t *testing.T) {
		repo, _, mock := newMockRepository(t)
		f := newSeatFixture()

		mock.ExpectBegin()
		mock.ExpectQuery(lockByEvent).WillReturnRows(seatRows(f.seats...))
		mock.ExpectExec(`UPDATE "seats" SET .* AND status <> \$\d+`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectRollback()

		err := repo.ReserveSeats(ctx, f.eventID, f.holder, f.ids(), f.now.Add(10*time.Minute))
		assert.ErrorIs(t, err, apperrors.ErrInternalInconsistency)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestAttachBooking(t *testing.T) {
	ctx := context.Background()
	attach := `UPDATE "seats" SET .* WHERE id IN \(\$\d+,\$\d+\) AND status = \$\d+ AND reserved_by = \$\d+ AND booking_id IS NULL`

	t.Run("claims the holder's seats", func(t *testing.T) {
		repo, _, mock := newMockRepository(t)
		f := newSeatFixture()

		mock.ExpectBegin()
		mock.ExpectQuery(lockByID).
			WithArgs(f.seats[0].ID, f.seats[1].ID).
			WillReturnRows(seatRows(f.reservedBy(f.holder, nil)...))
		mock.ExpectExec(attach).WillReturnResult(sqlmock.NewResult(0, 2))
		mock.ExpectCommit()

		require.NoError(t, repo.AttachBooking(ctx, f.holder, uuid.New(), f.ids()))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("seat reserved by someone else", func(t *testing.T) {
		repo, _, mock := newMockRepository(t)
		f := newSeatFixture()
		rows := f.reservedBy(f.holder, nil)
		other := uuid.New()
		rows[1].ReservedBy = &other

		mock.ExpectBegin()
		mock.ExpectQuery(lockByID).WillReturnRows(seatRows(rows...))
		mock.ExpectRollback()

		err := repo.AttachBooking(ctx, f.holder, uuid.New(), f.ids())
		require.ErrorIs(t, err, apperrors.ErrHoldExpired)
		assert.Equal(t, []uuid.UUID{f.seats[1].ID}, apperrors.SeatIDs(err))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("seat already attached to a booking", func(t *testing.T) {
		repo, _, mock := newMockRepository(t)
		f := newSeatFixture()
		earlier := uuid.New()

		mock.ExpectBegin()
		mock.ExpectQuery(lockByID).WillReturnRows(seatRows(f.reservedBy(f.holder, &earlier)...))
		mock.ExpectRollback()

		err := repo.AttachBooking(ctx, f.holder, uuid.New(), f.ids())
		require.ErrorIs(t, err, apperrors.ErrHoldExpired)
		assert.ElementsMatch(t, f.ids(), apperrors.SeatIDs(err))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("guard rejects a row changed under the lock", func(t *testing.T) {
		repo, _, mock := newMockRepository(t)
		f := newSeatFixture()

		mock.ExpectBegin()
		mock.ExpectQuery(lockByID).WillReturnRows(seatRows(f.reservedBy(f.holder, nil)...))
		mock.ExpectExec(attach).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectRollback()

		err := repo.AttachBooking(ctx, f.holder, uuid.New(), f.ids())
		assert.ErrorIs(t, err, apperrors.ErrHoldExpired)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestMarkBooked(t *testing.T) {
	ctx := context.Background()
	markBooked := `UPDATE "seats" SET .* WHERE id IN \(\$\d+,\$\d+\) AND booking_id = \$\d+ AND status = \$\d+`

	t.Run("flips every seat of the booking", func(t *testing.T) {
		repo, _, mock := newMockRepository(t)
		f := newSeatFixture()
		bookingID := uuid.New()

		mock.ExpectBegin()
		mock.ExpectQuery(lockByID).WillReturnRows(seatRows(f.reservedBy(f.holder, &bookingID)...))
		mock.ExpectExec(markBooked).WillReturnResult(sqlmock.NewResult(0, 2))
		mock.ExpectCommit()

		require.NoError(t, repo.MarkBooked(ctx, bookingID, f.ids()))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("partial ownership is an inconsistency", func(t *testing.T) {
		repo, _, mock := newMockRepository(t)
		f := newSeatFixture()
		bookingID := uuid.New()

		mock.ExpectBegin()
		mock.ExpectQuery(lockByID).WillReturnRows(seatRows(f.reservedBy(f.holder, &bookingID)...))
		mock.ExpectExec(markBooked).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectRollback()

		err := repo.MarkBooked(ctx, bookingID, f.ids())
		assert.ErrorIs(t, err, apperrors.ErrInternalInconsistency)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("joins the caller's transaction", func(t *testing.T) {
		repo, db, mock := newMockRepository(t)
		f := newSeatFixture()
		bookingID := uuid.New()

		mock.ExpectBegin()
		mock.ExpectQuery(lockByID).WillReturnRows(seatRows(f.reservedBy(f.holder, &bookingID)...))
		mock.ExpectExec(markBooked).WillReturnResult(sqlmock.NewResult(0, 2))
		mock.ExpectExec(`UPDATE "bookings"`).WillReturnError(errors.New("constraint violated"))
		mock.ExpectRollback()

		err := database.WithTx(ctx, db, func(ctx context.Context) error {
			if err := repo.MarkBooked(ctx, bookingID, f.ids()); err != nil {
				return err
			}
			return database.Conn(ctx, db).Exec(`UPDATE "bookings" SET status = 'CONFIRMED'`).Error
		})
		require.Error(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestReleaseBookingSeats(t *testing.T) {
	repo, _, mock := newMockRepository(t)
	f := newSeatFixture()
	bookingID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "seats" WHERE booking_id = \$1 ORDER BY id FOR UPDATE`).
		WithArgs(bookingID).
		WillReturnRows(seatRows(f.reservedBy(f.holder, &bookingID)...))
	mock.ExpectExec(`UPDATE "seats" SET .*"booking_id"=.* WHERE booking_id = \$\d+`).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	released, err := repo.ReleaseBookingSeats(context.Background(), bookingID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), released)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResetExpiredReservations(t *testing.T) {
	ctx := context.Background()
	scan := `SELECT .*id.* FROM "seats" WHERE status = \$1 AND booking_id IS NULL AND reserved_until < \$2 ORDER BY id LIMIT .+ FOR UPDATE SKIP LOCKED`

	t.Run("clears lapsed holds", func(t *testing.T) {
		repo, _, mock := newMockRepository(t)
		f := newSeatFixture()

		mock.ExpectBegin()
		mock.ExpectQuery(scan).
			WithArgs(StatusReserved, f.now, sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(f.seats[0].ID.String()))
		mock.ExpectExec(`UPDATE "seats" SET .* WHERE id IN \(\$\d+\) AND status = \$\d+ AND booking_id IS NULL AND reserved_until < \$\d+`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		reset, err := repo.ResetExpiredReservations(ctx, f.now, 100)
		require.NoError(t, err)
		assert.Equal(t, int64(1), reset)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("nothing lapsed", func(t *testing.T) {
		repo, _, mock := newMockRepository(t)

		mock.ExpectBegin()
		mock.ExpectQuery(scan).WillReturnRows(sqlmock.NewRows([]string{"id"}))
		mock.ExpectCommit()

		reset, err := repo.ResetExpiredReservations(ctx, time.Now(), 100)
		require.NoError(t, err)
		assert.Zero(t, reset)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
