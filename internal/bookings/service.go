package bookings

import (
	"context"
	"errors"
	"fmt"
	"time"

	"seatbook/internal/notifications"
	"seatbook/internal/payments"
	"seatbook/internal/reservations"
	"seatbook/internal/seats"
	"seatbook/internal/shared/apperrors"
	"seatbook/internal/shared/config"
	"seatbook/internal/shared/database"
	"seatbook/pkg/clock"
	"seatbook/pkg/logger"

	"github.com/google/uuid"
)

// HoldService is the part of the reservation coordinator the orchestrator drives
type HoldService interface {
	ValidateHold(ctx context.Context, req reservations.HoldRequest) (*reservations.HoldResult, error)
	ReleaseLedger(ctx context.Context, holderID uuid.UUID, seatIDs []uuid.UUID) error
}

// SeatStore is the booking side of the seat inventory
type SeatStore interface {
	AttachBooking(ctx context.Context, holderID, bookingID uuid.UUID, seatIDs []uuid.UUID) error
	MarkBooked(ctx context.Context, bookingID uuid.UUID, seatIDs []uuid.UUID) error
	ReleaseBookingSeats(ctx context.Context, bookingID uuid.UUID) (int64, error)
	ResetExpiredReservations(ctx context.Context, now time.Time, limit int) (int64, error)
}

type Service interface {
	CreateBookingWithPayment(ctx context.Context, req CreateBookingInput) (*BookingDetails, error)
	InitiateCardPayment(ctx context.Context, req CardOrderInput) (*CardOrder, error)
	CancelBooking(ctx context.Context, bookingID, userID uuid.UUID) (*BookingDetails, error)
	GetBookingStatus(ctx context.Context, bookingID, userID uuid.UUID) (*BookingDetails, error)
	ListUserBookings(ctx context.Context, userID uuid.UUID, page, limit int) ([]Booking, int64, error)

	// ReconcileBooking settles a booking that still claims seats; true when seats were freed.
	ReconcileBooking(ctx context.Context, bookingID uuid.UUID) (bool, error)
	RecoverStaleBookings(ctx context.Context) (int, error)
	ResetLapsedReservations(ctx context.Context) (int64, error)
	RetryRefunds(ctx context.Context) (int, error)
}

type CreateBookingInput struct {
	UserID  uuid.UUID
	EventID uuid.UUID
	SeatIDs []uuid.UUID
	Intent  payments.Intent
}

type CardOrderInput struct {
	UserID  uuid.UUID
	EventID uuid.UUID
	SeatIDs []uuid.UUID
}

// BookingDetails is a booking with its payment, as returned to clients
type BookingDetails struct {
	Booking *Booking
	Payment *payments.Payment
}

type CardOrder struct {
	OrderID   string
	Amount    int64
	Currency  string
	ExpiresAt time.Time
	Seats     []reservations.HeldSeat
}

type service struct {
	repo     Repository
	holds    HoldService
	seats    SeatStore
	payments payments.Service
	notifier notifications.Notifier
	tx       database.Transactor
	clock    clock.Clock
	cfg      config.BookingConfig
}

func NewService(
	repo Repository,
	holds HoldService,
	seatStore SeatStore,
	paymentService payments.Service,
	notifier notifications.Notifier,
	tx database.Transactor,
	clk clock.Clock,
	cfg config.BookingConfig,
) Service {
	if notifier == nil {
		notifier = notifications.NoopNotifier{}
	}
	return &service{
		repo:     repo,
		holds:    holds,
		seats:    seatStore,
		payments: paymentService,
		notifier: notifier,
		tx:       tx,
		clock:    clk,
		cfg:      cfg,
	}
}

// CreateBookingWithPayment runs the commit saga:
// holds validated -> booking PENDING -> payment attempted -> CONFIRMED, or compensated to CANCELLED.
func (s *service) CreateBookingWithPayment(ctx context.Context, req CreateBookingInput) (*BookingDetails, error) {
	if !req.Intent.Method.IsValid() {
		return nil, fmt.Errorf("%w: unsupported payment method %q", apperrors.ErrInvalidRequest, req.Intent.Method)
	}

	// Step 1: the user must still own every seat
	hold, err := s.holds.ValidateHold(ctx, reservations.HoldRequest{
		EventID:  req.EventID,
		HolderID: req.UserID,
		SeatIDs:  req.SeatIDs,
	})
	if err != nil {
		return nil, err
	}
	if hold.TotalPrice < 0 {
		return nil, fmt.Errorf("%w: booking total must not be negative", apperrors.ErrInvalidRequest)
	}

	// Step 2: persist the PENDING booking, its payment and the durable seat claim together
	booking, payment, err := s.openBooking(ctx, req, hold)
	if err != nil {
		return nil, err
	}

	// Step 3: charge, bounded by the payment timeout; no seat row is locked here.
	// A free booking has nothing to charge.
	var paid *payments.Payment
	if payment != nil {
		paid, err = s.charge(ctx, payment.ID, req.Intent)
		if err != nil {
			s.compensate(ctx, booking, err.Error())
			return nil, err
		}
	}

	// Step 4: flip seats and booking in one transaction
	now := s.clock.Now()
	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		if err := s.repo.TransitionStatus(ctx, booking.ID, StatusPending, StatusConfirmed, map[string]interface{}{
			"confirmed_at": now,
		}); err != nil {
			return err
		}
		return s.seats.MarkBooked(ctx, booking.ID, booking.SeatIDs())
	})
	if err != nil {
		reason := fmt.Sprintf("commit failed after payment: %v", err)
		s.compensate(ctx, booking, reason)
		if errors.Is(err, apperrors.ErrStatusConflict) || errors.Is(err, apperrors.ErrInternalInconsistency) {
			return nil, fmt.Errorf("%w: booking %s could not be confirmed, payment refunded", apperrors.ErrInternalInconsistency, booking.ID)
		}
		return nil, err
	}

	booking.Status = StatusConfirmed
	booking.ConfirmedAt = &now

	s.releaseLedger(ctx, booking)
	s.notify(ctx, booking, notifications.NotificationTypeBookingConfirmed, "")
	logger.GetDefault().LogBookingConfirmed(ctx, booking.ID.String(), booking.EventID.String(), booking.UserID.String(), booking.TotalAmount)

	return &BookingDetails{Booking: booking, Payment: paid}, nil
}

func (s *service) openBooking(ctx context.Context, req CreateBookingInput, hold *reservations.HoldResult) (*Booking, *payments.Payment, error) {
	now := s.clock.Now()
	bookingRef, err := generateBookingReference(now)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate booking reference: %w", err)
	}

	booking := &Booking{
		ID:          uuid.New(),
		BookingRef:  bookingRef,
		UserID:      req.UserID,
		EventID:     req.EventID,
		TotalAmount: hold.TotalPrice,
		Currency:    s.cfg.Currency,
		Status:      StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
		Seats:       make([]BookingSeat, 0, len(hold.Seats)),
	}
	for _, seat := range hold.Seats {
		booking.Seats = append(booking.Seats, BookingSeat{
			ID:         uuid.New(),
			BookingID:  booking.ID,
			SeatID:     seat.SeatID,
			Section:    seat.Section,
			Row:        seat.Row,
			SeatNumber: seat.SeatNumber,
			Price:      seat.Price,
			CreatedAt:  now,
		})
	}

	var payment *payments.Payment
	if booking.TotalAmount > 0 {
		payment = &payments.Payment{
			ID:        uuid.New(),
			BookingID: booking.ID,
			UserID:    req.UserID,
			Method:    req.Intent.Method,
			Amount:    booking.TotalAmount,
			Currency:  booking.Currency,
			CreatedAt: now,
			UpdatedAt: now,
		}
	}

	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, booking); err != nil {
			return err
		}
		if err := s.seats.AttachBooking(ctx, req.UserID, booking.ID, booking.SeatIDs()); err != nil {
			return err
		}
		if payment == nil {
			return nil
		}
		return s.payments.Open(ctx, payment)
	})
	if err != nil {
		return nil, nil, err
	}
	return booking, payment, nil
}

func (s *service) charge(ctx context.Context, paymentID uuid.UUID, intent payments.Intent) (*payments.Payment, error) {
	chargeCtx, cancel := context.WithTimeout(ctx, s.cfg.PaymentTimeout)
	defer cancel()

	paid, err := s.payments.Charge(chargeCtx, paymentID, intent)
	if err == nil {
		return paid, nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(chargeCtx.Err(), context.DeadlineExceeded) {
		return nil, fmt.Errorf("%w: payment timed out after %s", apperrors.ErrPaymentDeclined, s.cfg.PaymentTimeout)
	}
	return nil, err
}

// compensate cancels a PENDING booking and undoes everything it holds. Safe to repeat.
func (s *service) compensate(ctx context.Context, booking *Booking, reason string) {
	if err := s.cancel(ctx, booking, StatusPending, reason); err != nil {
		logger.GetDefault().ErrorWithContext(ctx, "booking compensation failed", err, map[string]interface{}{
			"booking_id": booking.ID.String(),
			"reason":     reason,
		})
	}
}

// cancel moves the booking from `from` to CANCELLED, frees its seats, settles its payment
// and drops its ledger entries. A booking already CANCELLED is settled again without error.
func (s *service) cancel(ctx context.Context, booking *Booking, from Status, reason string) error {
	ctx = context.WithoutCancel(ctx)
	now := s.clock.Now()

	var released int64
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		err := s.repo.TransitionStatus(ctx, booking.ID, from, StatusCancelled, map[string]interface{}{
			"failure_reason": reason,
			"cancelled_at":   now,
		})
		if errors.Is(err, apperrors.ErrStatusConflict) {
			current, getErr := s.repo.GetByID(ctx, booking.ID)
			if getErr != nil {
				return getErr
			}
			if !current.IsCancelled() {
				return err
			}
		} else if err != nil {
			return err
		}

		released, err = s.seats.ReleaseBookingSeats(ctx, booking.ID)
		if err != nil {
			return err
		}

		payment, err := s.payments.GetByBookingID(ctx, booking.ID)
		if errors.Is(err, apperrors.ErrPaymentNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return s.payments.MarkFailed(ctx, payment.ID, reason)
	})
	if err != nil {
		return err
	}

	booking.Status = StatusCancelled
	booking.FailureReason = reason
	booking.CancelledAt = &now

	refunded := s.refund(ctx, booking)
	s.releaseLedger(ctx, booking)

	logger.GetDefault().LogCompensation(ctx, booking.ID.String(), reason, released, refunded)
	s.notify(ctx, booking, notifications.NotificationTypeBookingCancelled, reason)
	return nil
}

// refund returns captured money for a cancelled booking. Failures are left to RetryRefunds.
func (s *service) refund(ctx context.Context, booking *Booking) bool {
	payment, err := s.payments.GetByBookingID(ctx, booking.ID)
	if err != nil || !payment.IsCompleted() {
		return false
	}

	refunded, err := s.payments.Refund(ctx, payment.ID)
	if err != nil {
		logger.GetDefault().ErrorWithContext(ctx, "refund failed, will retry", err, map[string]interface{}{
			"booking_id": booking.ID.String(),
			"payment_id": payment.ID.String(),
		})
		return false
	}
	return refunded.IsRefunded()
}

func (s *service) releaseLedger(ctx context.Context, booking *Booking) {
	if err := s.holds.ReleaseLedger(context.WithoutCancel(ctx), booking.UserID, booking.SeatIDs()); err != nil {
		// entries lapse on their own; the durable rows are authoritative
		logger.GetDefault().WarnWithContext(ctx, "failed to release ledger entries", map[string]interface{}{
			"booking_id": booking.ID.String(),
			"error":      err.Error(),
		})
	}
}

// notify publishes in the background; a lost notification never affects the booking
func (s *service) notify(ctx context.Context, booking *Booking, kind notifications.NotificationType, reason string) {
	notification := &notifications.BookingNotification{
		ID:         uuid.New(),
		Type:       kind,
		UserID:     booking.UserID,
		BookingID:  booking.ID,
		BookingRef: booking.BookingRef,
		EventID:    booking.EventID,
		SeatIDs:    booking.SeatIDs(),
		Amount:     booking.TotalAmount,
		Currency:   booking.Currency,
		Reason:     reason,
		OccurredAt: s.clock.Now(),
	}

	go func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := s.notifier.Publish(ctx, notification); err != nil {
			logger.GetDefault().ErrorWithContext(ctx, "failed to publish booking notification", err, map[string]interface{}{
				"booking_id": booking.ID.String(),
				"type":       string(kind),
			})
		}
	}(context.WithoutCancel(ctx))
}

func (s *service) InitiateCardPayment(ctx context.Context, req CardOrderInput) (*CardOrder, error) {
	hold, err := s.holds.ValidateHold(ctx, reservations.HoldRequest{
		EventID:  req.EventID,
		HolderID: req.UserID,
		SeatIDs:  req.SeatIDs,
	})
	if err != nil {
		return nil, err
	}
	if hold.TotalPrice <= 0 {
		return nil, fmt.Errorf("%w: order total must be positive", apperrors.ErrInvalidRequest)
	}

	receipt := "hold_" + req.UserID.String()[:8] + "_" + fmt.Sprint(s.clock.Now().Unix())
	order, err := s.payments.CreateCardOrder(ctx, payments.CardOrderRequest{
		UserID:   req.UserID,
		EventID:  req.EventID,
		Amount:   hold.TotalPrice,
		Currency: s.cfg.Currency,
		Receipt:  receipt,
	})
	if err != nil {
		return nil, err
	}

	return &CardOrder{
		OrderID:   order.ProviderOrderID,
		Amount:    order.Amount,
		Currency:  order.Currency,
		ExpiresAt: hold.ExpiresAt,
		Seats:     hold.Seats,
	}, nil
}

func (s *service) CancelBooking(ctx context.Context, bookingID, userID uuid.UUID) (*BookingDetails, error) {
	booking, err := s.ownedBooking(ctx, bookingID, userID)
	if err != nil {
		return nil, err
	}

	if !booking.Status.IsTerminal() {
		reason := "cancelled by user"
		if err := s.cancel(ctx, booking, booking.Status, reason); err != nil {
			return nil, fmt.Errorf("failed to cancel booking: %w", err)
		}
		logger.GetDefault().LogBookingCancelled(ctx, booking.ID.String(), userID.String(), reason)
	}

	return s.details(ctx, booking.ID)
}

func (s *service) GetBookingStatus(ctx context.Context, bookingID, userID uuid.UUID) (*BookingDetails, error) {
	booking, err := s.ownedBooking(ctx, bookingID, userID)
	if err != nil {
		return nil, err
	}

	if booking.IsStale(s.clock.Now(), s.cfg.RecoveryGrace) {
		s.compensate(ctx, booking, "booking abandoned before payment completed")
	}

	return s.details(ctx, booking.ID)
}

func (s *service) ListUserBookings(ctx context.Context, userID uuid.UUID, page, limit int) ([]Booking, int64, error) {
	return s.repo.ListByUser(ctx, userID, page, limit)
}

func (s *service) ReconcileBooking(ctx context.Context, bookingID uuid.UUID) (bool, error) {
	booking, err := s.repo.GetByID(ctx, bookingID)
	if errors.Is(err, apperrors.ErrBookingNotFound) {
		return s.releaseOrphanedSeats(ctx, bookingID, "booking missing")
	}
	if err != nil {
		return false, err
	}

	switch booking.Status {
	case StatusConfirmed:
		return false, nil
	case StatusPending:
		if !booking.IsStale(s.clock.Now(), s.cfg.RecoveryGrace) {
			return false, nil
		}
		if err := s.cancel(ctx, booking, StatusPending, "booking abandoned before payment completed"); err != nil {
			return false, err
		}
		return true, nil
	default:
		return s.releaseOrphanedSeats(ctx, bookingID, "booking cancelled")
	}
}

// releaseOrphanedSeats frees seats still claimed by a booking that no longer owns them
func (s *service) releaseOrphanedSeats(ctx context.Context, bookingID uuid.UUID, why string) (bool, error) {
	released, err := s.seats.ReleaseBookingSeats(ctx, bookingID)
	if err != nil {
		return false, err
	}
	if released > 0 {
		logger.GetDefault().ErrorWithContext(ctx, "healed seats claimed by a dead booking", apperrors.ErrInternalInconsistency, map[string]interface{}{
			"booking_id": bookingID.String(),
			"why":        why,
			"released":   released,
		})
	}
	return released > 0, nil
}

func (s *service) RecoverStaleBookings(ctx context.Context) (int, error) {
	stale, err := s.repo.ListStalePending(ctx, s.clock.Now().Add(-s.cfg.RecoveryGrace), s.cfg.SweepBatch)
	if err != nil {
		return 0, err
	}

	recovered := 0
	for i := range stale {
		if err := s.cancel(ctx, &stale[i], StatusPending, "booking abandoned before payment completed"); err != nil {
			logger.GetDefault().ErrorWithContext(ctx, "failed to recover stale booking", err, map[string]interface{}{
				"booking_id": stale[i].ID.String(),
			})
			continue
		}
		recovered++
	}
	return recovered, nil
}

func (s *service) ResetLapsedReservations(ctx context.Context) (int64, error) {
	return s.seats.ResetExpiredReservations(ctx, s.clock.Now(), s.cfg.SweepBatch)
}

func (s *service) RetryRefunds(ctx context.Context) (int, error) {
	pending, err := s.payments.ListRefundable(ctx, s.cfg.SweepBatch)
	if err != nil {
		return 0, err
	}

	refunded := 0
	for _, payment := range pending {
		result, err := s.payments.Refund(ctx, payment.ID)
		if err != nil {
			logger.GetDefault().ErrorWithContext(ctx, "refund retry failed", err, map[string]interface{}{
				"payment_id": payment.ID.String(),
				"booking_id": payment.BookingID.String(),
			})
			continue
		}
		if result.IsRefunded() {
			refunded++
		}
	}
	return refunded, nil
}

func (s *service) ownedBooking(ctx context.Context, bookingID, userID uuid.UUID) (*Booking, error) {
	booking, err := s.repo.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.UserID != userID {
		return nil, apperrors.ErrNotBookingOwner
	}
	return booking, nil
}

func (s *service) details(ctx context.Context, bookingID uuid.UUID) (*BookingDetails, error) {
	booking, err := s.repo.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	payment, err := s.payments.GetByBookingID(ctx, bookingID)
	if err != nil && !errors.Is(err, apperrors.ErrPaymentNotFound) {
		return nil, err
	}
	return &BookingDetails{Booking: booking, Payment: payment}, nil
}

var _ SeatStore = (seats.Repository)(nil)
