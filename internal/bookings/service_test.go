package bookings_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"seatbook/internal/bookings"
	"seatbook/internal/notifications"
	"seatbook/internal/payments"
	"seatbook/internal/reservations"
	"seatbook/internal/seats"
	"seatbook/internal/shared/apperrors"
	"seatbook/internal/shared/config"
	"seatbook/internal/testutil"
	"seatbook/pkg/clock"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type saga struct {
	mem      *testutil.Memory
	ledger   *testutil.MemoryLedger
	gateway  *testutil.Gateway
	notifier *testutil.Notifier
	clock    *clock.Manual
	holds    reservations.Service
	svc      bookings.Service
	eventID  uuid.UUID
	seatIDs  []uuid.UUID
}

func newSaga(t *testing.T, tweak ...func(*config.BookingConfig)) *saga {
	t.Helper()

	cfg := config.BookingConfig{
		PaymentTimeout: 2 * time.Second,
		ImplicitHold:   true,
		RecoveryGrace:  15 * time.Minute,
		SweepInterval:  time.Minute,
		SweepBatch:     100,
		MaxSeats:       10,
		Currency:       "INR",
	}
	for _, fn := range tweak {
		fn(&cfg)
	}

	s := &saga{
		mem:      testutil.NewMemory(),
		ledger:   testutil.NewMemoryLedger(),
		gateway:  testutil.NewGateway(),
		notifier: &testutil.Notifier{},
		clock:    clock.NewManual(time.Date(2026, 5, 1, 18, 0, 0, 0, time.UTC)),
		eventID:  uuid.New(),
	}
	s.seatIDs = s.mem.AddEventSeats(s.eventID, []string{"A"}, 4, 5000)

	s.holds = reservations.NewService(s.ledger, s.mem.Seats(), testutil.NewCatalog(s.mem), s.clock,
		reservations.WithHoldTTL(10*time.Minute),
		reservations.WithMaxSeats(cfg.MaxSeats),
		reservations.WithImplicitHold(cfg.ImplicitHold),
	)
	paymentService := payments.NewService(s.mem.Payments(), s.mem.Wallets(), s.gateway, s.mem, s.clock)
	s.svc = bookings.NewService(s.mem.Bookings(), s.holds, s.mem.Seats(), paymentService, s.notifier, s.mem, s.clock, cfg)
	s.holds.SetReconciler(s.svc)
	return s
}

func (s *saga) hold(t *testing.T, userID uuid.UUID, seatIDs ...uuid.UUID) {
	t.Helper()
	_, err := s.holds.RequestHold(context.Background(), reservations.HoldRequest{EventID: s.eventID, HolderID: userID, SeatIDs: seatIDs})
	require.NoError(t, err)
}

func (s *saga) book(userID uuid.UUID, intent payments.Intent, seatIDs ...uuid.UUID) (*bookings.BookingDetails, error) {
	return s.svc.CreateBookingWithPayment(context.Background(), bookings.CreateBookingInput{
		UserID:  userID,
		EventID: s.eventID,
		SeatIDs: seatIDs,
		Intent:  intent,
	})
}

func (s *saga) notified(t *testing.T, kind notifications.NotificationType) {
	t.Helper()
	assert.Eventually(t, func() bool {
		for _, n := range s.notifier.Sent() {
			if n.Type == kind {
				return true
			}
		}
		return false
	}, time.Second, 10*time.Millisecond)
}

func (s *saga) assertSeatsAvailable(t *testing.T, seatIDs ...uuid.UUID) {
	t.Helper()
	for _, id := range seatIDs {
		seat := s.mem.Seat(id)
		assert.Equal(t, seats.StatusAvailable, seat.Status, "seat %s", id)
		assert.Nil(t, seat.BookingID)
	}
	live, err := s.ledger.Lookup(context.Background(), seatIDs, s.clock.Now())
	require.NoError(t, err)
	assert.Empty(t, live)
}

var wallet = payments.Intent{Method: payments.MethodWallet}

func card(orderID, paymentID string) payments.Intent {
	return payments.Intent{Method: payments.MethodCard, OrderID: orderID, PaymentID: paymentID, Signature: "sig"}
}

// cardOrder opens a gateway order for the seats the user holds
func (s *saga) cardOrder(t *testing.T, userID uuid.UUID, seatIDs ...uuid.UUID) string {
	t.Helper()
	order, err := s.svc.InitiateCardPayment(context.Background(), bookings.CardOrderInput{UserID: userID, EventID: s.eventID, SeatIDs: seatIDs})
	require.NoError(t, err)
	return order.OrderID
}

func TestCreateBooking_WalletHappyPath(t *testing.T) {
	s := newSaga(t)
	alice := uuid.New()
	s.mem.FundWallet(alice, 20000, "INR")
	s.hold(t, alice, s.seatIDs[0], s.seatIDs[1])

	details, err := s.book(alice, wallet, s.seatIDs[1], s.seatIDs[0])
	require.NoError(t, err)

	booking := details.Booking
	assert.Equal(t, bookings.StatusConfirmed, booking.Status)
	assert.Equal(t, int64(10000), booking.TotalAmount)
	assert.Equal(t, "INR", booking.Currency)
	assert.Regexp(t, `^EVT-20260501-[A-Z]{6}$`, booking.BookingRef)
	assert.Equal(t, []uuid.UUID{s.seatIDs[0], s.seatIDs[1]}, booking.SeatIDs())
	require.NotNil(t, details.Payment)
	assert.Equal(t, payments.StatusCompleted, details.Payment.Status)

	assert.Equal(t, int64(10000), s.mem.Balance(alice))
	for _, id := range s.seatIDs[:2] {
		seat := s.mem.Seat(id)
		assert.Equal(t, seats.StatusBooked, seat.Status)
		require.NotNil(t, seat.BookingID)
		assert.Equal(t, booking.ID, *seat.BookingID)
	}

	holds, err := s.holds.GetHolds(context.Background(), alice)
	require.NoError(t, err)
	assert.Empty(t, holds)

	stored, ok := s.mem.Booking(booking.ID)
	require.True(t, ok)
	assert.Equal(t, bookings.StatusConfirmed, stored.Status)
	s.notified(t, notifications.NotificationTypeBookingConfirmed)
}

func TestCreateBooking_ImplicitHold(t *testing.T) {
	s := newSaga(t)
	alice := uuid.New()
	s.mem.FundWallet(alice, 5000, "INR")

	details, err := s.book(alice, wallet, s.seatIDs[2])
	require.NoError(t, err)
	assert.Equal(t, bookings.StatusConfirmed, details.Booking.Status)
	assert.Zero(t, s.mem.Balance(alice))
}

func TestCreateBooking_RequiresHoldWhenImplicitDisabled(t *testing.T) {
	s := newSaga(t, func(cfg *config.BookingConfig) { cfg.ImplicitHold = false })
	alice := uuid.New()
	s.mem.FundWallet(alice, 5000, "INR")

	_, err := s.book(alice, wallet, s.seatIDs[2])
	require.ErrorIs(t, err, apperrors.ErrHoldExpired)
	assert.Empty(t, s.mem.AllBookings())
}

func TestCreateBooking_PaymentFailureCompensates(t *testing.T) {
	s := newSaga(t)
	alice := uuid.New()
	s.mem.FundWallet(alice, 1000, "INR")
	s.hold(t, alice, s.seatIDs[0], s.seatIDs[1])

	_, err := s.book(alice, wallet, s.seatIDs[0], s.seatIDs[1])
	require.ErrorIs(t, err, apperrors.ErrInsufficientBalance)

	all := s.mem.AllBookings()
	require.Len(t, all, 1)
	assert.Equal(t, bookings.StatusCancelled, all[0].Status)
	assert.NotEmpty(t, all[0].FailureReason)
	require.NotNil(t, all[0].CancelledAt)

	payment, ok := s.mem.PaymentFor(all[0].ID)
	require.True(t, ok)
	assert.Equal(t, payments.StatusFailed, payment.Status)
	assert.Equal(t, int64(1000), s.mem.Balance(alice))

	s.assertSeatsAvailable(t, s.seatIDs[0], s.seatIDs[1])
	s.notified(t, notifications.NotificationTypeBookingCancelled)

	bob := uuid.New()
	s.mem.FundWallet(bob, 10000, "INR")
	_, err = s.book(bob, wallet, s.seatIDs[0], s.seatIDs[1])
	assert.NoError(t, err)
}

func TestCreateBooking_SeatHeldByOther(t *testing.T) {
	s := newSaga(t)
	alice, bob := uuid.New(), uuid.New()
	s.mem.FundWallet(bob, 10000, "INR")
	s.hold(t, alice, s.seatIDs[0])

	_, err := s.book(bob, wallet, s.seatIDs[0])
	require.ErrorIs(t, err, apperrors.ErrSeatContended)
	assert.Equal(t, []uuid.UUID{s.seatIDs[0]}, apperrors.SeatIDs(err))
	assert.Empty(t, s.mem.AllBookings())
	assert.Equal(t, int64(10000), s.mem.Balance(bob))
}

func TestCreateBooking_ConcurrentBuyersOneWins(t *testing.T) {
	s := newSaga(t)
	const buyers = 8

	users := make([]uuid.UUID, buyers)
	for i := range users {
		users[i] = uuid.New()
		s.mem.FundWallet(users[i], 10000, "INR")
	}

	var wg sync.WaitGroup
	errs := make([]error, buyers)
	for i, user := range users {
		wg.Add(1)
		go func(i int, user uuid.UUID) {
			defer wg.Done()
			_, errs[i] = s.book(user, wallet, s.seatIDs[0])
		}(i, user)
	}
	wg.Wait()

	winners := 0
	for _, err := range errs {
		if err == nil {
			winners++
			continue
		}
		assert.True(t, apperrors.IsSeatError(err), "unexpected error: %v", err)
	}
	assert.Equal(t, 1, winners)

	confirmed := 0
	for _, b := range s.mem.AllBookings() {
		if b.Status == bookings.StatusConfirmed {
			confirmed++
		}
	}
	assert.Equal(t, 1, confirmed)

	debits := 0
	for _, tx := range s.mem.WalletTransactions() {
		if tx.Type == payments.TransactionDebit {
			debits++
		}
	}
	assert.Equal(t, 1, debits)
	assert.Equal(t, seats.StatusBooked, s.mem.Seat(s.seatIDs[0]).Status)
}

func TestCreateBooking_CardTimeout(t *testing.T) {
	s := newSaga(t, func(cfg *config.BookingConfig) { cfg.PaymentTimeout = 20 * time.Millisecond })
	s.gateway.Delay = time.Second
	alice := uuid.New()
	s.hold(t, alice, s.seatIDs[0])
	orderID := s.cardOrder(t, alice, s.seatIDs[0])

	_, err := s.book(alice, card(orderID, "pay_1"), s.seatIDs[0])
	require.ErrorIs(t, err, apperrors.ErrPaymentDeclined)

	all := s.mem.AllBookings()
	require.Len(t, all, 1)
	assert.Equal(t, bookings.StatusCancelled, all[0].Status)
	payment, ok := s.mem.PaymentFor(all[0].ID)
	require.True(t, ok)
	assert.Equal(t, payments.StatusFailed, payment.Status)
	s.assertSeatsAvailable(t, s.seatIDs[0])
}

func TestCreateBooking_CommitFailureRefunds(t *testing.T) {
	s := newSaga(t)
	alice := uuid.New()
	s.mem.FundWallet(alice, 20000, "INR")
	s.mem.MarkBookedErr = fmt.Errorf("%w: seat row drifted", apperrors.ErrInternalInconsistency)
	s.hold(t, alice, s.seatIDs[0], s.seatIDs[1])

	_, err := s.book(alice, wallet, s.seatIDs[0], s.seatIDs[1])
	require.ErrorIs(t, err, apperrors.ErrInternalInconsistency)

	all := s.mem.AllBookings()
	require.Len(t, all, 1)
	assert.Equal(t, bookings.StatusCancelled, all[0].Status)
	payment, ok := s.mem.PaymentFor(all[0].ID)
	require.True(t, ok)
	assert.Equal(t, payments.StatusRefunded, payment.Status)
	assert.Equal(t, int64(20000), s.mem.Balance(alice))
	s.assertSeatsAvailable(t, s.seatIDs[0], s.seatIDs[1])
}

func TestRetryRefunds(t *testing.T) {
	s := newSaga(t)
	ctx := context.Background()
	alice := uuid.New()
	s.mem.MarkBookedErr = errors.New("connection reset")
	s.gateway.RefundErr = errors.New("gateway unavailable")
	s.hold(t, alice, s.seatIDs[0])
	orderID := s.cardOrder(t, alice, s.seatIDs[0])

	_, err := s.book(alice, card(orderID, "pay_7"), s.seatIDs[0])
	require.Error(t, err)

	all := s.mem.AllBookings()
	require.Len(t, all, 1)
	assert.Equal(t, bookings.StatusCancelled, all[0].Status)
	payment, _ := s.mem.PaymentFor(all[0].ID)
	assert.Equal(t, payments.StatusCompleted, payment.Status)

	refunded, err := s.svc.RetryRefunds(ctx)
	require.NoError(t, err)
	assert.Zero(t, refunded)

	s.gateway.RefundErr = nil
	refunded, err = s.svc.RetryRefunds(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, refunded)
	payment, _ = s.mem.PaymentFor(all[0].ID)
	assert.Equal(t, payments.StatusRefunded, payment.Status)
	assert.Equal(t, []string{"pay_7"}, s.gateway.Refunds)

	refunded, err = s.svc.RetryRefunds(ctx)
	require.NoError(t, err)
	assert.Zero(t, refunded)
}

func TestCancelBooking(t *testing.T) {
	s := newSaga(t)
	ctx := context.Background()
	alice, mallory := uuid.New(), uuid.New()
	s.mem.FundWallet(alice, 20000, "INR")

	details, err := s.book(alice, wallet, s.seatIDs[0], s.seatIDs[1])
	require.NoError(t, err)
	bookingID := details.Booking.ID

	_, err = s.svc.CancelBooking(ctx, bookingID, mallory)
	assert.ErrorIs(t, err, apperrors.ErrNotBookingOwner)

	cancelled, err := s.svc.CancelBooking(ctx, bookingID, alice)
	require.NoError(t, err)
	assert.Equal(t, bookings.StatusCancelled, cancelled.Booking.Status)
	assert.Equal(t, payments.StatusRefunded, cancelled.Payment.Status)
	assert.Equal(t, int64(20000), s.mem.Balance(alice))
	s.assertSeatsAvailable(t, s.seatIDs[0], s.seatIDs[1])

	again, err := s.svc.CancelBooking(ctx, bookingID, alice)
	require.NoError(t, err)
	assert.Equal(t, bookings.StatusCancelled, again.Booking.Status)
	assert.Equal(t, int64(20000), s.mem.Balance(alice))

	credits := 0
	for _, tx := range s.mem.WalletTransactions() {
		if tx.Type == payments.TransactionCredit {
			credits++
		}
	}
	assert.Equal(t, 1, credits)

	_, err = s.svc.CancelBooking(ctx, uuid.New(), alice)
	assert.ErrorIs(t, err, apperrors.ErrBookingNotFound)
}

// abandon leaves a PENDING booking behind, as a crash between payment and commit would
func (s *saga) abandon(t *testing.T, userID uuid.UUID, seatIDs ...uuid.UUID) *bookings.Booking {
	t.Helper()
	ctx := context.Background()
	s.hold(t, userID, seatIDs...)

	now := s.clock.Now()
	booking := &bookings.Booking{
		ID:          uuid.New(),
		BookingRef:  "EVT-20260501-ABANDN",
		UserID:      userID,
		EventID:     s.eventID,
		TotalAmount: int64(len(seatIDs)) * 5000,
		Currency:    "INR",
		Status:      bookings.StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	for _, id := range seatIDs {
		booking.Seats = append(booking.Seats, bookings.BookingSeat{ID: uuid.New(), BookingID: booking.ID, SeatID: id, Price: 5000})
	}
	require.NoError(t, s.mem.Bookings().Create(ctx, booking))
	require.NoError(t, s.mem.Seats().AttachBooking(ctx, userID, booking.ID, seatIDs))
	require.NoError(t, s.mem.Payments().Create(ctx, &payments.Payment{
		ID:        uuid.New(),
		BookingID: booking.ID,
		UserID:    userID,
		Method:    payments.MethodWallet,
		Amount:    booking.TotalAmount,
		Currency:  "INR",
		Status:    payments.StatusPending,
	}))
	return booking
}

func TestRecoverStaleBookings(t *testing.T) {
	s := newSaga(t)
	ctx := context.Background()
	booking := s.abandon(t, uuid.New(), s.seatIDs[0])

	recovered, err := s.svc.RecoverStaleBookings(ctx)
	require.NoError(t, err)
	assert.Zero(t, recovered)

	s.clock.Advance(15*time.Minute + time.Second)
	recovered, err = s.svc.RecoverStaleBookings(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, recovered)

	stored, _ := s.mem.Booking(booking.ID)
	assert.Equal(t, bookings.StatusCancelled, stored.Status)
	payment, _ := s.mem.PaymentFor(booking.ID)
	assert.Equal(t, payments.StatusFailed, payment.Status)
	s.assertSeatsAvailable(t, s.seatIDs[0])
}

func TestHoldReconcilesAbandonedBooking(t *testing.T) {
	s := newSaga(t)
	alice, bob := uuid.New(), uuid.New()
	booking := s.abandon(t, alice, s.seatIDs[0])

	// alice's ledger hold has lapsed but her booking is still within its grace window
	s.clock.Advance(11 * time.Minute)
	_, err := s.holds.RequestHold(context.Background(), reservations.HoldRequest{EventID: s.eventID, HolderID: bob, SeatIDs: s.seatIDs[:1]})
	require.ErrorIs(t, err, apperrors.ErrSeatContended)

	s.clock.Advance(4 * time.Minute)
	s.hold(t, bob, s.seatIDs[0])

	stored, _ := s.mem.Booking(booking.ID)
	assert.Equal(t, bookings.StatusCancelled, stored.Status)
	seat := s.mem.Seat(s.seatIDs[0])
	assert.True(t, seat.ReservedFor(bob))
}

func TestGetBookingStatus_SettlesStaleBooking(t *testing.T) {
	s := newSaga(t)
	ctx := context.Background()
	alice := uuid.New()
	booking := s.abandon(t, alice, s.seatIDs[0])

	details, err := s.svc.GetBookingStatus(ctx, booking.ID, alice)
	require.NoError(t, err)
	assert.Equal(t, bookings.StatusPending, details.Booking.Status)
	assert.Equal(t, payments.StatusPending, details.Payment.Status)

	s.clock.Advance(16 * time.Minute)
	details, err = s.svc.GetBookingStatus(ctx, booking.ID, alice)
	require.NoError(t, err)
	assert.Equal(t, bookings.StatusCancelled, details.Booking.Status)
	assert.Equal(t, payments.StatusFailed, details.Payment.Status)

	_, err = s.svc.GetBookingStatus(ctx, booking.ID, uuid.New())
	assert.ErrorIs(t, err, apperrors.ErrNotBookingOwner)
}

func TestResetLapsedReservations(t *testing.T) {
	s := newSaga(t)
	alice := uuid.New()
	s.hold(t, alice, s.seatIDs[0], s.seatIDs[1])

	reset, err := s.svc.ResetLapsedReservations(context.Background())
	require.NoError(t, err)
	assert.Zero(t, reset)

	s.clock.Advance(11 * time.Minute)
	reset, err = s.svc.ResetLapsedReservations(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), reset)
	assert.Equal(t, seats.StatusAvailable, s.mem.Seat(s.seatIDs[0]).Status)
}

func TestInitiateCardPayment(t *testing.T) {
	s := newSaga(t)
	alice := uuid.New()
	s.hold(t, alice, s.seatIDs[0], s.seatIDs[1])

	order, err := s.svc.InitiateCardPayment(context.Background(), bookings.CardOrderInput{UserID: alice, EventID: s.eventID, SeatIDs: s.seatIDs[:2]})
	require.NoError(t, err)
	assert.Equal(t, "order_1", order.OrderID)
	assert.Equal(t, int64(10000), order.Amount)
	assert.Equal(t, "INR", order.Currency)
	assert.Len(t, order.Seats, 2)

	details, err := s.book(alice, card(order.OrderID, "pay_1"), s.seatIDs[0], s.seatIDs[1])
	require.NoError(t, err)
	assert.Equal(t, order.OrderID, details.Payment.ProviderOrderID)
}

func TestCreateBooking_CardOrderForFewerSeats(t *testing.T) {
	s := newSaga(t)
	alice := uuid.New()
	s.hold(t, alice, s.seatIDs[0], s.seatIDs[1])

	// an order for one seat cannot pay for two
	orderID := s.cardOrder(t, alice, s.seatIDs[0])
	_, err := s.book(alice, card(orderID, "pay_1"), s.seatIDs[0], s.seatIDs[1])
	require.ErrorIs(t, err, apperrors.ErrPaymentVerificationFailed)

	all := s.mem.AllBookings()
	require.Len(t, all, 1)
	assert.Equal(t, bookings.StatusCancelled, all[0].Status)
	payment, ok := s.mem.PaymentFor(all[0].ID)
	require.True(t, ok)
	assert.Equal(t, payments.StatusFailed, payment.Status)
	s.assertSeatsAvailable(t, s.seatIDs[0], s.seatIDs[1])
}

func TestCreateBooking_CardProofReusedForSecondBooking(t *testing.T) {
	s := newSaga(t)
	alice := uuid.New()
	s.hold(t, alice, s.seatIDs[0])
	orderID := s.cardOrder(t, alice, s.seatIDs[0])

	first, err := s.book(alice, card(orderID, "pay_1"), s.seatIDs[0])
	require.NoError(t, err)
	assert.Equal(t, bookings.StatusConfirmed, first.Booking.Status)

	s.hold(t, alice, s.seatIDs[1])
	_, err = s.book(alice, card(orderID, "pay_1"), s.seatIDs[1])
	require.ErrorIs(t, err, apperrors.ErrPaymentVerificationFailed)

	// same gateway payment behind a fresh order of the right amount
	s.hold(t, alice, s.seatIDs[1])
	freshOrder := s.cardOrder(t, alice, s.seatIDs[1])
	_, err = s.book(alice, card(freshOrder, "pay_1"), s.seatIDs[1])
	require.ErrorIs(t, err, apperrors.ErrPaymentVerificationFailed)

	confirmed := 0
	for _, b := range s.mem.AllBookings() {
		if b.Status == bookings.StatusConfirmed {
			confirmed++
		}
	}
	assert.Equal(t, 1, confirmed)
	assert.Equal(t, seats.StatusBooked, s.mem.Seat(s.seatIDs[0]).Status)
	s.assertSeatsAvailable(t, s.seatIDs[1])
}

func TestCreateBooking_FreeSeatsSkipPayment(t *testing.T) {
	s := newSaga(t)
	alice := uuid.New()
	free := s.mem.AddEventSeats(s.eventID, []string{"Z"}, 2, 0)
	s.hold(t, alice, free...)

	details, err := s.book(alice, wallet, free...)
	require.NoError(t, err)
	assert.Equal(t, bookings.StatusConfirmed, details.Booking.Status)
	assert.Zero(t, details.Booking.TotalAmount)
	assert.Nil(t, details.Payment)

	_, ok := s.mem.PaymentFor(details.Booking.ID)
	assert.False(t, ok)
	assert.Empty(t, s.mem.WalletTransactions())
	for _, id := range free {
		assert.Equal(t, seats.StatusBooked, s.mem.Seat(id).Status)
	}
}

func TestInitiateCardPayment_RejectsFreeSeats(t *testing.T) {
	s := newSaga(t)
	alice := uuid.New()
	free := s.mem.AddEventSeats(s.eventID, []string{"Z"}, 1, 0)
	s.hold(t, alice, free...)

	_, err := s.svc.InitiateCardPayment(context.Background(), bookings.CardOrderInput{UserID: alice, EventID: s.eventID, SeatIDs: free})
	assert.ErrorIs(t, err, apperrors.ErrInvalidRequest)
	assert.Empty(t, s.gateway.Orders)
}

func TestCreateBooking_RejectsUnknownMethod(t *testing.T) {
	s := newSaga(t)
	_, err := s.book(uuid.New(), payments.Intent{Method: "CASH"}, s.seatIDs[0])
	assert.ErrorIs(t, err, apperrors.ErrInvalidRequest)
}

func TestListUserBookings(t *testing.T) {
	s := newSaga(t)
	alice := uuid.New()
	s.mem.FundWallet(alice, 20000, "INR")

	_, err := s.book(alice, wallet, s.seatIDs[0])
	require.NoError(t, err)
	s.clock.Advance(time.Minute)
	_, err = s.book(alice, wallet, s.seatIDs[1])
	require.NoError(t, err)

	list, total, err := s.svc.ListUserBookings(context.Background(), alice, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, list, 1)
	assert.Equal(t, []uuid.UUID{s.seatIDs[1]}, list[0].SeatIDs())
}
