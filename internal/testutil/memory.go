// Package testutil provides in-memory stand-ins for the Postgres repositories
// and the external collaborators of the booking flow.
package testutil

import (
	"bytes"
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"seatbook/internal/bookings"
	"seatbook/internal/payments"
	"seatbook/internal/seats"
	"seatbook/internal/shared/apperrors"

	"github.com/google/uuid"
)

type txMarker struct{}

// Memory is one in-memory database shared by the seat, booking, payment and wallet views.
// WithTx serializes transactions and rolls every table back when fn fails.
type Memory struct {
	mu sync.Mutex

	seats    map[uuid.UUID]seats.Seat
	bookings map[uuid.UUID]bookings.Booking
	payments map[uuid.UUID]payments.Payment
	orders   map[uuid.UUID]payments.CardOrder
	wallets  map[uuid.UUID]payments.Wallet
	walletTx []payments.WalletTransaction

	// MarkBookedErr, when set, makes MarkBooked fail without touching any seat
	MarkBookedErr error
}

func NewMemory() *Memory {
	return &Memory{
		seats:    make(map[uuid.UUID]seats.Seat),
		bookings: make(map[uuid.UUID]bookings.Booking),
		payments: make(map[uuid.UUID]payments.Payment),
		orders:   make(map[uuid.UUID]payments.CardOrder),
		wallets:  make(map[uuid.UUID]payments.Wallet),
	}
}

type snapshot struct {
	seats    map[uuid.UUID]seats.Seat
	bookings map[uuid.UUID]bookings.Booking
	payments map[uuid.UUID]payments.Payment
	orders   map[uuid.UUID]payments.CardOrder
	wallets  map[uuid.UUID]payments.Wallet
	walletTx []payments.WalletTransaction
}

func (m *Memory) snapshot() snapshot {
	s := snapshot{
		seats:    make(map[uuid.UUID]seats.Seat, len(m.seats)),
		bookings: make(map[uuid.UUID]bookings.Booking, len(m.bookings)),
		payments: make(map[uuid.UUID]payments.Payment, len(m.payments)),
		orders:   make(map[uuid.UUID]payments.CardOrder, len(m.orders)),
		wallets:  make(map[uuid.UUID]payments.Wallet, len(m.wallets)),
		walletTx: slices.Clone(m.walletTx),
	}
	for k, v := range m.seats {
		s.seats[k] = v
	}
	for k, v := range m.bookings {
		v.Seats = slices.Clone(v.Seats)
		s.bookings[k] = v
	}
	for k, v := range m.payments {
		s.payments[k] = v
	}
	for k, v := range m.orders {
		s.orders[k] = v
	}
	for k, v := range m.wallets {
		s.wallets[k] = v
	}
	return s
}

func (m *Memory) restore(s snapshot) {
	m.seats = s.seats
	m.bookings = s.bookings
	m.payments = s.payments
	m.orders = s.orders
	m.wallets = s.wallets
	m.walletTx = s.walletTx
}

// WithTx implements database.Transactor. Nested calls join the outer transaction.
func (m *Memory) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if inTx(ctx) {
		return fn(ctx)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	saved := m.snapshot()
	if err := fn(context.WithValue(ctx, txMarker{}, true)); err != nil {
		m.restore(saved)
		return err
	}
	return nil
}

func inTx(ctx context.Context) bool {
	marked, _ := ctx.Value(txMarker{}).(bool)
	return marked
}

// run executes a single statement: inside the caller's transaction, or as its own.
func (m *Memory) run(ctx context.Context, fn func() error) error {
	if inTx(ctx) {
		return fn()
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	saved := m.snapshot()
	if err := fn(); err != nil {
		m.restore(saved)
		return err
	}
	return nil
}

// Seats returns the seats.Repository view
func (m *Memory) Seats() seats.Repository { return &seatTable{m} }

// Bookings returns the bookings.Repository view
func (m *Memory) Bookings() bookings.Repository { return &bookingTable{m} }

// Payments returns the payments.Repository view
func (m *Memory) Payments() payments.Repository { return &paymentTable{m} }

// Wallets returns the payments.WalletRepository view
func (m *Memory) Wallets() payments.WalletRepository { return &walletTable{m} }

// AddEventSeats creates rows x perRow AVAILABLE seats at price and returns their IDs in lock order
func (m *Memory) AddEventSeats(eventID uuid.UUID, rows []string, perRow int, price int64) []uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()

	var ids []uuid.UUID
	for _, row := range rows {
		for n := 1; n <= perRow; n++ {
			seat := seats.Seat{
				ID:         uuid.New(),
				EventID:    eventID,
				Section:    "Main",
				Row:        row,
				SeatNumber: fmt.Sprint(n),
				Price:      price,
				Status:     seats.StatusAvailable,
				Version:    1,
			}
			m.seats[seat.ID] = seat
			ids = append(ids, seat.ID)
		}
	}
	sortIDs(ids)
	return ids
}

// Seat returns a copy of one seat row
func (m *Memory) Seat(id uuid.UUID) seats.Seat {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.seats[id]
}

// Booking returns a copy of one booking row
func (m *Memory) Booking(id uuid.UUID) (bookings.Booking, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	return b, ok
}

// AllBookings returns every booking row
func (m *Memory) AllBookings() []bookings.Booking {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]bookings.Booking, 0, len(m.bookings))
	for _, b := range m.bookings {
		out = append(out, b)
	}
	return out
}

// PaymentFor returns the payment row of a booking
func (m *Memory) PaymentFor(bookingID uuid.UUID) (payments.Payment, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.payments {
		if p.BookingID == bookingID {
			return p, true
		}
	}
	return payments.Payment{}, false
}

// WalletTransactions returns the wallet ledger in insertion order
func (m *Memory) WalletTransactions() []payments.WalletTransaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.walletTx)
}

// FundWallet creates or tops up a wallet directly
func (m *Memory) FundWallet(userID uuid.UUID, balance int64, currency string) payments.Wallet {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, w := range m.wallets {
		if w.UserID == userID {
			w.Balance = balance
			m.wallets[id] = w
			return w
		}
	}
	w := payments.Wallet{ID: uuid.New(), UserID: userID, Balance: balance, Currency: currency, Version: 1}
	m.wallets[w.ID] = w
	return w
}

// Balance returns the wallet balance of a user, or -1 without a wallet
func (m *Memory) Balance(userID uuid.UUID) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, w := range m.wallets {
		if w.UserID == userID {
			return w.Balance
		}
	}
	return -1
}

// ================== SEATS ==================

type seatTable struct{ m *Memory }

func (t *seatTable) CreateSeats(ctx context.Context, rows []seats.Seat) error {
	return t.m.run(ctx, func() error {
		for _, seat := range rows {
			t.m.seats[seat.ID] = seat
		}
		return nil
	})
}

func (t *seatTable) GetSeats(ctx context.Context, eventID uuid.UUID, seatIDs []uuid.UUID) ([]seats.Seat, error) {
	var out []seats.Seat
	err := t.m.run(ctx, func() error {
		for _, id := range seatIDs {
			if seat, ok := t.m.seats[id]; ok && seat.EventID == eventID {
				out = append(out, seat)
			}
		}
		return nil
	})
	sortSeats(out)
	return out, err
}

func (t *seatTable) ListByEvent(ctx context.Context, eventID uuid.UUID) ([]seats.Seat, error) {
	var out []seats.Seat
	err := t.m.run(ctx, func() error {
		for _, seat := range t.m.seats {
			if seat.EventID == eventID {
				out = append(out, seat)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].Row != out[j].Row {
			return out[i].Row < out[j].Row
		}
		return out[i].SeatNumber < out[j].SeatNumber
	})
	return out, err
}

func (t *seatTable) ReserveSeats(ctx context.Context, eventID, holderID uuid.UUID, seatIDs []uuid.UUID, until time.Time) error {
	return t.m.run(ctx, func() error {
		var missing, booked, claimed []uuid.UUID
		for _, id := range seatIDs {
			seat, ok := t.m.seats[id]
			switch {
			case !ok || seat.EventID != eventID:
				missing = append(missing, id)
			case seat.IsBooked():
				booked = append(booked, id)
			case seat.IsClaimed() && !seat.ReservedFor(holderID):
				claimed = append(claimed, id)
			}
		}
		if len(missing) > 0 {
			return apperrors.Seats(apperrors.ErrInvalidRequest, missing...)
		}
		if len(booked) > 0 {
			return apperrors.Seats(apperrors.ErrSeatUnavailable, booked...)
		}
		if len(claimed) > 0 {
			return apperrors.Seats(apperrors.ErrSeatContended, claimed...)
		}

		for _, id := range seatIDs {
			seat := t.m.seats[id]
			holder := holderID
			expiry := until
			seat.Status = seats.StatusReserved
			seat.ReservedBy = &holder
			seat.ReservedUntil = &expiry
			seat.Version++
			t.m.seats[id] = seat
		}
		return nil
	})
}

func (t *seatTable) ReleaseReservations(ctx context.Context, holderID uuid.UUID, seatIDs []uuid.UUID) (int64, error) {
	var released int64
	err := t.m.run(ctx, func() error {
		for _, id := range seatIDs {
			seat, ok := t.m.seats[id]
			if !ok || !seat.ReservedFor(holderID) || seat.IsClaimed() {
				continue
			}
			t.m.seats[id] = cleared(seat)
			released++
		}
		return nil
	})
	return released, err
}

func (t *seatTable) AttachBooking(ctx context.Context, holderID, bookingID uuid.UUID, seatIDs []uuid.UUID) error {
	return t.m.run(ctx, func() error {
		var lost []uuid.UUID
		for _, id := range seatIDs {
			seat, ok := t.m.seats[id]
			if !ok || !seat.ReservedFor(holderID) || seat.IsClaimed() {
				lost = append(lost, id)
			}
		}
		if len(lost) > 0 {
			return apperrors.Seats(apperrors.ErrHoldExpired, lost...)
		}
		for _, id := range seatIDs {
			seat := t.m.seats[id]
			owner := bookingID
			seat.BookingID = &owner
			seat.Version++
			t.m.seats[id] = seat
		}
		return nil
	})
}

func (t *seatTable) MarkBooked(ctx context.Context, bookingID uuid.UUID, seatIDs []uuid.UUID) error {
	return t.m.run(ctx, func() error {
		if t.m.MarkBookedErr != nil {
			return t.m.MarkBookedErr
		}
		owned := 0
		for _, id := range seatIDs {
			seat, ok := t.m.seats[id]
			if ok && seat.BookingID != nil && *seat.BookingID == bookingID && seat.Status == seats.StatusReserved {
				owned++
			}
		}
		if owned != len(seatIDs) {
			return fmt.Errorf("%w: booking %s owns %d of %d seats", apperrors.ErrInternalInconsistency, bookingID, owned, len(seatIDs))
		}
		for _, id := range seatIDs {
			seat := t.m.seats[id]
			seat.Status = seats.StatusBooked
			seat.ReservedBy = nil
			seat.ReservedUntil = nil
			seat.Version++
			t.m.seats[id] = seat
		}
		return nil
	})
}

func (t *seatTable) ReleaseBookingSeats(ctx context.Context, bookingID uuid.UUID) (int64, error) {
	var released int64
	err := t.m.run(ctx, func() error {
		for id, seat := range t.m.seats {
			if seat.BookingID != nil && *seat.BookingID == bookingID {
				t.m.seats[id] = cleared(seat)
				released++
			}
		}
		return nil
	})
	return released, err
}

func (t *seatTable) ResetExpiredReservations(ctx context.Context, now time.Time, limit int) (int64, error) {
	var reset int64
	err := t.m.run(ctx, func() error {
		var lapsed []uuid.UUID
		for id, seat := range t.m.seats {
			if seat.Status == seats.StatusReserved && !seat.IsClaimed() &&
				seat.ReservedUntil != nil && seat.ReservedUntil.Before(now) {
				lapsed = append(lapsed, id)
			}
		}
		sortIDs(lapsed)
		if len(lapsed) > limit {
			lapsed = lapsed[:limit]
		}
		for _, id := range lapsed {
			t.m.seats[id] = cleared(t.m.seats[id])
			reset++
		}
		return nil
	})
	return reset, err
}

func cleared(seat seats.Seat) seats.Seat {
	seat.Status = seats.StatusAvailable
	seat.BookingID = nil
	seat.ReservedBy = nil
	seat.ReservedUntil = nil
	seat.Version++
	return seat
}

// ================== BOOKINGS ==================

type bookingTable struct{ m *Memory }

func (t *bookingTable) Create(ctx context.Context, booking *bookings.Booking) error {
	return t.m.run(ctx, func() error {
		if _, exists := t.m.bookings[booking.ID]; exists {
			return fmt.Errorf("duplicate booking %s", booking.ID)
		}
		for _, other := range t.m.bookings {
			if other.BookingRef == booking.BookingRef {
				return fmt.Errorf("duplicate booking reference %s", booking.BookingRef)
			}
		}
		stored := *booking
		stored.Seats = slices.Clone(booking.Seats)
		t.m.bookings[booking.ID] = stored
		return nil
	})
}

func (t *bookingTable) GetByID(ctx context.Context, id uuid.UUID) (*bookings.Booking, error) {
	var out *bookings.Booking
	err := t.m.run(ctx, func() error {
		stored, ok := t.m.bookings[id]
		if !ok {
			return apperrors.ErrBookingNotFound
		}
		out = copyBooking(stored)
		return nil
	})
	return out, err
}

func (t *bookingTable) TransitionStatus(ctx context.Context, id uuid.UUID, from, to bookings.Status, fields map[string]interface{}) error {
	if !from.CanTransitionTo(to) {
		return fmt.Errorf("%w: booking cannot move from %s to %s", apperrors.ErrInvalidRequest, from, to)
	}
	return t.m.run(ctx, func() error {
		stored, ok := t.m.bookings[id]
		if !ok || stored.Status != from {
			return fmt.Errorf("%w: booking %s is not %s", apperrors.ErrStatusConflict, id, from)
		}
		stored.Status = to
		for key, value := range fields {
			switch key {
			case "confirmed_at":
				at := value.(time.Time)
				stored.ConfirmedAt = &at
			case "cancelled_at":
				at := value.(time.Time)
				stored.CancelledAt = &at
			case "failure_reason":
				stored.FailureReason = value.(string)
			default:
				return fmt.Errorf("unsupported booking column %q", key)
			}
		}
		t.m.bookings[id] = stored
		return nil
	})
}

func (t *bookingTable) ListStalePending(ctx context.Context, createdBefore time.Time, limit int) ([]bookings.Booking, error) {
	var out []bookings.Booking
	err := t.m.run(ctx, func() error {
		for _, b := range t.m.bookings {
			if b.Status == bookings.StatusPending && b.CreatedAt.Before(createdBefore) {
				out = append(out, *copyBooking(b))
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, err
}

func (t *bookingTable) ListByUser(ctx context.Context, userID uuid.UUID, page, limit int) ([]bookings.Booking, int64, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 10
	}
	var all []bookings.Booking
	err := t.m.run(ctx, func() error {
		for _, b := range t.m.bookings {
			if b.UserID == userID {
				all = append(all, *copyBooking(b))
			}
		}
		return nil
	})
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })

	total := int64(len(all))
	start := min((page-1)*limit, len(all))
	end := min(start+limit, len(all))
	return all[start:end], total, err
}

func copyBooking(b bookings.Booking) *bookings.Booking {
	b.Seats = slices.Clone(b.Seats)
	sort.Slice(b.Seats, func(i, j int) bool {
		return bytes.Compare(b.Seats[i].SeatID[:], b.Seats[j].SeatID[:]) < 0
	})
	return &b
}

// ================== PAYMENTS ==================

type paymentTable struct{ m *Memory }

func (t *paymentTable) Create(ctx context.Context, payment *payments.Payment) error {
	return t.m.run(ctx, func() error {
		for _, other := range t.m.payments {
			if other.BookingID == payment.BookingID {
				return fmt.Errorf("duplicate payment for booking %s", payment.BookingID)
			}
		}
		t.m.payments[payment.ID] = *payment
		return nil
	})
}

func (t *paymentTable) GetByID(ctx context.Context, id uuid.UUID) (*payments.Payment, error) {
	var out *payments.Payment
	err := t.m.run(ctx, func() error {
		stored, ok := t.m.payments[id]
		if !ok {
			return apperrors.ErrPaymentNotFound
		}
		out = &stored
		return nil
	})
	return out, err
}

func (t *paymentTable) GetByBookingID(ctx context.Context, bookingID uuid.UUID) (*payments.Payment, error) {
	var out *payments.Payment
	err := t.m.run(ctx, func() error {
		for _, stored := range t.m.payments {
			if stored.BookingID == bookingID {
				out = &stored
				return nil
			}
		}
		return apperrors.ErrPaymentNotFound
	})
	return out, err
}

func (t *paymentTable) Transition(ctx context.Context, id uuid.UUID, from, to payments.Status, fields map[string]interface{}) error {
	return t.m.run(ctx, func() error {
		stored, ok := t.m.payments[id]
		if !ok || stored.Status != from {
			return fmt.Errorf("%w: payment %s is not %s", apperrors.ErrStatusConflict, id, from)
		}
		stored.Status = to
		for key, value := range fields {
			switch key {
			case "provider_order_id":
				stored.ProviderOrderID = value.(string)
			case "provider_transaction_id":
				txnID := value.(string)
				for otherID, other := range t.m.payments {
					if otherID != id && txnID != "" && other.ProviderTransactionID == txnID {
						return fmt.Errorf("%w: provider payment already captured", apperrors.ErrPaymentVerificationFailed)
					}
				}
				stored.ProviderTransactionID = txnID
			case "failure_reason":
				stored.FailureReason = value.(string)
			case "processed_at":
				at := value.(time.Time)
				stored.ProcessedAt = &at
			case "refunded_at":
				at := value.(time.Time)
				stored.RefundedAt = &at
			default:
				return fmt.Errorf("unsupported payment column %q", key)
			}
		}
		t.m.payments[id] = stored
		return nil
	})
}

func (t *paymentTable) ClaimRefund(ctx context.Context, id uuid.UUID, now, staleBefore time.Time) error {
	return t.m.run(ctx, func() error {
		stored, ok := t.m.payments[id]
		claimable := ok && (stored.Status == payments.StatusCompleted ||
			(stored.Status == payments.StatusRefunding && stored.UpdatedAt.Before(staleBefore)))
		if !claimable {
			return fmt.Errorf("%w: refund of payment %s already in progress", apperrors.ErrStatusConflict, id)
		}
		stored.Status = payments.StatusRefunding
		stored.UpdatedAt = now
		t.m.payments[id] = stored
		return nil
	})
}

func (t *paymentTable) ListRefundable(ctx context.Context, staleBefore time.Time, limit int) ([]payments.Payment, error) {
	var out []payments.Payment
	err := t.m.run(ctx, func() error {
		for _, p := range t.m.payments {
			b, ok := t.m.bookings[p.BookingID]
			cancelled := p.Status == payments.StatusCompleted && ok && b.Status == bookings.StatusCancelled
			abandoned := p.Status == payments.StatusRefunding && p.UpdatedAt.Before(staleBefore)
			if cancelled || abandoned {
				out = append(out, p)
			}
		}
		return nil
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, err
}

func (t *paymentTable) CreateOrder(ctx context.Context, order *payments.CardOrder) error {
	return t.m.run(ctx, func() error {
		for _, other := range t.m.orders {
			if other.ProviderOrderID == order.ProviderOrderID {
				return fmt.Errorf("duplicate card order %s", order.ProviderOrderID)
			}
		}
		t.m.orders[order.ID] = *order
		return nil
	})
}

func (t *paymentTable) GetOrder(ctx context.Context, providerOrderID string) (*payments.CardOrder, error) {
	var out *payments.CardOrder
	err := t.m.run(ctx, func() error {
		for _, stored := range t.m.orders {
			if stored.ProviderOrderID == providerOrderID {
				out = &stored
				return nil
			}
		}
		return apperrors.ErrCardOrderNotFound
	})
	return out, err
}

func (t *paymentTable) ClaimOrder(ctx context.Context, orderID, paymentID uuid.UUID) error {
	return t.m.run(ctx, func() error {
		stored, ok := t.m.orders[orderID]
		if !ok || stored.PaymentID != nil {
			return fmt.Errorf("%w: card order %s already paid for another booking", apperrors.ErrPaymentVerificationFailed, orderID)
		}
		stored.PaymentID = &paymentID
		t.m.orders[orderID] = stored
		return nil
	})
}

// SetPaymentStatus overwrites a payment's status and update time
func (m *Memory) SetPaymentStatus(paymentID uuid.UUID, status payments.Status, updatedAt time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.payments[paymentID]
	p.Status = status
	p.UpdatedAt = updatedAt
	m.payments[paymentID] = p
}

// ================== WALLETS ==================

type walletTable struct{ m *Memory }

func (t *walletTable) GetByUserID(ctx context.Context, userID uuid.UUID) (*payments.Wallet, error) {
	var out *payments.Wallet
	err := t.m.run(ctx, func() error {
		for _, w := range t.m.wallets {
			if w.UserID == userID {
				out = &w
				return nil
			}
		}
		return apperrors.ErrWalletNotFound
	})
	return out, err
}

// GetForUpdate needs no row lock: transactions are already serialized
func (t *walletTable) GetForUpdate(ctx context.Context, userID uuid.UUID) (*payments.Wallet, error) {
	return t.GetByUserID(ctx, userID)
}

func (t *walletTable) Create(ctx context.Context, wallet *payments.Wallet) error {
	return t.m.run(ctx, func() error {
		for _, w := range t.m.wallets {
			if w.UserID == wallet.UserID {
				return fmt.Errorf("duplicate wallet for user %s", wallet.UserID)
			}
		}
		t.m.wallets[wallet.ID] = *wallet
		return nil
	})
}

func (t *walletTable) UpdateBalance(ctx context.Context, walletID uuid.UUID, balance int64) error {
	return t.m.run(ctx, func() error {
		w, ok := t.m.wallets[walletID]
		if !ok {
			return apperrors.ErrWalletNotFound
		}
		if balance < 0 {
			return fmt.Errorf("check constraint chk_wallets_balance violated")
		}
		w.Balance = balance
		w.Version++
		t.m.wallets[walletID] = w
		return nil
	})
}

func (t *walletTable) AppendTransaction(ctx context.Context, entry *payments.WalletTransaction) error {
	return t.m.run(ctx, func() error {
		if entry.BookingID != nil {
			for _, existing := range t.m.walletTx {
				if existing.BookingID != nil && *existing.BookingID == *entry.BookingID && existing.Type == entry.Type {
					return fmt.Errorf("duplicate key value violates unique constraint idx_wallet_tx_booking_type")
				}
			}
		}
		t.m.walletTx = append(t.m.walletTx, *entry)
		return nil
	})
}

func sortIDs(ids []uuid.UUID) {
	slices.SortFunc(ids, func(a, b uuid.UUID) int { return bytes.Compare(a[:], b[:]) })
}

func sortSeats(list []seats.Seat) {
	slices.SortFunc(list, func(a, b seats.Seat) int { return bytes.Compare(a.ID[:], b.ID[:]) })
}
