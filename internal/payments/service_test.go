package payments_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"seatbook/internal/payments"
	"seatbook/internal/shared/apperrors"
	"seatbook/internal/testutil"
	"seatbook/pkg/clock"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type paymentsFixture struct {
	mem     *testutil.Memory
	gateway *testutil.Gateway
	clock   *clock.Manual
	svc     payments.Service
}

func newPaymentsFixture() *paymentsFixture {
	f := &paymentsFixture{
		mem:     testutil.NewMemory(),
		gateway: testutil.NewGateway(),
		clock:   clock.NewManual(time.Date(2026, 5, 1, 18, 0, 0, 0, time.UTC)),
	}
	f.svc = payments.NewService(f.mem.Payments(), f.mem.Wallets(), f.gateway, f.mem, f.clock)
	return f
}

func (f *paymentsFixture) open(t *testing.T, userID uuid.UUID, method payments.Method, amount int64) *payments.Payment {
	t.Helper()
	payment := &payments.Payment{
		ID:        uuid.New(),
		BookingID: uuid.New(),
		UserID:    userID,
		Method:    method,
		Amount:    amount,
		Currency:  "INR",
	}
	require.NoError(t, f.svc.Open(context.Background(), payment))
	return payment
}

// order opens a card order the way the hold checkout does
func (f *paymentsFixture) order(t *testing.T, userID uuid.UUID, amount int64) *payments.CardOrder {
	t.Helper()
	order, err := f.svc.CreateCardOrder(context.Background(), payments.CardOrderRequest{
		UserID:   userID,
		EventID:  uuid.New(),
		Amount:   amount,
		Currency: "inr",
		Receipt:  "hold_test",
	})
	require.NoError(t, err)
	return order
}

// capturedCard opens a card payment and captures it with a fresh order
func (f *paymentsFixture) capturedCard(t *testing.T, userID uuid.UUID, amount int64, providerPaymentID string) *payments.Payment {
	t.Helper()
	payment := f.open(t, userID, payments.MethodCard, amount)
	order := f.order(t, userID, amount)
	_, err := f.svc.Charge(context.Background(), payment.ID, cardIntent(order.ProviderOrderID, providerPaymentID))
	require.NoError(t, err)
	return payment
}

func cardIntent(orderID, paymentID string) payments.Intent {
	return payments.Intent{Method: payments.MethodCard, OrderID: orderID, PaymentID: paymentID, Signature: "sig"}
}

func TestOpen_Validation(t *testing.T) {
	f := newPaymentsFixture()
	ctx := context.Background()

	err := f.svc.Open(ctx, &payments.Payment{ID: uuid.New(), BookingID: uuid.New(), Method: "CASH", Amount: 100, Currency: "INR"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidRequest)

	err = f.svc.Open(ctx, &payments.Payment{ID: uuid.New(), BookingID: uuid.New(), Method: payments.MethodWallet, Currency: "INR"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidRequest)
}

func TestCharge_WalletDebitsOnce(t *testing.T) {
	f := newPaymentsFixture()
	ctx := context.Background()
	userID := uuid.New()
	f.mem.FundWallet(userID, 20000, "INR")

	payment := f.open(t, userID, payments.MethodWallet, 10000)

	charged, err := f.svc.Charge(ctx, payment.ID, payments.Intent{Method: payments.MethodWallet})
	require.NoError(t, err)
	assert.Equal(t, payments.StatusCompleted, charged.Status)
	assert.NotEmpty(t, charged.ProviderTransactionID)
	require.NotNil(t, charged.ProcessedAt)
	assert.Equal(t, f.clock.Now(), *charged.ProcessedAt)
	assert.Equal(t, int64(10000), f.mem.Balance(userID))

	again, err := f.svc.Charge(ctx, payment.ID, payments.Intent{Method: payments.MethodWallet})
	require.NoError(t, err)
	assert.Equal(t, payments.StatusCompleted, again.Status)
	assert.Equal(t, int64(10000), f.mem.Balance(userID))

	txs := f.mem.WalletTransactions()
	require.Len(t, txs, 1)
	assert.Equal(t, payments.TransactionDebit, txs[0].Type)
	assert.Equal(t, int64(10000), txs[0].BalanceAfter)
}

func TestCharge_WalletDeclines(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		balance int64
		fund    bool
		curr    string
		wantErr error
	}{
		{name: "insufficient balance", balance: 5000, fund: true, curr: "INR", wantErr: apperrors.ErrInsufficientBalance},
		{name: "no wallet", wantErr: apperrors.ErrInsufficientBalance},
		{name: "currency mismatch", balance: 50000, fund: true, curr: "USD", wantErr: apperrors.ErrPaymentDeclined},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newPaymentsFixture()
			userID := uuid.New()
			if tt.fund {
				f.mem.FundWallet(userID, tt.balance, tt.curr)
			}
			payment := f.open(t, userID, payments.MethodWallet, 10000)

			_, err := f.svc.Charge(ctx, payment.ID, payments.Intent{Method: payments.MethodWallet})
			require.ErrorIs(t, err, tt.wantErr)
			assert.True(t, apperrors.IsPaymentError(err))

			stored, err := f.svc.GetByBookingID(ctx, payment.BookingID)
			require.NoError(t, err)
			assert.Equal(t, payments.StatusPending, stored.Status)
			if tt.fund {
				assert.Equal(t, tt.balance, f.mem.Balance(userID))
			}
			assert.Empty(t, f.mem.WalletTransactions())
		})
	}
}

func TestCharge_Card(t *testing.T) {
	ctx := context.Background()

	t.Run("verified", func(t *testing.T) {
		f := newPaymentsFixture()
		userID := uuid.New()
		payment := f.open(t, userID, payments.MethodCard, 7500)
		order := f.order(t, userID, 7500)

		charged, err := f.svc.Charge(ctx, payment.ID, cardIntent(order.ProviderOrderID, "pay_1"))
		require.NoError(t, err)
		assert.Equal(t, payments.StatusCompleted, charged.Status)
		assert.Equal(t, order.ProviderOrderID, charged.ProviderOrderID)
		assert.Equal(t, "pay_1", charged.ProviderTransactionID)
	})

	t.Run("bad signature", func(t *testing.T) {
		f := newPaymentsFixture()
		f.gateway.Valid = false
		userID := uuid.New()
		payment := f.open(t, userID, payments.MethodCard, 7500)
		order := f.order(t, userID, 7500)

		_, err := f.svc.Charge(ctx, payment.ID, cardIntent(order.ProviderOrderID, "pay_1"))
		assert.ErrorIs(t, err, apperrors.ErrPaymentVerificationFailed)
	})

	t.Run("missing proof", func(t *testing.T) {
		f := newPaymentsFixture()
		payment := f.open(t, uuid.New(), payments.MethodCard, 7500)

		_, err := f.svc.Charge(ctx, payment.ID, payments.Intent{Method: payments.MethodCard, OrderID: "order_1"})
		assert.ErrorIs(t, err, apperrors.ErrPaymentVerificationFailed)
	})

	t.Run("gateway unreachable", func(t *testing.T) {
		f := newPaymentsFixture()
		f.gateway.VerifyErr = errors.New("connection reset")
		userID := uuid.New()
		payment := f.open(t, userID, payments.MethodCard, 7500)
		order := f.order(t, userID, 7500)

		_, err := f.svc.Charge(ctx, payment.ID, cardIntent(order.ProviderOrderID, "pay_1"))
		assert.ErrorIs(t, err, apperrors.ErrPaymentDeclined)
	})
}

func TestCharge_CardOrderMustMatchBooking(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name      string
		orderUser func(bookingUser uuid.UUID) uuid.UUID
		amount    int64
	}{
		{name: "cheaper order", orderUser: func(u uuid.UUID) uuid.UUID { return u }, amount: 100},
		{name: "pricier order", orderUser: func(u uuid.UUID) uuid.UUID { return u }, amount: 9000},
		{name: "another user's order", orderUser: func(uuid.UUID) uuid.UUID { return uuid.New() }, amount: 7500},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newPaymentsFixture()
			userID := uuid.New()
			payment := f.open(t, userID, payments.MethodCard, 7500)
			order := f.order(t, tt.orderUser(userID), tt.amount)

			_, err := f.svc.Charge(ctx, payment.ID, cardIntent(order.ProviderOrderID, "pay_1"))
			require.ErrorIs(t, err, apperrors.ErrPaymentVerificationFailed)

			stored, err := f.svc.GetByBookingID(ctx, payment.BookingID)
			require.NoError(t, err)
			assert.Equal(t, payments.StatusPending, stored.Status)
			assert.Empty(t, stored.ProviderTransactionID)
		})
	}

	t.Run("unknown order", func(t *testing.T) {
		f := newPaymentsFixture()
		payment := f.open(t, uuid.New(), payments.MethodCard, 7500)

		_, err := f.svc.Charge(ctx, payment.ID, cardIntent("order_forged", "pay_1"))
		assert.ErrorIs(t, err, apperrors.ErrPaymentVerificationFailed)
	})
}

func TestCharge_CardProofSettlesOneBooking(t *testing.T) {
	ctx := context.Background()

	t.Run("order reused for a second booking", func(t *testing.T) {
		f := newPaymentsFixture()
		userID := uuid.New()
		first := f.open(t, userID, payments.MethodCard, 7500)
		second := f.open(t, userID, payments.MethodCard, 7500)
		order := f.order(t, userID, 7500)

		_, err := f.svc.Charge(ctx, first.ID, cardIntent(order.ProviderOrderID, "pay_1"))
		require.NoError(t, err)

		_, err = f.svc.Charge(ctx, second.ID, cardIntent(order.ProviderOrderID, "pay_2"))
		require.ErrorIs(t, err, apperrors.ErrPaymentVerificationFailed)

		stored, err := f.svc.GetByBookingID(ctx, second.BookingID)
		require.NoError(t, err)
		assert.Equal(t, payments.StatusPending, stored.Status)
	})

	t.Run("gateway payment reused with a fresh order", func(t *testing.T) {
		f := newPaymentsFixture()
		userID := uuid.New()
		first := f.capturedCard(t, userID, 7500, "pay_1")
		second := f.open(t, userID, payments.MethodCard, 7500)
		order := f.order(t, userID, 7500)

		_, err := f.svc.Charge(ctx, second.ID, cardIntent(order.ProviderOrderID, "pay_1"))
		require.ErrorIs(t, err, apperrors.ErrPaymentVerificationFailed)

		stored, err := f.svc.GetByBookingID(ctx, second.BookingID)
		require.NoError(t, err)
		assert.Equal(t, payments.StatusPending, stored.Status)

		// the rejected attempt must not have consumed the order
		charged, err := f.svc.Charge(ctx, second.ID, cardIntent(order.ProviderOrderID, "pay_2"))
		require.NoError(t, err)
		assert.Equal(t, payments.StatusCompleted, charged.Status)

		original, err := f.svc.GetByBookingID(ctx, first.BookingID)
		require.NoError(t, err)
		assert.Equal(t, "pay_1", original.ProviderTransactionID)
	})
}

func TestCreateCardOrder(t *testing.T) {
	f := newPaymentsFixture()
	ctx := context.Background()
	userID := uuid.New()

	order := f.order(t, userID, 7500)
	assert.Equal(t, "order_1", order.ProviderOrderID)
	assert.Equal(t, userID, order.UserID)
	assert.Equal(t, int64(7500), order.Amount)
	assert.Equal(t, "INR", order.Currency)
	assert.Nil(t, order.PaymentID)

	_, err := f.svc.CreateCardOrder(ctx, payments.CardOrderRequest{UserID: userID, Amount: 0, Currency: "INR"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidRequest)
	assert.Len(t, f.gateway.Orders, 1)
}

func TestCharge_FailedPaymentIsNotRetried(t *testing.T) {
	f := newPaymentsFixture()
	ctx := context.Background()
	userID := uuid.New()
	f.mem.FundWallet(userID, 20000, "INR")
	payment := f.open(t, userID, payments.MethodWallet, 10000)

	require.NoError(t, f.svc.MarkFailed(ctx, payment.ID, "timeout"))

	_, err := f.svc.Charge(ctx, payment.ID, payments.Intent{Method: payments.MethodWallet})
	assert.ErrorIs(t, err, apperrors.ErrPaymentDeclined)
	assert.Equal(t, int64(20000), f.mem.Balance(userID))
}

func TestRefund_WalletCreditsOnce(t *testing.T) {
	f := newPaymentsFixture()
	ctx := context.Background()
	userID := uuid.New()
	f.mem.FundWallet(userID, 20000, "INR")
	payment := f.open(t, userID, payments.MethodWallet, 10000)

	_, err := f.svc.Charge(ctx, payment.ID, payments.Intent{Method: payments.MethodWallet})
	require.NoError(t, err)

	refunded, err := f.svc.Refund(ctx, payment.ID)
	require.NoError(t, err)
	assert.Equal(t, payments.StatusRefunded, refunded.Status)
	require.NotNil(t, refunded.RefundedAt)
	assert.Equal(t, int64(20000), f.mem.Balance(userID))

	again, err := f.svc.Refund(ctx, payment.ID)
	require.NoError(t, err)
	assert.Equal(t, payments.StatusRefunded, again.Status)
	assert.Equal(t, int64(20000), f.mem.Balance(userID))
	assert.Len(t, f.mem.WalletTransactions(), 2)
}

func TestRefund_LeavesUncapturedPayments(t *testing.T) {
	f := newPaymentsFixture()
	ctx := context.Background()
	payment := f.open(t, uuid.New(), payments.MethodCard, 5000)

	result, err := f.svc.Refund(ctx, payment.ID)
	require.NoError(t, err)
	assert.Equal(t, payments.StatusPending, result.Status)
	assert.Zero(t, f.gateway.RefundCount())

	_, err = f.svc.Refund(ctx, uuid.New())
	assert.ErrorIs(t, err, apperrors.ErrPaymentNotFound)
}

func TestRefund_Card(t *testing.T) {
	f := newPaymentsFixture()
	ctx := context.Background()
	payment := f.capturedCard(t, uuid.New(), 5000, "pay_9")

	f.gateway.RefundErr = errors.New("gateway down")
	_, err := f.svc.Refund(ctx, payment.ID)
	require.Error(t, err)
	stored, err := f.svc.GetByBookingID(ctx, payment.BookingID)
	require.NoError(t, err)
	assert.Equal(t, payments.StatusCompleted, stored.Status)

	f.gateway.RefundErr = nil
	refunded, err := f.svc.Refund(ctx, payment.ID)
	require.NoError(t, err)
	assert.Equal(t, payments.StatusRefunded, refunded.Status)
	assert.Equal(t, []string{"pay_9"}, f.gateway.Refunds)
	assert.Equal(t, []string{payment.ID.String(), payment.ID.String()}, f.gateway.RefundKeys)
}

func TestRefund_CardConcurrentCallersRefundOnce(t *testing.T) {
	f := newPaymentsFixture()
	ctx := context.Background()
	payment := f.capturedCard(t, uuid.New(), 5000, "pay_1")

	const callers = 8
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.Refund(ctx, payment.ID)
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, 1, f.gateway.RefundCount())

	stored, err := f.svc.GetByBookingID(ctx, payment.BookingID)
	require.NoError(t, err)
	assert.Equal(t, payments.StatusRefunded, stored.Status)
}

func TestRefund_CardClaimInFlight(t *testing.T) {
	f := newPaymentsFixture()
	ctx := context.Background()
	payment := f.capturedCard(t, uuid.New(), 5000, "pay_1")

	// another worker claimed the refund a minute ago
	f.mem.SetPaymentStatus(payment.ID, payments.StatusRefunding, f.clock.Now().Add(-time.Minute))

	result, err := f.svc.Refund(ctx, payment.ID)
	require.NoError(t, err)
	assert.Equal(t, payments.StatusRefunding, result.Status)
	assert.Zero(t, f.gateway.RefundCount())

	pending, err := f.svc.ListRefundable(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)

	// the claim is abandoned once the lease runs out
	f.clock.Advance(5 * time.Minute)
	pending, err = f.svc.ListRefundable(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, payment.ID, pending[0].ID)

	result, err = f.svc.Refund(ctx, payment.ID)
	require.NoError(t, err)
	assert.Equal(t, payments.StatusRefunded, result.Status)
	assert.Equal(t, []string{payment.ID.String()}, f.gateway.RefundKeys)
}

func TestMarkFailed_OnlyClosesPending(t *testing.T) {
	f := newPaymentsFixture()
	ctx := context.Background()
	userID := uuid.New()
	f.mem.FundWallet(userID, 20000, "INR")
	payment := f.open(t, userID, payments.MethodWallet, 10000)

	_, err := f.svc.Charge(ctx, payment.ID, payments.Intent{Method: payments.MethodWallet})
	require.NoError(t, err)

	require.NoError(t, f.svc.MarkFailed(ctx, payment.ID, "late timeout"))
	stored, err := f.svc.GetByBookingID(ctx, payment.BookingID)
	require.NoError(t, err)
	assert.Equal(t, payments.StatusCompleted, stored.Status)
	assert.Empty(t, stored.FailureReason)
}

func TestTopUp(t *testing.T) {
	f := newPaymentsFixture()
	ctx := context.Background()
	userID := uuid.New()

	_, err := f.svc.GetWallet(ctx, userID)
	assert.ErrorIs(t, err, apperrors.ErrWalletNotFound)

	wallet, err := f.svc.TopUp(ctx, userID, 2500, "inr")
	require.NoError(t, err)
	assert.Equal(t, int64(2500), wallet.Balance)
	assert.Equal(t, "INR", wallet.Currency)

	wallet, err = f.svc.TopUp(ctx, userID, 500, "INR")
	require.NoError(t, err)
	assert.Equal(t, int64(3000), wallet.Balance)

	_, err = f.svc.TopUp(ctx, userID, 0, "INR")
	assert.ErrorIs(t, err, apperrors.ErrInvalidRequest)

	stored, err := f.svc.GetWallet(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, int64(3000), stored.Balance)
	assert.Len(t, f.mem.WalletTransactions(), 2)
}
