package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"seatbook/internal/shared/apperrors"
	"seatbook/internal/shared/database"
	"seatbook/pkg/clock"
	"seatbook/pkg/logger"

	"github.com/google/uuid"
)

// refundLease is how long a REFUNDING claim is honoured before the sweep may retry it
const refundLease = 5 * time.Minute

type Service interface {
	// Open records a PENDING payment for a booking
	Open(ctx context.Context, payment *Payment) error
	// Charge captures a PENDING payment. A payment already COMPLETED is returned as is.
	Charge(ctx context.Context, paymentID uuid.UUID, intent Intent) (*Payment, error)
	// Refund returns captured money at most once. REFUNDED, PENDING and FAILED payments
	// are left untouched, as is a card refund another caller is already running.
	Refund(ctx context.Context, paymentID uuid.UUID) (*Payment, error)
	// MarkFailed closes a PENDING payment; any other status is left untouched.
	MarkFailed(ctx context.Context, paymentID uuid.UUID, reason string) error
	GetByBookingID(ctx context.Context, bookingID uuid.UUID) (*Payment, error)
	ListRefundable(ctx context.Context, limit int) ([]Payment, error)

	// CreateCardOrder opens a gateway order and records what it may pay for
	CreateCardOrder(ctx context.Context, req CardOrderRequest) (*CardOrder, error)

	TopUp(ctx context.Context, userID uuid.UUID, amount int64, currency string) (*Wallet, error)
	GetWallet(ctx context.Context, userID uuid.UUID) (*Wallet, error)
}

type CardOrderRequest struct {
	UserID   uuid.UUID
	EventID  uuid.UUID
	Amount   int64
	Currency string
	Receipt  string
}

type service struct {
	repo    Repository
	wallets WalletRepository
	gateway Gateway
	tx      database.Transactor
	clock   clock.Clock
}

func NewService(repo Repository, wallets WalletRepository, gateway Gateway, tx database.Transactor, clk clock.Clock) Service {
	return &service{
		repo:    repo,
		wallets: wallets,
		gateway: gateway,
		tx:      tx,
		clock:   clk,
	}
}

func (s *service) Open(ctx context.Context, payment *Payment) error {
	if !payment.Method.IsValid() {
		return fmt.Errorf("%w: unsupported payment method %q", apperrors.ErrInvalidRequest, payment.Method)
	}
	if payment.Amount <= 0 {
		return fmt.Errorf("%w: payment amount must be positive", apperrors.ErrInvalidRequest)
	}
	payment.Status = StatusPending
	return s.repo.Create(ctx, payment)
}

func (s *service) Charge(ctx context.Context, paymentID uuid.UUID, intent Intent) (*Payment, error) {
	payment, err := s.repo.GetByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	switch payment.Status {
	case StatusCompleted:
		return payment, nil
	case StatusPending:
	default:
		return nil, fmt.Errorf("%w: payment %s is %s", apperrors.ErrPaymentDeclined, payment.ID, payment.Status)
	}

	switch payment.Method {
	case MethodWallet:
		err = s.debitWallet(ctx, payment)
	case MethodCard:
		err = s.captureCard(ctx, payment, intent)
	default:
		err = fmt.Errorf("%w: unsupported payment method %q", apperrors.ErrPaymentDeclined, payment.Method)
	}
	if err != nil {
		return nil, err
	}

	return s.repo.GetByID(ctx, paymentID)
}

// debitWallet locks the wallet, checks the balance, debits it and completes the payment in one transaction
func (s *service) debitWallet(ctx context.Context, payment *Payment) error {
	return s.tx.WithTx(ctx, func(ctx context.Context) error {
		wallet, err := s.wallets.GetForUpdate(ctx, payment.UserID)
		if err != nil {
			if errors.Is(err, apperrors.ErrWalletNotFound) {
				return fmt.Errorf("%w: user has no wallet", apperrors.ErrInsufficientBalance)
			}
			return err
		}
		if !strings.EqualFold(wallet.Currency, payment.Currency) {
			return fmt.Errorf("%w: wallet holds %s, payment is in %s", apperrors.ErrPaymentDeclined, wallet.Currency, payment.Currency)
		}
		if wallet.Balance < payment.Amount {
			return fmt.Errorf("%w: balance %d, required %d", apperrors.ErrInsufficientBalance, wallet.Balance, payment.Amount)
		}

		balance := wallet.Balance - payment.Amount
		if err := s.wallets.UpdateBalance(ctx, wallet.ID, balance); err != nil {
			return err
		}
		entry := &WalletTransaction{
			ID:           uuid.New(),
			WalletID:     wallet.ID,
			BookingID:    &payment.BookingID,
			Type:         TransactionDebit,
			Amount:       payment.Amount,
			BalanceAfter: balance,
			Description:  "booking payment",
		}
		if err := s.wallets.AppendTransaction(ctx, entry); err != nil {
			return err
		}

		now := s.clock.Now()
		return s.repo.Transition(ctx, payment.ID, StatusPending, StatusCompleted, map[string]interface{}{
			"provider_transaction_id": "wallet_" + entry.ID.String(),
			"processed_at":            now,
		})
	})
}

// captureCard accepts a gateway payment only for the order recorded for this user and amount.
// The order is bound to the payment in the same transaction that completes it.
func (s *service) captureCard(ctx context.Context, payment *Payment, intent Intent) error {
	if intent.OrderID == "" || intent.PaymentID == "" || intent.Signature == "" {
		return fmt.Errorf("%w: card payment requires order, payment and signature", apperrors.ErrPaymentVerificationFailed)
	}

	order, err := s.repo.GetOrder(ctx, intent.OrderID)
	if errors.Is(err, apperrors.ErrCardOrderNotFound) {
		return fmt.Errorf("%w: unknown order %s", apperrors.ErrPaymentVerificationFailed, intent.OrderID)
	}
	if err != nil {
		return err
	}
	switch {
	case order.UserID != payment.UserID:
		return fmt.Errorf("%w: order belongs to another user", apperrors.ErrPaymentVerificationFailed)
	case order.Amount != payment.Amount || !strings.EqualFold(order.Currency, payment.Currency):
		return fmt.Errorf("%w: order is for %d %s, booking total is %d %s",
			apperrors.ErrPaymentVerificationFailed, order.Amount, order.Currency, payment.Amount, payment.Currency)
	case order.PaymentID != nil && *order.PaymentID != payment.ID:
		return fmt.Errorf("%w: order already paid for another booking", apperrors.ErrPaymentVerificationFailed)
	}

	valid, err := s.gateway.VerifySignature(ctx, intent.OrderID, intent.PaymentID, intent.Signature)
	if err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrPaymentDeclined, err)
	}
	if !valid {
		return fmt.Errorf("%w: signature mismatch", apperrors.ErrPaymentVerificationFailed)
	}

	return s.tx.WithTx(ctx, func(ctx context.Context) error {
		if err := s.repo.ClaimOrder(ctx, order.ID, payment.ID); err != nil {
			return err
		}
		return s.repo.Transition(ctx, payment.ID, StatusPending, StatusCompleted, map[string]interface{}{
			"provider_order_id":       intent.OrderID,
			"provider_transaction_id": intent.PaymentID,
			"processed_at":            s.clock.Now(),
		})
	})
}

func (s *service) Refund(ctx context.Context, paymentID uuid.UUID) (*Payment, error) {
	payment, err := s.repo.GetByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	switch {
	case payment.Method == MethodWallet && payment.IsCompleted():
		err = s.refundWallet(ctx, payment)
	case payment.Method == MethodCard && (payment.IsCompleted() || payment.Status == StatusRefunding):
		err = s.refundCard(ctx, payment)
	default:
		return payment, nil
	}
	// another refund holds the claim or already finished
	if errors.Is(err, apperrors.ErrStatusConflict) {
		return s.repo.GetByID(ctx, paymentID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to refund payment %s: %w", paymentID, err)
	}
	return s.repo.GetByID(ctx, paymentID)
}

// refundWallet flips the payment and credits the wallet in one transaction
func (s *service) refundWallet(ctx context.Context, payment *Payment) error {
	return s.tx.WithTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Transition(ctx, payment.ID, StatusCompleted, StatusRefunded, map[string]interface{}{
			"refunded_at": s.clock.Now(),
		}); err != nil {
			return err
		}

		wallet, err := s.wallets.GetForUpdate(ctx, payment.UserID)
		if err != nil {
			return err
		}
		balance := wallet.Balance + payment.Amount
		if err := s.wallets.UpdateBalance(ctx, wallet.ID, balance); err != nil {
			return err
		}
		return s.wallets.AppendTransaction(ctx, &WalletTransaction{
			ID:           uuid.New(),
			WalletID:     wallet.ID,
			BookingID:    &payment.BookingID,
			Type:         TransactionCredit,
			Amount:       payment.Amount,
			BalanceAfter: balance,
			Description:  "booking refund",
		})
	})
}

// refundCard claims the payment before calling the gateway so only one caller ever refunds it.
// The payment ID doubles as the gateway idempotency key for retries of an abandoned claim.
func (s *service) refundCard(ctx context.Context, payment *Payment) error {
	now := s.clock.Now()
	if err := s.repo.ClaimRefund(ctx, payment.ID, now, now.Add(-refundLease)); err != nil {
		return err
	}

	refundID, err := s.gateway.Refund(ctx, payment.ProviderTransactionID, payment.Amount, payment.ID.String())
	if err != nil {
		if releaseErr := s.repo.Transition(context.WithoutCancel(ctx), payment.ID, StatusRefunding, StatusCompleted, nil); releaseErr != nil {
			logger.GetDefault().ErrorWithContext(ctx, "failed to release refund claim", releaseErr, map[string]interface{}{
				"payment_id": payment.ID.String(),
			})
		}
		return err
	}
	logger.GetDefault().InfoWithContext(ctx, "card refund issued", map[string]interface{}{
		"payment_id": payment.ID.String(),
		"refund_id":  refundID,
	})

	return s.repo.Transition(ctx, payment.ID, StatusRefunding, StatusRefunded, map[string]interface{}{
		"refunded_at": s.clock.Now(),
	})
}

func (s *service) MarkFailed(ctx context.Context, paymentID uuid.UUID, reason string) error {
	err := s.repo.Transition(ctx, paymentID, StatusPending, StatusFailed, map[string]interface{}{
		"failure_reason": reason,
		"processed_at":   s.clock.Now(),
	})
	if errors.Is(err, apperrors.ErrStatusConflict) {
		return nil
	}
	return err
}

func (s *service) GetByBookingID(ctx context.Context, bookingID uuid.UUID) (*Payment, error) {
	return s.repo.GetByBookingID(ctx, bookingID)
}

func (s *service) ListRefundable(ctx context.Context, limit int) ([]Payment, error) {
	return s.repo.ListRefundable(ctx, s.clock.Now().Add(-refundLease), limit)
}

func (s *service) CreateCardOrder(ctx context.Context, req CardOrderRequest) (*CardOrder, error) {
	if req.Amount <= 0 {
		return nil, fmt.Errorf("%w: order amount must be positive", apperrors.ErrInvalidRequest)
	}
	currency := strings.ToUpper(req.Currency)

	providerOrderID, err := s.gateway.CreateOrder(ctx, req.Amount, currency, req.Receipt)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrPaymentDeclined, err)
	}

	order := &CardOrder{
		ID:              uuid.New(),
		ProviderOrderID: providerOrderID,
		UserID:          req.UserID,
		EventID:         req.EventID,
		Amount:          req.Amount,
		Currency:        currency,
		CreatedAt:       s.clock.Now(),
	}
	if err := s.repo.CreateOrder(ctx, order); err != nil {
		return nil, err
	}
	return order, nil
}

// TopUp credits a wallet, creating it on first use
func (s *service) TopUp(ctx context.Context, userID uuid.UUID, amount int64, currency string) (*Wallet, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("%w: top-up amount must be positive", apperrors.ErrInvalidRequest)
	}

	var result *Wallet
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		wallet, err := s.wallets.GetForUpdate(ctx, userID)
		if errors.Is(err, apperrors.ErrWalletNotFound) {
			wallet = &Wallet{ID: uuid.New(), UserID: userID, Currency: strings.ToUpper(currency)}
			err = s.wallets.Create(ctx, wallet)
		}
		if err != nil {
			return err
		}

		balance := wallet.Balance + amount
		if err := s.wallets.UpdateBalance(ctx, wallet.ID, balance); err != nil {
			return err
		}
		if err := s.wallets.AppendTransaction(ctx, &WalletTransaction{
			ID:           uuid.New(),
			WalletID:     wallet.ID,
			Type:         TransactionTopUp,
			Amount:       amount,
			BalanceAfter: balance,
			Description:  "wallet top-up",
		}); err != nil {
			return err
		}

		wallet.Balance = balance
		result = wallet
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *service) GetWallet(ctx context.Context, userID uuid.UUID) (*Wallet, error) {
	return s.wallets.GetByUserID(ctx, userID)
}
