package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"seatbook/internal/shared/apperrors"
	"seatbook/internal/shared/database"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Repository interface {
	Create(ctx context.Context, payment *Payment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Payment, error)
	GetByBookingID(ctx context.Context, bookingID uuid.UUID) (*Payment, error)
	// Transition moves a payment from one status to another, failing with
	// apperrors.ErrStatusConflict when the row is no longer in from.
	Transition(ctx context.Context, id uuid.UUID, from, to Status, fields map[string]interface{}) error
	// ClaimRefund moves a payment to REFUNDING. A REFUNDING payment last touched before
	// staleBefore is reclaimed; anything else fails with apperrors.ErrStatusConflict.
	ClaimRefund(ctx context.Context, id uuid.UUID, now, staleBefore time.Time) error
	// ListRefundable returns captured payments whose booking has been cancelled,
	// plus refunds abandoned in REFUNDING before staleBefore.
	ListRefundable(ctx context.Context, staleBefore time.Time, limit int) ([]Payment, error)

	CreateOrder(ctx context.Context, order *CardOrder) error
	GetOrder(ctx context.Context, providerOrderID string) (*CardOrder, error)
	// ClaimOrder binds an unused order to the payment it pays for
	ClaimOrder(ctx context.Context, orderID, paymentID uuid.UUID) error
}

type WalletRepository interface {
	GetByUserID(ctx context.Context, userID uuid.UUID) (*Wallet, error)
	// GetForUpdate locks the wallet row until the surrounding transaction ends.
	GetForUpdate(ctx context.Context, userID uuid.UUID) (*Wallet, error)
	Create(ctx context.Context, wallet *Wallet) error
	UpdateBalance(ctx context.Context, walletID uuid.UUID, balance int64) error
	AppendTransaction(ctx context.Context, entry *WalletTransaction) error
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, payment *Payment) error {
	if err := database.Conn(ctx, r.db).Create(payment).Error; err != nil {
		return fmt.Errorf("failed to create payment: %w", err)
	}
	return nil
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*Payment, error) {
	var payment Payment
	if err := database.Conn(ctx, r.db).First(&payment, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrPaymentNotFound
		}
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}
	return &payment, nil
}

func (r *repository) GetByBookingID(ctx context.Context, bookingID uuid.UUID) (*Payment, error) {
	var payment Payment
	if err := database.Conn(ctx, r.db).First(&payment, "booking_id = ?", bookingID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrPaymentNotFound
		}
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}
	return &payment, nil
}

func (r *repository) Transition(ctx context.Context, id uuid.UUID, from, to Status, fields map[string]interface{}) error {
	updates := map[string]interface{}{"status": to}
	for k, v := range fields {
		updates[k] = v
	}

	result := database.Conn(ctx, r.db).Model(&Payment{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("%w: provider payment already captured", apperrors.ErrPaymentVerificationFailed)
	}
	if result.Error != nil {
		return fmt.Errorf("failed to update payment: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: payment %s is not %s", apperrors.ErrStatusConflict, id, from)
	}
	return nil
}

func (r *repository) ClaimRefund(ctx context.Context, id uuid.UUID, now, staleBefore time.Time) error {
	result := database.Conn(ctx, r.db).Model(&Payment{}).
		Where("id = ? AND (status = ? OR (status = ? AND updated_at < ?))", id, StatusCompleted, StatusRefunding, staleBefore).
		Updates(map[string]interface{}{
			"status":     StatusRefunding,
			"updated_at": now,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to claim refund: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: refund of payment %s already in progress", apperrors.ErrStatusConflict, id)
	}
	return nil
}

func (r *repository) ListRefundable(ctx context.Context, staleBefore time.Time, limit int) ([]Payment, error) {
	var pending []Payment
	err := database.Conn(ctx, r.db).
		Joins("JOIN bookings ON bookings.id = payments.booking_id").
		Where("(payments.status = ? AND bookings.status = ?) OR (payments.status = ? AND payments.updated_at < ?)",
			StatusCompleted, "CANCELLED", StatusRefunding, staleBefore).
		Order("payments.updated_at").
		Limit(limit).
		Find(&pending).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list refundable payments: %w", err)
	}
	return pending, nil
}

func (r *repository) CreateOrder(ctx context.Context, order *CardOrder) error {
	if err := database.Conn(ctx, r.db).Create(order).Error; err != nil {
		return fmt.Errorf("failed to record card order: %w", err)
	}
	return nil
}

func (r *repository) GetOrder(ctx context.Context, providerOrderID string) (*CardOrder, error) {
	var order CardOrder
	if err := database.Conn(ctx, r.db).First(&order, "provider_order_id = ?", providerOrderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrCardOrderNotFound
		}
		return nil, fmt.Errorf("failed to get card order: %w", err)
	}
	return &order, nil
}

func (r *repository) ClaimOrder(ctx context.Context, orderID, paymentID uuid.UUID) error {
	result := database.Conn(ctx, r.db).Model(&CardOrder{}).
		Where("id = ? AND payment_id IS NULL", orderID).
		Update("payment_id", paymentID)
	if result.Error != nil {
		return fmt.Errorf("failed to claim card order: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: card order %s already paid for another booking", apperrors.ErrPaymentVerificationFailed, orderID)
	}
	return nil
}

type walletRepository struct {
	db *gorm.DB
}

func NewWalletRepository(db *gorm.DB) WalletRepository {
	return &walletRepository{db: db}
}

func (r *walletRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*Wallet, error) {
	return r.get(database.Conn(ctx, r.db), userID)
}

func (r *walletRepository) GetForUpdate(ctx context.Context, userID uuid.UUID) (*Wallet, error) {
	return r.get(database.Conn(ctx, r.db).Clauses(clause.Locking{Strength: "UPDATE"}), userID)
}

func (r *walletRepository) get(query *gorm.DB, userID uuid.UUID) (*Wallet, error) {
	var wallet Wallet
	if err := query.First(&wallet, "user_id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrWalletNotFound
		}
		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}
	return &wallet, nil
}

func (r *walletRepository) Create(ctx context.Context, wallet *Wallet) error {
	if err := database.Conn(ctx, r.db).Create(wallet).Error; err != nil {
		return fmt.Errorf("failed to create wallet: %w", err)
	}
	return nil
}

func (r *walletRepository) UpdateBalance(ctx context.Context, walletID uuid.UUID, balance int64) error {
	result := database.Conn(ctx, r.db).Model(&Wallet{}).
		Where("id = ?", walletID).
		Updates(map[string]interface{}{
			"balance": balance,
			"version": gorm.Expr("version + 1"),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update wallet balance: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrWalletNotFound
	}
	return nil
}

func (r *walletRepository) AppendTransaction(ctx context.Context, entry *WalletTransaction) error {
	if err := database.Conn(ctx, r.db).Create(entry).Error; err != nil {
		return fmt.Errorf("failed to record wallet transaction: %w", err)
	}
	return nil
}
