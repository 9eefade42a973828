package payments

import (
	"time"

	"github.com/google/uuid"
)

type Method string

const (
	MethodWallet Method = "WALLET"
	MethodCard   Method = "CARD"
)

func (m Method) IsValid() bool {
	return m == MethodWallet || m == MethodCard
}

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
	// StatusRefunding marks a card refund in flight with the gateway
	StatusRefunding Status = "REFUNDING"
	StatusRefunded  Status = "REFUNDED"
)

// Payment is 1:1 with a booking. Amounts are in minor currency units.
type Payment struct {
	ID                    uuid.UUID  `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	BookingID             uuid.UUID  `gorm:"type:uuid;uniqueIndex;not null" json:"booking_id"`
	UserID                uuid.UUID  `gorm:"type:uuid;index;not null" json:"user_id"`
	Method                Method     `gorm:"type:varchar(10);not null;check:chk_payments_method,method IN ('WALLET', 'CARD')" json:"method"`
	Amount                int64      `gorm:"not null;check:chk_payments_amount,amount > 0" json:"amount"`
	Currency              string     `gorm:"type:varchar(3);not null" json:"currency"`
	Status                Status     `gorm:"type:varchar(20);not null;default:'PENDING';check:chk_payments_status,status IN ('PENDING', 'COMPLETED', 'FAILED', 'REFUNDING', 'REFUNDED')" json:"status"`
	ProviderOrderID       string     `gorm:"type:varchar(64)" json:"provider_order_id,omitempty"`
	ProviderTransactionID string     `gorm:"type:varchar(64)" json:"provider_transaction_id,omitempty"`
	FailureReason         string     `json:"failure_reason,omitempty"`
	ProcessedAt           *time.Time `json:"processed_at,omitempty"`
	RefundedAt            *time.Time `json:"refunded_at,omitempty"`
	CreatedAt             time.Time  `json:"created_at"`
	UpdatedAt             time.Time  `json:"updated_at"`
}

func (Payment) TableName() string {
	return "payments"
}

func (p *Payment) IsCompleted() bool {
	return p.Status == StatusCompleted
}

func (p *Payment) IsRefunded() bool {
	return p.Status == StatusRefunded
}

// CardOrder is a gateway order opened for a user's held seats.
// It can pay for one booking only, of exactly Amount in Currency.
type CardOrder struct {
	ID              uuid.UUID  `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	ProviderOrderID string     `gorm:"type:varchar(64);uniqueIndex;not null" json:"provider_order_id"`
	UserID          uuid.UUID  `gorm:"type:uuid;index;not null" json:"user_id"`
	EventID         uuid.UUID  `gorm:"type:uuid;not null" json:"event_id"`
	Amount          int64      `gorm:"not null;check:chk_card_orders_amount,amount > 0" json:"amount"`
	Currency        string     `gorm:"type:varchar(3);not null" json:"currency"`
	PaymentID       *uuid.UUID `gorm:"type:uuid;uniqueIndex" json:"payment_id,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

func (CardOrder) TableName() string {
	return "card_orders"
}

// Intent is what the client presents to pay for a booking
type Intent struct {
	Method Method
	// card only: gateway order, payment and the gateway's signature over both
	OrderID   string
	PaymentID string
	Signature string
}

type Wallet struct {
	ID        uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID    uuid.UUID `gorm:"type:uuid;uniqueIndex;not null" json:"user_id"`
	Balance   int64     `gorm:"not null;default:0;check:chk_wallets_balance,balance >= 0" json:"balance"`
	Currency  string    `gorm:"type:varchar(3);not null" json:"currency"`
	Version   int64     `gorm:"not null;default:1" json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Wallet) TableName() string {
	return "wallets"
}

type TransactionType string

const (
	TransactionDebit  TransactionType = "DEBIT"
	TransactionCredit TransactionType = "CREDIT"
	TransactionTopUp  TransactionType = "TOPUP"
)

// WalletTransaction is an immutable balance movement.
// (booking_id, type) is unique so a booking is debited and refunded at most once.
type WalletTransaction struct {
	ID           uuid.UUID       `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	WalletID     uuid.UUID       `gorm:"type:uuid;index;not null" json:"wallet_id"`
	BookingID    *uuid.UUID      `gorm:"type:uuid;uniqueIndex:idx_wallet_tx_booking_type" json:"booking_id,omitempty"`
	Type         TransactionType `gorm:"type:varchar(10);not null;uniqueIndex:idx_wallet_tx_booking_type" json:"type"`
	Amount       int64           `gorm:"not null;check:chk_wallet_tx_amount,amount > 0" json:"amount"`
	BalanceAfter int64           `gorm:"not null" json:"balance_after"`
	Description  string          `json:"description,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

func (WalletTransaction) TableName() string {
	return "wallet_transactions"
}
