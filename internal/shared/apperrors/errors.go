package apperrors

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrSeatUnavailable           = errors.New("seat unavailable")
	ErrSeatContended             = errors.New("seat held by another user")
	ErrHoldExpired               = errors.New("hold expired")
	ErrInsufficientBalance       = errors.New("insufficient balance")
	ErrPaymentDeclined           = errors.New("payment declined")
	ErrPaymentVerificationFailed = errors.New("payment verification failed")
	ErrInternalInconsistency     = errors.New("internal inconsistency")

	ErrBookingNotFound   = errors.New("booking not found")
	ErrNotBookingOwner   = errors.New("booking belongs to another user")
	ErrInvalidRequest    = errors.New("invalid request")
	ErrEventNotFound     = errors.New("event not found")
	ErrEventNotBookable  = errors.New("event not open for booking")
	ErrPaymentNotFound   = errors.New("payment not found")
	ErrWalletNotFound    = errors.New("wallet not found")
	ErrCardOrderNotFound = errors.New("card order not found")

	// ErrStatusConflict is returned by conditional status updates that matched no row.
	ErrStatusConflict = errors.New("status changed concurrently")
)

// SeatError carries the seats that caused a seat-level failure.
type SeatError struct {
	Kind    error
	SeatIDs []uuid.UUID
}

func (e *SeatError) Error() string {
	ids := make([]string, len(e.SeatIDs))
	for i, id := range e.SeatIDs {
		ids[i] = id.String()
	}
	return fmt.Sprintf("%s: %s", e.Kind, strings.Join(ids, ","))
}

func (e *SeatError) Unwrap() error {
	return e.Kind
}

// Seats builds a SeatError of the given kind.
func Seats(kind error, seatIDs ...uuid.UUID) error {
	return &SeatError{Kind: kind, SeatIDs: seatIDs}
}

// SeatIDs extracts the offending seats from err, if any.
func SeatIDs(err error) []uuid.UUID {
	var seatErr *SeatError
	if errors.As(err, &seatErr) {
		return seatErr.SeatIDs
	}
	return nil
}

// IsSeatError reports whether err is one of the seat-level kinds.
func IsSeatError(err error) bool {
	return errors.Is(err, ErrSeatUnavailable) || errors.Is(err, ErrSeatContended) || errors.Is(err, ErrHoldExpired)
}

// IsPaymentError reports whether err is a payment failure.
func IsPaymentError(err error) bool {
	return errors.Is(err, ErrInsufficientBalance) ||
		errors.Is(err, ErrPaymentDeclined) ||
		errors.Is(err, ErrPaymentVerificationFailed)
}
