package bookings

import (
	"seatbook/internal/payments"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

type CreateBookingRequest struct {
	EventID       uuid.UUID   `json:"event_id" binding:"required"`
	SeatIDs       []uuid.UUID `json:"seat_ids" binding:"required,min=1,max=10,unique,dive,required"`
	PaymentMethod string      `json:"payment_method" binding:"required" validate:"payment_method"`

	// card only
	OrderID   string `json:"order_id" binding:"required_if=PaymentMethod CARD"`
	PaymentID string `json:"payment_id" binding:"required_if=PaymentMethod CARD"`
	Signature string `json:"signature" binding:"required_if=PaymentMethod CARD"`
}

func (r CreateBookingRequest) Intent() payments.Intent {
	return payments.Intent{
		Method:    payments.Method(r.PaymentMethod),
		OrderID:   r.OrderID,
		PaymentID: r.PaymentID,
		Signature: r.Signature,
	}
}

type CardOrderRequest struct {
	EventID uuid.UUID   `json:"event_id" binding:"required"`
	SeatIDs []uuid.UUID `json:"seat_ids" binding:"required,min=1,max=10,unique,dive,required"`
}

type BookingListQuery struct {
	Page  int `form:"page" binding:"omitempty,min=1"`
	Limit int `form:"limit" binding:"omitempty,min=1,max=100"`
}

// ValidatePaymentMethod backs the payment_method validate tag
func ValidatePaymentMethod(fl validator.FieldLevel) bool {
	return payments.Method(fl.Field().String()).IsValid()
}
