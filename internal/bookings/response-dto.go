package bookings

import (
	"time"

	"seatbook/internal/payments"
	"seatbook/internal/reservations"
	"seatbook/internal/shared/utils/response"

	"github.com/google/uuid"
)

type BookingResponse struct {
	ID            uuid.UUID        `json:"id"`
	BookingRef    string           `json:"booking_ref"`
	EventID       uuid.UUID        `json:"event_id"`
	Status        Status           `json:"status"`
	TotalAmount   int64            `json:"total_amount"`
	Currency      string           `json:"currency"`
	TotalSeats    int              `json:"total_seats"`
	Seats         []BookedSeatInfo `json:"seats"`
	Payment       *PaymentInfo     `json:"payment,omitempty"`
	FailureReason string           `json:"failure_reason,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
	ConfirmedAt   *time.Time       `json:"confirmed_at,omitempty"`
	CancelledAt   *time.Time       `json:"cancelled_at,omitempty"`
}

type BookedSeatInfo struct {
	SeatID     uuid.UUID `json:"seat_id"`
	Section    string    `json:"section"`
	Row        string    `json:"row"`
	SeatNumber string    `json:"seat_number"`
	Price      int64     `json:"price"`
}

type PaymentInfo struct {
	ID            uuid.UUID       `json:"id"`
	Method        payments.Method `json:"method"`
	Amount        int64           `json:"amount"`
	Currency      string          `json:"currency"`
	Status        payments.Status `json:"status"`
	TransactionID string          `json:"transaction_id,omitempty"`
	FailureReason string          `json:"failure_reason,omitempty"`
	ProcessedAt   *time.Time      `json:"processed_at,omitempty"`
	RefundedAt    *time.Time      `json:"refunded_at,omitempty"`
}

type CardOrderResponse struct {
	OrderID   string                  `json:"order_id"`
	Amount    int64                   `json:"amount"`
	Currency  string                  `json:"currency"`
	ExpiresAt time.Time               `json:"expires_at"`
	Seats     []reservations.HeldSeat `json:"seats"`
}

type PaginatedBookings struct {
	Bookings   []BookingResponse   `json:"bookings"`
	Pagination response.Pagination `json:"pagination"`
}

func toBookingResponse(booking *Booking, payment *payments.Payment) BookingResponse {
	resp := BookingResponse{
		ID:            booking.ID,
		BookingRef:    booking.BookingRef,
		EventID:       booking.EventID,
		Status:        booking.Status,
		TotalAmount:   booking.TotalAmount,
		Currency:      booking.Currency,
		TotalSeats:    len(booking.Seats),
		Seats:         make([]BookedSeatInfo, 0, len(booking.Seats)),
		FailureReason: booking.FailureReason,
		CreatedAt:     booking.CreatedAt,
		ConfirmedAt:   booking.ConfirmedAt,
		CancelledAt:   booking.CancelledAt,
	}
	for _, seat := range booking.Seats {
		resp.Seats = append(resp.Seats, BookedSeatInfo{
			SeatID:     seat.SeatID,
			Section:    seat.Section,
			Row:        seat.Row,
			SeatNumber: seat.SeatNumber,
			Price:      seat.Price,
		})
	}
	if payment != nil {
		resp.Payment = &PaymentInfo{
			ID:            payment.ID,
			Method:        payment.Method,
			Amount:        payment.Amount,
			Currency:      payment.Currency,
			Status:        payment.Status,
			TransactionID: payment.ProviderTransactionID,
			FailureReason: payment.FailureReason,
			ProcessedAt:   payment.ProcessedAt,
			RefundedAt:    payment.RefundedAt,
		}
	}
	return resp
}

func toCardOrderResponse(order *CardOrder) CardOrderResponse {
	return CardOrderResponse{
		OrderID:   order.OrderID,
		Amount:    order.Amount,
		Currency:  order.Currency,
		ExpiresAt: order.ExpiresAt,
		Seats:     order.Seats,
	}
}
