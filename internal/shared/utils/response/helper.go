package response

import (
	"errors"
	"net/http"

	"seatbook/internal/shared/apperrors"
	"seatbook/pkg/logger"

	"github.com/gin-gonic/gin"
)

func RespondJSON(c *gin.Context, status string, code int, message string, data interface{}, errors interface{}) {
	c.JSON(code, StandardApiResponse{
		Status:     status,
		StatusCode: code,
		Message:    message,
		Data:       data,
		Errors:     errors,
	})
}

// RespondError maps a domain error onto its HTTP status and the standard envelope
func RespondError(c *gin.Context, message string, err error) {
	code, kind := StatusFor(err)

	detail := ErrorDetail{Code: kind, Reason: err.Error()}
	for _, id := range apperrors.SeatIDs(err) {
		detail.SeatIDs = append(detail.SeatIDs, id.String())
	}

	if code >= http.StatusInternalServerError {
		logger.GetDefault().ErrorWithContext(c.Request.Context(), message, err, map[string]interface{}{
			"path": c.Request.URL.Path,
		})
		detail.Reason = "internal error"
	}

	RespondJSON(c, "error", code, message, nil, detail)
}

// StatusFor returns the HTTP status and machine-readable code for err
func StatusFor(err error) (int, string) {
	switch {
	case errors.Is(err, apperrors.ErrInvalidRequest):
		return http.StatusBadRequest, "invalid_request"
	case errors.Is(err, apperrors.ErrSeatUnavailable):
		return http.StatusConflict, "seat_unavailable"
	case errors.Is(err, apperrors.ErrSeatContended):
		return http.StatusConflict, "seat_contended"
	case errors.Is(err, apperrors.ErrHoldExpired):
		return http.StatusGone, "hold_expired"
	case errors.Is(err, apperrors.ErrInsufficientBalance):
		return http.StatusPaymentRequired, "insufficient_balance"
	case errors.Is(err, apperrors.ErrPaymentVerificationFailed):
		return http.StatusPaymentRequired, "payment_verification_failed"
	case errors.Is(err, apperrors.ErrPaymentDeclined):
		return http.StatusPaymentRequired, "payment_declined"
	case errors.Is(err, apperrors.ErrBookingNotFound):
		return http.StatusNotFound, "booking_not_found"
	case errors.Is(err, apperrors.ErrEventNotFound):
		return http.StatusNotFound, "event_not_found"
	case errors.Is(err, apperrors.ErrWalletNotFound):
		return http.StatusNotFound, "wallet_not_found"
	case errors.Is(err, apperrors.ErrNotBookingOwner):
		return http.StatusForbidden, "not_booking_owner"
	case errors.Is(err, apperrors.ErrEventNotBookable):
		return http.StatusUnprocessableEntity, "event_not_bookable"
	case errors.Is(err, apperrors.ErrInternalInconsistency):
		return http.StatusInternalServerError, "internal_inconsistency"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
