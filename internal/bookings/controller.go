package bookings

import (
	"fmt"
	"net/http"

	"seatbook/internal/shared/apperrors"
	"seatbook/internal/shared/middleware"
	"seatbook/internal/shared/utils/response"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

type Controller struct {
	service   Service
	validator *validator.Validate
}

func NewController(service Service) *Controller {
	v := validator.New()
	// the tag name is a constant; registration only fails on an empty tag
	_ = v.RegisterValidation("payment_method", ValidatePaymentMethod)

	return &Controller{
		service:   service,
		validator: v,
	}
}

// CreateBooking handles POST /api/v1/bookings
func (c *Controller) CreateBooking(ctx *gin.Context) {
	userID, ok := middleware.CurrentUserID(ctx)
	if !ok {
		response.RespondJSON(ctx, "error", http.StatusUnauthorized, "User not authenticated", nil, nil)
		return
	}

	var req CreateBookingRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid request body", nil, err.Error())
		return
	}
	if err := c.validator.Struct(&req); err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Validation failed", nil, err.Error())
		return
	}

	details, err := c.service.CreateBookingWithPayment(ctx.Request.Context(), CreateBookingInput{
		UserID:  userID,
		EventID: req.EventID,
		SeatIDs: req.SeatIDs,
		Intent:  req.Intent(),
	})
	if err != nil {
		response.RespondError(ctx, "Failed to create booking", err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusCreated, "Booking confirmed successfully",
		toBookingResponse(details.Booking, details.Payment), nil)
}

// CreateCardOrder handles POST /api/v1/bookings/card-orders
func (c *Controller) CreateCardOrder(ctx *gin.Context) {
	userID, ok := middleware.CurrentUserID(ctx)
	if !ok {
		response.RespondJSON(ctx, "error", http.StatusUnauthorized, "User not authenticated", nil, nil)
		return
	}

	var req CardOrderRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid request body", nil, err.Error())
		return
	}

	order, err := c.service.InitiateCardPayment(ctx.Request.Context(), CardOrderInput{
		UserID:  userID,
		EventID: req.EventID,
		SeatIDs: req.SeatIDs,
	})
	if err != nil {
		response.RespondError(ctx, "Failed to create card order", err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusCreated, "Card order created successfully", toCardOrderResponse(order), nil)
}

// GetBooking handles GET /api/v1/bookings/:id
func (c *Controller) GetBooking(ctx *gin.Context) {
	userID, ok := middleware.CurrentUserID(ctx)
	if !ok {
		response.RespondJSON(ctx, "error", http.StatusUnauthorized, "User not authenticated", nil, nil)
		return
	}

	bookingID, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		response.RespondError(ctx, "Invalid booking ID", fmt.Errorf("%w: %v", apperrors.ErrInvalidRequest, err))
		return
	}

	details, err := c.service.GetBookingStatus(ctx.Request.Context(), bookingID, userID)
	if err != nil {
		response.RespondError(ctx, "Failed to get booking", err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Booking retrieved successfully",
		toBookingResponse(details.Booking, details.Payment), nil)
}

// CancelBooking handles POST /api/v1/bookings/:id/cancel
func (c *Controller) CancelBooking(ctx *gin.Context) {
	userID, ok := middleware.CurrentUserID(ctx)
	if !ok {
		response.RespondJSON(ctx, "error", http.StatusUnauthorized, "User not authenticated", nil, nil)
		return
	}

	bookingID, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		response.RespondError(ctx, "Invalid booking ID", fmt.Errorf("%w: %v", apperrors.ErrInvalidRequest, err))
		return
	}

	details, err := c.service.CancelBooking(ctx.Request.Context(), bookingID, userID)
	if err != nil {
		response.RespondError(ctx, "Failed to cancel booking", err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Booking cancelled successfully",
		toBookingResponse(details.Booking, details.Payment), nil)
}

// GetUserBookings handles GET /api/v1/users/bookings
func (c *Controller) GetUserBookings(ctx *gin.Context) {
	userID, ok := middleware.CurrentUserID(ctx)
	if !ok {
		response.RespondJSON(ctx, "error", http.StatusUnauthorized, "User not authenticated", nil, nil)
		return
	}

	var query BookingListQuery
	if err := ctx.ShouldBindQuery(&query); err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid query parameters", nil, err.Error())
		return
	}
	if query.Page == 0 {
		query.Page = 1
	}
	if query.Limit == 0 {
		query.Limit = 10
	}

	bookings, total, err := c.service.ListUserBookings(ctx.Request.Context(), userID, query.Page, query.Limit)
	if err != nil {
		response.RespondError(ctx, "Failed to get user bookings", err)
		return
	}

	page := PaginatedBookings{
		Bookings:   make([]BookingResponse, 0, len(bookings)),
		Pagination: response.NewPagination(query.Page, query.Limit, total),
	}
	for i := range bookings {
		page.Bookings = append(page.Bookings, toBookingResponse(&bookings[i], nil))
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Bookings retrieved successfully", page, nil)
}
