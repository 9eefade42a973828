package reservations

import (
	"fmt"
	"net/http"
	"time"

	"seatbook/internal/shared/apperrors"
	"seatbook/internal/shared/middleware"
	"seatbook/internal/shared/utils/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type Controller struct {
	service Service
}

func NewController(service Service) *Controller {
	return &Controller{service: service}
}

func (c *Controller) HoldSeats(ctx *gin.Context) {
	userID, ok := middleware.CurrentUserID(ctx)
	if !ok {
		response.RespondJSON(ctx, "error", http.StatusUnauthorized, "User not authenticated", nil, nil)
		return
	}

	var req HoldSeatsRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid request data", nil, err.Error())
		return
	}

	result, err := c.service.RequestHold(ctx.Request.Context(), HoldRequest{
		EventID:  req.EventID,
		HolderID: userID,
		SeatIDs:  req.SeatIDs,
	})
	if err != nil {
		response.RespondError(ctx, "Failed to hold seats", err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Seats held successfully", result, nil)
}

func (c *Controller) ReleaseSeats(ctx *gin.Context) {
	userID, ok := middleware.CurrentUserID(ctx)
	if !ok {
		response.RespondJSON(ctx, "error", http.StatusUnauthorized, "User not authenticated", nil, nil)
		return
	}

	var req ReleaseSeatsRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid request data", nil, err.Error())
		return
	}

	released, err := c.service.ReleaseHold(ctx.Request.Context(), userID, req.SeatIDs)
	if err != nil {
		response.RespondError(ctx, "Failed to release seats", err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Seats released successfully", ReleaseResponse{Released: released}, nil)
}

func (c *Controller) GetHolds(ctx *gin.Context) {
	userID, ok := middleware.CurrentUserID(ctx)
	if !ok {
		response.RespondJSON(ctx, "error", http.StatusUnauthorized, "User not authenticated", nil, nil)
		return
	}

	entries, err := c.service.GetHolds(ctx.Request.Context(), userID)
	if err != nil {
		response.RespondError(ctx, "Failed to get holds", err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Holds retrieved successfully", toHoldsResponse(entries, time.Now()), nil)
}

func (c *Controller) GetSeatMap(ctx *gin.Context) {
	eventID, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		response.RespondError(ctx, "Invalid event ID", fmt.Errorf("%w: %v", apperrors.ErrInvalidRequest, err))
		return
	}

	viewerID, _ := middleware.CurrentUserID(ctx)
	view, err := c.service.SeatMap(ctx.Request.Context(), eventID, viewerID)
	if err != nil {
		response.RespondError(ctx, "Failed to get seat map", err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Seat map retrieved successfully", view, nil)
}
