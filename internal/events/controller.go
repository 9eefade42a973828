package events

import (
	"fmt"
	"net/http"

	"seatbook/internal/shared/apperrors"
	"seatbook/internal/shared/utils/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type Controller interface {
	CreateEvent(c *gin.Context)
	GetEvent(c *gin.Context)
	UpdateEventStatus(c *gin.Context)
}

type controller struct {
	service Service
}

func NewController(service Service) Controller {
	return &controller{service: service}
}

func (ctrl *controller) CreateEvent(c *gin.Context) {
	var req CreateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondJSON(c, "error", http.StatusBadRequest, "Invalid request body", nil, err.Error())
		return
	}

	event, err := ctrl.service.CreateEvent(c.Request.Context(), req)
	if err != nil {
		response.RespondError(c, "Failed to create event", err)
		return
	}

	response.RespondJSON(c, "success", http.StatusCreated, "Event created successfully", event, nil)
}

func (ctrl *controller) GetEvent(c *gin.Context) {
	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, "Invalid event ID", fmt.Errorf("%w: %v", apperrors.ErrInvalidRequest, err))
		return
	}

	event, err := ctrl.service.GetEventByID(c.Request.Context(), eventID)
	if err != nil {
		response.RespondError(c, "Failed to get event", err)
		return
	}

	response.RespondJSON(c, "success", http.StatusOK, "Event retrieved successfully", event, nil)
}

type updateStatusRequest struct {
	Status EventStatus `json:"status" binding:"required"`
}

func (ctrl *controller) UpdateEventStatus(c *gin.Context) {
	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, "Invalid event ID", fmt.Errorf("%w: %v", apperrors.ErrInvalidRequest, err))
		return
	}

	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondJSON(c, "error", http.StatusBadRequest, "Invalid request body", nil, err.Error())
		return
	}

	if err := ctrl.service.UpdateStatus(c.Request.Context(), eventID, req.Status); err != nil {
		response.RespondError(c, "Failed to update event", err)
		return
	}

	response.RespondJSON(c, "success", http.StatusOK, "Event status updated successfully", gin.H{"status": req.Status}, nil)
}
