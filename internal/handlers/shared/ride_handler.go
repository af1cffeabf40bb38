package handlers

import (
	"goride-payments/internal/models"
	"goride-payments/internal/services"
	"goride-payments/internal/utils"
	"goride-payments/pkg/logger"

	"github.com/gin-gonic/gin"
)

type RideHandler struct {
	rideService   services.RideService
	statusService services.StatusService
	logger        *logger.Logger
}

func NewRideHandler(rideService services.RideService, statusService services.StatusService, logger *logger.Logger) *RideHandler {
	return &RideHandler{
		rideService:   rideService,
		statusService: statusService,
		logger:        logger,
	}
}

// CreateRide stores a new booking awaiting payment
func (h *RideHandler) CreateRide(c *gin.Context) {
	var request models.CreateRideRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		utils.BadRequestResponse(c, "Invalid request body.")
		return
	}

	ride, err := h.rideService.CreateRide(c.Request.Context(), &request)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	utils.CreatedResponse(c, "Ride created successfully", ride)
}

func (h *RideHandler) GetRide(c *gin.Context) {
	rideID, ok := parseBookingID(c)
	if !ok {
		return
	}

	ride, err := h.rideService.GetRide(c.Request.Context(), rideID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	utils.SuccessResponse(c, "Ride retrieved successfully", ride)
}

// GetBookingStatus returns the booking's payment status, or null for an unknown booking
func (h *RideHandler) GetBookingStatus(c *gin.Context) {
	rideID, ok := parseBookingID(c)
	if !ok {
		return
	}

	status, err := h.statusService.GetBookingPaymentStatus(c.Request.Context(), rideID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if status == nil {
		utils.NullableResponse(c, "Booking not found")
		return
	}

	utils.SuccessResponse(c, "Booking status retrieved successfully", status)
}
