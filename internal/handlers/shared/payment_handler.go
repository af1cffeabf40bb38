package handlers

import (
	"io"
	"net/http"
	"strconv"
	"strings"

	"goride-payments/internal/models"
	"goride-payments/internal/services"
	"goride-payments/internal/utils"
	"goride-payments/pkg/logger"

	"github.com/gin-gonic/gin"
)

const defaultMaxCallbackBytes = 64 * 1024

type PaymentHandler struct {
	paymentService   services.PaymentService
	callbackService  services.CallbackService
	statusService    services.StatusService
	logger           *logger.Logger
	maxCallbackBytes int64
}

func NewPaymentHandler(
	paymentService services.PaymentService,
	callbackService services.CallbackService,
	statusService services.StatusService,
	logger *logger.Logger,
	maxCallbackBytes int64,
) *PaymentHandler {
	if maxCallbackBytes <= 0 {
		maxCallbackBytes = defaultMaxCallbackBytes
	}
	return &PaymentHandler{
		paymentService:   paymentService,
		callbackService:  callbackService,
		statusService:    statusService,
		logger:           logger,
		maxCallbackBytes: maxCallbackBytes,
	}
}

// InitiateCharge sends an STK push for a booking
func (h *PaymentHandler) InitiateCharge(c *gin.Context) {
	var request models.ChargeRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		utils.BadRequestResponse(c, "Invalid request body.")
		return
	}

	response, err := h.paymentService.InitiateCharge(c.Request.Context(), &request)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	utils.SuccessResponse(c, "STK push sent", response)
}

// HandleCallback receives the asynchronous STK result from M-Pesa
func (h *PaymentHandler) HandleCallback(c *gin.Context) {
	raw, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, h.maxCallbackBytes))
	if err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, utils.CodeMalformedCallback, utils.ErrInvalidCallback)
		return
	}

	ack, err := h.callbackService.HandleCallback(c.Request.Context(), raw, services.CallbackMeta{
		RemoteAddr: c.ClientIP(),
		RequestID:  c.GetString("request_id"),
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	utils.SuccessResponse(c, "Callback received", ack)
}

// GetPaymentStatus returns one payment by id
func (h *PaymentHandler) GetPaymentStatus(c *gin.Context) {
	id := strings.TrimSpace(c.Query("id"))
	if id == "" {
		utils.BadRequestResponse(c, utils.ErrMissingPaymentID)
		return
	}

	payment, err := h.statusService.GetPaymentStatus(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	utils.SuccessResponse(c, "Payment retrieved successfully", payment)
}

// GetLatestPaymentForBooking returns the newest payment for a booking, or null
func (h *PaymentHandler) GetLatestPaymentForBooking(c *gin.Context) {
	rideID, ok := parseBookingID(c)
	if !ok {
		return
	}

	payment, err := h.statusService.GetLatestPaymentForBooking(c.Request.Context(), rideID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if payment == nil {
		utils.NullableResponse(c, "No payment for booking")
		return
	}

	utils.SuccessResponse(c, "Payment retrieved successfully", payment)
}

func parseBookingID(c *gin.Context) (int64, bool) {
	rideID, err := strconv.ParseInt(c.Param("bookingId"), 10, 64)
	if err != nil || rideID <= 0 {
		utils.BadRequestResponse(c, utils.ErrInvalidBookingID)
		return 0, false
	}
	return rideID, true
}
