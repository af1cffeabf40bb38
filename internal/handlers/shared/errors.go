package handlers

import (
	"errors"
	"net/http"

	"goride-payments/internal/services"
	"goride-payments/internal/utils"
	"goride-payments/internal/validators"
	"goride-payments/pkg/logger"
	"goride-payments/pkg/payment"

	"github.com/gin-gonic/gin"
)

// respondError maps service errors onto the response envelope. Unclassified errors
// become a generic 500 and are logged; their text never reaches the client.
func respondError(c *gin.Context, log *logger.Logger, err error) {
	var (
		validationErrs validators.ValidationErrors
		tokenErr       *payment.TokenRequestError
		rejected       *payment.ChargeRejectedError
	)

	switch {
	case errors.Is(err, validators.ErrMissingFields):
		utils.ErrorResponse(c, http.StatusBadRequest, utils.CodeMissingFields, utils.ErrMissingFields)
	case errors.Is(err, validators.ErrInvalidPhoneFormat):
		utils.ErrorResponse(c, http.StatusBadRequest, utils.CodeInvalidPhone, utils.ErrInvalidPhone)
	case errors.Is(err, validators.ErrInvalidAmount):
		utils.ErrorResponse(c, http.StatusBadRequest, utils.CodeInvalidAmount, utils.ErrInvalidAmountMsg)
	case errors.Is(err, validators.ErrMalformedCallback):
		utils.ErrorResponse(c, http.StatusBadRequest, utils.CodeMalformedCallback, utils.ErrInvalidCallback)
	case errors.As(err, &validationErrs):
		utils.ValidationErrorResponse(c, validationErrs.Map())
	case errors.Is(err, services.ErrInvalidBooking):
		utils.ErrorResponse(c, http.StatusBadRequest, utils.CodeBadRequest, utils.ErrInvalidBookingID)
	case errors.Is(err, services.ErrBookingNotFound):
		utils.ErrorResponse(c, http.StatusBadRequest, utils.CodeBookingNotFound, utils.ErrBookingNotFound)
	case errors.Is(err, services.ErrPaymentNotFound):
		utils.ErrorResponse(c, http.StatusNotFound, utils.CodeNotFound, utils.ErrPaymentNotFound)
	case errors.Is(err, payment.ErrMissingConfiguration), errors.Is(err, payment.ErrMissingCredentials):
		log.WithContext(c.Request.Context()).WithError(err).Error("M-Pesa is not configured")
		utils.ErrorResponse(c, http.StatusInternalServerError, utils.CodeMissingConfig, utils.ErrMissingMpesaCfg)
	case errors.As(err, &tokenErr):
		utils.ErrorResponse(c, http.StatusBadGateway, utils.CodeUpstreamAuth, utils.ErrUpstreamAuth)
	case errors.As(err, &rejected):
		message := rejected.Message
		if message == "" {
			message = utils.ErrChargeRejected
		}
		utils.ErrorResponse(c, http.StatusBadGateway, utils.CodeUpstreamRejected, message)
	default:
		log.WithContext(c.Request.Context()).WithError(err).WithField("path", c.FullPath()).Error("Request failed")
		utils.InternalServerErrorResponse(c)
	}
}
