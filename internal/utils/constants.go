package utils

import "time"

const (
	AppName = "goride-payments"

	DefaultCurrency = "KES"
	DefaultTimeZone = "Africa/Nairobi"

	// Client polling defaults
	DefaultPollInterval    = 5 * time.Second
	DefaultPollMaxAttempts = 12

	// M-Pesa field limits
	MpesaAccountReferenceMax = 12
	MpesaTransactionDescMax  = 13
)

// HTTP Status Messages
const (
	StatusSuccess = "success"
	StatusError   = "error"
	StatusFailed  = "failed"
)

// Error Messages
const (
	ErrInvalidInput      = "invalid input"
	ErrInternalServer    = "internal server error"
	ErrNotFound          = "not found"
	ErrValidationFailed  = "validation failed"
	ErrPaymentFailed     = "payment failed"
	ErrRideNotFound      = "ride not found"
	ErrMissingFields     = "Missing required fields."
	ErrInvalidPhone      = "Invalid phone format."
	ErrInvalidAmountMsg  = "Invalid amount."
	ErrMissingMpesaCfg   = "Missing M-Pesa configuration."
	ErrUpstreamAuth      = "Unable to authenticate with M-Pesa."
	ErrChargeRejected    = "STK push failed."
	ErrInvalidCallback   = "Invalid callback payload."
	ErrMissingPaymentID  = "Missing payment id."
	ErrInvalidBookingID  = "Invalid booking ID."
	ErrPaymentNotFound   = "Payment not found."
	ErrBookingNotFound   = "Booking not found."
	ErrUnableToInitiate  = "Unable to initiate M-Pesa payment."
	ErrCallbackNotStored = "Callback could not be processed."
)

// Cache Keys
const (
	CacheMpesaTokenKey = "mpesa:access_token"
)

// Event Types
const (
	EventPaymentInitiated = "payment.initiated"
	EventPaymentResolved  = "payment.resolved"
	EventRideCreated      = "ride.created"
)

// Pub/sub channels
const (
	ChannelPaymentResolved = "payments:resolved"
)

// Error codes carried in APIError.Code
const (
	CodeBadRequest        = "BAD_REQUEST"
	CodeInvalidPhone      = "INVALID_PHONE_FORMAT"
	CodeInvalidAmount     = "INVALID_AMOUNT"
	CodeMissingFields     = "MISSING_FIELDS"
	CodeBookingNotFound   = "BOOKING_NOT_FOUND"
	CodeMissingConfig     = "MISSING_CONFIGURATION"
	CodeUpstreamAuth      = "UPSTREAM_AUTH_FAILURE"
	CodeUpstreamRejected  = "UPSTREAM_REJECTED"
	CodeMalformedCallback = "MALFORMED_CALLBACK"
	CodeNotFound          = "NOT_FOUND"
	CodeInternal          = "INTERNAL_ERROR"
	CodeValidationFailed  = "VALIDATION_ERROR"
)
