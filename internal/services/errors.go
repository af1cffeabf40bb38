package services

import "errors"

var (
	ErrBookingNotFound = errors.New("booking not found")
	ErrInvalidBooking  = errors.New("invalid booking id")
	ErrPaymentNotFound = errors.New("payment not found")
)
