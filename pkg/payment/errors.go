package payment

import (
	"errors"
	"fmt"
)

var (
	ErrMissingConfiguration = errors.New("missing M-Pesa configuration")
	ErrMissingCredentials   = errors.New("missing M-Pesa consumer key or secret")
)

// TokenRequestError is returned when the OAuth endpoint answers with a non-2xx status
// or an unusable body.
type TokenRequestError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *TokenRequestError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("failed to obtain M-Pesa token (status %d): %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("failed to obtain M-Pesa token (status %d): %s", e.StatusCode, e.Body)
}

func (e *TokenRequestError) Unwrap() error {
	return e.Err
}

// ChargeRejectedError is returned when the STK push was not accepted.
// Message is safe to show to the payer; Payload is kept for logs only.
type ChargeRejectedError struct {
	StatusCode int
	Message    string
	Payload    []byte
	Err        error
}

func (e *ChargeRejectedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("stk push rejected (status %d): %s: %v", e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("stk push rejected (status %d): %s", e.StatusCode, e.Message)
}

func (e *ChargeRejectedError) Unwrap() error {
	return e.Err
}
