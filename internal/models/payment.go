package models

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"
)

type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "PENDING"
	PaymentStatusSuccess PaymentStatus = "SUCCESS"
	PaymentStatusFailed  PaymentStatus = "FAILED"
)

func (s PaymentStatus) IsTerminal() bool {
	return s == PaymentStatusSuccess || s == PaymentStatusFailed
}

// StatusFromResultCode maps an STK result code onto the payment vocabulary.
func StatusFromResultCode(code int) PaymentStatus {
	if code == 0 {
		return PaymentStatusSuccess
	}
	return PaymentStatusFailed
}

// Payment is one STK push attempt for a ride.
type Payment struct {
	ID                 string          `json:"id"`
	RideID             int64           `json:"ride_id"`
	Phone              string          `json:"phone"`
	Amount             int64           `json:"amount"`
	CheckoutRequestID  *string         `json:"checkout_request_id"`
	MerchantRequestID  *string         `json:"merchant_request_id"`
	ResultCode         *int            `json:"result_code"`
	ResultDesc         *string         `json:"result_desc"`
	MpesaReceiptNumber *string         `json:"mpesa_receipt_number,omitempty"`
	Status             PaymentStatus   `json:"status"`
	RawCallbackPayload json.RawMessage `json:"-"`
	CreatedAt          time.Time       `json:"created_at"`
	ResolvedAt         *time.Time      `json:"resolved_at,omitempty"`
}

// NumericString accepts a JSON number, a numeric string or null and keeps the raw text.
// Parsing is left to the caller so a bad value maps to a domain error instead of a decode error.
type NumericString string

func (n *NumericString) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("null")) {
		*n = ""
		return nil
	}

	var s string
	if len(trimmed) > 0 && trimmed[0] == '"' {
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
	} else {
		s = string(trimmed)
	}

	*n = NumericString(strings.TrimSpace(s))
	return nil
}

func (n NumericString) String() string {
	return string(n)
}

// ChargeRequest is the body of POST /payments/charge.
type ChargeRequest struct {
	BookingID    NumericString `json:"bookingId" validate:"required"`
	Phone        string        `json:"phone" validate:"required"`
	Amount       NumericString `json:"amount" validate:"required"`
	DisplayName  string        `json:"displayName" validate:"omitempty,max=100"`
	CustomerName string        `json:"customerName" validate:"omitempty,max=100"`
}

// Name returns the display name, accepting the older customerName field.
func (r *ChargeRequest) Name() string {
	if name := strings.TrimSpace(r.DisplayName); name != "" {
		return name
	}
	return strings.TrimSpace(r.CustomerName)
}

type ChargeResponse struct {
	PaymentID         string `json:"paymentId"`
	CheckoutRequestID string `json:"checkoutRequestId"`
	MerchantRequestID string `json:"merchantRequestId"`
	CustomerMessage   string `json:"customerMessage,omitempty"`
}

// PaymentResolvedEvent is published once per applied callback.
type PaymentResolvedEvent struct {
	PaymentID          string        `json:"paymentId"`
	RideID             int64         `json:"rideId"`
	Status             PaymentStatus `json:"status"`
	ResultCode         int           `json:"resultCode"`
	ResultDesc         string        `json:"resultDesc"`
	Amount             int64         `json:"amount"`
	Phone              string        `json:"phone"`
	MpesaReceiptNumber string        `json:"mpesaReceiptNumber,omitempty"`
	ResolvedAt         time.Time     `json:"resolvedAt"`
}
