package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// CallbackAuditLog is an append-only copy of every callback delivery, stored in MongoDB.
type CallbackAuditLog struct {
	ID                primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	CheckoutRequestID string             `json:"checkout_request_id" bson:"checkout_request_id"`
	MerchantRequestID string             `json:"merchant_request_id" bson:"merchant_request_id"`
	ResultCode        *int               `json:"result_code" bson:"result_code"`
	ResultDesc        string             `json:"result_desc" bson:"result_desc"`
	ReceiptNumber     string             `json:"mpesa_receipt_number,omitempty" bson:"mpesa_receipt_number,omitempty"`
	Amount            int64              `json:"amount,omitempty" bson:"amount,omitempty"`
	TransactionDate   *time.Time         `json:"transaction_date,omitempty" bson:"transaction_date,omitempty"`
	Outcome           string             `json:"outcome" bson:"outcome"`
	PaymentID         string             `json:"payment_id,omitempty" bson:"payment_id,omitempty"`
	RideID            int64              `json:"ride_id,omitempty" bson:"ride_id,omitempty"`
	Error             string             `json:"error,omitempty" bson:"error,omitempty"`
	RawPayload        string             `json:"raw_payload" bson:"raw_payload"`
	RemoteAddr        string             `json:"remote_addr" bson:"remote_addr"`
	RequestID         string             `json:"request_id" bson:"request_id"`
	ReceivedAt        time.Time          `json:"received_at" bson:"received_at"`
}

const (
	AuditOutcomeMalformed = "malformed"
	AuditOutcomeError     = "error"
)
