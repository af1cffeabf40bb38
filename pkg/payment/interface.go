package payment

import (
	"context"
)

// STKPushProvider initiates an asynchronous mobile-money charge. The outcome arrives later
// through the provider callback, correlated by CheckoutRequestID or MerchantRequestID.
type STKPushProvider interface {
	InitiateSTKPush(ctx context.Context, request *STKPushRequest) (*STKPushResponse, error)
	Validate() error
}

type STKPushRequest struct {
	PhoneNumber      string `json:"phone_number"`
	Amount           int64  `json:"amount"`
	AccountReference string `json:"account_reference"`
	TransactionDesc  string `json:"transaction_desc"`
}

type STKPushResponse struct {
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	CustomerMessage     string `json:"CustomerMessage"`
	ErrorCode           string `json:"errorCode,omitempty"`
	ErrorMessage        string `json:"errorMessage,omitempty"`
	RequestID           string `json:"requestId,omitempty"`
}
