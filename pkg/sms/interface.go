package sms

import (
	"context"
	"errors"
)

var ErrProviderDisabled = errors.New("sms provider disabled")

type SMSProvider interface {
	SendSMS(ctx context.Context, request *SMSRequest) (*SMSResponse, error)
}

type SMSRequest struct {
	To      string `json:"to"`
	From    string `json:"from"`
	Message string `json:"message"`
	Type    string `json:"type"` // transactional, promotional
}

type SMSResponse struct {
	MessageID string `json:"message_id"`
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
}

// NopProvider is used when no SMS provider is configured.
type NopProvider struct{}

func (NopProvider) SendSMS(ctx context.Context, request *SMSRequest) (*SMSResponse, error) {
	return nil, ErrProviderDisabled
}
