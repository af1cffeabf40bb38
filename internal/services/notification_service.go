package services

import (
	"context"
	"fmt"

	"goride-payments/internal/models"
	"goride-payments/internal/utils"
	"goride-payments/pkg/logger"
	"goride-payments/pkg/sms"
)

type NotificationService interface {
	SendPaymentReceipt(ctx context.Context, event *models.PaymentResolvedEvent) error
}

type notificationService struct {
	provider sms.SMSProvider
	from     string
	currency string
	enabled  bool
	logger   *logger.Logger
}

type NotificationConfig struct {
	Enabled  bool
	From     string
	Currency string
}

func NewNotificationService(provider sms.SMSProvider, config NotificationConfig, logger *logger.Logger) NotificationService {
	if provider == nil {
		provider = sms.NopProvider{}
	}
	currency := config.Currency
	if currency == "" {
		currency = utils.DefaultCurrency
	}

	return &notificationService{
		provider: provider,
		from:     config.From,
		currency: currency,
		enabled:  config.Enabled,
		logger:   logger,
	}
}

func (s *notificationService) SendPaymentReceipt(ctx context.Context, event *models.PaymentResolvedEvent) error {
	if !s.enabled || event == nil || event.Phone == "" {
		return nil
	}

	resp, err := s.provider.SendSMS(ctx, &sms.SMSRequest{
		To:      utils.E164(event.Phone),
		From:    s.from,
		Message: s.receiptMessage(event),
		Type:    "transactional",
	})
	if err != nil {
		return fmt.Errorf("failed to send receipt sms: %w", err)
	}

	s.logger.WithPaymentID(event.PaymentID).WithFields(map[string]interface{}{
		"message_id": resp.MessageID,
		"to":         logger.MaskPhone(event.Phone),
	}).Debug("Payment receipt sent")
	return nil
}

func (s *notificationService) receiptMessage(event *models.PaymentResolvedEvent) string {
	amount := utils.FormatCurrency(float64(event.Amount), s.currency)

	if event.Status == models.PaymentStatusSuccess {
		msg := fmt.Sprintf("GoRide: payment of %s for booking #%d received.", amount, event.RideID)
		if event.MpesaReceiptNumber != "" {
			msg += " M-Pesa receipt " + event.MpesaReceiptNumber + "."
		}
		return msg
	}

	reason := event.ResultDesc
	if reason == "" {
		reason = "payment was not completed"
	}
	return fmt.Sprintf("GoRide: payment of %s for booking #%d failed: %s", amount, event.RideID, reason)
}
