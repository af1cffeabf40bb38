package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"goride-payments/internal/models"
	"goride-payments/internal/repositories/interfaces"
	"goride-payments/internal/utils"
	"goride-payments/internal/validators"
	"goride-payments/pkg/events"
	"goride-payments/pkg/logger"
	"goride-payments/pkg/metrics"
)

const sideEffectTimeout = 5 * time.Second

type CallbackService interface {
	// HandleCallback reconciles one STK callback delivery. Malformed payloads return an
	// error wrapping validators.ErrMalformedCallback; store failures return other errors so
	// the provider redelivers. Duplicate and unresolvable deliveries are acknowledged.
	HandleCallback(ctx context.Context, raw []byte, meta CallbackMeta) (*models.CallbackAck, error)
}

// CallbackMeta describes the delivery for the audit log.
type CallbackMeta struct {
	RemoteAddr string
	RequestID  string
}

type callbackService struct {
	paymentRepo  interfaces.PaymentRepository
	auditRepo    interfaces.CallbackAuditRepository
	publisher    events.Publisher
	notification NotificationService
	metrics      *metrics.Metrics
	logger       *logger.Logger
}

func NewCallbackService(
	paymentRepo interfaces.PaymentRepository,
	auditRepo interfaces.CallbackAuditRepository,
	publisher events.Publisher,
	notification NotificationService,
	metrics *metrics.Metrics,
	logger *logger.Logger,
) CallbackService {
	if publisher == nil {
		publisher = events.NewMultiPublisher()
	}

	return &callbackService{
		paymentRepo:  paymentRepo,
		auditRepo:    auditRepo,
		publisher:    publisher,
		notification: notification,
		metrics:      metrics,
		logger:       logger,
	}
}

func (s *callbackService) HandleCallback(ctx context.Context, raw []byte, meta CallbackMeta) (*models.CallbackAck, error) {
	log := s.logger.WithContext(ctx)

	entry := &models.CallbackAuditLog{
		RawPayload: string(raw),
		RemoteAddr: meta.RemoteAddr,
		RequestID:  meta.RequestID,
		ReceivedAt: time.Now().UTC(),
	}

	var envelope models.STKCallbackEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, s.rejectMalformed(ctx, entry, fmt.Errorf("%w: %v", validators.ErrMalformedCallback, err))
	}

	callback, code, err := validators.ValidateSTKCallback(&envelope)
	if err != nil {
		if envelope.Body != nil && envelope.Body.StkCallback != nil {
			entry.CheckoutRequestID = envelope.Body.StkCallback.CheckoutRequestID
			entry.MerchantRequestID = envelope.Body.StkCallback.MerchantRequestID
		}
		return nil, s.rejectMalformed(ctx, entry, err)
	}

	status := models.StatusFromResultCode(code)
	entry.CheckoutRequestID = callback.CheckoutRequestID
	entry.MerchantRequestID = callback.MerchantRequestID
	entry.ResultCode = &code
	entry.ResultDesc = callback.ResultDesc
	recordMetadata(entry, callback.CallbackMetadata)

	resolution, err := s.paymentRepo.ResolvePayment(ctx, &models.ResolvePaymentParams{
		CheckoutRequestID:  callback.CheckoutRequestID,
		MerchantRequestID:  callback.MerchantRequestID,
		Status:             status,
		ResultCode:         code,
		ResultDesc:         callback.ResultDesc,
		MpesaReceiptNumber: callback.CallbackMetadata.ReceiptNumber(),
		RawPayload:         raw,
	})
	if err != nil {
		entry.Outcome = models.AuditOutcomeError
		entry.Error = err.Error()
		s.audit(ctx, entry)
		s.metrics.ObserveCallback(models.AuditOutcomeError, string(status))
		log.WithError(err).WithField("checkout_request_id", callback.CheckoutRequestID).Error("Failed to resolve payment from callback")
		return nil, err
	}

	entry.Outcome = string(resolution.Outcome)
	if resolution.Payment != nil {
		entry.PaymentID = resolution.Payment.ID
		entry.RideID = resolution.Payment.RideID
	}
	s.audit(ctx, entry)

	log.LogCallbackEvent(string(resolution.Outcome), callback.CheckoutRequestID, callback.MerchantRequestID, code)
	s.metrics.ObserveCallback(string(resolution.Outcome), string(status))

	ack := &models.CallbackAck{Status: status, Outcome: resolution.Outcome}
	if resolution.Payment != nil {
		ack.Status = resolution.Payment.Status
	}

	if resolution.Outcome == models.ResolutionApplied {
		s.afterApplied(ctx, log, resolution.Payment)
	}

	return ack, nil
}

// afterApplied runs the post-commit side effects. Their failures are only logged.
func (s *callbackService) afterApplied(ctx context.Context, log *logger.Logger, p *models.Payment) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sideEffectTimeout)
	defer cancel()

	event := resolvedEvent(p)

	log.WithPaymentID(p.ID).LogPaymentEvent(p.ID, utils.EventPaymentResolved, map[string]interface{}{
		"status":      p.Status,
		"ride_id":     p.RideID,
		"result_code": event.ResultCode,
	})

	if err := s.publisher.Publish(ctx, p.ID, events.NewEnvelope(utils.EventPaymentResolved, event)); err != nil {
		log.WithError(err).WithPaymentID(p.ID).Warn("Failed to publish payment resolved event")
	}

	if s.notification != nil {
		if err := s.notification.SendPaymentReceipt(ctx, event); err != nil {
			log.WithError(err).WithPaymentID(p.ID).Warn("Failed to send payment receipt")
		}
	}
}

func (s *callbackService) rejectMalformed(ctx context.Context, entry *models.CallbackAuditLog, err error) error {
	entry.Outcome = models.AuditOutcomeMalformed
	entry.Error = err.Error()
	s.audit(ctx, entry)
	s.metrics.ObserveCallback(models.AuditOutcomeMalformed, "")
	s.logger.WithContext(ctx).WithError(err).Warn("Rejected malformed callback")
	return err
}

func (s *callbackService) audit(ctx context.Context, entry *models.CallbackAuditLog) {
	if s.auditRepo == nil {
		return
	}
	if err := s.auditRepo.Insert(ctx, entry); err != nil {
		s.logger.WithContext(ctx).WithError(err).Warn("Failed to store callback audit log")
	}
}

func resolvedEvent(p *models.Payment) *models.PaymentResolvedEvent {
	event := &models.PaymentResolvedEvent{
		PaymentID: p.ID,
		RideID:    p.RideID,
		Status:    p.Status,
		Amount:    p.Amount,
		Phone:     p.Phone,
	}
	if p.ResultCode != nil {
		event.ResultCode = *p.ResultCode
	}
	if p.ResultDesc != nil {
		event.ResultDesc = *p.ResultDesc
	}
	if p.MpesaReceiptNumber != nil {
		event.MpesaReceiptNumber = *p.MpesaReceiptNumber
	}
	if p.ResolvedAt != nil {
		event.ResolvedAt = *p.ResolvedAt
	} else {
		event.ResolvedAt = time.Now().UTC()
	}
	return event
}

// recordMetadata copies the success-only metadata items into the audit entry.
func recordMetadata(entry *models.CallbackAuditLog, metadata *models.CallbackMetadata) {
	entry.ReceiptNumber = metadata.ReceiptNumber()
	if amount, ok := metadata.Int64("Amount"); ok {
		entry.Amount = amount
	}
	if value, ok := metadata.Int64("TransactionDate"); ok {
		if ts, err := utils.ParseMpesaTimestamp(value, utils.MpesaLocation()); err == nil {
			ts = ts.UTC()
			entry.TransactionDate = &ts
		}
	}
}
