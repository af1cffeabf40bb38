package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"goride-payments/internal/models"
	"goride-payments/internal/repositories/interfaces"
	"goride-payments/internal/utils"
	"goride-payments/internal/validators"
	"goride-payments/pkg/events"
	"goride-payments/pkg/logger"
	"goride-payments/pkg/metrics"
	"goride-payments/pkg/payment"
)

type PaymentService interface {
	// InitiateCharge sends an STK push for a booking and records one PENDING payment.
	// Nothing is stored unless the provider accepted the push.
	InitiateCharge(ctx context.Context, req *models.ChargeRequest) (*models.ChargeResponse, error)
}

type paymentService struct {
	provider    payment.STKPushProvider
	paymentRepo interfaces.PaymentRepository
	rideRepo    interfaces.RideRepository
	publisher   events.Publisher
	metrics     *metrics.Metrics
	logger      *logger.Logger
	defaultDesc string
}

type PaymentServiceConfig struct {
	DefaultDescription string
}

func NewPaymentService(
	provider payment.STKPushProvider,
	paymentRepo interfaces.PaymentRepository,
	rideRepo interfaces.RideRepository,
	publisher events.Publisher,
	metrics *metrics.Metrics,
	logger *logger.Logger,
	config PaymentServiceConfig,
) PaymentService {
	if publisher == nil {
		publisher = events.NewMultiPublisher()
	}
	desc := config.DefaultDescription
	if desc == "" {
		desc = payment.DefaultTransactionDesc
	}

	return &paymentService{
		provider:    provider,
		paymentRepo: paymentRepo,
		rideRepo:    rideRepo,
		publisher:   publisher,
		metrics:     metrics,
		logger:      logger,
		defaultDesc: desc,
	}
}

func (s *paymentService) InitiateCharge(ctx context.Context, req *models.ChargeRequest) (*models.ChargeResponse, error) {
	if err := validators.ValidateChargeRequest(req); err != nil {
		return nil, err
	}

	phone, ok := utils.NormalizeMpesaPhone(req.Phone)
	if !ok {
		return nil, validators.ErrInvalidPhoneFormat
	}

	amount, err := utils.ParseWholeAmount(req.Amount.String())
	if err != nil {
		return nil, validators.ErrInvalidAmount
	}

	rideID, err := strconv.ParseInt(strings.TrimSpace(req.BookingID.String()), 10, 64)
	if err != nil || rideID <= 0 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidBooking, req.BookingID)
	}

	if err := s.provider.Validate(); err != nil {
		return nil, err
	}

	exists, err := s.rideRepo.Exists(ctx, rideID)
	if err != nil {
		return nil, fmt.Errorf("failed to check booking: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: %d", ErrBookingNotFound, rideID)
	}

	log := s.logger.WithContext(ctx).WithRideID(rideID)
	s.warnIfPending(ctx, log, rideID)

	desc := req.Name()
	if desc == "" {
		desc = s.defaultDesc
	}

	started := time.Now()
	resp, err := s.provider.InitiateSTKPush(ctx, &payment.STKPushRequest{
		PhoneNumber:      phone,
		Amount:           amount,
		AccountReference: strconv.FormatInt(rideID, 10),
		TransactionDesc:  desc,
	})
	s.metrics.ObserveSTKPush(time.Since(started))
	if err != nil {
		s.metrics.ObserveCharge(chargeOutcome(err))
		s.logChargeFailure(log, err)
		return nil, err
	}

	record := &models.Payment{
		RideID:            rideID,
		Phone:             phone,
		Amount:            amount,
		CheckoutRequestID: optionalString(resp.CheckoutRequestID),
		MerchantRequestID: optionalString(resp.MerchantRequestID),
		Status:            models.PaymentStatusPending,
	}
	if err := s.paymentRepo.Create(ctx, record); err != nil {
		s.metrics.ObserveCharge("store_error")
		// The payer was already prompted; the callback for this push will be unresolvable.
		log.WithError(err).WithFields(map[string]interface{}{
			"checkout_request_id": resp.CheckoutRequestID,
			"merchant_request_id": resp.MerchantRequestID,
		}).Error("STK push accepted but payment could not be stored")
		return nil, fmt.Errorf("failed to record payment: %w", err)
	}

	s.metrics.ObserveCharge("initiated")
	log.LogPaymentEvent(record.ID, utils.EventPaymentInitiated, map[string]interface{}{
		"amount":              amount,
		"phone":               logger.MaskPhone(phone),
		"checkout_request_id": resp.CheckoutRequestID,
	})

	if err := s.publisher.Publish(ctx, record.ID, events.NewEnvelope(utils.EventPaymentInitiated, record)); err != nil {
		log.WithError(err).Warn("Failed to publish payment initiated event")
	}

	return &models.ChargeResponse{
		PaymentID:         record.ID,
		CheckoutRequestID: resp.CheckoutRequestID,
		MerchantRequestID: resp.MerchantRequestID,
		CustomerMessage:   resp.CustomerMessage,
	}, nil
}

// warnIfPending flags a booking charged again while its previous push is unresolved.
// The new charge still proceeds.
func (s *paymentService) warnIfPending(ctx context.Context, log *logger.Logger, rideID int64) {
	latest, err := s.paymentRepo.GetLatestByRideID(ctx, rideID)
	if err != nil || latest.Status != models.PaymentStatusPending {
		return
	}
	log.WithPaymentID(latest.ID).WithField("phone", logger.MaskPhone(latest.Phone)).
		Warn("Booking already has a pending payment")
}

func (s *paymentService) logChargeFailure(log *logger.Logger, err error) {
	var rejected *payment.ChargeRejectedError
	if errors.As(err, &rejected) {
		log.WithFields(map[string]interface{}{
			"status_code": rejected.StatusCode,
			"payload":     string(rejected.Payload),
		}).WithError(err).Warn("STK push rejected")
		return
	}
	log.WithError(err).Error("STK push failed")
}

func chargeOutcome(err error) string {
	var tokenErr *payment.TokenRequestError
	var rejected *payment.ChargeRejectedError
	switch {
	case errors.As(err, &tokenErr), errors.Is(err, payment.ErrMissingCredentials):
		return "auth_failure"
	case errors.As(err, &rejected):
		return "rejected"
	default:
		return "error"
	}
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
