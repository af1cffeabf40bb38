package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"goride-payments/internal/models"
	"goride-payments/internal/repositories/interfaces"
)

// StatusService serves the read side used by polling clients. Reads go straight to the
// database.
type StatusService interface {
	GetPaymentStatus(ctx context.Context, paymentID string) (*models.Payment, error)
	// GetLatestPaymentForBooking returns nil, nil when the booking has no payment.
	GetLatestPaymentForBooking(ctx context.Context, rideID int64) (*models.Payment, error)
	// GetBookingPaymentStatus returns nil, nil when the booking does not exist.
	GetBookingPaymentStatus(ctx context.Context, rideID int64) (*models.RidePaymentStatus, error)
}

type statusService struct {
	paymentRepo interfaces.PaymentRepository
	rideRepo    interfaces.RideRepository
}

func NewStatusService(paymentRepo interfaces.PaymentRepository, rideRepo interfaces.RideRepository) StatusService {
	return &statusService{
		paymentRepo: paymentRepo,
		rideRepo:    rideRepo,
	}
}

func (s *statusService) GetPaymentStatus(ctx context.Context, paymentID string) (*models.Payment, error) {
	paymentID = strings.TrimSpace(paymentID)
	if paymentID == "" {
		return nil, ErrPaymentNotFound
	}

	payment, err := s.paymentRepo.GetByID(ctx, paymentID)
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			return nil, ErrPaymentNotFound
		}
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}
	return payment, nil
}

func (s *statusService) GetLatestPaymentForBooking(ctx context.Context, rideID int64) (*models.Payment, error) {
	if rideID <= 0 {
		return nil, ErrInvalidBooking
	}

	payment, err := s.paymentRepo.GetLatestByRideID(ctx, rideID)
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get latest payment: %w", err)
	}
	return payment, nil
}

func (s *statusService) GetBookingPaymentStatus(ctx context.Context, rideID int64) (*models.RidePaymentStatus, error) {
	if rideID <= 0 {
		return nil, ErrInvalidBooking
	}

	status, err := s.rideRepo.GetPaymentStatus(ctx, rideID)
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get booking payment status: %w", err)
	}
	return &models.RidePaymentStatus{BookingID: rideID, PaymentStatus: status}, nil
}
