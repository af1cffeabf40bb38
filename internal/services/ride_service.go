package services

import (
	"context"
	"errors"
	"fmt"

	"goride-payments/internal/models"
	"goride-payments/internal/repositories/interfaces"
	"goride-payments/internal/utils"
	"goride-payments/internal/validators"
	"goride-payments/pkg/events"
	"goride-payments/pkg/logger"
)

type RideService interface {
	// CreateRide stores a booking with payment_status PENDING.
	CreateRide(ctx context.Context, req *models.CreateRideRequest) (*models.Ride, error)
	GetRide(ctx context.Context, rideID int64) (*models.Ride, error)
}

type rideService struct {
	rideRepo  interfaces.RideRepository
	publisher events.Publisher
	logger    *logger.Logger
}

func NewRideService(rideRepo interfaces.RideRepository, publisher events.Publisher, logger *logger.Logger) RideService {
	if publisher == nil {
		publisher = events.NewMultiPublisher()
	}
	return &rideService{
		rideRepo:  rideRepo,
		publisher: publisher,
		logger:    logger,
	}
}

func (s *rideService) CreateRide(ctx context.Context, req *models.CreateRideRequest) (*models.Ride, error) {
	if req == nil {
		return nil, validators.ErrMissingFields
	}
	if errs := validators.ValidateCreateRide(req); len(errs) > 0 {
		return nil, errs
	}

	ride := &models.Ride{
		OriginAddress:        req.OriginAddress,
		DestinationAddress:   req.DestinationAddress,
		OriginLatitude:       req.OriginLatitude,
		OriginLongitude:      req.OriginLongitude,
		DestinationLatitude:  req.DestinationLatitude,
		DestinationLongitude: req.DestinationLongitude,
		RideTime:             req.RideTime,
		FarePrice:            req.FarePrice,
		DriverID:             req.DriverID,
		UserID:               req.UserID,
		PaymentStatus:        models.PaymentStatusPending,
	}

	if err := s.rideRepo.Create(ctx, ride); err != nil {
		return nil, err
	}

	s.logger.WithContext(ctx).WithRideID(ride.ID).Info("Ride created")

	if err := s.publisher.Publish(ctx, fmt.Sprintf("ride-%d", ride.ID), events.NewEnvelope(utils.EventRideCreated, ride)); err != nil {
		s.logger.WithContext(ctx).WithError(err).WithRideID(ride.ID).Warn("Failed to publish ride created event")
	}

	return ride, nil
}

func (s *rideService) GetRide(ctx context.Context, rideID int64) (*models.Ride, error) {
	if rideID <= 0 {
		return nil, ErrInvalidBooking
	}

	ride, err := s.rideRepo.GetByID(ctx, rideID)
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}
	return ride, nil
}
