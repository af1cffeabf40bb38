package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"goride-payments/internal/models"
	"goride-payments/internal/repositories/interfaces"
)

type rideRepository struct {
	db *sql.DB
}

func NewRideRepository(db *sql.DB) interfaces.RideRepository {
	return &rideRepository{db: db}
}

const (
	insertRideQuery = `INSERT INTO rides (
	origin_address, destination_address,
	origin_latitude, origin_longitude,
	destination_latitude, destination_longitude,
	ride_time, fare_price, payment_status, driver_id, user_id
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
RETURNING ride_id, created_at`

	getRideByIDQuery = `SELECT ride_id, origin_address, destination_address,
	origin_latitude, origin_longitude, destination_latitude, destination_longitude,
	ride_time, fare_price, payment_status, driver_id, user_id, created_at
FROM rides WHERE ride_id = $1`

	rideExistsQuery = `SELECT EXISTS (SELECT 1 FROM rides WHERE ride_id = $1)`

	getRidePaymentStatusQuery = `SELECT payment_status FROM rides WHERE ride_id = $1`
)

func (r *rideRepository) Create(ctx context.Context, ride *models.Ride) error {
	if ride.PaymentStatus == "" {
		ride.PaymentStatus = models.PaymentStatusPending
	}

	err := r.db.QueryRowContext(ctx, insertRideQuery,
		ride.OriginAddress,
		ride.DestinationAddress,
		ride.OriginLatitude,
		ride.OriginLongitude,
		ride.DestinationLatitude,
		ride.DestinationLongitude,
		ride.RideTime,
		ride.FarePrice,
		string(ride.PaymentStatus),
		ride.DriverID,
		ride.UserID,
	).Scan(&ride.ID, &ride.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create ride: %w", err)
	}

	return nil
}

func (r *rideRepository) GetByID(ctx context.Context, id int64) (*models.Ride, error) {
	var (
		ride   models.Ride
		status string
	)

	err := r.db.QueryRowContext(ctx, getRideByIDQuery, id).Scan(
		&ride.ID,
		&ride.OriginAddress,
		&ride.DestinationAddress,
		&ride.OriginLatitude,
		&ride.OriginLongitude,
		&ride.DestinationLatitude,
		&ride.DestinationLongitude,
		&ride.RideTime,
		&ride.FarePrice,
		&status,
		&ride.DriverID,
		&ride.UserID,
		&ride.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, interfaces.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get ride: %w", err)
	}

	ride.PaymentStatus = models.PaymentStatus(status)
	return &ride, nil
}

func (r *rideRepository) Exists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	if err := r.db.QueryRowContext(ctx, rideExistsQuery, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check ride: %w", err)
	}
	return exists, nil
}

func (r *rideRepository) GetPaymentStatus(ctx context.Context, id int64) (models.PaymentStatus, error) {
	var status string
	err := r.db.QueryRowContext(ctx, getRidePaymentStatusQuery, id).Scan(&status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", interfaces.ErrNotFound
		}
		return "", fmt.Errorf("failed to get ride payment status: %w", err)
	}
	return models.PaymentStatus(status), nil
}
