package models

import (
	"time"
)

// Ride is the booking whose payment is tracked.
type Ride struct {
	ID                   int64         `json:"ride_id"`
	OriginAddress        string        `json:"origin_address"`
	DestinationAddress   string        `json:"destination_address"`
	OriginLatitude       float64       `json:"origin_latitude"`
	OriginLongitude      float64       `json:"origin_longitude"`
	DestinationLatitude  float64       `json:"destination_latitude"`
	DestinationLongitude float64       `json:"destination_longitude"`
	RideTime             int           `json:"ride_time"`
	FarePrice            float64       `json:"fare_price"`
	PaymentStatus        PaymentStatus `json:"payment_status"`
	DriverID             int64         `json:"driver_id"`
	UserID               string        `json:"user_id"`
	CreatedAt            time.Time     `json:"created_at"`
}

// RidePaymentStatus is the body of GET /bookings/status/:bookingId.
type RidePaymentStatus struct {
	BookingID     int64         `json:"bookingId"`
	PaymentStatus PaymentStatus `json:"paymentStatus"`
}

type CreateRideRequest struct {
	OriginAddress        string  `json:"origin_address" validate:"required,max=255"`
	DestinationAddress   string  `json:"destination_address" validate:"required,max=255"`
	OriginLatitude       float64 `json:"origin_latitude" validate:"required,min=-90,max=90"`
	OriginLongitude      float64 `json:"origin_longitude" validate:"required,min=-180,max=180"`
	DestinationLatitude  float64 `json:"destination_latitude" validate:"required,min=-90,max=90"`
	DestinationLongitude float64 `json:"destination_longitude" validate:"required,min=-180,max=180"`
	RideTime             int     `json:"ride_time" validate:"required,min=1,max=1440"`
	FarePrice            float64 `json:"fare_price" validate:"required,gt=0"`
	DriverID             int64   `json:"driver_id" validate:"required,min=1"`
	UserID               string  `json:"user_id" validate:"required,max=128"`
}
