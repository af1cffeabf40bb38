package interfaces

import (
	"context"

	"goride-payments/internal/models"
)

type RideRepository interface {
	Create(ctx context.Context, ride *models.Ride) error
	GetByID(ctx context.Context, id int64) (*models.Ride, error)
	Exists(ctx context.Context, id int64) (bool, error)
	GetPaymentStatus(ctx context.Context, id int64) (models.PaymentStatus, error)
}
