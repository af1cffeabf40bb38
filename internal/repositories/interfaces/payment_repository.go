package interfaces

import (
	"context"

	"goride-payments/internal/models"
)

type PaymentRepository interface {
	Create(ctx context.Context, payment *models.Payment) error
	GetByID(ctx context.Context, id string) (*models.Payment, error)
	GetLatestByRideID(ctx context.Context, rideID int64) (*models.Payment, error)

	// ResolvePayment applies one callback delivery. The payment and its ride are
	// updated in a single transaction; only a PENDING payment can be resolved.
	ResolvePayment(ctx context.Context, params *models.ResolvePaymentParams) (*models.Resolution, error)
}
