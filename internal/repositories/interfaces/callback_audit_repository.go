package interfaces

import (
	"context"

	"goride-payments/internal/models"
)

type CallbackAuditRepository interface {
	Insert(ctx context.Context, entry *models.CallbackAuditLog) error
}
