package mongodb

import (
	"context"
	"fmt"
	"time"

	"goride-payments/internal/models"
	"goride-payments/internal/repositories/interfaces"
	"goride-payments/pkg/database"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

type callbackAuditRepository struct {
	collection *mongo.Collection
}

func NewCallbackAuditRepository(db *mongo.Database) interfaces.CallbackAuditRepository {
	return &callbackAuditRepository{
		collection: db.Collection(database.CallbackAuditCollection),
	}
}

func (r *callbackAuditRepository) Insert(ctx context.Context, entry *models.CallbackAuditLog) error {
	if entry.ID.IsZero() {
		entry.ID = primitive.NewObjectID()
	}
	if entry.ReceivedAt.IsZero() {
		entry.ReceivedAt = time.Now().UTC()
	}

	if _, err := r.collection.InsertOne(ctx, entry); err != nil {
		return fmt.Errorf("failed to store callback audit log: %w", err)
	}

	return nil
}
