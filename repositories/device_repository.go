// repositories/device_repository.go
package repositories

import (
	"context"
	"fmt"
	"time"

	"foodshare-notify/models"
	"foodshare-notify/utils"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// DeviceRepository is the token table. Documents are keyed by the token
// itself, so every mutation is a single-document upsert or delete.
type DeviceRepository struct {
	collection *mongo.Collection
}

func NewDeviceRepository(db *mongo.Database) *DeviceRepository {
	return &DeviceRepository{
		collection: db.Collection("device_tokens"),
	}
}

// Register upserts a token. Registering a token that belongs to another user
// moves it to the new user.
func (dr *DeviceRepository) Register(ctx context.Context, device *models.DeviceToken) error {
	now := time.Now()
	if device.RegisteredAt.IsZero() {
		device.RegisteredAt = now
	}
	device.LastConfirmedAt = now

	opts := options.Replace().SetUpsert(true)
	_, err := dr.collection.ReplaceOne(ctx, bson.M{"_id": device.Token}, device, opts)
	if err != nil {
		return utils.WrapDatabaseError(err, "register device token")
	}

	return nil
}

func (dr *DeviceRepository) GetActiveTokens(ctx context.Context, userID string) ([]models.DeviceToken, error) {
	cursor, err := dr.collection.Find(ctx, bson.M{"userId": userID})
	if err != nil {
		return nil, fmt.Errorf("failed to find device tokens: %w", err)
	}
	defer cursor.Close(ctx)

	var tokens []models.DeviceToken
	if err := cursor.All(ctx, &tokens); err != nil {
		return nil, fmt.Errorf("failed to decode device tokens: %w", err)
	}

	return tokens, nil
}

// PruneToken deletes a token the gateway reported as invalid. Deleting a
// token that is already gone is not an error.
func (dr *DeviceRepository) PruneToken(ctx context.Context, token string) error {
	_, err := dr.collection.DeleteOne(ctx, bson.M{"_id": token})
	if err != nil {
		return utils.WrapDatabaseError(err, "prune device token")
	}
	return nil
}

// Unregister removes a token on request of the app.
func (dr *DeviceRepository) Unregister(ctx context.Context, token string) error {
	result, err := dr.collection.DeleteOne(ctx, bson.M{"_id": token})
	if err != nil {
		return utils.WrapDatabaseError(err, "unregister device token")
	}
	if result.DeletedCount == 0 {
		return utils.ErrDeviceNotFound
	}
	return nil
}

func (dr *DeviceRepository) ConfirmToken(ctx context.Context, token string, at time.Time) error {
	_, err := dr.collection.UpdateOne(ctx,
		bson.M{"_id": token},
		bson.M{"$set": bson.M{"lastConfirmedAt": at}},
	)
	if err != nil {
		return utils.WrapDatabaseError(err, "confirm device token")
	}
	return nil
}

// PruneStale removes tokens that have not been confirmed since before.
func (dr *DeviceRepository) PruneStale(ctx context.Context, before time.Time) (int64, error) {
	result, err := dr.collection.DeleteMany(ctx, bson.M{"lastConfirmedAt": bson.M{"$lt": before}})
	if err != nil {
		return 0, fmt.Errorf("failed to prune stale device tokens: %w", err)
	}
	return result.DeletedCount, nil
}

func (dr *DeviceRepository) CountTokens(ctx context.Context) (int64, error) {
	count, err := dr.collection.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("failed to count device tokens: %w", err)
	}
	return count, nil
}
