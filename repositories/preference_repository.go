// repositories/preference_repository.go
package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"foodshare-notify/models"
	"foodshare-notify/utils"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type PreferenceRepository struct {
	collection *mongo.Collection
}

func NewPreferenceRepository(db *mongo.Database) *PreferenceRepository {
	return &PreferenceRepository{
		collection: db.Collection("notification_preferences"),
	}
}

// GetPreferences returns a CONFIGURATION_MISSING service error when the user
// has never saved preferences.
func (pr *PreferenceRepository) GetPreferences(ctx context.Context, userID string) (*models.NotificationPreferences, error) {
	var prefs models.NotificationPreferences
	err := pr.collection.FindOne(ctx, bson.M{"_id": userID}).Decode(&prefs)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, utils.ServiceError{
				Code:    utils.ErrCodeConfigurationMissing,
				Message: "No notification preferences stored",
				Details: userID,
				Cause:   err,
			}
		}
		return nil, fmt.Errorf("failed to get notification preferences: %w", err)
	}

	if prefs.Categories == nil {
		prefs.Categories = map[string]bool{}
	}
	return &prefs, nil
}

func (pr *PreferenceRepository) UpsertPreferences(ctx context.Context, prefs *models.NotificationPreferences) error {
	prefs.UpdatedAt = time.Now()

	opts := options.Replace().SetUpsert(true)
	_, err := pr.collection.ReplaceOne(ctx, bson.M{"_id": prefs.UserID}, prefs, opts)
	if err != nil {
		return utils.WrapDatabaseError(err, "upsert notification preferences")
	}

	return nil
}

func (pr *PreferenceRepository) DeletePreferences(ctx context.Context, userID string) error {
	_, err := pr.collection.DeleteOne(ctx, bson.M{"_id": userID})
	if err != nil {
		return fmt.Errorf("failed to delete notification preferences: %w", err)
	}
	return nil
}
