//go:build e2e

package repositories

import (
	"context"
	"os"
	"testing"
	"time"

	"foodshare-notify/models"
	"foodshare-notify/utils"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func testDatabase(t *testing.T) *mongo.Database {
	t.Helper()

	url := os.Getenv("MONGODB_TEST_URL")
	if url == "" {
		url = "mongodb://localhost:27017"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(url))
	require.NoError(t, err)
	require.NoError(t, client.Ping(ctx, nil))

	db := client.Database("foodshare_notify_test_" + uuid.NewString()[:8])
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = db.Drop(ctx)
		_ = client.Disconnect(ctx)
	})
	return db
}

func testRedis(t *testing.T) *redis.Client {
	t.Helper()

	url := os.Getenv("REDIS_TEST_URL")
	if url == "" {
		url = "redis://localhost:6379/15"
	}
	opts, err := redis.ParseURL(url)
	require.NoError(t, err)

	client := redis.NewClient(opts)
	require.NoError(t, client.FlushDB(context.Background()).Err())
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestDeviceRepositoryLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := NewDeviceRepository(testDatabase(t))

	device := &models.DeviceToken{Token: "fcm-token-0123456789abcdef", UserID: "u1", Platform: models.PlatformAndroid}
	require.NoError(t, repo.Register(ctx, device))

	tokens, err := repo.GetActiveTokens(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, tokens, 1)
	assert.Equal(t, models.PlatformAndroid, tokens[0].Platform)

	// re-registering under another user moves the token
	moved := &models.DeviceToken{Token: device.Token, UserID: "u2", Platform: models.PlatformAndroid}
	require.NoError(t, repo.Register(ctx, moved))

	tokens, err = repo.GetActiveTokens(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, tokens)

	require.NoError(t, repo.PruneToken(ctx, device.Token))
	require.NoError(t, repo.PruneToken(ctx, device.Token), "pruning twice is harmless")

	err = repo.Unregister(ctx, device.Token)
	assert.True(t, utils.HasCode(err, utils.ErrCodeNotFound))
}

func TestDeviceRepositoryPruneStale(t *testing.T) {
	ctx := context.Background()
	repo := NewDeviceRepository(testDatabase(t))

	require.NoError(t, repo.Register(ctx, &models.DeviceToken{Token: "stale-token-0123456789", UserID: "u1", Platform: models.PlatformIOS}))
	require.NoError(t, repo.Register(ctx, &models.DeviceToken{Token: "fresh-token-0123456789", UserID: "u1", Platform: models.PlatformIOS}))
	require.NoError(t, repo.ConfirmToken(ctx, "stale-token-0123456789", time.Now().AddDate(0, 0, -90)))

	pruned, err := repo.PruneStale(ctx, time.Now().AddDate(0, 0, -60))
	require.NoError(t, err)
	assert.Equal(t, int64(1), pruned)

	count, err := repo.CountTokens(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestPreferenceRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewPreferenceRepository(testDatabase(t))

	_, err := repo.GetPreferences(ctx, "u1")
	assert.True(t, utils.HasCode(err, utils.ErrCodeConfigurationMissing))

	prefs := models.DefaultPreferences("u1")
	prefs.Categories["tips"] = false
	prefs.QuietHours = models.QuietHours{Enabled: true, StartTime: "22:00", EndTime: "06:00"}
	require.NoError(t, repo.UpsertPreferences(ctx, &prefs))

	stored, err := repo.GetPreferences(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, stored.IsCategoryEnabled(models.CategoryTips))
	assert.True(t, stored.QuietHours.Enabled)

	require.NoError(t, repo.DeletePreferences(ctx, "u1"))
	_, err = repo.GetPreferences(ctx, "u1")
	assert.True(t, utils.HasCode(err, utils.ErrCodeConfigurationMissing))
}

func TestGeofenceRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewGeofenceRepository(testRedis(t))

	market := models.GeoPoint{Latitude: 52.5200, Longitude: 13.4050}
	require.NoError(t, repo.UpdateLocation(ctx, "near", models.GeoPoint{Latitude: 52.5210, Longitude: 13.4100}))
	require.NoError(t, repo.UpdateLocation(ctx, "far", models.GeoPoint{Latitude: 48.1351, Longitude: 11.5820}))
	require.NoError(t, repo.SetRadius(ctx, "near", 3))

	users, err := repo.Nearby(ctx, market, 10)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "near", users[0].UserID)
	assert.Equal(t, 3.0, users[0].RadiusKm)
	assert.Less(t, users[0].DistanceKm, 1.0)

	require.NoError(t, repo.SetCategoryOptOut(ctx, "near", models.CategoryNewListing, true))
	filtered, err := repo.FilterOptedOut(ctx, models.CategoryNewListing, []string{"near", "far"})
	require.NoError(t, err)
	assert.Equal(t, []string{"far"}, filtered)

	require.NoError(t, repo.RemoveUser(ctx, "near"))
	users, err = repo.Nearby(ctx, market, 10)
	require.NoError(t, err)
	assert.Empty(t, users)
}
