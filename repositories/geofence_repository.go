// repositories/geofence_repository.go
package repositories

import (
	"context"
	"fmt"
	"strconv"

	"foodshare-notify/models"

	"github.com/go-redis/redis/v8"
)

const (
	geoUsersKey       = "geo:users"
	geoRadiusKey      = "geo:radius"
	geoOptOutKeyBase  = "geo:optout:"
	geoRadiusMaxItems = 5000
)

type NearbyUser struct {
	UserID     string
	DistanceKm float64
	RadiusKm   float64 // 0 when the user never set one
}

// GeofenceRepository keeps user positions in a redis GEO set, each user's
// notification radius in a hash and per-category opt-outs in sets.
type GeofenceRepository struct {
	redis *redis.Client
}

func NewGeofenceRepository(redisClient *redis.Client) *GeofenceRepository {
	return &GeofenceRepository{redis: redisClient}
}

func optOutKey(category models.EventCategory) string {
	return geoOptOutKeyBase + string(category)
}

func (gr *GeofenceRepository) UpdateLocation(ctx context.Context, userID string, point models.GeoPoint) error {
	err := gr.redis.GeoAdd(ctx, geoUsersKey, &redis.GeoLocation{
		Name:      userID,
		Longitude: point.Longitude,
		Latitude:  point.Latitude,
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to update user location: %w", err)
	}
	return nil
}

func (gr *GeofenceRepository) SetRadius(ctx context.Context, userID string, radiusKm float64) error {
	if err := gr.redis.HSet(ctx, geoRadiusKey, userID, radiusKm).Err(); err != nil {
		return fmt.Errorf("failed to set geofence radius: %w", err)
	}
	return nil
}

func (gr *GeofenceRepository) SetCategoryOptOut(ctx context.Context, userID string, category models.EventCategory, optedOut bool) error {
	var err error
	if optedOut {
		err = gr.redis.SAdd(ctx, optOutKey(category), userID).Err()
	} else {
		err = gr.redis.SRem(ctx, optOutKey(category), userID).Err()
	}
	if err != nil {
		return fmt.Errorf("failed to update category opt-out: %w", err)
	}
	return nil
}

func (gr *GeofenceRepository) RemoveUser(ctx context.Context, userID string) error {
	pipe := gr.redis.TxPipeline()
	pipe.ZRem(ctx, geoUsersKey, userID)
	pipe.HDel(ctx, geoRadiusKey, userID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to remove user from geofence index: %w", err)
	}
	return nil
}

// Nearby returns users within radiusKm of point, closest first, together with
// their stored notification radius.
func (gr *GeofenceRepository) Nearby(ctx context.Context, point models.GeoPoint, radiusKm float64) ([]NearbyUser, error) {
	locations, err := gr.redis.GeoRadius(ctx, geoUsersKey, point.Longitude, point.Latitude, &redis.GeoRadiusQuery{
		Radius:   radiusKm,
		Unit:     "km",
		WithDist: true,
		Sort:     "ASC",
		Count:    geoRadiusMaxItems,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to query geofence index: %w", err)
	}
	if len(locations) == 0 {
		return nil, nil
	}

	userIDs := make([]string, len(locations))
	for i, loc := range locations {
		userIDs[i] = loc.Name
	}

	radii, err := gr.redis.HMGet(ctx, geoRadiusKey, userIDs...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load geofence radii: %w", err)
	}

	users := make([]NearbyUser, len(locations))
	for i, loc := range locations {
		users[i] = NearbyUser{
			UserID:     loc.Name,
			DistanceKm: loc.Dist,
			RadiusKm:   parseRadius(radii[i]),
		}
	}
	return users, nil
}

// FilterOptedOut drops users who disabled category.
func (gr *GeofenceRepository) FilterOptedOut(ctx context.Context, category models.EventCategory, userIDs []string) ([]string, error) {
	if len(userIDs) == 0 {
		return userIDs, nil
	}

	members := make([]interface{}, len(userIDs))
	for i, id := range userIDs {
		members[i] = id
	}

	optedOut, err := gr.redis.SMIsMember(ctx, optOutKey(category), members...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to check category opt-outs: %w", err)
	}

	filtered := make([]string, 0, len(userIDs))
	for i, id := range userIDs {
		if !optedOut[i] {
			filtered = append(filtered, id)
		}
	}
	return filtered, nil
}

func (gr *GeofenceRepository) Ping(ctx context.Context) error {
	return gr.redis.Ping(ctx).Err()
}

func parseRadius(value interface{}) float64 {
	s, ok := value.(string)
	if !ok {
		return 0
	}
	radius, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return radius
}
