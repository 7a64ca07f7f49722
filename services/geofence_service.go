package services

import (
	"context"

	"foodshare-notify/models"
	"foodshare-notify/repositories"
	"foodshare-notify/utils"

	"github.com/sirupsen/logrus"
)

type geofenceStore interface {
	Nearby(ctx context.Context, point models.GeoPoint, radiusKm float64) ([]repositories.NearbyUser, error)
	FilterOptedOut(ctx context.Context, category models.EventCategory, userIDs []string) ([]string, error)
	UpdateLocation(ctx context.Context, userID string, point models.GeoPoint) error
}

// GeofenceService resolves the users near a point for location scoped events.
type GeofenceService struct {
	store           geofenceStore
	defaultRadiusKm float64
}

func NewGeofenceService(store geofenceStore) *GeofenceService {
	return &GeofenceService{
		store:           store,
		defaultRadiusKm: models.DefaultGeofenceRadiusKm,
	}
}

// FindNearbyUsers returns users within radiusKm of point whose own radius also
// covers the point. radiusKm is clamped to [1, 100]. Users who opted out of
// category are dropped when the opt-out sets are reachable; this is a hint and
// the eligibility filter remains authoritative.
func (gs *GeofenceService) FindNearbyUsers(ctx context.Context, point models.GeoPoint, radiusKm float64, category models.EventCategory) ([]string, error) {
	radius := utils.ClampGeofenceRadius(radiusKm, utils.MinGeofenceRadiusKm)

	nearby, err := gs.store.Nearby(ctx, point, radius)
	if err != nil {
		return nil, utils.NewResolutionUnavailableError(err)
	}

	userIDs := make([]string, 0, len(nearby))
	for _, user := range nearby {
		userRadius := utils.ClampGeofenceRadius(user.RadiusKm, gs.defaultRadiusKm)
		if utils.WithinRadius(user.DistanceKm, radius, userRadius) {
			userIDs = append(userIDs, user.UserID)
		}
	}

	if category == "" || len(userIDs) == 0 {
		return userIDs, nil
	}

	filtered, err := gs.store.FilterOptedOut(ctx, category, userIDs)
	if err != nil {
		logrus.WithField("category", category).WithError(err).Warn("Opt-out filter unavailable, returning unfiltered candidates")
		return userIDs, nil
	}
	return filtered, nil
}

func (gs *GeofenceService) UpdateLocation(ctx context.Context, userID string, point models.GeoPoint) error {
	if !utils.IsValidCoordinate(point.Latitude, point.Longitude) {
		return utils.NewBadRequestError("Invalid coordinates")
	}
	return gs.store.UpdateLocation(ctx, userID, point)
}
