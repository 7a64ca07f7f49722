package services

import (
	"context"
	"time"

	"foodshare-notify/models"
	"foodshare-notify/utils"

	"github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
)

type preferenceRepository interface {
	GetPreferences(ctx context.Context, userID string) (*models.NotificationPreferences, error)
	UpsertPreferences(ctx context.Context, prefs *models.NotificationPreferences) error
}

type geofenceWriter interface {
	SetRadius(ctx context.Context, userID string, radiusKm float64) error
	SetCategoryOptOut(ctx context.Context, userID string, category models.EventCategory, optedOut bool) error
}

// PreferenceService is a read-through cache over the preference store. Users
// without a stored record get the default preferences.
type PreferenceService struct {
	repo     preferenceRepository
	geofence geofenceWriter
	cache    *cache.Cache
}

func NewPreferenceService(repo preferenceRepository, geofence geofenceWriter, ttl time.Duration) *PreferenceService {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &PreferenceService{
		repo:     repo,
		geofence: geofence,
		cache:    cache.New(ttl, 2*ttl),
	}
}

func (ps *PreferenceService) GetPreferences(ctx context.Context, userID string) (*models.NotificationPreferences, error) {
	if cached, found := ps.cache.Get(userID); found {
		prefs := clonePreferences(cached.(models.NotificationPreferences))
		return &prefs, nil
	}

	stored, err := ps.repo.GetPreferences(ctx, userID)
	if err != nil {
		if !utils.HasCode(err, utils.ErrCodeConfigurationMissing) {
			return nil, err
		}
		defaults := models.DefaultPreferences(userID)
		stored = &defaults
	}

	ps.cache.Set(userID, clonePreferences(*stored), cache.DefaultExpiration)
	prefs := clonePreferences(*stored)
	return &prefs, nil
}

// UpdatePreferences merges req into the current preferences, persists them
// and mirrors radius and category opt-outs into the geofence index.
func (ps *PreferenceService) UpdatePreferences(ctx context.Context, userID string, req models.UpdatePreferencesRequest) (*models.NotificationPreferences, error) {
	current, err := ps.GetPreferences(ctx, userID)
	if err != nil {
		return nil, err
	}
	prefs := *current

	for category, enabled := range req.Categories {
		if !models.IsKnownCategory(models.EventCategory(category)) {
			return nil, utils.NewBadRequestError("Unknown event category: " + category)
		}
		prefs.Categories[category] = enabled
	}

	if req.QuietHours != nil {
		if err := validateQuietHours(*req.QuietHours); err != nil {
			return nil, err
		}
		prefs.QuietHours = *req.QuietHours
	}

	if req.GeofenceRadiusKm != nil {
		prefs.GeofenceRadiusKm = utils.ClampGeofenceRadius(*req.GeofenceRadiusKm, models.DefaultGeofenceRadiusKm)
	}

	if err := ps.repo.UpsertPreferences(ctx, &prefs); err != nil {
		return nil, err
	}
	ps.cache.Delete(userID)

	ps.syncGeofence(ctx, prefs)

	return &prefs, nil
}

// syncGeofence keeps the index hints current. Failures are logged only: the
// eligibility filter re-checks preferences for every candidate.
func (ps *PreferenceService) syncGeofence(ctx context.Context, prefs models.NotificationPreferences) {
	if ps.geofence == nil {
		return
	}

	radius := utils.ClampGeofenceRadius(prefs.GeofenceRadiusKm, models.DefaultGeofenceRadiusKm)
	if err := ps.geofence.SetRadius(ctx, prefs.UserID, radius); err != nil {
		logrus.WithField("user_id", prefs.UserID).WithError(err).Warn("Failed to sync geofence radius")
	}

	for _, category := range models.KnownCategories {
		optedOut := !prefs.IsCategoryEnabled(category)
		if err := ps.geofence.SetCategoryOptOut(ctx, prefs.UserID, category, optedOut); err != nil {
			logrus.WithFields(logrus.Fields{
				"user_id":  prefs.UserID,
				"category": category,
			}).WithError(err).Warn("Failed to sync category opt-out")
		}
	}
}

func (ps *PreferenceService) InvalidateCache(userID string) {
	ps.cache.Delete(userID)
}

func validateQuietHours(q models.QuietHours) error {
	if !q.Enabled {
		return nil
	}
	if !utils.ValidateTimeFormat(q.StartTime) || !utils.ValidateTimeFormat(q.EndTime) {
		return utils.NewBadRequestError("Quiet hours need startTime and endTime as HH:MM")
	}
	if q.Timezone != "" {
		if _, err := time.LoadLocation(q.Timezone); err != nil {
			return utils.NewBadRequestError("Unknown timezone: " + q.Timezone)
		}
	}
	return nil
}

func clonePreferences(prefs models.NotificationPreferences) models.NotificationPreferences {
	categories := make(map[string]bool, len(prefs.Categories))
	for k, v := range prefs.Categories {
		categories[k] = v
	}
	prefs.Categories = categories
	return prefs
}
