package utils

import (
	"math"
)

const (
	EarthRadiusKm = 6371.0
	DegToRad      = math.Pi / 180.0

	MinGeofenceRadiusKm = 1.0
	MaxGeofenceRadiusKm = 100.0
)

type Coordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// DistanceKm calculates the great-circle distance in kilometres using the Haversine formula
func DistanceKm(lat1, lon1, lat2, lon2 float64) float64 {
	lat1Rad := lat1 * DegToRad
	lon1Rad := lon1 * DegToRad
	lat2Rad := lat2 * DegToRad
	lon2Rad := lon2 * DegToRad

	dlat := lat2Rad - lat1Rad
	dlon := lon2Rad - lon1Rad

	a := math.Sin(dlat/2)*math.Sin(dlat/2) + math.Cos(lat1Rad)*math.Cos(lat2Rad)*math.Sin(dlon/2)*math.Sin(dlon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusKm * c
}

// IsValidCoordinate checks if latitude and longitude values are valid
func IsValidCoordinate(lat, lon float64) bool {
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}

// ClampGeofenceRadius keeps a user's notification radius inside [1, 100] km.
// A zero radius means the user never chose one.
func ClampGeofenceRadius(radiusKm, fallback float64) float64 {
	if math.IsNaN(radiusKm) || radiusKm <= 0 {
		radiusKm = fallback
	}
	return ClampFloat64(radiusKm, MinGeofenceRadiusKm, MaxGeofenceRadiusKm)
}

// WithinRadius reports whether a candidate at distanceKm is inside both the
// search radius and the candidate's own radius.
func WithinRadius(distanceKm, searchRadiusKm, userRadiusKm float64) bool {
	return distanceKm <= searchRadiusKm && distanceKm <= userRadiusKm
}
