package models

import (
	"time"
)

type Platform string

const (
	PlatformIOS     Platform = "ios"
	PlatformAndroid Platform = "android"
)

// DeviceToken is a platform-tagged push token bound to exactly one user.
type DeviceToken struct {
	Token           string    `json:"token" bson:"_id"`
	UserID          string    `json:"userId" bson:"userId"`
	Platform        Platform  `json:"platform" bson:"platform"`
	RegisteredAt    time.Time `json:"registeredAt" bson:"registeredAt"`
	LastConfirmedAt time.Time `json:"lastConfirmedAt" bson:"lastConfirmedAt"`
}

type RegisterDeviceRequest struct {
	UserID   string   `json:"userId" validate:"required"`
	Token    string   `json:"token" validate:"required,min=16,max=4096"`
	Platform Platform `json:"platform" validate:"required,platform"`
}

type UpdateLocationRequest struct {
	Latitude  float64 `json:"latitude" validate:"coordinate"`
	Longitude float64 `json:"longitude" validate:"coordinate"`
}
