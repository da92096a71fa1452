package checkin

import (
	"time"

	"github.com/google/uuid"

	"brewedAtAPI/internal/achievement"
)

type Method string

const (
	MethodGeofence Method = "geofence"
	MethodQR       Method = "qr"
)

type CheckIn struct {
	ID            uuid.UUID  `db:"id"             json:"id"`
	UserID        uuid.UUID  `db:"user_id"        json:"user_id"`
	BreweryID     uuid.UUID  `db:"brewery_id"     json:"brewery_id"`
	BreweryName   string     `db:"-"              json:"brewery_name,omitempty"`
	EventID       *uuid.UUID `db:"event_id"       json:"event_id,omitempty"`
	Method        Method     `db:"method"         json:"method"`
	Latitude      *float64   `db:"latitude"       json:"latitude,omitempty"`
	Longitude     *float64   `db:"longitude"      json:"longitude,omitempty"`
	DistanceM     *float64   `db:"distance_m"     json:"distance_m,omitempty"`
	PointsAwarded int        `db:"points_awarded" json:"points_awarded"`
	CreatedAt     time.Time  `db:"created_at"     json:"created_at"`
}

type CheckInRequest struct {
	BreweryID string   `json:"brewery_id" validate:"required,uuid"`
	Method    Method   `json:"method" validate:"required,oneof=geofence qr"`
	Latitude  *float64 `json:"latitude" validate:"required_if=Method geofence"`
	Longitude *float64 `json:"longitude" validate:"required_if=Method geofence"`
	QRToken   string   `json:"qr_token" validate:"required_if=Method qr"`
	EventID   string   `json:"event_id" validate:"omitempty,uuid"`
}

type CheckInResult struct {
	CheckIn          *CheckIn                  `json:"checkin"`
	PointsAwarded    int                       `json:"points_awarded"`
	AchievementBonus int                       `json:"achievement_bonus"`
	Balance          int                       `json:"balance"`
	LifetimePoints   int                       `json:"lifetime_points"`
	Level            int                       `json:"level"`
	LeveledUp        bool                      `json:"leveled_up"`
	NewAchievements  []achievement.Achievement `json:"new_achievements"`
}

type HistoryPage struct {
	CheckIns []*CheckIn `json:"checkins"`
	Page     int        `json:"page"`
	PageSize int        `json:"page_size"`
	Total    int        `json:"total"`
}
