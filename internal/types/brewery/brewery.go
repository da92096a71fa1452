package brewery

import (
	"time"

	"github.com/google/uuid"
)

type Brewery struct {
	ID               uuid.UUID `db:"id"                 json:"id"`
	Name             string    `db:"name"               json:"name"`
	Description      string    `db:"description"        json:"description"`
	Address          string    `db:"address"            json:"address"`
	City             string    `db:"city"               json:"city"`
	Latitude         float64   `db:"latitude"           json:"latitude"`
	Longitude        float64   `db:"longitude"          json:"longitude"`
	CheckInRadiusM   float64   `db:"checkin_radius_m"   json:"checkin_radius_m"`
	PointsPerCheckIn int       `db:"points_per_checkin" json:"points_per_checkin"`
	ImageURL         string    `db:"image_url"          json:"image_url"`
	Website          string    `db:"website"            json:"website"`
	Phone            string    `db:"phone"              json:"phone"`
	Tags             []string  `db:"tags"               json:"tags"`
	IsActive         bool      `db:"is_active"          json:"is_active"`
	CreatedAt        time.Time `db:"created_at"         json:"created_at"`
	UpdatedAt        time.Time `db:"updated_at"         json:"updated_at"`
}

// BreweryWithDistance is returned by nearby searches.
type BreweryWithDistance struct {
	Brewery
	DistanceMeters float64 `json:"distance_m"`
}

type UpsertBreweryRequest struct {
	Name             string   `json:"name" validate:"required,max=120"`
	Description      string   `json:"description" validate:"max=2000"`
	Address          string   `json:"address" validate:"max=255"`
	City             string   `json:"city" validate:"max=120"`
	Latitude         float64  `json:"latitude" validate:"gte=-90,lte=90"`
	Longitude        float64  `json:"longitude" validate:"gte=-180,lte=180"`
	CheckInRadiusM   float64  `json:"checkin_radius_m" validate:"gte=0,lte=5000"`
	PointsPerCheckIn int      `json:"points_per_checkin" validate:"gte=0,lte=1000"`
	ImageURL         string   `json:"image_url" validate:"omitempty,url"`
	Website          string   `json:"website" validate:"omitempty,url"`
	Phone            string   `json:"phone" validate:"max=40"`
	Tags             []string `json:"tags"`
	IsActive         *bool    `json:"is_active"`
}

type CheckInQRResponse struct {
	BreweryID    uuid.UUID `json:"brewery_id"`
	Token        string    `json:"token"`
	DeepLink     string    `json:"deep_link"`
	QrCodeBase64 string    `json:"qr_code_base64"`
	ExpiresAt    time.Time `json:"expires_at"`
}
