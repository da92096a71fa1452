package event

import (
	"time"

	"github.com/google/uuid"
)

type Event struct {
	ID          uuid.UUID `db:"id"           json:"id"`
	BreweryID   uuid.UUID `db:"brewery_id"   json:"brewery_id"`
	BreweryName string    `db:"-"            json:"brewery_name,omitempty"`
	Title       string    `db:"title"        json:"title"`
	Description string    `db:"description"  json:"description"`
	StartsAt    time.Time `db:"starts_at"    json:"starts_at"`
	EndsAt      time.Time `db:"ends_at"      json:"ends_at"`
	BonusPoints int       `db:"bonus_points" json:"bonus_points"`
	ImageURL    string    `db:"image_url"    json:"image_url"`
	CreatedAt   time.Time `db:"created_at"   json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"   json:"updated_at"`
}

// RunningAt reports whether t falls in [StartsAt, EndsAt).
func (e *Event) RunningAt(t time.Time) bool {
	return !t.Before(e.StartsAt) && t.Before(e.EndsAt)
}

type UpsertEventRequest struct {
	BreweryID   string    `json:"brewery_id" validate:"required,uuid"`
	Title       string    `json:"title" validate:"required,max=160"`
	Description string    `json:"description" validate:"max=2000"`
	StartsAt    time.Time `json:"starts_at" validate:"required"`
	EndsAt      time.Time `json:"ends_at" validate:"required,gtfield=StartsAt"`
	BonusPoints int       `json:"bonus_points" validate:"gte=0,lte=1000"`
	ImageURL    string    `json:"image_url" validate:"omitempty,url"`
}
