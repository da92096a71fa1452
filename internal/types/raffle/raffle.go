package raffle

import (
	"time"

	"github.com/google/uuid"

	"brewedAtAPI/internal/achievement"
)

type Status string

const (
	StatusOpen      Status = "open"
	StatusDrawn     Status = "drawn"
	StatusCancelled Status = "cancelled"
)

type Raffle struct {
	ID                uuid.UUID  `db:"id"                   json:"id"`
	Title             string     `db:"title"                json:"title"`
	Description       string     `db:"description"          json:"description"`
	Prize             string     `db:"prize"                json:"prize"`
	ImageURL          string     `db:"image_url"            json:"image_url"`
	BreweryID         *uuid.UUID `db:"brewery_id"           json:"brewery_id,omitempty"`
	EntryCost         int        `db:"entry_cost"           json:"entry_cost"`
	MaxEntriesPerUser int        `db:"max_entries_per_user" json:"max_entries_per_user"`
	StartsAt          time.Time  `db:"starts_at"            json:"starts_at"`
	EndsAt            time.Time  `db:"ends_at"              json:"ends_at"`
	Status            Status     `db:"status"               json:"status"`
	TotalEntries      int        `db:"total_entries"        json:"total_entries"`
	WinnerUserID      *uuid.UUID `db:"winner_user_id"       json:"winner_user_id,omitempty"`
	DrawnAt           *time.Time `db:"drawn_at"             json:"drawn_at,omitempty"`
	CreatedAt         time.Time  `db:"created_at"           json:"created_at"`
	UpdatedAt         time.Time  `db:"updated_at"           json:"updated_at"`
}

// AcceptingEntriesAt reports whether entries are allowed at t.
func (r *Raffle) AcceptingEntriesAt(t time.Time) bool {
	return r.Status == StatusOpen && !t.Before(r.StartsAt) && t.Before(r.EndsAt)
}

type RaffleWithUserEntries struct {
	Raffle
	UserTickets int `json:"user_tickets"`
}

type Entry struct {
	ID          uuid.UUID `db:"id"           json:"id"`
	RaffleID    uuid.UUID `db:"raffle_id"    json:"raffle_id"`
	RaffleTitle string    `db:"-"            json:"raffle_title,omitempty"`
	UserID      uuid.UUID `db:"user_id"      json:"user_id"`
	Tickets     int       `db:"tickets"      json:"tickets"`
	PointsSpent int       `db:"points_spent" json:"points_spent"`
	CreatedAt   time.Time `db:"created_at"   json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"   json:"updated_at"`
}

type EnterRequest struct {
	Tickets int `json:"tickets" validate:"gte=1,lte=1000"`
}

type EnterResult struct {
	Entry           *Entry                    `json:"entry"`
	PointsSpent     int                       `json:"points_spent"`
	Balance         int                       `json:"balance"`
	TotalEntries    int                       `json:"total_entries"`
	NewAchievements []achievement.Achievement `json:"new_achievements"`
}

type DrawResult struct {
	RaffleID       uuid.UUID  `json:"raffle_id"`
	WinnerUserID   *uuid.UUID `json:"winner_user_id,omitempty"`
	WinnerUsername string     `json:"winner_username,omitempty"`
	TotalEntries   int        `json:"total_entries"`
	DrawnAt        time.Time  `json:"drawn_at"`
}

// MaxEntryCost caps entry_cost so cost × tickets stays far from int overflow.
const MaxEntryCost = 1_000_000

type UpsertRaffleRequest struct {
	Title             string    `json:"title" validate:"required,max=160"`
	Description       string    `json:"description" validate:"max=2000"`
	Prize             string    `json:"prize" validate:"required,max=255"`
	ImageURL          string    `json:"image_url" validate:"omitempty,url"`
	BreweryID         string    `json:"brewery_id" validate:"omitempty,uuid"`
	EntryCost         int       `json:"entry_cost" validate:"gte=1,lte=1000000"`
	MaxEntriesPerUser int       `json:"max_entries_per_user" validate:"gte=0,lte=1000000"`
	StartsAt          time.Time `json:"starts_at" validate:"required"`
	EndsAt            time.Time `json:"ends_at" validate:"required,gtfield=StartsAt"`
}
