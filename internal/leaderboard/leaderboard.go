package leaderboard

import (
	"time"

	"github.com/google/uuid"
)

type Scope string

const (
	ScopeAllTime Scope = "all_time"
	ScopeWeekly  Scope = "weekly"
	ScopeBrewery Scope = "brewery"
)

func ParseScope(s string) (Scope, bool) {
	switch Scope(s) {
	case "", ScopeAllTime:
		return ScopeAllTime, true
	case ScopeWeekly:
		return ScopeWeekly, true
	case ScopeBrewery:
		return ScopeBrewery, true
	}
	return "", false
}

type LeaderboardEntry struct {
	UserID   uuid.UUID `json:"user_id" db:"user_id"`
	Username string    `json:"username" db:"username"`
	ImageURL *string   `json:"image_url" db:"image_url"`
	Score    int       `json:"score" db:"score"`
	Level    int       `json:"level" db:"level"`
	Rank     int       `json:"rank" db:"rank"`
}

type Leaderboard struct {
	Scope        Scope               `json:"scope"`
	BreweryID    *uuid.UUID          `json:"brewery_id,omitempty"`
	Entries      []*LeaderboardEntry `json:"entries"`
	UserPosition *LeaderboardEntry   `json:"user_position"`
	TotalUsers   int                 `json:"total_users"`
}

// WeekStart returns Monday 00:00 UTC of the week containing t.
func WeekStart(t time.Time) time.Time {
	t = t.UTC()
	offset := (int(t.Weekday()) + 6) % 7
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return day.AddDate(0, 0, -offset)
}
