package services

import (
	"context"
	"fmt"
	"time"

	"brewedAtAPI/internal/database"
)

type Overview struct {
	Users              int `json:"users"`
	ActiveBreweries    int `json:"active_breweries"`
	CheckInsToday      int `json:"checkins_today"`
	CheckInsThisWeek   int `json:"checkins_this_week"`
	OpenRaffles        int `json:"open_raffles"`
	UpcomingEvents     int `json:"upcoming_events"`
	PointsOutstanding  int `json:"points_outstanding"`
	LifetimePointsPaid int `json:"lifetime_points_awarded"`
}

type AdminService struct {
	db  database.DB
	now func() time.Time
}

func NewAdminService(db database.DB) *AdminService {
	return &AdminService{db: db, now: time.Now}
}

// Overview collects dashboard counters. Days are UTC.
func (s *AdminService) Overview(ctx context.Context) (*Overview, error) {
	now := s.now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	query := `
	SELECT
		(SELECT COUNT(*) FROM users),
		(SELECT COUNT(*) FROM breweries WHERE is_active),
		(SELECT COUNT(*) FROM checkins WHERE created_at >= $1),
		(SELECT COUNT(*) FROM checkins WHERE created_at >= $2),
		(SELECT COUNT(*) FROM raffles WHERE status = 'open'),
		(SELECT COUNT(*) FROM events WHERE ends_at > $3),
		(SELECT COALESCE(SUM(points), 0) FROM users),
		(SELECT COALESCE(SUM(lifetime_points), 0) FROM users)
	`

	o := &Overview{}
	err := s.db.QueryRow(ctx, query, today, today.AddDate(0, 0, -6), now).Scan(
		&o.Users,
		&o.ActiveBreweries,
		&o.CheckInsToday,
		&o.CheckInsThisWeek,
		&o.OpenRaffles,
		&o.UpcomingEvents,
		&o.PointsOutstanding,
		&o.LifetimePointsPaid,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load overview: %w", err)
	}
	return o, nil
}
