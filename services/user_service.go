package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"brewedAtAPI/internal/database"
	"brewedAtAPI/internal/points"
	"brewedAtAPI/internal/types/checkin"
	"brewedAtAPI/internal/user"
)

const userColumns = `
	id, clerk_id, email, username, first_name, last_name, image_url,
	email_verified, points, lifetime_points, level, created_at, updated_at`

type UserService struct {
	db             database.DB
	pointsPerLevel int
	now            func() time.Time
}

func NewUserService(db database.DB, pointsPerLevel int) *UserService {
	return &UserService{db: db, pointsPerLevel: pointsPerLevel, now: time.Now}
}

func scanUser(row pgx.Row) (*user.User, error) {
	u := &user.User{}
	err := row.Scan(
		&u.ID,
		&u.ClerkID,
		&u.Email,
		&u.Username,
		&u.FirstName,
		&u.LastName,
		&u.ImageURL,
		&u.EmailVerified,
		&u.Points,
		&u.LifetimePoints,
		&u.Level,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return u, nil
}

// CreateUser inserts the user or, when Clerk redelivers user.created, refreshes the profile fields.
func (s *UserService) CreateUser(ctx context.Context, req *user.CreateUserRequest) (*user.User, error) {
	query := `
	INSERT INTO users (clerk_id, email, username, first_name, last_name, image_url)
	VALUES ($1, $2, $3, $4, $5, $6)
	ON CONFLICT (clerk_id) DO UPDATE
	SET email = EXCLUDED.email,
		username = EXCLUDED.username,
		first_name = EXCLUDED.first_name,
		last_name = EXCLUDED.last_name,
		image_url = EXCLUDED.image_url,
		updated_at = NOW()
	RETURNING ` + userColumns

	u, err := scanUser(s.db.QueryRow(
		ctx,
		query,
		req.ClerkID,
		req.Email,
		req.Username,
		req.FirstName,
		req.LastName,
		req.ImageURL,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return u, nil
}

func (s *UserService) GetUserByClerkID(ctx context.Context, clerkID string) (*user.User, error) {
	u, err := scanUser(s.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE clerk_id = $1`, clerkID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

// GetProfile returns the user with level progress and activity counters.
func (s *UserService) GetProfile(ctx context.Context, clerkID string) (*user.Profile, error) {
	u, err := s.GetUserByClerkID(ctx, clerkID)
	if err != nil {
		return nil, err
	}

	profile := &user.Profile{
		User:     u,
		Progress: points.ProgressFor(u.LifetimePoints, s.pointsPerLevel),
	}

	query := `
	SELECT
		(SELECT COUNT(*) FROM checkins WHERE user_id = $1),
		(SELECT COUNT(DISTINCT brewery_id) FROM checkins WHERE user_id = $1),
		(SELECT COUNT(*) FROM user_achievements WHERE user_id = $1)
	`
	err = s.db.QueryRow(ctx, query, u.ID).Scan(&profile.TotalCheckIns, &profile.UniqueBreweries, &profile.Achievements)
	if err != nil {
		return nil, fmt.Errorf("failed to load profile counters: %w", err)
	}

	userID, err := uuid.Parse(u.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to parse user id: %w", err)
	}
	profile.CheckInStreak, err = loadStreak(ctx, s.db, userID, s.now())
	if err != nil {
		return nil, err
	}

	return profile, nil
}

// UpdateProfileByClerkID changes profile fields. Empty values keep the stored value.
func (s *UserService) UpdateProfileByClerkID(ctx context.Context, clerkID string, req *user.UpdateProfileRequest) (*user.User, error) {
	query := `
	UPDATE users
	SET
		username = COALESCE(NULLIF($2, ''), username),
		first_name = COALESCE(NULLIF($3, ''), first_name),
		last_name = COALESCE(NULLIF($4, ''), last_name),
		image_url = COALESCE(NULLIF($5, ''), image_url),
		updated_at = NOW()
	WHERE clerk_id = $1
	RETURNING ` + userColumns

	u, err := scanUser(s.db.QueryRow(
		ctx,
		query,
		clerkID,
		strings.TrimSpace(req.Username),
		strings.TrimSpace(req.FirstName),
		strings.TrimSpace(req.LastName),
		strings.TrimSpace(req.ImageURL),
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to update user: %w", err)
	}

	return u, nil
}

func (s *UserService) UpdateEmail(ctx context.Context, clerkID, email string, verified bool) error {
	query := `
	UPDATE users
	SET email = COALESCE(NULLIF($2, ''), email), email_verified = $3, updated_at = NOW()
	WHERE clerk_id = $1
	`

	_, err := s.db.Exec(ctx, query, clerkID, email, verified)
	if err != nil {
		return fmt.Errorf("failed to update email: %w", err)
	}
	return nil
}

func (s *UserService) DeleteUserByClerkID(ctx context.Context, clerkID string) error {
	result, err := s.db.Exec(ctx, `DELETE FROM users WHERE clerk_id = $1`, clerkID)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrUserNotFound
	}

	return nil
}

// GetCheckInHistory pages through the user's check-ins, newest first.
func (s *UserService) GetCheckInHistory(ctx context.Context, clerkID string, page, pageSize int) (*checkin.HistoryPage, error) {
	page, pageSize = normalizePage(page, pageSize)

	u, err := s.GetUserByClerkID(ctx, clerkID)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.Query(ctx, `
	SELECT
		c.id, c.user_id, c.brewery_id, b.name, c.event_id, c.method,
		c.latitude, c.longitude, c.distance_m, c.points_awarded, c.created_at
	FROM checkins c
	JOIN breweries b ON b.id = c.brewery_id
	WHERE c.user_id = $1
	ORDER BY c.created_at DESC
	LIMIT $2 OFFSET $3
	`, u.ID, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to query check-ins: %w", err)
	}
	defer rows.Close()

	history := &checkin.HistoryPage{
		CheckIns: []*checkin.CheckIn{},
		Page:     page,
		PageSize: pageSize,
	}
	for rows.Next() {
		c := &checkin.CheckIn{}
		var method string
		if err := rows.Scan(
			&c.ID,
			&c.UserID,
			&c.BreweryID,
			&c.BreweryName,
			&c.EventID,
			&method,
			&c.Latitude,
			&c.Longitude,
			&c.DistanceM,
			&c.PointsAwarded,
			&c.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan check-in: %w", err)
		}
		c.Method = checkin.Method(method)
		history.CheckIns = append(history.CheckIns, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM checkins WHERE user_id = $1`, u.ID).Scan(&history.Total); err != nil {
		return nil, fmt.Errorf("failed to count check-ins: %w", err)
	}

	return history, nil
}
