package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"brewedAtAPI/internal/achievement"
	"brewedAtAPI/internal/database"
	"brewedAtAPI/internal/points"
)

// streakLookback bounds how far back check-in days are read for streak criteria.
const streakLookback = 400 * 24 * time.Hour

type AchievementService struct {
	db             database.DB
	pointsPerLevel int
	now            func() time.Time
}

func NewAchievementService(db database.DB, pointsPerLevel int) *AchievementService {
	return &AchievementService{
		db:             db,
		pointsPerLevel: pointsPerLevel,
		now:            time.Now,
	}
}

type achievementRow struct {
	def        achievement.Achievement
	unlockedAt *time.Time
}

func (s *AchievementService) loadDefinitions(ctx context.Context, q database.Querier, userID uuid.UUID) ([]achievementRow, error) {
	query := `
	SELECT
		a.id, a.code, a.name, a.description, a.icon,
		a.criteria_type, a.criteria_value, a.reward_points, a.created_at,
		ua.unlocked_at
	FROM achievements a
	LEFT JOIN user_achievements ua ON ua.achievement_id = a.id AND ua.user_id = $1
	ORDER BY a.criteria_value, a.name
	`

	rows, err := q.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query achievements: %w", err)
	}
	defer rows.Close()

	var out []achievementRow
	for rows.Next() {
		var r achievementRow
		if err := rows.Scan(
			&r.def.ID,
			&r.def.Code,
			&r.def.Name,
			&r.def.Description,
			&r.def.Icon,
			&r.def.CriteriaType,
			&r.def.CriteriaValue,
			&r.def.RewardPoints,
			&r.def.CreatedAt,
			&r.unlockedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan achievement: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return out, nil
}

// loadStats reads the activity counters achievements are measured against.
// lifetime and level come from the caller since they may not be persisted yet.
func (s *AchievementService) loadStats(ctx context.Context, q database.Querier, userID uuid.UUID, lifetime int, now time.Time) (achievement.Stats, error) {
	query := `
	SELECT
		(SELECT COUNT(*) FROM checkins WHERE user_id = $1),
		(SELECT COUNT(DISTINCT brewery_id) FROM checkins WHERE user_id = $1),
		(SELECT COUNT(DISTINCT event_id) FROM checkins WHERE user_id = $1 AND event_id IS NOT NULL),
		(SELECT COALESCE(SUM(tickets), 0) FROM raffle_entries WHERE user_id = $1)
	`

	var total, unique, events, tickets int
	if err := q.QueryRow(ctx, query, userID).Scan(&total, &unique, &events, &tickets); err != nil {
		return nil, fmt.Errorf("failed to load user stats: %w", err)
	}

	streak, err := loadStreak(ctx, q, userID, now)
	if err != nil {
		return nil, err
	}

	return achievement.Stats{
		achievement.CriteriaTotalCheckIns:   total,
		achievement.CriteriaUniqueBreweries: unique,
		achievement.CriteriaEventsAttended:  events,
		achievement.CriteriaRaffleEntries:   tickets,
		achievement.CriteriaCheckInStreak:   streak,
		achievement.CriteriaLifetimePoints:  lifetime,
		achievement.CriteriaLevel:           points.LevelFor(lifetime, s.pointsPerLevel),
	}, nil
}

// loadStreak counts consecutive UTC days with a check-in, ending today or yesterday.
func loadStreak(ctx context.Context, q database.Querier, userID uuid.UUID, now time.Time) (int, error) {
	query := `
	SELECT DISTINCT date_trunc('day', created_at AT TIME ZONE 'UTC') AS day
	FROM checkins
	WHERE user_id = $1 AND created_at >= $2
	ORDER BY day DESC
	`

	rows, err := q.Query(ctx, query, userID, now.Add(-streakLookback))
	if err != nil {
		return 0, fmt.Errorf("failed to query check-in days: %w", err)
	}
	defer rows.Close()

	var days []time.Time
	for rows.Next() {
		var d time.Time
		if err := rows.Scan(&d); err != nil {
			return 0, fmt.Errorf("failed to scan check-in day: %w", err)
		}
		days = append(days, d)
	}
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("rows error: %w", err)
	}

	return achievement.Streak(days, now), nil
}

// unlockTx evaluates and persists newly earned achievements inside tx.
// Reward points feed back into lifetime points, so evaluation repeats until
// nothing new unlocks. It returns the unlocked achievements and their total reward.
func (s *AchievementService) unlockTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID, lifetime int, now time.Time) ([]achievement.Achievement, int, error) {
	rows, err := s.loadDefinitions(ctx, tx, userID)
	if err != nil {
		return nil, 0, err
	}
	if len(rows) == 0 {
		return nil, 0, nil
	}

	defs := make([]achievement.Achievement, 0, len(rows))
	unlocked := make(map[uuid.UUID]bool, len(rows))
	for _, r := range rows {
		defs = append(defs, r.def)
		if r.unlockedAt != nil {
			unlocked[r.def.ID] = true
		}
	}

	stats, err := s.loadStats(ctx, tx, userID, lifetime, now)
	if err != nil {
		return nil, 0, err
	}

	var earned []achievement.Achievement
	bonus := 0
	for range defs {
		stats[achievement.CriteriaLifetimePoints] = lifetime + bonus
		stats[achievement.CriteriaLevel] = points.LevelFor(lifetime+bonus, s.pointsPerLevel)

		batch := achievement.Evaluate(defs, stats, unlocked)
		if len(batch) == 0 {
			break
		}

		for _, a := range batch {
			unlocked[a.ID] = true

			tag, err := tx.Exec(ctx, `
			INSERT INTO user_achievements (user_id, achievement_id, unlocked_at)
			VALUES ($1, $2, $3)
			ON CONFLICT (user_id, achievement_id) DO NOTHING
			`, userID, a.ID, now)
			if err != nil {
				return nil, 0, fmt.Errorf("failed to unlock achievement %s: %w", a.Code, err)
			}
			if tag.RowsAffected() == 0 {
				continue
			}

			if a.RewardPoints > 0 {
				if err := insertLedger(ctx, tx, userID, a.RewardPoints, "achievement", &a.ID); err != nil {
					return nil, 0, err
				}
			}

			earned = append(earned, a)
			bonus += a.RewardPoints
		}
	}

	return earned, bonus, nil
}

func insertLedger(ctx context.Context, q database.Querier, userID uuid.UUID, delta int, reason string, refID *uuid.UUID) error {
	_, err := q.Exec(ctx, `
	INSERT INTO points_ledger (user_id, delta, reason, ref_id)
	VALUES ($1, $2, $3, $4)
	`, userID, delta, reason, refID)
	if err != nil {
		return fmt.Errorf("failed to write points ledger: %w", err)
	}
	return nil
}

// GetAchievements lists every definition with the user's unlock status and progress.
func (s *AchievementService) GetAchievements(ctx context.Context, clerkID string) ([]*achievement.AchievementWithStatus, error) {
	var userID uuid.UUID
	var lifetime int
	err := s.db.QueryRow(ctx, `SELECT id, lifetime_points FROM users WHERE clerk_id = $1`, clerkID).Scan(&userID, &lifetime)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	rows, err := s.loadDefinitions(ctx, s.db, userID)
	if err != nil {
		return nil, err
	}

	stats, err := s.loadStats(ctx, s.db, userID, lifetime, s.now())
	if err != nil {
		return nil, err
	}

	out := make([]*achievement.AchievementWithStatus, 0, len(rows))
	for _, r := range rows {
		progress := stats[r.def.CriteriaType]
		if progress > r.def.CriteriaValue || r.unlockedAt != nil {
			progress = r.def.CriteriaValue
		}
		out = append(out, &achievement.AchievementWithStatus{
			Achievement: r.def,
			Unlocked:    r.unlockedAt != nil,
			UnlockedAt:  r.unlockedAt,
			Progress:    progress,
		})
	}
	return out, nil
}

func (s *AchievementService) ListDefinitions(ctx context.Context) ([]*achievement.Achievement, error) {
	rows, err := s.db.Query(ctx, `
	SELECT id, code, name, description, icon, criteria_type, criteria_value, reward_points, created_at
	FROM achievements
	ORDER BY criteria_type, criteria_value
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query achievements: %w", err)
	}
	defer rows.Close()

	out := []*achievement.Achievement{}
	for rows.Next() {
		a, err := scanAchievement(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func scanAchievement(row pgx.Row) (*achievement.Achievement, error) {
	var a achievement.Achievement
	if err := row.Scan(
		&a.ID,
		&a.Code,
		&a.Name,
		&a.Description,
		&a.Icon,
		&a.CriteriaType,
		&a.CriteriaValue,
		&a.RewardPoints,
		&a.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *AchievementService) CreateDefinition(ctx context.Context, req *achievement.UpsertAchievementRequest) (*achievement.Achievement, error) {
	if !req.CriteriaType.Valid() {
		return nil, ErrInvalidCriteria
	}

	a, err := scanAchievement(s.db.QueryRow(ctx, `
	INSERT INTO achievements (code, name, description, icon, criteria_type, criteria_value, reward_points)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	RETURNING id, code, name, description, icon, criteria_type, criteria_value, reward_points, created_at
	`, req.Code, req.Name, req.Description, req.Icon, req.CriteriaType, req.CriteriaValue, req.RewardPoints))
	if err != nil {
		return nil, fmt.Errorf("failed to create achievement: %w", err)
	}
	return a, nil
}

// UpdateDefinition changes a definition. Users who already unlocked it keep it.
func (s *AchievementService) UpdateDefinition(ctx context.Context, id string, req *achievement.UpsertAchievementRequest) (*achievement.Achievement, error) {
	achievementID, err := uuid.Parse(id)
	if err != nil {
		return nil, ErrInvalidID
	}
	if !req.CriteriaType.Valid() {
		return nil, ErrInvalidCriteria
	}

	a, err := scanAchievement(s.db.QueryRow(ctx, `
	UPDATE achievements
	SET code = $2, name = $3, description = $4, icon = $5,
		criteria_type = $6, criteria_value = $7, reward_points = $8
	WHERE id = $1
	RETURNING id, code, name, description, icon, criteria_type, criteria_value, reward_points, created_at
	`, achievementID, req.Code, req.Name, req.Description, req.Icon, req.CriteriaType, req.CriteriaValue, req.RewardPoints))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAchievementNotFound
		}
		return nil, fmt.Errorf("failed to update achievement: %w", err)
	}
	return a, nil
}

func (s *AchievementService) DeleteDefinition(ctx context.Context, id string) error {
	achievementID, err := uuid.Parse(id)
	if err != nil {
		return ErrInvalidID
	}

	tag, err := s.db.Exec(ctx, `DELETE FROM achievements WHERE id = $1`, achievementID)
	if err != nil {
		return fmt.Errorf("failed to delete achievement: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAchievementNotFound
	}
	return nil
}
