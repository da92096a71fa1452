package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"brewedAtAPI/internal/cache"
	"brewedAtAPI/internal/database"
	"brewedAtAPI/internal/leaderboard"
)

const (
	leaderboardCachePrefix = "leaderboard:"
	leaderboardSize        = 50
)

var ErrInvalidScope = errors.New("invalid leaderboard scope")

type LeaderboardService struct {
	db    database.DB
	cache *cache.Cache
	ttl   time.Duration
	now   func() time.Time
}

func NewLeaderboardService(db database.DB, cache *cache.Cache, ttl time.Duration) *LeaderboardService {
	return &LeaderboardService{
		db:    db,
		cache: cache,
		ttl:   ttl,
		now:   time.Now,
	}
}

// rankedCTE builds the "ranked" common table expression for a scope.
func rankedCTE(scope leaderboard.Scope, breweryID *uuid.UUID, now time.Time) (string, []any) {
	switch scope {
	case leaderboard.ScopeWeekly:
		return `
		WITH ranked AS (
			SELECT
				u.id AS user_id,
				u.username,
				NULLIF(u.image_url, '') AS image_url,
				SUM(c.points_awarded)::int AS score,
				u.level,
				RANK() OVER (ORDER BY SUM(c.points_awarded) DESC)::int AS rank
			FROM checkins c
			JOIN users u ON u.id = c.user_id
			WHERE c.created_at >= $1
			GROUP BY u.id
		)`, []any{leaderboard.WeekStart(now)}

	case leaderboard.ScopeBrewery:
		return `
		WITH ranked AS (
			SELECT
				u.id AS user_id,
				u.username,
				NULLIF(u.image_url, '') AS image_url,
				COUNT(*)::int AS score,
				u.level,
				RANK() OVER (ORDER BY COUNT(*) DESC)::int AS rank
			FROM checkins c
			JOIN users u ON u.id = c.user_id
			WHERE c.brewery_id = $1
			GROUP BY u.id
		)`, []any{*breweryID}

	default:
		return `
		WITH ranked AS (
			SELECT
				id AS user_id,
				username,
				NULLIF(image_url, '') AS image_url,
				lifetime_points AS score,
				level,
				RANK() OVER (ORDER BY lifetime_points DESC)::int AS rank
			FROM users
			WHERE lifetime_points > 0
		)`, nil
	}
}

func leaderboardCacheKey(scope leaderboard.Scope, breweryID *uuid.UUID, now time.Time) string {
	switch scope {
	case leaderboard.ScopeWeekly:
		return leaderboardCachePrefix + string(scope) + ":" + leaderboard.WeekStart(now).Format("2006-01-02")
	case leaderboard.ScopeBrewery:
		return leaderboardCachePrefix + string(scope) + ":" + breweryID.String()
	}
	return leaderboardCachePrefix + string(scope)
}

// GetLeaderboard returns the top entries for the scope. When clerkID is set the
// caller's own rank is attached even if it falls outside the top list.
func (s *LeaderboardService) GetLeaderboard(ctx context.Context, scopeParam, breweryParam, clerkID string) (*leaderboard.Leaderboard, error) {
	scope, ok := leaderboard.ParseScope(scopeParam)
	if !ok {
		return nil, ErrInvalidScope
	}

	var breweryID *uuid.UUID
	if scope == leaderboard.ScopeBrewery {
		id, err := uuid.Parse(breweryParam)
		if err != nil {
			return nil, ErrInvalidID
		}
		breweryID = &id
	}

	now := s.now().UTC()

	board, err := s.top(ctx, scope, breweryID, now)
	if err != nil {
		return nil, err
	}

	if clerkID != "" {
		position, err := s.position(ctx, scope, breweryID, now, clerkID)
		if err != nil {
			return nil, err
		}
		board.UserPosition = position
	}

	return board, nil
}

func (s *LeaderboardService) top(ctx context.Context, scope leaderboard.Scope, breweryID *uuid.UUID, now time.Time) (*leaderboard.Leaderboard, error) {
	key := leaderboardCacheKey(scope, breweryID, now)

	var cached leaderboard.Leaderboard
	if s.cache.GetJSON(ctx, key, &cached) {
		return &cached, nil
	}

	cte, args := rankedCTE(scope, breweryID, now)

	query := cte + fmt.Sprintf(`
	SELECT user_id, username, image_url, score, level, rank
	FROM ranked
	ORDER BY rank, username
	LIMIT %d`, leaderboardSize)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query leaderboard: %w", err)
	}
	defer rows.Close()

	entries := []*leaderboard.LeaderboardEntry{}
	for rows.Next() {
		e, err := scanLeaderboardEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan leaderboard entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	board := &leaderboard.Leaderboard{
		Scope:     scope,
		BreweryID: breweryID,
		Entries:   entries,
	}
	if err := s.db.QueryRow(ctx, cte+` SELECT COUNT(*) FROM ranked`, args...).Scan(&board.TotalUsers); err != nil {
		return nil, fmt.Errorf("failed to count leaderboard: %w", err)
	}

	s.cache.SetJSON(ctx, key, board, s.ttl)
	return board, nil
}

func (s *LeaderboardService) position(ctx context.Context, scope leaderboard.Scope, breweryID *uuid.UUID, now time.Time, clerkID string) (*leaderboard.LeaderboardEntry, error) {
	cte, args := rankedCTE(scope, breweryID, now)
	args = append(args, clerkID)

	query := cte + fmt.Sprintf(`
	SELECT user_id, username, image_url, score, level, rank
	FROM ranked
	WHERE user_id = (SELECT id FROM users WHERE clerk_id = $%d)`, len(args))

	e, err := scanLeaderboardEntry(s.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user position: %w", err)
	}
	return e, nil
}

func scanLeaderboardEntry(row pgx.Row) (*leaderboard.LeaderboardEntry, error) {
	var e leaderboard.LeaderboardEntry
	if err := row.Scan(&e.UserID, &e.Username, &e.ImageURL, &e.Score, &e.Level, &e.Rank); err != nil {
		return nil, err
	}
	return &e, nil
}

// Warm refreshes the cached all-time and weekly boards.
func (s *LeaderboardService) Warm(ctx context.Context) error {
	now := s.now().UTC()
	for _, scope := range []leaderboard.Scope{leaderboard.ScopeAllTime, leaderboard.ScopeWeekly} {
		s.cache.InvalidatePrefix(ctx, leaderboardCacheKey(scope, nil, now))
		if _, err := s.top(ctx, scope, nil, now); err != nil {
			return err
		}
	}
	return nil
}
