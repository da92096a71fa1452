package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"brewedAtAPI/internal/achievement"
	"brewedAtAPI/internal/cache"
	"brewedAtAPI/internal/database"
	"brewedAtAPI/internal/geo"
	"brewedAtAPI/internal/logger"
	"brewedAtAPI/internal/metrics"
	"brewedAtAPI/internal/notification"
	"brewedAtAPI/internal/points"
	"brewedAtAPI/internal/qrtoken"
	"brewedAtAPI/internal/types/brewery"
	"brewedAtAPI/internal/types/checkin"
	"brewedAtAPI/internal/types/event"
)

// Notifier stores and pushes a notification for a user.
type Notifier interface {
	Notify(ctx context.Context, req *notification.CreateNotificationRequest) error
}

// FeedPublisher broadcasts activity to live feed subscribers.
type FeedPublisher interface {
	Publish(ev FeedEvent)
}

type CheckInConfig struct {
	Cooldown            time.Duration
	DefaultRadiusMeters float64
	DefaultPoints       int
	PointsPerLevel      int
}

type CheckInService struct {
	db           database.DB
	qr           *qrtoken.Signer
	achievements *AchievementService
	cache        *cache.Cache
	notifier     Notifier
	feed         FeedPublisher
	cfg          CheckInConfig
	now          func() time.Time
}

func NewCheckInService(
	db database.DB,
	qr *qrtoken.Signer,
	achievements *AchievementService,
	cache *cache.Cache,
	notifier Notifier,
	feed FeedPublisher,
	cfg CheckInConfig,
) *CheckInService {
	return &CheckInService{
		db:           db,
		qr:           qr,
		achievements: achievements,
		cache:        cache,
		notifier:     notifier,
		feed:         feed,
		cfg:          cfg,
		now:          time.Now,
	}
}

type lockedUser struct {
	ID             uuid.UUID
	Username       string
	Points         int
	LifetimePoints int
	Level          int
}

func lockUserByClerkID(ctx context.Context, tx pgx.Tx, clerkID string) (*lockedUser, error) {
	var u lockedUser
	err := tx.QueryRow(ctx, `
	SELECT id, username, points, lifetime_points, level
	FROM users
	WHERE clerk_id = $1
	FOR UPDATE
	`, clerkID).Scan(&u.ID, &u.Username, &u.Points, &u.LifetimePoints, &u.Level)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to lock user: %w", err)
	}
	return &u, nil
}

func rejectCheckIn(reason string, err error) error {
	metrics.CheckInRejections.WithLabelValues(reason).Inc()
	return err
}

// CheckIn validates and records a visit, awards points and unlocks achievements.
// Everything up to the commit runs in one transaction with the user row locked.
func (s *CheckInService) CheckIn(ctx context.Context, clerkID string, req *checkin.CheckInRequest) (*checkin.CheckInResult, error) {
	breweryID, err := uuid.Parse(req.BreweryID)
	if err != nil {
		return nil, ErrInvalidID
	}

	var requestedEvent *uuid.UUID
	if req.EventID != "" {
		id, err := uuid.Parse(req.EventID)
		if err != nil {
			return nil, ErrInvalidID
		}
		requestedEvent = &id
	}

	var at geo.Point
	switch req.Method {
	case checkin.MethodQR:
		if req.QRToken == "" {
			return nil, rejectCheckIn("invalid_qr", ErrInvalidQRToken)
		}
		tokenBrewery, err := s.qr.Verify(req.QRToken)
		if err != nil || tokenBrewery != breweryID {
			return nil, rejectCheckIn("invalid_qr", ErrInvalidQRToken)
		}
	case checkin.MethodGeofence:
		if req.Latitude == nil || req.Longitude == nil {
			return nil, ErrInvalidCoordinates
		}
		at = geo.Point{Lat: *req.Latitude, Lng: *req.Longitude}
		if err := at.Validate(); err != nil {
			return nil, ErrInvalidCoordinates
		}
	default:
		return nil, ErrInvalidCheckIn
	}

	now := s.now().UTC()

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	b, err := getBrewery(ctx, tx, breweryID)
	if err != nil {
		return nil, err
	}
	if !b.IsActive {
		return nil, ErrBreweryNotFound
	}

	var distance *float64
	if req.Method == checkin.MethodGeofence {
		radius := b.CheckInRadiusM
		if radius <= 0 {
			radius = s.cfg.DefaultRadiusMeters
		}
		site := geo.Point{Lat: b.Latitude, Lng: b.Longitude}
		d := geo.Distance(at, site)
		if !geo.Within(at, site, radius) {
			return nil, rejectCheckIn("out_of_range", &DistanceError{DistanceMeters: d, RadiusMeters: radius})
		}
		distance = &d
	}

	u, err := lockUserByClerkID(ctx, tx, clerkID)
	if err != nil {
		return nil, err
	}

	var last time.Time
	err = tx.QueryRow(ctx, `
	SELECT created_at
	FROM checkins
	WHERE user_id = $1 AND brewery_id = $2
	ORDER BY created_at DESC
	LIMIT 1
	`, u.ID, b.ID).Scan(&last)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to read last check-in: %w", err)
	}
	if remaining := points.CooldownRemaining(last, now, s.cfg.Cooldown); remaining > 0 {
		return nil, rejectCheckIn("cooldown", &CooldownError{
			NextAllowedAt: last.Add(s.cfg.Cooldown),
			Remaining:     remaining,
		})
	}

	eventID, eventBonus, err := resolveEvent(ctx, tx, b.ID, requestedEvent, now)
	if err != nil {
		if errors.Is(err, ErrEventNotRunning) {
			return nil, rejectCheckIn("event_not_running", err)
		}
		return nil, err
	}

	base := b.PointsPerCheckIn
	if base <= 0 {
		base = s.cfg.DefaultPoints
	}
	award := points.CheckInAward(base, eventBonus)

	ci := &checkin.CheckIn{
		UserID:        u.ID,
		BreweryID:     b.ID,
		BreweryName:   b.Name,
		EventID:       eventID,
		Method:        req.Method,
		DistanceM:     distance,
		PointsAwarded: award,
	}
	if req.Method == checkin.MethodGeofence {
		ci.Latitude = &at.Lat
		ci.Longitude = &at.Lng
	}

	err = tx.QueryRow(ctx, `
	INSERT INTO checkins (user_id, brewery_id, event_id, method, latitude, longitude, distance_m, points_awarded, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	RETURNING id, created_at
	`, ci.UserID, ci.BreweryID, ci.EventID, string(ci.Method), ci.Latitude, ci.Longitude, ci.DistanceM, ci.PointsAwarded, now,
	).Scan(&ci.ID, &ci.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert check-in: %w", err)
	}

	if err := insertLedger(ctx, tx, u.ID, award, "checkin", &ci.ID); err != nil {
		return nil, err
	}

	lifetime := u.LifetimePoints + award
	unlocked, bonus, err := s.achievements.unlockTx(ctx, tx, u.ID, lifetime, now)
	if err != nil {
		return nil, err
	}
	lifetime += bonus
	balance := u.Points + award + bonus
	level := points.LevelFor(lifetime, s.cfg.PointsPerLevel)
	if level < u.Level {
		level = u.Level
	}

	_, err = tx.Exec(ctx, `
	UPDATE users
	SET points = $2, lifetime_points = $3, level = $4, updated_at = NOW()
	WHERE id = $1
	`, u.ID, balance, lifetime, level)
	if err != nil {
		return nil, fmt.Errorf("failed to update user points: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit check-in: %w", err)
	}

	if unlocked == nil {
		unlocked = []achievement.Achievement{}
	}
	result := &checkin.CheckInResult{
		CheckIn:          ci,
		PointsAwarded:    award,
		AchievementBonus: bonus,
		Balance:          balance,
		LifetimePoints:   lifetime,
		Level:            level,
		LeveledUp:        level > u.Level,
		NewAchievements:  unlocked,
	}

	s.afterCheckIn(ctx, u, b, result)
	return result, nil
}

// resolveEvent returns the event the check-in counts towards and its bonus.
// An explicit event must be running at the brewery; otherwise the best running event applies.
func resolveEvent(ctx context.Context, q database.Querier, breweryID uuid.UUID, requested *uuid.UUID, now time.Time) (*uuid.UUID, int, error) {
	var id uuid.UUID
	var bonus int

	if requested != nil {
		var e event.Event
		err := q.QueryRow(ctx, `
		SELECT id, bonus_points, starts_at, ends_at
		FROM events
		WHERE id = $1 AND brewery_id = $2
		`, *requested, breweryID).Scan(&e.ID, &e.BonusPoints, &e.StartsAt, &e.EndsAt)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, 0, ErrEventNotRunning
			}
			return nil, 0, fmt.Errorf("failed to load event: %w", err)
		}
		if !e.RunningAt(now) {
			return nil, 0, ErrEventNotRunning
		}
		return &e.ID, e.BonusPoints, nil
	}

	err := q.QueryRow(ctx, `
	SELECT id, bonus_points
	FROM events
	WHERE brewery_id = $1 AND starts_at <= $2 AND ends_at > $2
	ORDER BY bonus_points DESC, starts_at
	LIMIT 1
	`, breweryID, now).Scan(&id, &bonus)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("failed to load running event: %w", err)
	}
	return &id, bonus, nil
}

// afterCheckIn runs the side effects that must never fail a committed check-in.
func (s *CheckInService) afterCheckIn(ctx context.Context, u *lockedUser, b *brewery.Brewery, result *checkin.CheckInResult) {
	metrics.CheckIns.WithLabelValues(string(result.CheckIn.Method)).Inc()
	metrics.PointsAwarded.Add(float64(result.PointsAwarded + result.AchievementBonus))
	for _, a := range result.NewAchievements {
		metrics.AchievementsUnlocked.WithLabelValues(a.Code).Inc()
	}

	s.cache.InvalidatePrefix(ctx, leaderboardCachePrefix)

	if s.feed != nil {
		s.feed.Publish(FeedEvent{
			Type:        FeedEventCheckIn,
			BreweryID:   b.ID.String(),
			BreweryName: b.Name,
			Username:    u.Username,
			Points:      result.PointsAwarded,
			At:          result.CheckIn.CreatedAt,
		})
	}

	if s.notifier == nil {
		return
	}

	for _, a := range result.NewAchievements {
		err := s.notifier.Notify(ctx, &notification.CreateNotificationRequest{
			UserID: u.ID,
			Type:   notification.TypeAchievementUnlocked,
			Title:  "Achievement unlocked: " + a.Name,
			Body:   a.Description,
			Data: map[string]any{
				"achievement_id": a.ID.String(),
				"code":           a.Code,
				"reward_points":  a.RewardPoints,
			},
		})
		if err != nil {
			logger.Sugar.Warnf("CheckIn: failed to notify achievement %s for user %s: %v", a.Code, u.ID, err)
		}
	}

	if result.LeveledUp {
		err := s.notifier.Notify(ctx, &notification.CreateNotificationRequest{
			UserID: u.ID,
			Type:   notification.TypeLevelUp,
			Title:  fmt.Sprintf("You reached level %d", result.Level),
			Body:   fmt.Sprintf("%d lifetime points and counting.", result.LifetimePoints),
			Data:   map[string]any{"level": result.Level},
		})
		if err != nil {
			logger.Sugar.Warnf("CheckIn: failed to notify level up for user %s: %v", u.ID, err)
		}
	}
}
