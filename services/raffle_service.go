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
	"brewedAtAPI/internal/logger"
	"brewedAtAPI/internal/metrics"
	"brewedAtAPI/internal/notification"
	"brewedAtAPI/internal/points"
	"brewedAtAPI/internal/types/raffle"
)

const raffleColumns = `
	id, title, description, prize, image_url, brewery_id, entry_cost,
	max_entries_per_user, starts_at, ends_at, status, total_entries,
	winner_user_id, drawn_at, created_at, updated_at`

type RaffleService struct {
	db             database.DB
	achievements   *AchievementService
	cache          *cache.Cache
	notifier       Notifier
	feed           FeedPublisher
	pointsPerLevel int
	intn           func(n int64) (int64, error)
	now            func() time.Time
}

func NewRaffleService(db database.DB, achievements *AchievementService, cache *cache.Cache, notifier Notifier, feed FeedPublisher, pointsPerLevel int) *RaffleService {
	return &RaffleService{
		db:             db,
		achievements:   achievements,
		cache:          cache,
		notifier:       notifier,
		feed:           feed,
		pointsPerLevel: pointsPerLevel,
		intn:           cryptoIntn,
		now:            time.Now,
	}
}

func scanRaffle(row pgx.Row) (*raffle.Raffle, error) {
	var r raffle.Raffle
	var status string
	err := row.Scan(
		&r.ID,
		&r.Title,
		&r.Description,
		&r.Prize,
		&r.ImageURL,
		&r.BreweryID,
		&r.EntryCost,
		&r.MaxEntriesPerUser,
		&r.StartsAt,
		&r.EndsAt,
		&status,
		&r.TotalEntries,
		&r.WinnerUserID,
		&r.DrawnAt,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	r.Status = raffle.Status(status)
	return &r, nil
}

func lockRaffle(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*raffle.Raffle, error) {
	r, err := scanRaffle(tx.QueryRow(ctx, `SELECT `+raffleColumns+` FROM raffles WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRaffleNotFound
		}
		return nil, fmt.Errorf("failed to lock raffle: %w", err)
	}
	return r, nil
}

// ListRaffles filters by status; an empty status lists open raffles, "all" lists everything.
func (s *RaffleService) ListRaffles(ctx context.Context, status string) ([]*raffle.Raffle, error) {
	query := `SELECT ` + raffleColumns + ` FROM raffles`
	args := []any{}
	switch status {
	case "all":
	case "":
		query += ` WHERE status = $1`
		args = append(args, string(raffle.StatusOpen))
	default:
		query += ` WHERE status = $1`
		args = append(args, status)
	}
	query += ` ORDER BY ends_at`

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query raffles: %w", err)
	}
	defer rows.Close()

	raffles := []*raffle.Raffle{}
	for rows.Next() {
		r, err := scanRaffle(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan raffle: %w", err)
		}
		raffles = append(raffles, r)
	}
	return raffles, rows.Err()
}

// GetRaffle returns the raffle and, for a signed-in caller, their ticket count.
func (s *RaffleService) GetRaffle(ctx context.Context, clerkID, id string) (*raffle.RaffleWithUserEntries, error) {
	raffleID, err := uuid.Parse(id)
	if err != nil {
		return nil, ErrInvalidID
	}

	r, err := scanRaffle(s.db.QueryRow(ctx, `SELECT `+raffleColumns+` FROM raffles WHERE id = $1`, raffleID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRaffleNotFound
		}
		return nil, fmt.Errorf("failed to get raffle: %w", err)
	}

	out := &raffle.RaffleWithUserEntries{Raffle: *r}
	if clerkID == "" {
		return out, nil
	}

	err = s.db.QueryRow(ctx, `
	SELECT COALESCE(SUM(re.tickets), 0)
	FROM raffle_entries re
	JOIN users u ON u.id = re.user_id
	WHERE re.raffle_id = $1 AND u.clerk_id = $2
	`, raffleID, clerkID).Scan(&out.UserTickets)
	if err != nil {
		return nil, fmt.Errorf("failed to count user tickets: %w", err)
	}
	return out, nil
}

// EnterRaffle spends points on tickets. The raffle and user rows stay locked
// until commit so concurrent entries cannot overspend the balance or the per-user cap.
func (s *RaffleService) EnterRaffle(ctx context.Context, clerkID, id string, tickets int) (*raffle.EnterResult, error) {
	raffleID, err := uuid.Parse(id)
	if err != nil {
		return nil, ErrInvalidID
	}
	if tickets < 1 {
		return nil, ErrInvalidTickets
	}

	now := s.now().UTC()

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	r, err := lockRaffle(ctx, tx, raffleID)
	if err != nil {
		return nil, err
	}
	if !r.AcceptingEntriesAt(now) {
		return nil, ErrRaffleClosed
	}

	u, err := lockUserByClerkID(ctx, tx, clerkID)
	if err != nil {
		return nil, err
	}

	var held int
	err = tx.QueryRow(ctx, `SELECT tickets FROM raffle_entries WHERE raffle_id = $1 AND user_id = $2`, r.ID, u.ID).Scan(&held)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to read existing entry: %w", err)
	}
	if r.MaxEntriesPerUser > 0 && held+tickets > r.MaxEntriesPerUser {
		return nil, ErrEntryLimitReached
	}

	cost := r.EntryCost * tickets
	if cost > u.Points {
		return nil, ErrInsufficientPoints
	}

	entry := &raffle.Entry{RaffleTitle: r.Title}
	err = tx.QueryRow(ctx, `
	INSERT INTO raffle_entries (raffle_id, user_id, tickets, points_spent, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $5)
	ON CONFLICT (raffle_id, user_id) DO UPDATE
	SET tickets = raffle_entries.tickets + EXCLUDED.tickets,
		points_spent = raffle_entries.points_spent + EXCLUDED.points_spent,
		updated_at = EXCLUDED.updated_at
	RETURNING id, raffle_id, user_id, tickets, points_spent, created_at, updated_at
	`, r.ID, u.ID, tickets, cost, now).Scan(
		&entry.ID,
		&entry.RaffleID,
		&entry.UserID,
		&entry.Tickets,
		&entry.PointsSpent,
		&entry.CreatedAt,
		&entry.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert raffle entry: %w", err)
	}

	var totalEntries int
	err = tx.QueryRow(ctx, `
	UPDATE raffles
	SET total_entries = total_entries + $2, updated_at = NOW()
	WHERE id = $1
	RETURNING total_entries
	`, r.ID, tickets).Scan(&totalEntries)
	if err != nil {
		return nil, fmt.Errorf("failed to update raffle totals: %w", err)
	}

	if err := insertLedger(ctx, tx, u.ID, -cost, "raffle_entry", &r.ID); err != nil {
		return nil, err
	}

	unlocked, bonus, err := s.achievements.unlockTx(ctx, tx, u.ID, u.LifetimePoints, now)
	if err != nil {
		return nil, err
	}

	balance := u.Points - cost + bonus
	lifetime := u.LifetimePoints + bonus
	level := points.LevelFor(lifetime, s.pointsPerLevel)
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
		return nil, fmt.Errorf("failed to commit raffle entry: %w", err)
	}

	metrics.RaffleEntries.Add(float64(tickets))
	if bonus > 0 {
		metrics.PointsAwarded.Add(float64(bonus))
		s.cache.InvalidatePrefix(ctx, leaderboardCachePrefix)
	}
	for _, a := range unlocked {
		metrics.AchievementsUnlocked.WithLabelValues(a.Code).Inc()
		s.notify(ctx, "EnterRaffle", &notification.CreateNotificationRequest{
			UserID: u.ID,
			Type:   notification.TypeAchievementUnlocked,
			Title:  "Achievement unlocked: " + a.Name,
			Body:   a.Description,
			Data:   map[string]any{"achievement_id": a.ID.String(), "code": a.Code},
		})
	}

	if unlocked == nil {
		unlocked = []achievement.Achievement{}
	}
	return &raffle.EnterResult{
		Entry:           entry,
		PointsSpent:     cost,
		Balance:         balance,
		TotalEntries:    totalEntries,
		NewAchievements: unlocked,
	}, nil
}

// DrawRaffle picks a ticket-weighted winner. Without force the raffle must have ended.
func (s *RaffleService) DrawRaffle(ctx context.Context, id string, force bool) (*raffle.DrawResult, error) {
	raffleID, err := uuid.Parse(id)
	if err != nil {
		return nil, ErrInvalidID
	}
	return s.draw(ctx, raffleID, force)
}

func (s *RaffleService) draw(ctx context.Context, raffleID uuid.UUID, force bool) (*raffle.DrawResult, error) {
	now := s.now().UTC()

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	r, err := lockRaffle(ctx, tx, raffleID)
	if err != nil {
		return nil, err
	}
	if r.Status != raffle.StatusOpen {
		return nil, ErrRaffleNotOpen
	}
	if !force && now.Before(r.EndsAt) {
		return nil, ErrRaffleNotEnded
	}

	rows, err := tx.Query(ctx, `
	SELECT user_id, tickets
	FROM raffle_entries
	WHERE raffle_id = $1
	ORDER BY created_at, user_id
	`, r.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to query raffle entries: %w", err)
	}
	var entries []Ticket
	for rows.Next() {
		var t Ticket
		if err := rows.Scan(&t.UserID, &t.Tickets); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan raffle entry: %w", err)
		}
		entries = append(entries, t)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	result := &raffle.DrawResult{RaffleID: r.ID, TotalEntries: r.TotalEntries, DrawnAt: now}

	winner, err := PickWinner(entries, s.intn)
	switch {
	case errors.Is(err, errNoTickets):
	case err != nil:
		return nil, fmt.Errorf("failed to pick winner: %w", err)
	default:
		result.WinnerUserID = &winner
		if err := tx.QueryRow(ctx, `SELECT username FROM users WHERE id = $1`, winner).Scan(&result.WinnerUsername); err != nil {
			return nil, fmt.Errorf("failed to load winner: %w", err)
		}
	}

	_, err = tx.Exec(ctx, `
	UPDATE raffles
	SET status = $2, winner_user_id = $3, drawn_at = $4, updated_at = NOW()
	WHERE id = $1
	`, r.ID, string(raffle.StatusDrawn), result.WinnerUserID, now)
	if err != nil {
		return nil, fmt.Errorf("failed to mark raffle drawn: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit draw: %w", err)
	}

	logger.Sugar.Infof("Raffle %s drawn: entries=%d winner=%v", r.ID, r.TotalEntries, result.WinnerUserID)

	if result.WinnerUserID != nil {
		s.notify(ctx, "DrawRaffle", &notification.CreateNotificationRequest{
			UserID: winner,
			Type:   notification.TypeRaffleWon,
			Title:  "You won " + r.Prize + "!",
			Body:   fmt.Sprintf("Your ticket was drawn in %q.", r.Title),
			Data:   map[string]any{"raffle_id": r.ID.String()},
		})
	}

	if s.feed != nil {
		ev := FeedEvent{
			Type:        FeedEventRaffleDraw,
			RaffleID:    r.ID.String(),
			RaffleTitle: r.Title,
			Username:    result.WinnerUsername,
			At:          now,
		}
		if r.BreweryID != nil {
			ev.BreweryID = r.BreweryID.String()
		}
		s.feed.Publish(ev)
	}

	return result, nil
}

// DrawDueRaffles draws every open raffle whose end time has passed.
func (s *RaffleService) DrawDueRaffles(ctx context.Context) (int, error) {
	rows, err := s.db.Query(ctx, `SELECT id FROM raffles WHERE status = 'open' AND ends_at <= $1 ORDER BY ends_at`, s.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to query due raffles: %w", err)
	}
	var due []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, fmt.Errorf("failed to scan raffle id: %w", err)
		}
		due = append(due, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	drawn := 0
	for _, id := range due {
		if _, err := s.draw(ctx, id, false); err != nil {
			// another instance may have drawn it first
			if errors.Is(err, ErrRaffleNotOpen) {
				continue
			}
			logger.Sugar.Errorf("DrawDueRaffles: raffle %s: %v", id, err)
			continue
		}
		drawn++
	}
	return drawn, nil
}

// CancelRaffle refunds every entry and closes the raffle.
func (s *RaffleService) CancelRaffle(ctx context.Context, id string) error {
	raffleID, err := uuid.Parse(id)
	if err != nil {
		return ErrInvalidID
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	r, err := lockRaffle(ctx, tx, raffleID)
	if err != nil {
		return err
	}
	if r.Status != raffle.StatusOpen {
		return ErrRaffleNotOpen
	}

	rows, err := tx.Query(ctx, `SELECT user_id, points_spent FROM raffle_entries WHERE raffle_id = $1 ORDER BY user_id`, r.ID)
	if err != nil {
		return fmt.Errorf("failed to query raffle entries: %w", err)
	}
	type refund struct {
		userID uuid.UUID
		amount int
	}
	var refunds []refund
	for rows.Next() {
		var rf refund
		if err := rows.Scan(&rf.userID, &rf.amount); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan raffle entry: %w", err)
		}
		refunds = append(refunds, rf)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("rows error: %w", err)
	}

	for _, rf := range refunds {
		if rf.amount <= 0 {
			continue
		}
		if _, err := tx.Exec(ctx, `UPDATE users SET points = points + $2, updated_at = NOW() WHERE id = $1`, rf.userID, rf.amount); err != nil {
			return fmt.Errorf("failed to refund user %s: %w", rf.userID, err)
		}
		if err := insertLedger(ctx, tx, rf.userID, rf.amount, "raffle_refund", &r.ID); err != nil {
			return err
		}
	}

	if _, err := tx.Exec(ctx, `UPDATE raffles SET status = $2, updated_at = NOW() WHERE id = $1`, r.ID, string(raffle.StatusCancelled)); err != nil {
		return fmt.Errorf("failed to cancel raffle: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit cancellation: %w", err)
	}

	for _, rf := range refunds {
		s.notify(ctx, "CancelRaffle", &notification.CreateNotificationRequest{
			UserID: rf.userID,
			Type:   notification.TypeRaffleCancelled,
			Title:  r.Title + " was cancelled",
			Body:   fmt.Sprintf("%d points were returned to your balance.", rf.amount),
			Data:   map[string]any{"raffle_id": r.ID.String(), "refunded": rf.amount},
		})
	}
	return nil
}

func (s *RaffleService) notify(ctx context.Context, op string, req *notification.CreateNotificationRequest) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, req); err != nil {
		logger.Sugar.Warnf("%s: failed to notify user %s: %v", op, req.UserID, err)
	}
}

func parseOptionalUUID(s string) (*uuid.UUID, error) {
	if s == "" {
		return nil, nil
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return nil, ErrInvalidID
	}
	return &id, nil
}

func validateRaffleRequest(req *raffle.UpsertRaffleRequest) error {
	if req.EntryCost < 1 || req.EntryCost > raffle.MaxEntryCost {
		return ErrInvalidRaffle
	}
	if req.MaxEntriesPerUser < 0 || !req.EndsAt.After(req.StartsAt) {
		return ErrInvalidRaffle
	}
	return nil
}

func (s *RaffleService) CreateRaffle(ctx context.Context, req *raffle.UpsertRaffleRequest) (*raffle.Raffle, error) {
	if err := validateRaffleRequest(req); err != nil {
		return nil, err
	}
	breweryID, err := parseOptionalUUID(req.BreweryID)
	if err != nil {
		return nil, err
	}

	r, err := scanRaffle(s.db.QueryRow(ctx, `
	INSERT INTO raffles (title, description, prize, image_url, brewery_id, entry_cost, max_entries_per_user, starts_at, ends_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	RETURNING `+raffleColumns,
		req.Title, req.Description, req.Prize, req.ImageURL, breweryID,
		req.EntryCost, req.MaxEntriesPerUser, req.StartsAt, req.EndsAt,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create raffle: %w", err)
	}
	return r, nil
}

// UpdateRaffle edits an open raffle. Drawn and cancelled raffles are frozen.
func (s *RaffleService) UpdateRaffle(ctx context.Context, id string, req *raffle.UpsertRaffleRequest) (*raffle.Raffle, error) {
	raffleID, err := uuid.Parse(id)
	if err != nil {
		return nil, ErrInvalidID
	}
	if err := validateRaffleRequest(req); err != nil {
		return nil, err
	}
	breweryID, err := parseOptionalUUID(req.BreweryID)
	if err != nil {
		return nil, err
	}

	r, err := scanRaffle(s.db.QueryRow(ctx, `
	UPDATE raffles
	SET title = $2, description = $3, prize = $4, image_url = $5, brewery_id = $6,
		entry_cost = $7, max_entries_per_user = $8, starts_at = $9, ends_at = $10, updated_at = NOW()
	WHERE id = $1 AND status = 'open'
	RETURNING `+raffleColumns,
		raffleID, req.Title, req.Description, req.Prize, req.ImageURL, breweryID,
		req.EntryCost, req.MaxEntriesPerUser, req.StartsAt, req.EndsAt,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			var exists bool
			if qerr := s.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM raffles WHERE id = $1)`, raffleID).Scan(&exists); qerr == nil && exists {
				return nil, ErrRaffleNotOpen
			}
			return nil, ErrRaffleNotFound
		}
		return nil, fmt.Errorf("failed to update raffle: %w", err)
	}
	return r, nil
}

// GetUserEntries lists the caller's raffle entries, newest first.
func (s *RaffleService) GetUserEntries(ctx context.Context, clerkID string) ([]*raffle.Entry, error) {
	rows, err := s.db.Query(ctx, `
	SELECT re.id, re.raffle_id, r.title, re.user_id, re.tickets, re.points_spent, re.created_at, re.updated_at
	FROM raffle_entries re
	JOIN raffles r ON r.id = re.raffle_id
	JOIN users u ON u.id = re.user_id
	WHERE u.clerk_id = $1
	ORDER BY re.updated_at DESC
	`, clerkID)
	if err != nil {
		return nil, fmt.Errorf("failed to query raffle entries: %w", err)
	}
	defer rows.Close()

	entries := []*raffle.Entry{}
	for rows.Next() {
		e := &raffle.Entry{}
		if err := rows.Scan(&e.ID, &e.RaffleID, &e.RaffleTitle, &e.UserID, &e.Tickets, &e.PointsSpent, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan raffle entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
