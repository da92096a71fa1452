package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"brewedAtAPI/internal/database"
	"brewedAtAPI/internal/types/event"
)

const eventSelect = `
	SELECT
		e.id, e.brewery_id, b.name, e.title, e.description, e.starts_at, e.ends_at,
		e.bonus_points, e.image_url, e.created_at, e.updated_at
	FROM events e
	JOIN breweries b ON b.id = e.brewery_id`

type EventService struct {
	db  database.DB
	now func() time.Time
}

func NewEventService(db database.DB) *EventService {
	return &EventService{db: db, now: time.Now}
}

func scanEvent(row pgx.Row) (*event.Event, error) {
	var e event.Event
	if err := row.Scan(
		&e.ID,
		&e.BreweryID,
		&e.BreweryName,
		&e.Title,
		&e.Description,
		&e.StartsAt,
		&e.EndsAt,
		&e.BonusPoints,
		&e.ImageURL,
		&e.CreatedAt,
		&e.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &e, nil
}

func (s *EventService) collect(rows pgx.Rows) ([]*event.Event, error) {
	defer rows.Close()

	events := []*event.Event{}
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return events, nil
}

// ListUpcomingEvents returns events that have not ended, soonest first.
func (s *EventService) ListUpcomingEvents(ctx context.Context, breweryID string) ([]*event.Event, error) {
	query := eventSelect + ` WHERE e.ends_at > $1 AND b.is_active`
	args := []any{s.now().UTC()}

	if breweryID != "" {
		id, err := uuid.Parse(breweryID)
		if err != nil {
			return nil, ErrInvalidID
		}
		query += ` AND e.brewery_id = $2`
		args = append(args, id)
	}
	query += ` ORDER BY e.starts_at`

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	return s.collect(rows)
}

func (s *EventService) GetEvent(ctx context.Context, id string) (*event.Event, error) {
	eventID, err := uuid.Parse(id)
	if err != nil {
		return nil, ErrInvalidID
	}

	e, err := scanEvent(s.db.QueryRow(ctx, eventSelect+` WHERE e.id = $1`, eventID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	return e, nil
}

// ActiveEventAt returns the running event with the largest bonus at the brewery, or nil.
func (s *EventService) ActiveEventAt(ctx context.Context, breweryID uuid.UUID, t time.Time) (*event.Event, error) {
	e, err := scanEvent(s.db.QueryRow(ctx, eventSelect+`
	WHERE e.brewery_id = $1 AND e.starts_at <= $2 AND e.ends_at > $2
	ORDER BY e.bonus_points DESC, e.starts_at
	LIMIT 1`, breweryID, t))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get active event: %w", err)
	}
	return e, nil
}

func (s *EventService) CreateEvent(ctx context.Context, req *event.UpsertEventRequest) (*event.Event, error) {
	breweryID, err := uuid.Parse(req.BreweryID)
	if err != nil {
		return nil, ErrInvalidID
	}
	if !req.EndsAt.After(req.StartsAt) {
		return nil, ErrInvalidEventWindow
	}
	if _, err := getBrewery(ctx, s.db, breweryID); err != nil {
		return nil, err
	}

	var id uuid.UUID
	err = s.db.QueryRow(ctx, `
	INSERT INTO events (brewery_id, title, description, starts_at, ends_at, bonus_points, image_url)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	RETURNING id
	`, breweryID, req.Title, req.Description, req.StartsAt, req.EndsAt, req.BonusPoints, req.ImageURL).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("failed to create event: %w", err)
	}

	return s.GetEvent(ctx, id.String())
}

func (s *EventService) UpdateEvent(ctx context.Context, id string, req *event.UpsertEventRequest) (*event.Event, error) {
	eventID, err := uuid.Parse(id)
	if err != nil {
		return nil, ErrInvalidID
	}
	breweryID, err := uuid.Parse(req.BreweryID)
	if err != nil {
		return nil, ErrInvalidID
	}
	if !req.EndsAt.After(req.StartsAt) {
		return nil, ErrInvalidEventWindow
	}

	tag, err := s.db.Exec(ctx, `
	UPDATE events
	SET brewery_id = $2, title = $3, description = $4, starts_at = $5, ends_at = $6,
		bonus_points = $7, image_url = $8, updated_at = NOW()
	WHERE id = $1
	`, eventID, breweryID, req.Title, req.Description, req.StartsAt, req.EndsAt, req.BonusPoints, req.ImageURL)
	if err != nil {
		return nil, fmt.Errorf("failed to update event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrEventNotFound
	}

	return s.GetEvent(ctx, id)
}

func (s *EventService) DeleteEvent(ctx context.Context, id string) error {
	eventID, err := uuid.Parse(id)
	if err != nil {
		return ErrInvalidID
	}

	tag, err := s.db.Exec(ctx, `DELETE FROM events WHERE id = $1`, eventID)
	if err != nil {
		return fmt.Errorf("failed to delete event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrEventNotFound
	}
	return nil
}
