package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"brewedAtAPI/internal/database"
	"brewedAtAPI/internal/geo"
	"brewedAtAPI/internal/qrtoken"
	"brewedAtAPI/internal/types/brewery"
)

const breweryColumns = `
	id, name, description, address, city, latitude, longitude,
	checkin_radius_m, points_per_checkin, image_url, website, phone,
	tags, is_active, created_at, updated_at`

const maxNearbyResults = 100

type BreweryService struct {
	db database.DB
	qr *qrtoken.Signer
}

func NewBreweryService(db database.DB, qr *qrtoken.Signer) *BreweryService {
	return &BreweryService{db: db, qr: qr}
}

func scanBrewery(row pgx.Row) (*brewery.Brewery, error) {
	var b brewery.Brewery
	err := row.Scan(
		&b.ID,
		&b.Name,
		&b.Description,
		&b.Address,
		&b.City,
		&b.Latitude,
		&b.Longitude,
		&b.CheckInRadiusM,
		&b.PointsPerCheckIn,
		&b.ImageURL,
		&b.Website,
		&b.Phone,
		&b.Tags,
		&b.IsActive,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if b.Tags == nil {
		b.Tags = []string{}
	}
	return &b, nil
}

func getBrewery(ctx context.Context, q database.Querier, id uuid.UUID) (*brewery.Brewery, error) {
	b, err := scanBrewery(q.QueryRow(ctx, `SELECT `+breweryColumns+` FROM breweries WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBreweryNotFound
		}
		return nil, fmt.Errorf("failed to get brewery: %w", err)
	}
	return b, nil
}

// ListBreweries returns active breweries, optionally limited to one city (case-insensitive).
func (s *BreweryService) ListBreweries(ctx context.Context, city string) ([]*brewery.Brewery, error) {
	query := `SELECT ` + breweryColumns + ` FROM breweries WHERE is_active`
	args := []any{}
	if city = strings.TrimSpace(city); city != "" {
		query += ` AND LOWER(city) = LOWER($1)`
		args = append(args, city)
	}
	query += ` ORDER BY name`

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query breweries: %w", err)
	}
	defer rows.Close()

	breweries := []*brewery.Brewery{}
	for rows.Next() {
		b, err := scanBrewery(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan brewery row: %w", err)
		}
		breweries = append(breweries, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return breweries, nil
}

func (s *BreweryService) GetBrewery(ctx context.Context, id string) (*brewery.Brewery, error) {
	breweryID, err := uuid.Parse(id)
	if err != nil {
		return nil, ErrInvalidID
	}
	return getBrewery(ctx, s.db, breweryID)
}

// NearbyBreweries returns active breweries within radiusKm of the point, nearest first.
func (s *BreweryService) NearbyBreweries(ctx context.Context, at geo.Point, radiusKm float64, limit int) ([]*brewery.BreweryWithDistance, error) {
	if err := at.Validate(); err != nil {
		return nil, ErrInvalidCoordinates
	}
	if radiusKm <= 0 {
		radiusKm = 10
	}
	if limit <= 0 || limit > maxNearbyResults {
		limit = maxNearbyResults
	}

	all, err := s.ListBreweries(ctx, "")
	if err != nil {
		return nil, err
	}

	return FilterNearby(all, at, radiusKm*1000, limit), nil
}

// FilterNearby keeps breweries within radiusMeters of at, sorted by distance.
func FilterNearby(all []*brewery.Brewery, at geo.Point, radiusMeters float64, limit int) []*brewery.BreweryWithDistance {
	out := []*brewery.BreweryWithDistance{}
	for _, b := range all {
		d := geo.Distance(at, geo.Point{Lat: b.Latitude, Lng: b.Longitude})
		if d <= radiusMeters {
			out = append(out, &brewery.BreweryWithDistance{Brewery: *b, DistanceMeters: d})
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].DistanceMeters < out[j].DistanceMeters
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (s *BreweryService) CreateBrewery(ctx context.Context, req *brewery.UpsertBreweryRequest) (*brewery.Brewery, error) {
	isActive := true
	if req.IsActive != nil {
		isActive = *req.IsActive
	}
	tags := req.Tags
	if tags == nil {
		tags = []string{}
	}

	query := `
	INSERT INTO breweries (
		name, description, address, city, latitude, longitude,
		checkin_radius_m, points_per_checkin, image_url, website, phone, tags, is_active
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	RETURNING ` + breweryColumns

	b, err := scanBrewery(s.db.QueryRow(ctx, query,
		req.Name,
		req.Description,
		req.Address,
		req.City,
		req.Latitude,
		req.Longitude,
		req.CheckInRadiusM,
		req.PointsPerCheckIn,
		req.ImageURL,
		req.Website,
		req.Phone,
		tags,
		isActive,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create brewery: %w", err)
	}
	return b, nil
}

func (s *BreweryService) UpdateBrewery(ctx context.Context, id string, req *brewery.UpsertBreweryRequest) (*brewery.Brewery, error) {
	breweryID, err := uuid.Parse(id)
	if err != nil {
		return nil, ErrInvalidID
	}
	tags := req.Tags
	if tags == nil {
		tags = []string{}
	}

	query := `
	UPDATE breweries
	SET
		name = $2,
		description = $3,
		address = $4,
		city = $5,
		latitude = $6,
		longitude = $7,
		checkin_radius_m = $8,
		points_per_checkin = $9,
		image_url = $10,
		website = $11,
		phone = $12,
		tags = $13,
		is_active = COALESCE($14, is_active),
		updated_at = NOW()
	WHERE id = $1
	RETURNING ` + breweryColumns

	b, err := scanBrewery(s.db.QueryRow(ctx, query,
		breweryID,
		req.Name,
		req.Description,
		req.Address,
		req.City,
		req.Latitude,
		req.Longitude,
		req.CheckInRadiusM,
		req.PointsPerCheckIn,
		req.ImageURL,
		req.Website,
		req.Phone,
		tags,
		req.IsActive,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBreweryNotFound
		}
		return nil, fmt.Errorf("failed to update brewery: %w", err)
	}
	return b, nil
}

// DeactivateBrewery hides a brewery. Check-in history keeps referencing it.
func (s *BreweryService) DeactivateBrewery(ctx context.Context, id string) error {
	breweryID, err := uuid.Parse(id)
	if err != nil {
		return ErrInvalidID
	}

	tag, err := s.db.Exec(ctx, `UPDATE breweries SET is_active = FALSE, updated_at = NOW() WHERE id = $1`, breweryID)
	if err != nil {
		return fmt.Errorf("failed to deactivate brewery: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrBreweryNotFound
	}
	return nil
}

// GenerateCheckInQR issues a signed check-in token for the brewery and renders it as a PNG.
func (s *BreweryService) GenerateCheckInQR(ctx context.Context, id string) (*brewery.CheckInQRResponse, error) {
	b, err := s.GetBrewery(ctx, id)
	if err != nil {
		return nil, err
	}

	issued, err := s.qr.Issue(b.ID)
	if err != nil {
		return nil, err
	}

	png, err := qrtoken.RenderPNG(issued.DeepLink, 512)
	if err != nil {
		return nil, err
	}

	return &brewery.CheckInQRResponse{
		BreweryID:    b.ID,
		Token:        issued.Token,
		DeepLink:     issued.DeepLink,
		QrCodeBase64: png,
		ExpiresAt:    issued.ExpiresAt,
	}, nil
}
