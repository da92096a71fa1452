package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"brewedAtAPI/internal/geo"
	"brewedAtAPI/internal/qrtoken"
	"brewedAtAPI/internal/types/brewery"
)

func TestFilterNearbySortsByDistance(t *testing.T) {
	center := geo.Point{Lat: 42.6977, Lng: 23.3219}
	near := &brewery.Brewery{Name: "near", Latitude: 42.6987, Longitude: 23.3219}
	mid := &brewery.Brewery{Name: "mid", Latitude: 42.7077, Longitude: 23.3219}
	far := &brewery.Brewery{Name: "far", Latitude: 43.2141, Longitude: 27.9147}

	got := FilterNearby([]*brewery.Brewery{mid, far, near}, center, 5000, 10)
	require.Len(t, got, 2)
	assert.Equal(t, "near", got[0].Name)
	assert.Equal(t, "mid", got[1].Name)
	assert.Less(t, got[0].DistanceMeters, got[1].DistanceMeters)

	limited := FilterNearby([]*brewery.Brewery{mid, far, near}, center, 5000, 1)
	require.Len(t, limited, 1)
	assert.Equal(t, "near", limited[0].Name)
}

func TestNearbyBreweriesValidatesCoordinates(t *testing.T) {
	svc := NewBreweryService(nil, nil)
	_, err := svc.NearbyBreweries(context.Background(), geo.Point{Lat: 91, Lng: 0}, 5, 10)
	assert.ErrorIs(t, err, ErrInvalidCoordinates)
}

func TestGenerateCheckInQRRoundTrips(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	signer := qrtoken.NewSigner("qr-secret", time.Hour)
	svc := NewBreweryService(mock, signer)
	b := testBrewery()

	mock.ExpectQuery(`FROM breweries WHERE id = \$1`).WithArgs(b.ID).WillReturnRows(breweryRow(b))

	qr, err := svc.GenerateCheckInQR(context.Background(), b.ID.String())
	require.NoError(t, err)
	assert.NotEmpty(t, qr.QrCodeBase64)
	assert.Contains(t, qr.DeepLink, qr.Token)

	verified, err := signer.Verify(qr.DeepLink)
	require.NoError(t, err)
	assert.Equal(t, b.ID, verified)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeactivateBreweryNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	svc := NewBreweryService(mock, nil)
	id := uuid.New()
	mock.ExpectExec(`UPDATE breweries SET is_active = FALSE`).WithArgs(id).WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err = svc.DeactivateBrewery(context.Background(), id.String())
	assert.ErrorIs(t, err, ErrBreweryNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
