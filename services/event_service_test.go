package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"brewedAtAPI/internal/achievement"
	"brewedAtAPI/internal/types/event"
)

func TestCreateEventValidation(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	svc := NewEventService(mock)
	ctx := context.Background()
	breweryID := uuid.New()

	_, err = svc.CreateEvent(ctx, &event.UpsertEventRequest{BreweryID: "x", Title: "Tap takeover"})
	assert.ErrorIs(t, err, ErrInvalidID)

	_, err = svc.CreateEvent(ctx, &event.UpsertEventRequest{
		BreweryID: breweryID.String(),
		Title:     "Tap takeover",
		StartsAt:  testNow,
		EndsAt:    testNow,
	})
	assert.ErrorIs(t, err, ErrInvalidEventWindow)

	mock.ExpectQuery(`FROM breweries`).
		WithArgs(breweryID).
		WillReturnRows(pgxmock.NewRows(breweryCols))

	_, err = svc.CreateEvent(ctx, &event.UpsertEventRequest{
		BreweryID: breweryID.String(),
		Title:     "Tap takeover",
		StartsAt:  testNow,
		EndsAt:    testNow.Add(3 * time.Hour),
	})
	assert.ErrorIs(t, err, ErrBreweryNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteEventNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := uuid.New()
	mock.ExpectExec(`DELETE FROM events`).
		WithArgs(id).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	err = NewEventService(mock).DeleteEvent(context.Background(), id.String())
	assert.ErrorIs(t, err, ErrEventNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestActiveEventAtNoneRunning(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	breweryID := uuid.New()
	mock.ExpectQuery(`FROM events`).
		WithArgs(breweryID, testNow).
		WillReturnRows(pgxmock.NewRows([]string{"id"}))

	e, err := NewEventService(mock).ActiveEventAt(context.Background(), breweryID, testNow)
	require.NoError(t, err)
	assert.Nil(t, e)
}

func TestAchievementDefinitionValidation(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	svc := NewAchievementService(mock, 100)
	ctx := context.Background()

	_, err = svc.CreateDefinition(ctx, &achievement.UpsertAchievementRequest{
		Code:          "night_owl",
		Name:          "Night Owl",
		CriteriaType:  "midnight_checkins",
		CriteriaValue: 1,
	})
	assert.ErrorIs(t, err, ErrInvalidCriteria)

	id := uuid.New()
	mock.ExpectExec(`DELETE FROM achievements`).
		WithArgs(id).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	assert.ErrorIs(t, svc.DeleteDefinition(ctx, id.String()), ErrAchievementNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
