package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var userCols = []string{
	"id", "clerk_id", "email", "username", "first_name", "last_name", "image_url",
	"email_verified", "points", "lifetime_points", "level", "created_at", "updated_at",
}

func TestGetProfileCountsStreak(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	svc := NewUserService(mock, 100)
	svc.now = func() time.Time { return testNow }
	userID := uuid.New()

	mock.ExpectQuery(`FROM users WHERE clerk_id = \$1`).
		WithArgs("user_clerk").
		WillReturnRows(pgxmock.NewRows(userCols).AddRow(
			userID.String(), "user_clerk", "ana@example.com", "AnaHops", "Ana", "Hops", "",
			true, 80, 230, 3, testNow.AddDate(0, -1, 0), testNow,
		))
	mock.ExpectQuery(`FROM user_achievements WHERE user_id = \$1`).
		WithArgs(userID.String()).
		WillReturnRows(pgxmock.NewRows([]string{"total", "unique", "achievements"}).AddRow(9, 4, 2))
	expectStreakDays(mock, userID, testNow, testNow.AddDate(0, 0, -1), testNow.AddDate(0, 0, -2), testNow.AddDate(0, 0, -4))

	profile, err := svc.GetProfile(context.Background(), "user_clerk")
	require.NoError(t, err)

	assert.Equal(t, 9, profile.TotalCheckIns)
	assert.Equal(t, 4, profile.UniqueBreweries)
	assert.Equal(t, 2, profile.Achievements)
	assert.Equal(t, 3, profile.CheckInStreak)
	assert.Equal(t, 3, profile.Progress.Level)
	assert.Equal(t, 30, profile.Progress.PointsInLevel)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetProfileUnknownUser(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	svc := NewUserService(mock, 100)
	mock.ExpectQuery(`FROM users WHERE clerk_id = \$1`).
		WithArgs("ghost").
		WillReturnRows(pgxmock.NewRows(userCols))

	_, err = svc.GetProfile(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrUserNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
