package services

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"brewedAtAPI/internal/cache"
	"brewedAtAPI/internal/leaderboard"
)

var leaderboardCols = []string{"user_id", "username", "image_url", "score", "level", "rank"}

func newLeaderboardFixture(t *testing.T) (*LeaderboardService, pgxmock.PgxPoolIface, *miniredis.Miniredis) {
	t.Helper()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	svc := NewLeaderboardService(mock, cache.NewWithClient(rdb, "brewedat:"), time.Minute)
	svc.now = func() time.Time { return testNow }
	return svc, mock, mr
}

func TestLeaderboardAllTimeIsCached(t *testing.T) {
	svc, mock, mr := newLeaderboardFixture(t)
	first, second := uuid.New(), uuid.New()

	mock.ExpectQuery(`(?s)WITH ranked AS .* FROM users\s+WHERE lifetime_points > 0.*ORDER BY rank, username`).
		WillReturnRows(pgxmock.NewRows(leaderboardCols).
			AddRow(first, "stout_sam", (*string)(nil), 420, 5, 1).
			AddRow(second, "ale_ana", (*string)(nil), 390, 4, 2))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM ranked`).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(2))

	board, err := svc.GetLeaderboard(context.Background(), "all_time", "", "")
	require.NoError(t, err)
	require.Len(t, board.Entries, 2)
	assert.Equal(t, leaderboard.ScopeAllTime, board.Scope)
	assert.Equal(t, "stout_sam", board.Entries[0].Username)
	assert.Equal(t, 2, board.TotalUsers)
	assert.Nil(t, board.UserPosition)
	assert.True(t, mr.Exists("brewedat:leaderboard:all_time"))

	// second read is served from redis
	again, err := svc.GetLeaderboard(context.Background(), "", "", "")
	require.NoError(t, err)
	assert.Equal(t, board.Entries[1].UserID, again.Entries[1].UserID)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLeaderboardIncludesCallerPosition(t *testing.T) {
	svc, mock, _ := newLeaderboardFixture(t)
	breweryID := uuid.New()
	me := uuid.New()

	mock.ExpectQuery(`(?s)WHERE c.brewery_id = \$1.*ORDER BY rank, username`).
		WithArgs(breweryID).
		WillReturnRows(pgxmock.NewRows(leaderboardCols).AddRow(uuid.New(), "regular", (*string)(nil), 30, 7, 1))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM ranked`).
		WithArgs(breweryID).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(80))
	mock.ExpectQuery(`WHERE user_id = \(SELECT id FROM users WHERE clerk_id = \$2\)`).
		WithArgs(breweryID, "user_clerk").
		WillReturnRows(pgxmock.NewRows(leaderboardCols).AddRow(me, "hoppy", (*string)(nil), 2, 1, 63))

	board, err := svc.GetLeaderboard(context.Background(), "brewery", breweryID.String(), "user_clerk")
	require.NoError(t, err)

	require.NotNil(t, board.UserPosition)
	assert.Equal(t, 63, board.UserPosition.Rank)
	assert.Equal(t, me, board.UserPosition.UserID)
	require.NotNil(t, board.BreweryID)
	assert.Equal(t, breweryID, *board.BreweryID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLeaderboardWeeklyUsesWeekStart(t *testing.T) {
	svc, mock, mr := newLeaderboardFixture(t)

	mock.ExpectQuery(`WHERE c.created_at >= \$1`).
		WithArgs(leaderboard.WeekStart(testNow)).
		WillReturnRows(pgxmock.NewRows(leaderboardCols))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM ranked`).
		WithArgs(leaderboard.WeekStart(testNow)).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(0))

	board, err := svc.GetLeaderboard(context.Background(), "weekly", "", "")
	require.NoError(t, err)
	assert.Empty(t, board.Entries)
	assert.True(t, mr.Exists("brewedat:leaderboard:weekly:2026-10-12"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLeaderboardRejectsBadInput(t *testing.T) {
	svc, _, _ := newLeaderboardFixture(t)

	_, err := svc.GetLeaderboard(context.Background(), "monthly", "", "")
	assert.ErrorIs(t, err, ErrInvalidScope)

	_, err = svc.GetLeaderboard(context.Background(), "brewery", "not-a-uuid", "")
	assert.ErrorIs(t, err, ErrInvalidID)
}
