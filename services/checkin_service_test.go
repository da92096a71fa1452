package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"brewedAtAPI/internal/achievement"
	"brewedAtAPI/internal/geo"
	"brewedAtAPI/internal/notification"
	"brewedAtAPI/internal/qrtoken"
	"brewedAtAPI/internal/types/brewery"
	"brewedAtAPI/internal/types/checkin"
)

var testNow = time.Date(2026, 10, 14, 18, 0, 0, 0, time.UTC)

var breweryCols = []string{
	"id", "name", "description", "address", "city", "latitude", "longitude",
	"checkin_radius_m", "points_per_checkin", "image_url", "website", "phone",
	"tags", "is_active", "created_at", "updated_at",
}

func testBrewery() *brewery.Brewery {
	return &brewery.Brewery{
		ID:               uuid.New(),
		Name:             "Kettle & Co",
		City:             "Sofia",
		Latitude:         42.6977,
		Longitude:        23.3219,
		CheckInRadiusM:   0,
		PointsPerCheckIn: 0,
		Tags:             []string{"ipa"},
		IsActive:         true,
		CreatedAt:        testNow.AddDate(0, -1, 0),
		UpdatedAt:        testNow.AddDate(0, -1, 0),
	}
}

func breweryRow(b *brewery.Brewery) *pgxmock.Rows {
	return pgxmock.NewRows(breweryCols).AddRow(
		b.ID, b.Name, b.Description, b.Address, b.City, b.Latitude, b.Longitude,
		b.CheckInRadiusM, b.PointsPerCheckIn, b.ImageURL, b.Website, b.Phone,
		b.Tags, b.IsActive, b.CreatedAt, b.UpdatedAt,
	)
}

type fakeFeed struct {
	events []FeedEvent
}

func (f *fakeFeed) Publish(ev FeedEvent) {
	f.events = append(f.events, ev)
}

type checkInFixture struct {
	mock    pgxmock.PgxPoolIface
	svc     *CheckInService
	signer  *qrtoken.Signer
	feed    *fakeFeed
	userID  uuid.UUID
	brewery *brewery.Brewery
}

func newCheckInFixture(t *testing.T) *checkInFixture {
	t.Helper()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	signer := qrtoken.NewSigner("test-secret", time.Hour)
	feed := &fakeFeed{}
	achievements := NewAchievementService(mock, 100)
	achievements.now = func() time.Time { return testNow }

	svc := NewCheckInService(mock, signer, achievements, nil, nil, feed, CheckInConfig{
		Cooldown:            24 * time.Hour,
		DefaultRadiusMeters: 150,
		DefaultPoints:       10,
		PointsPerLevel:      100,
	})
	svc.now = func() time.Time { return testNow }

	return &checkInFixture{
		mock:    mock,
		svc:     svc,
		signer:  signer,
		feed:    feed,
		userID:  uuid.New(),
		brewery: testBrewery(),
	}
}

func (f *checkInFixture) qrRequest(t *testing.T) *checkin.CheckInRequest {
	t.Helper()
	issued, err := f.signer.Issue(f.brewery.ID)
	require.NoError(t, err)
	return &checkin.CheckInRequest{
		BreweryID: f.brewery.ID.String(),
		Method:    checkin.MethodQR,
		QRToken:   issued.DeepLink,
	}
}

func (f *checkInFixture) expectUserLock(points, lifetime, level int) {
	f.mock.ExpectQuery(`FROM users\s+WHERE clerk_id = \$1\s+FOR UPDATE`).
		WithArgs("user_clerk").
		WillReturnRows(pgxmock.NewRows([]string{"id", "username", "points", "lifetime_points", "level"}).
			AddRow(f.userID, "hoppy", points, lifetime, level))
}

func (f *checkInFixture) expectNoPreviousCheckIn() {
	f.mock.ExpectQuery(`SELECT created_at\s+FROM checkins`).
		WithArgs(f.userID, f.brewery.ID).
		WillReturnRows(pgxmock.NewRows([]string{"created_at"}))
}

func TestCheckInQRAwardsPointsAndLevelsUp(t *testing.T) {
	f := newCheckInFixture(t)
	checkInID := uuid.New()

	f.mock.ExpectBegin()
	f.mock.ExpectQuery(`FROM breweries WHERE id = \$1`).WithArgs(f.brewery.ID).WillReturnRows(breweryRow(f.brewery))
	f.expectUserLock(20, 95, 1)
	f.expectNoPreviousCheckIn()
	f.mock.ExpectQuery(`FROM events\s+WHERE brewery_id = \$1`).
		WithArgs(f.brewery.ID, testNow).
		WillReturnRows(pgxmock.NewRows([]string{"id", "bonus_points"}))
	f.mock.ExpectQuery(`INSERT INTO checkins`).
		WithArgs(f.userID, f.brewery.ID, pgxmock.AnyArg(), "qr", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), 10, testNow).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at"}).AddRow(checkInID, testNow))
	f.mock.ExpectExec(`INSERT INTO points_ledger`).
		WithArgs(f.userID, 10, "checkin", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	f.mock.ExpectQuery(`FROM achievements a\s+LEFT JOIN user_achievements`).
		WithArgs(f.userID).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "code", "name", "description", "icon", "criteria_type",
			"criteria_value", "reward_points", "created_at", "unlocked_at",
		}))
	f.mock.ExpectExec(`UPDATE users\s+SET points = \$2`).
		WithArgs(f.userID, 30, 105, 2).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	f.mock.ExpectCommit()

	res, err := f.svc.CheckIn(context.Background(), "user_clerk", f.qrRequest(t))
	require.NoError(t, err)

	assert.Equal(t, checkInID, res.CheckIn.ID)
	assert.Equal(t, 10, res.PointsAwarded)
	assert.Equal(t, 30, res.Balance)
	assert.Equal(t, 105, res.LifetimePoints)
	assert.Equal(t, 2, res.Level)
	assert.True(t, res.LeveledUp)
	assert.Empty(t, res.NewAchievements)
	assert.Nil(t, res.CheckIn.EventID)

	require.Len(t, f.feed.events, 1)
	assert.Equal(t, FeedEventCheckIn, f.feed.events[0].Type)
	assert.Equal(t, "hoppy", f.feed.events[0].Username)

	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestCheckInGeofenceWithRunningEvent(t *testing.T) {
	f := newCheckInFixture(t)
	eventID := uuid.New()
	lat, lng := f.brewery.Latitude+0.0005, f.brewery.Longitude

	f.mock.ExpectBegin()
	f.mock.ExpectQuery(`FROM breweries WHERE id = \$1`).WithArgs(f.brewery.ID).WillReturnRows(breweryRow(f.brewery))
	f.expectUserLock(0, 0, 1)
	f.expectNoPreviousCheckIn()
	f.mock.ExpectQuery(`FROM events\s+WHERE brewery_id = \$1`).
		WithArgs(f.brewery.ID, testNow).
		WillReturnRows(pgxmock.NewRows([]string{"id", "bonus_points"}).AddRow(eventID, 25))
	f.mock.ExpectQuery(`INSERT INTO checkins`).
		WithArgs(f.userID, f.brewery.ID, pgxmock.AnyArg(), "geofence", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), 35, testNow).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at"}).AddRow(uuid.New(), testNow))
	f.mock.ExpectExec(`INSERT INTO points_ledger`).
		WithArgs(f.userID, 35, "checkin", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	f.mock.ExpectQuery(`FROM achievements a`).
		WithArgs(f.userID).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "code", "name", "description", "icon", "criteria_type",
			"criteria_value", "reward_points", "created_at", "unlocked_at",
		}))
	f.mock.ExpectExec(`UPDATE users\s+SET points = \$2`).
		WithArgs(f.userID, 35, 35, 1).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	f.mock.ExpectCommit()

	res, err := f.svc.CheckIn(context.Background(), "user_clerk", &checkin.CheckInRequest{
		BreweryID: f.brewery.ID.String(),
		Method:    checkin.MethodGeofence,
		Latitude:  &lat,
		Longitude: &lng,
	})
	require.NoError(t, err)

	assert.Equal(t, 35, res.PointsAwarded)
	require.NotNil(t, res.CheckIn.EventID)
	assert.Equal(t, eventID, *res.CheckIn.EventID)
	require.NotNil(t, res.CheckIn.DistanceM)
	assert.InDelta(t, 55.6, *res.CheckIn.DistanceM, 1)
	assert.False(t, res.LeveledUp)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestCheckInCooldown(t *testing.T) {
	f := newCheckInFixture(t)
	last := testNow.Add(-2 * time.Hour)

	f.mock.ExpectBegin()
	f.mock.ExpectQuery(`FROM breweries WHERE id = \$1`).WithArgs(f.brewery.ID).WillReturnRows(breweryRow(f.brewery))
	f.expectUserLock(0, 0, 1)
	f.mock.ExpectQuery(`SELECT created_at\s+FROM checkins`).
		WithArgs(f.userID, f.brewery.ID).
		WillReturnRows(pgxmock.NewRows([]string{"created_at"}).AddRow(last))
	f.mock.ExpectRollback()

	_, err := f.svc.CheckIn(context.Background(), "user_clerk", f.qrRequest(t))

	var cooldown *CooldownError
	require.True(t, errors.As(err, &cooldown))
	assert.Equal(t, last.Add(24*time.Hour), cooldown.NextAllowedAt)
	assert.Equal(t, 22*time.Hour, cooldown.Remaining)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestCheckInGeofenceOutOfRange(t *testing.T) {
	f := newCheckInFixture(t)
	lat, lng := f.brewery.Latitude+0.0123, f.brewery.Longitude

	f.mock.ExpectBegin()
	f.mock.ExpectQuery(`FROM breweries WHERE id = \$1`).WithArgs(f.brewery.ID).WillReturnRows(breweryRow(f.brewery))
	f.mock.ExpectRollback()

	_, err := f.svc.CheckIn(context.Background(), "user_clerk", &checkin.CheckInRequest{
		BreweryID: f.brewery.ID.String(),
		Method:    checkin.MethodGeofence,
		Latitude:  &lat,
		Longitude: &lng,
	})

	require.ErrorIs(t, err, ErrOutOfRange)
	var distErr *DistanceError
	require.True(t, errors.As(err, &distErr))
	assert.Equal(t, 150.0, distErr.RadiusMeters)
	assert.Greater(t, distErr.DistanceMeters, 1300.0)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestCheckInQRForAnotherBrewery(t *testing.T) {
	f := newCheckInFixture(t)

	issued, err := f.signer.Issue(uuid.New())
	require.NoError(t, err)

	_, err = f.svc.CheckIn(context.Background(), "user_clerk", &checkin.CheckInRequest{
		BreweryID: f.brewery.ID.String(),
		Method:    checkin.MethodQR,
		QRToken:   issued.Token,
	})
	assert.ErrorIs(t, err, ErrInvalidQRToken)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestCheckInInactiveBrewery(t *testing.T) {
	f := newCheckInFixture(t)
	f.brewery.IsActive = false

	f.mock.ExpectBegin()
	f.mock.ExpectQuery(`FROM breweries WHERE id = \$1`).WithArgs(f.brewery.ID).WillReturnRows(breweryRow(f.brewery))
	f.mock.ExpectRollback()

	_, err := f.svc.CheckIn(context.Background(), "user_clerk", f.qrRequest(t))
	assert.ErrorIs(t, err, ErrBreweryNotFound)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestCheckInExplicitEventMustBeRunning(t *testing.T) {
	f := newCheckInFixture(t)
	eventID := uuid.New()
	req := f.qrRequest(t)
	req.EventID = eventID.String()

	f.mock.ExpectBegin()
	f.mock.ExpectQuery(`FROM breweries WHERE id = \$1`).WithArgs(f.brewery.ID).WillReturnRows(breweryRow(f.brewery))
	f.expectUserLock(0, 0, 1)
	f.expectNoPreviousCheckIn()
	f.mock.ExpectQuery(`FROM events\s+WHERE id = \$1 AND brewery_id = \$2`).
		WithArgs(eventID, f.brewery.ID).
		WillReturnRows(pgxmock.NewRows([]string{"id", "bonus_points", "starts_at", "ends_at"}).
			AddRow(eventID, 25, testNow.Add(-3*time.Hour), testNow))
	f.mock.ExpectRollback()

	_, err := f.svc.CheckIn(context.Background(), "user_clerk", req)
	assert.ErrorIs(t, err, ErrEventNotRunning)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestCheckInExplicitEventAtAnotherBrewery(t *testing.T) {
	f := newCheckInFixture(t)
	eventID := uuid.New()
	req := f.qrRequest(t)
	req.EventID = eventID.String()

	f.mock.ExpectBegin()
	f.mock.ExpectQuery(`FROM breweries WHERE id = \$1`).WithArgs(f.brewery.ID).WillReturnRows(breweryRow(f.brewery))
	f.expectUserLock(0, 0, 1)
	f.expectNoPreviousCheckIn()
	f.mock.ExpectQuery(`FROM events\s+WHERE id = \$1 AND brewery_id = \$2`).
		WithArgs(eventID, f.brewery.ID).
		WillReturnRows(pgxmock.NewRows([]string{"id", "bonus_points", "starts_at", "ends_at"}))
	f.mock.ExpectRollback()

	_, err := f.svc.CheckIn(context.Background(), "user_clerk", req)
	assert.ErrorIs(t, err, ErrEventNotRunning)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func (f *checkInFixture) expectAward(award int) {
	f.mock.ExpectQuery(`INSERT INTO checkins`).
		WithArgs(f.userID, f.brewery.ID, pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), award, testNow).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at"}).AddRow(uuid.New(), testNow))
	f.mock.ExpectExec(`INSERT INTO points_ledger`).
		WithArgs(f.userID, award, "checkin", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
}

func (f *checkInFixture) expectNoDefinitions() {
	f.mock.ExpectQuery(`FROM achievements a`).
		WithArgs(f.userID).
		WillReturnRows(pgxmock.NewRows(achievementStatusCols))
}

func (f *checkInFixture) expectUserUpdate(balance, lifetime, level int) {
	f.mock.ExpectExec(`UPDATE users\s+SET points = \$2`).
		WithArgs(f.userID, balance, lifetime, level).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
}

func TestCheckInExplicitRunningEventAppliesBonus(t *testing.T) {
	f := newCheckInFixture(t)
	eventID := uuid.New()
	req := f.qrRequest(t)
	req.EventID = eventID.String()

	f.mock.ExpectBegin()
	f.mock.ExpectQuery(`FROM breweries WHERE id = \$1`).WithArgs(f.brewery.ID).WillReturnRows(breweryRow(f.brewery))
	f.expectUserLock(0, 0, 1)
	f.expectNoPreviousCheckIn()
	f.mock.ExpectQuery(`FROM events\s+WHERE id = \$1 AND brewery_id = \$2`).
		WithArgs(eventID, f.brewery.ID).
		WillReturnRows(pgxmock.NewRows([]string{"id", "bonus_points", "starts_at", "ends_at"}).
			AddRow(eventID, 15, testNow, testNow.Add(time.Hour)))
	f.expectAward(25)
	f.expectNoDefinitions()
	f.expectUserUpdate(25, 25, 1)
	f.mock.ExpectCommit()

	res, err := f.svc.CheckIn(context.Background(), "user_clerk", req)
	require.NoError(t, err)
	require.NotNil(t, res.CheckIn.EventID)
	assert.Equal(t, eventID, *res.CheckIn.EventID)
	assert.Equal(t, 25, res.PointsAwarded)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestCheckInGeofenceAcceptsExactRadius(t *testing.T) {
	f := newCheckInFixture(t)
	lat, lng := f.brewery.Latitude+0.0009, f.brewery.Longitude
	f.brewery.CheckInRadiusM = geo.Distance(geo.Point{Lat: lat, Lng: lng}, geo.Point{Lat: f.brewery.Latitude, Lng: f.brewery.Longitude})

	f.mock.ExpectBegin()
	f.mock.ExpectQuery(`FROM breweries WHERE id = \$1`).WithArgs(f.brewery.ID).WillReturnRows(breweryRow(f.brewery))
	f.expectUserLock(0, 0, 1)
	f.expectNoPreviousCheckIn()
	f.mock.ExpectQuery(`FROM events\s+WHERE brewery_id = \$1`).
		WithArgs(f.brewery.ID, testNow).
		WillReturnRows(pgxmock.NewRows([]string{"id", "bonus_points"}))
	f.expectAward(10)
	f.expectNoDefinitions()
	f.expectUserUpdate(10, 10, 1)
	f.mock.ExpectCommit()

	res, err := f.svc.CheckIn(context.Background(), "user_clerk", &checkin.CheckInRequest{
		BreweryID: f.brewery.ID.String(),
		Method:    checkin.MethodGeofence,
		Latitude:  &lat,
		Longitude: &lng,
	})
	require.NoError(t, err)
	require.NotNil(t, res.CheckIn.DistanceM)
	assert.Equal(t, f.brewery.CheckInRadiusM, *res.CheckIn.DistanceM)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestCheckInAfterCooldownElapsed(t *testing.T) {
	f := newCheckInFixture(t)

	f.mock.ExpectBegin()
	f.mock.ExpectQuery(`FROM breweries WHERE id = \$1`).WithArgs(f.brewery.ID).WillReturnRows(breweryRow(f.brewery))
	f.expectUserLock(40, 40, 1)
	f.mock.ExpectQuery(`SELECT created_at\s+FROM checkins`).
		WithArgs(f.userID, f.brewery.ID).
		WillReturnRows(pgxmock.NewRows([]string{"created_at"}).AddRow(testNow.Add(-24 * time.Hour)))
	f.mock.ExpectQuery(`FROM events\s+WHERE brewery_id = \$1`).
		WithArgs(f.brewery.ID, testNow).
		WillReturnRows(pgxmock.NewRows([]string{"id", "bonus_points"}))
	f.expectAward(10)
	f.expectNoDefinitions()
	f.expectUserUpdate(50, 50, 1)
	f.mock.ExpectCommit()

	res, err := f.svc.CheckIn(context.Background(), "user_clerk", f.qrRequest(t))
	require.NoError(t, err)
	assert.Equal(t, 50, res.Balance)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestCheckInUnlocksAchievementsAndLevels(t *testing.T) {
	f := newCheckInFixture(t)
	notifier := &recordingNotifier{}
	f.svc.notifier = notifier

	firstPint := testDefinition("first_pint", achievement.CriteriaTotalCheckIns, 1, 95)
	levelTwo := testDefinition("level_two", achievement.CriteriaLevel, 2, 0)

	f.mock.ExpectBegin()
	f.mock.ExpectQuery(`FROM breweries WHERE id = \$1`).WithArgs(f.brewery.ID).WillReturnRows(breweryRow(f.brewery))
	f.expectUserLock(0, 0, 1)
	f.expectNoPreviousCheckIn()
	f.mock.ExpectQuery(`FROM events\s+WHERE brewery_id = \$1`).
		WithArgs(f.brewery.ID, testNow).
		WillReturnRows(pgxmock.NewRows([]string{"id", "bonus_points"}))
	f.expectAward(10)
	f.mock.ExpectQuery(`FROM achievements a\s+LEFT JOIN user_achievements`).
		WithArgs(f.userID).
		WillReturnRows(definitionRows([]achievement.Achievement{firstPint, levelTwo}, nil))
	expectStats(f.mock, f.userID, 1, 1, 0, 0)
	expectStreakDays(f.mock, f.userID, testNow)
	f.mock.ExpectExec(`INSERT INTO user_achievements`).
		WithArgs(f.userID, firstPint.ID, testNow).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	f.mock.ExpectExec(`INSERT INTO points_ledger`).
		WithArgs(f.userID, 95, "achievement", &firstPint.ID).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	f.mock.ExpectExec(`INSERT INTO user_achievements`).
		WithArgs(f.userID, levelTwo.ID, testNow).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	f.expectUserUpdate(105, 105, 2)
	f.mock.ExpectCommit()

	res, err := f.svc.CheckIn(context.Background(), "user_clerk", f.qrRequest(t))
	require.NoError(t, err)

	assert.Equal(t, 10, res.PointsAwarded)
	assert.Equal(t, 95, res.AchievementBonus)
	assert.Equal(t, 105, res.Balance)
	assert.Equal(t, 105, res.LifetimePoints)
	assert.Equal(t, 2, res.Level)
	assert.True(t, res.LeveledUp)
	require.Len(t, res.NewAchievements, 2)
	assert.Equal(t, "first_pint", res.NewAchievements[0].Code)

	require.Len(t, notifier.sent, 3)
	assert.Equal(t, notification.TypeAchievementUnlocked, notifier.sent[0].Type)
	assert.Equal(t, notification.TypeLevelUp, notifier.sent[2].Type)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestCheckInRejectsBadInput(t *testing.T) {
	f := newCheckInFixture(t)
	lat := 95.0
	lng := 10.0

	_, err := f.svc.CheckIn(context.Background(), "user_clerk", &checkin.CheckInRequest{BreweryID: "nope", Method: checkin.MethodQR})
	assert.ErrorIs(t, err, ErrInvalidID)

	_, err = f.svc.CheckIn(context.Background(), "user_clerk", &checkin.CheckInRequest{
		BreweryID: f.brewery.ID.String(),
		Method:    checkin.MethodGeofence,
		Latitude:  &lat,
		Longitude: &lng,
	})
	assert.ErrorIs(t, err, ErrInvalidCoordinates)

	_, err = f.svc.CheckIn(context.Background(), "user_clerk", &checkin.CheckInRequest{
		BreweryID: f.brewery.ID.String(),
		Method:    "bluetooth",
	})
	assert.ErrorIs(t, err, ErrInvalidCheckIn)

	assert.NoError(t, f.mock.ExpectationsWereMet())
}
