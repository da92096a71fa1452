package workers

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"brewedAtAPI/internal/logger"
)

const (
	NotificationRetention = 90 * 24 * time.Hour

	cleanupSchedule = "@hourly"
	warmSchedule    = "@every 5m"
	jobTimeout      = 2 * time.Minute
)

type RaffleDrawer interface {
	DrawDueRaffles(ctx context.Context) (int, error)
}

type NotificationCleaner interface {
	CleanupOld(ctx context.Context, retention time.Duration) (int64, error)
}

type LeaderboardWarmer interface {
	Warm(ctx context.Context) error
}

// RaffleDrawJob draws raffles whose end time has passed.
type RaffleDrawJob struct {
	drawer RaffleDrawer
}

func NewRaffleDrawJob(drawer RaffleDrawer) *RaffleDrawJob {
	return &RaffleDrawJob{drawer: drawer}
}

func (j *RaffleDrawJob) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	n, err := j.drawer.DrawDueRaffles(ctx)
	if err != nil {
		logger.Sugar.Errorf("RaffleDrawJob: %v", err)
		return
	}
	if n > 0 {
		logger.Sugar.Infof("RaffleDrawJob: drew %d raffle(s)", n)
	}
}

// NotificationCleanupJob removes old delivered or read notifications.
type NotificationCleanupJob struct {
	cleaner   NotificationCleaner
	retention time.Duration
}

func NewNotificationCleanupJob(cleaner NotificationCleaner, retention time.Duration) *NotificationCleanupJob {
	return &NotificationCleanupJob{cleaner: cleaner, retention: retention}
}

func (j *NotificationCleanupJob) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	n, err := j.cleaner.CleanupOld(ctx, j.retention)
	if err != nil {
		logger.Sugar.Errorf("NotificationCleanupJob: %v", err)
		return
	}
	logger.Sugar.Debugf("NotificationCleanupJob: removed %d notification(s)", n)
}

type LeaderboardWarmJob struct {
	warmer LeaderboardWarmer
}

func NewLeaderboardWarmJob(warmer LeaderboardWarmer) *LeaderboardWarmJob {
	return &LeaderboardWarmJob{warmer: warmer}
}

func (j *LeaderboardWarmJob) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	if err := j.warmer.Warm(ctx); err != nil {
		logger.Sugar.Warnf("LeaderboardWarmJob: %v", err)
	}
}

// cronLogger routes cron's own logging through zap.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	logger.Sugar.Debugw("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	logger.Sugar.Errorw("cron: "+msg, append(keysAndValues, "error", err)...)
}

type Deps struct {
	Raffles       RaffleDrawer
	Notifications NotificationCleaner
	Leaderboards  LeaderboardWarmer
	DrawSchedule  string
}

// Start registers the background jobs and starts the scheduler.
// A job still running when its next tick fires is skipped.
func Start(d Deps) (*cron.Cron, error) {
	var l cronLogger
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithLogger(l),
		cron.WithChain(cron.Recover(l), cron.SkipIfStillRunning(l)),
	)

	if _, err := c.AddJob(d.DrawSchedule, NewRaffleDrawJob(d.Raffles)); err != nil {
		return nil, fmt.Errorf("invalid RAFFLE_DRAW_SCHEDULE %q: %w", d.DrawSchedule, err)
	}
	if _, err := c.AddJob(cleanupSchedule, NewNotificationCleanupJob(d.Notifications, NotificationRetention)); err != nil {
		return nil, err
	}
	if _, err := c.AddJob(warmSchedule, NewLeaderboardWarmJob(d.Leaderboards)); err != nil {
		return nil, err
	}

	c.Start()
	return c, nil
}
