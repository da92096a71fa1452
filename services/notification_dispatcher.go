package services

import (
	"context"
	"sync"
	"time"

	"brewedAtAPI/internal/database"
	"brewedAtAPI/internal/logger"
	"brewedAtAPI/internal/notification"
)

type PushNotificationProvider interface {
	SendPush(ctx context.Context, tokens []notification.DeviceToken, title, body string, data map[string]any) error
}

// NotificationDispatcher pushes stored notifications to devices from a worker pool.
type NotificationDispatcher struct {
	db           database.DB
	pushProvider PushNotificationProvider
	workers      int
	jobQueue     chan *DispatchJob
	stopChan     chan struct{}
	wg           sync.WaitGroup
}

type DispatchJob struct {
	Notification *notification.Notification
	DeviceTokens []notification.DeviceToken
}

func NewNotificationDispatcher(db database.DB, provider PushNotificationProvider) *NotificationDispatcher {
	dispatcher := &NotificationDispatcher{
		db:           db,
		pushProvider: provider,
		workers:      5,
		jobQueue:     make(chan *DispatchJob, 100),
		stopChan:     make(chan struct{}),
	}

	dispatcher.startWorkers()

	return dispatcher
}

func (d *NotificationDispatcher) startWorkers() {
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
}

func (d *NotificationDispatcher) worker() {
	defer d.wg.Done()
	for {
		select {
		case job := <-d.jobQueue:
			d.processJob(job)
		case <-d.stopChan:
			return
		}
	}
}

func (d *NotificationDispatcher) processJob(job *DispatchJob) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	notif := job.Notification

	if len(job.DeviceTokens) > 0 && d.pushProvider != nil {
		err := d.pushProvider.SendPush(ctx, job.DeviceTokens, notif.Title, notif.Body, notif.Data)
		if err != nil {
			logger.Sugar.Warnf("Push failed for user %s: %v", notif.UserID, err)
			d.markStatus(ctx, notif, notification.StatusFailed)
			return
		}
	} else {
		logger.Sugar.Debugf("Skipping push for %s: tokens=%d provider=%v", notif.ID, len(job.DeviceTokens), d.pushProvider != nil)
	}

	d.markStatus(ctx, notif, notification.StatusSent)
}

// Dispatch queues a job, giving up after a short wait when the queue is full.
func (d *NotificationDispatcher) Dispatch(job *DispatchJob) {
	select {
	case d.jobQueue <- job:
	case <-time.After(5 * time.Second):
		logger.Sugar.Errorf("Failed to queue notification %s: queue full", job.Notification.ID)
		d.markStatus(context.Background(), job.Notification, notification.StatusFailed)
	}
}

func (d *NotificationDispatcher) markStatus(ctx context.Context, notif *notification.Notification, status notification.NotificationStatus) {
	query := `
		UPDATE notifications
		SET status = $2, sent_at = CASE WHEN $2 = 'sent' THEN NOW() ELSE sent_at END
		WHERE id = $1
	`

	if _, err := d.db.Exec(ctx, query, notif.ID, string(status)); err != nil {
		logger.Sugar.Errorf("Failed to mark notification %s as %s: %v", notif.ID, status, err)
		return
	}
	notif.Status = status
}

// Stop waits for in-flight jobs. Jobs still queued stay pending in the table.
func (d *NotificationDispatcher) Stop() {
	logger.Sugar.Info("Stopping notification dispatcher...")
	close(d.stopChan)
	d.wg.Wait()
	logger.Sugar.Info("Notification dispatcher stopped")
}

// MockPushProvider logs instead of pushing. Used when FCM is not configured.
type MockPushProvider struct{}

func (m *MockPushProvider) SendPush(ctx context.Context, tokens []notification.DeviceToken, title, body string, data map[string]any) error {
	logger.Sugar.Infof("MOCK PUSH: Sending to %d devices: %s - %s", len(tokens), title, body)
	return nil
}
