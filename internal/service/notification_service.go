package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/campusgate/admissions-api/internal/models"
	"github.com/campusgate/admissions-api/pkg/config"
	"github.com/campusgate/admissions-api/pkg/jobs"
)

type notificationStore interface {
	Create(ctx context.Context, n *models.Notification) error
}

// Notifier emits user-facing notification records. Emission is fire-and-forget:
// the enqueue never fails a state-changing caller, workers retry persistence a
// bounded number of times, and exhausted jobs are logged and dropped.
type Notifier struct {
	queue  *jobs.Queue
	logger *zap.Logger
}

// NewNotifier constructs a Notifier backed by a worker queue.
func NewNotifier(store notificationStore, cfg config.NotificationsConfig, logger *zap.Logger) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	n := &Notifier{logger: logger}
	n.queue = jobs.NewQueue("notifications", func(ctx context.Context, job jobs.Job) error {
		record, ok := job.Payload.(*models.Notification)
		if !ok {
			return fmt.Errorf("unexpected payload type %T", job.Payload)
		}
		return store.Create(ctx, record)
	}, jobs.QueueConfig{
		Workers:    cfg.Workers,
		BufferSize: cfg.BufferSize,
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
		Logger:     logger,
	})
	return n
}

// Start launches the notification workers.
func (n *Notifier) Start(ctx context.Context) {
	n.queue.Start(ctx)
}

// Stop drains the notification workers.
func (n *Notifier) Stop() {
	n.queue.Stop()
}

// Notify enqueues a notification record. Failures are logged, never returned;
// application state changes must not depend on notification delivery.
func (n *Notifier) Notify(record models.Notification) {
	record.ID = uuid.NewString()
	if err := n.queue.Enqueue(jobs.Job{ID: record.ID, Type: string(record.Type), Payload: &record}); err != nil {
		n.logger.Sugar().Warnw("dropping notification", "type", record.Type, "user_id", record.UserID, "error", err)
	}
}
