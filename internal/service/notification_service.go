package service

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/muhammed-ajmal-puthanpura/campusconnect/pkg/jobs"
	"github.com/muhammed-ajmal-puthanpura/campusconnect/pkg/mailer"
)

// EmailNotification is the payload dispatched by the notification queue.
type EmailNotification struct {
	Recipient string
	Subject   string
	Body      string
}

// NotificationService delivers emails asynchronously through a worker
// queue. Delivery is best effort: failures are retried by the queue and
// never surface to the triggering operation.
type NotificationService struct {
	queue  *jobs.Queue
	logger *zap.Logger
}

// NewNotificationService wires the mail sender behind a job queue.
func NewNotificationService(sender mailer.Sender, cfg jobs.QueueConfig, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	handler := func(ctx context.Context, job jobs.Job) error {
		msg, ok := job.Payload.(EmailNotification)
		if !ok {
			logger.Warn("unexpected notification payload", zap.String("job_id", job.ID))
			return nil
		}
		return sender.Send(msg.Recipient, msg.Subject, msg.Body)
	}
	cfg.Logger = logger
	return &NotificationService{
		queue:  jobs.NewQueue("notifications", handler, cfg),
		logger: logger,
	}
}

// Start launches the queue workers.
func (s *NotificationService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the queue workers.
func (s *NotificationService) Stop() {
	s.queue.Stop()
}

// Notify enqueues an email. Errors are logged, not returned, so callers
// never fail a business operation on notification trouble.
func (s *NotificationService) Notify(recipient, subject, body string) {
	err := s.queue.Enqueue(jobs.Job{
		ID:      uuid.NewString(),
		Type:    "email",
		Payload: EmailNotification{Recipient: recipient, Subject: subject, Body: body},
	})
	if err != nil {
		s.logger.Warn("failed to enqueue notification",
			zap.String("recipient", recipient),
			zap.String("subject", subject),
			zap.Error(err),
		)
	}
}
