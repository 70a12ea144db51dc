package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/missoes/backend/internal/metrics"
	"github.com/missoes/backend/internal/models"
	"github.com/missoes/backend/pkg/queue"
)

// settleTimeout bounds the bookkeeping of a job that is still in flight at shutdown.
const settleTimeout = 10 * time.Second

// JobQueue is the part of the Redis queue the worker consumes.
type JobQueue interface {
	Dequeue(ctx context.Context, queues ...string) (*queue.Job, error)
	Retry(ctx context.Context, job *queue.Job) error
}

// LogWriter records delivery outcomes.
type LogWriter interface {
	Create(ctx context.Context, l *models.EmailLog) error
}

// EmailProcessor delivers queued e-mails and records each attempt in email_logs.
type EmailProcessor struct {
	mailer  Mailer
	logs    LogWriter
	queue   JobQueue
	logger  *zap.Logger
	backoff time.Duration
	now     func() time.Time
}

// NewEmailProcessor creates an e-mail job processor.
func NewEmailProcessor(mailer Mailer, logs LogWriter, q JobQueue, logger *zap.Logger) *EmailProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EmailProcessor{
		mailer:  mailer,
		logs:    logs,
		queue:   q,
		logger:  logger,
		backoff: queue.RetryBackoff,
		now:     time.Now,
	}
}

// Process executes one e-mail job.
func (p *EmailProcessor) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeEmail {
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
	var payload queue.EmailPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	entry := &models.EmailLog{
		UserID:         payload.UserID,
		EmailType:      payload.EmailType,
		RecipientEmail: payload.RecipientEmail,
		Subject:        payload.Subject,
	}
	sendErr := p.mailer.Send(ctx, payload)
	if sendErr != nil {
		entry.Status = models.EmailLogStatusFailed
		entry.ErrorMessage = sendErr.Error()
		metrics.EmailJobs.WithLabelValues(models.EmailLogStatusFailed).Inc()
	} else {
		sentAt := p.now()
		entry.Status = models.EmailLogStatusSent
		entry.SentAt = &sentAt
		metrics.EmailJobs.WithLabelValues(models.EmailLogStatusSent).Inc()
	}
	logCtx, cancel := settleContext(ctx)
	defer cancel()
	if err := p.logs.Create(logCtx, entry); err != nil {
		p.logger.Warn("email log write failed", zap.String("job_id", job.ID), zap.Error(err))
	}
	if sendErr != nil {
		return sendErr
	}

	p.logger.Info("email sent",
		zap.String("job_id", job.ID),
		zap.String("email_type", payload.EmailType),
	)
	return nil
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *EmailProcessor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("email worker stopping")
			return
		default:
		}

		job, err := p.queue.Dequeue(ctx, queue.QueueEmails)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			p.logger.Warn("dequeue error", zap.Error(err))
			p.sleep(ctx)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt), zap.Error(err))
			retryCtx, cancel := settleContext(ctx)
			if reErr := p.queue.Retry(retryCtx, job); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			cancel()
			p.sleep(ctx)
		}
	}
}

// settleContext outlives ctx so a job interrupted by shutdown is still logged and requeued.
func settleContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), settleTimeout)
}

func (p *EmailProcessor) sleep(ctx context.Context) {
	t := time.NewTimer(p.backoff)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
