package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/qwinhub/backend/config"
	"github.com/qwinhub/backend/internal/models"
	"github.com/qwinhub/backend/pkg/queue"
)

// Email job results reported to JobRecorder.
const (
	ResultSent    = "sent"
	ResultRetried = "retried"
	ResultInvalid = "invalid"
)

// Sender delivers one rendered email.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// JobSource is the queue the email processor consumes.
type JobSource interface {
	Dequeue(ctx context.Context) (*queue.Job, error)
	Retry(ctx context.Context, job *queue.Job) error
}

// EmailLogStore records delivery attempts.
type EmailLogStore interface {
	Create(ctx context.Context, el *models.EmailLog) error
	MarkSent(ctx context.Context, id uuid.UUID) error
	MarkFailed(ctx context.Context, id uuid.UUID, reason string) error
}

// JobRecorder counts processed email jobs.
type JobRecorder interface {
	EmailJob(result string)
}

// SMTPSender sends mail through an SMTP relay with PLAIN auth.
type SMTPSender struct {
	addr string
	auth smtp.Auth
	from string
	name string
}

// NewSMTPSender returns a sender for cfg, or nil when no SMTP host is set.
func NewSMTPSender(cfg config.EmailConfig) *SMTPSender {
	if cfg.SMTPHost == "" {
		return nil
	}
	var auth smtp.Auth
	if cfg.SMTPUser != "" {
		auth = smtp.PlainAuth("", cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPHost)
	}
	return &SMTPSender{
		addr: cfg.SMTPHost + ":" + strconv.Itoa(cfg.SMTPPort),
		auth: auth,
		from: cfg.FromAddress,
		name: cfg.FromName,
	}
}

// Send implements Sender. net/smtp has no context support, so ctx is only
// checked before dialing.
func (s *SMTPSender) Send(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return smtp.SendMail(s.addr, s.auth, s.from, []string{to}, buildMessage(s.name, s.from, to, subject, body))
}

func buildMessage(fromName, from, to, subject, body string) []byte {
	var b strings.Builder
	if fromName != "" {
		fmt.Fprintf(&b, "From: %s <%s>\r\n", fromName, from)
	} else {
		fmt.Fprintf(&b, "From: %s\r\n", from)
	}
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", strings.NewReplacer("\r", " ", "\n", " ").Replace(subject))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	b.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	return []byte(b.String())
}

// LogSender writes emails to the log instead of sending them.
type LogSender struct {
	logger *zap.Logger
}

// NewLogSender creates a LogSender.
func NewLogSender(logger *zap.Logger) *LogSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSender{logger: logger}
}

// Send implements Sender.
func (s *LogSender) Send(_ context.Context, to, subject, body string) error {
	s.logger.Info("email (smtp not configured)", zap.String("to", to), zap.String("subject", subject), zap.Int("body_len", len(body)))
	return nil
}

// EmailProcessor sends queued email jobs and records each attempt.
type EmailProcessor struct {
	jobs    JobSource
	logs    EmailLogStore
	sender  Sender
	metrics JobRecorder
	logger  *zap.Logger
	backoff time.Duration
}

// NewEmailProcessor creates an email processor. metrics may be nil.
func NewEmailProcessor(jobs JobSource, logs EmailLogStore, sender Sender, metrics JobRecorder, logger *zap.Logger) *EmailProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EmailProcessor{jobs: jobs, logs: logs, sender: sender, metrics: metrics, logger: logger, backoff: queue.RetryBackoff}
}

// Process executes one email job. A returned error means the job should be retried.
func (p *EmailProcessor) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeEmail {
		p.record(ResultInvalid)
		p.logger.Warn("dropping job of unknown type", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		return nil
	}
	var payload queue.EmailPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		p.record(ResultInvalid)
		p.logger.Warn("dropping malformed email job", zap.String("job_id", job.ID), zap.Error(err))
		return nil
	}

	el := &models.EmailLog{
		QuizID:         payload.QuizID,
		EmailType:      models.DraftType(payload.EmailType),
		RecipientEmail: payload.RecipientEmail,
		Subject:        payload.Subject,
	}
	if err := p.logs.Create(ctx, el); err != nil {
		return fmt.Errorf("create email log: %w", err)
	}

	if err := p.sender.Send(ctx, payload.RecipientEmail, payload.Subject, payload.Body); err != nil {
		if mErr := p.logs.MarkFailed(ctx, el.ID, err.Error()); mErr != nil {
			p.logger.Error("mark email failed", zap.String("email_log_id", el.ID.String()), zap.Error(mErr))
		}
		return fmt.Errorf("send: %w", err)
	}
	if err := p.logs.MarkSent(ctx, el.ID); err != nil {
		p.logger.Error("mark email sent", zap.String("email_log_id", el.ID.String()), zap.Error(err))
	}
	p.record(ResultSent)
	p.logger.Info("email sent", zap.String("job_id", job.ID), zap.String("email_type", payload.EmailType), zap.String("to", payload.RecipientEmail))
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

		job, err := p.jobs.Dequeue(ctx)
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

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt))
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Error(err))
			p.record(ResultRetried)
			if reErr := p.jobs.Retry(ctx, job); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			p.sleep(ctx)
		}
	}
}

func (p *EmailProcessor) sleep(ctx context.Context) {
	t := time.NewTimer(p.backoff)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

func (p *EmailProcessor) record(result string) {
	if p.metrics != nil {
		p.metrics.EmailJob(result)
	}
}
