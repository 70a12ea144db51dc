package worker

import (
	"context"
	"fmt"
	"strings"

	"github.com/wneessen/go-mail"

	"github.com/missoes/backend/config"
	"github.com/missoes/backend/pkg/queue"
)

// Mailer delivers a rendered e-mail.
type Mailer interface {
	Send(ctx context.Context, p queue.EmailPayload) error
}

// SMTPMailer sends through a single SMTP relay.
type SMTPMailer struct {
	cfg config.EmailConfig
}

// NewSMTPMailer creates an SMTP mailer from the email config.
func NewSMTPMailer(cfg config.EmailConfig) *SMTPMailer {
	return &SMTPMailer{cfg: cfg}
}

// Send builds a multipart message and delivers it.
func (m *SMTPMailer) Send(ctx context.Context, p queue.EmailPayload) error {
	msg, err := buildMessage(m.cfg, p)
	if err != nil {
		return err
	}
	opts := []mail.Option{mail.WithPort(m.cfg.SMTPPort)}
	if m.cfg.SMTPUser != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(m.cfg.SMTPUser),
			mail.WithPassword(m.cfg.SMTPPass),
		)
	}
	if m.cfg.SMTPTLS {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSOpportunistic))
	}
	client, err := mail.NewClient(m.cfg.SMTPHost, opts...)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

func buildMessage(cfg config.EmailConfig, p queue.EmailPayload) (*mail.Msg, error) {
	if p.RecipientEmail == "" {
		return nil, fmt.Errorf("recipient is required")
	}
	msg := mail.NewMsg()
	if err := msg.FromFormat(cfg.FromName, cfg.FromAddress); err != nil {
		return nil, fmt.Errorf("from: %w", err)
	}
	if p.RecipientName != "" {
		if err := msg.AddToFormat(p.RecipientName, p.RecipientEmail); err != nil {
			return nil, fmt.Errorf("to: %w", err)
		}
	} else if err := msg.To(p.RecipientEmail); err != nil {
		return nil, fmt.Errorf("to: %w", err)
	}
	msg.Subject(sanitizeHeader(p.Subject))
	body := p.BodyText
	if body == "" {
		body = p.Subject
	}
	msg.SetBodyString(mail.TypeTextPlain, body)
	if p.BodyHTML != "" {
		msg.AddAlternativeString(mail.TypeTextHTML, p.BodyHTML)
	}
	return msg, nil
}

// sanitizeHeader strips line breaks so user-controlled text cannot inject headers.
func sanitizeHeader(s string) string {
	return strings.NewReplacer("\r", "", "\n", " ").Replace(s)
}
