package mailer

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	mail "github.com/wneessen/go-mail"

	"github.com/nexthr/linerelay/internal/config"
)

// SMTPSender delivers mail over plain SMTP.
type SMTPSender struct {
	logger *slog.Logger
	cfg    config.MailConfig
}

func NewSMTPSender(log *slog.Logger, cfg config.MailConfig) *SMTPSender {
	if log == nil {
		log = slog.Default()
	}
	return &SMTPSender{
		logger: log.With(slog.String("service", "mailer"), slog.String("provider", "smtp")),
		cfg:    cfg,
	}
}

func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	m := mail.NewMsg()
	if err := m.From(s.cfg.From); err != nil {
		return fmt.Errorf("set from: %w", err)
	}
	if err := m.To(msg.To...); err != nil {
		return fmt.Errorf("set to: %w", err)
	}
	m.Subject(msg.Subject)
	m.SetBodyString(mail.TypeTextHTML, msg.HTMLBody)
	m.SetMessageID()
	if msg.Attachment != nil {
		if err := m.AttachReader(msg.Attachment.Filename, bytes.NewReader(msg.Attachment.Content)); err != nil {
			return fmt.Errorf("attach %s: %w", msg.Attachment.Filename, err)
		}
	}

	opts := []mail.Option{
		mail.WithPort(s.cfg.SMTP.Port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(s.cfg.SMTP.Username),
		mail.WithPassword(s.cfg.SMTP.Password),
	}
	switch s.cfg.SMTP.Security {
	case "tls":
		opts = append(opts, mail.WithSSLPort(false), mail.WithTLSPolicy(mail.TLSMandatory))
	case "starttls":
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	default:
		opts = append(opts, mail.WithTLSPolicy(mail.NoTLS))
	}

	client, err := mail.NewClient(s.cfg.SMTP.Host, opts...)
	if err != nil {
		return fmt.Errorf("create smtp client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	s.logger.Info("email sent", slog.Int("recipients", len(msg.To)))
	return nil
}
