package mailer

import (
	"context"
	"fmt"
	"log/slog"

	mg "github.com/mailgun/mailgun-go/v5"

	"github.com/nexthr/linerelay/internal/config"
)

// MailgunSender delivers mail through the Mailgun API.
type MailgunSender struct {
	logger *slog.Logger
	client *mg.Client
	cfg    config.MailConfig
}

func NewMailgunSender(log *slog.Logger, cfg config.MailConfig) *MailgunSender {
	if log == nil {
		log = slog.Default()
	}
	client := mg.NewMailgun(cfg.Mailgun.APIKey)
	if cfg.Mailgun.Region == "eu" {
		client.SetAPIBase(mg.APIBaseEU)
	}
	return &MailgunSender{
		logger: log.With(slog.String("service", "mailer"), slog.String("provider", "mailgun")),
		client: client,
		cfg:    cfg,
	}
}

func (s *MailgunSender) Send(ctx context.Context, msg Message) error {
	m := mg.NewMessage(s.cfg.Mailgun.Domain, s.cfg.From, msg.Subject, "", msg.To...)
	m.SetHTML(msg.HTMLBody)
	if msg.Attachment != nil {
		m.AddBufferAttachment(msg.Attachment.Filename, msg.Attachment.Content)
	}

	resp, err := s.client.Send(ctx, m)
	if err != nil {
		return fmt.Errorf("mailgun send: %w", err)
	}
	s.logger.Info("email sent", slog.String("message_id", resp.ID), slog.Int("recipients", len(msg.To)))
	return nil
}
