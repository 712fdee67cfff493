// Package mailer sends outbound notification email through a
// configured provider. It is a collaborator of the report pipeline and
// the /mail/send endpoint, not part of the relay path.
package mailer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nexthr/linerelay/internal/config"
)

// Attachment is an optional binary part, typically the rendered PDF.
type Attachment struct {
	Filename    string
	ContentType string
	Content     []byte
}

// Message is one outbound email.
type Message struct {
	To         []string
	Subject    string
	HTMLBody   string
	Attachment *Attachment
}

// Sender delivers a message and reports success or failure; there is no
// retry contract here.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// NewSender builds the provider selected in config.
func NewSender(log *slog.Logger, cfg config.MailConfig) (Sender, error) {
	switch cfg.Provider {
	case "", "smtp":
		return NewSMTPSender(log, cfg), nil
	case "mailgun":
		return NewMailgunSender(log, cfg), nil
	default:
		return nil, fmt.Errorf("unknown mail provider %q", cfg.Provider)
	}
}
