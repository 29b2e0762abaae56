// Package mailer sends transactional mail through Resend.
package mailer

import (
	"context"
	"fmt"

	"github.com/resend/resend-go/v2"
)

type Mailer struct {
	client *resend.Client
	from   string
}

type Config struct {
	APIKey string
	From   string
}

func New(cfg Config) (*Mailer, error) {
	if cfg.APIKey == "" || cfg.From == "" {
		return nil, fmt.Errorf("mailer requires an API key and a sender address")
	}

	return &Mailer{
		client: resend.NewClient(cfg.APIKey),
		from:   cfg.From,
	}, nil
}

func (m *Mailer) SendReceipt(ctx context.Context, to, subject, htmlBody string) error {
	request := &resend.SendEmailRequest{
		From:    m.from,
		To:      []string{to},
		Subject: subject,
		Html:    htmlBody,
	}

	if _, err := m.client.Emails.SendWithContext(ctx, request); err != nil {
		return fmt.Errorf("sending email to %s: %w", to, err)
	}
	return nil
}
