package dispatch

import (
	"context"
	"fmt"

	"github.com/resend/resend-go/v2"
)

// EmailSender delivers transactional email for routes that carry an email
// channel.
type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

// ResendEmailService sends email via Resend.
type ResendEmailService struct {
	client *resend.Client
	from   string
}

// NewResendEmailService creates an email service. from defaults to the
// Resend onboarding sender when empty.
func NewResendEmailService(apiKey, from string) *ResendEmailService {
	if from == "" {
		from = "onboarding@resend.dev"
	}
	return &ResendEmailService{
		client: resend.NewClient(apiKey),
		from:   from,
	}
}

// SendEmail sends a transactional email.
func (s *ResendEmailService) SendEmail(ctx context.Context, to, subject, body string) error {
	params := &resend.SendEmailRequest{
		From:    s.from,
		To:      []string{to},
		Subject: subject,
		Text:    body,
	}
	if _, err := s.client.Emails.SendWithContext(ctx, params); err != nil {
		return fmt.Errorf("failed to send email via Resend: %w", err)
	}
	return nil
}
