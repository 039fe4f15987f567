package services

import (
	"context"
	"fmt"
	"log/slog"

	"eventgate/internal/domain"
)

type emailNotifier struct {
	mailer   domain.Mailer
	renderer domain.EmailTemplateRenderer
	logger   *slog.Logger
}

// NewEmailNotifier returns a RegistrationNotifier that renders the embedded
// templates and sends through the configured Mailer.
func NewEmailNotifier(mailer domain.Mailer, renderer domain.EmailTemplateRenderer, logger *slog.Logger) domain.RegistrationNotifier {
	return &emailNotifier{mailer: mailer, renderer: renderer, logger: logger}
}

func (s *emailNotifier) NotifyRegistrationCompleted(ctx context.Context, data *domain.RegistrationEmailData) error {
	return s.send("registration_completed", data)
}

func (s *emailNotifier) NotifyPaymentApproved(ctx context.Context, data *domain.RegistrationEmailData) error {
	return s.send("payment_approved", data)
}

func (s *emailNotifier) send(template string, data *domain.RegistrationEmailData) error {
	if data == nil {
		return fmt.Errorf("%s email data is nil", template)
	}
	subject, htmlBody, textBody, err := s.renderer.Render(template, data)
	if err != nil {
		return fmt.Errorf("render %s template: %w", template, err)
	}
	if err := s.mailer.Send(data.Email, subject, htmlBody, textBody); err != nil {
		return fmt.Errorf("send %s email: %w", template, err)
	}
	s.logger.Info("notification sent", "template", template, "to", data.Email)
	return nil
}
