package domain

import "context"

// Mailer defines the contract for sending emails (infrastructure port).
type Mailer interface {
	Send(to, subject, html, text string) error
}

// EmailTemplateRenderer renders email content from a named template with the
// given data.
type EmailTemplateRenderer interface {
	Render(templateName string, data any) (subject, htmlBody, textBody string, err error)
}

// RegistrationEmailData holds data for registration lifecycle emails.
type RegistrationEmailData struct {
	Email      string
	Name       string
	EventName  string
	TicketCode string
	TicketQR   string // base64 PNG, empty when no artifact exists yet
	AmountDue  int64
}

// RegistrationNotifier sends registration lifecycle notifications. Delivery is
// best-effort: callers invoke it asynchronously and a failure must never fail
// or roll back the registration it refers to.
type RegistrationNotifier interface {
	NotifyRegistrationCompleted(ctx context.Context, data *RegistrationEmailData) error
	NotifyPaymentApproved(ctx context.Context, data *RegistrationEmailData) error
}
