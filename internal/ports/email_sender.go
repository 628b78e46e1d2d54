package ports

import "context"

// EmailSender sends emails / Envoie des emails
type EmailSender interface {
	// Send sends an HTML email / Envoie un email HTML
	Send(ctx context.Context, msg Email) error
}

// Email is one outgoing message / Un message sortant
type Email struct {
	To      []string
	ReplyTo string
	Subject string
	Body    string // HTML
}
