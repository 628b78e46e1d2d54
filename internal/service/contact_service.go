package service

import (
	"context"
	"log/slog"
	"strings"
	"unicode/utf8"
)

// ContactService forwards the public contact form / Transmet le formulaire de contact
type ContactService struct {
	Deps
}

// NewContactService creates the contact service / Crée le service de contact
func NewContactService(d Deps) *ContactService {
	return &ContactService{Deps: d}
}

// ContactInput is a visitor request / Demande d'un visiteur
type ContactInput struct {
	Name    string
	Email   string
	Subject string
	Message string
}

// Send emails the request to the support address / Envoie la demande au support
// Replies go straight to the visitor.
func (s *ContactService) Send(ctx context.Context, in ContactInput) error {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Subject = strings.TrimSpace(in.Subject)
	in.Message = strings.TrimSpace(in.Message)

	problems := fieldErrors{}
	switch n := utf8.RuneCountInString(in.Name); {
	case n == 0:
		problems.add("name", "is required")
	case n > 100:
		problems.add("name", "must be at most 100 characters")
	}
	if !isValidEmail(in.Email) {
		problems.add("email", "must be a valid email address")
	}
	if utf8.RuneCountInString(in.Subject) > 200 {
		problems.add("subject", "must be at most 200 characters")
	}
	switch n := utf8.RuneCountInString(in.Message); {
	case n < 10:
		problems.add("message", "must be at least 10 characters")
	case n > 5000:
		problems.add("message", "must be at most 5000 characters")
	}
	if err := problems.err(); err != nil {
		return err
	}

	if in.Subject == "" {
		in.Subject = "Demande de contact"
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.Metrics.RecordContactRequest()
	if s.Notifier != nil {
		s.Notifier.NotifyWithReplyTo(MailContact, []string{s.Config.ContactRecipient()}, in.Email, MailData{
			"Name":    in.Name,
			"Email":   in.Email,
			"Subject": in.Subject,
			"Message": in.Message,
		})
	}
	slog.Info("contact request received", "email", in.Email)
	return nil
}
