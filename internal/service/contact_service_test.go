package service

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestContactService_Send(t *testing.T) {
	tests := []struct {
		name    string
		in      ContactInput
		wantErr error
		field   string
	}{
		{name: "missing name", in: ContactInput{Email: "a@b.fr", Message: "Bonjour, une question."}, wantErr: ErrValidation, field: "name"},
		{name: "bad email", in: ContactInput{Name: "Léa", Email: "pas-un-email", Message: "Bonjour, une question."}, wantErr: ErrValidation, field: "email"},
		{name: "short message", in: ContactInput{Name: "Léa", Email: "lea@exemple.fr", Message: "Salut"}, wantErr: ErrValidation, field: "message"},
		{name: "long subject", in: ContactInput{Name: "Léa", Email: "lea@exemple.fr", Subject: strings.Repeat("s", 201), Message: "Bonjour, une question."}, wantErr: ErrValidation, field: "subject"},
		{name: "valid", in: ContactInput{Name: " Léa Martin ", Email: " Lea@Exemple.FR ", Subject: "Partenariat", Message: "Nous souhaitons référencer nos équipes."}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			err := h.contact.Send(h.ctx, tt.in)
			h.wait()

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Send() error = %v, want %v", err, tt.wantErr)
				}
				var verr *ValidationError
				if errors.As(err, &verr) && verr.Fields[tt.field] == "" {
					t.Errorf("Send() error = %v, want field %q", err, tt.field)
				}
				if n := h.mail.SendCalls(); n != 0 {
					t.Errorf("Send() should not email on invalid input, got %d", n)
				}
				return
			}
			if err != nil {
				t.Fatalf("Send() unexpected error = %v", err)
			}

			got := h.mail.SentTo("contact@chantier.test")
			if len(got) != 1 {
				t.Fatalf("Expected 1 contact email, got %d", len(got))
			}
			if got[0].ReplyTo != "lea@exemple.fr" {
				t.Errorf("ReplyTo = %q, want normalized visitor email", got[0].ReplyTo)
			}
			if got[0].Subject != "[Contact] Partenariat" {
				t.Errorf("Subject = %q", got[0].Subject)
			}
			if !strings.Contains(got[0].Body, "Léa Martin") {
				t.Error("Contact email should carry the visitor name")
			}
		})
	}
}

func TestContactService_DefaultSubject(t *testing.T) {
	h := newHarness(t)
	err := h.contact.Send(h.ctx, ContactInput{Name: "Léa", Email: "lea@exemple.fr", Message: "Bonjour, une question."})
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	h.wait()
	if got := h.mail.Last().Subject; got != "[Contact] Demande de contact" {
		t.Errorf("Subject = %q, want default subject", got)
	}
}

func TestContactService_CancelledContext(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(h.ctx)
	cancel()

	err := h.contact.Send(ctx, ContactInput{Name: "Léa", Email: "lea@exemple.fr", Message: "Bonjour, une question."})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Send() error = %v, want context.Canceled", err)
	}
	h.wait()
	if n := h.mail.SendCalls(); n != 0 {
		t.Errorf("Send() should not email on a cancelled request, got %d", n)
	}
}
