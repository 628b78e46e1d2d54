package service

import (
	"context"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/BakiChantier/chantier-direct-sub000/internal/domain"
	"github.com/BakiChantier/chantier-direct-sub000/internal/events"
)

// MessageService handles private messaging / Gère la messagerie privée
type MessageService struct {
	Deps
}

// NewMessageService creates the messaging service / Crée le service de messagerie
func NewMessageService(d Deps) *MessageService {
	return &MessageService{Deps: d}
}

// MessageInput is a message to send / Message à envoyer
type MessageInput struct {
	RecipientID int64
	ProjectID   *int64
	Body        string
}

// Send delivers a message to another user / Envoie un message à un autre utilisateur
// When a project is given, sender or recipient must own it.
func (s *MessageService) Send(ctx context.Context, sender *domain.User, in MessageInput) (*domain.Message, error) {
	in.Body = strings.TrimSpace(in.Body)
	problems := fieldErrors{}
	if in.Body == "" {
		problems.add("body", "is required")
	} else if utf8.RuneCountInString(in.Body) > domain.MaxMessageLength {
		problems.add("body", "must be at most 5000 characters")
	}
	if in.RecipientID <= 0 {
		problems.add("recipient_id", "is required")
	} else if in.RecipientID == sender.ID {
		problems.add("recipient_id", "cannot message yourself")
	}
	if err := problems.err(); err != nil {
		return nil, err
	}

	recipient, err := s.Repos.Users.GetByID(ctx, in.RecipientID)
	if err != nil {
		return nil, notFound(err, "recipient")
	}

	var title string
	if in.ProjectID != nil {
		p, err := s.Repos.Projects.GetByID(ctx, *in.ProjectID)
		if err != nil {
			return nil, notFound(err, "project")
		}
		if p.OwnerID != sender.ID && p.OwnerID != recipient.ID {
			return nil, ErrForbidden
		}
		title = p.Title
	}

	msg, err := s.Repos.Messages.Create(ctx, &domain.Message{
		SenderID:    sender.ID,
		RecipientID: recipient.ID,
		ProjectID:   in.ProjectID,
		Body:        in.Body,
	})
	if err != nil {
		return nil, internal("failed to store message", err, "sender_id", sender.ID)
	}

	s.Metrics.RecordMessageSent()
	s.publish(ctx, events.MessageSent, map[string]any{
		"message_id": msg.ID, "sender_id": sender.ID, "recipient_id": recipient.ID, "projet_id": in.ProjectID,
	})
	if s.Notifier != nil {
		from := sender.Profile.CompanyName
		if from == "" {
			from = "un membre"
		}
		s.Notifier.Notify(MailNewMessage, []string{recipient.Email}, MailData{
			"Sender":  from,
			"Title":   title,
			"Excerpt": excerpt(msg.Body, 280),
			"URL":     s.link("messages"),
		})
	}
	slog.Debug("message sent", "message_id", msg.ID, "sender_id", msg.SenderID, "recipient_id", msg.RecipientID)
	return msg, nil
}

// Conversations lists one summary per counterpart / Liste une synthèse par interlocuteur
func (s *MessageService) Conversations(ctx context.Context, userID int64) ([]domain.Conversation, error) {
	convs, err := s.Repos.Messages.Conversations(ctx, userID)
	if err != nil {
		return nil, internal("failed to list conversations", err, "user_id", userID)
	}
	return convs, nil
}

// Thread returns the messages exchanged with otherID / Retourne le fil avec otherID
func (s *MessageService) Thread(ctx context.Context, userID, otherID int64, projectID *int64, page domain.Page) ([]*domain.Message, int, error) {
	if otherID <= 0 {
		return nil, 0, invalid("with", "is required")
	}
	msgs, total, err := s.Repos.Messages.Thread(ctx, userID, otherID, projectID, NormalizePage(page))
	if err != nil {
		return nil, 0, internal("failed to load thread", err, "user_id", userID, "with", otherID)
	}
	return msgs, total, nil
}

// MarkRead marks messages received from otherID read / Marque comme lus les messages reçus
func (s *MessageService) MarkRead(ctx context.Context, userID, otherID int64) (int64, error) {
	if otherID <= 0 {
		return 0, invalid("with", "is required")
	}
	n, err := s.Repos.Messages.MarkRead(ctx, userID, otherID, s.now())
	if err != nil {
		return 0, internal("failed to mark messages read", err, "user_id", userID)
	}
	return n, nil
}

// UnreadCount counts unread received messages / Compte les messages non lus
func (s *MessageService) UnreadCount(ctx context.Context, userID int64) (int, error) {
	n, err := s.Repos.Messages.UnreadCount(ctx, userID)
	if err != nil {
		return 0, internal("failed to count unread messages", err, "user_id", userID)
	}
	return n, nil
}
