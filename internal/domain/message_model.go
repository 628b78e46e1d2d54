package domain

import "time"

// MaxMessageLength bounds a message body / Longueur maximale d'un message
const MaxMessageLength = 5000

// Message is a private note between two users / Message privé entre deux utilisateurs
type Message struct {
	ID          int64
	SenderID    int64
	RecipientID int64
	ProjectID   *int64
	Body        string
	ReadAt      *time.Time
	CreatedAt   time.Time
}

// IsRead reports whether the recipient opened the message / Indique si le message a été lu
func (m *Message) IsRead() bool {
	return m.ReadAt != nil
}

// Conversation summarizes the thread with one counterpart / Résumé d'une conversation
type Conversation struct {
	CounterpartID      int64
	CounterpartCompany string
	LastMessage        Message
	UnreadCount        int
}
