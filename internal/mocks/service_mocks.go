package mocks

import (
	"context"
	"errors"
	"sync"

	"github.com/BakiChantier/chantier-direct-sub000/internal/ports"
)

// Common mock errors
var (
	ErrMockSendFailure    = errors.New("smtp unavailable")
	ErrMockPublishFailure = errors.New("broker unavailable")
)

// MockEmailSender records outgoing emails. Safe for concurrent use since
// the notifier sends from goroutines.
type MockEmailSender struct {
	mu sync.Mutex

	// Mock behavior
	SendFunc func(ctx context.Context, msg ports.Email) error

	// Call tracking
	Sent []ports.Email
}

func NewMockEmailSender() *MockEmailSender {
	return &MockEmailSender{}
}

func (m *MockEmailSender) Send(ctx context.Context, msg ports.Email) error {
	m.mu.Lock()
	m.Sent = append(m.Sent, msg)
	fn := m.SendFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, msg)
	}
	return nil // Default: success
}

// Messages returns a copy of the recorded emails
func (m *MockEmailSender) Messages() []ports.Email {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ports.Email(nil), m.Sent...)
}

// SendCalls returns the number of Send calls
func (m *MockEmailSender) SendCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Sent)
}

// Last returns the most recent email, zero value when none
func (m *MockEmailSender) Last() ports.Email {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Sent) == 0 {
		return ports.Email{}
	}
	return m.Sent[len(m.Sent)-1]
}

// SentTo returns emails addressed to addr
func (m *MockEmailSender) SentTo(addr string) []ports.Email {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []ports.Email
	for _, msg := range m.Sent {
		for _, to := range msg.To {
			if to == addr {
				out = append(out, msg)
				break
			}
		}
	}
	return out
}

// Event is one published event
type Event struct {
	Subject string
	Payload any
}

var _ ports.EventPublisher = (*EventRecorder)(nil)

// EventRecorder is an in-memory ports.EventPublisher
type EventRecorder struct {
	mu     sync.Mutex
	Events []Event
	Err    error // Returned by Publish when set
	Closed bool
}

func NewEventRecorder() *EventRecorder {
	return &EventRecorder{}
}

func (r *EventRecorder) Publish(ctx context.Context, subject string, payload any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.Events = append(r.Events, Event{Subject: subject, Payload: payload})
	return nil
}

func (r *EventRecorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Closed = true
	return nil
}

// Subjects returns published subjects in order
func (r *EventRecorder) Subjects() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.Events))
	for _, e := range r.Events {
		out = append(out, e.Subject)
	}
	return out
}

// Count returns how many events were published on subject
func (r *EventRecorder) Count(subject string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.Events {
		if e.Subject == subject {
			n++
		}
	}
	return n
}
