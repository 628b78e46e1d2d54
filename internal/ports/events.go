package ports

import "context"

// EventPublisher broadcasts domain events / Diffuse les événements métier
type EventPublisher interface {
	Publish(ctx context.Context, subject string, payload any) error
	Close() error
}
