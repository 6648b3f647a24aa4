package core

import "context"

// EventPublisher publishes domain events to whoever listens.
// routingKey is the event type, e.g. "quiz.passed".
type EventPublisher interface {
	Publish(ctx context.Context, routingKey string, payload interface{}) error
	Close() error
}
