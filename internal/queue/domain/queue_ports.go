package domain

import "context"

// Handler procesa un tipo de evento. Un error marca el evento como failed.
type Handler interface {
	Handle(ctx context.Context, evt QueuedEvent) error
}

// HandlerFunc adapta una función a Handler.
type HandlerFunc func(ctx context.Context, evt QueuedEvent) error

func (f HandlerFunc) Handle(ctx context.Context, evt QueuedEvent) error {
	return f(ctx, evt)
}

// Enqueuer es lo que necesitan los adapters de entrada (HTTP, Kafka).
type Enqueuer interface {
	Enqueue(eventType EventType, payload map[string]interface{}) (string, error)
}
