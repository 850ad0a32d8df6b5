package bus

import "context"

// Keyer lo implementan los eventos que necesitan una clave de partición estable.
type Keyer interface {
	PartitionKey() string
}

// Typed lo implementan los eventos que saben su propio nombre (cabecera X-Event-Type, etc.).
type Typed interface {
	EventName() string
}

// EventBus publica un evento ya tipado. Topic, nombre y formato del payload
// los decide cada adapter.
type EventBus interface {
	Publish(ctx context.Context, event interface{}) error
}
