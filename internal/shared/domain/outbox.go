package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// OutboxEvent representa un evento pendiente de publicar en el broker.
type OutboxEvent struct {
	ID            uuid.UUID   `json:"id"`
	AggregateType string      `json:"aggregate_type"` // ej. "reviews", "metrics"
	AggregateID   string      `json:"aggregate_id"`   // colección + id del documento
	EventType     string      `json:"event_type"`     // ej. "change.detected"
	Payload       interface{} `json:"payload"`        // JSON serializable
	CreatedAt     time.Time   `json:"created_at"`
	Processed     bool        `json:"processed"` // si ya se publicó
}

// OutboxRepository es el contrato que necesita el relayer: leer pendientes y marcarlos.
type OutboxRepository interface {
	FetchPendingOutbox(ctx context.Context, limit int) ([]OutboxEvent, error)
	MarkOutboxProcessed(ctx context.Context, id uuid.UUID) error
}

// OutboxWriter es el lado productor del outbox.
type OutboxWriter interface {
	AppendOutbox(ctx context.Context, evt OutboxEvent) error
}
