package domain

import (
	"fmt"
	"time"
)

const (
	// ChangeDetected es el tipo de evento de outbox para los sobres de cambio.
	ChangeDetected = "change.detected"

	ChangeTopic = "change-events"
)

// ChangeEnvelope es el sobre normalizado que se entrega hacia fuera
// (webhook, Kafka) por cada mutación detectada en una colección.
type ChangeEnvelope struct {
	Event     string           `json:"event"` // ej. "mongodb.reviews.insert"
	Timestamp time.Time        `json:"timestamp"`
	Data      EnvelopeData     `json:"data"`
	Metadata  EnvelopeMetadata `json:"metadata"`
}

type EnvelopeData struct {
	Type       Category               `json:"type"`
	Collection string                 `json:"collection"`
	Operation  string                 `json:"operation"`
	DocumentID string                 `json:"documentId"`
	SubjectID  string                 `json:"subjectId"`
	Document   map[string]interface{} `json:"document"`
}

type EnvelopeMetadata struct {
	Source     string `json:"source"`
	Database   string `json:"database"`
	Collection string `json:"collection"`
}

// EnvelopeEventName compone el nombre de evento "<source>.<tipo>.<operación>".
func EnvelopeEventName(source string, category Category, operation string) string {
	return fmt.Sprintf("%s.%s.%s", source, category, operation)
}

// PartitionKey mantiene juntos los cambios del mismo documento en el broker.
func (e *ChangeEnvelope) PartitionKey() string {
	return e.Data.Collection + "-" + e.Data.DocumentID
}

// EventName devuelve el nombre compuesto del evento (cabecera X-Event-Type).
func (e *ChangeEnvelope) EventName() string {
	return e.Event
}
