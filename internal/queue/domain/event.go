package domain

import (
	"errors"
	"time"
)

// ---------- Errores de dominio ----------
var (
	ErrUnknownEventType = errors.New("unknown event type")
	ErrEventNotFound    = errors.New("event not found")
	ErrQueueStopped     = errors.New("event queue stopped")
)

type EventType string

const (
	EventAnalysisRequest EventType = "analysis_request"
	EventWebhook         EventType = "webhook"
	EventOutcomeUpdate   EventType = "outcome_update"
)

type EventStatus string

const (
	StatusPending    EventStatus = "pending"
	StatusProcessing EventStatus = "processing"
	StatusCompleted  EventStatus = "completed"
	StatusFailed     EventStatus = "failed"
)

// QueuedEvent vive en la cola mientras dure el proceso; no se borra nunca
// para poder consultar su estado.
type QueuedEvent struct {
	ID          string                 `json:"id"`
	Type        EventType              `json:"type"`
	Payload     map[string]interface{} `json:"data"`
	Status      EventStatus            `json:"status"`
	EnqueuedAt  time.Time              `json:"timestamp"`
	StartedAt   *time.Time             `json:"startedAt,omitempty"`
	CompletedAt *time.Time             `json:"completedAt,omitempty"`
	FailedAt    *time.Time             `json:"failedAt,omitempty"`
	Error       string                 `json:"error,omitempty"`
}

type NotificationKind string

const (
	NotifyQueued     NotificationKind = "event:queued"
	NotifyProcessing NotificationKind = "event:processing"
	NotifyCompleted  NotificationKind = "event:completed"
	NotifyFailed     NotificationKind = "event:failed"
	NotifyQueueEmpty NotificationKind = "queue:empty"
)

// Notification es una copia del evento en el momento de la transición.
// Event es nil en queue:empty.
type Notification struct {
	Kind  NotificationKind `json:"kind"`
	Event *QueuedEvent     `json:"event,omitempty"`
}

// Status es la foto que devuelve la cola a los observadores.
type Status struct {
	QueueLength int    `json:"queueLength"`
	Processing  bool   `json:"processing"`
	Processed   int    `json:"processedCount"`
	Failed      int    `json:"failedCount"`
	Enqueued    int    `json:"enqueuedCount"`
	SuccessRate string `json:"successRate"`
}
