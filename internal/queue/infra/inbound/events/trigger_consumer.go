package events

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/davicafu/hexapulse/internal/queue/domain"
	sharedEvents "github.com/davicafu/hexapulse/internal/shared/domain/events"
	infraEvents "github.com/davicafu/hexapulse/internal/shared/infra/events"
	sharedUtils "github.com/davicafu/hexapulse/internal/shared/infra/utils"
)

// TriggerConsumer traduce eventos de integración externos a eventos de la cola.
type TriggerConsumer struct {
	queue domain.Enqueuer
	log   *zap.Logger
}

// El ConsumerAdapter de Kafka entrega los mensajes a través de esta interfaz.
var _ infraEvents.MessageHandler = (*TriggerConsumer)(nil)

func NewTriggerConsumer(queue domain.Enqueuer, log *zap.Logger) *TriggerConsumer {
	return &TriggerConsumer{queue: queue, log: log}
}

// HandleMessage es el punto de entrada para un nuevo mensaje/evento.
func (c *TriggerConsumer) HandleMessage(ctx context.Context, key string, payload []byte) {
	var base sharedEvents.IntegrationEvent
	if err := json.Unmarshal(payload, &base); err != nil {
		c.log.Warn("Failed to unmarshal integration event", zap.String("key", key), zap.Error(err))
		return
	}

	switch base.Type {
	case sharedEvents.AnalysisRequested:
		sharedUtils.UnmarshalAndHandle[sharedEvents.AnalysisRequestedData](c.log, base.Data, func(evt sharedEvents.AnalysisRequestedData) {
			if evt.SubjectID == "" {
				c.log.Warn("analysis.requested sin subject_id", zap.String("key", key))
				return
			}
			c.enqueue(domain.EventAnalysisRequest, map[string]interface{}{
				"subject_id": evt.SubjectID,
				"data":       evt.Context,
			})
		})

	case sharedEvents.OutcomeReported:
		sharedUtils.UnmarshalAndHandle[sharedEvents.OutcomeReportedData](c.log, base.Data, func(evt sharedEvents.OutcomeReportedData) {
			if evt.RunID == "" {
				c.log.Warn("outcome.reported sin workflowId", zap.String("key", key))
				return
			}
			outcome, err := sharedUtils.ToMap(evt)
			if err != nil {
				c.log.Warn("Outcome no serializable", zap.Error(err))
				return
			}
			delete(outcome, "workflowId")
			c.enqueue(domain.EventOutcomeUpdate, map[string]interface{}{
				"workflowId": evt.RunID,
				"outcome":    outcome,
			})
		})

	default:
		c.log.Warn("Unknown trigger event type", zap.String("type", base.Type), zap.String("key", key))
	}
}

func (c *TriggerConsumer) enqueue(eventType domain.EventType, payload map[string]interface{}) {
	id, err := c.queue.Enqueue(eventType, payload)
	if err != nil {
		c.log.Warn("No se pudo encolar el evento de integración", zap.String("type", string(eventType)), zap.Error(err))
		return
	}
	c.log.Info("Evento de integración encolado", zap.String("type", string(eventType)), zap.String("event_id", id))
}
