package application

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	analysisDomain "github.com/davicafu/hexapulse/internal/analysis/domain"
	learningDomain "github.com/davicafu/hexapulse/internal/learning/domain"
	"github.com/davicafu/hexapulse/internal/queue/domain"
	"github.com/davicafu/hexapulse/internal/shared/infra/utils"
)

// OutcomeRecorder es la parte del servicio de aprendizaje que usa la cola.
type OutcomeRecorder interface {
	RecordOutcome(ctx context.Context, runID string, outcome learningDomain.Outcome) (*learningDomain.OutcomeRecord, error)
}

// Claves de payload aceptadas.
const (
	keySubjectID       = "subject_id"
	keyStartupID       = "startup_id"
	keyData            = "data"
	keySource          = "source"
	keyTriggerAnalysis = "trigger_analysis"
	keyRunID           = "workflowId"
	keyOutcome         = "outcome"
)

// RegisterDefaultHandlers conecta los tres tipos de evento conocidos.
func RegisterDefaultHandlers(q *EventQueue, analyzer analysisDomain.Analyzer, outcomes OutcomeRecorder, log *zap.Logger) {
	q.Register(domain.EventAnalysisRequest, AnalysisRequestHandler(analyzer))
	q.Register(domain.EventWebhook, WebhookHandler(analyzer, log))
	q.Register(domain.EventOutcomeUpdate, OutcomeUpdateHandler(outcomes, log))
}

// AnalysisRequestHandler lanza un análisis con {subject_id|startup_id, data}.
func AnalysisRequestHandler(analyzer analysisDomain.Analyzer) domain.Handler {
	return domain.HandlerFunc(func(ctx context.Context, evt domain.QueuedEvent) error {
		subjectID := SubjectFromPayload(evt.Payload)
		if subjectID == "" {
			return analysisDomain.ErrEmptySubject
		}
		_, err := analyzer.RunAnalysis(ctx, subjectID, evt.Payload[keyData])
		return err
	})
}

// WebhookHandler registra la entrada y, si el cuerpo trae un sujeto y
// trigger_analysis=true, dispara un análisis.
func WebhookHandler(analyzer analysisDomain.Analyzer, log *zap.Logger) domain.Handler {
	return domain.HandlerFunc(func(ctx context.Context, evt domain.QueuedEvent) error {
		source, _ := evt.Payload[keySource].(string)
		body, _ := evt.Payload[keyData].(map[string]interface{})

		log.Info("🔔 Procesando webhook", zap.String("source", source), zap.String("event_id", evt.ID))

		subjectID := SubjectFromPayload(body)
		trigger, _ := body[keyTriggerAnalysis].(bool)
		if subjectID == "" || !trigger {
			return nil
		}
		_, err := analyzer.RunAnalysis(ctx, subjectID, body)
		return err
	})
}

// OutcomeUpdateHandler registra {workflowId, outcome}. Un runID desconocido se
// avisa en el log pero no hace fallar el evento.
func OutcomeUpdateHandler(outcomes OutcomeRecorder, log *zap.Logger) domain.Handler {
	return domain.HandlerFunc(func(ctx context.Context, evt domain.QueuedEvent) error {
		runID, _ := evt.Payload[keyRunID].(string)
		if runID == "" {
			return fmt.Errorf("outcome_update requires %s", keyRunID)
		}

		var outcome learningDomain.Outcome
		if err := utils.Remarshal(evt.Payload[keyOutcome], &outcome); err != nil {
			return fmt.Errorf("invalid outcome: %w", err)
		}

		if _, err := outcomes.RecordOutcome(ctx, runID, outcome); err != nil {
			if errors.Is(err, learningDomain.ErrRecommendationNotFound) {
				log.Warn("Outcome para una ejecución sin recomendación", zap.String("run_id", runID))
				return nil
			}
			return err
		}
		return nil
	})
}

// SubjectFromPayload acepta subject_id o, por compatibilidad, startup_id.
func SubjectFromPayload(payload map[string]interface{}) string {
	for _, key := range []string{keySubjectID, keyStartupID} {
		if v, ok := payload[key]; ok && v != nil {
			if s := fmt.Sprint(v); s != "" {
				return s
			}
		}
	}
	return ""
}
