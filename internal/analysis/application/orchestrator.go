package application

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/davicafu/hexapulse/internal/analysis/domain"
	learningDomain "github.com/davicafu/hexapulse/internal/learning/domain"
	sharedDomain "github.com/davicafu/hexapulse/internal/shared/domain"
)

// RecommendationTracker recibe la recomendación de cada ejecución exitosa.
type RecommendationTracker interface {
	TrackRecommendation(ctx context.Context, runID string, rec sharedDomain.Recommendation) learningDomain.RecommendationRecord
}

// Orchestrator ejecuta el análisis y deja la recomendación resultante en
// seguimiento para el bucle de aprendizaje.
type Orchestrator struct {
	runner  domain.Runner
	tracker RecommendationTracker
	timeout time.Duration
	log     *zap.Logger
}

var _ domain.Analyzer = (*Orchestrator)(nil)

func NewOrchestrator(runner domain.Runner, tracker RecommendationTracker, timeout time.Duration, log *zap.Logger) *Orchestrator {
	return &Orchestrator{runner: runner, tracker: tracker, timeout: timeout, log: log}
}

// RunAnalysis no reintenta: un fallo se devuelve envuelto en ErrAnalysisFailed.
func (o *Orchestrator) RunAnalysis(ctx context.Context, subjectID string, payload interface{}) (*domain.AnalysisResult, error) {
	if subjectID == "" {
		return nil, domain.ErrEmptySubject
	}

	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	o.log.Info("📊 Iniciando análisis", zap.String("subject_id", subjectID))
	started := time.Now()

	result, err := o.runner.Run(ctx, subjectID, payload)
	if err != nil {
		o.log.Error("❌ Error ejecutando análisis", zap.String("subject_id", subjectID), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", domain.ErrAnalysisFailed, err)
	}
	if result == nil || !result.Success {
		reason := "empty result"
		if result != nil {
			reason = result.Error
		}
		o.log.Error("❌ Análisis sin éxito", zap.String("subject_id", subjectID), zap.String("reason", reason))
		return result, fmt.Errorf("%w: %s", domain.ErrAnalysisFailed, reason)
	}

	if result.Recommendation != nil && o.tracker != nil {
		o.tracker.TrackRecommendation(ctx, result.RunID, *result.Recommendation)
	}

	o.log.Info("✅ Análisis completado",
		zap.String("subject_id", subjectID),
		zap.String("run_id", result.RunID),
		zap.Duration("elapsed", time.Since(started)),
	)
	return result, nil
}
