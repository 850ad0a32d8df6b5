// Package demo simula el motor de análisis cuando no hay uno real desplegado.
package demo

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/davicafu/hexapulse/internal/analysis/domain"
	sharedDomain "github.com/davicafu/hexapulse/internal/shared/domain"
	"github.com/davicafu/hexapulse/internal/shared/infra/utils"
)

// Runner genera una recomendación a partir de qué tipos de datos trae el payload.
type Runner struct {
	log *zap.Logger
}

var _ domain.Runner = (*Runner)(nil)

func NewRunner(log *zap.Logger) *Runner {
	return &Runner{log: log}
}

func (r *Runner) Run(ctx context.Context, subjectID string, payload interface{}) (*domain.AnalysisResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	counts := map[string]int{}
	if m, err := utils.ToMap(payload); err == nil {
		counts = countByType(m)
	}

	types := make([]string, 0, len(counts))
	total := 0
	for t, n := range counts {
		types = append(types, t)
		total += n
	}
	// Primero el tipo con más documentos; empate por nombre.
	sort.Slice(types, func(i, j int) bool {
		if counts[types[i]] == counts[types[j]] {
			return types[i] < types[j]
		}
		return counts[types[i]] > counts[types[j]]
	})

	focus := string(sharedDomain.CategoryGeneral)
	if len(types) > 0 {
		focus = types[0]
	}

	confidence := 0.6 + 0.05*float64(len(types))
	if confidence > 0.9 {
		confidence = 0.9
	}

	runID := "demo-" + uuid.NewString()
	r.log.Info("🎭 Análisis simulado", zap.String("run_id", runID), zap.String("subject_id", subjectID), zap.Strings("types", types))

	return &domain.AnalysisResult{
		Success: true,
		RunID:   runID,
		Recommendation: &sharedDomain.Recommendation{
			ExecutiveSummary: fmt.Sprintf("Prioritise %s signals for %s", focus, subjectID),
			ConfidenceLevel:  confidence,
			Actions: []string{
				fmt.Sprintf("Review the %d new %s records", counts[focus], focus),
				"Schedule a follow-up measurement in 7 days",
			},
		},
		Insights: map[string]interface{}{
			"subjectId":     subjectID,
			"dataTypes":     types,
			"documentCount": total,
			"mode":          "demo",
		},
	}, nil
}

// countByType entiende los dos formatos de lote: "aggregated" (ficheros) y
// "changes" (colecciones).
func countByType(m map[string]interface{}) map[string]int {
	counts := map[string]int{}

	if agg, ok := m["aggregated"].(map[string]interface{}); ok {
		for t, docs := range agg {
			if list, ok := docs.([]interface{}); ok {
				counts[t] += len(list)
			}
		}
	}

	if changes, ok := m["changes"].(map[string]interface{}); ok {
		for t, raw := range changes {
			switch group := raw.(type) {
			case []interface{}:
				counts[t] += len(group)
			case map[string]interface{}:
				if n, ok := group["count"].(float64); ok {
					counts[t] += int(n)
				}
			}
		}
	}
	return counts
}
