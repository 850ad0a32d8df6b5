package application

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/davicafu/hexapulse/internal/learning/domain"
	sharedDomain "github.com/davicafu/hexapulse/internal/shared/domain"
)

// Coordinator correlaciona recomendaciones con sus resultados y mantiene el
// historial de aprendizaje del proceso. Un runID está sin seguimiento,
// seguido (hay recomendación) o cerrado (hay resultado).
type Coordinator struct {
	mu              sync.RWMutex
	recommendations map[string]domain.RecommendationRecord
	outcomes        map[string]domain.OutcomeRecord
	outcomeOrder    []string
	history         []domain.HistoryEntry

	now func() time.Time
	log *zap.Logger
}

func NewCoordinator(log *zap.Logger) *Coordinator {
	return NewCoordinatorWithClock(time.Now, log)
}

// NewCoordinatorWithClock permite fijar el reloj (tests, replays).
func NewCoordinatorWithClock(now func() time.Time, log *zap.Logger) *Coordinator {
	return &Coordinator{
		recommendations: make(map[string]domain.RecommendationRecord),
		outcomes:        make(map[string]domain.OutcomeRecord),
		now:             now,
		log:             log,
	}
}

// TrackRecommendation registra la recomendación de una ejecución. Un runID
// repetido sobrescribe el registro anterior.
func (c *Coordinator) TrackRecommendation(runID string, rec sharedDomain.Recommendation) domain.RecommendationRecord {
	record := domain.RecommendationRecord{
		RunID:          runID,
		Recommendation: rec,
		TrackedAt:      c.now(),
	}

	c.mu.Lock()
	c.recommendations[runID] = record
	c.mu.Unlock()

	c.log.Info("📌 Recomendación registrada", zap.String("run_id", runID))
	return record
}

// RecordOutcome cierra la ejecución runID. Devuelve nil, sin efectos, si el
// runID nunca se registró.
func (c *Coordinator) RecordOutcome(runID string, outcome domain.Outcome) *domain.OutcomeRecord {
	record, _ := c.recordOutcome(runID, outcome)
	return record
}

func (c *Coordinator) recordOutcome(runID string, outcome domain.Outcome) (*domain.OutcomeRecord, *domain.HistoryEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	rec, ok := c.recommendations[runID]
	if !ok {
		c.log.Warn("No recommendation found for run", zap.String("run_id", runID))
		return nil, nil
	}

	now := c.now()
	record := domain.OutcomeRecord{
		RecommendationRecord: rec,
		Outcome:              outcome,
		Success:              outcome.MetricImproved,
		CompletedAt:          now,
	}
	if _, seen := c.outcomes[runID]; !seen {
		c.outcomeOrder = append(c.outcomeOrder, runID)
	}
	c.outcomes[runID] = record

	entry := domain.HistoryEntry{
		RunID:                 runID,
		RecommendationSummary: rec.Recommendation.ExecutiveSummary,
		Outcome:               outcome,
		Success:               record.Success,
		Adjustments:           CalculateAdjustments(rec.Recommendation, outcome),
		Timestamp:             now,
	}
	c.history = append(c.history, entry)

	c.log.Info("🧠 Resultado registrado",
		zap.String("run_id", runID),
		zap.Bool("success", record.Success),
		zap.Float64("confidence_adjustment", entry.Adjustments.ConfidenceAdjustment),
	)
	return &record, &entry
}

// CalculateAdjustments deriva el ajuste de confianza y las notas de estrategia.
func CalculateAdjustments(rec sharedDomain.Recommendation, outcome domain.Outcome) domain.Adjustments {
	adj := domain.Adjustments{
		StrategyAdjustments: []domain.StrategyAdjustment{},
		NewPatterns:         []domain.Pattern{},
	}

	if outcome.MetricImproved {
		adj.ConfidenceAdjustment = domain.SuccessBoost
		adj.StrategyAdjustments = append(adj.StrategyAdjustments, domain.StrategyAdjustment{
			Type:     domain.StrategyReinforce,
			Strategy: rec.ExecutiveSummary,
		})
	} else {
		reason := outcome.FailureReason
		if reason == "" {
			reason = domain.DefaultFailureReason
		}
		adj.ConfidenceAdjustment = domain.FailurePenalty
		adj.StrategyAdjustments = append(adj.StrategyAdjustments, domain.StrategyAdjustment{
			Type:     domain.StrategyModify,
			Strategy: rec.ExecutiveSummary,
			Reason:   reason,
		})
	}

	if outcome.UnexpectedResults != "" {
		adj.NewPatterns = append(adj.NewPatterns, domain.Pattern{
			Observation: outcome.UnexpectedResults,
			Implication: domain.PatternImplication,
		})
	}
	return adj
}

// Metrics calcula la foto actual sobre todo el historial.
func (c *Coordinator) Metrics() domain.Metrics {
	c.mu.RLock()
	outcomes := c.orderedOutcomesLocked()
	historySize := len(c.history)
	c.mu.RUnlock()

	metrics := domain.Metrics{
		TotalOutcomes:       len(outcomes),
		SuccessRate:         formatRate(countSuccess(outcomes), len(outcomes)),
		Trend:               ComputeTrend(outcomes),
		LearningHistorySize: historySize,
	}

	// Los más recientes primero.
	recent := make([]domain.OutcomeRecord, len(outcomes))
	copy(recent, outcomes)
	sort.SliceStable(recent, func(i, j int) bool {
		return recent[i].CompletedAt.After(recent[j].CompletedAt)
	})
	if len(recent) > domain.RecentWindow {
		recent = recent[:domain.RecentWindow]
	}
	metrics.RecentSuccessRate = formatRate(countSuccess(recent), len(recent))

	return metrics
}

// ComputeTrend compara la tasa de éxito de la primera y la segunda mitad del
// historial ordenado por fecha de cierre. Con una primera mitad sin ningún
// éxito el cambio relativo no está definido y se informa insufficient_signal.
func ComputeTrend(outcomes []domain.OutcomeRecord) domain.Trend {
	n := len(outcomes)
	if n < domain.MinTrendOutcomes {
		return domain.Trend{Status: domain.TrendInsufficientData}
	}

	sorted := make([]domain.OutcomeRecord, n)
	copy(sorted, outcomes)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CompletedAt.Before(sorted[j].CompletedAt)
	})

	mid := n / 2 // la segunda mitad se lleva el elemento extra
	first := float64(countSuccess(sorted[:mid])) / float64(mid)
	second := float64(countSuccess(sorted[mid:])) / float64(n-mid)

	trend := domain.Trend{
		Status:     domain.TrendOK,
		Direction:  "declining",
		Confidence: "medium",
	}
	if second > first {
		trend.Direction = "improving"
	}
	if n >= domain.HighConfidenceOutcomes {
		trend.Confidence = "high"
	}

	if first == 0 {
		trend.Status = domain.TrendInsufficientSignal
		trend.Change = domain.NotApplicable
		return trend
	}
	trend.Change = fmt.Sprintf("%.1f%%", (second-first)/first*100)
	return trend
}

// Recommendations devuelve como mucho limit registros, los más recientes al final.
func (c *Coordinator) Recommendations(limit int) []domain.RecommendationRecord {
	c.mu.RLock()
	out := make([]domain.RecommendationRecord, 0, len(c.recommendations))
	for _, rec := range c.recommendations {
		out = append(out, rec)
	}
	c.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].TrackedAt.Equal(out[j].TrackedAt) {
			return out[i].RunID < out[j].RunID
		}
		return out[i].TrackedAt.Before(out[j].TrackedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}

// History devuelve una copia del log de aprendizaje.
func (c *Coordinator) History() []domain.HistoryEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]domain.HistoryEntry(nil), c.history...)
}

// HistorySize es barato: sirve como generación para cachear Metrics.
func (c *Coordinator) HistorySize() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.history)
}

func (c *Coordinator) orderedOutcomesLocked() []domain.OutcomeRecord {
	out := make([]domain.OutcomeRecord, 0, len(c.outcomeOrder))
	for _, id := range c.outcomeOrder {
		out = append(out, c.outcomes[id])
	}
	return out
}

func countSuccess(outcomes []domain.OutcomeRecord) int {
	n := 0
	for _, o := range outcomes {
		if o.Success {
			n++
		}
	}
	return n
}

func formatRate(success, total int) string {
	if total == 0 {
		return domain.NotApplicable
	}
	return fmt.Sprintf("%.1f%%", float64(success)/float64(total)*100)
}
