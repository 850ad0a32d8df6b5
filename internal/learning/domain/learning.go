package domain

import (
	"time"

	sharedDomain "github.com/davicafu/hexapulse/internal/shared/domain"
)

const (
	StrategyReinforce = "reinforce"
	StrategyModify    = "modify"

	DefaultFailureReason = "Metric did not improve"
	PatternImplication   = "Requires further analysis"

	SuccessBoost   = 0.05
	FailurePenalty = -0.03

	// RecentWindow es el número de resultados que entran en la tasa reciente.
	RecentWindow = 10
	// MinTrendOutcomes por debajo de este número no se calcula tendencia.
	MinTrendOutcomes = 5
	// HighConfidenceOutcomes a partir de aquí la tendencia es de confianza alta.
	HighConfidenceOutcomes = 10

	NotApplicable = "N/A"
)

// Outcome es lo observado después de aplicar una recomendación.
type Outcome struct {
	MetricImproved    bool    `json:"metricImproved"`
	Metric            string  `json:"metric,omitempty"`
	PreviousValue     float64 `json:"previousValue,omitempty"`
	CurrentValue      float64 `json:"currentValue,omitempty"`
	TimeToImpact      string  `json:"timeToImpact,omitempty"`
	FailureReason     string  `json:"failureReason,omitempty"`
	UnexpectedResults string  `json:"unexpectedResults,omitempty"`
}

// RecommendationRecord se crea cuando termina con éxito una ejecución de análisis.
type RecommendationRecord struct {
	RunID          string                      `json:"workflowId"`
	Recommendation sharedDomain.Recommendation `json:"recommendation"`
	TrackedAt      time.Time                   `json:"timestamp"`
	Implemented    bool                        `json:"implemented"`
}

// OutcomeRecord cierra un RecommendationRecord.
type OutcomeRecord struct {
	RecommendationRecord
	Outcome     Outcome   `json:"outcome"`
	Success     bool      `json:"success"`
	CompletedAt time.Time `json:"completedAt"`
}

type StrategyAdjustment struct {
	Type     string `json:"type"`
	Strategy string `json:"strategy"`
	Reason   string `json:"reason,omitempty"`
}

type Pattern struct {
	Observation string `json:"observation"`
	Implication string `json:"implication"`
}

type Adjustments struct {
	ConfidenceAdjustment float64              `json:"confidenceAdjustment"`
	StrategyAdjustments  []StrategyAdjustment `json:"strategyAdjustments"`
	NewPatterns          []Pattern            `json:"newPatterns"`
}

// HistoryEntry es una entrada del log de aprendizaje; nunca se modifica.
type HistoryEntry struct {
	RunID                 string      `json:"workflowId"`
	RecommendationSummary string      `json:"recommendationSummary"`
	Outcome               Outcome     `json:"outcome"`
	Success               bool        `json:"success"`
	Adjustments           Adjustments `json:"adjustments"`
	Timestamp             time.Time   `json:"timestamp"`
}

type TrendStatus string

const (
	TrendOK                 TrendStatus = "ok"
	TrendInsufficientData   TrendStatus = "insufficient_data"
	TrendInsufficientSignal TrendStatus = "insufficient_signal"
)

type Trend struct {
	Status     TrendStatus `json:"status"`
	Direction  string      `json:"direction,omitempty"`
	Change     string      `json:"change,omitempty"`
	Confidence string      `json:"confidence,omitempty"`
}

// Metrics es la foto agregada del historial de resultados.
type Metrics struct {
	TotalOutcomes       int    `json:"totalRecommendations"`
	SuccessRate         string `json:"successRate"`
	RecentSuccessRate   string `json:"recentSuccessRate"`
	Trend               Trend  `json:"improvementTrend"`
	LearningHistorySize int    `json:"learningIterations"`
}

// DailyTrend es una fila del histórico agregado por día (analítica).
type DailyTrend struct {
	Day         time.Time `json:"day"`
	Outcomes    uint64    `json:"outcomes"`
	Successes   uint64    `json:"successes"`
	SuccessRate float64   `json:"successRate"`
}
