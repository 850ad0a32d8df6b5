package events

// Contratos de integración para disparar trabajo desde fuera (Kafka, HTTP).
// Se definen planos, sin dependencias del dominio.

const (
	AnalysisRequested = "analysis.requested"
	OutcomeReported   = "outcome.reported"
)

type AnalysisRequestedData struct {
	SubjectID string                 `json:"subject_id"`
	Context   map[string]interface{} `json:"data,omitempty"`
}

type OutcomeReportedData struct {
	RunID             string  `json:"workflowId"`
	MetricImproved    bool    `json:"metricImproved"`
	Metric            string  `json:"metric,omitempty"`
	PreviousValue     float64 `json:"previousValue,omitempty"`
	CurrentValue      float64 `json:"currentValue,omitempty"`
	TimeToImpact      string  `json:"timeToImpact,omitempty"`
	FailureReason     string  `json:"failureReason,omitempty"`
	UnexpectedResults string  `json:"unexpectedResults,omitempty"`
}
