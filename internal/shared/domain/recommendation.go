package domain

// Recommendation es la salida opaca del motor de análisis. Sólo el resumen y
// la confianza tienen significado para el pipeline; el resto viaja en Details.
type Recommendation struct {
	ExecutiveSummary string                 `json:"executiveSummary" bson:"executiveSummary"`
	ConfidenceLevel  float64                `json:"confidenceLevel" bson:"confidenceLevel"`
	Actions          []string               `json:"actions,omitempty" bson:"actions,omitempty"`
	Details          map[string]interface{} `json:"details,omitempty" bson:"details,omitempty"`
}
