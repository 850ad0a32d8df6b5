package domain

import (
	"context"
	"errors"

	sharedDomain "github.com/davicafu/hexapulse/internal/shared/domain"
)

var (
	ErrEmptySubject   = errors.New("subject id is required")
	ErrAnalysisFailed = errors.New("analysis failed")
)

// AnalysisResult es la respuesta del motor de análisis para una ejecución.
type AnalysisResult struct {
	Success        bool                         `json:"success"`
	RunID          string                       `json:"workflowId"`
	Recommendation *sharedDomain.Recommendation `json:"recommendation,omitempty"`
	Insights       map[string]interface{}       `json:"insights,omitempty"`
	Error          string                       `json:"error,omitempty"`
}

// Runner es el motor externo que ejecuta el análisis. Se llama como mucho una
// vez por lote disparado.
type Runner interface {
	Run(ctx context.Context, subjectID string, payload interface{}) (*AnalysisResult, error)
}

// Analyzer es el punto de entrada que usan los monitores y la cola.
type Analyzer interface {
	RunAnalysis(ctx context.Context, subjectID string, payload interface{}) (*AnalysisResult, error)
}
