package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	analysisDomain "github.com/davicafu/hexapulse/internal/analysis/domain"
)

// MockRunner simula el motor de análisis externo.
type MockRunner struct {
	mock.Mock
}

func (m *MockRunner) Run(ctx context.Context, subjectID string, payload interface{}) (*analysisDomain.AnalysisResult, error) {
	args := m.Called(ctx, subjectID, payload)
	return args.Get(0).(*analysisDomain.AnalysisResult), args.Error(1)
}

// MockAnalyzer simula el orquestador que usan monitores y cola.
type MockAnalyzer struct {
	mock.Mock
}

func (m *MockAnalyzer) RunAnalysis(ctx context.Context, subjectID string, payload interface{}) (*analysisDomain.AnalysisResult, error) {
	args := m.Called(ctx, subjectID, payload)
	return args.Get(0).(*analysisDomain.AnalysisResult), args.Error(1)
}
