package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/davicafu/hexapulse/internal/analysis/domain"
	learningApp "github.com/davicafu/hexapulse/internal/learning/application"
	sharedDomain "github.com/davicafu/hexapulse/internal/shared/domain"
	"github.com/davicafu/hexapulse/tests/mocks"
)

func newLearning() *learningApp.LearningService {
	return learningApp.NewLearningService(learningApp.NewCoordinator(zap.NewNop()), nil, 0, nil, zap.NewNop())
}

func TestRunAnalysis_TracksRecommendation(t *testing.T) {
	// Arrange
	runner := new(mocks.MockRunner)
	runner.On("Run", mock.Anything, "42", mock.Anything).Return(&domain.AnalysisResult{
		Success:        true,
		RunID:          "wf-42",
		Recommendation: &sharedDomain.Recommendation{ExecutiveSummary: "Answer negative reviews"},
	}, nil).Once()

	learning := newLearning()
	orch := NewOrchestrator(runner, learning, time.Second, zap.NewNop())

	// Act
	res, err := orch.RunAnalysis(context.Background(), "42", map[string]interface{}{"reviews": 1})

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "wf-42", res.RunID)
	recs := learning.Recommendations(10)
	require.Len(t, recs, 1)
	assert.Equal(t, "Answer negative reviews", recs[0].Recommendation.ExecutiveSummary)
	runner.AssertExpectations(t)
}

func TestRunAnalysis_RunnerError(t *testing.T) {
	runner := new(mocks.MockRunner)
	runner.On("Run", mock.Anything, "42", mock.Anything).Return((*domain.AnalysisResult)(nil), errors.New("engine unreachable")).Once()
	learning := newLearning()
	orch := NewOrchestrator(runner, learning, time.Second, zap.NewNop())

	res, err := orch.RunAnalysis(context.Background(), "42", nil)

	assert.Nil(t, res)
	assert.ErrorIs(t, err, domain.ErrAnalysisFailed)
	assert.Empty(t, learning.Recommendations(10))
}

func TestRunAnalysis_UnsuccessfulResultIsNotTracked(t *testing.T) {
	runner := new(mocks.MockRunner)
	runner.On("Run", mock.Anything, "42", mock.Anything).Return(&domain.AnalysisResult{Success: false, RunID: "wf-1", Error: "timeout"}, nil).Once()
	learning := newLearning()
	orch := NewOrchestrator(runner, learning, time.Second, zap.NewNop())

	res, err := orch.RunAnalysis(context.Background(), "42", nil)

	assert.ErrorIs(t, err, domain.ErrAnalysisFailed)
	require.NotNil(t, res)
	assert.Equal(t, "timeout", res.Error)
	assert.Empty(t, learning.Recommendations(10))
}

func TestRunAnalysis_EmptySubject(t *testing.T) {
	runner := new(mocks.MockRunner)
	orch := NewOrchestrator(runner, nil, 0, zap.NewNop())

	_, err := orch.RunAnalysis(context.Background(), "", nil)

	assert.ErrorIs(t, err, domain.ErrEmptySubject)
	runner.AssertNotCalled(t, "Run", mock.Anything, mock.Anything, mock.Anything)
}
