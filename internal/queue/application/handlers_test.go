package application

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	analysisDomain "github.com/davicafu/hexapulse/internal/analysis/domain"
	learningApp "github.com/davicafu/hexapulse/internal/learning/application"
	learningDomain "github.com/davicafu/hexapulse/internal/learning/domain"
	"github.com/davicafu/hexapulse/internal/queue/domain"
	sharedDomain "github.com/davicafu/hexapulse/internal/shared/domain"
	"github.com/davicafu/hexapulse/tests/mocks"
)

func ok() (*analysisDomain.AnalysisResult, error) {
	return &analysisDomain.AnalysisResult{Success: true, RunID: "wf-1"}, nil
}

func TestAnalysisRequestHandler(t *testing.T) {
	analyzer := new(mocks.MockAnalyzer)
	res, _ := ok()
	analyzer.On("RunAnalysis", mock.Anything, "acme", map[string]interface{}{"k": "v"}).Return(res, nil).Once()

	err := AnalysisRequestHandler(analyzer).Handle(context.Background(), domain.QueuedEvent{
		Payload: map[string]interface{}{"startup_id": "acme", "data": map[string]interface{}{"k": "v"}},
	})

	assert.NoError(t, err)
	analyzer.AssertExpectations(t)
}

func TestAnalysisRequestHandler_MissingSubject(t *testing.T) {
	analyzer := new(mocks.MockAnalyzer)

	err := AnalysisRequestHandler(analyzer).Handle(context.Background(), domain.QueuedEvent{Payload: map[string]interface{}{}})

	assert.ErrorIs(t, err, analysisDomain.ErrEmptySubject)
	analyzer.AssertNotCalled(t, "RunAnalysis", mock.Anything, mock.Anything, mock.Anything)
}

func TestWebhookHandler(t *testing.T) {
	t.Run("triggers analysis when asked", func(t *testing.T) {
		analyzer := new(mocks.MockAnalyzer)
		res, _ := ok()
		analyzer.On("RunAnalysis", mock.Anything, "acme", mock.Anything).Return(res, nil).Once()

		err := WebhookHandler(analyzer, zap.NewNop()).Handle(context.Background(), domain.QueuedEvent{
			Payload: map[string]interface{}{
				"source": "brightdata",
				"data":   map[string]interface{}{"startup_id": "acme", "trigger_analysis": true},
			},
		})

		assert.NoError(t, err)
		analyzer.AssertExpectations(t)
	})

	t.Run("only acknowledges otherwise", func(t *testing.T) {
		analyzer := new(mocks.MockAnalyzer)

		err := WebhookHandler(analyzer, zap.NewNop()).Handle(context.Background(), domain.QueuedEvent{
			Payload: map[string]interface{}{
				"source": "mixpanel",
				"data":   map[string]interface{}{"startup_id": "acme"},
			},
		})

		assert.NoError(t, err)
		analyzer.AssertNotCalled(t, "RunAnalysis", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestOutcomeUpdateHandler(t *testing.T) {
	learning := learningApp.NewLearningService(learningApp.NewCoordinator(zap.NewNop()), nil, time.Minute, nil, zap.NewNop())
	learning.TrackRecommendation(context.Background(), "wf-1", sharedDomain.Recommendation{ExecutiveSummary: "x"})
	handler := OutcomeUpdateHandler(learning, zap.NewNop())

	t.Run("known run", func(t *testing.T) {
		err := handler.Handle(context.Background(), domain.QueuedEvent{Payload: map[string]interface{}{
			"workflowId": "wf-1",
			"outcome":    map[string]interface{}{"metricImproved": true},
		}})

		require.NoError(t, err)
		m := learning.GetMetrics(context.Background())
		assert.Equal(t, 1, m.TotalOutcomes)
	})

	t.Run("unknown run is a warning, not a failure", func(t *testing.T) {
		err := handler.Handle(context.Background(), domain.QueuedEvent{Payload: map[string]interface{}{
			"workflowId": "ghost",
			"outcome":    map[string]interface{}{"metricImproved": true},
		}})

		assert.NoError(t, err)
		assert.Equal(t, 1, learning.GetMetrics(context.Background()).TotalOutcomes)
	})

	t.Run("missing run id", func(t *testing.T) {
		err := handler.Handle(context.Background(), domain.QueuedEvent{Payload: map[string]interface{}{}})

		assert.Error(t, err)
	})
}

func TestSubjectFromPayload(t *testing.T) {
	assert.Equal(t, "a", SubjectFromPayload(map[string]interface{}{"subject_id": "a", "startup_id": "b"}))
	assert.Equal(t, "b", SubjectFromPayload(map[string]interface{}{"startup_id": "b"}))
	assert.Equal(t, "42", SubjectFromPayload(map[string]interface{}{"startup_id": float64(42)}))
	assert.Equal(t, "", SubjectFromPayload(nil))
}

var _ OutcomeRecorder = (*learningApp.LearningService)(nil)
var _ learningDomain.HistorySink = (*mocks.MockHistoryAnalytics)(nil)
