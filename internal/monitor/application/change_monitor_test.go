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

	analysisDomain "github.com/davicafu/hexapulse/internal/analysis/domain"
	"github.com/davicafu/hexapulse/internal/monitor/domain"
	sharedDomain "github.com/davicafu/hexapulse/internal/shared/domain"
	"github.com/davicafu/hexapulse/tests/mocks"
)

const (
	testPoll  = 40 * time.Millisecond
	testBatch = 30 * time.Millisecond
)

type call struct {
	subjectID string
	payload   domain.ChangePayload
}

func testConfig(push bool) MonitorConfig {
	return MonitorConfig{
		Database: "coo",
		Collections: map[sharedDomain.Category]string{
			sharedDomain.CategoryReviews: "reviews",
			sharedDomain.CategoryMetrics: "metrics",
		},
		ResultsCollection: "analysis_results",
		PollInterval:      testPoll,
		BatchDelay:        testBatch,
		UseChangeStreams:  push,
	}
}

// recordingAnalyzer devuelve un analizador que publica cada llamada en el canal.
func recordingAnalyzer(result *analysisDomain.AnalysisResult, err error) (*mocks.MockAnalyzer, chan call) {
	calls := make(chan call, 10)
	analyzer := new(mocks.MockAnalyzer)
	analyzer.On("RunAnalysis", mock.Anything, mock.Anything, mock.Anything).Return(result, err).
		Run(func(args mock.Arguments) {
			calls <- call{subjectID: args.String(1), payload: args.Get(2).(domain.ChangePayload)}
		})
	return analyzer, calls
}

func waitCall(t *testing.T, calls chan call, within time.Duration) call {
	t.Helper()
	select {
	case c := <-calls:
		return c
	case <-time.After(within):
		t.Fatal("no se disparó ningún análisis")
		return call{}
	}
}

func assertNoCall(t *testing.T, calls chan call, wait time.Duration) {
	t.Helper()
	select {
	case c := <-calls:
		t.Fatalf("análisis inesperado: %+v", c)
	case <-time.After(wait):
	}
}

func startMonitor(t *testing.T, source *mocks.InMemoryChangeSource, analyzer analysisDomain.Analyzer, outbox sharedDomain.OutboxWriter, cfg MonitorConfig) *ChangeMonitor {
	t.Helper()
	m := NewChangeMonitor(source, analyzer, outbox, cfg, zap.NewNop())
	require.NoError(t, m.Start(context.Background()))
	t.Cleanup(func() { _ = m.Stop(context.Background()) })
	return m
}

func TestChangeMonitor_PushFailureFallsBackToPolling(t *testing.T) {
	// Arrange
	source := mocks.NewInMemoryChangeSource()
	source.Insert("reviews", "old", domain.Document{"rating": 3})
	source.FailWatch("reviews")
	analyzer, calls := recordingAnalyzer(&analysisDomain.AnalysisResult{Success: true, RunID: "wf-1"}, nil)

	m := startMonitor(t, source, analyzer, nil, testConfig(true))
	mark, ok := m.HighWaterMark("reviews")
	require.True(t, ok)

	// Act
	source.Insert("reviews", "new", domain.Document{"rating": 1, "startupId": "acme"})

	// Assert: detectado en un intervalo de sondeo (+ la ventana del lote)
	c := waitCall(t, calls, testPoll+testBatch+200*time.Millisecond)
	assert.Equal(t, "acme", c.subjectID)
	require.Len(t, c.payload.Changes[sharedDomain.CategoryReviews], 1)
	assert.Equal(t, "new", c.payload.Changes[sharedDomain.CategoryReviews][0].DocumentID)

	channels := m.Channels()
	assert.Equal(t, domain.PollActive, channels["reviews"])
	assert.Equal(t, domain.PushActive, channels["metrics"])

	newMark, _ := m.HighWaterMark("reviews")
	assert.True(t, newMark.After(mark))
}

func TestChangeMonitor_SameDocumentKeepsLatestChange(t *testing.T) {
	source := mocks.NewInMemoryChangeSource()
	analyzer, calls := recordingAnalyzer(&analysisDomain.AnalysisResult{Success: true, RunID: "wf-1"}, nil)
	startMonitor(t, source, analyzer, nil, testConfig(true))

	source.Insert("metrics", "m1", domain.Document{"mrr": 100})
	source.Update("metrics", "m1", domain.Document{"mrr": 150})

	c := waitCall(t, calls, time.Second)
	require.Equal(t, 1, c.payload.TotalChanges)
	only := c.payload.Changes[sharedDomain.CategoryMetrics][0]
	assert.Equal(t, domain.OpUpdate, only.Operation)
	assert.Equal(t, 150, only.Document["mrr"])
	assertNoCall(t, calls, 3*testBatch)
}

func TestChangeMonitor_RuntimeStreamErrorFallsBack(t *testing.T) {
	source := mocks.NewInMemoryChangeSource()
	analyzer, calls := recordingAnalyzer(&analysisDomain.AnalysisResult{Success: true, RunID: "wf-1"}, nil)
	m := startMonitor(t, source, analyzer, nil, testConfig(true))
	require.Equal(t, domain.PushActive, m.Channels()["reviews"])

	source.BreakStreams("reviews", mocks.ErrStreamBroken)
	require.Eventually(t, func() bool {
		return m.Channels()["reviews"] == domain.PollActive
	}, time.Second, 5*time.Millisecond)

	source.Insert("reviews", "r1", domain.Document{"rating": 4})

	c := waitCall(t, calls, time.Second)
	assert.Len(t, c.payload.Changes[sharedDomain.CategoryReviews], 1)
}

func TestChangeMonitor_FallbackDoesNotRedetectPushedChanges(t *testing.T) {
	source := mocks.NewInMemoryChangeSource()
	analyzer, calls := recordingAnalyzer(&analysisDomain.AnalysisResult{Success: true, RunID: "wf-1"}, nil)
	m := startMonitor(t, source, analyzer, nil, testConfig(true))

	source.Insert("reviews", "r1", domain.Document{"rating": 4})
	c := waitCall(t, calls, time.Second)
	require.Len(t, c.payload.Changes[sharedDomain.CategoryReviews], 1)
	mark, ok := m.HighWaterMark("reviews")
	require.True(t, ok)

	source.BreakStreams("reviews", mocks.ErrStreamBroken)
	require.Eventually(t, func() bool {
		return m.Channels()["reviews"] == domain.PollActive
	}, time.Second, 5*time.Millisecond)

	// Varios ciclos de sondeo sin cambios nuevos: r1 ya se entregó por push.
	assertNoCall(t, calls, 4*testPoll+testBatch)
	after, _ := m.HighWaterMark("reviews")
	assert.Equal(t, mark, after)

	source.Insert("reviews", "r2", domain.Document{"rating": 5})
	c = waitCall(t, calls, time.Second)
	require.Len(t, c.payload.Changes[sharedDomain.CategoryReviews], 1)
	assert.Equal(t, "r2", c.payload.Changes[sharedDomain.CategoryReviews][0].DocumentID)
}

func TestChangeMonitor_NoPushAnywhereMeansPollingEverywhere(t *testing.T) {
	source := mocks.NewInMemoryChangeSource()
	source.FailWatch("reviews")
	source.FailWatch("metrics")
	analyzer, _ := recordingAnalyzer(nil, nil)

	m := startMonitor(t, source, analyzer, nil, testConfig(true))

	assert.Equal(t, map[string]domain.DetectionMode{
		"metrics": domain.PollActive,
		"reviews": domain.PollActive,
	}, m.Channels())
}

func TestChangeMonitor_PollingOnlyConfig(t *testing.T) {
	source := mocks.NewInMemoryChangeSource()
	analyzer, _ := recordingAnalyzer(nil, nil)

	m := startMonitor(t, source, analyzer, nil, testConfig(false))

	for coll, mode := range m.Channels() {
		assert.Equal(t, domain.PollActive, mode, coll)
	}
}

func TestChangeMonitor_AggregatesAndStoresResult(t *testing.T) {
	// Arrange
	source := mocks.NewInMemoryChangeSource()
	source.Insert("reviews", "r0", domain.Document{"rating": 4})
	analyzer, calls := recordingAnalyzer(&analysisDomain.AnalysisResult{
		Success:        true,
		RunID:          "wf-7",
		Recommendation: &sharedDomain.Recommendation{ExecutiveSummary: "fix onboarding"},
	}, nil)
	startMonitor(t, source, analyzer, nil, testConfig(true))

	// Act
	source.Insert("reviews", "r1", domain.Document{"rating": 2, "startup_id": "s-1"})
	source.Insert("metrics", "m1", domain.Document{"mrr": 900})

	// Assert
	c := waitCall(t, calls, time.Second)
	assert.Equal(t, "s-1", c.subjectID)
	assert.Equal(t, domain.PayloadSource, c.payload.Source)
	assert.Equal(t, 2, c.payload.TotalChanges)
	assert.Equal(t, 3.0, c.payload.Aggregates[sharedDomain.CategoryReviews]["averageRating"])
	assert.Equal(t, map[string]interface{}{"mrr": 900}, c.payload.Aggregates[sharedDomain.CategoryMetrics]["latest"])

	require.Eventually(t, func() bool { return len(source.StoredResults()) == 1 }, time.Second, 5*time.Millisecond)
	stored := source.StoredResults()[0]
	assert.Equal(t, "wf-7", stored["workflowId"])
	assert.Equal(t, "s-1", stored["subjectId"])
	assert.Equal(t, []string{"metrics", "reviews"}, stored["dataTypes"])
}

func TestChangeMonitor_SynthesisesSubject(t *testing.T) {
	source := mocks.NewInMemoryChangeSource()
	analyzer, calls := recordingAnalyzer(&analysisDomain.AnalysisResult{Success: true, RunID: "wf"}, nil)
	startMonitor(t, source, analyzer, nil, testConfig(true))

	source.Insert("metrics", "m1", domain.Document{"mrr": 1})

	c := waitCall(t, calls, time.Second)
	assert.Regexp(t, `^auto_\d+$`, c.subjectID)
}

func TestChangeMonitor_FailedAnalysisStoresNothing(t *testing.T) {
	source := mocks.NewInMemoryChangeSource()
	analyzer, calls := recordingAnalyzer(nil, errors.New("engine down"))
	startMonitor(t, source, analyzer, nil, testConfig(true))

	source.Insert("reviews", "r1", domain.Document{"rating": 1})

	waitCall(t, calls, time.Second)
	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, source.StoredResults())
}

func TestChangeMonitor_WritesEnvelopeToOutbox(t *testing.T) {
	source := mocks.NewInMemoryChangeSource()
	analyzer, _ := recordingAnalyzer(&analysisDomain.AnalysisResult{Success: true, RunID: "wf"}, nil)
	outbox := &mocks.InMemoryOutbox{}
	startMonitor(t, source, analyzer, outbox, testConfig(true))

	source.Insert("reviews", "r1", domain.Document{"_id": "r1", "rating": 5, "subjectId": "acme"})

	require.Eventually(t, func() bool { return len(outbox.Snapshot()) == 1 }, time.Second, 5*time.Millisecond)
	evt := outbox.Snapshot()[0]
	assert.Equal(t, sharedDomain.ChangeDetected, evt.EventType)
	assert.Equal(t, "reviews:r1", evt.AggregateID)

	env, ok := evt.Payload.(sharedDomain.ChangeEnvelope)
	require.True(t, ok)
	assert.Equal(t, "mongodb.reviews.insert", env.Event)
	assert.Equal(t, "acme", env.Data.SubjectID)
	assert.Equal(t, "coo", env.Metadata.Database)
	assert.NotContains(t, env.Data.Document, "_id")
	assert.Equal(t, 5, env.Data.Document["rating"])
}

func TestChangeMonitor_StopIsIdempotent(t *testing.T) {
	source := mocks.NewInMemoryChangeSource()
	analyzer, calls := recordingAnalyzer(&analysisDomain.AnalysisResult{Success: true, RunID: "wf"}, nil)
	m := NewChangeMonitor(source, analyzer, nil, testConfig(true), zap.NewNop())
	require.NoError(t, m.Start(context.Background()))
	assert.ErrorIs(t, m.Start(context.Background()), domain.ErrMonitorStarted)

	source.Insert("reviews", "r1", domain.Document{"rating": 1})
	require.NoError(t, m.Stop(context.Background()))
	require.NoError(t, m.Stop(context.Background()))

	assert.Equal(t, 1, source.CloseCalls())
	assertNoCall(t, calls, 3*testBatch)
}

func TestChangeMonitor_RequiresCollections(t *testing.T) {
	m := NewChangeMonitor(mocks.NewInMemoryChangeSource(), new(mocks.MockAnalyzer), nil, MonitorConfig{}, zap.NewNop())

	assert.ErrorIs(t, m.Start(context.Background()), domain.ErrNoCollections)
}
