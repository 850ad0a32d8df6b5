package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/davicafu/hexapulse/internal/queue/application"
	"github.com/davicafu/hexapulse/internal/queue/domain"
	"github.com/davicafu/hexapulse/internal/shared/infra/events"
)

type accepted struct {
	Success bool `json:"success"`
	Data    struct {
		EventID string `json:"eventId"`
		Type    string `json:"type"`
	} `json:"data"`
}

func setupRouter(t *testing.T, secret string) (*gin.Engine, *application.EventQueue, chan domain.QueuedEvent) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	received := make(chan domain.QueuedEvent, 10)
	q := application.NewEventQueue(0, zap.NewNop())
	record := domain.HandlerFunc(func(ctx context.Context, evt domain.QueuedEvent) error {
		received <- evt
		return nil
	})
	q.Register(domain.EventAnalysisRequest, record)
	q.Register(domain.EventWebhook, record)
	q.Register(domain.EventOutcomeUpdate, record)
	t.Cleanup(func() { _ = q.Stop(context.Background()) })

	r := gin.New()
	RegisterQueueRoutes(r, NewQueueHandler(q, secret, zap.NewNop()))
	return r, q, received
}

func post(r *gin.Engine, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	raw, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func nextEvent(t *testing.T, ch chan domain.QueuedEvent) domain.QueuedEvent {
	t.Helper()
	select {
	case evt := <-ch:
		return evt
	case <-time.After(2 * time.Second):
		t.Fatal("el evento no llegó al handler")
		return domain.QueuedEvent{}
	}
}

func TestAnalyze(t *testing.T) {
	// Arrange
	r, _, received := setupRouter(t, "")

	// Act
	w := post(r, "/api/analyze", map[string]interface{}{"startup_id": "acme", "data": map[string]interface{}{"k": 1}}, nil)

	// Assert
	require.Equal(t, http.StatusAccepted, w.Code)
	var body accepted
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.NotEmpty(t, body.Data.EventID)
	assert.Equal(t, string(domain.EventAnalysisRequest), body.Data.Type)

	evt := nextEvent(t, received)
	assert.Equal(t, body.Data.EventID, evt.ID)
	assert.Equal(t, "acme", evt.Payload["subject_id"])
}

func TestAnalyze_MissingSubject(t *testing.T) {
	r, q, _ := setupRouter(t, "")

	w := post(r, "/api/analyze", map[string]interface{}{"data": map[string]interface{}{}}, nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Zero(t, q.Status().Enqueued)
}

func TestWebhook_Secret(t *testing.T) {
	r, q, received := setupRouter(t, "s3cret")
	body := map[string]interface{}{"startup_id": "acme"}

	w := post(r, "/api/webhook/brightdata", body, map[string]string{events.HeaderWebhookSecret: "nope"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Zero(t, q.Status().Enqueued)

	w = post(r, "/api/webhook/brightdata", body, map[string]string{events.HeaderWebhookSecret: "s3cret"})
	require.Equal(t, http.StatusAccepted, w.Code)

	evt := nextEvent(t, received)
	assert.Equal(t, domain.EventWebhook, evt.Type)
	assert.Equal(t, "brightdata", evt.Payload["source"])
	assert.Equal(t, "acme", evt.Payload["data"].(map[string]interface{})["startup_id"])
}

func TestReportOutcome(t *testing.T) {
	r, _, received := setupRouter(t, "")

	w := post(r, "/api/outcomes/wf-9", map[string]interface{}{"metricImproved": false, "failureReason": "no"}, nil)
	require.Equal(t, http.StatusAccepted, w.Code)

	evt := nextEvent(t, received)
	assert.Equal(t, domain.EventOutcomeUpdate, evt.Type)
	assert.Equal(t, "wf-9", evt.Payload["workflowId"])

	w = post(r, "/api/outcomes/wf-9", map[string]interface{}{"metric": "nps"}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStatusAndGetEvent(t *testing.T) {
	r, q, received := setupRouter(t, "")
	id, err := q.Enqueue(domain.EventAnalysisRequest, map[string]interface{}{"subject_id": "a"})
	require.NoError(t, err)
	nextEvent(t, received)
	require.Eventually(t, func() bool { return q.Status().Processed == 1 }, time.Second, time.Millisecond)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/queue/events/"+id, nil))
	require.Equal(t, http.StatusOK, w.Code)
	var evtBody struct {
		Data domain.QueuedEvent `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &evtBody))
	assert.Equal(t, domain.StatusCompleted, evtBody.Data.Status)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/queue/status", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var statusBody struct {
		Data struct {
			Status domain.Status `json:"status"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &statusBody))
	assert.Equal(t, 1, statusBody.Data.Status.Processed)
	assert.Equal(t, "100.0%", statusBody.Data.Status.SuccessRate)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/queue/events/evt-none", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
