package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRemoteRunner_Run(t *testing.T) {
	// Arrange
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"workflowId":"wf-9","recommendation":{"executiveSummary":"Hire support","confidenceLevel":0.8}}`))
	}))
	defer srv.Close()

	runner := NewRemoteRunner(srv.URL, srv.Client(), zap.NewNop())

	// Act
	res, err := runner.Run(context.Background(), "acme", map[string]int{"n": 1})

	// Assert
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "wf-9", res.RunID)
	require.NotNil(t, res.Recommendation)
	assert.Equal(t, "Hire support", res.Recommendation.ExecutiveSummary)
	assert.Equal(t, "acme", got["startup_id"])
}

func TestRemoteRunner_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"success":false}`))
	}))
	defer srv.Close()

	res, err := NewRemoteRunner(srv.URL, srv.Client(), zap.NewNop()).Run(context.Background(), "acme", nil)

	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "500")
}

func TestRemoteRunner_InvalidBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	_, err := NewRemoteRunner(srv.URL, srv.Client(), zap.NewNop()).Run(context.Background(), "acme", nil)

	assert.Error(t, err)
}
