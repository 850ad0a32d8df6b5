package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/davicafu/hexapulse/internal/analysis/domain"
)

const maxResponseBytes = 4 << 20

// RemoteRunner delega el análisis en un motor externo vía HTTP.
type RemoteRunner struct {
	url    string
	client *http.Client
	log    *zap.Logger
}

var _ domain.Runner = (*RemoteRunner)(nil)

func NewRemoteRunner(url string, client *http.Client, log *zap.Logger) *RemoteRunner {
	if client == nil {
		client = http.DefaultClient
	}
	return &RemoteRunner{url: url, client: client, log: log}
}

type runRequest struct {
	SubjectID string      `json:"startup_id"`
	Data      interface{} `json:"data,omitempty"`
}

func (r *RemoteRunner) Run(ctx context.Context, subjectID string, payload interface{}) (*domain.AnalysisResult, error) {
	body, err := json.Marshal(runRequest{SubjectID: subjectID, Data: payload})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("analysis engine request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, err
	}

	var result domain.AnalysisResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("analysis engine responded %d with invalid body: %w", resp.StatusCode, err)
	}
	if resp.StatusCode >= 300 && result.Error == "" {
		result.Success = false
		result.Error = fmt.Sprintf("analysis engine responded %d", resp.StatusCode)
	}

	r.log.Debug("Respuesta del motor de análisis", zap.Int("status", resp.StatusCode), zap.String("run_id", result.RunID))
	return &result, nil
}
