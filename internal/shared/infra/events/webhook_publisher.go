package events

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	sharedBus "github.com/davicafu/hexapulse/internal/shared/infra/platform/bus"
)

const (
	HeaderWebhookSecret = "X-Webhook-Secret"
	HeaderEventType     = "X-Event-Type"
	HeaderTimestamp     = "X-Timestamp"
)

// WebhookPublisher entrega cada evento como un POST JSON a un endpoint externo,
// autenticado con un secreto compartido en cabecera.
type WebhookPublisher struct {
	url    string
	secret string
	client *http.Client
	log    *zap.Logger
	now    func() time.Time
}

var _ sharedBus.EventBus = (*WebhookPublisher)(nil)

func NewWebhookPublisher(url, secret string, client *http.Client, log *zap.Logger) *WebhookPublisher {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &WebhookPublisher{url: url, secret: secret, client: client, log: log, now: time.Now}
}

func (p *WebhookPublisher) Publish(ctx context.Context, event interface{}) error {
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderTimestamp, p.now().UTC().Format(time.RFC3339Nano))
	if p.secret != "" {
		req.Header.Set(HeaderWebhookSecret, p.secret)
	}
	if typed, ok := event.(sharedBus.Typed); ok {
		req.Header.Set(HeaderEventType, typed.EventName())
	}

	resp, err := p.client.Do(req)
	if err != nil {
		p.log.Warn("Webhook delivery failed", zap.String("url", p.url), zap.Error(err))
		return fmt.Errorf("webhook delivery: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook endpoint responded %d", resp.StatusCode)
	}

	p.log.Debug("📤 Webhook entregado", zap.String("url", p.url), zap.Int("status", resp.StatusCode))
	return nil
}
