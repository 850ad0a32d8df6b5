package http

import (
	"crypto/subtle"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/davicafu/hexapulse/internal/queue/application"
	"github.com/davicafu/hexapulse/internal/queue/domain"
	"github.com/davicafu/hexapulse/internal/shared/infra/events"
	"github.com/davicafu/hexapulse/pkg/utils"
)

// QueueHandler es la entrada HTTP de la cola: encola y consulta, nunca procesa.
type QueueHandler struct {
	queue         *application.EventQueue
	webhookSecret string
	log           *zap.Logger
}

// NewQueueHandler con webhookSecret vacío acepta cualquier webhook.
func NewQueueHandler(queue *application.EventQueue, webhookSecret string, log *zap.Logger) *QueueHandler {
	return &QueueHandler{queue: queue, webhookSecret: webhookSecret, log: log}
}

// Analyze endpoint POST /api/analyze
func (h *QueueHandler) Analyze(c *gin.Context) {
	var req struct {
		SubjectID string                 `json:"subject_id"`
		StartupID string                 `json:"startup_id"`
		Data      map[string]interface{} `json:"data"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendBadRequest(c, err.Error())
		return
	}

	subjectID := req.SubjectID
	if subjectID == "" {
		subjectID = req.StartupID
	}
	if subjectID == "" {
		utils.SendBadRequest(c, "subject_id is required")
		return
	}

	h.enqueue(c, domain.EventAnalysisRequest, map[string]interface{}{
		"subject_id": subjectID,
		"data":       req.Data,
	})
}

// Webhook endpoint POST /api/webhook/:source
func (h *QueueHandler) Webhook(c *gin.Context) {
	if h.webhookSecret != "" {
		got := c.GetHeader(events.HeaderWebhookSecret)
		if subtle.ConstantTimeCompare([]byte(got), []byte(h.webhookSecret)) != 1 {
			utils.SendUnauthorized(c, "invalid webhook secret")
			return
		}
	}

	var body map[string]interface{}
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.SendBadRequest(c, err.Error())
		return
	}

	source := c.Param("source")
	h.log.Info("📨 Webhook recibido", zap.String("source", source))

	h.enqueue(c, domain.EventWebhook, map[string]interface{}{
		"source": source,
		"data":   body,
	})
}

// ReportOutcome endpoint POST /api/outcomes/:runId
func (h *QueueHandler) ReportOutcome(c *gin.Context) {
	var outcome map[string]interface{}
	if err := c.ShouldBindJSON(&outcome); err != nil {
		utils.SendBadRequest(c, err.Error())
		return
	}
	if _, ok := outcome["metricImproved"].(bool); !ok {
		utils.SendBadRequest(c, "metricImproved (bool) is required")
		return
	}

	h.enqueue(c, domain.EventOutcomeUpdate, map[string]interface{}{
		"workflowId": c.Param("runId"),
		"outcome":    outcome,
	})
}

// Status endpoint GET /api/queue/status
func (h *QueueHandler) Status(c *gin.Context) {
	utils.SendSuccess(c, http.StatusOK, gin.H{
		"status":  h.queue.Status(),
		"pending": h.queue.PendingEvents(),
	})
}

// GetEvent endpoint GET /api/queue/events/:id
func (h *QueueHandler) GetEvent(c *gin.Context) {
	evt, err := h.queue.Get(c.Param("id"))
	if err != nil {
		if errors.Is(err, domain.ErrEventNotFound) {
			utils.SendNotFound(c, "event not found")
			return
		}
		utils.SendInternalServerError(c, err.Error())
		return
	}
	utils.SendSuccess(c, http.StatusOK, evt)
}

func (h *QueueHandler) enqueue(c *gin.Context, eventType domain.EventType, payload map[string]interface{}) {
	id, err := h.queue.Enqueue(eventType, payload)
	if err != nil {
		if errors.Is(err, domain.ErrQueueStopped) {
			utils.SendServiceUnavailable(c, err.Error())
			return
		}
		utils.SendInternalServerError(c, err.Error())
		return
	}

	utils.SendSuccess(c, http.StatusAccepted, gin.H{
		"eventId": id,
		"type":    eventType,
		"status":  "queued",
	})
}
