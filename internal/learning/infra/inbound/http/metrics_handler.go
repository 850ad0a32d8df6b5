package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/davicafu/hexapulse/internal/learning/application"
	"github.com/davicafu/hexapulse/internal/learning/domain"
	"github.com/davicafu/hexapulse/pkg/utils"
)

const (
	defaultRecommendationLimit = 10
	defaultTrendDays           = 7
	maxTrendDays               = 365
)

// MetricsHandler expone las métricas de aprendizaje en modo sólo lectura.
type MetricsHandler struct {
	service *application.LearningService
}

func NewMetricsHandler(service *application.LearningService) *MetricsHandler {
	return &MetricsHandler{service: service}
}

// GetMetrics endpoint GET /api/metrics
func (h *MetricsHandler) GetMetrics(c *gin.Context) {
	utils.SendSuccess(c, http.StatusOK, h.service.GetMetrics(c.Request.Context()))
}

// GetDailyTrend endpoint GET /api/metrics/daily?days=7
func (h *MetricsHandler) GetDailyTrend(c *gin.Context) {
	days, err := positiveQueryInt(c, "days", defaultTrendDays)
	if err != nil || days > maxTrendDays {
		utils.SendBadRequest(c, "days must be an integer between 1 and 365")
		return
	}

	trend, err := h.service.DailyTrend(c.Request.Context(), days)
	if err != nil {
		if errors.Is(err, domain.ErrAnalyticsDisabled) {
			utils.SendServiceUnavailable(c, err.Error())
			return
		}
		utils.SendInternalServerError(c, err.Error())
		return
	}

	utils.SendSuccess(c, http.StatusOK, trend)
}

// ListRecommendations endpoint GET /api/recommendations?limit=10
func (h *MetricsHandler) ListRecommendations(c *gin.Context) {
	limit, err := positiveQueryInt(c, "limit", defaultRecommendationLimit)
	if err != nil {
		utils.SendBadRequest(c, "limit must be a positive integer")
		return
	}

	recs := h.service.Recommendations(limit)
	utils.SendSuccess(c, http.StatusOK, gin.H{
		"count":           len(recs),
		"recommendations": recs,
	})
}

func positiveQueryInt(c *gin.Context, key string, fallback int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, errors.New(key + " must be positive")
	}
	return n, nil
}
