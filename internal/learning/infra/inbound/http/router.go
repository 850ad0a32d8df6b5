package http

import "github.com/gin-gonic/gin"

func RegisterLearningRoutes(r *gin.Engine, handler *MetricsHandler) {
	api := r.Group("/api")
	{
		api.GET("/metrics", handler.GetMetrics)
		api.GET("/metrics/daily", handler.GetDailyTrend)
		api.GET("/recommendations", handler.ListRecommendations)
	}
}
