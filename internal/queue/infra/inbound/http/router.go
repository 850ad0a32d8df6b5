package http

import "github.com/gin-gonic/gin"

func RegisterQueueRoutes(r *gin.Engine, handler *QueueHandler) {
	api := r.Group("/api")
	{
		api.POST("/analyze", handler.Analyze)
		api.POST("/webhook/:source", handler.Webhook)
		api.POST("/outcomes/:runId", handler.ReportOutcome)
		api.GET("/queue/status", handler.Status)
		api.GET("/queue/events/:id", handler.GetEvent)
	}
}
