package domain

import (
	"context"
	"errors"
	"time"
)

// ---------- Errores de dominio ----------
var (
	ErrRecommendationNotFound = errors.New("recommendation not found")
	ErrAnalyticsDisabled      = errors.New("learning analytics not configured")
)

// ---------- Ports ----------

// HistorySink recibe cada entrada nueva del historial de aprendizaje.
type HistorySink interface {
	Record(ctx context.Context, entry HistoryEntry) error
}

// HistoryAnalytics añade consultas agregadas sobre el historial persistido.
type HistoryAnalytics interface {
	HistorySink
	GetDailyTrend(ctx context.Context, start, end time.Time) ([]DailyTrend, error)
}

// MetricsCacheKey es la clave bajo la que se cachea la foto de Metrics.
const MetricsCacheKey = "learning:metrics"
