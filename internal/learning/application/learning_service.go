package application

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/davicafu/hexapulse/internal/learning/domain"
	sharedDomain "github.com/davicafu/hexapulse/internal/shared/domain"
	sharedCache "github.com/davicafu/hexapulse/internal/shared/infra/platform/cache"
)

const sinkTimeout = 5 * time.Second

// LearningService expone el Coordinator a los adapters: cachea la foto de
// métricas y envía cada entrada del historial a la analítica.
type LearningService struct {
	coordinator *Coordinator
	cache       sharedCache.Cache
	cacheTTL    int
	analytics   domain.HistoryAnalytics
	log         *zap.Logger

	// instanceID separa las claves de este proceso de las que dejó otro
	// proceso en una caché compartida (Redis sobrevive a los reinicios).
	instanceID string

	sinkWG sync.WaitGroup
}

// NewLearningService acepta cache y analytics nil.
func NewLearningService(coordinator *Coordinator, cache sharedCache.Cache, cacheTTL time.Duration, analytics domain.HistoryAnalytics, log *zap.Logger) *LearningService {
	return &LearningService{
		coordinator: coordinator,
		cache:       cache,
		cacheTTL:    sharedCache.TTLSeconds(cacheTTL),
		analytics:   analytics,
		log:         log,
		instanceID:  uuid.NewString(),
	}
}

// metricsKey cambia con cada entrada nueva del historial, así una foto
// cacheada nunca describe un historial distinto del actual.
func (s *LearningService) metricsKey(generation int) string {
	return fmt.Sprintf("%s:%s:%d", domain.MetricsCacheKey, s.instanceID, generation)
}

func (s *LearningService) TrackRecommendation(_ context.Context, runID string, rec sharedDomain.Recommendation) domain.RecommendationRecord {
	return s.coordinator.TrackRecommendation(runID, rec)
}

// RecordOutcome devuelve ErrRecommendationNotFound si runID no tiene recomendación.
func (s *LearningService) RecordOutcome(_ context.Context, runID string, outcome domain.Outcome) (*domain.OutcomeRecord, error) {
	previous := s.coordinator.HistorySize()

	record, entry := s.coordinator.recordOutcome(runID, outcome)
	if record == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrRecommendationNotFound, runID)
	}

	sharedCache.AsyncCacheDelete(s.cache, s.metricsKey(previous), s.log)

	if s.analytics != nil {
		s.sinkWG.Add(1)
		go func(e domain.HistoryEntry) {
			defer s.sinkWG.Done()
			ctx, cancel := context.WithTimeout(context.Background(), sinkTimeout)
			defer cancel()
			if err := s.analytics.Record(ctx, e); err != nil {
				s.log.Warn("No se pudo enviar la entrada de aprendizaje a analítica",
					zap.String("run_id", e.RunID), zap.Error(err))
			}
		}(*entry)
	}

	return record, nil
}

// GetMetrics es cache-aside sobre la generación actual del historial.
func (s *LearningService) GetMetrics(ctx context.Context) domain.Metrics {
	key := s.metricsKey(s.coordinator.HistorySize())

	if s.cache != nil {
		var cached domain.Metrics
		if hit, err := s.cache.Get(ctx, key, &cached); err == nil && hit {
			return cached
		} else if err != nil {
			s.log.Warn("Cache read failed", zap.String("key", key), zap.Error(err))
		}
	}

	metrics := s.coordinator.Metrics()
	sharedCache.AsyncCacheSet(s.cache, key, metrics, s.cacheTTL, s.log)
	return metrics
}

func (s *LearningService) Recommendations(limit int) []domain.RecommendationRecord {
	return s.coordinator.Recommendations(limit)
}

// DailyTrend consulta la analítica de los últimos days días.
func (s *LearningService) DailyTrend(ctx context.Context, days int) ([]domain.DailyTrend, error) {
	if s.analytics == nil {
		return nil, domain.ErrAnalyticsDisabled
	}
	end := time.Now().UTC()
	start := end.AddDate(0, 0, -days)
	return s.analytics.GetDailyTrend(ctx, start, end)
}

// Close espera a que terminen los envíos pendientes a analítica.
func (s *LearningService) Close() {
	s.sinkWG.Wait()
}
