package application

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	analysisDomain "github.com/davicafu/hexapulse/internal/analysis/domain"
	"github.com/davicafu/hexapulse/internal/shared/infra/batch"
	"github.com/davicafu/hexapulse/internal/watch/domain"
)

const subscriptionBuffer = 64

// DataMonitor consume los cambios de ficheros y dispara el análisis: en modo
// lote espera a que deje de llegar actividad; en modo inmediato, uno por fichero.
type DataMonitor struct {
	source       domain.FileSource
	analyzer     analysisDomain.Analyzer
	storage      domain.RunStorage
	triggerDelay time.Duration
	batchMode    bool
	log          *zap.Logger
	now          func() time.Time

	mu      sync.Mutex
	sub     domain.FileSubscription
	batch   *batch.Coordinator[domain.FileEvent]
	cancel  context.CancelFunc
	started bool
	wg      sync.WaitGroup
}

func NewDataMonitor(
	source domain.FileSource,
	analyzer analysisDomain.Analyzer,
	storage domain.RunStorage,
	triggerDelay time.Duration,
	batchMode bool,
	log *zap.Logger,
) *DataMonitor {
	return &DataMonitor{
		source:       source,
		analyzer:     analyzer,
		storage:      storage,
		triggerDelay: triggerDelay,
		batchMode:    batchMode,
		log:          log,
		now:          time.Now,
	}
}

// Start se suscribe a la fuente. Un análisis ya disparado no se cancela con
// ctx: termina aunque el monitor se detenga.
func (m *DataMonitor) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return
	}
	m.started = true

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.sub = m.source.Subscribe(subscriptionBuffer)
	m.batch = batch.NewCoordinator(context.WithoutCancel(ctx), "files", m.triggerDelay, m.trigger, m.log)

	mode := "immediate"
	if m.batchMode {
		mode = "batch"
	}
	m.log.Info("🚀 Monitor de datos iniciado", zap.String("mode", mode), zap.Duration("trigger_delay", m.triggerDelay))

	m.wg.Add(1)
	go m.consume(runCtx, m.sub)
}

// Stop deja de consumir y descarta el lote pendiente. Espera a un disparo en curso.
func (m *DataMonitor) Stop() {
	m.mu.Lock()
	if !m.started {
		m.mu.Unlock()
		return
	}
	m.started = false
	m.cancel()
	m.sub.Close()
	m.mu.Unlock()

	m.wg.Wait()
	m.batch.Stop()
	m.log.Info("Monitor de datos detenido")
}

func (m *DataMonitor) consume(ctx context.Context, sub domain.FileSubscription) {
	defer m.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-sub.Done():
			return
		case evt := <-sub.Events():
			m.handle(ctx, evt)
		}
	}
}

func (m *DataMonitor) handle(ctx context.Context, evt domain.FileEvent) {
	if evt.Kind == domain.FileDeleted {
		m.log.Info("🗑️ Fichero eliminado", zap.String("file", evt.Name))
		return
	}

	m.log.Info("📥 Nuevos datos", zap.String("file", evt.Name), zap.String("type", string(evt.Category)))

	if m.batchMode {
		m.batch.Add(evt.Path, evt)
		return
	}
	m.trigger(context.WithoutCancel(ctx), []domain.FileEvent{evt})
}

// trigger hace una única llamada al análisis por lote. Si falla, el lote se
// descarta: no hay reintento.
func (m *DataMonitor) trigger(ctx context.Context, files []domain.FileEvent) {
	names := make([]string, 0, len(files))
	paths := make([]string, 0, len(files))
	for _, f := range files {
		names = append(names, f.Name)
		paths = append(paths, f.Path)
	}

	now := m.now()
	subjectID := domain.SubjectFromNames(names, now)
	payload := domain.NewBatchPayload(files, now)

	m.log.Info("🧠 Disparando análisis",
		zap.String("subject_id", subjectID),
		zap.Int("files", len(files)),
	)

	result, err := m.analyzer.RunAnalysis(ctx, subjectID, payload)
	if err != nil {
		m.log.Error("Análisis fallido, se descarta el lote", zap.String("subject_id", subjectID), zap.Error(err))
		return
	}
	if result == nil || !result.Success {
		m.log.Warn("El análisis no tuvo éxito, los ficheros se quedan en la bandeja", zap.String("subject_id", subjectID))
		return
	}

	moved, err := m.storage.ArchiveFiles(ctx, result.RunID, paths)
	if err != nil {
		m.log.Warn("Algunos ficheros no se movieron", zap.String("run_id", result.RunID), zap.Error(err))
	}

	artifact := struct {
		*analysisDomain.AnalysisResult
		SubjectID string               `json:"subjectId"`
		Files     []domain.FileSummary `json:"files"`
		Timestamp time.Time            `json:"timestamp"`
	}{result, subjectID, payload.Files, now}

	if err := m.storage.SaveResult(ctx, result.RunID, artifact); err != nil {
		m.log.Warn("No se pudo guardar el resultado", zap.String("run_id", result.RunID), zap.Error(err))
	}

	m.log.Info("✅ Lote procesado",
		zap.String("run_id", result.RunID),
		zap.String("subject_id", subjectID),
		zap.Int("archived", len(moved)),
	)
}
