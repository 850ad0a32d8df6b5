package application

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	analysisDomain "github.com/davicafu/hexapulse/internal/analysis/domain"
	"github.com/davicafu/hexapulse/internal/monitor/domain"
	sharedDomain "github.com/davicafu/hexapulse/internal/shared/domain"
	"github.com/davicafu/hexapulse/internal/shared/infra/batch"
)

const (
	envelopeSource      = "mongodb"
	storeTimeout        = 5 * time.Second
	defaultPollInterval = 5 * time.Second
)

// MonitorConfig fija el conjunto de colecciones vigiladas. No cambia tras Start.
type MonitorConfig struct {
	Database          string
	Collections       map[sharedDomain.Category]string
	ResultsCollection string
	PollInterval      time.Duration
	BatchDelay        time.Duration
	UseChangeStreams  bool
}

// ChangeMonitor detecta mutaciones en las colecciones, con change streams
// cuando se puede y sondeo por marca de agua cuando no, y dispara un único
// análisis por lote.
type ChangeMonitor struct {
	source   domain.ChangeSource
	analyzer analysisDomain.Analyzer
	outbox   sharedDomain.OutboxWriter
	cfg      MonitorConfig
	log      *zap.Logger
	now      func() time.Time

	// colección -> categoría
	categories map[string]sharedDomain.Category

	mu       sync.Mutex
	channels map[string]domain.DetectionMode
	marks    map[string]time.Time
	streams  map[string]domain.ChangeStream
	started  bool

	batch    *batch.Coordinator[domain.DocumentChange]
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewChangeMonitor acepta outbox nil: entonces no se generan sobres de cambio.
func NewChangeMonitor(source domain.ChangeSource, analyzer analysisDomain.Analyzer, outbox sharedDomain.OutboxWriter, cfg MonitorConfig, log *zap.Logger) *ChangeMonitor {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	categories := make(map[string]sharedDomain.Category, len(cfg.Collections))
	for category, collection := range cfg.Collections {
		categories[collection] = category
	}

	return &ChangeMonitor{
		source:     source,
		analyzer:   analyzer,
		outbox:     outbox,
		cfg:        cfg,
		log:        log,
		now:        time.Now,
		categories: categories,
		channels:   make(map[string]domain.DetectionMode),
		marks:      make(map[string]time.Time),
		streams:    make(map[string]domain.ChangeStream),
	}
}

// Start fija las marcas de agua, abre los canales de detección y vuelve.
// La detección sigue en segundo plano hasta Stop o hasta que ctx se cancela.
func (m *ChangeMonitor) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return domain.ErrMonitorStarted
	}
	if len(m.categories) == 0 {
		m.mu.Unlock()
		return domain.ErrNoCollections
	}
	m.started = true
	m.mu.Unlock()

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.batch = batch.NewCoordinator(context.WithoutCancel(ctx), "collections", m.cfg.BatchDelay, m.trigger, m.log)

	collections := m.collectionNames()
	for _, coll := range collections {
		mark, err := m.source.LatestMark(runCtx, coll)
		if err != nil {
			m.log.Warn("No se pudo fijar la marca de agua, se usa la hora actual", zap.String("collection", coll), zap.Error(err))
			mark = m.now()
		}
		m.mu.Lock()
		m.marks[coll] = mark
		m.mu.Unlock()
	}

	pushed := 0
	if m.cfg.UseChangeStreams {
		for _, coll := range collections {
			stream, err := m.source.Watch(runCtx, coll)
			if err != nil {
				m.log.Warn("⚠️ Change stream no disponible", zap.String("collection", coll), zap.Error(err))
				m.fallback(runCtx, coll)
				continue
			}
			m.mu.Lock()
			m.channels[coll] = domain.PushActive
			m.streams[coll] = stream
			m.mu.Unlock()
			pushed++

			m.wg.Add(1)
			go m.consumeStream(runCtx, coll, stream)
		}
		if pushed == 0 {
			m.log.Warn("🔁 Ninguna colección admite change streams, se pasa a sondeo en todas")
		}
	} else {
		for _, coll := range collections {
			m.startPolling(runCtx, coll)
		}
	}

	m.log.Info("🚀 Monitor de colecciones iniciado",
		zap.String("database", m.cfg.Database),
		zap.Int("collections", len(collections)),
		zap.Int("push", pushed),
		zap.Duration("poll_interval", m.cfg.PollInterval),
		zap.Duration("batch_delay", m.cfg.BatchDelay),
	)
	return nil
}

// Stop cierra los change streams, cancela el lote pendiente y libera la
// conexión. Sólo la primera llamada tiene efecto.
func (m *ChangeMonitor) Stop(ctx context.Context) error {
	var err error
	m.stopOnce.Do(func() {
		m.mu.Lock()
		started := m.started
		streams := m.streams
		m.streams = make(map[string]domain.ChangeStream)
		m.mu.Unlock()

		if !started {
			err = m.source.Close(ctx)
			return
		}

		m.cancel()
		for coll, stream := range streams {
			if cerr := stream.Close(ctx); cerr != nil {
				m.log.Warn("Error al cerrar el change stream", zap.String("collection", coll), zap.Error(cerr))
			}
		}
		m.wg.Wait()
		m.batch.Stop()
		err = m.source.Close(ctx)
		m.log.Info("Monitor de colecciones detenido")
	})
	return err
}

func (m *ChangeMonitor) consumeStream(ctx context.Context, coll string, stream domain.ChangeStream) {
	defer m.wg.Done()
	for {
		raw, err := stream.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			m.log.Warn("⚠️ Error en el change stream, se pasa a sondeo",
				zap.String("collection", coll), zap.Error(err))
			_ = stream.Close(context.WithoutCancel(ctx))
			m.mu.Lock()
			delete(m.streams, coll)
			m.mu.Unlock()
			m.fallback(ctx, coll)
			return
		}
		m.handleChange(ctx, raw)
		m.advanceMark(coll, raw.Timestamp)
	}
}

// advanceMark sólo mueve la marca hacia delante: si el stream cae, el
// sondeo arranca después de lo ya entregado por push.
func (m *ChangeMonitor) advanceMark(coll string, ts time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ts.After(m.marks[coll]) {
		m.marks[coll] = ts
	}
}

// fallback pasa la colección a sondeo de forma permanente.
func (m *ChangeMonitor) fallback(ctx context.Context, coll string) {
	m.mu.Lock()
	m.channels[coll] = domain.PushFailed
	m.mu.Unlock()
	m.startPolling(ctx, coll)
}

func (m *ChangeMonitor) startPolling(ctx context.Context, coll string) {
	m.mu.Lock()
	m.channels[coll] = domain.PollActive
	m.mu.Unlock()

	m.wg.Add(1)
	go m.pollLoop(ctx, coll)
}

func (m *ChangeMonitor) pollLoop(ctx context.Context, coll string) {
	defer m.wg.Done()
	ticker := time.NewTicker(m.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.pollOnce(ctx, coll)
		}
	}
}

// pollOnce trae lo posterior a la marca y la avanza al último documento.
func (m *ChangeMonitor) pollOnce(ctx context.Context, coll string) {
	m.mu.Lock()
	mark := m.marks[coll]
	m.mu.Unlock()

	changes, err := m.source.PollSince(ctx, coll, mark)
	if err != nil {
		if ctx.Err() == nil {
			m.log.Warn("Error al sondear la colección", zap.String("collection", coll), zap.Error(err))
		}
		return
	}
	if len(changes) == 0 {
		return
	}

	for _, raw := range changes {
		m.handleChange(ctx, raw)
		if raw.Timestamp.After(mark) {
			mark = raw.Timestamp
		}
	}

	m.mu.Lock()
	m.marks[coll] = mark
	m.mu.Unlock()
	m.log.Debug("Sondeo con cambios", zap.String("collection", coll), zap.Int("changes", len(changes)), zap.Time("mark", mark))
}

// handleChange normaliza el cambio, lo mete en el lote (último gana por
// documento) y escribe su sobre en el outbox.
func (m *ChangeMonitor) handleChange(ctx context.Context, raw domain.RawChange) {
	change := domain.DocumentChange{
		Type:       m.categoryOf(raw.Collection),
		Collection: raw.Collection,
		Operation:  raw.Operation,
		DocumentID: raw.DocumentID,
		SubjectID:  domain.SubjectFromDocument(raw.Document),
		Document:   raw.Document,
		Timestamp:  raw.Timestamp,
	}
	if change.Timestamp.IsZero() {
		change.Timestamp = m.now()
	}

	m.log.Info("📝 Cambio detectado",
		zap.String("collection", change.Collection),
		zap.String("operation", change.Operation),
		zap.String("document_id", change.DocumentID),
	)

	m.batch.Add(change.Key(), change)
	m.appendEnvelope(ctx, change)
}

func (m *ChangeMonitor) appendEnvelope(ctx context.Context, change domain.DocumentChange) {
	if m.outbox == nil {
		return
	}

	envelope := sharedDomain.ChangeEnvelope{
		Event:     sharedDomain.EnvelopeEventName(envelopeSource, change.Type, change.Operation),
		Timestamp: change.Timestamp,
		Data: sharedDomain.EnvelopeData{
			Type:       change.Type,
			Collection: change.Collection,
			Operation:  change.Operation,
			DocumentID: change.DocumentID,
			SubjectID:  change.SubjectID,
			Document:   change.Document.Sanitize(),
		},
		Metadata: sharedDomain.EnvelopeMetadata{
			Source:     envelopeSource,
			Database:   m.cfg.Database,
			Collection: change.Collection,
		},
	}

	evt := sharedDomain.OutboxEvent{
		ID:            uuid.New(),
		AggregateType: string(change.Type),
		AggregateID:   change.Key(),
		EventType:     sharedDomain.ChangeDetected,
		Payload:       envelope,
		CreatedAt:     m.now().UTC(),
	}

	storeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), storeTimeout)
	defer cancel()
	if err := m.outbox.AppendOutbox(storeCtx, evt); err != nil {
		m.log.Warn("No se pudo escribir el sobre en el outbox", zap.String("key", change.Key()), zap.Error(err))
	}
}

// trigger agrupa el lote por tipo, calcula los agregados y hace una única
// llamada al análisis. Si falla, el lote se descarta.
func (m *ChangeMonitor) trigger(ctx context.Context, changes []domain.DocumentChange) {
	now := m.now()
	payload := domain.ChangePayload{
		Source:       domain.PayloadSource,
		Timestamp:    now,
		TotalChanges: len(changes),
		Changes:      make(map[sharedDomain.Category][]domain.DocumentChange),
		Aggregates:   make(map[sharedDomain.Category]map[string]interface{}),
	}

	subjectID := ""
	for _, c := range changes {
		payload.Changes[c.Type] = append(payload.Changes[c.Type], c)
		if subjectID == "" {
			subjectID = c.SubjectID
		}
	}
	if subjectID == "" {
		subjectID = fmt.Sprintf("auto_%d", now.UnixMilli())
	}

	m.addAggregates(ctx, &payload)

	m.log.Info("🧠 Disparando análisis por cambios",
		zap.String("subject_id", subjectID),
		zap.Int("changes", len(changes)),
		zap.Int("types", len(payload.Changes)),
	)

	result, err := m.analyzer.RunAnalysis(ctx, subjectID, payload)
	if err != nil {
		m.log.Error("Análisis fallido, se descarta el lote", zap.String("subject_id", subjectID), zap.Error(err))
		return
	}

	m.storeResult(ctx, subjectID, payload, result, now)
}

func (m *ChangeMonitor) addAggregates(ctx context.Context, payload *domain.ChangePayload) {
	if _, ok := payload.Changes[sharedDomain.CategoryReviews]; ok {
		if coll, ok := m.cfg.Collections[sharedDomain.CategoryReviews]; ok {
			docs, err := m.source.RecentDocuments(ctx, coll, recentReviewWindow)
			if err != nil {
				m.log.Warn("No se pudieron leer las reseñas recientes", zap.Error(err))
			} else {
				payload.Aggregates[sharedDomain.CategoryReviews] = AggregateReviews(docs)
			}
		}
	}

	if _, ok := payload.Changes[sharedDomain.CategoryMetrics]; ok {
		if coll, ok := m.cfg.Collections[sharedDomain.CategoryMetrics]; ok {
			latest, err := m.source.LatestDocument(ctx, coll)
			if err != nil {
				m.log.Warn("No se pudo leer la última métrica", zap.Error(err))
			} else {
				payload.Aggregates[sharedDomain.CategoryMetrics] = AggregateMetrics(latest)
			}
		}
	}
}

// storeResult guarda el resultado en la colección de resultados. Un fallo
// sólo se registra.
func (m *ChangeMonitor) storeResult(ctx context.Context, subjectID string, payload domain.ChangePayload, result *analysisDomain.AnalysisResult, at time.Time) {
	if result == nil || m.cfg.ResultsCollection == "" {
		return
	}

	types := make([]string, 0, len(payload.Changes))
	for t := range payload.Changes {
		types = append(types, string(t))
	}
	sort.Strings(types)

	doc := domain.Document{
		"subjectId":   subjectID,
		"workflowId":  result.RunID,
		"success":     result.Success,
		"changeCount": payload.TotalChanges,
		"dataTypes":   types,
		"insights":    result.Insights,
		"error":       result.Error,
		"source":      domain.PayloadSource,
		"createdAt":   at.UTC(),
	}
	if result.Recommendation != nil {
		doc["recommendation"] = result.Recommendation
	}

	storeCtx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()
	if err := m.source.InsertResult(storeCtx, m.cfg.ResultsCollection, doc); err != nil {
		m.log.Warn("No se pudo guardar el resultado del análisis", zap.String("run_id", result.RunID), zap.Error(err))
		return
	}
	m.log.Info("✅ Resultado guardado", zap.String("run_id", result.RunID), zap.String("collection", m.cfg.ResultsCollection))
}

// Channels devuelve el modo de detección actual de cada colección.
func (m *ChangeMonitor) Channels() map[string]domain.DetectionMode {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]domain.DetectionMode, len(m.channels))
	for k, v := range m.channels {
		out[k] = v
	}
	return out
}

func (m *ChangeMonitor) HighWaterMark(collection string) (time.Time, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mark, ok := m.marks[collection]
	return mark, ok
}

func (m *ChangeMonitor) categoryOf(collection string) sharedDomain.Category {
	if c, ok := m.categories[collection]; ok {
		return c
	}
	return sharedDomain.Classify(collection)
}

func (m *ChangeMonitor) collectionNames() []string {
	names := make([]string, 0, len(m.categories))
	for coll := range m.categories {
		names = append(names, coll)
	}
	sort.Strings(names)
	return names
}
