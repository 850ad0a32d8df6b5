package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/segmentio/kafka-go"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	analysisApp "github.com/davicafu/hexapulse/internal/analysis/application"
	analysisDomain "github.com/davicafu/hexapulse/internal/analysis/domain"
	analysisDemo "github.com/davicafu/hexapulse/internal/analysis/infra/outbound/demo"
	analysisHttp "github.com/davicafu/hexapulse/internal/analysis/infra/outbound/http"
	"github.com/davicafu/hexapulse/internal/config"
	learningApp "github.com/davicafu/hexapulse/internal/learning/application"
	learningDomain "github.com/davicafu/hexapulse/internal/learning/domain"
	learningHttp "github.com/davicafu/hexapulse/internal/learning/infra/inbound/http"
	learningClickhouse "github.com/davicafu/hexapulse/internal/learning/infra/outbound/analytics/clickhouse"
	monitorApp "github.com/davicafu/hexapulse/internal/monitor/application"
	monitorMongo "github.com/davicafu/hexapulse/internal/monitor/infra/outbound/db/mongodb"
	queueApp "github.com/davicafu/hexapulse/internal/queue/application"
	queueEvents "github.com/davicafu/hexapulse/internal/queue/infra/inbound/events"
	queueHttp "github.com/davicafu/hexapulse/internal/queue/infra/inbound/http"
	sharedDomain "github.com/davicafu/hexapulse/internal/shared/domain"
	sharedEvents "github.com/davicafu/hexapulse/internal/shared/infra/events"
	sharedBus "github.com/davicafu/hexapulse/internal/shared/infra/platform/bus"
	sharedCache "github.com/davicafu/hexapulse/internal/shared/infra/platform/cache"
	outboxMongo "github.com/davicafu/hexapulse/internal/shared/infra/platform/db/mongodb"
	outboxPostgres "github.com/davicafu/hexapulse/internal/shared/infra/platform/db/postgres"
	outboxSQLite "github.com/davicafu/hexapulse/internal/shared/infra/platform/db/sqlite"
	"github.com/davicafu/hexapulse/internal/shared/infra/relayer"
	sharedUtils "github.com/davicafu/hexapulse/internal/shared/infra/utils"
	watchApp "github.com/davicafu/hexapulse/internal/watch/application"
	watchFS "github.com/davicafu/hexapulse/internal/watch/infra/inbound/filesystem"
	watchStorage "github.com/davicafu/hexapulse/internal/watch/infra/outbound/filesystem"
	"github.com/davicafu/hexapulse/pkg/logger"

	_ "modernc.org/sqlite"
)

const (
	shutdownTimeout      = 15 * time.Second
	mongoConnectAttempts = 3
	mongoConnectDelay    = 2 * time.Second
)

// outboxStore agrupa los dos lados del outbox: el monitor escribe y el relayer lee.
type outboxStore interface {
	sharedDomain.OutboxRepository
	sharedDomain.OutboxWriter
}

// ---------------- Main ----------------
func main() {
	cfg := config.LoadConfig()
	logger.Init(cfg.LogLevel)
	log := logger.Logger()
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ---------------- MongoDB ----------------
	var mongoClient *mongo.Client
	if cfg.EnableMongoMonitor || cfg.OutboxStore == "mongodb" {
		var client *mongo.Client
		err := sharedUtils.Retry(ctx, mongoConnectAttempts, mongoConnectDelay, func() error {
			c, err := monitorMongo.Connect(ctx, cfg.MongoURI)
			if err != nil {
				log.Warn("⚠️ MongoDB no responde, reintentando", zap.Error(err))
				return err
			}
			client = c
			return nil
		})
		if err != nil {
			log.Fatal("failed to connect MongoDB", zap.Error(err))
		}
		mongoClient = client
		defer func() {
			if err := client.Disconnect(context.Background()); err != nil && !errors.Is(err, mongo.ErrClientDisconnected) {
				log.Warn("⚠️ Error al desconectar MongoDB", zap.Error(err))
			}
		}()
		log.Info("✅ MongoDB conectado", zap.String("database", cfg.MongoDatabase))
	}

	// ---------------- Outbox ----------------
	outbox, closeOutbox, err := openOutbox(ctx, cfg, mongoClient, log)
	if err != nil {
		log.Fatal("failed to open outbox store", zap.String("store", cfg.OutboxStore), zap.Error(err))
	}
	defer closeOutbox()

	// ---------------- Cache ----------------
	var cacheInstance sharedCache.Cache
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Warn("⚠️ Redis no disponible, cache en memoria:", zap.Error(err))
		memCache := sharedCache.NewInMemoryCache(cfg.CacheTTL, 3*cfg.CacheTTL)
		defer memCache.Stop()
		cacheInstance = memCache
	} else {
		cacheInstance = sharedCache.NewRedisCache(rdb, cfg.CacheTTL)
		log.Info("✅ Redis conectado, cache habilitado")
	}
	defer rdb.Close()

	// ---------------- Learning ----------------
	var analytics learningDomain.HistoryAnalytics
	if cfg.ClickHouseAddr != "" {
		repo, err := learningClickhouse.NewHistoryAnalyticsRepo(cfg.ClickHouseAddr, cfg.ClickHouseDatabase)
		if err != nil {
			log.Warn("⚠️ ClickHouse no disponible, sin analítica de historial", zap.Error(err))
		} else if err := repo.InitSchema(ctx); err != nil {
			log.Warn("⚠️ No se pudo crear el esquema de ClickHouse", zap.Error(err))
			repo.Close()
		} else {
			defer repo.Close()
			analytics = repo
			log.Info("✅ ClickHouse conectado", zap.String("database", cfg.ClickHouseDatabase))
		}
	}

	learningService := learningApp.NewLearningService(learningApp.NewCoordinator(log), cacheInstance, cfg.CacheTTL, analytics, log)
	defer learningService.Close()

	// ---------------- Análisis ----------------
	var runner analysisDomain.Runner
	if cfg.DemoMode {
		log.Info("🧪 Motor de análisis en modo demo")
		runner = analysisDemo.NewRunner(log)
	} else {
		log.Info("🔗 Motor de análisis remoto", zap.String("url", cfg.AnalysisEngineURL))
		runner = analysisHttp.NewRemoteRunner(cfg.AnalysisEngineURL, nil, log)
	}
	orchestrator := analysisApp.NewOrchestrator(runner, learningService, cfg.AnalysisTimeout, log)

	// ---------------- Cola ----------------
	queue := queueApp.NewEventQueue(cfg.QueuePause, log)
	queueApp.RegisterDefaultHandlers(queue, orchestrator, learningService, log)

	// ---------------- Events ----------------
	publisher, closeBus := newEventBus(cfg, log)
	defer closeBus()

	// Los disparadores externos sólo llegan por Kafka; sin Kafka la entrada
	// es la API HTTP (/api/analyze, /api/webhook, /api/outcomes).
	if cfg.UseKafka {
		triggerReader := kafka.NewReader(kafka.ReaderConfig{
			Brokers:  cfg.KafkaBrokers,
			Topic:    cfg.KafkaTriggerTopic,
			GroupID:  "hexapulse-trigger-service",
			MinBytes: 10e3, // 10KB
			MaxBytes: 10e6, // 10MB
		})
		defer triggerReader.Close()
		triggerConsumer := queueEvents.NewTriggerConsumer(queue, log)
		sharedEvents.NewConsumerAdapter(triggerReader, triggerConsumer, log).Start(ctx)
	}

	// ------------ Outbox Worker ------------
	outboxWorker := relayer.NewOutboxWorker(outbox, publisher, sharedDomain.NewEventRegistry(), cfg.OutboxPeriod, cfg.OutboxLimit, log)
	go outboxWorker.Start(ctx)

	// ---------------- Directorio ----------------
	var (
		fileWatcher *watchFS.FileWatcher
		dataMonitor *watchApp.DataMonitor
	)
	if cfg.EnableFileWatcher {
		fileWatcher, err = watchFS.NewFileWatcher(cfg.WatchPath, cfg.WatchFileTypes, cfg.DebounceDelay, log)
		if err != nil {
			log.Fatal("failed to create file watcher", zap.Error(err))
		}
		storage := watchStorage.NewRunStorage(cfg.ProcessedPath, log)
		dataMonitor = watchApp.NewDataMonitor(fileWatcher, orchestrator, storage, cfg.TriggerDelay, cfg.BatchMode, log)
		log.Info("📂 Vigilando directorio",
			zap.String("path", cfg.WatchPath),
			zap.String("mode", sharedUtils.Ternary(cfg.BatchMode, "batch", "immediate")),
		)
		dataMonitor.Start(ctx)
		if err := fileWatcher.Start(ctx); err != nil {
			log.Fatal("failed to start file watcher", zap.String("path", cfg.WatchPath), zap.Error(err))
		}
	}

	// ---------------- Monitor MongoDB ----------------
	var changeMonitor *monitorApp.ChangeMonitor
	if cfg.EnableMongoMonitor {
		collections := make(map[sharedDomain.Category]string, len(cfg.Collections))
		for category, name := range cfg.Collections {
			collections[sharedDomain.ParseCategory(category)] = name
		}
		source := monitorMongo.NewChangeSourceMongo(mongoClient, cfg.MongoDatabase, log)
		changeMonitor = monitorApp.NewChangeMonitor(source, orchestrator, outbox, monitorApp.MonitorConfig{
			Database:          cfg.MongoDatabase,
			Collections:       collections,
			ResultsCollection: cfg.ResultsCollection,
			PollInterval:      cfg.PollInterval,
			BatchDelay:        cfg.BatchDelay,
			UseChangeStreams:  cfg.UseChangeStreams,
		}, log)
		if err := changeMonitor.Start(ctx); err != nil {
			log.Fatal("failed to start MongoDB monitor", zap.Error(err))
		}
	}

	// ---------------- HTTP ----------------
	router := gin.Default()
	queueHttp.RegisterQueueRoutes(router, queueHttp.NewQueueHandler(queue, cfg.WebhookSecret, log))
	learningHttp.RegisterLearningRoutes(router, learningHttp.NewMetricsHandler(learningService))

	router.GET("/health", func(c *gin.Context) {
		body := gin.H{
			"status":    "ok",
			"timestamp": time.Now().UTC(),
			"queue":     queue.Status(),
		}
		if changeMonitor != nil {
			body["mongodb"] = changeMonitor.Channels()
		}
		if fileWatcher != nil {
			if snapshot, err := fileWatcher.Snapshot(); err == nil {
				body["watchDirectory"] = snapshot
			} else {
				body["watchDirectory"] = gin.H{"error": err.Error()}
			}
		}
		c.JSON(http.StatusOK, body)
	})

	srv := &http.Server{Addr: ":" + cfg.HTTPPort, Handler: router}
	go func() {
		log.Info("🚀 Server running", zap.String("url", "http://localhost:"+cfg.HTTPPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("failed to start server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("🛑 Señal recibida, apagando...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("⚠️ Error al cerrar el servidor HTTP", zap.Error(err))
	}
	if fileWatcher != nil {
		fileWatcher.Stop()
		dataMonitor.Stop()
	}
	if changeMonitor != nil {
		if err := changeMonitor.Stop(shutdownCtx); err != nil {
			log.Warn("⚠️ Error al detener el monitor de MongoDB", zap.Error(err))
		}
	}
	if err := queue.Stop(shutdownCtx); err != nil {
		log.Warn("⚠️ Error al detener la cola", zap.Error(err))
	}
	log.Info("👋 Apagado completo")
}

// openOutbox abre el almacén elegido por OUTBOX_STORE y crea su esquema.
func openOutbox(ctx context.Context, cfg *config.Config, mongoClient *mongo.Client, log *zap.Logger) (outboxStore, func(), error) {
	switch cfg.OutboxStore {
	case "postgres":
		db, err := outboxPostgres.Open(ctx, cfg.PostgresURL)
		if err != nil {
			return nil, nil, err
		}
		if err := outboxPostgres.InitSchema(ctx, db); err != nil {
			db.Close()
			return nil, nil, err
		}
		log.Info("📦 Outbox en Postgres")
		return outboxPostgres.NewOutboxRepoPostgres(db), func() { db.Close() }, nil

	case "mongodb":
		repo := outboxMongo.NewOutboxRepoMongoDB(mongoClient, cfg.MongoDatabase)
		if err := repo.EnsureIndexes(ctx); err != nil {
			return nil, nil, err
		}
		log.Info("📦 Outbox en MongoDB")
		return repo, func() {}, nil

	default:
		db, err := sql.Open("sqlite", cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		if err := outboxSQLite.InitSQLite(db); err != nil {
			db.Close()
			return nil, nil, err
		}
		log.Info("📦 Outbox en SQLite", zap.String("path", cfg.SQLitePath))
		return outboxSQLite.NewOutboxRepoSQLite(db), func() { db.Close() }, nil
	}
}

// newEventBus elige el destino de los sobres de cambio: webhook, Kafka o memoria.
func newEventBus(cfg *config.Config, log *zap.Logger) (sharedBus.EventBus, func()) {
	switch {
	case cfg.WebhookURL != "":
		log.Info("🔗 Publicando cambios por webhook", zap.String("url", cfg.WebhookURL))
		return sharedEvents.NewWebhookPublisher(cfg.WebhookURL, cfg.WebhookSecret, nil, log), func() {}

	case cfg.UseKafka:
		log.Info("🚀 Usando Kafka como bus de eventos")
		writer := kafka.NewWriter(kafka.WriterConfig{
			Brokers: cfg.KafkaBrokers,
			Topic:   cfg.KafkaChangeTopic,
		})
		return sharedEvents.NewKafkaPublisher(writer, log), func() { writer.Close() }

	default:
		log.Info("⚡️Usando bus de eventos en memoria (canales de Go)")
		bus := sharedEvents.NewInMemoryEventBus(cfg.KafkaChangeTopic)
		changes := bus.Subscribe(100)
		go func() {
			for msg := range changes {
				log.Debug("📨 Sobre de cambio publicado", zap.ByteString("envelope", msg))
			}
		}()
		return bus, bus.Close
	}
}
