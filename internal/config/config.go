package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPPort string
	LogLevel string

	// Motor de análisis
	DemoMode          bool
	AnalysisEngineURL string
	AnalysisTimeout   time.Duration
	QueuePause        time.Duration

	// Vigilancia de directorios
	EnableFileWatcher bool
	WatchPath         string
	ProcessedPath     string
	WatchFileTypes    []string
	DebounceDelay     time.Duration
	TriggerDelay      time.Duration
	BatchMode         bool

	// Monitor de MongoDB
	EnableMongoMonitor bool
	MongoURI           string
	MongoDatabase      string
	Collections        map[string]string // categoría -> nombre de colección
	ResultsCollection  string
	PollInterval       time.Duration
	BatchDelay         time.Duration
	UseChangeStreams   bool

	// Outbox y entrega de eventos
	OutboxStore       string // sqlite | postgres | mongodb
	SQLitePath        string
	PostgresURL       string
	OutboxPeriod      time.Duration
	OutboxLimit       int
	WebhookURL        string
	WebhookSecret     string
	UseKafka          bool
	KafkaBrokers      []string
	KafkaChangeTopic  string
	KafkaTriggerTopic string

	// Caché y analítica
	RedisAddr          string
	CacheTTL           time.Duration
	ClickHouseAddr     string
	ClickHouseDatabase string
}

func LoadConfig() *Config {
	// Un .env es opcional; si no existe seguimos con el entorno del proceso.
	_ = godotenv.Load()

	getEnv := func(key, fallback string) string {
		if v := os.Getenv(key); v != "" {
			return v
		}
		return fallback
	}

	getDuration := func(key string, fallback time.Duration) time.Duration {
		if d, err := time.ParseDuration(getEnv(key, "")); err == nil {
			return d
		}
		return fallback
	}

	getBool := func(key string, fallback bool) bool {
		if b, err := strconv.ParseBool(getEnv(key, "")); err == nil {
			return b
		}
		return fallback
	}

	getInt := func(key string, fallback int) int {
		if n, err := strconv.Atoi(getEnv(key, "")); err == nil && n > 0 {
			return n
		}
		return fallback
	}

	return &Config{
		HTTPPort: getEnv("HTTP_PORT", "3000"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		DemoMode:          getBool("DEMO_MODE", true),
		AnalysisEngineURL: getEnv("ANALYSIS_ENGINE_URL", "http://localhost:8081/api/analysis"),
		AnalysisTimeout:   getDuration("ANALYSIS_TIMEOUT", 2*time.Minute),
		QueuePause:        getDuration("QUEUE_PAUSE", 100*time.Millisecond),

		EnableFileWatcher: getBool("ENABLE_FILE_WATCHER", true),
		WatchPath:         getEnv("DATA_WATCH_PATH", "./data-inbox"),
		ProcessedPath:     getEnv("DATA_PROCESSED_PATH", "./data-processed"),
		WatchFileTypes:    splitList(getEnv("WATCH_FILE_TYPES", ".json,.csv,.txt,.xml")),
		DebounceDelay:     getDuration("DEBOUNCE_DELAY", 1*time.Second),
		TriggerDelay:      getDuration("TRIGGER_DELAY", 5*time.Second),
		BatchMode:         getBool("BATCH_MODE", true),

		EnableMongoMonitor: getBool("ENABLE_MONGO_MONITOR", false),
		MongoURI:           getEnv("MONGODB_URI", "mongodb://localhost:27017"),
		MongoDatabase:      getEnv("MONGODB_DATABASE", "coo_assistant"),
		Collections: map[string]string{
			"reviews":   getEnv("MONGODB_REVIEWS_COLLECTION", "reviews"),
			"metrics":   getEnv("MONGODB_METRICS_COLLECTION", "metrics"),
			"sales":     getEnv("MONGODB_SALES_COLLECTION", "sales"),
			"customers": getEnv("MONGODB_CUSTOMERS_COLLECTION", "customers"),
		},
		ResultsCollection: getEnv("MONGODB_RESULTS_COLLECTION", "analysis_results"),
		PollInterval:      getDuration("POLL_INTERVAL", 5*time.Second),
		BatchDelay:        getDuration("BATCH_DELAY", 3*time.Second),
		UseChangeStreams:  getBool("USE_CHANGE_STREAMS", true),

		OutboxStore:       strings.ToLower(getEnv("OUTBOX_STORE", "sqlite")),
		SQLitePath:        getEnv("SQLITE_PATH", "./hexapulse_outbox.db"),
		PostgresURL:       getEnv("DATABASE_URL", ""),
		OutboxPeriod:      getDuration("OUTBOX_PERIOD", 1*time.Second),
		OutboxLimit:       getInt("OUTBOX_LIMIT", 10),
		WebhookURL:        getEnv("WEBHOOK_URL", ""),
		WebhookSecret:     getEnv("WEBHOOK_SECRET", ""),
		UseKafka:          getBool("USE_KAFKA", false),
		KafkaBrokers:      splitList(getEnv("KAFKA_BROKERS", "localhost:9092")),
		KafkaChangeTopic:  getEnv("KAFKA_CHANGE_TOPIC", "change-events"),
		KafkaTriggerTopic: getEnv("KAFKA_TRIGGER_TOPIC", "analysis-triggers"),

		RedisAddr:          getEnv("REDIS_ADDR", "localhost:6379"),
		CacheTTL:           getDuration("CACHE_TTL", 30*time.Second),
		ClickHouseAddr:     getEnv("CLICKHOUSE_ADDR", ""),
		ClickHouseDatabase: getEnv("CLICKHOUSE_DATABASE", "hexapulse"),
	}
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
