package logger

import (
	"go.uber.org/zap"
)

var log *zap.Logger

// Init inicializa el logger global con el nivel indicado ("debug", "info", ...).
// Un nivel inválido deja el nivel por defecto de producción (info).
func Init(level string) {
	var err error
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "json"            // Logs estructurados en JSON
	cfg.EncoderConfig.TimeKey = "ts" // timestamp
	cfg.EncoderConfig.MessageKey = "msg"
	cfg.EncoderConfig.LevelKey = "level"
	cfg.EncoderConfig.CallerKey = "caller"

	if lvl, parseErr := zap.ParseAtomicLevel(level); parseErr == nil {
		cfg.Level = lvl
	}

	log, err = cfg.Build()
	if err != nil {
		panic(err)
	}
}

// Sugar retorna un logger más “friendly” para usar con printf-like
func Sugar() *zap.SugaredLogger {
	return Logger().Sugar()
}

// Logger retorna el logger estructurado. Si Init no se llamó, devuelve un no-op.
func Logger() *zap.Logger {
	if log == nil {
		return zap.NewNop()
	}
	return log
}
