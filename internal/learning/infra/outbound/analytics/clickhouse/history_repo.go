package clickhouse

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"

	"github.com/davicafu/hexapulse/internal/learning/domain"
)

// HistoryAnalyticsRepo guarda el historial de aprendizaje en ClickHouse y
// responde consultas agregadas por día.
type HistoryAnalyticsRepo struct {
	db *sql.DB
}

func NewHistoryAnalyticsRepo(addr string, dbName string) (*HistoryAnalyticsRepo, error) {
	conn := clickhouse.OpenDB(&clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{
			Database: dbName,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
	})

	if err := conn.Ping(); err != nil {
		return nil, fmt.Errorf("could not ping clickhouse: %w", err)
	}

	return &HistoryAnalyticsRepo{db: conn}, nil
}

// NewHistoryAnalyticsRepoFromDB reutiliza una conexión ya abierta.
func NewHistoryAnalyticsRepoFromDB(db *sql.DB) *HistoryAnalyticsRepo {
	return &HistoryAnalyticsRepo{db: db}
}

// Record inserta una entrada. ClickHouse sólo acepta inserciones por lote
// dentro de una transacción, aunque el lote sea de una fila.
func (r *HistoryAnalyticsRepo) Record(ctx context.Context, entry domain.HistoryEntry) error {
	adjustments, err := json.Marshal(entry.Adjustments)
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, "INSERT INTO learning_history (run_id, summary, metric, success, confidence_adjustment, adjustments, event_time)")
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	if _, err := stmt.ExecContext(ctx,
		entry.RunID,
		entry.RecommendationSummary,
		entry.Outcome.Metric,
		entry.Success,
		entry.Adjustments.ConfidenceAdjustment,
		string(adjustments),
		entry.Timestamp,
	); err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to exec statement for run %s: %w", entry.RunID, err)
	}

	return tx.Commit()
}

func (r *HistoryAnalyticsRepo) GetDailyTrend(ctx context.Context, start, end time.Time) ([]domain.DailyTrend, error) {
	query := `
		SELECT
			toStartOfDay(event_time) AS day,
			count() AS outcomes,
			countIf(success) AS successes
		FROM learning_history
		WHERE event_time BETWEEN ? AND ?
		GROUP BY day
		ORDER BY day
	`
	rows, err := r.db.QueryContext(ctx, query, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trends []domain.DailyTrend
	for rows.Next() {
		var trend domain.DailyTrend
		if err := rows.Scan(&trend.Day, &trend.Outcomes, &trend.Successes); err != nil {
			return nil, err
		}
		if trend.Outcomes > 0 {
			trend.SuccessRate = float64(trend.Successes) / float64(trend.Outcomes)
		}
		trends = append(trends, trend)
	}
	return trends, rows.Err()
}

// InitSchema crea la tabla si no existe; particionada por mes.
func (r *HistoryAnalyticsRepo) InitSchema(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS learning_history (
			run_id                String,
			summary               String,
			metric                String,
			success               Bool,
			confidence_adjustment Float64,
			adjustments           String,
			event_time            DateTime64(3)
		) ENGINE = MergeTree()
		PARTITION BY toYYYYMM(event_time)
		ORDER BY (event_time, run_id);
	`
	_, err := r.db.ExecContext(ctx, query)
	return err
}

func (r *HistoryAnalyticsRepo) Close() error {
	return r.db.Close()
}

// Verificación estática de la interfaz.
var _ domain.HistoryAnalytics = (*HistoryAnalyticsRepo)(nil)
