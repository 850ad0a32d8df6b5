package clickhouse

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davicafu/hexapulse/internal/learning/domain"
)

// Necesita un ClickHouse real: CLICKHOUSE_ADDR=localhost:9000
func TestHistoryAnalyticsRepo_Integration(t *testing.T) {
	addr := os.Getenv("CLICKHOUSE_ADDR")
	if addr == "" {
		t.Skip("CLICKHOUSE_ADDR no definido; se omite el test de integración con ClickHouse")
	}

	repo, err := NewHistoryAnalyticsRepo(addr, "default")
	require.NoError(t, err)
	defer repo.Close()

	ctx := context.Background()
	require.NoError(t, repo.InitSchema(ctx))

	now := time.Now().UTC()
	require.NoError(t, repo.Record(ctx, domain.HistoryEntry{
		RunID:     "run-" + uuid.NewString(),
		Success:   true,
		Timestamp: now,
	}))

	trend, err := repo.GetDailyTrend(ctx, now.Add(-time.Hour), now.Add(time.Hour))
	require.NoError(t, err)
	require.NotEmpty(t, trend)
	assert.GreaterOrEqual(t, trend[len(trend)-1].Successes, uint64(1))
}
