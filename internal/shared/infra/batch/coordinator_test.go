package batch

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type change struct {
	key string
	op  string
}

type batchRecorder struct {
	mu      sync.Mutex
	batches [][]change
}

func (r *batchRecorder) fire(_ context.Context, items []change) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches = append(r.batches, items)
}

func (r *batchRecorder) snapshot() [][]change {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]change(nil), r.batches...)
}

func TestCoordinator_LastWriteWinsPerKey(t *testing.T) {
	// Arrange
	rec := &batchRecorder{}
	c := NewCoordinator[change](context.Background(), "test", 40*time.Millisecond, rec.fire, zap.NewNop())

	// Act: insert y luego update del mismo documento dentro de la ventana
	c.Add("reviews-1", change{key: "reviews-1", op: "insert"})
	c.Add("metrics-7", change{key: "metrics-7", op: "insert"})
	c.Add("reviews-1", change{key: "reviews-1", op: "update"})

	// Assert
	require.Eventually(t, func() bool { return len(rec.snapshot()) == 1 }, time.Second, 5*time.Millisecond)
	batch := rec.snapshot()[0]
	require.Len(t, batch, 2)
	assert.Equal(t, change{key: "reviews-1", op: "update"}, batch[0], "la clave conserva su posición y trae el último valor")
	assert.Equal(t, "metrics-7", batch[1].key)
}

func TestCoordinator_TimerResetsOnEachArrival(t *testing.T) {
	rec := &batchRecorder{}
	c := NewCoordinator[change](context.Background(), "test", 60*time.Millisecond, rec.fire, zap.NewNop())

	for i := 0; i < 5; i++ {
		c.Add("k"+string(rune('a'+i)), change{op: "insert"})
		time.Sleep(20 * time.Millisecond)
	}
	// 100ms después de la primera llegada aún no debe haber disparado
	assert.Empty(t, rec.snapshot())

	require.Eventually(t, func() bool { return len(rec.snapshot()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Len(t, rec.snapshot()[0], 5)
	assert.Equal(t, 0, c.Pending())
}

func TestCoordinator_FiresOncePerBatch(t *testing.T) {
	rec := &batchRecorder{}
	c := NewCoordinator[change](context.Background(), "test", 20*time.Millisecond, rec.fire, zap.NewNop())

	c.Add("a", change{key: "a"})
	require.Eventually(t, func() bool { return len(rec.snapshot()) == 1 }, time.Second, 5*time.Millisecond)

	c.Add("b", change{key: "b"})
	require.Eventually(t, func() bool { return len(rec.snapshot()) == 2 }, time.Second, 5*time.Millisecond)

	time.Sleep(50 * time.Millisecond)
	batches := rec.snapshot()
	require.Len(t, batches, 2)
	assert.Equal(t, []change{{key: "a"}}, batches[0])
	assert.Equal(t, []change{{key: "b"}}, batches[1])
}

func TestCoordinator_StopDropsPending(t *testing.T) {
	rec := &batchRecorder{}
	c := NewCoordinator[change](context.Background(), "test", 20*time.Millisecond, rec.fire, zap.NewNop())

	c.Add("a", change{key: "a"})
	c.Stop()
	c.Add("b", change{key: "b"})

	time.Sleep(60 * time.Millisecond)
	assert.Empty(t, rec.snapshot())
}

func TestCoordinator_FlushDeliversImmediately(t *testing.T) {
	rec := &batchRecorder{}
	c := NewCoordinator[change](context.Background(), "test", time.Hour, rec.fire, zap.NewNop())

	c.Add("a", change{key: "a"})
	c.Flush()

	require.Len(t, rec.snapshot(), 1)
	assert.Equal(t, 0, c.Pending())
}
