// Package batch acumula cambios por identidad y, cuando deja de llegar
// actividad durante una ventana, entrega el lote completo una sola vez.
package batch

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// FireFunc recibe el lote acumulado. Se ejecuta en su propia goroutine.
type FireFunc[T any] func(ctx context.Context, items []T)

// Coordinator mantiene el mapa de pendientes (último valor por clave) y un
// único temporizador que se reinicia con cada llegada.
type Coordinator[T any] struct {
	name  string
	delay time.Duration
	fire  FireFunc[T]
	log   *zap.Logger

	mu      sync.Mutex
	order   []string
	pending map[string]T
	timer   *time.Timer
	gen     uint64
	stopped bool

	ctx context.Context
	wg  sync.WaitGroup
}

// NewCoordinator crea un coordinador; ctx se pasa a cada disparo.
func NewCoordinator[T any](ctx context.Context, name string, delay time.Duration, fire FireFunc[T], log *zap.Logger) *Coordinator[T] {
	return &Coordinator[T]{
		name:    name,
		delay:   delay,
		fire:    fire,
		log:     log,
		pending: make(map[string]T),
		ctx:     ctx,
	}
}

// Add inserta o reemplaza el elemento de la clave y rearma el temporizador.
// Una clave ya presente conserva su posición de llegada original.
func (c *Coordinator[T]) Add(key string, item T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stopped {
		return
	}

	if _, exists := c.pending[key]; !exists {
		c.order = append(c.order, key)
	}
	c.pending[key] = item

	c.gen++
	gen := c.gen
	if c.timer != nil {
		c.timer.Stop()
	}
	c.timer = time.AfterFunc(c.delay, func() { c.flush(gen) })

	c.log.Debug("⏱️ Batch rearmado",
		zap.String("batch", c.name),
		zap.Int("pending", len(c.pending)),
		zap.Duration("delay", c.delay),
	)
}

// flush toma el lote sólo si ninguna llegada posterior ha rearmado el temporizador.
func (c *Coordinator[T]) flush(gen uint64) {
	c.mu.Lock()
	if gen != c.gen || c.stopped {
		c.mu.Unlock()
		return
	}
	items := c.drainLocked()
	if len(items) > 0 {
		c.wg.Add(1)
	}
	c.mu.Unlock()

	if len(items) == 0 {
		return
	}
	defer c.wg.Done()

	c.log.Info("🔄 Procesando lote pendiente", zap.String("batch", c.name), zap.Int("items", len(items)))
	c.fire(c.ctx, items)
}

// Flush entrega ya lo pendiente, sin esperar al temporizador.
func (c *Coordinator[T]) Flush() {
	c.mu.Lock()
	c.gen++
	gen := c.gen
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.mu.Unlock()

	c.flush(gen)
}

func (c *Coordinator[T]) drainLocked() []T {
	items := make([]T, 0, len(c.order))
	for _, key := range c.order {
		items = append(items, c.pending[key])
	}
	c.order = nil
	c.pending = make(map[string]T)
	c.timer = nil
	return items
}

// Stop cancela el temporizador y descarta lo pendiente. Espera a que termine
// un disparo en curso.
func (c *Coordinator[T]) Stop() {
	c.mu.Lock()
	c.stopped = true
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	dropped := len(c.pending)
	c.order = nil
	c.pending = make(map[string]T)
	c.mu.Unlock()

	if dropped > 0 {
		c.log.Warn("Batch detenido con cambios pendientes", zap.String("batch", c.name), zap.Int("dropped", dropped))
	}
	c.wg.Wait()
}

// Pending devuelve el tamaño actual del lote.
func (c *Coordinator[T]) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}
