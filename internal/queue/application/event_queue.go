package application

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/davicafu/hexapulse/internal/queue/domain"
)

// EventQueue es una cola FIFO en memoria con un único drenador: como mucho
// un evento está en processing en cada momento.
type EventQueue struct {
	mu         sync.Mutex
	pending    []*domain.QueuedEvent
	events     map[string]*domain.QueuedEvent
	processing bool
	stopped    bool
	enqueued   int
	processed  int
	failed     int

	handlers map[domain.EventType]domain.Handler
	pause    time.Duration

	subsMu sync.RWMutex
	subs   map[*Subscription]struct{}

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	stopCh chan struct{}

	now func() time.Time
	log *zap.Logger
}

var _ domain.Enqueuer = (*EventQueue)(nil)

// NewEventQueue crea la cola; pause separa dos eventos consecutivos.
func NewEventQueue(pause time.Duration, log *zap.Logger) *EventQueue {
	ctx, cancel := context.WithCancel(context.Background())
	return &EventQueue{
		events:   make(map[string]*domain.QueuedEvent),
		handlers: make(map[domain.EventType]domain.Handler),
		pause:    pause,
		subs:     make(map[*Subscription]struct{}),
		ctx:      ctx,
		cancel:   cancel,
		stopCh:   make(chan struct{}),
		now:      time.Now,
		log:      log,
	}
}

// Register asocia un handler a un tipo de evento. Debe llamarse antes de encolar.
func (q *EventQueue) Register(eventType domain.EventType, handler domain.Handler) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers[eventType] = handler
}

// Enqueue añade el evento en pending y devuelve su id sin esperar a que se
// procese. Arranca el drenador si no está corriendo.
func (q *EventQueue) Enqueue(eventType domain.EventType, payload map[string]interface{}) (string, error) {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return "", domain.ErrQueueStopped
	}

	evt := &domain.QueuedEvent{
		ID:         "evt-" + uuid.NewString(),
		Type:       eventType,
		Payload:    payload,
		Status:     domain.StatusPending,
		EnqueuedAt: q.now(),
	}
	q.pending = append(q.pending, evt)
	q.events[evt.ID] = evt
	q.enqueued++
	snapshot := *evt

	startDrain := !q.processing
	if startDrain {
		q.processing = true
		q.wg.Add(1)
	}
	q.mu.Unlock()

	q.log.Info("📥 Event queued", zap.String("event_id", snapshot.ID), zap.String("type", string(eventType)))
	q.publish(domain.NotifyQueued, &snapshot)

	if startDrain {
		go q.drain()
	}
	return snapshot.ID, nil
}

func (q *EventQueue) drain() {
	defer q.wg.Done()

	for {
		q.mu.Lock()
		if len(q.pending) == 0 || q.stopped {
			q.processing = false
			q.mu.Unlock()
			q.publish(domain.NotifyQueueEmpty, nil)
			return
		}

		evt := q.pending[0]
		q.pending[0] = nil
		q.pending = q.pending[1:]

		started := q.now()
		evt.Status = domain.StatusProcessing
		evt.StartedAt = &started
		handler := q.handlers[evt.Type]
		running := *evt
		q.mu.Unlock()

		q.log.Info("⚙️ Processing event", zap.String("event_id", running.ID))
		q.publish(domain.NotifyProcessing, &running)

		err := q.dispatch(handler, running)

		q.mu.Lock()
		finished := q.now()
		kind := domain.NotifyCompleted
		if err != nil {
			evt.Status = domain.StatusFailed
			evt.Error = err.Error()
			evt.FailedAt = &finished
			q.failed++
			kind = domain.NotifyFailed
		} else {
			evt.Status = domain.StatusCompleted
			evt.CompletedAt = &finished
			q.processed++
		}
		// Copia nueva: los observadores siguen leyendo la de processing.
		done := *evt
		q.mu.Unlock()

		if err != nil {
			q.log.Error("❌ Event failed", zap.String("event_id", done.ID), zap.Error(err))
		} else {
			q.log.Info("✅ Event completed", zap.String("event_id", done.ID))
		}
		q.publish(kind, &done)

		if q.pause > 0 {
			select {
			case <-time.After(q.pause):
			case <-q.stopCh:
			}
		}
	}
}

// dispatch aísla un panic del handler: el evento falla pero la cola sigue.
func (q *EventQueue) dispatch(handler domain.Handler, evt domain.QueuedEvent) (err error) {
	if handler == nil {
		return fmt.Errorf("%w: %s", domain.ErrUnknownEventType, evt.Type)
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return handler.Handle(q.ctx, evt)
}

// Status devuelve la foto actual de la cola.
func (q *EventQueue) Status() domain.Status {
	q.mu.Lock()
	defer q.mu.Unlock()

	rate := "N/A"
	if done := q.processed + q.failed; done > 0 {
		rate = fmt.Sprintf("%.1f%%", float64(q.processed)/float64(done)*100)
	}
	return domain.Status{
		QueueLength: len(q.pending),
		Processing:  q.processing,
		Processed:   q.processed,
		Failed:      q.failed,
		Enqueued:    q.enqueued,
		SuccessRate: rate,
	}
}

// Get devuelve una copia del evento.
func (q *EventQueue) Get(id string) (domain.QueuedEvent, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	evt, ok := q.events[id]
	if !ok {
		return domain.QueuedEvent{}, domain.ErrEventNotFound
	}
	return *evt, nil
}

// PendingEvents devuelve, en orden, los eventos que aún no han empezado.
func (q *EventQueue) PendingEvents() []domain.QueuedEvent {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]domain.QueuedEvent, 0, len(q.pending))
	for _, evt := range q.pending {
		out = append(out, *evt)
	}
	return out
}

// Stop deja de aceptar y de sacar eventos, y espera a que termine el que
// esté en curso. Si ctx vence antes, cancela el contexto de los handlers.
func (q *EventQueue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return nil
	}
	q.stopped = true
	close(q.stopCh)
	left := len(q.pending)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	defer q.closeSubscriptions()
	select {
	case <-done:
		q.cancel()
		q.log.Info("🛑 Event queue detenida", zap.Int("pending_discarded", left))
		return nil
	case <-ctx.Done():
		q.cancel()
		<-done
		return ctx.Err()
	}
}
