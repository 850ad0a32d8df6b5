package application

import (
	"sync"

	"github.com/davicafu/hexapulse/internal/queue/domain"
)

// Subscription recibe las notificaciones de ciclo de vida de la cola. Un
// observador lento pierde notificaciones; nunca frena el drenado.
type Subscription struct {
	C     <-chan domain.Notification
	ch    chan domain.Notification
	queue *EventQueue
	once  sync.Once
}

// Subscribe registra un observador con el buffer indicado.
func (q *EventQueue) Subscribe(buffer int) *Subscription {
	ch := make(chan domain.Notification, buffer)
	sub := &Subscription{C: ch, ch: ch, queue: q}

	q.subsMu.Lock()
	q.subs[sub] = struct{}{}
	q.subsMu.Unlock()
	return sub
}

// Close da de baja al observador y cierra su canal. Idempotente.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.queue.subsMu.Lock()
		delete(s.queue.subs, s)
		s.queue.subsMu.Unlock()
		close(s.ch)
	})
}

func (q *EventQueue) publish(kind domain.NotificationKind, evt *domain.QueuedEvent) {
	n := domain.Notification{Kind: kind, Event: evt}

	q.subsMu.RLock()
	defer q.subsMu.RUnlock()
	for sub := range q.subs {
		select {
		case sub.ch <- n:
		default:
		}
	}
}

func (q *EventQueue) closeSubscriptions() {
	q.subsMu.RLock()
	subs := make([]*Subscription, 0, len(q.subs))
	for sub := range q.subs {
		subs = append(subs, sub)
	}
	q.subsMu.RUnlock()

	for _, sub := range subs {
		sub.Close()
	}
}
