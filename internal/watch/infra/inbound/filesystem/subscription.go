package filesystem

import (
	"sync"

	"github.com/davicafu/hexapulse/internal/watch/domain"
)

// subscription entrega los eventos en orden. A diferencia de las
// notificaciones de la cola, aquí no se descarta nada: emit espera al lector
// hasta que éste cierra o el watcher se detiene.
type subscription struct {
	ch      chan domain.FileEvent
	closed  chan struct{}
	once    sync.Once
	watcher *FileWatcher
}

func (s *subscription) Events() <-chan domain.FileEvent {
	return s.ch
}

// Done se cierra con Close o cuando el watcher se detiene.
func (s *subscription) Done() <-chan struct{} {
	return s.closed
}

func (s *subscription) Close() {
	s.once.Do(func() {
		s.watcher.subsMu.Lock()
		delete(s.watcher.subs, s)
		s.watcher.subsMu.Unlock()
		close(s.closed)
	})
}

func (w *FileWatcher) Subscribe(buffer int) domain.FileSubscription {
	sub := &subscription{
		ch:      make(chan domain.FileEvent, buffer),
		closed:  make(chan struct{}),
		watcher: w,
	}
	w.subsMu.Lock()
	w.subs[sub] = struct{}{}
	w.subsMu.Unlock()
	return sub
}

func (w *FileWatcher) emit(evt domain.FileEvent) {
	w.subsMu.RLock()
	subs := make([]*subscription, 0, len(w.subs))
	for sub := range w.subs {
		subs = append(subs, sub)
	}
	w.subsMu.RUnlock()

	for _, sub := range subs {
		select {
		case sub.ch <- evt:
		case <-sub.closed:
		case <-w.done:
			return
		}
	}
}

func (w *FileWatcher) closeSubscriptions() {
	w.subsMu.RLock()
	subs := make([]*subscription, 0, len(w.subs))
	for sub := range w.subs {
		subs = append(subs, sub)
	}
	w.subsMu.RUnlock()

	for _, sub := range subs {
		sub.Close()
	}
}
