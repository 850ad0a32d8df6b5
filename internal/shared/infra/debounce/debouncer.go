// Package debounce agrupa notificaciones repetidas de una misma clave en una
// sola invocación, usando siempre los datos de la última notificación.
package debounce

import (
	"sync"
	"time"
)

// Handler recibe la clave ya asentada y los datos de su última notificación.
type Handler[T any] func(key string, data T)

type pendingEntry[T any] struct {
	timer *time.Timer
	data  T
}

// Debouncer mantiene un temporizador por clave. Cada Notify sobre la misma
// clave cancela el anterior y arranca uno nuevo.
type Debouncer[T any] struct {
	delay   time.Duration
	handler Handler[T]

	mu      sync.Mutex
	pending map[string]*pendingEntry[T]
	stopped bool
}

func NewDebouncer[T any](delay time.Duration, handler Handler[T]) *Debouncer[T] {
	return &Debouncer[T]{
		delay:   delay,
		handler: handler,
		pending: make(map[string]*pendingEntry[T]),
	}
}

// Notify (re)arma el temporizador de la clave con los datos nuevos.
func (d *Debouncer[T]) Notify(key string, data T) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}

	if prev, ok := d.pending[key]; ok {
		prev.timer.Stop()
	}

	entry := &pendingEntry[T]{data: data}
	entry.timer = time.AfterFunc(d.delay, func() { d.fire(key, entry) })
	d.pending[key] = entry
}

// fire sólo invoca el handler si la entrada sigue siendo la vigente: un
// temporizador que ya disparó pero perdió la carrera contra Notify se descarta.
func (d *Debouncer[T]) fire(key string, entry *pendingEntry[T]) {
	d.mu.Lock()
	current, ok := d.pending[key]
	if !ok || current != entry || d.stopped {
		d.mu.Unlock()
		return
	}
	delete(d.pending, key)
	d.mu.Unlock()

	// Fuera del lock: el handler puede tardar (lectura de ficheros, etc.)
	if d.handler != nil {
		d.handler(key, entry.data)
	}
}

// Cancel descarta la clave pendiente, si existe.
func (d *Debouncer[T]) Cancel(key string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if entry, ok := d.pending[key]; ok {
		entry.timer.Stop()
		delete(d.pending, key)
	}
}

// Stop cancela todos los temporizadores; los Notify posteriores se ignoran.
func (d *Debouncer[T]) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopped = true
	for key, entry := range d.pending {
		entry.timer.Stop()
		delete(d.pending, key)
	}
}

// Pending devuelve cuántas claves esperan a que venza su temporizador.
func (d *Debouncer[T]) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

// Delay es la ventana que debe pasar sin Notify para que dispare el handler.
func (d *Debouncer[T]) Delay() time.Duration {
	return d.delay
}
