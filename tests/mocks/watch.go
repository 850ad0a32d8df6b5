package mocks

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	watchDomain "github.com/davicafu/hexapulse/internal/watch/domain"
)

// FakeFileSource entrega a sus suscriptores lo que el test emite con Emit.
type FakeFileSource struct {
	mu   sync.Mutex
	subs []*fakeFileSubscription
}

type fakeFileSubscription struct {
	ch     chan watchDomain.FileEvent
	closed chan struct{}
	once   sync.Once
}

func (s *fakeFileSubscription) Events() <-chan watchDomain.FileEvent { return s.ch }
func (s *fakeFileSubscription) Done() <-chan struct{}                { return s.closed }
func (s *fakeFileSubscription) Close()                               { s.once.Do(func() { close(s.closed) }) }

func (f *FakeFileSource) Subscribe(buffer int) watchDomain.FileSubscription {
	sub := &fakeFileSubscription{
		ch:     make(chan watchDomain.FileEvent, buffer),
		closed: make(chan struct{}),
	}
	f.mu.Lock()
	f.subs = append(f.subs, sub)
	f.mu.Unlock()
	return sub
}

// Emit bloquea hasta que cada suscripción abierta acepta el evento.
func (f *FakeFileSource) Emit(evt watchDomain.FileEvent) {
	f.mu.Lock()
	subs := append([]*fakeFileSubscription(nil), f.subs...)
	f.mu.Unlock()

	for _, sub := range subs {
		select {
		case sub.ch <- evt:
		case <-sub.closed:
		}
	}
}

// MockRunStorage registra lo que el monitor archiva y guarda.
type MockRunStorage struct {
	mock.Mock
}

func (m *MockRunStorage) ArchiveFiles(ctx context.Context, runID string, paths []string) ([]string, error) {
	args := m.Called(ctx, runID, paths)
	moved, _ := args.Get(0).([]string)
	return moved, args.Error(1)
}

func (m *MockRunStorage) SaveResult(ctx context.Context, runID string, result interface{}) error {
	args := m.Called(ctx, runID, result)
	return args.Error(0)
}
