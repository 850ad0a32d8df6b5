package mocks

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	sharedDomain "github.com/davicafu/hexapulse/internal/shared/domain"
)

// MockOutboxRepository simula el lado lector del outbox.
type MockOutboxRepository struct {
	mock.Mock
}

func (m *MockOutboxRepository) FetchPendingOutbox(ctx context.Context, limit int) ([]sharedDomain.OutboxEvent, error) {
	args := m.Called(ctx, limit)
	return args.Get(0).([]sharedDomain.OutboxEvent), args.Error(1)
}

func (m *MockOutboxRepository) MarkOutboxProcessed(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockPublisher simula un EventBus.
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, event interface{}) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

// InMemoryOutbox acumula lo que escriben los monitores.
type InMemoryOutbox struct {
	mu     sync.Mutex
	Events []sharedDomain.OutboxEvent
}

func (o *InMemoryOutbox) AppendOutbox(_ context.Context, evt sharedDomain.OutboxEvent) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.Events = append(o.Events, evt)
	return nil
}

// Snapshot copia los eventos escritos hasta ahora.
func (o *InMemoryOutbox) Snapshot() []sharedDomain.OutboxEvent {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]sharedDomain.OutboxEvent(nil), o.Events...)
}
