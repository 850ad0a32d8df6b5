package mocks

import (
	"github.com/stretchr/testify/mock"

	queueDomain "github.com/davicafu/hexapulse/internal/queue/domain"
)

type MockEnqueuer struct {
	mock.Mock
}

func (m *MockEnqueuer) Enqueue(eventType queueDomain.EventType, payload map[string]interface{}) (string, error) {
	args := m.Called(eventType, payload)
	return args.String(0), args.Error(1)
}
