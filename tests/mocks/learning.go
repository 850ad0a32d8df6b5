package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	learningDomain "github.com/davicafu/hexapulse/internal/learning/domain"
)

type MockHistoryAnalytics struct {
	mock.Mock
}

func (m *MockHistoryAnalytics) Record(ctx context.Context, entry learningDomain.HistoryEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockHistoryAnalytics) GetDailyTrend(ctx context.Context, start, end time.Time) ([]learningDomain.DailyTrend, error) {
	args := m.Called(ctx, start, end)
	return args.Get(0).([]learningDomain.DailyTrend), args.Error(1)
}
