package application

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/davicafu/hexapulse/internal/monitor/domain"
)

func TestAggregateReviews(t *testing.T) {
	docs := []domain.Document{
		{"rating": int32(5), "sentiment": 0.9},
		{"rating": 2.0, "sentiment": -0.4},
		{"rating": int64(4)},
		{"text": "sin nota"},
	}

	agg := AggregateReviews(docs)

	assert.Equal(t, 4, agg["count"])
	assert.Equal(t, 3.67, agg["averageRating"])
	assert.Equal(t, 0.25, agg["averageSentiment"])
	assert.Equal(t, map[string]int{"5": 1, "2": 1, "4": 1}, agg["ratingDistribution"])
}

func TestAggregateReviews_Empty(t *testing.T) {
	agg := AggregateReviews(nil)

	assert.Equal(t, 0, agg["count"])
	assert.NotContains(t, agg, "averageRating")
}

func TestAggregateMetrics(t *testing.T) {
	assert.Equal(t, false, AggregateMetrics(nil)["available"])

	agg := AggregateMetrics(domain.Document{"_id": "x", "mrr": 1200})
	assert.Equal(t, true, agg["available"])
	assert.Equal(t, map[string]interface{}{"mrr": 1200}, agg["latest"])
}
