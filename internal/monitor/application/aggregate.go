package application

import (
	"math"

	"github.com/davicafu/hexapulse/internal/monitor/domain"
)

const recentReviewWindow = 50

// AggregateReviews resume la ventana reciente de reseñas: volumen, nota media,
// sentimiento medio y distribución de notas.
func AggregateReviews(docs []domain.Document) map[string]interface{} {
	var ratingSum, sentimentSum float64
	var rated, withSentiment int
	distribution := map[string]int{}

	for _, doc := range docs {
		if r, ok := toFloat(doc["rating"]); ok {
			ratingSum += r
			rated++
			distribution[ratingBucket(r)]++
		}
		if s, ok := toFloat(doc["sentiment"]); ok {
			sentimentSum += s
			withSentiment++
		}
	}

	out := map[string]interface{}{
		"count":              len(docs),
		"ratingDistribution": distribution,
	}
	if rated > 0 {
		out["averageRating"] = round2(ratingSum / float64(rated))
	}
	if withSentiment > 0 {
		out["averageSentiment"] = round2(sentimentSum / float64(withSentiment))
	}
	return out
}

// AggregateMetrics expone la última foto de métricas; nil si no hay ninguna.
func AggregateMetrics(latest domain.Document) map[string]interface{} {
	if latest == nil {
		return map[string]interface{}{"available": false}
	}
	return map[string]interface{}{
		"available": true,
		"latest":    latest.Sanitize(),
	}
}

func ratingBucket(r float64) string {
	switch b := int(math.Round(r)); {
	case b <= 1:
		return "1"
	case b >= 5:
		return "5"
	default:
		return string(rune('0' + b))
	}
}

// toFloat acepta los tipos numéricos que devuelven JSON y BSON.
func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
