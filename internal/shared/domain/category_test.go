package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	cases := map[string]Category{
		"reviews_startup_42.json":           CategoryReviews,
		"/inbox/2024/Customer_Feedback.csv": CategoryReviews, // review/feedback tiene prioridad
		"weekly-METRICS.json":               CategoryMetrics,
		"mixpanel_analytics.txt":            CategoryMetrics,
		"q3_revenue.xml":                    CategorySales,
		"users_export.csv":                  CategoryCustomers,
		"notes.txt":                         CategoryGeneral,
	}

	for name, expected := range cases {
		assert.Equal(t, expected, Classify(name), "clasificación incorrecta para %s", name)
	}
}

func TestParseCategory(t *testing.T) {
	assert.Equal(t, CategorySales, ParseCategory(" Sales "))
	assert.Equal(t, CategoryGeneral, ParseCategory("alerts"))
}
