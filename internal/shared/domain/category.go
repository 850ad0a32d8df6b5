package domain

import (
	"path/filepath"
	"strings"
)

// Category es el conjunto cerrado de tipos lógicos de datos que entran al pipeline.
type Category string

const (
	CategoryReviews   Category = "reviews"
	CategoryMetrics   Category = "metrics"
	CategorySales     Category = "sales"
	CategoryCustomers Category = "customers"
	CategoryGeneral   Category = "general"
)

// classificationRules se evalúan en orden; la primera coincidencia gana.
var classificationRules = []struct {
	category Category
	needles  []string
}{
	{CategoryReviews, []string{"review", "feedback"}},
	{CategoryMetrics, []string{"metric", "analytics"}},
	{CategorySales, []string{"sales", "revenue"}},
	{CategoryCustomers, []string{"customer", "user"}},
}

// Classify asigna una categoría a un nombre de fichero o de colección
// buscando subcadenas conocidas (sin distinguir mayúsculas).
func Classify(name string) Category {
	lower := strings.ToLower(filepath.Base(name))
	for _, rule := range classificationRules {
		for _, needle := range rule.needles {
			if strings.Contains(lower, needle) {
				return rule.category
			}
		}
	}
	return CategoryGeneral
}

// ParseCategory convierte un string a Category; lo desconocido cae en general.
func ParseCategory(s string) Category {
	switch c := Category(strings.ToLower(strings.TrimSpace(s))); c {
	case CategoryReviews, CategoryMetrics, CategorySales, CategoryCustomers:
		return c
	default:
		return CategoryGeneral
	}
}
