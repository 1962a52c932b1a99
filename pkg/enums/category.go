package enums

import (
	"fmt"
	"strings"
)

// ProductCategory is one of the canonical storefront categories.
type ProductCategory string

const (
	CategoryBaterias    ProductCategory = "Baterías"
	CategoryFrenos      ProductCategory = "Frenos"
	CategoryFiltros     ProductCategory = "Filtros"
	CategoryMotor       ProductCategory = "Motor"
	CategorySuspension  ProductCategory = "Suspensión"
	CategoryIluminacion ProductCategory = "Iluminación"
	CategoryLubricantes ProductCategory = "Lubricantes"
	CategoryAccesorios  ProductCategory = "Accesorios"
	CategoryOtros       ProductCategory = "Otros"
)

// CategoryAll is the filter sentinel meaning "no category filter".
const CategoryAll = "all"

var officialCategories = []ProductCategory{
	CategoryBaterias,
	CategoryFrenos,
	CategoryFiltros,
	CategoryMotor,
	CategorySuspension,
	CategoryIluminacion,
	CategoryLubricantes,
	CategoryAccesorios,
}

// OfficialCategories returns the eight official categories in display order.
func OfficialCategories() []ProductCategory {
	out := make([]ProductCategory, len(officialCategories))
	copy(out, officialCategories)
	return out
}

// String implements fmt.Stringer.
func (c ProductCategory) String() string {
	return string(c)
}

// IsOfficial reports whether the value is one of the eight official categories.
func (c ProductCategory) IsOfficial() bool {
	for _, candidate := range officialCategories {
		if candidate == c {
			return true
		}
	}
	return false
}

// IsValid reports whether the value is an official category or Otros.
func (c ProductCategory) IsValid() bool {
	return c == CategoryOtros || c.IsOfficial()
}

// ParseProductCategory accepts an exact canonical label, ignoring case.
func ParseProductCategory(value string) (ProductCategory, error) {
	trimmed := strings.TrimSpace(value)
	for _, candidate := range append(OfficialCategories(), CategoryOtros) {
		if strings.EqualFold(string(candidate), trimmed) {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid product category %q", value)
}
