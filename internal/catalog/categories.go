package catalog

import (
	"strings"
	"unicode"

	"github.com/angelmondragon/autoparts-backend/pkg/enums"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// categoryAliases maps folded (lowercase, accent-free) spellings onto the
// canonical category labels.
var categoryAliases = map[string]enums.ProductCategory{
	"bateria":        enums.CategoryBaterias,
	"baterias":       enums.CategoryBaterias,
	"battery":        enums.CategoryBaterias,
	"freno":          enums.CategoryFrenos,
	"frenos":         enums.CategoryFrenos,
	"pastillas":      enums.CategoryFrenos,
	"filtro":         enums.CategoryFiltros,
	"filtros":        enums.CategoryFiltros,
	"motor":          enums.CategoryMotor,
	"motores":        enums.CategoryMotor,
	"suspension":     enums.CategorySuspension,
	"suspensiones":   enums.CategorySuspension,
	"amortiguador":   enums.CategorySuspension,
	"amortiguadores": enums.CategorySuspension,
	"iluminacion":    enums.CategoryIluminacion,
	"luces":          enums.CategoryIluminacion,
	"ampolletas":     enums.CategoryIluminacion,
	"focos":          enums.CategoryIluminacion,
	"lubricante":     enums.CategoryLubricantes,
	"lubricantes":    enums.CategoryLubricantes,
	"aceite":         enums.CategoryLubricantes,
	"aceites":        enums.CategoryLubricantes,
	"accesorio":      enums.CategoryAccesorios,
	"accesorios":     enums.CategoryAccesorios,
	"otro":           enums.CategoryOtros,
	"otros":          enums.CategoryOtros,
}

func foldTransformer() transform.Transformer {
	return transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
}

// Fold lowercases s and strips diacritics.
func Fold(s string) string {
	folded, _, err := transform.String(foldTransformer(), strings.TrimSpace(s))
	if err != nil {
		folded = strings.TrimSpace(s)
	}
	return strings.ToLower(strings.Join(strings.Fields(folded), " "))
}

// CanonicalCategory maps a raw category onto its canonical label. Unknown
// values are returned trimmed with mapped=false.
func CanonicalCategory(raw string) (category string, mapped bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", true
	}
	if canonical, ok := categoryAliases[Fold(trimmed)]; ok {
		return canonical.String(), true
	}
	return trimmed, false
}

// CategoryBucket returns the filter bucket of a normalized category: the
// category itself when official, otherwise Otros.
func CategoryBucket(category string) enums.ProductCategory {
	c := enums.ProductCategory(category)
	if c.IsOfficial() {
		return c
	}
	return enums.CategoryOtros
}
