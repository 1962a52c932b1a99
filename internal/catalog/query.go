package catalog

import (
	"fmt"
	"sort"
	"strings"

	"github.com/angelmondragon/autoparts-backend/pkg/enums"
	"github.com/angelmondragon/autoparts-backend/pkg/pagination"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// SortOption selects one of the four catalog orderings.
type SortOption string

const (
	SortFeatured  SortOption = "featured"
	SortPriceAsc  SortOption = "price_asc"
	SortPriceDesc SortOption = "price_desc"
	SortRecent    SortOption = "recent"
)

// ParseSortOption maps an empty value onto SortFeatured.
func ParseSortOption(value string) (SortOption, error) {
	switch SortOption(strings.ToLower(strings.TrimSpace(value))) {
	case "", SortFeatured:
		return SortFeatured, nil
	case SortPriceAsc:
		return SortPriceAsc, nil
	case SortPriceDesc:
		return SortPriceDesc, nil
	case SortRecent:
		return SortRecent, nil
	default:
		return "", fmt.Errorf("invalid sort option %q", value)
	}
}

// Query is the catalog filter state plus the requested page.
type Query struct {
	SearchTerm string
	Category   string
	Tags       []string
	Sort       SortOption
	Page       int
}

// Result is one page of the filtered, sorted catalog.
type Result struct {
	Items      []Product `json:"items"`
	Total      int       `json:"total"`
	Page       int       `json:"page"`
	PageSize   int       `json:"page_size"`
	TotalPages int       `json:"total_pages"`
}

// Run filters, sorts and paginates products. The input slice is not modified.
func Run(products []Product, q Query) Result {
	filtered := Filter(products, q)
	Sort(filtered, q.Sort)

	items, page := pagination.Slice(filtered, q.Page, pagination.CatalogPageSize)
	return Result{
		Items:      items,
		Total:      page.Total,
		Page:       page.Number,
		PageSize:   page.Size,
		TotalPages: page.TotalPages,
	}
}

// Filter returns the products matching every predicate of q, in input order.
func Filter(products []Product, q Query) []Product {
	term := strings.ToLower(strings.TrimSpace(q.SearchTerm))
	tags := NormalizeTags(q.Tags)

	out := make([]Product, 0, len(products))
	for _, p := range products {
		if !matchesSearch(p, term) || !matchesCategory(p, q.Category) || !matchesTags(p, tags) {
			continue
		}
		out = append(out, p)
	}
	return out
}

func matchesSearch(p Product, term string) bool {
	if term == "" {
		return true
	}
	haystack := strings.ToLower(strings.Join([]string{
		p.Name, p.Category, p.Description, strings.Join(p.Tags, " "),
	}, " "))
	return strings.Contains(haystack, term)
}

// matchesCategory treats "" and "all" as no filter. Selecting Otros also
// matches categories that did not map onto an official label.
func matchesCategory(p Product, selected string) bool {
	selected = strings.TrimSpace(selected)
	if selected == "" || strings.EqualFold(selected, enums.CategoryAll) {
		return true
	}
	if p.Category == selected {
		return true
	}
	return selected == enums.CategoryOtros.String() && CategoryBucket(p.Category) == enums.CategoryOtros
}

func matchesTags(p Product, selected []string) bool {
	if len(selected) == 0 {
		return true
	}
	for _, want := range selected {
		for _, have := range p.Tags {
			if have == want {
				return true
			}
		}
	}
	return false
}

// Sort orders products in place. Unknown options sort as featured.
func Sort(products []Product, option SortOption) {
	switch option {
	case SortPriceAsc, SortPriceDesc:
		col := collate.New(language.Spanish, collate.IgnoreCase)
		desc := option == SortPriceDesc
		sort.SliceStable(products, func(i, j int) bool {
			a, b := products[i].Display.Final, products[j].Display.Final
			if a != b {
				if desc {
					return a > b
				}
				return a < b
			}
			if c := col.CompareString(products[i].Name, products[j].Name); c != 0 {
				return c < 0
			}
			return products[i].Position < products[j].Position
		})
	case SortRecent:
		sort.SliceStable(products, func(i, j int) bool {
			return products[i].Position > products[j].Position
		})
	default:
		sort.SliceStable(products, func(i, j int) bool {
			a, b := products[i], products[j]
			if a.IsFeatured != b.IsFeatured {
				return a.IsFeatured
			}
			if a.IsOffer != b.IsOffer {
				return a.IsOffer
			}
			if a.InStock() != b.InStock() {
				return a.InStock()
			}
			return a.Position < b.Position
		})
	}
}

// Apply returns q with change applied; see QueryState.Apply.
func (q Query) Apply(change QueryChange) Query {
	state := QueryState{Query: q}
	return state.Apply(change)
}
