package catalog

import (
	"sort"

	"github.com/angelmondragon/autoparts-backend/pkg/enums"
)

// FacetCount is one value of a facet and how many products carry it.
type FacetCount struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// PriceRange spans the final prices of a product set.
type PriceRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Facets summarises a filtered catalog for building filter controls.
type Facets struct {
	Total      int          `json:"total"`
	InStock    int          `json:"in_stock"`
	Categories []FacetCount `json:"categories"`
	Tags       []FacetCount `json:"tags"`
	Price      *PriceRange  `json:"price,omitempty"`
}

// ComputeFacets counts over the products matching q. Category counts ignore
// the category filter and tag counts ignore the tag filter, so each control
// can show its alternatives. Page and sort are irrelevant.
func ComputeFacets(products []Product, q Query) Facets {
	matched := Filter(products, q)

	withoutCategory := q
	withoutCategory.Category = ""
	withoutTags := q
	withoutTags.Tags = nil

	facets := Facets{
		Total:      len(matched),
		Categories: categoryCounts(Filter(products, withoutCategory)),
		Tags:       tagCounts(Filter(products, withoutTags)),
	}
	for i, p := range matched {
		if p.InStock() {
			facets.InStock++
		}
		final := p.Display.Final
		if i == 0 {
			facets.Price = &PriceRange{Min: final, Max: final}
			continue
		}
		if final < facets.Price.Min {
			facets.Price.Min = final
		}
		if final > facets.Price.Max {
			facets.Price.Max = final
		}
	}
	return facets
}

// categoryCounts lists the official categories in display order, then Otros.
func categoryCounts(products []Product) []FacetCount {
	counts := make(map[enums.ProductCategory]int)
	for _, p := range products {
		counts[CategoryBucket(p.Category)]++
	}
	out := make([]FacetCount, 0, len(counts))
	for _, c := range append(enums.OfficialCategories(), enums.CategoryOtros) {
		if n := counts[c]; n > 0 {
			out = append(out, FacetCount{Value: c.String(), Count: n})
		}
	}
	return out
}

// tagCounts orders by count desc, then tag asc.
func tagCounts(products []Product) []FacetCount {
	counts := make(map[string]int)
	for _, p := range products {
		for _, tag := range p.Tags {
			counts[tag]++
		}
	}
	out := make([]FacetCount, 0, len(counts))
	for tag, n := range counts {
		out = append(out, FacetCount{Value: tag, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Value < out[j].Value
	})
	return out
}
