package catalog

import (
	"slices"
	"strings"
)

// QueryChange is a partial update to a Query. Nil fields are left alone.
type QueryChange struct {
	SearchTerm *string
	Category   *string
	Tags       []string
	ClearTags  bool
	Sort       *SortOption
	Page       *int
}

// QueryState is the filter state a browsing session carries between requests.
type QueryState struct {
	Query Query
}

// Apply merges change into the state. Any change to the search term,
// category, tags or sort sends the shopper back to page 1; a bare page
// change only moves the page.
func (s *QueryState) Apply(change QueryChange) Query {
	next := s.Query
	filtersChanged := false

	if change.SearchTerm != nil && strings.TrimSpace(*change.SearchTerm) != strings.TrimSpace(next.SearchTerm) {
		next.SearchTerm = *change.SearchTerm
		filtersChanged = true
	}
	if change.Category != nil && *change.Category != next.Category {
		next.Category = *change.Category
		filtersChanged = true
	}
	if change.ClearTags && len(next.Tags) > 0 {
		next.Tags = nil
		filtersChanged = true
	}
	if change.Tags != nil {
		tags := NormalizeTags(change.Tags)
		if !slices.Equal(tags, NormalizeTags(next.Tags)) {
			next.Tags = tags
			filtersChanged = true
		}
	}
	if change.Sort != nil && sortOrDefault(*change.Sort) != sortOrDefault(next.Sort) {
		next.Sort = *change.Sort
		filtersChanged = true
	}

	switch {
	case filtersChanged:
		next.Page = 1
	case change.Page != nil:
		next.Page = *change.Page
	}
	if next.Page < 1 {
		next.Page = 1
	}
	s.Query = next
	return next
}

func sortOrDefault(s SortOption) SortOption {
	if s == "" {
		return SortFeatured
	}
	return s
}
