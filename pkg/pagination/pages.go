package pagination

// CatalogPageSize is the fixed storefront grid size.
const CatalogPageSize = 12

// Page is a resolved page-number window over a list of Total items.
type Page struct {
	Number     int
	Size       int
	Total      int
	TotalPages int
	Start      int
	End        int
}

// TotalPages returns ceil(total/size), never less than 1.
func TotalPages(total, size int) int {
	if size <= 0 || total <= 0 {
		return 1
	}
	return (total + size - 1) / size
}

// ClampPage pins requested into [1, TotalPages(total, size)].
func ClampPage(requested, total, size int) int {
	last := TotalPages(total, size)
	switch {
	case requested < 1:
		return 1
	case requested > last:
		return last
	default:
		return requested
	}
}

// Resolve clamps the requested page and returns the slice bounds [Start, End).
func Resolve(requested, total, size int) Page {
	if size <= 0 {
		size = CatalogPageSize
	}
	if total < 0 {
		total = 0
	}
	number := ClampPage(requested, total, size)
	start := (number - 1) * size
	if start > total {
		start = total
	}
	end := start + size
	if end > total {
		end = total
	}
	return Page{
		Number:     number,
		Size:       size,
		Total:      total,
		TotalPages: TotalPages(total, size),
		Start:      start,
		End:        end,
	}
}

// Slice returns the items inside the resolved page.
func Slice[T any](items []T, requested, size int) ([]T, Page) {
	page := Resolve(requested, len(items), size)
	return items[page.Start:page.End], page
}
