package calendar

// Page is one page of a list the UI steps through.
type Page[T any] struct {
	Items    []T  `json:"items"`
	Page     int  `json:"page"` // 1-based
	PageSize int  `json:"pageSize"`
	HasNext  bool `json:"hasNext"`
	HasPrev  bool `json:"hasPrev"`
	Total    int  `json:"total"`
}

// Paginate returns the items of page (1-based) and its metadata. Out-of-range
// values fall back to the defaults; a page past the end is empty.
func Paginate[T any](items []T, page, pageSize int) Page[T] {
	const defaultPageSize = 10

	total := len(items)

	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if page <= 0 {
		page = 1
	}

	start := (page - 1) * pageSize
	if start > total {
		start = total
	}

	end := start + pageSize
	if end > total {
		end = total
	}

	pageItems := make([]T, end-start)
	copy(pageItems, items[start:end])

	return Page[T]{
		Items:    pageItems,
		Page:     page,
		PageSize: pageSize,
		HasNext:  end < total,
		HasPrev:  page > 1,
		Total:    total,
	}
}

// PageOf returns the 1-based page that contains the item at index.
func PageOf(index, pageSize int) int {
	if pageSize <= 0 || index < 0 {
		return 1
	}
	return index/pageSize + 1
}
