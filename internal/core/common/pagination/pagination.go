package pagination

import "math"

// Page is one window over a list.
type Page[T any] struct {
	Items      []T `json:"items"`
	Page       int `json:"page"`
	PageSize   int `json:"per_page"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
	StartIndex int `json:"start_index"`
	EndIndex   int `json:"end_index"`
}

// TotalPages is never less than 1, so an empty list still has one page.
func TotalPages(total, pageSize int) int {
	if pageSize <= 0 || total <= 0 {
		return 1
	}
	return (total + pageSize - 1) / pageSize
}

// Paginate slices items[(page-1)*pageSize : min(start+pageSize, len)].
// Out-of-range pages are not clamped; they produce an empty window.
func Paginate[T any](items []T, page, pageSize int) Page[T] {
	total := len(items)
	p := Page[T]{
		Items:      []T{},
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: TotalPages(total, pageSize),
	}
	if pageSize <= 0 || page < 1 {
		return p
	}

	if total == 0 || page-1 > (total-1)/pageSize {
		start := total
		if page-1 <= (math.MaxInt-pageSize)/pageSize {
			start = (page - 1) * pageSize
		}
		p.StartIndex = start
		p.EndIndex = start
		return p
	}

	start := (page - 1) * pageSize
	end := start + pageSize
	if end > total {
		end = total
	}
	p.StartIndex = start
	p.EndIndex = end
	p.Items = items[start:end]
	return p
}

// HasNext reports whether navigation past this page is allowed.
func (p Page[T]) HasNext() bool {
	return p.Page < p.TotalPages
}

func (p Page[T]) HasPrev() bool {
	return p.Page > 1
}
