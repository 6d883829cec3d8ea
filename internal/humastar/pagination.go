package humastar

import "fmt"

// DefaultPageLimit is the page size used when a request gives none.
const DefaultPageLimit = 50

// Pager is implemented by paged response bodies; LinkTransformer turns the
// returned values into Link headers.
type Pager interface {
	PaginationLinks(basePath string) []string
}

// PageBody is one page of a collection.
type PageBody[T any] struct {
	Total  int `json:"total" doc:"Total number of items"`
	Offset int `json:"offset" doc:"Current offset"`
	Limit  int `json:"limit" doc:"Page size"`
	Data   []T `json:"data" doc:"Items"`
}

// Page slices items into one page. A non-positive limit means DefaultPageLimit.
func Page[T any](items []T, offset, limit int) PageBody[T] {
	return PageMap(items, offset, limit, func(_ int, item T) T { return item })
}

// PageMap slices src into one page and converts only the items on that page.
// fn receives each item's index in src.
func PageMap[S, T any](src []S, offset, limit int, fn func(i int, item S) T) PageBody[T] {
	if limit <= 0 {
		limit = DefaultPageLimit
	}
	offset = max(offset, 0)
	data := []T{}
	for i := offset; i < min(offset+limit, len(src)); i++ {
		data = append(data, fn(i, src[i]))
	}
	return PageBody[T]{Total: len(src), Offset: offset, Limit: limit, Data: data}
}

// PaginationLinks returns first, prev, next and last links; prev and next
// only when such a page exists.
func (p PageBody[T]) PaginationLinks(basePath string) []string {
	limit := p.Limit
	if limit <= 0 {
		limit = DefaultPageLimit
	}
	link := func(offset int, rel string) string {
		return fmt.Sprintf(`<%s?offset=%d&limit=%d>; rel="%s"`, basePath, offset, limit, rel)
	}

	links := []string{link(0, "first")}
	if p.Offset > 0 {
		links = append(links, link(max(p.Offset-limit, 0), "prev"))
	}
	if p.Offset+limit < p.Total {
		links = append(links, link(p.Offset+limit, "next"))
	}
	last := 0
	if p.Total > 0 {
		last = (p.Total - 1) / limit * limit
	}
	return append(links, link(last, "last"))
}
