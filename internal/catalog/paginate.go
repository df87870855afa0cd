package catalog

const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

// Page is a window over a result list.
type Page struct {
	Items  []Product `json:"items"`
	Total  int       `json:"total"`
	Limit  int       `json:"limit"`
	Offset int       `json:"offset"`
}

// Paginate cuts a window out of products. A limit <= 0 falls back to the default,
// a limit above MaxPageLimit is clamped and a negative offset starts at zero.
func Paginate(products []Product, limit, offset int) Page {
	if limit <= 0 {
		limit = DefaultPageLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}
	if offset < 0 {
		offset = 0
	}
	page := Page{Items: []Product{}, Total: len(products), Limit: limit, Offset: offset}
	if offset >= len(products) {
		return page
	}
	end := min(offset+limit, len(products))
	page.Items = append(page.Items, products[offset:end]...)
	return page
}
