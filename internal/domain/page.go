package domain

const (
	DefaultPerPage = 10
	MaxPerPage     = 100
)

// Pagination describes one page of a listing. From and To are 1-based item
// positions and are null on an empty page.
type Pagination struct {
	CurrentPage int  `json:"current_page"`
	LastPage    int  `json:"last_page"`
	PerPage     int  `json:"per_page"`
	Total       int  `json:"total"`
	From        *int `json:"from"`
	To          *int `json:"to"`
}

// Page is one slice of a listing together with its pagination.
type Page[T any] struct {
	Data       []T        `json:"data"`
	Pagination Pagination `json:"pagination"`
}

// PageBounds clamps page and perPage to usable values.
func PageBounds(page, perPage int) (int, int) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = DefaultPerPage
	}
	if perPage > MaxPerPage {
		perPage = MaxPerPage
	}
	return page, perPage
}

// Offset is the number of items before page.
func Offset(page, perPage int) int {
	return (page - 1) * perPage
}

// NewPage wraps items taken at page out of total.
func NewPage[T any](items []T, page, perPage, total int) Page[T] {
	if items == nil {
		items = []T{}
	}
	last := (total + perPage - 1) / perPage
	if last < 1 {
		last = 1
	}
	p := Pagination{CurrentPage: page, LastPage: last, PerPage: perPage, Total: total}
	if len(items) > 0 {
		from := Offset(page, perPage) + 1
		to := from + len(items) - 1
		p.From, p.To = &from, &to
	}
	return Page[T]{Data: items, Pagination: p}
}

// Paginate cuts one page out of an already filtered and ordered slice.
func Paginate[T any](all []T, page, perPage int) Page[T] {
	page, perPage = PageBounds(page, perPage)
	start := Offset(page, perPage)
	if start > len(all) {
		start = len(all)
	}
	end := start + perPage
	if end > len(all) {
		end = len(all)
	}
	return NewPage(all[start:end:end], page, perPage, len(all))
}
