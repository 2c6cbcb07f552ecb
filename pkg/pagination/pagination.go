package pagination

import (
	"net/http"
	"strconv"
)

const (
	defaultPerPage = 20
	maxPerPage     = 100
)

// Params holds pagination parameters extracted from query strings.
type Params struct {
	Page    int `json:"page"`
	PerPage int `json:"per_page"`
}

// Offset is the number of rows to skip.
func (p Params) Offset() int {
	return (p.Page - 1) * p.PerPage
}

// FromRequest reads page and per_page, falling back to 1 and 20 for missing
// or invalid values. per_page is capped at 100.
func FromRequest(r *http.Request) Params {
	p := Params{Page: 1, PerPage: defaultPerPage}
	q := r.URL.Query()

	if v, err := strconv.Atoi(q.Get("page")); err == nil && v > 0 {
		p.Page = v
	}
	if v, err := strconv.Atoi(q.Get("per_page")); err == nil && v > 0 {
		p.PerPage = min(v, maxPerPage)
	}
	return p
}

// Result is a page of T plus navigation metadata.
type Result[T any] struct {
	Items      []T  `json:"items"`
	TotalCount int  `json:"total_count"`
	Page       int  `json:"page"`
	PerPage    int  `json:"per_page"`
	TotalPages int  `json:"total_pages"`
	HasNext    bool `json:"has_next"`
	HasPrev    bool `json:"has_prev"`
}

// NewResult builds a Result for items at params out of totalCount rows.
func NewResult[T any](items []T, totalCount int, params Params) Result[T] {
	if items == nil {
		items = []T{}
	}
	totalPages := 0
	if params.PerPage > 0 {
		totalPages = (totalCount + params.PerPage - 1) / params.PerPage
	}
	return Result[T]{
		Items:      items,
		TotalCount: totalCount,
		Page:       params.Page,
		PerPage:    params.PerPage,
		TotalPages: totalPages,
		HasNext:    params.Page < totalPages,
		HasPrev:    params.Page > 1,
	}
}
