package shared

import (
	"net/http"
	"strconv"
)

// Pagination carries page-numbered query parameters. Services clamp the
// size; Offset converts for stores that take limit/offset.
type Pagination struct {
	Page     int
	PageSize int
}

func ParsePagination(r *http.Request) Pagination {
	p := Pagination{Page: 1, PageSize: 0}
	if raw := r.URL.Query().Get("page"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			p.Page = v
		}
	}
	if raw := r.URL.Query().Get("pageSize"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			p.PageSize = v
		}
	}
	return p
}

func (p Pagination) Offset() int {
	if p.Page < 1 || p.PageSize < 1 {
		return 0
	}
	return (p.Page - 1) * p.PageSize
}
