// Package pagination reads list windows from query strings and shapes the
// paged JSON envelope returned by every list endpoint.
package pagination

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// Params is a limit/offset window.
type Params struct {
	Limit  int
	Offset int
}

// FromContext reads ?limit= with either ?offset= or a 1-based ?page=.
// Offset wins when both are given. Malformed values fall back to defaults.
func FromContext(c echo.Context) Params {
	p := Params{Limit: clamp(atoi(c.QueryParam("limit")), DefaultLimit)}
	if off := atoi(c.QueryParam("offset")); off > 0 {
		p.Offset = off
	} else if page := atoi(c.QueryParam("page")); page > 1 {
		p.Offset = (page - 1) * p.Limit
	}
	return p
}

// Page is the 1-based page number the window starts on.
func (p Params) Page() int {
	if p.Limit <= 0 {
		return 1
	}
	return p.Offset/p.Limit + 1
}

// Response is the list envelope. Data is never null.
type Response[T any] struct {
	Data    []T  `json:"data"`
	Total   int  `json:"total"`
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	Page    int  `json:"page"`
	HasMore bool `json:"hasMore"`
}

func NewResponse[T any](items []T, total int, p Params) Response[T] {
	if items == nil {
		items = []T{}
	}
	return Response[T]{
		Data:    items,
		Total:   total,
		Limit:   p.Limit,
		Offset:  p.Offset,
		Page:    p.Page(),
		HasMore: p.Offset+len(items) < total,
	}
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func clamp(limit, def int) int {
	switch {
	case limit <= 0:
		return def
	case limit > MaxLimit:
		return MaxLimit
	}
	return limit
}
