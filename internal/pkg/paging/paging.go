package paging

import (
	"math"
	"strconv"
	"strings"

	"github.com/devlog-hq/devlog/internal/pkg/apperr"
)

const (
	DefaultPerPage = 20
	MaxPerPage     = 100
)

type Page struct {
	Page    int `json:"page"`
	PerPage int `json:"per_page"`
}

func (p Page) Offset() int { return (p.Page - 1) * p.PerPage }

func (p Page) Limit() int { return p.PerPage }

// Parse reads raw page/per_page query values. Empty values take defaults,
// per_page is clamped to [1, MaxPerPage] and page to [1, N] where N is the
// last page whose offset fits in an int32.
func Parse(rawPage, rawPerPage string) (Page, error) {
	p := Page{Page: 1, PerPage: DefaultPerPage}

	if s := strings.TrimSpace(rawPage); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return Page{}, apperr.Validation(apperr.CodeInvalidPagination, "page must be an integer")
		}
		p.Page = n
	}
	if s := strings.TrimSpace(rawPerPage); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return Page{}, apperr.Validation(apperr.CodeInvalidPagination, "per_page must be an integer")
		}
		p.PerPage = n
	}
	return p.Normalize(), nil
}

func (p Page) Normalize() Page {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PerPage < 1 {
		p.PerPage = 1
	}
	if p.PerPage > MaxPerPage {
		p.PerPage = MaxPerPage
	}
	// keep Offset within an int32 so it never wraps negative
	if maxPage := math.MaxInt32/p.PerPage + 1; p.Page > maxPage {
		p.Page = maxPage
	}
	return p
}

// Meta is the pagination block attached to every paged result.
type Meta struct {
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	PerPage    int   `json:"per_page"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
	HasPrev    bool  `json:"has_prev"`
}

func NewMeta(p Page, total int64) Meta {
	pages := 0
	if total > 0 {
		pages = int((total + int64(p.PerPage) - 1) / int64(p.PerPage))
	}
	return Meta{
		Total:      total,
		Page:       p.Page,
		PerPage:    p.PerPage,
		TotalPages: pages,
		HasNext:    p.Page < pages,
		HasPrev:    p.Page > 1,
	}
}
