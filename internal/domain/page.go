package domain

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

// PageParams carries page/limit values from the HTTP layer to the repo layer
// for listings that grow without bound (the ingestion run log).
// Page is 1-indexed.
type PageParams struct {
	Page  int
	Limit int
}

// NewPageParams builds PageParams from optional query parameters.
// Nil or non-positive values fall back to page=1, limit=20; limit is capped at 100.
func NewPageParams(page, limit *int) PageParams {
	p := PageParams{Page: 1, Limit: defaultPageLimit}
	if page != nil && *page >= 1 {
		p.Page = *page
	}
	if limit != nil && *limit >= 1 {
		p.Limit = min(*limit, maxPageLimit)
	}
	return p
}

// Offset returns the zero-based row offset for a SQL OFFSET clause.
func (p PageParams) Offset() int {
	return (p.Page - 1) * p.Limit
}

// Page is one slice of a listing plus the total row count across all pages.
type Page[T any] struct {
	Items []T
	Total int64
}
