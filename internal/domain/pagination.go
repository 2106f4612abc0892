package domain

const (
	DefaultPageLimit = 10
	MaxPageLimit     = 100
)

// PageRequest selects a 1-based page of results.
type PageRequest struct {
	Page  int
	Limit int
}

// Normalize applies defaults and caps to the request.
func (p PageRequest) Normalize() PageRequest {
	if p.Page < 1 {
		p.Page = 1
	}
	switch {
	case p.Limit <= 0:
		p.Limit = DefaultPageLimit
	case p.Limit > MaxPageLimit:
		p.Limit = MaxPageLimit
	}
	return p
}

// Offset returns the number of records skipped before the page.
func (p PageRequest) Offset() int {
	n := p.Normalize()
	return (n.Page - 1) * n.Limit
}

// PageInfo describes where a page sits within the full result set.
type PageInfo struct {
	CurrentPage int
	Limit       int
	TotalPages  int
	TotalItems  int64
	HasNextPage bool
	HasPrevPage bool
}

// NewPageInfo derives pagination metadata from the request and the total match count.
func NewPageInfo(req PageRequest, total int64) PageInfo {
	req = req.Normalize()
	if total < 0 {
		total = 0
	}
	limit := int64(req.Limit)
	totalPages := int((total + limit - 1) / limit)
	return PageInfo{
		CurrentPage: req.Page,
		Limit:       req.Limit,
		TotalPages:  totalPages,
		TotalItems:  total,
		HasNextPage: req.Page < totalPages,
		HasPrevPage: req.Page > 1,
	}
}

// Page is a single page of results plus its metadata.
type Page[T any] struct {
	Items []T
	Info  PageInfo
}
