package filter

// Pagination describes where a page sits in the full filtered result.
type Pagination struct {
	TotalRecords int  `json:"totalRecords"`
	TotalPages   int  `json:"totalPages"`
	CurrentPage  int  `json:"currentPage"`
	ItemsPerPage int  `json:"itemsPerPage"`
	HasNextPage  bool `json:"hasNextPage"`
	HasPrevPage  bool `json:"hasPrevPage"`
}

// Paginate computes the pagination block for total matching records.
// A page past the end is valid and simply empty.
func (f Filter) Paginate(total int) Pagination {
	perPage := f.Limit()
	page := f.Page
	if page < 1 {
		page = DefaultPage
	}
	totalPages := (total + perPage - 1) / perPage
	return Pagination{
		TotalRecords: total,
		TotalPages:   totalPages,
		CurrentPage:  page,
		ItemsPerPage: perPage,
		HasNextPage:  page < totalPages,
		HasPrevPage:  page > 1,
	}
}
