package shared

import "math"

// Pagination contains metadata for offset-based listings. The offset is
// echoed back rather than converted to a page number, so callers paging
// with arbitrary offsets see exactly where the window starts.
type Pagination struct {
	Offset     int `json:"offset"`
	PerPage    int `json:"per_page"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// NewPagination computes pagination metadata.
func NewPagination(offset, perPage, total int) Pagination {
	if perPage <= 0 {
		perPage = 20
	}
	if offset < 0 {
		offset = 0
	}
	totalPages := int(math.Ceil(float64(total) / float64(perPage)))
	return Pagination{Offset: offset, PerPage: perPage, Total: total, TotalPages: totalPages}
}
