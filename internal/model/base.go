package model

// Pagination represents common pagination parameters
type Pagination struct {
	Page     int `json:"page" form:"page"`
	PageSize int `json:"page_size" form:"page_size"`
}

// Normalize clamps the page into range and returns limit and offset.
func (p Pagination) Normalize(maxSize int) (limit, offset int) {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 || p.PageSize > maxSize {
		p.PageSize = maxSize
	}
	return p.PageSize, (p.Page - 1) * p.PageSize
}

// Page is a slice of results along with the unpaged total.
type Page[T any] struct {
	Items []T `json:"items"`
	Total int `json:"total"`
}

// StatusCounts maps each appointment status to its population.
type StatusCounts map[AppointmentStatus]int

// SequenceLess orders identifiers of the form <prefix>-<n> by n, so apt-9
// sorts before apt-10.
func SequenceLess(a, b string) bool {
	if len(a) != len(b) {
		return len(a) < len(b)
	}
	return a < b
}
