package services

const maxPageSize = 100

// Page is one page of a listing. Total counts the whole filtered set.
type Page[T any] struct {
	Items    []T `json:"items"`
	Total    int `json:"total"`
	Page     int `json:"page"`
	PageSize int `json:"pageSize"`
}

// normalizePage clamps a 1-indexed page and a page size to valid values.
func normalizePage(page, pageSize, defaultSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return page, pageSize
}

// DeleteResult acknowledges a deletion.
type DeleteResult struct {
	Deleted bool `json:"deleted"`
}
