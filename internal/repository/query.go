package repository

import "strings"

// orderClause validates a caller-supplied sort column against an
// allowlist and normalizes the direction. Sort input comes straight from
// query strings, so it must never be interpolated unchecked.
func orderClause(sortBy, sortOrder string, allowed map[string]string, fallback string) (string, string) {
	column, ok := allowed[sortBy]
	if !ok {
		column = fallback
	}
	order := strings.ToUpper(sortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	return column, order
}

// pageWindow clamps paging input and returns the LIMIT/OFFSET pair.
func pageWindow(page, size int) (limit, offset int) {
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > 100 {
		size = 20
	}
	return size, (page - 1) * size
}
