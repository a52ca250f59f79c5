package pagination

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

const (
	// DefaultLimit is the page size used when the client does not ask for one.
	DefaultLimit = 20
	// MaxLimit caps the page size a client may request.
	MaxLimit = 100
	// DefaultOffset is the starting offset.
	DefaultOffset = 0
)

// Params holds parsed pagination query parameters.
type Params struct {
	Limit  int
	Offset int
}

// Meta describes a page of results for response envelopes.
type Meta struct {
	Limit       int   `json:"limit"`
	Offset      int   `json:"offset"`
	Total       int64 `json:"total"`
	TotalPages  int   `json:"total_pages"`
	CurrentPage int   `json:"current_page"`
	HasMore     bool  `json:"has_more"`
}

// ParseParams extracts limit/offset from the query string, clamping to the
// allowed range and falling back to defaults on anything unparseable.
func ParseParams(c *gin.Context) Params {
	params := Params{Limit: DefaultLimit, Offset: DefaultOffset}

	if raw := c.Query("limit"); raw != "" {
		if limit, err := strconv.Atoi(raw); err == nil && limit > 0 {
			if limit > MaxLimit {
				limit = MaxLimit
			}
			params.Limit = limit
		}
	}

	if raw := c.Query("offset"); raw != "" {
		if offset, err := strconv.Atoi(raw); err == nil && offset >= 0 {
			params.Offset = offset
		}
	}

	return params
}

// BuildMeta computes pagination metadata for a response.
func BuildMeta(limit, offset int, total int64) Meta {
	meta := Meta{
		Limit:       limit,
		Offset:      offset,
		Total:       total,
		CurrentPage: GetCurrentPage(offset, limit),
		HasMore:     HasMore(offset, limit, total),
	}
	if limit > 0 {
		meta.TotalPages = int((total + int64(limit) - 1) / int64(limit))
	}
	return meta
}

// HasMore reports whether records remain beyond the current page.
func HasMore(offset, limit int, total int64) bool {
	return int64(offset+limit) < total
}

// GetCurrentPage converts an offset into a 1-based page number.
func GetCurrentPage(offset, limit int) int {
	if limit <= 0 {
		return 1
	}
	return offset/limit + 1
}
