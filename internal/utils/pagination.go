package utils

import (
	"strconv"

	"github.com/clearcomply/compliance-api/internal/constants"
	"github.com/gin-gonic/gin"
)

// PaginationParams holds the validated page window of a list request.
type PaginationParams struct {
	Page   int
	Limit  int
	Offset int
}

// PaginationResponse is the pagination metadata block on list responses.
type PaginationResponse struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
}

// Response pairs the request window with the total row count.
func (p PaginationParams) Response(total int64) PaginationResponse {
	return PaginationResponse{
		Page:  p.Page,
		Limit: p.Limit,
		Total: total,
	}
}

// GetPaginationParams reads page and limit from the query string,
// clamping both to the configured bounds.
func GetPaginationParams(c *gin.Context) PaginationParams {
	page := atoiDefault(c.Query("page"), constants.MinPageSize)
	if page < constants.MinPageSize {
		page = constants.MinPageSize
	}

	limit := atoiDefault(c.Query("limit"), constants.DefaultPageSize)
	if limit < constants.MinPageSize || limit > constants.MaxPageSize {
		limit = constants.DefaultPageSize
	}

	return PaginationParams{
		Page:   page,
		Limit:  limit,
		Offset: (page - 1) * limit,
	}
}

func atoiDefault(s string, fallback int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return n
}
