package database

import (
	"gorm.io/gorm"

	"github.com/clearcomply/compliance-api/internal/utils"
)

// Paginate applies pagination to a GORM query
func Paginate(params utils.PaginationParams) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Offset(params.Offset).Limit(params.Limit)
	}
}

// ActiveMembers restricts a membership query to active rows.
func ActiveMembers(db *gorm.DB) *gorm.DB {
	return db.Where("is_active = ?", true)
}
