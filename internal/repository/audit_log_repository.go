package repository

import (
	"context"

	"github.com/clearcomply/compliance-api/internal/database"
	"github.com/clearcomply/compliance-api/internal/models"
	"github.com/clearcomply/compliance-api/internal/utils"
	"gorm.io/gorm"
)

// GormAuditLogRepository is a GORM implementation of AuditLogRepository
type GormAuditLogRepository struct {
	db *gorm.DB
}

// NewAuditLogRepository creates a new AuditLogRepository
func NewAuditLogRepository(db *gorm.DB) AuditLogRepository {
	return &GormAuditLogRepository{db: db}
}

// ListByOrganization lists audit entries of an organization, newest first
func (r *GormAuditLogRepository) ListByOrganization(ctx context.Context, organizationID uint64, params utils.PaginationParams) ([]models.AuditLog, int64, error) {
	var total int64
	query := r.db.WithContext(ctx).Model(&models.AuditLog{}).
		Where("organization_id = ?", organizationID)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var entries []models.AuditLog
	if err := query.
		Order("occurred_at DESC").
		Scopes(database.Paginate(params)).
		Find(&entries).Error; err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}
