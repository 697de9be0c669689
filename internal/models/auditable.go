package models

import (
	"time"

	"gorm.io/gorm"
)

// Auditable is embedded by every persisted business record. The
// lifecycle interceptors stamp the actor columns and convert deletes
// into tombstones; nothing outside internal/database writes these
// fields.
type Auditable struct {
	CreatedAt   time.Time      `json:"created_at"`
	CreatedByID *uint64        `gorm:"index" json:"created_by,omitempty"`
	UpdatedAt   time.Time      `json:"updated_at"`
	UpdatedByID *uint64        `json:"updated_by,omitempty"`
	IsDeleted   bool           `gorm:"not null;default:false" json:"-"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
	DeletedByID *uint64        `json:"-"`
}

// StampCreated records the creating actor. Called once, at insert.
func (a *Auditable) StampCreated(actorID *uint64) {
	a.CreatedByID = actorID
	a.UpdatedByID = actorID
}

// AuditedEntity is satisfied by every model embedding Auditable. The
// interceptors use it to decide whether a record takes actor stamping
// and soft-delete conversion.
type AuditedEntity interface {
	StampCreated(actorID *uint64)
}

// TenantScoped is the capability implemented by every record that
// belongs to exactly one organization. The isolation interceptors
// stamp missing tenant ids on create and refuse any change afterwards.
type TenantScoped interface {
	TenantID() uint64
	SetTenantID(uint64)
}
