package models

import "time"

// AuditLog is the persisted form of a lifecycle event. It is
// tenant-scoped for read access but deliberately not auditable itself:
// audit history is append-only and never soft-deleted.
type AuditLog struct {
	ID             uint64    `gorm:"primarykey" json:"id"`
	OrganizationID uint64    `gorm:"not null;index" json:"organization_id"`
	ActorID        *uint64   `json:"actor_id,omitempty"`
	Action         string    `gorm:"type:varchar(20);not null" json:"action"`
	EntityTable    string    `gorm:"type:varchar(100);not null" json:"entity_table"`
	EntityID       uint64    `gorm:"not null" json:"entity_id"`
	Description    string    `gorm:"type:varchar(500);not null" json:"description"`
	OccurredAt     time.Time `gorm:"not null;index" json:"occurred_at"`
}

func (AuditLog) TableName() string {
	return "audit_logs"
}

func (l *AuditLog) TenantID() uint64 {
	return l.OrganizationID
}

func (l *AuditLog) SetTenantID(id uint64) {
	l.OrganizationID = id
}
