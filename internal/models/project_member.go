package models

import "time"

type ProjectMember struct {
	ID             uint64      `gorm:"primarykey" json:"id"`
	ProjectID      uint64      `gorm:"not null;uniqueIndex:idx_project_members_project_user" json:"project_id"`
	OrganizationID uint64      `gorm:"not null;index" json:"organization_id"`
	UserID         uint64      `gorm:"not null;uniqueIndex:idx_project_members_project_user" json:"user_id"`
	Role           ProjectRole `gorm:"type:varchar(20);not null" json:"role"`
	IsActive       bool        `gorm:"not null" json:"is_active"`
	JoinedAt       time.Time   `json:"joined_at"`
	RemovedAt      *time.Time  `json:"removed_at,omitempty"`
	Auditable

	// Relations
	Project Project `gorm:"foreignKey:ProjectID" json:"project,omitempty"`
	User    User    `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

func (ProjectMember) TableName() string {
	return "project_members"
}

func (m *ProjectMember) TenantID() uint64 {
	return m.OrganizationID
}

func (m *ProjectMember) SetTenantID(id uint64) {
	m.OrganizationID = id
}
