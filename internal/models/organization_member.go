package models

import "time"

// OrganizationMember joins a user to an organization with a workspace
// role. Removal deactivates the row instead of deleting it, and a
// later invitation accept reactivates it in place, keeping at most one
// row per (organization, user) pair.
type OrganizationMember struct {
	ID             uint64           `gorm:"primarykey" json:"id"`
	OrganizationID uint64           `gorm:"not null;uniqueIndex:idx_org_members_org_user" json:"organization_id"`
	UserID         uint64           `gorm:"not null;uniqueIndex:idx_org_members_org_user" json:"user_id"`
	Role           OrganizationRole `gorm:"type:varchar(20);not null" json:"role"`
	// No column default: an explicit false on insert must survive, so a
	// row created deactivated never silently flips to active.
	IsActive     bool       `gorm:"not null" json:"is_active"`
	JoinedAt     time.Time  `json:"joined_at"`
	RemovedAt    *time.Time `json:"removed_at,omitempty"`
	InvitationID *uint64    `json:"invitation_id,omitempty"`
	Auditable

	// Relations
	Organization Organization `gorm:"foreignKey:OrganizationID" json:"organization,omitempty"`
	User         User         `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

func (OrganizationMember) TableName() string {
	return "organization_members"
}

func (m *OrganizationMember) TenantID() uint64 {
	return m.OrganizationID
}

func (m *OrganizationMember) SetTenantID(id uint64) {
	m.OrganizationID = id
}
