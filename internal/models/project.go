package models

// Project is a tenant-scoped compliance engagement. Project membership
// carries its own role ladder, independent of workspace roles.
type Project struct {
	ID             uint64 `gorm:"primarykey" json:"id"`
	OrganizationID uint64 `gorm:"not null;index" json:"organization_id"`
	Name           string `gorm:"type:varchar(255);not null" json:"name"`
	Description    string `gorm:"type:text" json:"description"`
	Framework      string `gorm:"type:varchar(100)" json:"framework"`
	Auditable

	// Relations
	Organization Organization    `gorm:"foreignKey:OrganizationID" json:"organization,omitempty"`
	Members      []ProjectMember `gorm:"foreignKey:ProjectID" json:"members,omitempty"`
}

func (Project) TableName() string {
	return "projects"
}

func (p *Project) TenantID() uint64 {
	return p.OrganizationID
}

func (p *Project) SetTenantID(id uint64) {
	p.OrganizationID = id
}
