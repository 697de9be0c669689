package models

// SubscriptionTier determines the quota limits of a workspace.
type SubscriptionTier string

const (
	TierFree       SubscriptionTier = "free"
	TierTeam       SubscriptionTier = "team"
	TierEnterprise SubscriptionTier = "enterprise"
)

// Valid reports whether the tier is one of the known subscription tiers.
func (t SubscriptionTier) Valid() bool {
	switch t {
	case TierFree, TierTeam, TierEnterprise:
		return true
	}
	return false
}

// Quotas returns the member, project and storage limits for the tier.
func (t SubscriptionTier) Quotas() (maxMembers, maxProjects int, maxStorageMB int64) {
	switch t {
	case TierTeam:
		return 25, 50, 10_240
	case TierEnterprise:
		return 500, 1000, 102_400
	default:
		return 5, 3, 512
	}
}

// Organization is the tenant root. It is auditable but not itself
// tenant-scoped; isolation for everything it owns is applied through
// query scoping, not physical cascade.
type Organization struct {
	ID           uint64           `gorm:"primarykey" json:"id"`
	Name         string           `gorm:"type:varchar(255);not null" json:"name"`
	Slug         string           `gorm:"type:varchar(100);uniqueIndex;not null" json:"slug"`
	IsActive     bool             `gorm:"not null" json:"is_active"`
	Tier         SubscriptionTier `gorm:"type:varchar(20);not null;default:free" json:"tier"`
	MaxMembers   int              `gorm:"not null" json:"max_members"`
	MaxProjects  int              `gorm:"not null" json:"max_projects"`
	MaxStorageMB int64            `gorm:"not null" json:"max_storage_mb"`
	Auditable

	// Relations
	Members  []OrganizationMember `gorm:"foreignKey:OrganizationID" json:"members,omitempty"`
	Projects []Project            `gorm:"foreignKey:OrganizationID" json:"projects,omitempty"`
}

func (Organization) TableName() string {
	return "organizations"
}
