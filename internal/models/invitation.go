package models

import "time"

// InvitationStatus is the lifecycle state of a workspace invitation.
// Pending is the only non-terminal state.
type InvitationStatus string

const (
	InvitationPending  InvitationStatus = "pending"
	InvitationAccepted InvitationStatus = "accepted"
	InvitationDeclined InvitationStatus = "declined"
	InvitationRevoked  InvitationStatus = "revoked"
	InvitationExpired  InvitationStatus = "expired"
)

// Terminal reports whether the status admits no further transitions.
func (s InvitationStatus) Terminal() bool {
	return s != InvitationPending
}

// CanTransitionTo reports whether the state machine allows moving from
// s to next.
func (s InvitationStatus) CanTransitionTo(next InvitationStatus) bool {
	return s == InvitationPending && next.Terminal()
}

// Invitation is a time-bounded, single-use offer to join an
// organization with a predetermined role.
type Invitation struct {
	ID             uint64           `gorm:"primarykey" json:"id"`
	OrganizationID uint64           `gorm:"not null;index" json:"organization_id"`
	Email          string           `gorm:"type:varchar(255);not null;index" json:"email"`
	Role           OrganizationRole `gorm:"type:varchar(20);not null" json:"role"`
	InvitedByID    uint64           `gorm:"not null" json:"invited_by"`
	Token          string           `gorm:"type:varchar(64);uniqueIndex;not null" json:"-"`
	Status         InvitationStatus `gorm:"type:varchar(20);not null;default:pending" json:"status"`
	ExpiresAt      time.Time        `gorm:"not null" json:"expires_at"`
	AcceptedAt     *time.Time       `json:"accepted_at,omitempty"`
	DeclineReason  *string          `gorm:"type:varchar(500)" json:"decline_reason,omitempty"`
	RevokedByID    *uint64          `json:"revoked_by,omitempty"`
	MemberID       *uint64          `json:"member_id,omitempty"`
	Auditable

	// Relations
	Organization Organization `gorm:"foreignKey:OrganizationID" json:"organization,omitempty"`
}

func (Invitation) TableName() string {
	return "invitations"
}

func (i *Invitation) TenantID() uint64 {
	return i.OrganizationID
}

func (i *Invitation) SetTenantID(id uint64) {
	i.OrganizationID = id
}

// ExpiredBy reports whether the invitation deadline has passed at the
// given instant.
func (i *Invitation) ExpiredBy(now time.Time) bool {
	return i.ExpiresAt.Before(now)
}
