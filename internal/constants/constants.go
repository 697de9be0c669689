package constants

// Session / context keys
const (
	SessionCookieName       = "compliance_session"
	ContextKeyUserID        = "user_id"
	ContextKeyActiveOrgID   = "active_organization_id"
	ContextKeyOrganization  = "organization"
	ContextKeyMembership    = "organization_member"
	ContextKeyProject       = "project"
	ContextKeyProjectMember = "project_member"
	ContextKeyRequestID     = "request_id"
)

// Validation limits
const (
	MinPasswordLength = 8
	MaxNameLength     = 255
	MaxSlugLength     = 100
)

// Pagination
const (
	MinPageSize     = 1
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Invitation defaults
const (
	DefaultInvitationTTLDays = 7
	InviteTokenBytes         = 24
)
