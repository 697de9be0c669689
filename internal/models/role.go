package models

import "fmt"

// UnknownRoleLevel ranks any unrecognized role below every real one,
// so privilege comparisons against it always deny.
const UnknownRoleLevel = 999

// OrganizationRole is the workspace-level role ladder. A lower level
// means more privilege.
type OrganizationRole string

const (
	RoleOwner  OrganizationRole = "owner"
	RoleAdmin  OrganizationRole = "admin"
	RoleMember OrganizationRole = "member"
	RoleViewer OrganizationRole = "viewer"
)

// Level returns the privilege rank of the role.
func (r OrganizationRole) Level() int {
	switch r {
	case RoleOwner:
		return 1
	case RoleAdmin:
		return 2
	case RoleMember:
		return 3
	case RoleViewer:
		return 4
	default:
		return UnknownRoleLevel
	}
}

// Valid reports whether the role is one of the known workspace roles.
func (r OrganizationRole) Valid() bool {
	return r.Level() != UnknownRoleLevel
}

// HasEqualOrHigherPrivilege reports whether r ranks at least as high
// as other. Unknown roles rank at the bottom, so they never pass.
func (r OrganizationRole) HasEqualOrHigherPrivilege(other OrganizationRole) bool {
	return r.Level() <= other.Level()
}

// CanManageMembers reports whether the role may act on other members.
func (r OrganizationRole) CanManageMembers() bool {
	return r == RoleOwner || r == RoleAdmin
}

// ParseOrganizationRole converts a raw string into a workspace role,
// failing on anything outside the closed set.
func ParseOrganizationRole(s string) (OrganizationRole, error) {
	role := OrganizationRole(s)
	if !role.Valid() {
		return "", fmt.Errorf("unknown organization role %q", s)
	}
	return role, nil
}

// ProjectRole is the project-level role ladder, independent of the
// workspace ladder.
type ProjectRole string

const (
	ProjectRoleOwner       ProjectRole = "owner"
	ProjectRoleContributor ProjectRole = "contributor"
	ProjectRoleViewer      ProjectRole = "viewer"
)

// Level returns the privilege rank of the project role.
func (r ProjectRole) Level() int {
	switch r {
	case ProjectRoleOwner:
		return 1
	case ProjectRoleContributor:
		return 2
	case ProjectRoleViewer:
		return 3
	default:
		return UnknownRoleLevel
	}
}

// Valid reports whether the role is one of the known project roles.
func (r ProjectRole) Valid() bool {
	return r.Level() != UnknownRoleLevel
}

// HasEqualOrHigherPrivilege reports whether r ranks at least as high
// as other.
func (r ProjectRole) HasEqualOrHigherPrivilege(other ProjectRole) bool {
	return r.Level() <= other.Level()
}

// CanManageMembers reports whether the project role may act on other
// project members.
func (r ProjectRole) CanManageMembers() bool {
	return r == ProjectRoleOwner
}

// ParseProjectRole converts a raw string into a project role.
func ParseProjectRole(s string) (ProjectRole, error) {
	role := ProjectRole(s)
	if !role.Valid() {
		return "", fmt.Errorf("unknown project role %q", s)
	}
	return role, nil
}
