package models

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOrganizationRole_LevelOrdering(t *testing.T) {
	require.Less(t, RoleOwner.Level(), RoleAdmin.Level())
	require.Less(t, RoleAdmin.Level(), RoleMember.Level())
	require.Less(t, RoleMember.Level(), RoleViewer.Level())
	require.Less(t, RoleViewer.Level(), OrganizationRole("bogus").Level())
}

func TestOrganizationRole_UnknownRanksAtBottom(t *testing.T) {
	bogus := OrganizationRole("superadmin")
	require.Equal(t, UnknownRoleLevel, bogus.Level())
	require.False(t, bogus.Valid())

	// Fail closed: an unknown role never outranks a real one.
	require.False(t, bogus.HasEqualOrHigherPrivilege(RoleViewer))
	require.True(t, RoleViewer.HasEqualOrHigherPrivilege(bogus))
}

func TestOrganizationRole_HasEqualOrHigherPrivilege(t *testing.T) {
	require.True(t, RoleOwner.HasEqualOrHigherPrivilege(RoleAdmin))
	require.True(t, RoleAdmin.HasEqualOrHigherPrivilege(RoleAdmin))
	require.False(t, RoleMember.HasEqualOrHigherPrivilege(RoleAdmin))
}

func TestOrganizationRole_CanManageMembers(t *testing.T) {
	require.True(t, RoleOwner.CanManageMembers())
	require.True(t, RoleAdmin.CanManageMembers())
	require.False(t, RoleMember.CanManageMembers())
	require.False(t, RoleViewer.CanManageMembers())
}

func TestParseOrganizationRole(t *testing.T) {
	role, err := ParseOrganizationRole("admin")
	require.NoError(t, err)
	require.Equal(t, RoleAdmin, role)

	_, err = ParseOrganizationRole("superadmin")
	require.Error(t, err)
}

func TestProjectRole_LevelOrdering(t *testing.T) {
	require.Less(t, ProjectRoleOwner.Level(), ProjectRoleContributor.Level())
	require.Less(t, ProjectRoleContributor.Level(), ProjectRoleViewer.Level())
	require.Equal(t, UnknownRoleLevel, ProjectRole("bogus").Level())
}

func TestInvitationStatus_Transitions(t *testing.T) {
	require.False(t, InvitationPending.Terminal())
	for _, terminal := range []InvitationStatus{InvitationAccepted, InvitationDeclined, InvitationRevoked, InvitationExpired} {
		require.True(t, terminal.Terminal())
		require.True(t, InvitationPending.CanTransitionTo(terminal))
		require.False(t, terminal.CanTransitionTo(InvitationPending))
		require.False(t, terminal.CanTransitionTo(InvitationAccepted))
	}
}
