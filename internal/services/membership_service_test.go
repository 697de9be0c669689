package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/clearcomply/compliance-api/internal/audit"
	"github.com/clearcomply/compliance-api/internal/database"
	"github.com/clearcomply/compliance-api/internal/models"
	"github.com/clearcomply/compliance-api/internal/tenantctx"
)

type membershipTestEnv struct {
	db      *gorm.DB
	service *MembershipService
	org     *models.Organization
}

func setupMembershipTestEnv(t *testing.T) membershipTestEnv {
	t.Helper()

	db := setupServiceTestDB(t)
	service := NewMembershipService(db, audit.NewDispatcher(db))

	org := &models.Organization{Name: "acme", Slug: "acme", IsActive: true, Tier: models.TierFree}
	require.NoError(t, db.Create(org).Error)

	return membershipTestEnv{db: db, service: service, org: org}
}

func setupServiceTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	require.NoError(t, err)
	require.NoError(t, database.RegisterInterceptors(db))
	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Organization{},
		&models.OrganizationMember{},
		&models.Invitation{},
		&models.Project{},
		&models.ProjectMember{},
		&models.AuditLog{},
	))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() {
		sqlDB.Close()
	})

	return db
}

func (e membershipTestEnv) addMember(t *testing.T, userID uint64, role models.OrganizationRole) *models.OrganizationMember {
	t.Helper()
	member := &models.OrganizationMember{
		OrganizationID: e.org.ID,
		UserID:         userID,
		Role:           role,
		IsActive:       true,
		JoinedAt:       time.Now().UTC(),
	}
	require.NoError(t, e.db.Create(member).Error)
	return member
}

func (e membershipTestEnv) ctx(actorID uint64) context.Context {
	ctx := tenantctx.WithActor(context.Background(), actorID)
	return tenantctx.WithTenant(ctx, e.org.ID)
}

func TestChangeMemberRole_OwnerPromotesMember(t *testing.T) {
	env := setupMembershipTestEnv(t)
	env.addMember(t, 1, models.RoleOwner)
	env.addMember(t, 2, models.RoleMember)

	member, err := env.service.ChangeMemberRole(env.ctx(1), env.org.ID, 1, 2, models.RoleAdmin)
	require.NoError(t, err)
	require.Equal(t, models.RoleAdmin, member.Role)

	var stored models.OrganizationMember
	require.NoError(t, env.db.Where("organization_id = ? AND user_id = ?", env.org.ID, uint64(2)).First(&stored).Error)
	require.Equal(t, models.RoleAdmin, stored.Role)
}

func TestChangeMemberRole_OwnerMayGrantOwner(t *testing.T) {
	env := setupMembershipTestEnv(t)
	env.addMember(t, 1, models.RoleOwner)
	env.addMember(t, 2, models.RoleMember)

	member, err := env.service.ChangeMemberRole(env.ctx(1), env.org.ID, 1, 2, models.RoleOwner)
	require.NoError(t, err)
	require.Equal(t, models.RoleOwner, member.Role)
}

func TestChangeMemberRole_NonMemberDenied(t *testing.T) {
	env := setupMembershipTestEnv(t)
	env.addMember(t, 2, models.RoleMember)

	_, err := env.service.ChangeMemberRole(env.ctx(99), env.org.ID, 99, 2, models.RoleAdmin)
	require.ErrorIs(t, err, ErrNotWorkspaceMember)
}

func TestChangeMemberRole_MemberCannotManage(t *testing.T) {
	env := setupMembershipTestEnv(t)
	env.addMember(t, 1, models.RoleMember)
	env.addMember(t, 2, models.RoleViewer)

	_, err := env.service.ChangeMemberRole(env.ctx(1), env.org.ID, 1, 2, models.RoleMember)
	require.ErrorIs(t, err, ErrInsufficientRole)
}

func TestChangeMemberRole_AdminCannotActOnPeer(t *testing.T) {
	env := setupMembershipTestEnv(t)
	env.addMember(t, 1, models.RoleAdmin)
	env.addMember(t, 2, models.RoleAdmin)

	_, err := env.service.ChangeMemberRole(env.ctx(1), env.org.ID, 1, 2, models.RoleMember)
	require.ErrorIs(t, err, ErrCannotActOnPeer)
}

func TestChangeMemberRole_AdminCannotEscalateToOwnLevel(t *testing.T) {
	env := setupMembershipTestEnv(t)
	env.addMember(t, 1, models.RoleAdmin)
	env.addMember(t, 2, models.RoleMember)

	_, err := env.service.ChangeMemberRole(env.ctx(1), env.org.ID, 1, 2, models.RoleAdmin)
	require.ErrorIs(t, err, ErrRoleEscalation)
}

func TestChangeMemberRole_OnlyOwnerGrantsOwner(t *testing.T) {
	env := setupMembershipTestEnv(t)
	env.addMember(t, 1, models.RoleAdmin)
	env.addMember(t, 2, models.RoleMember)

	_, err := env.service.ChangeMemberRole(env.ctx(1), env.org.ID, 1, 2, models.RoleOwner)
	require.ErrorIs(t, err, ErrOnlyOwnerGrantsOwner)
}

func TestChangeMemberRole_InvalidRoleRejected(t *testing.T) {
	env := setupMembershipTestEnv(t)
	env.addMember(t, 1, models.RoleOwner)
	env.addMember(t, 2, models.RoleMember)

	_, err := env.service.ChangeMemberRole(env.ctx(1), env.org.ID, 1, 2, models.OrganizationRole("superadmin"))
	require.ErrorIs(t, err, ErrInvalidRole)
}

func TestChangeMemberRole_LastOwnerCannotSelfDemote(t *testing.T) {
	env := setupMembershipTestEnv(t)
	env.addMember(t, 1, models.RoleOwner)
	env.addMember(t, 2, models.RoleMember)

	_, err := env.service.ChangeMemberRole(env.ctx(1), env.org.ID, 1, 1, models.RoleAdmin)
	require.ErrorIs(t, err, ErrLastOwner)

	var stored models.OrganizationMember
	require.NoError(t, env.db.Where("organization_id = ? AND user_id = ?", env.org.ID, uint64(1)).First(&stored).Error)
	require.Equal(t, models.RoleOwner, stored.Role)
}

func TestChangeMemberRole_SecondOwnerMaySelfDemote(t *testing.T) {
	env := setupMembershipTestEnv(t)
	env.addMember(t, 1, models.RoleOwner)
	env.addMember(t, 2, models.RoleOwner)

	member, err := env.service.ChangeMemberRole(env.ctx(1), env.org.ID, 1, 1, models.RoleAdmin)
	require.NoError(t, err)
	require.Equal(t, models.RoleAdmin, member.Role)

	// The workspace keeps at least one active owner.
	var owners int64
	require.NoError(t, env.db.Model(&models.OrganizationMember{}).
		Where("organization_id = ? AND role = ? AND is_active = ?", env.org.ID, models.RoleOwner, true).
		Count(&owners).Error)
	require.EqualValues(t, 1, owners)
}

func TestRemoveMember_DeactivatesInsteadOfDeleting(t *testing.T) {
	env := setupMembershipTestEnv(t)
	env.addMember(t, 1, models.RoleOwner)
	env.addMember(t, 2, models.RoleMember)

	require.NoError(t, env.service.RemoveMember(env.ctx(1), env.org.ID, 1, 2))

	var stored models.OrganizationMember
	require.NoError(t, env.db.Where("organization_id = ? AND user_id = ?", env.org.ID, uint64(2)).First(&stored).Error)
	require.False(t, stored.IsActive)
	require.NotNil(t, stored.RemovedAt)
}

func TestRemoveMember_LastOwnerProtected(t *testing.T) {
	env := setupMembershipTestEnv(t)
	env.addMember(t, 1, models.RoleOwner)

	err := env.service.RemoveMember(env.ctx(1), env.org.ID, 1, 1)
	require.ErrorIs(t, err, ErrLastOwner)
}

func TestRemoveMember_TargetNotFound(t *testing.T) {
	env := setupMembershipTestEnv(t)
	env.addMember(t, 1, models.RoleOwner)

	err := env.service.RemoveMember(env.ctx(1), env.org.ID, 1, 99)
	require.ErrorIs(t, err, ErrMemberNotFound)
}

func TestLeaveWorkspace_SelfRemovalNeedsNoElevatedRole(t *testing.T) {
	env := setupMembershipTestEnv(t)
	env.addMember(t, 1, models.RoleOwner)
	env.addMember(t, 2, models.RoleViewer)

	require.NoError(t, env.service.LeaveWorkspace(env.ctx(2), env.org.ID, 2))

	var stored models.OrganizationMember
	require.NoError(t, env.db.Where("organization_id = ? AND user_id = ?", env.org.ID, uint64(2)).First(&stored).Error)
	require.False(t, stored.IsActive)
}

func TestMembershipMutations_AppendToAuditTrail(t *testing.T) {
	env := setupMembershipTestEnv(t)
	env.addMember(t, 1, models.RoleOwner)
	env.addMember(t, 2, models.RoleMember)

	_, err := env.service.ChangeMemberRole(env.ctx(1), env.org.ID, 1, 2, models.RoleAdmin)
	require.NoError(t, err)

	var logs []models.AuditLog
	require.NoError(t, env.db.Where("organization_id = ?", env.org.ID).Find(&logs).Error)
	require.NotEmpty(t, logs)
	require.Equal(t, "updated", logs[len(logs)-1].Action)
	require.Equal(t, "organization_members", logs[len(logs)-1].EntityTable)
	require.Contains(t, logs[len(logs)-1].Description, "role")
}

func TestChangeMemberRole_SelfPromotionDenied(t *testing.T) {
	env := setupMembershipTestEnv(t)
	env.addMember(t, 1, models.RoleOwner)
	env.addMember(t, 2, models.RoleViewer)
	env.addMember(t, 3, models.RoleAdmin)

	_, err := env.service.ChangeMemberRole(env.ctx(2), env.org.ID, 2, 2, models.RoleOwner)
	require.ErrorIs(t, err, ErrOnlyOwnerGrantsOwner)

	_, err = env.service.ChangeMemberRole(env.ctx(2), env.org.ID, 2, 2, models.RoleAdmin)
	require.ErrorIs(t, err, ErrRoleEscalation)

	_, err = env.service.ChangeMemberRole(env.ctx(3), env.org.ID, 3, 3, models.RoleOwner)
	require.ErrorIs(t, err, ErrOnlyOwnerGrantsOwner)

	var stored models.OrganizationMember
	require.NoError(t, env.db.Where("organization_id = ? AND user_id = ?", env.org.ID, uint64(2)).First(&stored).Error)
	require.Equal(t, models.RoleViewer, stored.Role)
}

func TestChangeMemberRole_SelfDemotionStillAllowed(t *testing.T) {
	env := setupMembershipTestEnv(t)
	env.addMember(t, 1, models.RoleOwner)
	env.addMember(t, 2, models.RoleAdmin)

	member, err := env.service.ChangeMemberRole(env.ctx(2), env.org.ID, 2, 2, models.RoleViewer)
	require.NoError(t, err)
	require.Equal(t, models.RoleViewer, member.Role)
}

func TestMemberCreatedInactive_StaysInactive(t *testing.T) {
	env := setupMembershipTestEnv(t)

	removedAt := time.Now().UTC()
	member := &models.OrganizationMember{
		OrganizationID: env.org.ID,
		UserID:         9,
		Role:           models.RoleMember,
		IsActive:       false,
		JoinedAt:       time.Now().UTC().Add(-time.Hour),
		RemovedAt:      &removedAt,
	}
	require.NoError(t, env.db.Create(member).Error)

	var stored models.OrganizationMember
	require.NoError(t, env.db.First(&stored, member.ID).Error)
	require.False(t, stored.IsActive)
}
