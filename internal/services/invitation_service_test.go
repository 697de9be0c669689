package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/clearcomply/compliance-api/internal/audit"
	"github.com/clearcomply/compliance-api/internal/models"
	"github.com/clearcomply/compliance-api/internal/repository"
	"github.com/clearcomply/compliance-api/internal/tenantctx"
	"github.com/clearcomply/compliance-api/internal/utils"
)

type invitationTestEnv struct {
	db      *gorm.DB
	service *InvitationService
	org     *models.Organization
	owner   *models.OrganizationMember
}

func setupInvitationTestEnv(t *testing.T) invitationTestEnv {
	t.Helper()

	db := setupServiceTestDB(t)

	maxMembers, maxProjects, maxStorage := models.TierTeam.Quotas()
	org := &models.Organization{
		Name:         "acme",
		Slug:         "acme",
		IsActive:     true,
		Tier:         models.TierTeam,
		MaxMembers:   maxMembers,
		MaxProjects:  maxProjects,
		MaxStorageMB: maxStorage,
	}
	require.NoError(t, db.Create(org).Error)

	ownerUser := createTestUser(t, db, "owner@acme.test")
	owner := &models.OrganizationMember{
		OrganizationID: org.ID,
		UserID:         ownerUser.ID,
		Role:           models.RoleOwner,
		IsActive:       true,
		JoinedAt:       time.Now().UTC(),
	}
	require.NoError(t, db.Create(owner).Error)

	service := NewInvitationService(
		db,
		repository.NewInvitationRepository(db),
		repository.NewOrganizationRepository(db),
		repository.NewUserRepository(db),
		NewLogNotifier(),
		audit.NewDispatcher(db),
		7*24*time.Hour,
	)

	return invitationTestEnv{db: db, service: service, org: org, owner: owner}
}

func createTestUser(t *testing.T, db *gorm.DB, email string) *models.User {
	t.Helper()
	user := &models.User{Email: email, Name: email, PasswordHash: "x"}
	require.NoError(t, db.Create(user).Error)
	return user
}

func (e invitationTestEnv) ctx(actorID uint64) context.Context {
	ctx := tenantctx.WithActor(context.Background(), actorID)
	return tenantctx.WithTenant(ctx, e.org.ID)
}

func TestInvitationCreate_PendingWithTokenAndDeadline(t *testing.T) {
	env := setupInvitationTestEnv(t)

	inv, err := env.service.Create(env.ctx(env.owner.UserID), env.org, env.owner, CreateInvitationInput{
		Email: "a@x.com",
		Role:  models.RoleMember,
	})
	require.NoError(t, err)
	require.Equal(t, models.InvitationPending, inv.Status)
	require.NotEmpty(t, inv.Token)
	require.WithinDuration(t, time.Now().UTC().Add(7*24*time.Hour), inv.ExpiresAt, time.Minute)
}

func TestInvitationCreate_GuardsInvitedRole(t *testing.T) {
	env := setupInvitationTestEnv(t)

	adminUser := createTestUser(t, env.db, "admin@acme.test")
	admin := &models.OrganizationMember{
		OrganizationID: env.org.ID,
		UserID:         adminUser.ID,
		Role:           models.RoleAdmin,
		IsActive:       true,
		JoinedAt:       time.Now().UTC(),
	}
	require.NoError(t, env.db.Create(admin).Error)

	_, err := env.service.Create(env.ctx(admin.UserID), env.org, admin, CreateInvitationInput{
		Email: "a@x.com",
		Role:  models.RoleOwner,
	})
	require.ErrorIs(t, err, ErrOnlyOwnerGrantsOwner)

	_, err = env.service.Create(env.ctx(admin.UserID), env.org, admin, CreateInvitationInput{
		Email: "a@x.com",
		Role:  models.RoleAdmin,
	})
	require.ErrorIs(t, err, ErrRoleEscalation)

	viewer := &models.OrganizationMember{
		OrganizationID: env.org.ID,
		UserID:         createTestUser(t, env.db, "viewer@acme.test").ID,
		Role:           models.RoleViewer,
		IsActive:       true,
		JoinedAt:       time.Now().UTC(),
	}
	require.NoError(t, env.db.Create(viewer).Error)

	_, err = env.service.Create(env.ctx(viewer.UserID), env.org, viewer, CreateInvitationInput{
		Email: "a@x.com",
		Role:  models.RoleViewer,
	})
	require.ErrorIs(t, err, ErrInsufficientRole)
}

func TestInvitationCreate_RejectsDuplicates(t *testing.T) {
	env := setupInvitationTestEnv(t)
	ctx := env.ctx(env.owner.UserID)

	_, err := env.service.Create(ctx, env.org, env.owner, CreateInvitationInput{
		Email: "a@x.com",
		Role:  models.RoleMember,
	})
	require.NoError(t, err)

	_, err = env.service.Create(ctx, env.org, env.owner, CreateInvitationInput{
		Email: "A@X.COM",
		Role:  models.RoleMember,
	})
	require.ErrorIs(t, err, ErrPendingInvitationExists)
}

func TestInvitationCreate_RejectsExistingMember(t *testing.T) {
	env := setupInvitationTestEnv(t)

	_, err := env.service.Create(env.ctx(env.owner.UserID), env.org, env.owner, CreateInvitationInput{
		Email: "owner@acme.test",
		Role:  models.RoleMember,
	})
	require.ErrorIs(t, err, ErrAlreadyMember)
}

func TestInvitationCreate_EnforcesMemberQuota(t *testing.T) {
	env := setupInvitationTestEnv(t)

	env.org.MaxMembers = 1
	require.NoError(t, env.db.Model(env.org).Update("max_members", 1).Error)

	_, err := env.service.Create(env.ctx(env.owner.UserID), env.org, env.owner, CreateInvitationInput{
		Email: "a@x.com",
		Role:  models.RoleMember,
	})
	require.ErrorIs(t, err, ErrMemberQuotaReached)
}

func TestInvitationAccept_CreatesMembership(t *testing.T) {
	env := setupInvitationTestEnv(t)

	inv, err := env.service.Create(env.ctx(env.owner.UserID), env.org, env.owner, CreateInvitationInput{
		Email: "a@x.com",
		Role:  models.RoleMember,
	})
	require.NoError(t, err)

	invitee := createTestUser(t, env.db, "A@x.com") // case differs, must still match
	acceptCtx := tenantctx.WithActor(context.Background(), invitee.ID)

	member, err := env.service.Accept(acceptCtx, invitee, inv.Token)
	require.NoError(t, err)
	require.Equal(t, env.org.ID, member.OrganizationID)
	require.Equal(t, models.RoleMember, member.Role)
	require.True(t, member.IsActive)

	var stored models.Invitation
	require.NoError(t, env.db.First(&stored, inv.ID).Error)
	require.Equal(t, models.InvitationAccepted, stored.Status)
	require.NotNil(t, stored.AcceptedAt)
	require.NotNil(t, stored.MemberID)
	require.Equal(t, member.ID, *stored.MemberID)
}

func TestInvitationAccept_EmailMismatchRejected(t *testing.T) {
	env := setupInvitationTestEnv(t)

	inv, err := env.service.Create(env.ctx(env.owner.UserID), env.org, env.owner, CreateInvitationInput{
		Email: "a@x.com",
		Role:  models.RoleMember,
	})
	require.NoError(t, err)

	stranger := createTestUser(t, env.db, "b@x.com")
	_, err = env.service.Accept(context.Background(), stranger, inv.Token)
	require.ErrorIs(t, err, ErrInvitationEmailMismatch)
}

func TestInvitationAccept_SecondAttemptFails(t *testing.T) {
	env := setupInvitationTestEnv(t)

	inv, err := env.service.Create(env.ctx(env.owner.UserID), env.org, env.owner, CreateInvitationInput{
		Email: "a@x.com",
		Role:  models.RoleMember,
	})
	require.NoError(t, err)

	invitee := createTestUser(t, env.db, "a@x.com")
	acceptCtx := tenantctx.WithActor(context.Background(), invitee.ID)

	_, err = env.service.Accept(acceptCtx, invitee, inv.Token)
	require.NoError(t, err)

	_, err = env.service.Accept(acceptCtx, invitee, inv.Token)
	require.ErrorIs(t, err, ErrInvitationAlreadyAccepted)

	err = env.service.Decline(acceptCtx, invitee, inv.Token, "")
	require.ErrorIs(t, err, ErrInvitationAlreadyAccepted)
}

func TestInvitationAccept_LazyExpiry(t *testing.T) {
	env := setupInvitationTestEnv(t)

	inv, err := env.service.Create(env.ctx(env.owner.UserID), env.org, env.owner, CreateInvitationInput{
		Email: "a@x.com",
		Role:  models.RoleMember,
	})
	require.NoError(t, err)

	// Move the deadline into the past; the next accept attempt both
	// fails and materializes the expired state.
	require.NoError(t, env.db.Model(&models.Invitation{}).Where("id = ?", inv.ID).
		Update("expires_at", time.Now().UTC().Add(-time.Hour)).Error)

	invitee := createTestUser(t, env.db, "a@x.com")
	_, err = env.service.Accept(tenantctx.WithActor(context.Background(), invitee.ID), invitee, inv.Token)
	require.ErrorIs(t, err, ErrInvitationExpired)

	var stored models.Invitation
	require.NoError(t, env.db.First(&stored, inv.ID).Error)
	require.Equal(t, models.InvitationExpired, stored.Status)

	var memberships int64
	require.NoError(t, env.db.Model(&models.OrganizationMember{}).
		Where("organization_id = ? AND user_id = ?", env.org.ID, invitee.ID).
		Count(&memberships).Error)
	require.Zero(t, memberships)
}

func TestInvitationAccept_ReactivatesPriorMembership(t *testing.T) {
	env := setupInvitationTestEnv(t)

	invitee := createTestUser(t, env.db, "a@x.com")
	removedAt := time.Now().UTC().Add(-24 * time.Hour)
	prior := &models.OrganizationMember{
		OrganizationID: env.org.ID,
		UserID:         invitee.ID,
		Role:           models.RoleAdmin,
		IsActive:       false,
		JoinedAt:       time.Now().UTC().Add(-48 * time.Hour),
		RemovedAt:      &removedAt,
	}
	require.NoError(t, env.db.Create(prior).Error)

	inv, err := env.service.Create(env.ctx(env.owner.UserID), env.org, env.owner, CreateInvitationInput{
		Email: "a@x.com",
		Role:  models.RoleMember,
	})
	require.NoError(t, err)

	member, err := env.service.Accept(tenantctx.WithActor(context.Background(), invitee.ID), invitee, inv.Token)
	require.NoError(t, err)

	// Reactivated in place: same row, role reset to the invitation's.
	require.Equal(t, prior.ID, member.ID)
	require.Equal(t, models.RoleMember, member.Role)
	require.True(t, member.IsActive)
	require.Nil(t, member.RemovedAt)

	var count int64
	require.NoError(t, env.db.Model(&models.OrganizationMember{}).
		Where("organization_id = ? AND user_id = ?", env.org.ID, invitee.ID).
		Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestInvitationDecline_RecordsReason(t *testing.T) {
	env := setupInvitationTestEnv(t)

	inv, err := env.service.Create(env.ctx(env.owner.UserID), env.org, env.owner, CreateInvitationInput{
		Email: "a@x.com",
		Role:  models.RoleMember,
	})
	require.NoError(t, err)

	invitee := createTestUser(t, env.db, "a@x.com")
	err = env.service.Decline(tenantctx.WithActor(context.Background(), invitee.ID), invitee, inv.Token, "wrong company")
	require.NoError(t, err)

	var stored models.Invitation
	require.NoError(t, env.db.First(&stored, inv.ID).Error)
	require.Equal(t, models.InvitationDeclined, stored.Status)
	require.NotNil(t, stored.DeclineReason)
	require.Equal(t, "wrong company", *stored.DeclineReason)
}

func TestInvitationRevoke_OnlyFromPending(t *testing.T) {
	env := setupInvitationTestEnv(t)
	ctx := env.ctx(env.owner.UserID)

	inv, err := env.service.Create(ctx, env.org, env.owner, CreateInvitationInput{
		Email: "a@x.com",
		Role:  models.RoleMember,
	})
	require.NoError(t, err)

	revoked, err := env.service.Revoke(ctx, inv.ID, env.owner)
	require.NoError(t, err)
	require.Equal(t, models.InvitationRevoked, revoked.Status)
	require.NotNil(t, revoked.RevokedByID)
	require.Equal(t, env.owner.UserID, *revoked.RevokedByID)

	_, err = env.service.Revoke(ctx, inv.ID, env.owner)
	require.ErrorIs(t, err, ErrInvitationNotPending)
}

func TestInvitationList_MaterializesExpiry(t *testing.T) {
	env := setupInvitationTestEnv(t)
	ctx := env.ctx(env.owner.UserID)

	inv, err := env.service.Create(ctx, env.org, env.owner, CreateInvitationInput{
		Email: "a@x.com",
		Role:  models.RoleMember,
	})
	require.NoError(t, err)

	require.NoError(t, env.db.Model(&models.Invitation{}).Where("id = ?", inv.ID).
		Update("expires_at", time.Now().UTC().Add(-time.Hour)).Error)

	invitations, total, err := env.service.List(ctx, env.org.ID, utils.PaginationParams{Page: 1, Limit: 20})
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
	require.Equal(t, models.InvitationExpired, invitations[0].Status)

	var stored models.Invitation
	require.NoError(t, env.db.First(&stored, inv.ID).Error)
	require.Equal(t, models.InvitationExpired, stored.Status)
}

// Full workspace handover: invite, accept, promote to owner, then the
// original owner leaves.
func TestInvitationAndMembership_EndToEnd(t *testing.T) {
	env := setupInvitationTestEnv(t)
	membership := NewMembershipService(env.db, audit.NewDispatcher(env.db))
	ownerCtx := env.ctx(env.owner.UserID)

	inv, err := env.service.Create(ownerCtx, env.org, env.owner, CreateInvitationInput{
		Email: "a@x.com",
		Role:  models.RoleMember,
	})
	require.NoError(t, err)

	invitee := createTestUser(t, env.db, "a@x.com")
	member, err := env.service.Accept(tenantctx.WithActor(context.Background(), invitee.ID), invitee, inv.Token)
	require.NoError(t, err)
	require.Equal(t, models.RoleMember, member.Role)

	// The sole owner cannot leave yet.
	err = membership.LeaveWorkspace(ownerCtx, env.org.ID, env.owner.UserID)
	require.ErrorIs(t, err, ErrLastOwner)

	_, err = membership.ChangeMemberRole(ownerCtx, env.org.ID, env.owner.UserID, invitee.ID, models.RoleOwner)
	require.NoError(t, err)

	// With a second owner in place, the handover completes.
	require.NoError(t, membership.LeaveWorkspace(ownerCtx, env.org.ID, env.owner.UserID))

	var owners []models.OrganizationMember
	require.NoError(t, env.db.
		Where("organization_id = ? AND role = ? AND is_active = ?", env.org.ID, models.RoleOwner, true).
		Find(&owners).Error)
	require.Len(t, owners, 1)
	require.Equal(t, invitee.ID, owners[0].UserID)
}
