package database

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/clearcomply/compliance-api/internal/audit"
	"github.com/clearcomply/compliance-api/internal/models"
	"github.com/clearcomply/compliance-api/internal/tenantctx"
)

func setupInterceptorTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	require.NoError(t, err)

	require.NoError(t, RegisterInterceptors(db))

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

func actorTenantCtx(actorID, tenantID uint64) context.Context {
	ctx := tenantctx.WithActor(context.Background(), actorID)
	return tenantctx.WithTenant(ctx, tenantID)
}

func createOrganization(t *testing.T, db *gorm.DB, name string) *models.Organization {
	t.Helper()
	org := &models.Organization{
		Name:     name,
		Slug:     name,
		IsActive: true,
		Tier:     models.TierFree,
	}
	require.NoError(t, db.Create(org).Error)
	return org
}

func TestInterceptors_TenantStampingOnCreate(t *testing.T) {
	db := setupInterceptorTestDB(t)
	org := createOrganization(t, db, "acme")

	ctx := actorTenantCtx(42, org.ID)
	project := &models.Project{Name: "soc2 audit"}
	require.NoError(t, db.WithContext(ctx).Create(project).Error)

	var stored models.Project
	require.NoError(t, db.First(&stored, project.ID).Error)
	require.Equal(t, org.ID, stored.OrganizationID)
}

func TestInterceptors_ExplicitTenantNotOverwritten(t *testing.T) {
	db := setupInterceptorTestDB(t)
	org1 := createOrganization(t, db, "acme")
	org2 := createOrganization(t, db, "globex")

	// The enforcer fills gaps; it never overwrites a set tenant id.
	ctx := actorTenantCtx(42, org1.ID)
	project := &models.Project{Name: "iso audit", OrganizationID: org2.ID}
	require.NoError(t, db.WithContext(ctx).Create(project).Error)

	var stored models.Project
	require.NoError(t, db.First(&stored, project.ID).Error)
	require.Equal(t, org2.ID, stored.OrganizationID)
}

func TestInterceptors_TenantIDImmutable(t *testing.T) {
	db := setupInterceptorTestDB(t)
	org1 := createOrganization(t, db, "acme")
	org2 := createOrganization(t, db, "globex")

	ctx := actorTenantCtx(42, org1.ID)
	project := &models.Project{Name: "soc2 audit"}
	require.NoError(t, db.WithContext(ctx).Create(project).Error)

	project.OrganizationID = org2.ID
	err := db.WithContext(ctx).Save(project).Error
	require.Error(t, err)
	require.ErrorIs(t, err, ErrTenantIsolationViolation)
	require.True(t, IsIntegrityViolation(err))

	var stored models.Project
	require.NoError(t, db.Unscoped().First(&stored, project.ID).Error)
	require.Equal(t, org1.ID, stored.OrganizationID)
}

func TestInterceptors_CrossTenantMutationDenied(t *testing.T) {
	db := setupInterceptorTestDB(t)
	org1 := createOrganization(t, db, "acme")
	org2 := createOrganization(t, db, "globex")

	project := &models.Project{Name: "soc2 audit"}
	require.NoError(t, db.WithContext(actorTenantCtx(42, org1.ID)).Create(project).Error)

	// Update from the wrong tenant fails before any stamping.
	foreignCtx := actorTenantCtx(99, org2.ID)
	project.Name = "tampered"
	err := db.WithContext(foreignCtx).Save(project).Error
	require.ErrorIs(t, err, ErrCrossTenantAccess)

	var stored models.Project
	require.NoError(t, db.Unscoped().First(&stored, project.ID).Error)
	require.Equal(t, "soc2 audit", stored.Name)
	require.Equal(t, uint64(42), *stored.UpdatedByID) // creation stamp, untouched

	// Deletes are rejected the same way.
	err = db.WithContext(foreignCtx).Delete(&models.Project{ID: project.ID}).Error
	require.ErrorIs(t, err, ErrCrossTenantAccess)

	require.NoError(t, db.Unscoped().First(&stored, project.ID).Error)
	require.False(t, stored.IsDeleted)
}

func TestInterceptors_SoftDeleteNeverPhysical(t *testing.T) {
	db := setupInterceptorTestDB(t)
	org := createOrganization(t, db, "acme")

	ctx := actorTenantCtx(42, org.ID)
	project := &models.Project{Name: "soc2 audit"}
	require.NoError(t, db.WithContext(ctx).Create(project).Error)

	require.NoError(t, db.WithContext(ctx).Delete(project).Error)

	// Still retrievable by raw id lookup.
	var stored models.Project
	require.NoError(t, db.Unscoped().First(&stored, project.ID).Error)
	require.True(t, stored.IsDeleted)
	require.True(t, stored.DeletedAt.Valid)
	require.NotNil(t, stored.DeletedByID)
	require.Equal(t, uint64(42), *stored.DeletedByID)

	// Absent from standard filtered queries.
	var visible []models.Project
	require.NoError(t, db.WithContext(ctx).Find(&visible).Error)
	require.Empty(t, visible)
}

func TestInterceptors_TombstoneSetOnce(t *testing.T) {
	db := setupInterceptorTestDB(t)
	org := createOrganization(t, db, "acme")

	ctx := actorTenantCtx(42, org.ID)
	project := &models.Project{Name: "soc2 audit"}
	require.NoError(t, db.WithContext(ctx).Create(project).Error)
	require.NoError(t, db.WithContext(ctx).Delete(project).Error)

	var stored models.Project
	require.NoError(t, db.Unscoped().First(&stored, project.ID).Error)
	firstDeletedAt := stored.DeletedAt

	// A second delete by someone else finds no live row to tombstone.
	res := db.WithContext(actorTenantCtx(7, org.ID)).Delete(&stored)
	require.NoError(t, res.Error)
	require.Zero(t, res.RowsAffected)

	require.NoError(t, db.Unscoped().First(&stored, project.ID).Error)
	require.Equal(t, firstDeletedAt, stored.DeletedAt)
	require.Equal(t, uint64(42), *stored.DeletedByID)
}

func TestInterceptors_AuditStampIdempotenceBoundary(t *testing.T) {
	db := setupInterceptorTestDB(t)
	org := createOrganization(t, db, "acme")

	ctx := actorTenantCtx(42, org.ID)
	project := &models.Project{Name: "soc2 audit"}
	require.NoError(t, db.WithContext(ctx).Create(project).Error)

	var created models.Project
	require.NoError(t, db.First(&created, project.ID).Error)
	require.NotNil(t, created.CreatedByID)
	require.Equal(t, uint64(42), *created.CreatedByID)
	require.Equal(t, uint64(42), *created.UpdatedByID)

	// A later update by a different actor moves the modified stamps
	// and leaves the creation stamps alone.
	otherCtx := actorTenantCtx(7, org.ID)
	created.Name = "soc2 audit 2024"
	require.NoError(t, db.WithContext(otherCtx).Save(&created).Error)

	var updated models.Project
	require.NoError(t, db.First(&updated, project.ID).Error)
	require.Equal(t, uint64(42), *updated.CreatedByID)
	require.Equal(t, uint64(7), *updated.UpdatedByID)
	require.Equal(t, created.CreatedAt, updated.CreatedAt)
}

func TestInterceptors_ReadFilterScopesToTenant(t *testing.T) {
	db := setupInterceptorTestDB(t)
	org1 := createOrganization(t, db, "acme")
	org2 := createOrganization(t, db, "globex")

	require.NoError(t, db.WithContext(actorTenantCtx(1, org1.ID)).Create(&models.Project{Name: "p1"}).Error)
	require.NoError(t, db.WithContext(actorTenantCtx(2, org2.ID)).Create(&models.Project{Name: "p2"}).Error)

	var scoped []models.Project
	require.NoError(t, db.WithContext(actorTenantCtx(1, org1.ID)).Find(&scoped).Error)
	require.Len(t, scoped, 1)
	require.Equal(t, "p1", scoped[0].Name)

	// No tenant on the context means no filter (system context).
	var all []models.Project
	require.NoError(t, db.WithContext(context.Background()).Find(&all).Error)
	require.Len(t, all, 2)

	// A masked tenant behaves like no tenant.
	var masked []models.Project
	maskedCtx := tenantctx.WithoutTenant(actorTenantCtx(1, org1.ID))
	require.NoError(t, db.WithContext(maskedCtx).Find(&masked).Error)
	require.Len(t, masked, 2)
}

func TestInterceptors_LifecycleEventsRecorded(t *testing.T) {
	db := setupInterceptorTestDB(t)
	org := createOrganization(t, db, "acme")

	ctx, trail := audit.WithTrail(actorTenantCtx(42, org.ID))

	project := &models.Project{Name: "soc2 audit"}
	require.NoError(t, db.WithContext(ctx).Create(project).Error)

	project.Name = "soc2 audit 2024"
	require.NoError(t, db.WithContext(ctx).Save(project).Error)

	require.NoError(t, db.WithContext(ctx).Delete(project).Error)

	events := trail.Drain()
	require.Len(t, events, 3)

	require.Equal(t, audit.ActionCreated, events[0].Action)
	require.Equal(t, "projects", events[0].Table)
	require.Equal(t, project.ID, events[0].EntityID)
	require.Equal(t, org.ID, events[0].OrganizationID)
	require.Equal(t, uint64(42), *events[0].ActorID)

	require.Equal(t, audit.ActionUpdated, events[1].Action)
	require.Contains(t, events[1].ChangedFields, "name")
	require.NotContains(t, events[1].ChangedFields, "updated_at")

	require.Equal(t, audit.ActionDeleted, events[2].Action)

	// Draining resets the trail.
	require.Empty(t, trail.Drain())
}

func TestInterceptors_NoEventsWithoutTrail(t *testing.T) {
	db := setupInterceptorTestDB(t)
	org := createOrganization(t, db, "acme")

	ctx := actorTenantCtx(42, org.ID)
	project := &models.Project{Name: "soc2 audit"}
	require.NoError(t, db.WithContext(ctx).Create(project).Error)

	// Nothing to assert beyond "does not blow up": events are only
	// collected when a unit of work attaches a trail.
	require.NoError(t, db.WithContext(ctx).Delete(project).Error)
}

func TestDispatcher_PersistsDrainedEvents(t *testing.T) {
	db := setupInterceptorTestDB(t)
	org := createOrganization(t, db, "acme")

	ctx, trail := audit.WithTrail(actorTenantCtx(42, org.ID))
	project := &models.Project{Name: "soc2 audit"}
	require.NoError(t, db.WithContext(ctx).Create(project).Error)

	audit.NewDispatcher(db).Dispatch(context.Background(), trail.Drain())

	var rows []models.AuditLog
	require.NoError(t, db.Find(&rows).Error)
	require.Len(t, rows, 1)
	require.Equal(t, org.ID, rows[0].OrganizationID)
	require.Equal(t, "created", rows[0].Action)
	require.Equal(t, "projects", rows[0].EntityTable)
	require.Equal(t, project.ID, rows[0].EntityID)
}
