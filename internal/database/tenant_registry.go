package database

import "github.com/clearcomply/compliance-api/internal/models"

// tenantScopedTables is the closed set of tables whose reads are
// implicitly restricted to the active tenant. Built statically so the
// scoped-type set is auditable at compile time; adding a tenant-scoped
// model means adding it here and to Migrate.
var tenantScopedTables = map[string]struct{}{
	models.OrganizationMember{}.TableName(): {},
	models.Invitation{}.TableName():         {},
	models.Project{}.TableName():            {},
	models.ProjectMember{}.TableName():      {},
	models.AuditLog{}.TableName():           {},
}

// IsTenantScopedTable reports whether reads and blind writes against
// the table must carry the active tenant's organization_id condition.
func IsTenantScopedTable(table string) bool {
	_, ok := tenantScopedTables[table]
	return ok
}
