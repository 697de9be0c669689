package database

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"

	"github.com/clearcomply/compliance-api/internal/audit"
	"github.com/clearcomply/compliance-api/internal/models"
	"github.com/clearcomply/compliance-api/internal/tenantctx"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/schema"
)

// Integrity violations are programming errors, not business failures:
// an authorized, correctly scoped caller can never trigger them. They
// abort the unit of work and must never be mapped to a 4xx response.
var (
	// ErrTenantIsolationViolation is raised when an update would change
	// a persisted record's organization id.
	ErrTenantIsolationViolation = errors.New("integrity: tenant id is immutable")

	// ErrCrossTenantAccess is raised when a mutation targets a record
	// owned by a different organization than the active tenant.
	ErrCrossTenantAccess = errors.New("integrity: cross-tenant mutation rejected")
)

// IsIntegrityViolation reports whether err is one of the
// non-recoverable isolation failures.
func IsIntegrityViolation(err error) bool {
	return errors.Is(err, ErrTenantIsolationViolation) || errors.Is(err, ErrCrossTenantAccess)
}

// RegisterInterceptors installs the tenant-isolation and entity
// lifecycle callbacks. Isolation checks run strictly before audit
// stamping, so a cross-tenant mutation never reaches the stamping or
// soft-delete stage.
func RegisterInterceptors(db *gorm.DB) error {
	c := db.Callback()
	if err := c.Create().Before("gorm:create").Register("integrity:create_stamp", createStamp); err != nil {
		return err
	}
	if err := c.Create().After("gorm:create").Register("integrity:create_event", createEvent); err != nil {
		return err
	}
	if err := c.Update().Before("gorm:update").Register("integrity:update_guard", updateGuard); err != nil {
		return err
	}
	if err := c.Update().After("gorm:update").Register("integrity:update_event", updateEvent); err != nil {
		return err
	}
	if err := c.Delete().Before("gorm:delete").Register("integrity:delete_guard", deleteGuard); err != nil {
		return err
	}
	if err := c.Delete().Replace("gorm:delete", softDeleteConvert); err != nil {
		return err
	}
	if err := c.Delete().After("gorm:delete").Register("integrity:delete_event", deleteEvent); err != nil {
		return err
	}
	if err := c.Query().Before("gorm:query").Register("integrity:tenant_filter", tenantFilter); err != nil {
		return err
	}
	return nil
}

// createStamp fills a missing organization id from the active tenant
// and records the creating actor. An explicitly set tenant id is never
// overwritten.
func createStamp(db *gorm.DB) {
	stmt := db.Statement
	if db.Error != nil || stmt.Schema == nil {
		return
	}

	tenantID, hasTenant := tenantctx.TenantID(stmt.Context)
	actorID, hasActor := tenantctx.ActorID(stmt.Context)

	forEachStatementValue(stmt, func(rv reflect.Value) {
		if !rv.CanAddr() {
			return
		}
		entity := rv.Addr().Interface()
		if scoped, ok := entity.(models.TenantScoped); ok && hasTenant && scoped.TenantID() == 0 {
			scoped.SetTenantID(tenantID)
		}
		if audited, ok := entity.(models.AuditedEntity); ok {
			if hasActor {
				actor := actorID
				audited.StampCreated(&actor)
			} else {
				audited.StampCreated(nil)
			}
		}
	})
}

func createEvent(db *gorm.DB) {
	stmt := db.Statement
	if db.Error != nil || stmt.Schema == nil || db.RowsAffected == 0 {
		return
	}
	trail, ok := audit.TrailFrom(stmt.Context)
	if !ok {
		return
	}

	now := db.NowFunc()
	forEachStatementValue(stmt, func(rv reflect.Value) {
		if !rv.CanAddr() {
			return
		}
		entity := rv.Addr().Interface()
		if _, audited := entity.(models.AuditedEntity); !audited {
			return
		}
		id, ok := primaryKeyOf(stmt, rv)
		if !ok {
			return
		}
		trail.Record(audit.Event{
			Action:         audit.ActionCreated,
			Table:          stmt.Table,
			EntityID:       id,
			OrganizationID: eventOrganization(stmt.Context, entity, id, stmt.Table),
			ActorID:        actorPtr(stmt.Context),
			OccurredAt:     now,
		})
	})
}

// updateGuard enforces tenant-id immutability and cross-tenant denial
// before any audit stamping happens, then records the changed columns
// and stamps the updating actor.
func updateGuard(db *gorm.DB) {
	stmt := db.Statement
	if db.Error != nil || stmt.Schema == nil {
		return
	}

	tenantID, hasTenant := tenantctx.TenantID(stmt.Context)

	pk, hasPK := statementPrimaryKey(stmt)
	if !hasPK {
		// Blind update without a loaded entity: the best the enforcer
		// can do is scope the write to the active tenant.
		if hasTenant && IsTenantScopedTable(stmt.Table) {
			stmt.AddClause(clause.Where{Exprs: []clause.Expression{
				clause.Eq{Column: clause.Column{Table: stmt.Table, Name: "organization_id"}, Value: tenantID},
			}})
		}
		stampUpdatedBy(stmt)
		return
	}

	original, err := loadPersisted(db, stmt, pk)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			stampUpdatedBy(stmt)
			return
		}
		db.AddError(err)
		return
	}

	if origScoped, ok := original.(models.TenantScoped); ok {
		originalTenant := origScoped.TenantID()
		pendingTenant := pendingTenantID(stmt, originalTenant)
		if pendingTenant != originalTenant {
			db.AddError(fmt.Errorf("%w: %s id=%d organization %d -> %d",
				ErrTenantIsolationViolation, stmt.Table, pk, originalTenant, pendingTenant))
			return
		}
		if hasTenant && originalTenant != tenantID {
			db.AddError(fmt.Errorf("%w: %s id=%d belongs to organization %d, active tenant is %d",
				ErrCrossTenantAccess, stmt.Table, pk, originalTenant, tenantID))
			return
		}
	}

	if changed := changedColumns(stmt, original); len(changed) > 0 {
		db.InstanceSet("integrity:changed_columns", changed)
	}

	stampUpdatedBy(stmt)
}

func updateEvent(db *gorm.DB) {
	stmt := db.Statement
	if db.Error != nil || stmt.Schema == nil || db.RowsAffected == 0 {
		return
	}
	if !statementIsAudited(stmt) {
		return
	}
	trail, ok := audit.TrailFrom(stmt.Context)
	if !ok {
		return
	}
	stored, ok := db.InstanceGet("integrity:changed_columns")
	if !ok {
		return
	}
	changed, _ := stored.([]string)
	if len(changed) == 0 {
		return
	}
	pk, ok := statementPrimaryKey(stmt)
	if !ok {
		return
	}

	var entity any
	if stmt.ReflectValue.Kind() == reflect.Struct && stmt.ReflectValue.CanAddr() {
		entity = stmt.ReflectValue.Addr().Interface()
	}
	trail.Record(audit.Event{
		Action:         audit.ActionUpdated,
		Table:          stmt.Table,
		EntityID:       pk,
		OrganizationID: eventOrganization(stmt.Context, entity, pk, stmt.Table),
		ActorID:        actorPtr(stmt.Context),
		OccurredAt:     db.NowFunc(),
		ChangedFields:  changed,
	})
}

// deleteGuard applies the cross-tenant check before the delete is
// rewritten as a tombstone update.
func deleteGuard(db *gorm.DB) {
	stmt := db.Statement
	if db.Error != nil || stmt.Schema == nil || stmt.Unscoped {
		return
	}

	tenantID, hasTenant := tenantctx.TenantID(stmt.Context)

	pk, hasPK := statementPrimaryKey(stmt)
	if !hasPK {
		if hasTenant && IsTenantScopedTable(stmt.Table) {
			stmt.AddClause(clause.Where{Exprs: []clause.Expression{
				clause.Eq{Column: clause.Column{Table: stmt.Table, Name: "organization_id"}, Value: tenantID},
			}})
		}
		return
	}
	if !hasTenant {
		return
	}

	original, err := loadPersisted(db, stmt, pk)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return
		}
		db.AddError(err)
		return
	}
	if scoped, ok := original.(models.TenantScoped); ok && scoped.TenantID() != tenantID {
		db.AddError(fmt.Errorf("%w: %s id=%d belongs to organization %d, active tenant is %d",
			ErrCrossTenantAccess, stmt.Table, pk, scoped.TenantID(), tenantID))
	}
}

// softDeleteConvert replaces gorm:delete. Deletes of audited models
// are rewritten in place as tombstone updates; the store never
// receives a physical DELETE for them. Unscoped deletes and
// non-audited models keep the plain delete path.
func softDeleteConvert(db *gorm.DB) {
	stmt := db.Statement
	if db.Error != nil {
		return
	}
	if stmt.Schema == nil || stmt.Unscoped || !statementIsAudited(stmt) {
		hardDelete(db)
		return
	}

	if stmt.SQL.Len() == 0 {
		now := db.NowFunc()
		assignments := clause.Set{
			{Column: clause.Column{Name: "deleted_at"}, Value: now},
			{Column: clause.Column{Name: "is_deleted"}, Value: true},
			{Column: clause.Column{Name: "updated_at"}, Value: now},
		}
		if actorID, ok := tenantctx.ActorID(stmt.Context); ok {
			assignments = append(assignments,
				clause.Assignment{Column: clause.Column{Name: "deleted_by_id"}, Value: actorID},
				clause.Assignment{Column: clause.Column{Name: "updated_by_id"}, Value: actorID},
			)
		}
		stmt.AddClause(assignments)

		addPrimaryKeyConditions(stmt)
		if _, ok := stmt.Clauses["WHERE"]; !ok && !db.AllowGlobalUpdate {
			db.AddError(gorm.ErrMissingWhereClause)
			return
		}

		// a tombstoned row is never tombstoned twice
		stmt.AddClause(clause.Where{Exprs: []clause.Expression{
			clause.Eq{Column: clause.Column{Table: stmt.Table, Name: "deleted_at"}, Value: nil},
		}})

		stmt.AddClauseIfNotExists(clause.Update{})
		stmt.Build(db.Callback().Update().Clauses...)
	}

	execStatement(db)
}

func hardDelete(db *gorm.DB) {
	stmt := db.Statement
	if stmt.SQL.Len() == 0 {
		stmt.SQL.Grow(100)
		stmt.AddClauseIfNotExists(clause.Delete{})
		if stmt.Schema != nil {
			addPrimaryKeyConditions(stmt)
		}
		if _, ok := stmt.Clauses["WHERE"]; !ok && !db.AllowGlobalUpdate {
			db.AddError(gorm.ErrMissingWhereClause)
			return
		}
		stmt.AddClauseIfNotExists(clause.From{})
		stmt.Build(stmt.BuildClauses...)
	}
	execStatement(db)
}

func deleteEvent(db *gorm.DB) {
	stmt := db.Statement
	if db.Error != nil || stmt.Schema == nil || stmt.Unscoped || db.RowsAffected == 0 {
		return
	}
	if !statementIsAudited(stmt) {
		return
	}
	trail, ok := audit.TrailFrom(stmt.Context)
	if !ok {
		return
	}
	pk, ok := statementPrimaryKey(stmt)
	if !ok {
		return
	}

	var entity any
	if stmt.ReflectValue.Kind() == reflect.Struct && stmt.ReflectValue.CanAddr() {
		entity = stmt.ReflectValue.Addr().Interface()
	}
	trail.Record(audit.Event{
		Action:         audit.ActionDeleted,
		Table:          stmt.Table,
		EntityID:       pk,
		OrganizationID: eventOrganization(stmt.Context, entity, pk, stmt.Table),
		ActorID:        actorPtr(stmt.Context),
		OccurredAt:     db.NowFunc(),
	})
}

// tenantFilter restricts reads of tenant-scoped tables to the active
// tenant. Contexts without a tenant (system/background work) read
// unfiltered, as do Unscoped queries.
func tenantFilter(db *gorm.DB) {
	stmt := db.Statement
	if db.Error != nil || stmt.Unscoped {
		return
	}
	tenantID, ok := tenantctx.TenantID(stmt.Context)
	if !ok {
		return
	}
	table := stmt.Table
	if table == "" && stmt.Schema != nil {
		table = stmt.Schema.Table
	}
	if !IsTenantScopedTable(table) {
		return
	}
	stmt.AddClause(clause.Where{Exprs: []clause.Expression{
		clause.Eq{Column: clause.Column{Table: table, Name: "organization_id"}, Value: tenantID},
	}})
}

// --- helpers ---

var auditColumns = map[string]struct{}{
	"created_at":    {},
	"created_by_id": {},
	"updated_at":    {},
	"updated_by_id": {},
	"is_deleted":    {},
	"deleted_at":    {},
	"deleted_by_id": {},
}

func isAuditColumn(name string) bool {
	_, ok := auditColumns[name]
	return ok
}

func forEachStatementValue(stmt *gorm.Statement, fn func(rv reflect.Value)) {
	switch stmt.ReflectValue.Kind() {
	case reflect.Slice, reflect.Array:
		for i := 0; i < stmt.ReflectValue.Len(); i++ {
			rv := reflect.Indirect(stmt.ReflectValue.Index(i))
			if rv.Kind() == reflect.Struct {
				fn(rv)
			}
		}
	case reflect.Struct:
		fn(stmt.ReflectValue)
	}
}

func statementIsAudited(stmt *gorm.Statement) bool {
	if stmt.Schema == nil {
		return false
	}
	_, ok := reflect.New(stmt.Schema.ModelType).Interface().(models.AuditedEntity)
	return ok
}

func primaryKeyOf(stmt *gorm.Statement, rv reflect.Value) (uint64, bool) {
	field := stmt.Schema.PrioritizedPrimaryField
	if field == nil {
		return 0, false
	}
	v, zero := field.ValueOf(stmt.Context, rv)
	if zero {
		return 0, false
	}
	return toUint64(v)
}

func statementPrimaryKey(stmt *gorm.Statement) (uint64, bool) {
	if stmt.Schema == nil || stmt.ReflectValue.Kind() != reflect.Struct {
		return 0, false
	}
	return primaryKeyOf(stmt, stmt.ReflectValue)
}

func toUint64(v any) (uint64, bool) {
	switch n := v.(type) {
	case uint64:
		return n, true
	case uint:
		return uint64(n), true
	case uint32:
		return uint64(n), true
	case int64:
		if n >= 0 {
			return uint64(n), true
		}
	case int:
		if n >= 0 {
			return uint64(n), true
		}
	}
	return 0, false
}

// loadPersisted reads back the stored row for the statement's primary
// key, bypassing tenant and tombstone filters. It feeds the
// original-vs-pending comparison required by the isolation enforcer.
func loadPersisted(db *gorm.DB, stmt *gorm.Statement, pk uint64) (any, error) {
	out := reflect.New(stmt.Schema.ModelType).Interface()
	pkColumn := stmt.Schema.PrioritizedPrimaryField.DBName
	tx := db.Session(&gorm.Session{NewDB: true, SkipHooks: true})
	if err := tx.Unscoped().Table(stmt.Table).Where(pkColumn+" = ?", pk).Take(out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func selectsAll(stmt *gorm.Statement) bool {
	for _, s := range stmt.Selects {
		if s == "*" {
			return true
		}
	}
	return false
}

// pendingTenantID resolves the organization id the statement is about
// to write, falling back to the persisted value when the column is not
// part of the change-set.
func pendingTenantID(stmt *gorm.Statement, persisted uint64) uint64 {
	if dest, ok := stmt.Dest.(map[string]interface{}); ok {
		if v, ok := dest["organization_id"]; ok {
			if id, ok := toUint64(v); ok {
				return id
			}
		}
		return persisted
	}

	rv := reflect.Indirect(reflect.ValueOf(stmt.Dest))
	if rv.Kind() != reflect.Struct || rv.Type() != stmt.Schema.ModelType {
		return persisted
	}
	id, ok := tenantIDOfStruct(rv)
	if !ok {
		return persisted
	}
	// Partial struct updates skip zero fields, so a zero id only means
	// "about to be written" on a full save.
	if id == 0 && !selectsAll(stmt) {
		return persisted
	}
	return id
}

func tenantIDOfStruct(rv reflect.Value) (uint64, bool) {
	if !rv.CanAddr() {
		tmp := reflect.New(rv.Type())
		tmp.Elem().Set(rv)
		rv = tmp.Elem()
	}
	scoped, ok := rv.Addr().Interface().(models.TenantScoped)
	if !ok {
		return 0, false
	}
	return scoped.TenantID(), true
}

// changedColumns computes the non-audit columns the update touches,
// for audit-log description text only.
func changedColumns(stmt *gorm.Statement, original any) []string {
	origValue := reflect.Indirect(reflect.ValueOf(original))

	if dest, ok := stmt.Dest.(map[string]interface{}); ok {
		changed := make([]string, 0, len(dest))
		for name := range dest {
			dbName := name
			if f := stmt.Schema.LookUpField(name); f != nil {
				dbName = f.DBName
			}
			if isAuditColumn(dbName) {
				continue
			}
			changed = append(changed, dbName)
		}
		sort.Strings(changed)
		return changed
	}

	destValue := reflect.Indirect(reflect.ValueOf(stmt.Dest))
	if destValue.Kind() != reflect.Struct || destValue.Type() != stmt.Schema.ModelType {
		destValue = stmt.ReflectValue
	}
	if destValue.Kind() != reflect.Struct || destValue.Type() != stmt.Schema.ModelType {
		return nil
	}

	fullWrite := selectsAll(stmt)
	var changed []string
	for _, field := range stmt.Schema.Fields {
		if field.DBName == "" || field.PrimaryKey || isAuditColumn(field.DBName) {
			continue
		}
		pending, zero := field.ValueOf(stmt.Context, destValue)
		if zero && !fullWrite {
			continue
		}
		persisted, _ := field.ValueOf(stmt.Context, origValue)
		if !reflect.DeepEqual(persisted, pending) {
			changed = append(changed, field.DBName)
		}
	}
	return changed
}

func stampUpdatedBy(stmt *gorm.Statement) {
	if !statementIsAudited(stmt) {
		return
	}
	if actorID, ok := tenantctx.ActorID(stmt.Context); ok {
		stmt.SetColumn("updated_by_id", actorID, true)
	}
}

func addPrimaryKeyConditions(stmt *gorm.Statement) {
	_, queryValues := schema.GetIdentityFieldValuesMap(stmt.Context, stmt.ReflectValue, stmt.Schema.PrimaryFields)
	column, values := schema.ToQueryValues(stmt.Table, stmt.Schema.PrimaryFieldDBNames, queryValues)
	if len(values) > 0 {
		stmt.AddClause(clause.Where{Exprs: []clause.Expression{clause.IN{Column: column, Values: values}}})
	}
}

func execStatement(db *gorm.DB) {
	if db.DryRun || db.Error != nil {
		return
	}
	result, err := db.Statement.ConnPool.ExecContext(db.Statement.Context, db.Statement.SQL.String(), db.Statement.Vars...)
	if err != nil {
		db.AddError(err)
		return
	}
	db.RowsAffected, _ = result.RowsAffected()
}

func actorPtr(ctx context.Context) *uint64 {
	if id, ok := tenantctx.ActorID(ctx); ok {
		return &id
	}
	return nil
}

func eventOrganization(ctx context.Context, entity any, entityID uint64, table string) uint64 {
	if scoped, ok := entity.(models.TenantScoped); ok {
		return scoped.TenantID()
	}
	if table == (models.Organization{}).TableName() {
		return entityID
	}
	if id, ok := tenantctx.TenantID(ctx); ok {
		return id
	}
	return 0
}
