// Package tenantctx carries the authenticated actor and the active
// tenant (organization) on a context.Context. The database interceptors
// read these values from every statement's context, so any mutation
// issued without going through the middleware (background jobs, tests)
// can opt in by attaching them explicitly.
package tenantctx

import "context"

type contextKey int

const (
	actorKey contextKey = iota
	tenantKey
)

// WithActor returns a context carrying the acting user's id.
func WithActor(ctx context.Context, userID uint64) context.Context {
	return context.WithValue(ctx, actorKey, userID)
}

// ActorID returns the acting user's id, if one is attached.
func ActorID(ctx context.Context) (uint64, bool) {
	id, ok := ctx.Value(actorKey).(uint64)
	return id, ok
}

// WithTenant returns a context carrying the active organization id.
func WithTenant(ctx context.Context, organizationID uint64) context.Context {
	return context.WithValue(ctx, tenantKey, organizationID)
}

// TenantID returns the active organization id. When absent, callers run
// unscoped (system/background context) and tenant filtering is skipped.
func TenantID(ctx context.Context) (uint64, bool) {
	id, ok := ctx.Value(tenantKey).(uint64)
	return id, ok
}

// WithoutTenant masks any active tenant on the context. Used by the
// few cross-workspace reads (the workspace picker) that must see all
// of the caller's memberships.
func WithoutTenant(ctx context.Context) context.Context {
	return context.WithValue(ctx, tenantKey, nil)
}
