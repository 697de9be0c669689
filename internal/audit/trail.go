// Package audit collects domain events raised by the entity lifecycle
// interceptors. A Trail is allocated per unit of work and drained
// explicitly after commit; events are never stored on the entities
// themselves.
package audit

import (
	"context"
	"strings"
	"sync"
	"time"
)

// Action identifies the kind of lifecycle event.
type Action string

const (
	ActionCreated Action = "created"
	ActionUpdated Action = "updated"
	ActionDeleted Action = "deleted"
)

// Event describes one entity mutation observed by the pipeline.
type Event struct {
	Action         Action
	Table          string
	EntityID       uint64
	OrganizationID uint64
	ActorID        *uint64
	OccurredAt     time.Time
	// ChangedFields is populated for updates only and feeds the
	// audit-log description text, nothing else.
	ChangedFields []string
}

// Description renders the human-readable audit line for the event.
func (e Event) Description() string {
	switch e.Action {
	case ActionUpdated:
		if len(e.ChangedFields) > 0 {
			return "updated " + e.Table + " (" + strings.Join(e.ChangedFields, ", ") + ")"
		}
		return "updated " + e.Table
	case ActionDeleted:
		return "deleted " + e.Table
	default:
		return "created " + e.Table
	}
}

// Trail accumulates events for one unit of work. Safe for concurrent
// appends, although a unit of work is normally single-goroutine.
type Trail struct {
	mu     sync.Mutex
	events []Event
}

// Record appends an event to the trail.
func (t *Trail) Record(e Event) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events = append(t.events, e)
}

// Drain returns the collected events and resets the trail.
func (t *Trail) Drain() []Event {
	t.mu.Lock()
	defer t.mu.Unlock()
	events := t.events
	t.events = nil
	return events
}

type trailKey struct{}

// WithTrail attaches a fresh Trail to the context and returns both.
func WithTrail(ctx context.Context) (context.Context, *Trail) {
	t := &Trail{}
	return context.WithValue(ctx, trailKey{}, t), t
}

// TrailFrom returns the Trail attached to the context, if any.
func TrailFrom(ctx context.Context) (*Trail, bool) {
	t, ok := ctx.Value(trailKey{}).(*Trail)
	return t, ok
}
