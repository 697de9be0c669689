package audit

import (
	"context"
	"log"

	"github.com/clearcomply/compliance-api/internal/models"
	"gorm.io/gorm"
)

// Dispatcher persists drained trail events as audit_logs rows. It is
// invoked after the unit of work commits; a dispatch failure is logged
// and never rolls back the committed mutation.
type Dispatcher struct {
	db *gorm.DB
}

func NewDispatcher(db *gorm.DB) *Dispatcher {
	return &Dispatcher{db: db}
}

// Dispatch writes one audit_logs row per event. Events without an
// organization (none in practice) are skipped.
func (d *Dispatcher) Dispatch(ctx context.Context, events []Event) {
	if len(events) == 0 {
		return
	}

	rows := make([]models.AuditLog, 0, len(events))
	for _, e := range events {
		if e.OrganizationID == 0 {
			continue
		}
		rows = append(rows, models.AuditLog{
			OrganizationID: e.OrganizationID,
			ActorID:        e.ActorID,
			Action:         string(e.Action),
			EntityTable:    e.Table,
			EntityID:       e.EntityID,
			Description:    e.Description(),
			OccurredAt:     e.OccurredAt,
		})
	}
	if len(rows) == 0 {
		return
	}

	if err := d.db.WithContext(ctx).Create(&rows).Error; err != nil {
		log.Printf("audit: failed to persist %d event(s): %v", len(rows), err)
	}
}
