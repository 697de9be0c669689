package services

import (
	"context"
	"log"

	"github.com/clearcomply/compliance-api/internal/models"
)

// Notifier delivers invitation emails. Implementations are invoked
// after the surrounding unit of work commits and must swallow their
// own failures; a lost email never rolls back a membership change.
type Notifier interface {
	InvitationCreated(ctx context.Context, invitation *models.Invitation, organizationName string)
	InvitationAccepted(ctx context.Context, invitation *models.Invitation, memberEmail string)
}

// LogNotifier writes notifications to the application log. It stands
// in for the mail gateway in development and tests.
type LogNotifier struct{}

func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (n *LogNotifier) InvitationCreated(ctx context.Context, invitation *models.Invitation, organizationName string) {
	log.Printf("notify: invitation for %s to join %q as %s (expires %s)",
		invitation.Email, organizationName, invitation.Role, invitation.ExpiresAt.Format("2006-01-02"))
}

func (n *LogNotifier) InvitationAccepted(ctx context.Context, invitation *models.Invitation, memberEmail string) {
	log.Printf("notify: %s accepted invitation %d", memberEmail, invitation.ID)
}
