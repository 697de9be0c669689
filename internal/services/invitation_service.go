package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/clearcomply/compliance-api/internal/audit"
	"github.com/clearcomply/compliance-api/internal/models"
	"github.com/clearcomply/compliance-api/internal/repository"
	"github.com/clearcomply/compliance-api/internal/tenantctx"
	"github.com/clearcomply/compliance-api/internal/utils"
	"gorm.io/gorm"
)

var (
	ErrInvitationNotFound        = errors.New("invitation not found")
	ErrInvitationEmailMismatch   = errors.New("invitation was issued for a different email address")
	ErrInvitationAlreadyAccepted = errors.New("invitation already accepted")
	ErrInvitationDeclined        = errors.New("invitation was declined")
	ErrInvitationRevoked         = errors.New("invitation was revoked")
	ErrInvitationExpired         = errors.New("invitation has expired")
	ErrInvitationNotPending      = errors.New("invitation is no longer pending")
	ErrAlreadyMember             = errors.New("user is already a member of this workspace")
	ErrPendingInvitationExists   = errors.New("a pending invitation already exists for this email")
	ErrMemberQuotaReached        = errors.New("workspace member quota reached")
)

// InvitationService drives the invitation lifecycle from creation to
// acceptance, decline, revocation or expiry. Expiry is lazy: it is
// materialized the first time an expired invitation is read or acted
// on, never by a background sweep.
type InvitationService struct {
	db             *gorm.DB
	invitationRepo repository.InvitationRepository
	orgRepo        repository.OrganizationRepository
	userRepo       repository.UserRepository
	notifier       Notifier
	dispatcher     *audit.Dispatcher
	ttl            time.Duration
}

// NewInvitationService creates a new InvitationService.
func NewInvitationService(
	db *gorm.DB,
	invitationRepo repository.InvitationRepository,
	orgRepo repository.OrganizationRepository,
	userRepo repository.UserRepository,
	notifier Notifier,
	dispatcher *audit.Dispatcher,
	ttl time.Duration,
) *InvitationService {
	return &InvitationService{
		db:             db,
		invitationRepo: invitationRepo,
		orgRepo:        orgRepo,
		userRepo:       userRepo,
		notifier:       notifier,
		dispatcher:     dispatcher,
		ttl:            ttl,
	}
}

// CreateInvitationInput holds the fields for inviting a user.
type CreateInvitationInput struct {
	Email string
	Role  models.OrganizationRole
}

// Create issues a pending invitation for the given email. The actor's
// membership has already been resolved by the caller; the escalation
// rules from role changes apply to the invited role as well.
func (s *InvitationService) Create(ctx context.Context, org *models.Organization, actor *models.OrganizationMember, input CreateInvitationInput) (*models.Invitation, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if email == "" {
		return nil, fmt.Errorf("email is required")
	}
	if !input.Role.Valid() {
		return nil, ErrInvalidRole
	}

	if !actor.Role.CanManageMembers() {
		return nil, ErrInsufficientRole
	}
	if input.Role == models.RoleOwner && actor.Role != models.RoleOwner {
		return nil, ErrOnlyOwnerGrantsOwner
	}
	if actor.Role != models.RoleOwner && input.Role.Level() <= actor.Role.Level() {
		return nil, ErrRoleEscalation
	}

	if user, err := s.userRepo.FindByEmail(ctx, email); err == nil {
		if _, err := s.orgRepo.FindActiveMember(ctx, org.ID, user.ID); err == nil {
			return nil, ErrAlreadyMember
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("failed to check membership: %w", err)
		}
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	if existing, err := s.invitationRepo.FindPendingByEmail(ctx, org.ID, email); err == nil {
		if !existing.ExpiredBy(time.Now().UTC()) {
			return nil, ErrPendingInvitationExists
		}
		// A stale pending invitation does not block re-inviting; mark
		// it expired on the way past.
		existing.Status = models.InvitationExpired
		if err := s.invitationRepo.Save(ctx, existing); err != nil {
			return nil, fmt.Errorf("failed to expire stale invitation: %w", err)
		}
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to check pending invitations: %w", err)
	}

	count, err := s.orgRepo.CountActiveMembers(ctx, org.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to count members: %w", err)
	}
	if count >= int64(org.MaxMembers) {
		return nil, ErrMemberQuotaReached
	}

	token, err := utils.GenerateInviteToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate invite token: %w", err)
	}

	invitation := &models.Invitation{
		OrganizationID: org.ID,
		Email:          email,
		Role:           input.Role,
		InvitedByID:    actor.UserID,
		Token:          token,
		Status:         models.InvitationPending,
		ExpiresAt:      time.Now().UTC().Add(s.ttl),
	}

	ctx, trail := audit.WithTrail(ctx)
	if err := s.invitationRepo.Create(ctx, invitation); err != nil {
		return nil, fmt.Errorf("failed to create invitation: %w", err)
	}
	s.dispatcher.Dispatch(ctx, trail.Drain())

	// Fire and forget; a notification failure never rolls back the
	// invitation. The request context may be gone by the time the
	// notifier runs, so it gets a background one.
	go s.notifier.InvitationCreated(context.Background(), invitation, org.Name)

	return invitation, nil
}

// Accept marks the invitation accepted and grants the user membership.
// A prior deactivated membership is reactivated in place instead of
// creating a second row for the same (workspace, user) pair.
func (s *InvitationService) Accept(ctx context.Context, user *models.User, token string) (*models.OrganizationMember, error) {
	invitation, err := s.invitationRepo.FindByToken(ctx, token)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvitationNotFound
		}
		return nil, fmt.Errorf("failed to find invitation: %w", err)
	}

	if !strings.EqualFold(invitation.Email, user.Email) {
		return nil, ErrInvitationEmailMismatch
	}
	if err := s.ensureActionable(ctx, invitation); err != nil {
		return nil, err
	}

	// The accepting user is not inside the workspace yet; the writes
	// below run with the invitation's workspace as the active tenant.
	ctx, trail := audit.WithTrail(tenantctx.WithTenant(ctx, invitation.OrganizationID))

	var member *models.OrganizationMember
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now().UTC()

		var existing models.OrganizationMember
		findErr := tx.
			Where("organization_id = ? AND user_id = ?", invitation.OrganizationID, user.ID).
			First(&existing).Error
		switch {
		case findErr == nil && existing.IsActive:
			return ErrAlreadyMember
		case findErr == nil:
			existing.IsActive = true
			existing.Role = invitation.Role
			existing.JoinedAt = now
			existing.RemovedAt = nil
			existing.InvitationID = &invitation.ID
			if err := tx.Save(&existing).Error; err != nil {
				return fmt.Errorf("failed to reactivate membership: %w", err)
			}
			member = &existing
		case errors.Is(findErr, gorm.ErrRecordNotFound):
			member = &models.OrganizationMember{
				OrganizationID: invitation.OrganizationID,
				UserID:         user.ID,
				Role:           invitation.Role,
				IsActive:       true,
				JoinedAt:       now,
				InvitationID:   &invitation.ID,
			}
			if err := tx.Create(member).Error; err != nil {
				return fmt.Errorf("failed to create membership: %w", err)
			}
		default:
			return fmt.Errorf("failed to load membership: %w", findErr)
		}

		invitation.Status = models.InvitationAccepted
		invitation.AcceptedAt = &now
		invitation.MemberID = &member.ID
		if err := tx.Save(invitation).Error; err != nil {
			return fmt.Errorf("failed to update invitation: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.dispatcher.Dispatch(ctx, trail.Drain())

	go s.notifier.InvitationAccepted(context.Background(), invitation, user.Email)

	return member, nil
}

// Decline marks the invitation declined. Like Accept it requires the
// caller's email to match the one the invitation was issued for.
func (s *InvitationService) Decline(ctx context.Context, user *models.User, token string, reason string) error {
	invitation, err := s.invitationRepo.FindByToken(ctx, token)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrInvitationNotFound
		}
		return fmt.Errorf("failed to find invitation: %w", err)
	}

	if !strings.EqualFold(invitation.Email, user.Email) {
		return ErrInvitationEmailMismatch
	}
	if err := s.ensureActionable(ctx, invitation); err != nil {
		return err
	}

	ctx, trail := audit.WithTrail(tenantctx.WithTenant(ctx, invitation.OrganizationID))
	invitation.Status = models.InvitationDeclined
	if reason = strings.TrimSpace(reason); reason != "" {
		invitation.DeclineReason = &reason
	}
	if err := s.invitationRepo.Save(ctx, invitation); err != nil {
		return fmt.Errorf("failed to decline invitation: %w", err)
	}
	s.dispatcher.Dispatch(ctx, trail.Drain())

	return nil
}

// Revoke withdraws a pending invitation. Only pending invitations can
// be revoked; every terminal state stays final.
func (s *InvitationService) Revoke(ctx context.Context, invitationID uint64, actor *models.OrganizationMember) (*models.Invitation, error) {
	if !actor.Role.CanManageMembers() {
		return nil, ErrInsufficientRole
	}

	invitation, err := s.invitationRepo.FindByID(ctx, invitationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvitationNotFound
		}
		return nil, fmt.Errorf("failed to find invitation: %w", err)
	}
	if invitation.OrganizationID != actor.OrganizationID {
		return nil, ErrInvitationNotFound
	}

	if invitation.Status != models.InvitationPending {
		return nil, ErrInvitationNotPending
	}

	ctx, trail := audit.WithTrail(ctx)
	invitation.Status = models.InvitationRevoked
	invitation.RevokedByID = &actor.UserID
	if err := s.invitationRepo.Save(ctx, invitation); err != nil {
		return nil, fmt.Errorf("failed to revoke invitation: %w", err)
	}
	s.dispatcher.Dispatch(ctx, trail.Drain())

	return invitation, nil
}

// List returns the workspace's invitations, newest first. Pending
// invitations whose deadline has passed are materialized as expired so
// the listing never shows a stale pending state.
func (s *InvitationService) List(ctx context.Context, organizationID uint64, params utils.PaginationParams) ([]models.Invitation, int64, error) {
	invitations, total, err := s.invitationRepo.ListByOrganization(ctx, organizationID, params)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list invitations: %w", err)
	}

	now := time.Now().UTC()
	for i := range invitations {
		inv := &invitations[i]
		if inv.Status == models.InvitationPending && inv.ExpiredBy(now) {
			inv.Status = models.InvitationExpired
			if err := s.invitationRepo.Save(ctx, inv); err != nil {
				return nil, 0, fmt.Errorf("failed to expire invitation: %w", err)
			}
		}
	}

	return invitations, total, nil
}

// ensureActionable rejects terminal invitations with a state-specific
// error and lazily expires an overdue pending one before failing.
func (s *InvitationService) ensureActionable(ctx context.Context, invitation *models.Invitation) error {
	switch invitation.Status {
	case models.InvitationAccepted:
		return ErrInvitationAlreadyAccepted
	case models.InvitationDeclined:
		return ErrInvitationDeclined
	case models.InvitationRevoked:
		return ErrInvitationRevoked
	case models.InvitationExpired:
		return ErrInvitationExpired
	}

	if invitation.ExpiredBy(time.Now().UTC()) {
		invitation.Status = models.InvitationExpired
		saveCtx := tenantctx.WithTenant(ctx, invitation.OrganizationID)
		if err := s.invitationRepo.Save(saveCtx, invitation); err != nil {
			return fmt.Errorf("failed to expire invitation: %w", err)
		}
		return ErrInvitationExpired
	}
	return nil
}
