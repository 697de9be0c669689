package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/clearcomply/compliance-api/internal/audit"
	"github.com/clearcomply/compliance-api/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrMemberNotFound       = errors.New("member not found")
	ErrInsufficientRole     = errors.New("only owners and admins can manage members")
	ErrCannotActOnPeer      = errors.New("cannot act on a member with equal or higher privilege")
	ErrRoleEscalation       = errors.New("cannot assign a role at or above your own")
	ErrOnlyOwnerGrantsOwner = errors.New("only an owner can assign the owner role")
	ErrLastOwner            = errors.New("cannot remove or demote the last owner")
	ErrInvalidRole          = errors.New("invalid role")
)

// MembershipService applies the member-mutation guards for workspace
// role changes, removals and voluntary leaves. Every mutation runs in
// one transaction so the owner-count check and the write it protects
// commit together.
type MembershipService struct {
	db         *gorm.DB
	dispatcher *audit.Dispatcher
}

// NewMembershipService creates a new MembershipService.
func NewMembershipService(db *gorm.DB, dispatcher *audit.Dispatcher) *MembershipService {
	return &MembershipService{
		db:         db,
		dispatcher: dispatcher,
	}
}

// ChangeMemberRole assigns a new workspace role to the target member.
func (s *MembershipService) ChangeMemberRole(ctx context.Context, organizationID, actorUserID, targetUserID uint64, newRole models.OrganizationRole) (*models.OrganizationMember, error) {
	if !newRole.Valid() {
		return nil, ErrInvalidRole
	}

	var target *models.OrganizationMember
	ctx, trail := audit.WithTrail(ctx)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		actor, t, err := s.authorize(tx, organizationID, actorUserID, targetUserID)
		if err != nil {
			return err
		}
		target = t

		// The escalation guards apply to self-assignments too; a
		// self-demotion assigns a role strictly below the actor's own
		// level and passes naturally.
		if newRole == models.RoleOwner && actor.Role != models.RoleOwner {
			return ErrOnlyOwnerGrantsOwner
		}
		if actor.Role != models.RoleOwner && newRole.Level() <= actor.Role.Level() {
			return ErrRoleEscalation
		}

		demotion := target.Role == models.RoleOwner && newRole != models.RoleOwner
		if demotion {
			if err := s.requireAnotherOwner(tx, organizationID, targetUserID); err != nil {
				return err
			}
		}

		if target.Role == newRole {
			return nil
		}
		target.Role = newRole
		if err := tx.Save(target).Error; err != nil {
			return fmt.Errorf("failed to update member role: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.dispatcher.Dispatch(ctx, trail.Drain())

	return target, nil
}

// RemoveMember deactivates the target's membership.
func (s *MembershipService) RemoveMember(ctx context.Context, organizationID, actorUserID, targetUserID uint64) error {
	ctx, trail := audit.WithTrail(ctx)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		_, target, err := s.authorize(tx, organizationID, actorUserID, targetUserID)
		if err != nil {
			return err
		}

		if target.Role == models.RoleOwner {
			if err := s.requireAnotherOwner(tx, organizationID, targetUserID); err != nil {
				return err
			}
		}

		now := time.Now().UTC()
		target.IsActive = false
		target.RemovedAt = &now
		if err := tx.Save(target).Error; err != nil {
			return fmt.Errorf("failed to remove member: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.dispatcher.Dispatch(ctx, trail.Drain())

	return nil
}

// LeaveWorkspace lets the acting user give up their own membership. It
// is a self-removal, so only the last-owner guard applies.
func (s *MembershipService) LeaveWorkspace(ctx context.Context, organizationID, actorUserID uint64) error {
	return s.RemoveMember(ctx, organizationID, actorUserID, actorUserID)
}

// authorize loads both memberships and runs the guard predicates that
// do not depend on the specific mutation. Self-actions skip the
// elevated-role and hierarchy checks; the last-owner guard still
// applies to them in the callers.
func (s *MembershipService) authorize(tx *gorm.DB, organizationID, actorUserID, targetUserID uint64) (actor, target *models.OrganizationMember, err error) {
	actor, err = s.findActiveMember(tx, organizationID, actorUserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrNotWorkspaceMember
		}
		return nil, nil, fmt.Errorf("failed to load actor membership: %w", err)
	}

	if actorUserID == targetUserID {
		return actor, actor, nil
	}

	if !actor.Role.CanManageMembers() {
		return nil, nil, ErrInsufficientRole
	}

	target, err = s.findActiveMember(tx, organizationID, targetUserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrMemberNotFound
		}
		return nil, nil, fmt.Errorf("failed to load target membership: %w", err)
	}

	// A member may never act on a peer or superior.
	if target.Role.HasEqualOrHigherPrivilege(actor.Role) {
		return nil, nil, ErrCannotActOnPeer
	}

	return actor, target, nil
}

func (s *MembershipService) findActiveMember(tx *gorm.DB, organizationID, userID uint64) (*models.OrganizationMember, error) {
	var member models.OrganizationMember
	if err := tx.
		Where("organization_id = ? AND user_id = ? AND is_active = ?", organizationID, userID, true).
		First(&member).Error; err != nil {
		return nil, err
	}
	return &member, nil
}

// lockForUpdate applies a row lock on stores that support it. SQLite
// serializes writers on its own and rejects the FOR UPDATE syntax.
func lockForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "sqlite" {
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}

// requireAnotherOwner fails unless an active owner other than
// excludeUserID exists. The owner rows are locked FOR UPDATE so two
// concurrent demotions cannot both observe a surviving owner and
// leave the workspace ownerless.
func (s *MembershipService) requireAnotherOwner(tx *gorm.DB, organizationID, excludeUserID uint64) error {
	var owners []models.OrganizationMember
	if err := lockForUpdate(tx).
		Where("organization_id = ? AND role = ? AND is_active = ?", organizationID, models.RoleOwner, true).
		Find(&owners).Error; err != nil {
		return fmt.Errorf("failed to count owners: %w", err)
	}

	for _, o := range owners {
		if o.UserID != excludeUserID {
			return nil
		}
	}
	return ErrLastOwner
}
