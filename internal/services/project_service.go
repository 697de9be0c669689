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
	"github.com/clearcomply/compliance-api/internal/utils"
	"gorm.io/gorm"
)

var (
	ErrProjectNotFound       = errors.New("project not found")
	ErrProjectQuotaReached   = errors.New("workspace project quota reached")
	ErrNotProjectMember      = errors.New("not a member of this project")
	ErrProjectMemberNotFound = errors.New("project member not found")
	ErrProjectLastOwner      = errors.New("cannot remove or demote the last project owner")
	ErrAlreadyProjectMember  = errors.New("user is already a member of this project")
)

// ProjectService manages projects and their member roster. Project
// roles form their own ladder and the last-owner rule holds per
// project, independent of workspace roles.
type ProjectService struct {
	db          *gorm.DB
	projectRepo repository.ProjectRepository
	orgRepo     repository.OrganizationRepository
	dispatcher  *audit.Dispatcher
}

// NewProjectService creates a new ProjectService.
func NewProjectService(db *gorm.DB, projectRepo repository.ProjectRepository, orgRepo repository.OrganizationRepository, dispatcher *audit.Dispatcher) *ProjectService {
	return &ProjectService{
		db:          db,
		projectRepo: projectRepo,
		orgRepo:     orgRepo,
		dispatcher:  dispatcher,
	}
}

// CreateProjectInput holds the fields for creating a project.
type CreateProjectInput struct {
	Name        string
	Description string
	Framework   string
}

// CreateProject creates a project inside the workspace with the acting
// user as its sole project owner, subject to the workspace quota.
func (s *ProjectService) CreateProject(ctx context.Context, org *models.Organization, actorUserID uint64, input CreateProjectInput) (*models.Project, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, fmt.Errorf("project name is required")
	}

	count, err := s.projectRepo.CountByOrganization(ctx, org.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to count projects: %w", err)
	}
	if count >= int64(org.MaxProjects) {
		return nil, ErrProjectQuotaReached
	}

	project := &models.Project{
		OrganizationID: org.ID,
		Name:           name,
		Description:    strings.TrimSpace(input.Description),
		Framework:      strings.TrimSpace(input.Framework),
	}

	ctx, trail := audit.WithTrail(ctx)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(project).Error; err != nil {
			return fmt.Errorf("failed to create project: %w", err)
		}

		member := &models.ProjectMember{
			ProjectID:      project.ID,
			OrganizationID: org.ID,
			UserID:         actorUserID,
			Role:           models.ProjectRoleOwner,
			IsActive:       true,
			JoinedAt:       time.Now().UTC(),
		}
		if err := tx.Create(member).Error; err != nil {
			return fmt.Errorf("failed to add project owner: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.dispatcher.Dispatch(ctx, trail.Drain())

	return project, nil
}

// GetProject retrieves a project by ID within the active workspace.
func (s *ProjectService) GetProject(ctx context.Context, id uint64) (*models.Project, error) {
	project, err := s.projectRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProjectNotFound
		}
		return nil, fmt.Errorf("failed to find project: %w", err)
	}
	return project, nil
}

// ListProjects lists the workspace's projects, newest first.
func (s *ProjectService) ListProjects(ctx context.Context, organizationID uint64, params utils.PaginationParams) ([]models.Project, int64, error) {
	return s.projectRepo.List(ctx, organizationID, params)
}

// UpdateProjectInput holds the updatable project fields. Nil means
// leave the field unchanged.
type UpdateProjectInput struct {
	Name        *string
	Description *string
	Framework   *string
}

// UpdateProject applies the given changes to the project.
func (s *ProjectService) UpdateProject(ctx context.Context, project *models.Project, input UpdateProjectInput) (*models.Project, error) {
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, fmt.Errorf("project name is required")
		}
		project.Name = name
	}
	if input.Description != nil {
		project.Description = strings.TrimSpace(*input.Description)
	}
	if input.Framework != nil {
		project.Framework = strings.TrimSpace(*input.Framework)
	}

	ctx, trail := audit.WithTrail(ctx)
	if err := s.projectRepo.Update(ctx, project); err != nil {
		return nil, fmt.Errorf("failed to update project: %w", err)
	}
	s.dispatcher.Dispatch(ctx, trail.Drain())

	return project, nil
}

// DeleteProject soft deletes the project.
func (s *ProjectService) DeleteProject(ctx context.Context, project *models.Project) error {
	ctx, trail := audit.WithTrail(ctx)
	if err := s.projectRepo.Delete(ctx, project); err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}
	s.dispatcher.Dispatch(ctx, trail.Drain())

	return nil
}

// ListProjectMembers lists the project's active members.
func (s *ProjectService) ListProjectMembers(ctx context.Context, projectID uint64) ([]models.ProjectMember, error) {
	return s.projectRepo.ListMembers(ctx, projectID)
}

// AddProjectMember adds a workspace member to the project. The target
// must already hold an active workspace membership.
func (s *ProjectService) AddProjectMember(ctx context.Context, project *models.Project, actor *models.ProjectMember, targetUserID uint64, role models.ProjectRole) (*models.ProjectMember, error) {
	if !role.Valid() {
		return nil, ErrInvalidRole
	}
	if !actor.Role.CanManageMembers() {
		return nil, ErrInsufficientRole
	}

	if _, err := s.orgRepo.FindActiveMember(ctx, project.OrganizationID, targetUserID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotWorkspaceMember
		}
		return nil, fmt.Errorf("failed to check workspace membership: %w", err)
	}

	var member *models.ProjectMember
	ctx, trail := audit.WithTrail(ctx)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now().UTC()

		var existing models.ProjectMember
		findErr := tx.
			Where("project_id = ? AND user_id = ?", project.ID, targetUserID).
			First(&existing).Error
		switch {
		case findErr == nil && existing.IsActive:
			return ErrAlreadyProjectMember
		case findErr == nil:
			existing.IsActive = true
			existing.Role = role
			existing.JoinedAt = now
			existing.RemovedAt = nil
			if err := tx.Save(&existing).Error; err != nil {
				return fmt.Errorf("failed to reactivate project membership: %w", err)
			}
			member = &existing
		case errors.Is(findErr, gorm.ErrRecordNotFound):
			member = &models.ProjectMember{
				ProjectID:      project.ID,
				OrganizationID: project.OrganizationID,
				UserID:         targetUserID,
				Role:           role,
				IsActive:       true,
				JoinedAt:       now,
			}
			if err := tx.Create(member).Error; err != nil {
				return fmt.Errorf("failed to add project member: %w", err)
			}
		default:
			return fmt.Errorf("failed to load project membership: %w", findErr)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.dispatcher.Dispatch(ctx, trail.Drain())

	return member, nil
}

// ChangeProjectMemberRole assigns a new project role to the target,
// under the same guard order as workspace role changes.
func (s *ProjectService) ChangeProjectMemberRole(ctx context.Context, projectID, actorUserID, targetUserID uint64, newRole models.ProjectRole) (*models.ProjectMember, error) {
	if !newRole.Valid() {
		return nil, ErrInvalidRole
	}

	var target *models.ProjectMember
	ctx, trail := audit.WithTrail(ctx)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		actor, t, err := s.authorize(tx, projectID, actorUserID, targetUserID)
		if err != nil {
			return err
		}
		target = t

		// Non-owner actors only reach this point on self-actions; the
		// escalation guard keeps them from assigning a role at or above
		// their own. A self-demotion passes naturally.
		if newRole == models.ProjectRoleOwner && actor.Role != models.ProjectRoleOwner {
			return ErrOnlyOwnerGrantsOwner
		}
		if actor.Role != models.ProjectRoleOwner && newRole.Level() <= actor.Role.Level() {
			return ErrRoleEscalation
		}

		if target.Role == models.ProjectRoleOwner && newRole != models.ProjectRoleOwner {
			if err := s.requireAnotherOwner(tx, projectID, targetUserID); err != nil {
				return err
			}
		}

		if target.Role == newRole {
			return nil
		}
		target.Role = newRole
		if err := tx.Save(target).Error; err != nil {
			return fmt.Errorf("failed to update project member role: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.dispatcher.Dispatch(ctx, trail.Drain())

	return target, nil
}

// RemoveProjectMember deactivates the target's project membership.
func (s *ProjectService) RemoveProjectMember(ctx context.Context, projectID, actorUserID, targetUserID uint64) error {
	ctx, trail := audit.WithTrail(ctx)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		_, target, err := s.authorize(tx, projectID, actorUserID, targetUserID)
		if err != nil {
			return err
		}

		if target.Role == models.ProjectRoleOwner {
			if err := s.requireAnotherOwner(tx, projectID, targetUserID); err != nil {
				return err
			}
		}

		now := time.Now().UTC()
		target.IsActive = false
		target.RemovedAt = &now
		if err := tx.Save(target).Error; err != nil {
			return fmt.Errorf("failed to remove project member: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.dispatcher.Dispatch(ctx, trail.Drain())

	return nil
}

func (s *ProjectService) authorize(tx *gorm.DB, projectID, actorUserID, targetUserID uint64) (actor, target *models.ProjectMember, err error) {
	actor, err = s.findActiveMember(tx, projectID, actorUserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrNotProjectMember
		}
		return nil, nil, fmt.Errorf("failed to load actor project membership: %w", err)
	}

	if actorUserID == targetUserID {
		return actor, actor, nil
	}

	if !actor.Role.CanManageMembers() {
		return nil, nil, ErrInsufficientRole
	}

	target, err = s.findActiveMember(tx, projectID, targetUserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrProjectMemberNotFound
		}
		return nil, nil, fmt.Errorf("failed to load target project membership: %w", err)
	}

	if target.Role.HasEqualOrHigherPrivilege(actor.Role) {
		return nil, nil, ErrCannotActOnPeer
	}

	return actor, target, nil
}

func (s *ProjectService) findActiveMember(tx *gorm.DB, projectID, userID uint64) (*models.ProjectMember, error) {
	var member models.ProjectMember
	if err := tx.
		Where("project_id = ? AND user_id = ? AND is_active = ?", projectID, userID, true).
		First(&member).Error; err != nil {
		return nil, err
	}
	return &member, nil
}

func (s *ProjectService) requireAnotherOwner(tx *gorm.DB, projectID, excludeUserID uint64) error {
	var owners []models.ProjectMember
	if err := lockForUpdate(tx).
		Where("project_id = ? AND role = ? AND is_active = ?", projectID, models.ProjectRoleOwner, true).
		Find(&owners).Error; err != nil {
		return fmt.Errorf("failed to count project owners: %w", err)
	}

	for _, o := range owners {
		if o.UserID != excludeUserID {
			return nil
		}
	}
	return ErrProjectLastOwner
}
