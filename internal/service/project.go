package service

import (
	"context"
	"time"

	"github.com/studyforge/studyforge/internal/domain"
)

// ProjectRepository defines the repository interface for project persistence.
type ProjectRepository interface {
	Create(ctx context.Context, p *domain.Project) error
	GetByID(ctx context.Context, id string) (*domain.Project, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*domain.Project, error)
	Delete(ctx context.Context, id string) error
}

// ProjectService handles business logic for projects.
type ProjectService struct {
	repo    ProjectRepository
	uuidGen UUIDGenerator
}

// NewProjectService creates a new ProjectService instance.
func NewProjectService(repo ProjectRepository) *ProjectService {
	return &ProjectService{
		repo:    repo,
		uuidGen: &DefaultUUIDGenerator{},
	}
}

// Create creates a new project owned by the caller.
func (s *ProjectService) Create(ctx context.Context, ownerID, name string) (*domain.Project, error) {
	if name == "" {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "project name is required")
	}

	project := &domain.Project{
		ID:        s.uuidGen.NewString(),
		OwnerID:   ownerID,
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}

	if err := domain.ValidateProject(project); err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "invalid project", err)
	}

	if err := s.repo.Create(ctx, project); err != nil {
		return nil, err
	}

	return project, nil
}

// GetForOwner returns a project after verifying ownership.
func (s *ProjectService) GetForOwner(ctx context.Context, ownerID, projectID string) (*domain.Project, error) {
	project, err := s.repo.GetByID(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if project.OwnerID != ownerID {
		return nil, domain.ErrProjectNotFound
	}
	return project, nil
}

// List returns every project the caller owns.
func (s *ProjectService) List(ctx context.Context, ownerID string) ([]*domain.Project, error) {
	return s.repo.ListByOwner(ctx, ownerID)
}

// Delete removes an empty project. Projects with documents must have them
// deleted first; the database enforces this with a RESTRICT constraint.
func (s *ProjectService) Delete(ctx context.Context, ownerID, projectID string) error {
	if _, err := s.GetForOwner(ctx, ownerID, projectID); err != nil {
		return err
	}
	return s.repo.Delete(ctx, projectID)
}
