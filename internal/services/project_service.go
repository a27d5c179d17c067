package services

import (
	"context"
	"strings"
	"time"

	"github.com/lunevo/bidwire/internal/models"
	"github.com/lunevo/bidwire/internal/repository"

	"github.com/google/uuid"
)

// ProjectService handles project commands and queries.
type ProjectService struct {
	Repo repository.ProjectRepository
}

// NewProjectService creates a new instance of ProjectService.
func NewProjectService(repo repository.ProjectRepository) *ProjectService {
	return &ProjectService{Repo: repo}
}

// CreateProject creates a new open project.
func (s *ProjectService) CreateProject(ctx context.Context, req models.ProjectRequest) (*models.Project, error) {
	if strings.TrimSpace(req.Title) == "" {
		return nil, models.NewValidationError("project title is required")
	}
	if req.Budget <= 0 {
		return nil, models.NewValidationError("project budget must be greater than zero")
	}
	if req.ClientID == "" {
		return nil, models.NewValidationError("clientId is required")
	}

	project := models.Project{
		ID:        uuid.New().String(),
		Title:     req.Title,
		Status:    models.OpenProject,
		Budget:    req.Budget,
		Deadline:  req.Deadline,
		ClientID:  req.ClientID,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.Repo.CreateProject(ctx, project); err != nil {
		return nil, err
	}
	return &project, nil
}

// GetProject returns a project by id.
func (s *ProjectService) GetProject(ctx context.Context, projectId string) (*models.Project, error) {
	if projectId == "" {
		return nil, models.NewValidationError("projectId is required")
	}
	return s.Repo.GetProject(ctx, projectId)
}

// GetProjects returns projects ordered by creation time.
func (s *ProjectService) GetProjects(ctx context.Context, limit, offset int) ([]models.Project, error) {
	return s.Repo.GetProjects(ctx, limit, offset)
}
