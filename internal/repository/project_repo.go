package repository

import (
	"context"
	"errors"

	"github.com/lunevo/bidwire/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ProjectRepository is the persistence interface for projects.
type ProjectRepository interface {
	CreateProject(ctx context.Context, project models.Project) error
	GetProject(ctx context.Context, projectId string) (*models.Project, error)
	GetProjects(ctx context.Context, limit, offset int) ([]models.Project, error)
}

// PostgresProjectRepository is the ProjectRepository implementation backed by Postgres.
type PostgresProjectRepository struct {
	DB *pgxpool.Pool
}

// NewPostgresProjectRepository creates a new instance of PostgresProjectRepository.
func NewPostgresProjectRepository(db *pgxpool.Pool) *PostgresProjectRepository {
	return &PostgresProjectRepository{DB: db}
}

// CreateProject inserts a new project.
func (r *PostgresProjectRepository) CreateProject(ctx context.Context, project models.Project) error {
	insertQuery := `INSERT INTO project (id, title, status, budget, deadline, client_id, assigned_freelancer_id, created_at)
	                VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), $8)`
	_, err := r.DB.Exec(
		ctx,
		insertQuery,
		project.ID,
		project.Title,
		project.Status,
		project.Budget,
		project.Deadline,
		project.ClientID,
		project.AssignedFreelancerID,
		project.CreatedAt)
	return err
}

// GetProject returns a project by id.
func (r *PostgresProjectRepository) GetProject(ctx context.Context, projectId string) (*models.Project, error) {
	query := `SELECT id, title, status, budget, deadline, client_id, COALESCE(assigned_freelancer_id, ''), created_at
	          FROM project WHERE id = $1`
	var project models.Project
	err := r.DB.QueryRow(ctx, query, projectId).Scan(
		&project.ID,
		&project.Title,
		&project.Status,
		&project.Budget,
		&project.Deadline,
		&project.ClientID,
		&project.AssignedFreelancerID,
		&project.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.NewNotFoundError("project not found")
	}
	if err != nil {
		return nil, err
	}
	return &project, nil
}

// GetProjects returns projects ordered by creation time.
func (r *PostgresProjectRepository) GetProjects(ctx context.Context, limit, offset int) ([]models.Project, error) {
	query := `SELECT id, title, status, budget, deadline, client_id, COALESCE(assigned_freelancer_id, ''), created_at
	          FROM project
	          ORDER BY created_at
	          LIMIT $1 OFFSET $2`
	rows, err := r.DB.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var projects []models.Project
	for rows.Next() {
		var project models.Project
		if err := rows.Scan(
			&project.ID,
			&project.Title,
			&project.Status,
			&project.Budget,
			&project.Deadline,
			&project.ClientID,
			&project.AssignedFreelancerID,
			&project.CreatedAt); err != nil {
			return nil, err
		}
		projects = append(projects, project)
	}
	return projects, rows.Err()
}
