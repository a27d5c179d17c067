package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/lunevo/bidwire/internal/models"
	"github.com/lunevo/bidwire/internal/services"
	"github.com/lunevo/bidwire/internal/utils"
)

// ProjectHandler handles project HTTP requests.
type ProjectHandler struct {
	Service *services.ProjectService
	Logger  *log.Logger
	Timeout time.Duration
}

// NewProjectHandler creates a new instance of ProjectHandler.
func NewProjectHandler(service *services.ProjectService, logger *log.Logger, timeout time.Duration) *ProjectHandler {
	return &ProjectHandler{
		Service: service,
		Logger:  logger,
		Timeout: timeout,
	}
}

// CreateProject handles requests to create a project.
func (h *ProjectHandler) CreateProject(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	var projectReq models.ProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&projectReq); err != nil {
		utils.SendErrorResponse(w, http.StatusBadRequest, models.KindValidation, "invalid request body")
		return
	}

	project, err := h.Service.CreateProject(ctx, projectReq)
	if err != nil {
		utils.SendError(w, h.Logger, err, "failed to create project")
		return
	}
	utils.SendJSON(w, h.Logger, project)
}

// GetProjects handles requests to list projects.
func (h *ProjectHandler) GetProjects(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	limit, offset, err := utils.ParseLimitOffset(r.URL.Query().Get("limit"), r.URL.Query().Get("offset"))
	if err != nil {
		utils.SendErrorResponse(w, http.StatusBadRequest, models.KindValidation, err.Error())
		return
	}

	projects, err := h.Service.GetProjects(ctx, limit, offset)
	if err != nil {
		utils.SendError(w, h.Logger, err, "failed to retrieve projects")
		return
	}
	if projects == nil {
		projects = []models.Project{}
	}
	utils.SendJSON(w, h.Logger, projects)
}

// GetProject handles requests for a single project.
func (h *ProjectHandler) GetProject(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	project, err := h.Service.GetProject(ctx, r.PathValue("projectId"))
	if err != nil {
		utils.SendError(w, h.Logger, err, "failed to retrieve project")
		return
	}
	utils.SendJSON(w, h.Logger, project)
}
