package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/prostudio/server/internal/domain/project"
	"github.com/prostudio/server/internal/shared/middleware"
	"github.com/prostudio/server/internal/shared/response"
)

// ProjectHandler serves the project CRUD endpoints.
type ProjectHandler struct {
	projects project.Repository
	logger   *zap.Logger
}

func NewProjectHandler(projects project.Repository, logger *zap.Logger) *ProjectHandler {
	return &ProjectHandler{projects: projects, logger: logger}
}

// RegisterRoutes registers the project routes on the given group.
func (h *ProjectHandler) RegisterRoutes(r *gin.RouterGroup) {
	projects := r.Group("/projects")
	{
		projects.POST("", h.Create)
		projects.GET("", h.List)
		projects.GET("/:id", h.Get)
		projects.PATCH("/:id", h.Update)
		projects.DELETE("/:id", h.Delete)
	}
}

func (h *ProjectHandler) Create(c *gin.Context) {
	userID := middleware.GetUserID(c)

	var req createProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	p, err := project.New(userID, req.Name, req.Description, req.Tags)
	if err != nil {
		h.handleProjectError(c, err)
		return
	}
	if err := h.projects.Create(c.Request.Context(), p); err != nil {
		h.handleProjectError(c, err)
		return
	}

	c.JSON(http.StatusCreated, toProjectDTO(p))
}

func (h *ProjectHandler) List(c *gin.Context) {
	userID := middleware.GetUserID(c)

	projects, err := h.projects.ListByUser(c.Request.Context(), userID)
	if err != nil {
		h.handleProjectError(c, err)
		return
	}

	out := make([]projectDTO, 0, len(projects))
	for _, p := range projects {
		out = append(out, toProjectDTO(p))
	}
	c.JSON(http.StatusOK, gin.H{"projects": out})
}

func (h *ProjectHandler) Get(c *gin.Context) {
	userID := middleware.GetUserID(c)

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid project id")
		return
	}

	p, err := h.projects.GetByID(c.Request.Context(), id, userID)
	if err != nil {
		h.handleProjectError(c, err)
		return
	}
	c.JSON(http.StatusOK, toProjectDTO(p))
}

func (h *ProjectHandler) Update(c *gin.Context) {
	userID := middleware.GetUserID(c)

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid project id")
		return
	}

	var req updateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	p, err := h.projects.GetByID(c.Request.Context(), id, userID)
	if err != nil {
		h.handleProjectError(c, err)
		return
	}
	if req.Name != nil {
		if err := p.Rename(*req.Name); err != nil {
			h.handleProjectError(c, err)
			return
		}
	}
	if req.Tags != nil {
		p.SetTags(*req.Tags)
	}
	if err := h.projects.Update(c.Request.Context(), p); err != nil {
		h.handleProjectError(c, err)
		return
	}

	c.JSON(http.StatusOK, toProjectDTO(p))
}

func (h *ProjectHandler) Delete(c *gin.Context) {
	userID := middleware.GetUserID(c)

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid project id")
		return
	}

	if err := h.projects.Delete(c.Request.Context(), id, userID); err != nil {
		h.handleProjectError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *ProjectHandler) handleProjectError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, project.ErrNotFound):
		response.NotFound(c, "PROJECT_NOT_FOUND", "project not found")
	case errors.Is(err, project.ErrInvalidName):
		response.Error(c, http.StatusBadRequest, "INVALID_NAME", err.Error())
	default:
		h.logger.Error("Project request failed", zap.Error(err))
		response.InternalError(c)
	}
}
