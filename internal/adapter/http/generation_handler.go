package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	domain "github.com/prostudio/server/internal/domain/generation"
	"github.com/prostudio/server/internal/domain/project"
	"github.com/prostudio/server/internal/module/generation"
	"github.com/prostudio/server/internal/shared/middleware"
	"github.com/prostudio/server/internal/shared/response"
)

// GenerationHandler serves the generation endpoints. Runs are synchronous
// from the caller's perspective; the response carries the terminal outcome.
type GenerationHandler struct {
	service *generation.Service
	logger  *zap.Logger
}

func NewGenerationHandler(service *generation.Service, logger *zap.Logger) *GenerationHandler {
	return &GenerationHandler{service: service, logger: logger}
}

// RegisterRoutes registers the generation routes on the given group.
func (h *GenerationHandler) RegisterRoutes(r *gin.RouterGroup) {
	projects := r.Group("/projects/:id")
	{
		projects.POST("/generations", h.Generate)
		projects.POST("/generations/commit", h.RetryCommit)
		projects.GET("/generations", h.List)
	}
	r.GET("/lineages/:id", h.Lineage)
	r.GET("/records/:id/url", h.ArtifactURL)
	r.DELETE("/records/:id", h.Delete)
}

func (h *GenerationHandler) Generate(c *gin.Context) {
	userID := middleware.GetUserID(c)

	projectID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid project id")
		return
	}

	var req generateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	input := generation.GenerateInput{
		Kind:           domain.Kind(req.Kind),
		ProjectID:      projectID,
		SourceRef:      req.SourceRef,
		SourceRecordID: req.SourceRecordID,
		Prompt:         req.Prompt,
		Model:          req.Model,
		AspectRatio:    req.AspectRatio,
		CameraMovement: domain.CameraMovement(req.CameraMovement),
	}

	outcome, err := h.service.Generate(c.Request.Context(), userID, input, nil)
	if err != nil {
		h.handleGenerationError(c, err)
		return
	}
	h.respondOutcome(c, outcome)
}

func (h *GenerationHandler) RetryCommit(c *gin.Context) {
	userID := middleware.GetUserID(c)

	projectID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid project id")
		return
	}

	var req commitRetryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	input := generation.CommitRetryInput{
		Kind:           domain.Kind(req.Kind),
		ProjectID:      projectID,
		Prompt:         req.Prompt,
		Model:          req.Model,
		SourceRecordID: req.SourceRecordID,
		Artifact: domain.Artifact{
			StoragePath: req.Artifact.StoragePath,
			MimeKind:    domain.MimeKind(req.Artifact.MimeKind),
			Width:       req.Artifact.Width,
			Height:      req.Artifact.Height,
			Size:        req.Artifact.Size,
		},
	}

	outcome, err := h.service.RetryCommit(c.Request.Context(), userID, input)
	if err != nil {
		h.handleGenerationError(c, err)
		return
	}
	h.respondOutcome(c, outcome)
}

func (h *GenerationHandler) List(c *gin.Context) {
	userID := middleware.GetUserID(c)

	projectID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid project id")
		return
	}

	records, err := h.service.List(c.Request.Context(), projectID, userID)
	if err != nil {
		h.handleGenerationError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"generations": toRecordDTOs(records)})
}

func (h *GenerationHandler) Lineage(c *gin.Context) {
	userID := middleware.GetUserID(c)

	lineageID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid lineage id")
		return
	}

	records, err := h.service.Lineage(c.Request.Context(), lineageID, userID)
	if err != nil {
		h.handleGenerationError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"generations": toRecordDTOs(records)})
}

func (h *GenerationHandler) ArtifactURL(c *gin.Context) {
	userID := middleware.GetUserID(c)

	recordID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid record id")
		return
	}

	url, err := h.service.ArtifactURL(c.Request.Context(), recordID, userID)
	if err != nil {
		h.handleGenerationError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}

func (h *GenerationHandler) Delete(c *gin.Context) {
	userID := middleware.GetUserID(c)

	recordID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid record id")
		return
	}

	if err := h.service.DeleteRecord(c.Request.Context(), recordID, userID); err != nil {
		h.handleGenerationError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// respondOutcome maps the terminal outcome onto the wire. A successful run
// is 201 with the committed record; a failed one carries the failure and,
// for commit failures, the already-persisted artifact so the client can
// retry the commit without regenerating.
func (h *GenerationHandler) respondOutcome(c *gin.Context, outcome *generation.Outcome) {
	resp := generateResponse{
		State:           string(outcome.State),
		CommitRetryable: outcome.CommitRetryable,
	}
	if outcome.Record != nil {
		dto := toRecordDTO(outcome.Record)
		resp.Record = &dto
	}
	if outcome.Artifact != nil {
		dto := toArtifactDTO(*outcome.Artifact)
		resp.Artifact = &dto
	}

	if outcome.Succeeded() {
		c.JSON(http.StatusCreated, resp)
		return
	}

	resp.Failure = &failureDTO{
		Kind:    outcome.Failure.Kind.String(),
		Message: outcome.Failure.Message,
	}
	c.JSON(response.StatusForFailure(outcome.Failure.Kind), resp)
}

func (h *GenerationHandler) handleGenerationError(c *gin.Context, err error) {
	var failure *domain.Failure
	switch {
	case errors.Is(err, project.ErrNotFound):
		response.NotFound(c, "PROJECT_NOT_FOUND", "project not found")
	case errors.Is(err, domain.ErrRecordNotFound):
		response.NotFound(c, "RECORD_NOT_FOUND", "generation record not found")
	case errors.As(err, &failure):
		response.Error(c, response.StatusForFailure(failure.Kind), "GENERATION_FAILED", failure.Message)
	default:
		h.logger.Error("Generation request failed", zap.Error(err))
		response.InternalError(c)
	}
}
