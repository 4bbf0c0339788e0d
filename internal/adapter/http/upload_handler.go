package http

import (
	"errors"
	"fmt"
	"net/http"
	"path"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/prostudio/server/internal/domain/project"
	"github.com/prostudio/server/internal/module/generation"
	"github.com/prostudio/server/internal/shared/middleware"
	"github.com/prostudio/server/internal/shared/response"
)

const maxSourceUploadSize = 64 << 20

// UploadHandler issues presigned upload URLs for source images. Clients
// write directly to object storage; the server never proxies the bytes.
type UploadHandler struct {
	projects project.Repository
	signer   generation.Signer
	logger   *zap.Logger
}

func NewUploadHandler(projects project.Repository, signer generation.Signer, logger *zap.Logger) *UploadHandler {
	return &UploadHandler{projects: projects, signer: signer, logger: logger}
}

// RegisterRoutes registers the upload routes on the given group.
func (h *UploadHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/projects/:id/uploads", h.CreateUploadURL)
}

func (h *UploadHandler) CreateUploadURL(c *gin.Context) {
	userID := middleware.GetUserID(c)

	projectID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid project id")
		return
	}

	var req uploadURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if req.Size <= 0 || req.Size > maxSourceUploadSize {
		response.Error(c, http.StatusBadRequest, "INVALID_SIZE",
			fmt.Sprintf("upload size must be between 1 and %d bytes", maxSourceUploadSize))
		return
	}
	ext := normalizedExtension(req.Filename)
	if ext == "" {
		response.Error(c, http.StatusBadRequest, "INVALID_FILENAME", "filename must carry an image extension")
		return
	}

	if _, err := h.projects.GetByID(c.Request.Context(), projectID, userID); err != nil {
		if errors.Is(err, project.ErrNotFound) {
			response.NotFound(c, "PROJECT_NOT_FOUND", "project not found")
			return
		}
		h.logger.Error("Upload URL request failed", zap.Error(err))
		response.InternalError(c)
		return
	}

	storagePath := fmt.Sprintf("%s/%s/uploads/%s%s", userID, projectID, uuid.New(), ext)
	url, err := h.signer.SignedUploadURL(c.Request.Context(), storagePath, req.Size)
	if err != nil {
		h.logger.Error("Presigning upload failed", zap.Error(err))
		response.InternalError(c)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"upload_url":   url,
		"storage_path": storagePath,
	})
}

// normalizedExtension accepts only image extensions and folds jpeg to jpg.
func normalizedExtension(filename string) string {
	switch strings.ToLower(path.Ext(filename)) {
	case ".jpg", ".jpeg":
		return ".jpg"
	case ".png":
		return ".png"
	case ".gif":
		return ".gif"
	case ".webp":
		return ".webp"
	default:
		return ""
	}
}
