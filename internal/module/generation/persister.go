package generation

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"go.uber.org/zap"

	domain "github.com/prostudio/server/internal/domain/generation"
)

// maxArtifactSize bounds how much of a provider artifact is read into
// memory. Video renders run large; anything past this is suspect.
const maxArtifactSize = 512 << 20

// Uploader writes one object into the application's own storage.
type Uploader interface {
	Upload(ctx context.Context, storagePath string, data []byte, contentType string) error
}

// Persister materializes a provider-hosted artifact into the application's
// storage: download, derive metadata, compute a scoped destination path,
// upload.
type Persister struct {
	client   *http.Client
	uploader Uploader
	logger   *zap.Logger
	now      func() time.Time
}

// NewPersister creates a new persister.
func NewPersister(client *http.Client, uploader Uploader, logger *zap.Logger) *Persister {
	if client == nil {
		client = http.DefaultClient
	}
	return &Persister{
		client:   client,
		uploader: uploader,
		logger:   logger,
		now:      time.Now,
	}
}

// Persist downloads the artifact at remoteURL and uploads it under the
// requesting user's storage prefix. Image artifacts must decode; their
// pixel dimensions are part of the persisted metadata, not optional.
func (p *Persister) Persist(ctx context.Context, remoteURL string, req *domain.Request) (domain.Artifact, error) {
	data, contentType, err := p.download(ctx, remoteURL)
	if err != nil {
		return domain.Artifact{}, err
	}

	storagePath := storagePathFor(req, contentType, p.now())
	if err := validateScopedPath(storagePath, req.UserID.String()); err != nil {
		p.logger.Warn("Rejected artifact path outside user scope",
			zap.String("user_id", req.UserID.String()),
			zap.String("path", storagePath),
		)
		return domain.Artifact{}, domain.NewFailure(domain.FailurePathValidation,
			"computed storage path escapes the user scope", err)
	}

	if err := p.uploader.Upload(ctx, storagePath, data, uploadContentType(req.Kind, contentType)); err != nil {
		return domain.Artifact{}, domain.NewFailure(domain.FailureStorage,
			fmt.Sprintf("upload artifact to %s", storagePath), err)
	}

	artifact := domain.Artifact{
		StoragePath: storagePath,
		MimeKind:    mimeKindFor(req.Kind),
		Size:        int64(len(data)),
	}

	if artifact.MimeKind == domain.MimeImage {
		cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
		if err != nil {
			// The object is already uploaded; the operator may need to
			// clean it up.
			p.logger.Error("Artifact uploaded but image does not decode",
				zap.String("path", storagePath),
				zap.Error(err),
			)
			return domain.Artifact{}, domain.NewFailure(domain.FailureDownload,
				"downloaded image does not decode", err)
		}
		artifact.Width = cfg.Width
		artifact.Height = cfg.Height
	}

	p.logger.Info("Artifact persisted",
		zap.String("path", storagePath),
		zap.Int64("size", artifact.Size),
	)
	return artifact, nil
}

// download fetches the remote artifact and returns its bytes and reported
// content type.
func (p *Persister) download(ctx context.Context, remoteURL string) ([]byte, string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, remoteURL, nil)
	if err != nil {
		return nil, "", domain.NewFailure(domain.FailureDownload, "build download request", err)
	}

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, "", domain.NewFailure(domain.FailureDownload, "fetch artifact "+remoteURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, "", domain.NewFailure(domain.FailureDownload,
			fmt.Sprintf("artifact fetch returned HTTP %d", resp.StatusCode), nil)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxArtifactSize))
	if err != nil {
		return nil, "", domain.NewFailure(domain.FailureDownload, "read artifact body", err)
	}
	return data, resp.Header.Get("Content-Type"), nil
}

// storagePathFor computes the deterministic destination path
// {userID}/{projectID}/{kind}-{timestamp}.{ext}.
func storagePathFor(req *domain.Request, contentType string, now time.Time) string {
	return fmt.Sprintf("%s/%s/%s-%d.%s",
		req.UserID, req.ProjectID, req.Kind, now.UnixMilli(), extensionFor(req.Kind, contentType))
}

// validateScopedPath rejects paths that resolve outside the owning user's
// prefix. The naming inputs include provider-influenced values, so the
// computed path is checked, not trusted.
func validateScopedPath(storagePath, userID string) error {
	if strings.Contains(storagePath, "..") {
		return fmt.Errorf("path %q contains a parent traversal", storagePath)
	}
	cleaned := path.Clean(storagePath)
	if cleaned != storagePath {
		return fmt.Errorf("path %q is not in canonical form", storagePath)
	}
	if !strings.HasPrefix(cleaned, userID+"/") {
		return fmt.Errorf("path %q is not scoped under user %s", storagePath, userID)
	}
	return nil
}

func extensionFor(kind domain.Kind, contentType string) string {
	if kind == domain.KindImageToVideo {
		return "mp4"
	}
	switch {
	case strings.Contains(contentType, "jpeg"):
		return "jpg"
	case strings.Contains(contentType, "gif"):
		return "gif"
	default:
		return "png"
	}
}

func uploadContentType(kind domain.Kind, downloaded string) string {
	if downloaded != "" && downloaded != "application/octet-stream" {
		return downloaded
	}
	if kind == domain.KindImageToVideo {
		return "video/mp4"
	}
	return "image/png"
}

func mimeKindFor(kind domain.Kind) domain.MimeKind {
	if kind == domain.KindImageToVideo {
		return domain.MimeVideo
	}
	return domain.MimeImage
}
