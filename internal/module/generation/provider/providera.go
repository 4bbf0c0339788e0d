package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/prostudio/server/internal/domain/generation"
	"github.com/prostudio/server/internal/shared/config"
)

// VideoJobsClient talks to the same-origin video jobs proxy. It handles
// image-to-video requests only.
type VideoJobsClient struct {
	baseURL string
	client  *http.Client
}

// NewVideoJobsClient creates a new video jobs client.
func NewVideoJobsClient(cfg *config.ProviderConfig, client *http.Client) *VideoJobsClient {
	if client == nil {
		client = http.DefaultClient
	}
	return &VideoJobsClient{
		baseURL: cfg.BaseURL,
		client:  client,
	}
}

var _ Client = (*VideoJobsClient)(nil)

// Name returns the client's provider name.
func (c *VideoJobsClient) Name() string {
	return "video-jobs"
}

type videoJobRequest struct {
	Mode        string `json:"mode"`
	PromptText  string `json:"promptText,omitempty"`
	PromptImage string `json:"promptImage,omitempty"`
	Ratio       string `json:"ratio,omitempty"`
}

type videoJobCreated struct {
	TaskID string `json:"taskId"`
	Status string `json:"status"`
}

type videoJobStatus struct {
	ID       string   `json:"id"`
	Status   string   `json:"status"`
	Output   []string `json:"output,omitempty"`
	Progress *float64 `json:"progress,omitempty"`
	Failure  string   `json:"failure,omitempty"`
}

// Submit creates a video generation job.
func (c *VideoJobsClient) Submit(ctx context.Context, req *generation.Request) (*generation.RemoteJob, error) {
	if req.Kind != generation.KindImageToVideo {
		return nil, generation.NewFailure(generation.FailureValidation,
			fmt.Sprintf("video jobs provider does not handle %s requests", req.Kind), generation.ErrInvalidKind)
	}

	payload := &videoJobRequest{
		Mode:        "image-to-video",
		PromptText:  EnhancePrompt(req),
		PromptImage: req.SourceRef,
		Ratio:       videoRatio(req.AspectRatio),
	}

	var created videoJobCreated
	if err := c.do(ctx, http.MethodPost, "/api/provider-a/jobs", payload, &created); err != nil {
		return nil, err
	}
	if created.TaskID == "" {
		return nil, generation.NewFailure(generation.FailureTransport, "provider returned empty task id", nil)
	}

	return &generation.RemoteJob{
		ProviderJobID: created.TaskID,
		Kind:          req.Kind,
		SubmittedAt:   req.SubmittedAt,
	}, nil
}

// Status fetches the current state of a job.
func (c *VideoJobsClient) Status(ctx context.Context, jobID string) (generation.JobStatus, error) {
	var status videoJobStatus
	if err := c.do(ctx, http.MethodGet, "/api/provider-a/jobs/"+jobID, nil, &status); err != nil {
		return generation.JobStatus{}, err
	}
	return mapVideoJobStatus(&status), nil
}

// mapVideoJobStatus converts the provider's status vocabulary into the
// provider-agnostic one.
func mapVideoJobStatus(s *videoJobStatus) generation.JobStatus {
	switch s.Status {
	case "SUCCEEDED":
		var output string
		if len(s.Output) > 0 {
			output = s.Output[0]
		}
		return generation.JobStatus{State: generation.JobSucceeded, OutputRef: output}
	case "FAILED":
		reason := s.Failure
		if reason == "" {
			reason = "generation failed"
		}
		return generation.JobStatus{State: generation.JobFailed, Reason: reason}
	case "PROCESSING":
		return generation.JobStatus{State: generation.JobProcessing, Progress: s.Progress}
	default:
		return generation.JobStatus{State: generation.JobQueued}
	}
}

// do executes one request against the proxy and decodes the 2xx response
// into out. Non-2xx responses come back classified.
func (c *VideoJobsClient) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		encoded, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if in != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return generation.NewFailure(generation.FailureTransport, "video jobs provider unreachable", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return generation.NewFailure(generation.FailureTransport, "read provider response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Classify(resp.StatusCode, respBody)
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return generation.NewFailure(generation.FailureTransport, "decode provider response", err)
	}
	return nil
}
