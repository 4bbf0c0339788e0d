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

// PredictionsClient talks to the same-origin predictions proxy. It handles
// image edit requests only.
type PredictionsClient struct {
	baseURL string
	client  *http.Client
}

// NewPredictionsClient creates a new predictions client.
func NewPredictionsClient(cfg *config.ProviderConfig, client *http.Client) *PredictionsClient {
	if client == nil {
		client = http.DefaultClient
	}
	return &PredictionsClient{
		baseURL: cfg.BaseURL,
		client:  client,
	}
}

var _ Client = (*PredictionsClient)(nil)

// Name returns the client's provider name.
func (c *PredictionsClient) Name() string {
	return "predictions"
}

type predictionRequest struct {
	Version string          `json:"version"`
	Input   predictionInput `json:"input"`
}

type predictionInput struct {
	Prompt      string `json:"prompt"`
	InputImage  string `json:"input_image"`
	AspectRatio string `json:"aspect_ratio,omitempty"`
}

type prediction struct {
	ID     string          `json:"id"`
	Status string          `json:"status"`
	Output json.RawMessage `json:"output,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// Submit creates an image edit prediction.
func (c *PredictionsClient) Submit(ctx context.Context, req *generation.Request) (*generation.RemoteJob, error) {
	if req.Kind != generation.KindImageEdit {
		return nil, generation.NewFailure(generation.FailureValidation,
			fmt.Sprintf("predictions provider does not handle %s requests", req.Kind), generation.ErrInvalidKind)
	}

	payload := &predictionRequest{
		Version: req.Model,
		Input: predictionInput{
			Prompt:      EnhancePrompt(req),
			InputImage:  req.SourceRef,
			AspectRatio: predictionRatio(req.AspectRatio),
		},
	}

	var created prediction
	if err := c.do(ctx, http.MethodPost, "/api/provider-b/predictions", payload, &created); err != nil {
		return nil, err
	}
	if created.ID == "" {
		return nil, generation.NewFailure(generation.FailureTransport, "provider returned empty prediction id", nil)
	}

	return &generation.RemoteJob{
		ProviderJobID: created.ID,
		Kind:          req.Kind,
		SubmittedAt:   req.SubmittedAt,
	}, nil
}

// Status fetches the current state of a prediction.
func (c *PredictionsClient) Status(ctx context.Context, jobID string) (generation.JobStatus, error) {
	var pred prediction
	if err := c.do(ctx, http.MethodGet, "/api/provider-b/predictions/"+jobID, nil, &pred); err != nil {
		return generation.JobStatus{}, err
	}
	return mapPrediction(&pred), nil
}

// mapPrediction converts the prediction status vocabulary into the
// provider-agnostic one. The predictions provider reports no fractional
// progress, only textual states.
func mapPrediction(p *prediction) generation.JobStatus {
	switch p.Status {
	case "succeeded":
		return generation.JobStatus{State: generation.JobSucceeded, OutputRef: firstOutput(p.Output)}
	case "failed":
		reason := p.Error
		if reason == "" {
			reason = "prediction failed"
		}
		return generation.JobStatus{State: generation.JobFailed, Reason: reason}
	case "canceled":
		return generation.JobStatus{State: generation.JobCanceled}
	case "processing":
		return generation.JobStatus{State: generation.JobProcessing}
	default:
		// "starting" and anything unrecognized count as queued.
		return generation.JobStatus{State: generation.JobQueued}
	}
}

// firstOutput extracts the artifact URL from the output field, which the
// provider serializes either as a single string or as an array of strings.
func firstOutput(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		return single
	}
	var many []string
	if err := json.Unmarshal(raw, &many); err == nil && len(many) > 0 {
		return many[0]
	}
	return ""
}

func (c *PredictionsClient) do(ctx context.Context, method, path string, in, out any) error {
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
		return generation.NewFailure(generation.FailureTransport, "predictions provider unreachable", err)
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
