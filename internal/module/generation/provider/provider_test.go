package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prostudio/server/internal/domain/generation"
	"github.com/prostudio/server/internal/shared/config"
)

func editRequest() *generation.Request {
	return &generation.Request{
		Kind:        generation.KindImageEdit,
		ProjectID:   uuid.New(),
		UserID:      uuid.New(),
		SourceRef:   "https://storage.example.com/source.png",
		Prompt:      "make the background white",
		Model:       "edit-pro-v2",
		AspectRatio: "1:1",
		SubmittedAt: time.Now(),
	}
}

func videoRequest() *generation.Request {
	return &generation.Request{
		Kind:           generation.KindImageToVideo,
		ProjectID:      uuid.New(),
		UserID:         uuid.New(),
		SourceRef:      "https://storage.example.com/source.png",
		Prompt:         "rotate the product slowly",
		Model:          "video-gen",
		AspectRatio:    "16:9",
		CameraMovement: generation.CameraOrbit,
		SubmittedAt:    time.Now(),
	}
}

func predictionsClient(url string) *PredictionsClient {
	return NewPredictionsClient(&config.ProviderConfig{BaseURL: url}, http.DefaultClient)
}

func videoJobsClient(url string) *VideoJobsClient {
	return NewVideoJobsClient(&config.ProviderConfig{BaseURL: url}, http.DefaultClient)
}

func TestPredictionsClient_Submit(t *testing.T) {
	t.Run("success returns remote job", func(t *testing.T) {
		var captured predictionRequest
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, http.MethodPost, r.Method)
			require.Equal(t, "/api/provider-b/predictions", r.URL.Path)
			require.NoError(t, decodeJSON(r, &captured))
			writeJSON(w, http.StatusCreated, map[string]any{"id": "pred-123", "status": "starting"})
		}))
		defer srv.Close()

		req := editRequest()
		job, err := predictionsClient(srv.URL).Submit(context.Background(), req)

		require.NoError(t, err)
		assert.Equal(t, "pred-123", job.ProviderJobID)
		assert.Equal(t, generation.KindImageEdit, job.Kind)

		assert.Equal(t, req.Model, captured.Version)
		assert.Equal(t, req.SourceRef, captured.Input.InputImage)
		assert.Contains(t, captured.Input.Prompt, req.Prompt)
		assert.Contains(t, captured.Input.Prompt, "studio lighting")
		assert.Equal(t, "1:1", captured.Input.AspectRatio)
	})

	t.Run("402 surfaces payment required", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusPaymentRequired, map[string]any{
				"title": "Spend limit reached", "detail": "Add a payment method.",
			})
		}))
		defer srv.Close()

		_, err := predictionsClient(srv.URL).Submit(context.Background(), editRequest())

		var classified *generation.ClassifiedError
		require.ErrorAs(t, err, &classified)
		assert.Equal(t, generation.FailurePaymentRequired, classified.Kind)
		assert.Contains(t, classified.Message, "Spend limit reached")
	})

	t.Run("unreachable server is a transport failure", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		srv.Close()

		_, err := predictionsClient(srv.URL).Submit(context.Background(), editRequest())

		var failure *generation.Failure
		require.ErrorAs(t, err, &failure)
		assert.Equal(t, generation.FailureTransport, failure.Kind)
	})

	t.Run("rejects video requests", func(t *testing.T) {
		_, err := predictionsClient("http://unused").Submit(context.Background(), videoRequest())

		var failure *generation.Failure
		require.ErrorAs(t, err, &failure)
		assert.Equal(t, generation.FailureValidation, failure.Kind)
	})
}

func TestPredictionsClient_Status(t *testing.T) {
	tests := []struct {
		name      string
		body      map[string]any
		wantState generation.JobState
		wantRef   string
	}{
		{
			name:      "starting maps to queued",
			body:      map[string]any{"id": "p1", "status": "starting"},
			wantState: generation.JobQueued,
		},
		{
			name:      "processing",
			body:      map[string]any{"id": "p1", "status": "processing"},
			wantState: generation.JobProcessing,
		},
		{
			name:      "succeeded with string output",
			body:      map[string]any{"id": "p1", "status": "succeeded", "output": "https://cdn.example.com/out.png"},
			wantState: generation.JobSucceeded,
			wantRef:   "https://cdn.example.com/out.png",
		},
		{
			name:      "succeeded with array output takes first",
			body:      map[string]any{"id": "p1", "status": "succeeded", "output": []string{"https://cdn.example.com/a.png", "https://cdn.example.com/b.png"}},
			wantState: generation.JobSucceeded,
			wantRef:   "https://cdn.example.com/a.png",
		},
		{
			name:      "canceled",
			body:      map[string]any{"id": "p1", "status": "canceled"},
			wantState: generation.JobCanceled,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				require.Equal(t, "/api/provider-b/predictions/p1", r.URL.Path)
				writeJSON(w, http.StatusOK, tt.body)
			}))
			defer srv.Close()

			status, err := predictionsClient(srv.URL).Status(context.Background(), "p1")

			require.NoError(t, err)
			assert.Equal(t, tt.wantState, status.State)
			assert.Equal(t, tt.wantRef, status.OutputRef)
			assert.Nil(t, status.Progress)
		})
	}

	t.Run("failed carries provider reason", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{"id": "p1", "status": "failed", "error": "NSFW content detected"})
		}))
		defer srv.Close()

		status, err := predictionsClient(srv.URL).Status(context.Background(), "p1")

		require.NoError(t, err)
		assert.Equal(t, generation.JobFailed, status.State)
		assert.Equal(t, "NSFW content detected", status.Reason)
	})

	t.Run("404 classifies as not found", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusNotFound, map[string]any{"error": "no such prediction"})
		}))
		defer srv.Close()

		_, err := predictionsClient(srv.URL).Status(context.Background(), "p1")

		var classified *generation.ClassifiedError
		require.ErrorAs(t, err, &classified)
		assert.Equal(t, generation.FailureNotFound, classified.Kind)
	})
}

func TestVideoJobsClient_Submit(t *testing.T) {
	t.Run("success returns remote job with camera phrasing", func(t *testing.T) {
		var captured videoJobRequest
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, http.MethodPost, r.Method)
			require.Equal(t, "/api/provider-a/jobs", r.URL.Path)
			require.NoError(t, decodeJSON(r, &captured))
			writeJSON(w, http.StatusCreated, map[string]any{"taskId": "task-9", "status": "PROCESSING"})
		}))
		defer srv.Close()

		req := videoRequest()
		job, err := videoJobsClient(srv.URL).Submit(context.Background(), req)

		require.NoError(t, err)
		assert.Equal(t, "task-9", job.ProviderJobID)
		assert.Equal(t, "image-to-video", captured.Mode)
		assert.Equal(t, req.SourceRef, captured.PromptImage)
		assert.Contains(t, captured.PromptText, "orbits")
		assert.Equal(t, "1280:720", captured.Ratio)
	})

	t.Run("rejects image edit requests", func(t *testing.T) {
		_, err := videoJobsClient("http://unused").Submit(context.Background(), editRequest())

		var failure *generation.Failure
		require.ErrorAs(t, err, &failure)
		assert.Equal(t, generation.FailureValidation, failure.Kind)
	})
}

func TestVideoJobsClient_Status(t *testing.T) {
	t.Run("processing surfaces fractional progress verbatim", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/api/provider-a/jobs/task-9", r.URL.Path)
			writeJSON(w, http.StatusOK, map[string]any{"id": "task-9", "status": "PROCESSING", "progress": 0.42})
		}))
		defer srv.Close()

		status, err := videoJobsClient(srv.URL).Status(context.Background(), "task-9")

		require.NoError(t, err)
		assert.Equal(t, generation.JobProcessing, status.State)
		require.NotNil(t, status.Progress)
		assert.InDelta(t, 0.42, *status.Progress, 1e-9)
	})

	t.Run("succeeded returns first output", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{"id": "task-9", "status": "SUCCEEDED", "output": []string{"https://cdn.example.com/clip.mp4"}})
		}))
		defer srv.Close()

		status, err := videoJobsClient(srv.URL).Status(context.Background(), "task-9")

		require.NoError(t, err)
		assert.Equal(t, generation.JobSucceeded, status.State)
		assert.Equal(t, "https://cdn.example.com/clip.mp4", status.OutputRef)
	})

	t.Run("failed carries failure reason", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{"id": "task-9", "status": "FAILED", "failure": "render error"})
		}))
		defer srv.Close()

		status, err := videoJobsClient(srv.URL).Status(context.Background(), "task-9")

		require.NoError(t, err)
		assert.Equal(t, generation.JobFailed, status.State)
		assert.Equal(t, "render error", status.Reason)
	})
}

func TestEnhancePrompt(t *testing.T) {
	t.Run("image edit appends studio phrasing", func(t *testing.T) {
		got := EnhancePrompt(editRequest())
		assert.Contains(t, got, "make the background white")
		assert.Contains(t, got, "studio lighting")
	})

	t.Run("video appends camera movement", func(t *testing.T) {
		got := EnhancePrompt(videoRequest())
		assert.Contains(t, got, "rotate the product slowly")
		assert.Contains(t, got, "orbits around the product")
	})

	t.Run("video without movement omits camera phrasing", func(t *testing.T) {
		req := videoRequest()
		req.CameraMovement = ""
		got := EnhancePrompt(req)
		assert.NotContains(t, got, "camera")
	})
}

func TestRatioLookup(t *testing.T) {
	assert.Equal(t, "match_input_image", predictionRatio("free"))
	assert.Equal(t, "1:1", predictionRatio("21:9"), "unmapped falls back to default")
	assert.Equal(t, "720:1280", videoRatio("9:16"))
	assert.Equal(t, "1280:720", videoRatio("4:3"), "unmapped falls back to default")
}

func TestRegistry(t *testing.T) {
	providersCfg := &config.ProvidersConfig{
		Predictions: config.ProviderConfig{PollInterval: 2 * time.Second, MaxAttempts: 120},
		VideoJobs:   config.ProviderConfig{PollInterval: 2 * time.Second, MaxAttempts: 300},
	}

	t.Run("routes submit by kind", func(t *testing.T) {
		predictions := &stubClient{name: "predictions", job: &generation.RemoteJob{ProviderJobID: "p1"}}
		videoJobs := &stubClient{name: "video-jobs", job: &generation.RemoteJob{ProviderJobID: "v1"}}
		reg := NewRegistry(providersCfg, predictions, videoJobs)

		job, err := reg.Submit(context.Background(), editRequest())
		require.NoError(t, err)
		assert.Equal(t, "p1", job.ProviderJobID)

		job, err = reg.Submit(context.Background(), videoRequest())
		require.NoError(t, err)
		assert.Equal(t, "v1", job.ProviderJobID)
	})

	t.Run("unknown kind fails validation", func(t *testing.T) {
		reg := NewRegistry(providersCfg, &stubClient{name: "predictions"}, &stubClient{name: "video-jobs"})
		req := editRequest()
		req.Kind = generation.Kind("text-to-speech")

		_, err := reg.Submit(context.Background(), req)

		var failure *generation.Failure
		require.ErrorAs(t, err, &failure)
		assert.Equal(t, generation.FailureValidation, failure.Kind)
	})

	t.Run("exposes configured poll settings", func(t *testing.T) {
		reg := NewRegistry(providersCfg, &stubClient{name: "predictions"}, &stubClient{name: "video-jobs"})

		settings, ok := reg.SettingsFor(generation.KindImageToVideo)
		require.True(t, ok)
		assert.Equal(t, 300, settings.MaxAttempts)
		assert.Equal(t, 2*time.Second, settings.Interval)
	})

	t.Run("breaker opens after consecutive transport failures", func(t *testing.T) {
		failing := &stubClient{
			name: "predictions",
			err:  generation.NewFailure(generation.FailureTransport, "connection refused", errors.New("dial tcp")),
		}
		reg := NewRegistry(providersCfg, failing, &stubClient{name: "video-jobs"})

		for i := 0; i < 5; i++ {
			_, err := reg.Submit(context.Background(), editRequest())
			require.Error(t, err)
		}

		_, err := reg.Submit(context.Background(), editRequest())
		var failure *generation.Failure
		require.ErrorAs(t, err, &failure)
		assert.Equal(t, generation.FailureTransport, failure.Kind)
		assert.Equal(t, 5, failing.submits, "open breaker must not reach the client")
	})

	t.Run("classified provider errors do not trip the breaker", func(t *testing.T) {
		failing := &stubClient{
			name:         "predictions",
			classifiedErr: &generation.ClassifiedError{Kind: generation.FailurePaymentRequired, Message: "spend limit"},
		}
		reg := NewRegistry(providersCfg, failing, &stubClient{name: "video-jobs"})

		for i := 0; i < 8; i++ {
			_, err := reg.Submit(context.Background(), editRequest())
			require.Error(t, err)
		}

		assert.Equal(t, 8, failing.submits, "every call must reach the client")
	})
}

type stubClient struct {
	name          string
	job           *generation.RemoteJob
	status        generation.JobStatus
	err           error
	classifiedErr *generation.ClassifiedError
	submits       int
}

func (s *stubClient) Name() string { return s.name }

func (s *stubClient) Submit(ctx context.Context, req *generation.Request) (*generation.RemoteJob, error) {
	s.submits++
	if s.classifiedErr != nil {
		return nil, s.classifiedErr
	}
	if s.err != nil {
		return nil, s.err
	}
	return s.job, nil
}

func (s *stubClient) Status(ctx context.Context, jobID string) (generation.JobStatus, error) {
	if s.err != nil {
		return generation.JobStatus{}, s.err
	}
	return s.status, nil
}

func decodeJSON(r *http.Request, out any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(out)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
