package provider

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/prostudio/server/internal/domain/generation"
	"github.com/prostudio/server/internal/shared/config"
)

// PollSettings carries the per-provider polling budget.
type PollSettings struct {
	Interval    time.Duration
	MaxAttempts int
}

// Registry routes requests to the client handling their kind and wraps
// every submit in a circuit breaker, so a provider that is hard down fails
// new runs fast instead of burning its full timeout each time. Status
// polls are not breaker-protected: an open breaker mid-poll would strand a
// job that may still finish.
type Registry struct {
	mu sync.RWMutex

	clients  map[generation.Kind]Client
	settings map[generation.Kind]PollSettings
	breakers map[generation.Kind]*gobreaker.CircuitBreaker[*generation.RemoteJob]
}

// NewRegistry creates a registry with the two supported clients wired to
// their kinds and their configured polling budgets.
func NewRegistry(cfg *config.ProvidersConfig, predictions, videoJobs Client) *Registry {
	r := &Registry{
		clients:  make(map[generation.Kind]Client),
		settings: make(map[generation.Kind]PollSettings),
		breakers: make(map[generation.Kind]*gobreaker.CircuitBreaker[*generation.RemoteJob]),
	}
	r.register(generation.KindImageEdit, predictions, &cfg.Predictions)
	r.register(generation.KindImageToVideo, videoJobs, &cfg.VideoJobs)
	return r
}

func (r *Registry) register(kind generation.Kind, client Client, cfg *config.ProviderConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.clients[kind] = client
	r.settings[kind] = PollSettings{
		Interval:    cfg.PollInterval,
		MaxAttempts: cfg.MaxAttempts,
	}
	r.breakers[kind] = gobreaker.NewCircuitBreaker[*generation.RemoteJob](gobreaker.Settings{
		Name:        client.Name(),
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			// Only transport-level failures trip the breaker. Classified
			// provider errors mean the provider is up and answering.
			if err == nil {
				return true
			}
			var failure *generation.Failure
			if errors.As(err, &failure) {
				return failure.Kind != generation.FailureTransport
			}
			return true
		},
	})
}

// ClientFor returns the client handling the given kind.
func (r *Registry) ClientFor(kind generation.Kind) (Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.clients[kind]
	return c, ok
}

// SettingsFor returns the polling budget for the given kind.
func (r *Registry) SettingsFor(kind generation.Kind) (PollSettings, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.settings[kind]
	return s, ok
}

// Submit routes the request to its kind's client through the breaker.
func (r *Registry) Submit(ctx context.Context, req *generation.Request) (*generation.RemoteJob, error) {
	r.mu.RLock()
	client, ok := r.clients[req.Kind]
	breaker := r.breakers[req.Kind]
	r.mu.RUnlock()

	if !ok {
		return nil, generation.NewFailure(generation.FailureValidation,
			"no provider registered for kind "+req.Kind.String(), generation.ErrInvalidKind)
	}

	job, err := breaker.Execute(func() (*generation.RemoteJob, error) {
		return client.Submit(ctx, req)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, generation.NewFailure(generation.FailureTransport,
			client.Name()+" provider temporarily unavailable", err)
	}
	return job, err
}

// Status routes a status poll to the client handling the given kind.
func (r *Registry) Status(ctx context.Context, kind generation.Kind, jobID string) (generation.JobStatus, error) {
	client, ok := r.ClientFor(kind)
	if !ok {
		return generation.JobStatus{}, generation.NewFailure(generation.FailureValidation,
			"no provider registered for kind "+kind.String(), generation.ErrInvalidKind)
	}
	return client.Status(ctx, jobID)
}
