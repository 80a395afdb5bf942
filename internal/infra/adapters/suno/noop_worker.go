package suno

import (
	"context"
	"fmt"

	"son1k-dispatch/internal/domain/model"
	"son1k-dispatch/internal/domain/ports/adapter"
)

var _ adapter.MusicWorkerAdapter = (*NoopWorkerAdapter)(nil)

// NoopWorkerAdapter succeeds every request without touching the network.
// Used in dev mode and when no wrapper base URL is configured.
type NoopWorkerAdapter struct{}

func NewNoopWorkerAdapter() *NoopWorkerAdapter { return &NoopWorkerAdapter{} }

func (NoopWorkerAdapter) Execute(ctx context.Context, req adapter.GenerationRequest, credentialRef string) (adapter.GenerationResult, error) {
	if err := ctx.Err(); err != nil {
		return adapter.GenerationResult{}, err
	}
	return adapter.GenerationResult{
		Outcome:  model.OutcomeSuccess,
		WorkerID: "noop",
		TrackURL: fmt.Sprintf("noop://track/%s", req.JobID),
	}, nil
}
