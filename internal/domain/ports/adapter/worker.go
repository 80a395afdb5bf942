package adapter

import (
	"context"

	"son1k-dispatch/internal/domain/model"
)

// GenerationRequest is what the dispatcher hands to a worker.
type GenerationRequest struct {
	JobID        string `json:"job_id"`
	Lyrics       string `json:"lyrics"`
	StylePrompt  string `json:"style_prompt"`
	Title        string `json:"title"`
	Instrumental bool   `json:"instrumental"`
}

// GenerationResult reports how a single attempt ended. Outcome is always set
// on a non-error return; TrackURL is only meaningful on success.
type GenerationResult struct {
	Outcome  model.Outcome
	WorkerID string
	TrackURL string
	Detail   string
}

// MusicWorkerAdapter is the port for the browser-automation worker that
// performs the actual third-party interaction. The implementation logs in
// with the referenced session material and drives the generation flow;
// the dispatch core only sees the typed outcome.
//
// Execute must respect ctx cancellation; the dispatcher imposes the timeout.
type MusicWorkerAdapter interface {
	Execute(ctx context.Context, req GenerationRequest, credentialRef string) (GenerationResult, error)
}
