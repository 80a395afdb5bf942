package suno

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"son1k-dispatch/internal/config"
	"son1k-dispatch/internal/domain/model"
	"son1k-dispatch/internal/domain/ports/adapter"

	"github.com/rs/zerolog"
)

// Compile-time assurance this adapter satisfies the port
var _ adapter.MusicWorkerAdapter = (*HTTPWorkerAdapter)(nil)

// HTTPWorkerAdapter talks to the browser-automation wrapper service. The
// wrapper owns the actual session login and page driving; this adapter only
// translates its HTTP responses into typed outcomes.
type HTTPWorkerAdapter struct {
	base   string
	client *http.Client
	log    *zerolog.Logger
}

func NewHTTPWorkerAdapter(cfg *config.WorkerConfig, logger *zerolog.Logger) (*HTTPWorkerAdapter, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("worker base_url empty")
	}
	wlog := logger.With().Str("component", "SunoWorker").Logger()
	return &HTTPWorkerAdapter{
		base: strings.TrimRight(cfg.BaseURL, "/"),
		// no client timeout: the dispatcher bounds each call via ctx
		client: &http.Client{},
		log:    &wlog,
	}, nil
}

func (w *HTTPWorkerAdapter) Execute(ctx context.Context, req adapter.GenerationRequest, credentialRef string) (adapter.GenerationResult, error) {
	body := struct {
		adapter.GenerationRequest
		CredentialRef string `json:"credential_ref"`
	}{req, credentialRef}

	b, _ := json.Marshal(body)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, w.base+"/generate", bytes.NewReader(b))
	if err != nil {
		return adapter.GenerationResult{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(httpReq)
	if err != nil {
		return adapter.GenerationResult{}, err
	}
	defer resp.Body.Close()

	var payload struct {
		WorkerID string `json:"worker_id"`
		TrackURL string `json:"track_url"`
		Detail   string `json:"detail"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&payload)

	res := adapter.GenerationResult{
		Outcome:  outcomeForStatus(resp.StatusCode),
		WorkerID: payload.WorkerID,
		TrackURL: payload.TrackURL,
		Detail:   payload.Detail,
	}
	if res.Detail == "" && res.Outcome != model.OutcomeSuccess {
		res.Detail = fmt.Sprintf("worker http %d", resp.StatusCode)
	}
	if res.Outcome != model.OutcomeSuccess {
		w.log.Warn().
			Str("job_id", req.JobID).
			Int("status", resp.StatusCode).
			Str("outcome", string(res.Outcome)).
			Msg("worker call failed")
	}
	return res, nil
}

// outcomeForStatus is the single place the wrapper's HTTP contract is read.
// 429 means the target throttled the account; 401/403 mean the session
// material was rejected and the account must not be retried.
func outcomeForStatus(code int) model.Outcome {
	switch {
	case code >= 200 && code < 300:
		return model.OutcomeSuccess
	case code == http.StatusTooManyRequests:
		return model.OutcomeRateLimited
	case code == http.StatusUnauthorized, code == http.StatusForbidden:
		return model.OutcomeAuthFailure
	default:
		return model.OutcomeFailure
	}
}
