package suno

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"son1k-dispatch/internal/config"
	"son1k-dispatch/internal/domain/model"
	"son1k-dispatch/internal/domain/ports/adapter"

	"github.com/rs/zerolog"
)

func newTestAdapter(t *testing.T, handler http.HandlerFunc) *HTTPWorkerAdapter {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	log := zerolog.Nop()
	w, err := NewHTTPWorkerAdapter(&config.WorkerConfig{BaseURL: srv.URL}, &log)
	if err != nil {
		t.Fatalf("new adapter: %v", err)
	}
	return w
}

func TestExecute_StatusMapping(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		status  int
		outcome model.Outcome
	}{
		{"ok", http.StatusOK, model.OutcomeSuccess},
		{"throttled", http.StatusTooManyRequests, model.OutcomeRateLimited},
		{"unauthorized", http.StatusUnauthorized, model.OutcomeAuthFailure},
		{"forbidden", http.StatusForbidden, model.OutcomeAuthFailure},
		{"server error", http.StatusBadGateway, model.OutcomeFailure},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			w := newTestAdapter(t, func(rw http.ResponseWriter, r *http.Request) {
				rw.WriteHeader(tc.status)
				_ = json.NewEncoder(rw).Encode(map[string]string{"worker_id": "w1"})
			})
			res, err := w.Execute(context.Background(), adapter.GenerationRequest{JobID: "j1"}, "cred")
			if err != nil {
				t.Fatalf("execute: %v", err)
			}
			if res.Outcome != tc.outcome {
				t.Fatalf("status %d: expected %s, got %s", tc.status, tc.outcome, res.Outcome)
			}
		})
	}
}

func TestExecute_ForwardsCredentialAndPayload(t *testing.T) {
	t.Parallel()

	var got struct {
		JobID         string `json:"job_id"`
		StylePrompt   string `json:"style_prompt"`
		CredentialRef string `json:"credential_ref"`
	}
	w := newTestAdapter(t, func(rw http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		_ = json.NewEncoder(rw).Encode(map[string]string{"track_url": "https://cdn/x.mp3"})
	})

	res, err := w.Execute(context.Background(), adapter.GenerationRequest{JobID: "j9", StylePrompt: "synthwave"}, "cred-9")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if got.JobID != "j9" || got.StylePrompt != "synthwave" || got.CredentialRef != "cred-9" {
		t.Fatalf("request not forwarded: %+v", got)
	}
	if res.TrackURL != "https://cdn/x.mp3" {
		t.Fatalf("track url not decoded: %q", res.TrackURL)
	}
}
