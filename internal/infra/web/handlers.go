package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"son1k-dispatch/internal/domain"
	"son1k-dispatch/internal/domain/model"
	"son1k-dispatch/internal/infra/logging"
	"son1k-dispatch/internal/infra/redis"

	"github.com/go-chi/chi/v5"
)

type submitJobRequest struct {
	Payload  model.JobPayload `json:"payload"`
	UserPlan string           `json:"user_plan"`
}

type jobResponse struct {
	JobID             string `json:"job_id"`
	Status            string `json:"status"`
	PriorityScore     int    `json:"priority_score"`
	AssignedAccountID string `json:"assigned_account_id,omitempty"`
	Attempts          int    `json:"attempts,omitempty"`
	TrackURL          string `json:"track_url,omitempty"`
	Error             string `json:"error,omitempty"`
}

func (s *Server) submitJobHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		log := logging.With(ctx, s.log)

		if s.limiter != nil {
			userID := r.Header.Get("X-User-ID")
			if userID == "" {
				userID = r.RemoteAddr
			}
			ok, err := s.limiter.Allow(ctx, redis.SubmissionKey(userID), s.submitLimit, s.submitWindow)
			if err != nil {
				log.Error().Err(err).Msg("rate limiter check failed")
			} else if !ok {
				http.Error(w, "Too many submissions", http.StatusTooManyRequests)
				return
			}
		}

		var req submitJobRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		plan, err := model.ParsePlan(req.UserPlan)
		if err != nil {
			http.Error(w, "Unknown plan", http.StatusBadRequest)
			return
		}

		job, err := s.jobUC.Submit(ctx, req.Payload, plan)
		if err != nil {
			if errors.Is(err, domain.ErrInvalidArgument) {
				http.Error(w, "Payload needs lyrics or a style prompt", http.StatusBadRequest)
				return
			}
			http.Error(w, "Failed to accept job", http.StatusInternalServerError)
			return
		}

		writeJSON(w, http.StatusAccepted, jobResponse{
			JobID:         job.ID,
			Status:        string(job.Status),
			PriorityScore: job.PriorityScore,
		})
	}
}

func (s *Server) getJobHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		job, err := s.jobUC.Get(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				http.Error(w, "Job not found", http.StatusNotFound)
				return
			}
			http.Error(w, "Failed to load job", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, jobResponse{
			JobID:             job.ID,
			Status:            string(job.Status),
			PriorityScore:     job.PriorityScore,
			AssignedAccountID: job.AssignedAccountID,
			Attempts:          job.Attempts,
			TrackURL:          job.TrackURL,
			Error:             job.LastError,
		})
	}
}

func (s *Server) capacityHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, s.capacityUC.Snapshot())
	}
}

type loginRequest struct {
	APIKey string `json:"api_key"`
	// Operator is an optional display name recorded in session claims so
	// fleet mutations can be attributed.
	Operator string `json:"operator"`
}

func (s *Server) loginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.apiKey == "" || s.auth == nil {
			s.log.Error().Msg("operator API key is not configured")
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		var req loginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.APIKey != s.apiKey {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		token, err := s.auth.Mint(w, req.Operator)
		if err != nil {
			http.Error(w, "Failed to establish session", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"token": token})
	}
}

type accountReport struct {
	ID            string     `json:"id"`
	Priority      int        `json:"priority"`
	Status        string     `json:"status"`
	UsageToday    int        `json:"usage_today"`
	MaxDailyUsage int        `json:"max_daily_usage"`
	SuccessCount  int        `json:"success_count"`
	FailureCount  int        `json:"failure_count"`
	SuccessRate   float64    `json:"success_rate"`
	CooldownUntil *time.Time `json:"cooldown_until,omitempty"`
	LastUsedAt    *time.Time `json:"last_used_at,omitempty"`
}

func (s *Server) listAccountsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		accounts := s.store.All()
		out := make([]accountReport, 0, len(accounts))
		for _, a := range accounts {
			rep := accountReport{
				ID:            a.ID,
				Priority:      a.Priority,
				Status:        string(a.Status),
				UsageToday:    a.UsageToday,
				MaxDailyUsage: a.MaxDailyUsage,
				SuccessCount:  a.SuccessCount,
				FailureCount:  a.FailureCount,
				SuccessRate:   a.SuccessRate(),
			}
			if !a.CooldownUntil.IsZero() {
				t := a.CooldownUntil
				rep.CooldownUntil = &t
			}
			if !a.LastUsedAt.IsZero() {
				t := a.LastUsedAt
				rep.LastUsedAt = &t
			}
			out = append(out, rep)
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func (s *Server) resetHealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if err := s.store.ResetHealth(r.Context(), id); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				http.Error(w, "Account not found", http.StatusNotFound)
				return
			}
			http.Error(w, "Failed to reset account", http.StatusInternalServerError)
			return
		}
		if claims := claimsFrom(r.Context()); claims != nil {
			s.log.Info().Str("operator", claims.Operator()).Str("account_id", id).Msg("account health reset by operator")
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) resetUsageHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n := s.store.ResetDailyUsage(r.Context())
		if claims := claimsFrom(r.Context()); claims != nil {
			s.log.Info().Str("operator", claims.Operator()).Int("reset", n).Msg("daily usage reset by operator")
		}
		writeJSON(w, http.StatusOK, map[string]int{"reset": n})
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
