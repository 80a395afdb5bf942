package usecase

import (
	"context"
	"time"

	"son1k-dispatch/internal/domain"
	"son1k-dispatch/internal/domain/model"
	"son1k-dispatch/internal/domain/ports/adapter"
	"son1k-dispatch/internal/infra/logging"
	"son1k-dispatch/internal/infra/metrics"

	"github.com/rs/zerolog"
)

// DispatchUseCase binds a job to an account and forwards it to a worker,
// rotating across accounts on failure within a fixed retry budget. A
// systemic outage stops after max_attempts instead of burning quota on
// every account in the pool.
type DispatchUseCase struct {
	store         *AccountStore
	worker        adapter.MusicWorkerAdapter
	maxAttempts   int
	workerTimeout time.Duration
	planFloors    map[model.Plan]int
	log           *zerolog.Logger
}

func NewDispatchUseCase(
	store *AccountStore,
	worker adapter.MusicWorkerAdapter,
	maxAttempts int,
	workerTimeout time.Duration,
	planFloors map[model.Plan]int,
	logger *zerolog.Logger,
) *DispatchUseCase {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	if workerTimeout <= 0 {
		workerTimeout = 2 * time.Minute
	}
	dispLog := logger.With().Str("component", "Dispatcher").Logger()
	return &DispatchUseCase{
		store:         store,
		worker:        worker,
		maxAttempts:   maxAttempts,
		workerTimeout: workerTimeout,
		planFloors:    planFloors,
		log:           &dispLog,
	}
}

// Dispatch mutates the job in place to its terminal state and returns the
// result of a successful submission. Terminal errors are ErrNoCapacity (no
// account was ever eligible; job becomes Exhausted) or *ExhaustedError (the
// budget was consumed across real attempts; job becomes Failed). The caller
// persists the job.
func (uc *DispatchUseCase) Dispatch(ctx context.Context, job *model.GenerationJob) (*model.DispatchResult, error) {
	defer logging.TraceDuration(uc.log, "Dispatcher.Dispatch")()

	ctx = logging.WithJobID(ctx, job.ID)
	jlog := logging.With(ctx, uc.log)

	if job.PriorityScore == 0 {
		job.PriorityScore = job.UserPlan.PriorityScore()
	}
	floor := uc.planFloors[job.UserPlan]

	tried := make(map[string]bool, uc.maxAttempts)
	attempts := make([]domain.Attempt, 0, uc.maxAttempts)

	for len(attempts) < uc.maxAttempts {
		// Cancellation before a reservation has no side effect.
		if err := ctx.Err(); err != nil {
			if len(attempts) == 0 {
				return nil, err
			}
			break
		}

		acc, err := uc.store.Reserve(floor, tried)
		if err != nil {
			if len(attempts) == 0 {
				job.Status = model.JobStatusExhausted
				job.LastError = domain.ErrNoCapacity.Error()
				jlog.Warn().Int("min_priority", floor).Msg("no eligible account")
				return nil, domain.ErrNoCapacity
			}
			break // tried everything eligible; budget unspent
		}
		tried[acc.ID] = true
		job.Attempts++
		job.AssignedAccountID = acc.ID
		alog := logging.With(logging.WithAccountID(ctx, acc.ID), uc.log)

		outcome, res := uc.execute(ctx, job, acc)

		// The outcome must land in account health even when the caller is
		// gone, so the record uses a detached context.
		if rerr := uc.store.RecordOutcome(context.Background(), acc.ID, outcome); rerr != nil {
			uc.log.Error().Err(rerr).Str("account_id", acc.ID).Msg("record outcome failed")
		}
		metrics.IncDispatchAttempt(string(outcome))
		attempts = append(attempts, domain.Attempt{AccountID: acc.ID, Outcome: string(outcome), Detail: res.Detail})

		if outcome == model.OutcomeSuccess {
			job.Status = model.JobStatusSubmitted
			job.TrackURL = res.TrackURL
			job.LastError = ""
			alog.Info().
				Str("worker_id", res.WorkerID).
				Int("attempts", len(attempts)).
				Msg("job submitted")
			return &model.DispatchResult{
				JobID:     job.ID,
				AccountID: acc.ID,
				WorkerID:  res.WorkerID,
				TrackURL:  res.TrackURL,
				Attempts:  attempts,
			}, nil
		}

		// cleared so a retry does not report a stale assignment
		job.AssignedAccountID = ""
		alog.Warn().
			Str("outcome", string(outcome)).
			Str("detail", res.Detail).
			Msg("dispatch attempt failed")
	}

	exhausted := &domain.ExhaustedError{JobID: job.ID, Attempts: attempts}
	job.Status = model.JobStatusFailed
	job.LastError = exhausted.Error()
	return nil, exhausted
}

// execute runs one bounded worker round trip. No account lock is held here;
// the reservation alone keeps the account exclusive. Timeouts and transport
// errors collapse into a plain Failure outcome.
func (uc *DispatchUseCase) execute(ctx context.Context, job *model.GenerationJob, acc *model.Account) (model.Outcome, adapter.GenerationResult) {
	req := adapter.GenerationRequest{
		JobID:        job.ID,
		Lyrics:       job.Payload.Lyrics,
		StylePrompt:  job.Payload.StylePrompt,
		Title:        job.Payload.Title,
		Instrumental: job.Payload.Instrumental,
	}

	wctx, cancel := context.WithTimeout(ctx, uc.workerTimeout)
	defer cancel()

	start := time.Now()
	res, err := uc.worker.Execute(wctx, req, acc.CredentialRef)
	elapsed := time.Since(start)

	outcome := res.Outcome
	if err != nil {
		outcome = model.OutcomeFailure
		res.Detail = err.Error()
	} else if outcome == "" {
		outcome = model.OutcomeFailure
	}
	metrics.ObserveWorkerCall(string(outcome), elapsed.Seconds())
	return outcome, res
}
