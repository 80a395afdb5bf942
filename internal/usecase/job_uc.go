package usecase

import (
	"context"

	"son1k-dispatch/internal/domain/model"
	"son1k-dispatch/internal/domain/ports/repository"
	"son1k-dispatch/internal/infra/metrics"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
)

// JobUseCase owns the job lifecycle outside of dispatch: accepting
// submissions and answering status queries.
type JobUseCase struct {
	jobs repository.JobRepository
	log  *zerolog.Logger
}

func NewJobUseCase(jobs repository.JobRepository, logger *zerolog.Logger) *JobUseCase {
	jobLog := logger.With().Str("component", "JobUseCase").Logger()
	return &JobUseCase{jobs: jobs, log: &jobLog}
}

// Submit validates the request, scores it by plan, and persists it pending.
// ULIDs keep job IDs sortable by submission time.
func (uc *JobUseCase) Submit(ctx context.Context, payload model.JobPayload, plan model.Plan) (*model.GenerationJob, error) {
	job, err := model.NewGenerationJob(ulid.Make().String(), payload, plan)
	if err != nil {
		return nil, err
	}
	if err := uc.jobs.Save(ctx, nil, job); err != nil {
		return nil, err
	}
	metrics.IncJobSubmitted(string(plan))
	uc.log.Info().
		Str("job_id", job.ID).
		Str("plan", string(plan)).
		Int("priority_score", job.PriorityScore).
		Msg("job accepted")
	return job, nil
}

func (uc *JobUseCase) Get(ctx context.Context, id string) (*model.GenerationJob, error) {
	return uc.jobs.FindByID(ctx, id)
}
