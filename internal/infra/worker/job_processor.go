package worker

import (
	"context"
	"errors"
	"time"

	"son1k-dispatch/internal/domain"
	"son1k-dispatch/internal/domain/model"
	"son1k-dispatch/internal/domain/ports/adapter"
	"son1k-dispatch/internal/domain/ports/repository"
	"son1k-dispatch/internal/infra/logging"
	"son1k-dispatch/internal/infra/metrics"
	"son1k-dispatch/internal/usecase"

	"github.com/rs/zerolog"
)

// JobProcessor polls the queue and runs claimed jobs through the dispatcher
// on the pool. Multiple replicas can poll concurrently; the claim query keeps
// them off the same job.
type JobProcessor struct {
	jobs         repository.JobRepository
	dispatcher   *usecase.DispatchUseCase
	enhancer     adapter.PromptEnhancer
	pollInterval time.Duration
	log          *zerolog.Logger
}

func NewJobProcessor(
	jobs repository.JobRepository,
	dispatcher *usecase.DispatchUseCase,
	enhancer adapter.PromptEnhancer,
	pollInterval time.Duration,
	logger *zerolog.Logger,
) *JobProcessor {
	if pollInterval <= 0 {
		pollInterval = 500 * time.Millisecond
	}
	plog := logger.With().Str("component", "JobProcessor").Logger()
	return &JobProcessor{
		jobs:         jobs,
		dispatcher:   dispatcher,
		enhancer:     enhancer,
		pollInterval: pollInterval,
		log:          &plog,
	}
}

// Start runs the poll loop. This should be run in a goroutine.
func (p *JobProcessor) Start(ctx context.Context, pool *Pool) {
	p.log.Info().Msg("job processor started")
	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.log.Info().Msg("job processor stopping")
			return
		case <-ticker.C:
			_ = pool.Submit(func(ctx context.Context) error {
				p.processOne(ctx)
				return nil
			})
		}
	}
}

func (p *JobProcessor) processOne(ctx context.Context) {
	job, err := p.jobs.FetchAndMarkProcessing(ctx)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			p.log.Error().Err(err).Msg("failed to claim job")
		}
		return
	}

	ctx = logging.WithJobID(ctx, job.ID)
	log := logging.With(ctx, p.log)

	log.Info().Str("plan", string(job.UserPlan)).Msg("processing job")
	start := time.Now()

	p.enrichPayload(ctx, job)

	if _, err := p.dispatcher.Dispatch(ctx, job); err != nil {
		log.Warn().Err(err).Msg("dispatch did not submit")
	}

	// Shutdown can interrupt the claim before any account is reserved, which
	// leaves the job non-terminal. No quota was spent, so it goes back to
	// pending instead of sticking in processing forever.
	if !job.Terminal() {
		job.Status = model.JobStatusPending
		job.AssignedAccountID = ""
		if err := p.jobs.Save(context.Background(), nil, job); err != nil {
			log.Error().Err(err).Msg("failed to requeue interrupted job")
			return
		}
		log.Info().Msg("job requeued")
		return
	}

	metrics.IncJobProcessed(string(job.Status))
	// Use background context for the final update
	if err := p.jobs.Save(context.Background(), nil, job); err != nil {
		log.Error().Err(err).Msg("failed to save terminal job")
	}
	log.Info().
		Str("status", string(job.Status)).
		Dur("duration_ms", time.Since(start)).
		Msg("job finished")
}

// enrichPayload fills in lyrics for non-instrumental jobs submitted with a
// style prompt only. Best-effort: a failed enhancement never blocks dispatch.
func (p *JobProcessor) enrichPayload(ctx context.Context, job *model.GenerationJob) {
	if p.enhancer == nil || job.Payload.Instrumental || job.Payload.Lyrics != "" {
		return
	}
	lyrics, err := p.enhancer.EnhanceLyrics(ctx, job.Payload.StylePrompt, job.Payload.Title)
	if err != nil {
		logging.With(ctx, p.log).Warn().Err(err).Msg("lyrics enhancement failed")
		return
	}
	job.Payload.Lyrics = lyrics
}
