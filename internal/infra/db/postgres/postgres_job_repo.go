package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"son1k-dispatch/internal/domain"
	"son1k-dispatch/internal/domain/model"
	"son1k-dispatch/internal/domain/ports/repository"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/oklog/ulid/v2"
)

var _ repository.JobRepository = (*PostgresJobRepo)(nil)

type PostgresJobRepo struct {
	pool *pgxpool.Pool
	tm   repository.TransactionManager
}

func NewPostgresJobRepo(pool *pgxpool.Pool, tm repository.TransactionManager) *PostgresJobRepo {
	return &PostgresJobRepo{pool: pool, tm: tm}
}

const jobColumns = `id, payload, user_plan, priority_score, status,
	assigned_account_id, attempts, track_url, last_error, submitted_at, updated_at`

func (r *PostgresJobRepo) Save(ctx context.Context, tx repository.Tx, job *model.GenerationJob) error {
	if job.ID == "" {
		job.ID = ulid.Make().String()
	}
	job.UpdatedAt = time.Now()

	payload, err := json.Marshal(job.Payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	const q = `
INSERT INTO generation_jobs (id, payload, user_plan, priority_score, status,
	assigned_account_id, attempts, track_url, last_error, submitted_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
ON CONFLICT (id) DO UPDATE SET
  status              = EXCLUDED.status,
  assigned_account_id = EXCLUDED.assigned_account_id,
  attempts            = EXCLUDED.attempts,
  track_url           = EXCLUDED.track_url,
  last_error          = EXCLUDED.last_error,
  updated_at          = EXCLUDED.updated_at;`

	_, err = execSQL(ctx, r.pool, tx, q,
		job.ID, payload, string(job.UserPlan), job.PriorityScore, string(job.Status),
		job.AssignedAccountID, job.Attempts, job.TrackURL, job.LastError,
		job.SubmittedAt, job.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save job: %w", err)
	}
	return nil
}

func (r *PostgresJobRepo) FindByID(ctx context.Context, id string) (*model.GenerationJob, error) {
	q := `SELECT ` + jobColumns + ` FROM generation_jobs WHERE id = $1;`
	row := r.pool.QueryRow(ctx, q, id)
	job, err := scanJob(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("find job: %w", err)
	}
	return job, nil
}

// FetchAndMarkProcessing claims the highest-priority pending job. Within a
// score, older submissions go first; SKIP LOCKED keeps competing processors
// off the same row.
func (r *PostgresJobRepo) FetchAndMarkProcessing(ctx context.Context) (*model.GenerationJob, error) {
	var job *model.GenerationJob

	err := r.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		fetchQuery := `
SELECT ` + jobColumns + `
FROM generation_jobs
WHERE status = 'pending'
ORDER BY priority_score DESC, submitted_at
LIMIT 1
FOR UPDATE SKIP LOCKED;`

		row, err := pickRow(ctx, r.pool, tx, fetchQuery)
		if err != nil {
			return err
		}

		fetched, err := scanJob(row)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return domain.ErrNotFound
			}
			return fmt.Errorf("scan claimed job: %w", err)
		}

		fetched.Status = model.JobStatusProcessing
		if err := r.Save(ctx, tx, fetched); err != nil {
			return err
		}

		job = fetched
		return nil
	})

	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrNotFound
	}
	return job, err
}

func scanJob(row pgx.Row) (*model.GenerationJob, error) {
	var j model.GenerationJob
	var payload []byte
	var planStr, statusStr string
	err := row.Scan(
		&j.ID, &payload, &planStr, &j.PriorityScore, &statusStr,
		&j.AssignedAccountID, &j.Attempts, &j.TrackURL, &j.LastError,
		&j.SubmittedAt, &j.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(payload, &j.Payload); err != nil {
		return nil, fmt.Errorf("unmarshal payload: %w", err)
	}
	j.UserPlan = model.Plan(planStr)
	j.Status = model.JobStatus(statusStr)
	return &j, nil
}
