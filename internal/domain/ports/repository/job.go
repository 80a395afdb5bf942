package repository

import (
	"context"

	"son1k-dispatch/internal/domain/model"
)

type JobRepository interface {
	Save(ctx context.Context, tx Tx, job *model.GenerationJob) error
	FindByID(ctx context.Context, id string) (*model.GenerationJob, error)
	// FetchAndMarkProcessing atomically claims the highest-priority pending
	// job (priority score descending, then submission time) and marks it
	// 'processing' so no other processor picks it up.
	FetchAndMarkProcessing(ctx context.Context) (*model.GenerationJob, error)
}
